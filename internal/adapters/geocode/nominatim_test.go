package geocode

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, h http.HandlerFunc) *NominatimClient {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)

	c, err := NewNominatimClient(srv.URL, "test-agent", 2*time.Second, nil)
	require.NoError(t, err)
	return c
}

func TestNominatimSearch(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/search", r.URL.Path)
		assert.Equal(t, "Eiffel Tower", r.URL.Query().Get("q"))
		assert.Equal(t, "json", r.URL.Query().Get("format"))
		assert.Equal(t, "test-agent", r.Header.Get("User-Agent"))
		_, _ = w.Write([]byte(`[{"lat":"48.8582599","lon":"2.2945006","display_name":"Tour Eiffel, Paris"}]`))
	})

	hits, err := c.Search(context.Background(), "Eiffel Tower")
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.InDelta(t, 48.8582599, hits[0].Lat, 1e-9)
	assert.InDelta(t, 2.2945006, hits[0].Lng, 1e-9)
	assert.Equal(t, "Tour Eiffel, Paris", hits[0].Label)
}

func TestNominatimSearchErrors(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		wantErr bool
		wantLen int
	}{
		{name: "no results", status: 200, body: `[]`, wantLen: 0},
		{name: "malformed body", status: 200, body: `{"oops"`, wantErr: true},
		{name: "bad coordinate", status: 200, body: `[{"lat":"north","lon":"1"}]`, wantErr: true},
		{name: "server error", status: 503, body: `down`, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			})

			hits, err := c.Search(context.Background(), "anything")
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Len(t, hits, tt.wantLen)
		})
	}
}

func TestNominatimReverse(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/reverse", r.URL.Path)
		if r.URL.Query().Get("lat") == "0" {
			_, _ = w.Write([]byte(`{"error":"Unable to geocode"}`))
			return
		}
		assert.Equal(t, "-170", r.URL.Query().Get("lon"))
		_, _ = w.Write([]byte(`{"display_name":"Somewhere in the Pacific"}`))
	})

	label, found, err := c.Reverse(context.Background(), 10, -170)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "Somewhere in the Pacific", label)

	label, found, err = c.Reverse(context.Background(), 0, 0)
	require.NoError(t, err)
	assert.False(t, found)
	assert.Empty(t, label)
}

func TestNewNominatimClientRequiresURL(t *testing.T) {
	_, err := NewNominatimClient(" ", "ua", time.Second, nil)
	assert.Error(t, err)
}

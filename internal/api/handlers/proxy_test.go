package handlers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// proxyGet issues a request with a cancelable context, as a real server does.
func proxyGet(t *testing.T, r http.Handler, path string) *httptest.ResponseRecorder {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	req := httptest.NewRequest(http.MethodGet, path, nil).WithContext(ctx)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestRoutingProxyRewritesPath(t *testing.T) {
	var gotPath, gotQuery, gotUA string
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotQuery = r.URL.RawQuery
		gotUA = r.Header.Get("User-Agent")
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"code":"Ok","routes":[]}`))
	}))
	defer upstream.Close()

	proxy, err := NewRoutingProxy(upstream.URL+"/route/v1/driving/", "test-agent/1.0", nil)
	require.NoError(t, err)

	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/api/routing/*path", proxy)

	w := proxyGet(t, r, "/api/routing/13.4,52.5;2.35,48.85?overview=full&geometries=geojson")

	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"code":"Ok","routes":[]}`, w.Body.String())
	assert.Equal(t, "/route/v1/driving/13.4,52.5;2.35,48.85", gotPath)
	assert.Equal(t, "overview=full&geometries=geojson", gotQuery)
	assert.Equal(t, "test-agent/1.0", gotUA)
}

func TestRoutingProxyUpstreamDown(t *testing.T) {
	upstream := httptest.NewServer(http.NotFoundHandler())
	url := upstream.URL
	upstream.Close()

	proxy, err := NewRoutingProxy(url, "", nil)
	require.NoError(t, err)

	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/api/routing/*path", proxy)

	w := proxyGet(t, r, "/api/routing/1,2;3,4")
	assert.Equal(t, http.StatusBadGateway, w.Code)
}

func TestNewRoutingProxyRejectsRelativeUpstream(t *testing.T) {
	_, err := NewRoutingProxy("/route/v1", "", nil)
	assert.Error(t, err)
}

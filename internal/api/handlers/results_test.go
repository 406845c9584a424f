package handlers

import (
	"distance-matrix-service/internal/domain"
	"encoding/json"
	"math"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleResults() []domain.RouteResult {
	return []domain.RouteResult{
		{
			Origin:      domain.Point{ID: "o1", Address: "Berlin"},
			Destination: domain.Point{ID: "d1", Address: "Potsdam"},
			RouteFragment: domain.RouteFragment{
				Distance: 35.1,
				Path:     []domain.LatLng{{52.52, 13.405}, {52.45, 13.2}, {52.39, 13.06}},
				IsRoad:   true,
			},
		},
		{
			Origin:      domain.Point{ID: "o1", Address: "Berlin"},
			Destination: domain.Point{ID: "d2", Address: "Island"},
			RouteFragment: domain.RouteFragment{
				Distance:    120.5,
				Path:        []domain.LatLng{{52.52, 13.405}, {54.5, 13.4}},
				ErrorReason: "NoRoute",
			},
		},
		{
			Origin:      domain.Point{ID: "o1"},
			Destination: domain.Point{ID: "d3"},
			RouteFragment: domain.RouteFragment{
				Distance:    math.NaN(),
				Path:        []domain.LatLng{{math.NaN(), 1}, {2, 2}},
				ErrorReason: "Invalid Coordinates (NaN)",
			},
		},
	}
}

func TestPointHandler_Results(t *testing.T) {
	store := new(MockPointStore)
	store.On("Results").Return(sampleResults(), uint64(4))

	w := do(testRouter(store), http.MethodGet, "/results", "")
	require.Equal(t, http.StatusOK, w.Code)

	var body struct {
		Generation uint64 `json:"generation"`
		Results    []struct {
			Distance    *float64 `json:"distance"`
			IsRoad      bool     `json:"isRoad"`
			ErrorReason string   `json:"errorReason"`
			Path        [][2]float64
			Destination domain.Point `json:"destination"`
		} `json:"results"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))

	assert.Equal(t, uint64(4), body.Generation)
	require.Len(t, body.Results, 3)
	assert.Equal(t, 35.1, *body.Results[0].Distance)
	assert.True(t, body.Results[0].IsRoad)
	assert.Len(t, body.Results[0].Path, 3)
	assert.Equal(t, "NoRoute", body.Results[1].ErrorReason)
	assert.Nil(t, body.Results[2].Distance)
	assert.Len(t, body.Results[2].Path, 1)
}

func TestResultsFeatureCollection(t *testing.T) {
	fc := ResultsFeatureCollection(sampleResults())

	require.Len(t, fc.Features, 2)

	f := fc.Features[0]
	assert.Equal(t, "LineString", f.Geometry.GeoJSONType())
	assert.Equal(t, "o1", f.Properties["origin"])
	assert.Equal(t, "d1", f.Properties["destination"])
	assert.Equal(t, true, f.Properties["isRoad"])

	second := fc.Features[1]
	assert.Equal(t, "NoRoute", second.Properties["errorReason"])
}

func TestPointHandler_ResultsGeoJSON(t *testing.T) {
	store := new(MockPointStore)
	store.On("Results").Return(sampleResults()[:1], uint64(2))

	w := do(testRouter(store), http.MethodGet, "/results/geojson", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/geo+json", w.Header().Get("Content-Type"))
	assert.Equal(t, "2", w.Header().Get("X-Results-Generation"))

	var body struct {
		Type     string `json:"type"`
		Features []struct {
			Geometry struct {
				Type        string       `json:"type"`
				Coordinates [][2]float64 `json:"coordinates"`
			} `json:"geometry"`
		} `json:"features"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "FeatureCollection", body.Type)
	require.Len(t, body.Features, 1)
	// GeoJSON order is [lng, lat].
	assert.Equal(t, [2]float64{13.405, 52.52}, body.Features[0].Geometry.Coordinates[0])
}

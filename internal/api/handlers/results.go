package handlers

import (
	"distance-matrix-service/internal/api/dto"
	"distance-matrix-service/internal/domain"
	"math"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
)

// Results handles GET /results.
func (h *PointHandler) Results(c *gin.Context) {
	results, generation := h.Store.Results()
	c.JSON(http.StatusOK, dto.NewResultsResponse(results, generation))
}

// ResultsGeoJSON handles GET /results/geojson: one LineString feature per
// pair, in result order.
func (h *PointHandler) ResultsGeoJSON(c *gin.Context) {
	results, generation := h.Store.Results()

	fc := ResultsFeatureCollection(results)
	c.Header("X-Results-Generation", uintToString(generation))

	body, err := fc.MarshalJSON()
	if err != nil {
		writeDomainError(c, err)
		return
	}
	c.Data(http.StatusOK, "application/geo+json", body)
}

// ResultsFeatureCollection converts results into GeoJSON. Coordinates are
// emitted as [lng, lat]; pairs whose path has fewer than two finite
// vertices are skipped.
func ResultsFeatureCollection(results []domain.RouteResult) *geojson.FeatureCollection {
	fc := geojson.NewFeatureCollection()

	for _, r := range results {
		line := make(orb.LineString, 0, len(r.Path))
		for _, p := range r.Path {
			if !(domain.Coordinates{Lat: p[0], Lng: p[1]}).IsFinite() {
				continue
			}
			line = append(line, orb.Point{p[1], p[0]})
		}
		if len(line) < 2 {
			continue
		}

		f := geojson.NewFeature(line)
		f.Properties["origin"] = r.Origin.ID
		f.Properties["originAddress"] = r.Origin.Address
		f.Properties["destination"] = r.Destination.ID
		f.Properties["destinationAddress"] = r.Destination.Address
		if !math.IsNaN(r.Distance) && !math.IsInf(r.Distance, 0) {
			f.Properties["distance"] = r.Distance
		}
		f.Properties["isRoad"] = r.IsRoad
		if r.ErrorReason != "" {
			f.Properties["errorReason"] = r.ErrorReason
		}
		fc.Append(f)
	}

	return fc
}

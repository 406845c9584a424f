package handlers

import (
	"context"
	"distance-matrix-service/internal/api/dto"
	"distance-matrix-service/internal/domain"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
)

type RouteResolver interface {
	ResolveRoute(ctx context.Context, c1, c2 domain.Coordinates) domain.RouteFragment
}

type Geocoder interface {
	ForwardGeocode(ctx context.Context, address string) *domain.Coordinates
	ReverseGeocode(ctx context.Context, lat, lng float64) string
}

// LookupHandler exposes one-off routing and geocoding lookups that do not
// touch the point state.
type LookupHandler struct {
	Resolver RouteResolver
	Geocoder Geocoder
}

func NewLookupHandler(resolver RouteResolver, geocoder Geocoder) *LookupHandler {
	return &LookupHandler{Resolver: resolver, Geocoder: geocoder}
}

// Route handles POST /routes.
func (h *LookupHandler) Route(c *gin.Context) {
	var req dto.RouteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "from and to coordinates are required")
		return
	}

	from := domain.Coordinates{Lat: *req.From.Lat, Lng: *req.From.Lng}
	to := domain.Coordinates{Lat: *req.To.Lat, Lng: *req.To.Lng}

	route := h.Resolver.ResolveRoute(c.Request.Context(), from, to)
	c.JSON(http.StatusOK, dto.NewRouteResponse(route))
}

// Geocode handles GET /geocode?q=.
func (h *LookupHandler) Geocode(c *gin.Context) {
	q := c.Query("q")
	if q == "" {
		writeError(c, http.StatusBadRequest, "missing required query parameter 'q'")
		return
	}

	coords := h.Geocoder.ForwardGeocode(c.Request.Context(), q)
	if coords == nil {
		writeError(c, http.StatusNotFound, "no location found for the query")
		return
	}

	c.JSON(http.StatusOK, dto.GeocodeResponse{
		Query: q,
		Lat:   coords.Lat,
		Lng:   domain.NormalizeLng(coords.Lng),
		Name:  coords.Name,
	})
}

// ReverseGeocode handles GET /reverse-geocode?lat=&lon=. It never answers
// 404: unknown locations get a formatted coordinate label.
func (h *LookupHandler) ReverseGeocode(c *gin.Context) {
	latStr := c.Query("lat")
	lonStr := c.Query("lon")

	if latStr == "" || lonStr == "" {
		writeError(c, http.StatusBadRequest, "missing required query parameters 'lat' and 'lon'")
		return
	}

	lat, err := strconv.ParseFloat(latStr, 64)
	if err != nil {
		writeError(c, http.StatusBadRequest, "invalid latitude format")
		return
	}

	lon, err := strconv.ParseFloat(lonStr, 64)
	if err != nil {
		writeError(c, http.StatusBadRequest, "invalid longitude format")
		return
	}

	if err := domain.ValidateLatLng(lat, lon); err != nil {
		writeDomainError(c, err)
		return
	}

	label := h.Geocoder.ReverseGeocode(c.Request.Context(), lat, lon)
	c.JSON(http.StatusOK, dto.ReverseGeocodeResponse{
		Lat:   lat,
		Lng:   domain.NormalizeLng(lon),
		Label: label,
	})
}

func uintToString(v uint64) string {
	return strconv.FormatUint(v, 10)
}

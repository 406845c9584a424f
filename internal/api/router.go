package api

import (
	"distance-matrix-service/internal/api/handlers"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type RouterConfig struct {
	Store    handlers.PointStore
	Resolver handlers.RouteResolver
	Geocoder handlers.Geocoder
	Log      *zap.Logger

	// RoutingUpstream enables GET /api/routing/*path when set.
	RoutingUpstream string
	UserAgent       string

	RateLimitPerSecond float64
	RateLimitBurst     int
}

// NewRouter wires HTTP handlers with their dependencies and returns an http.Handler.
// This is the API composition root (handlers stay unaware of concrete adapters).
func NewRouter(cfg RouterConfig) (http.Handler, error) {
	log := cfg.Log
	if log == nil {
		log = zap.NewNop()
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(requestIDMiddleware())
	r.Use(loggingMiddleware(log))

	r.GET("/health", handlers.Health)

	limited := r.Group("/")
	limited.Use(rateLimitMiddleware(cfg.RateLimitPerSecond, cfg.RateLimitBurst))

	points := handlers.NewPointHandler(cfg.Store)
	limited.GET("/state", points.State)
	limited.POST("/points", points.Add)
	limited.DELETE("/points/:role/:id", points.Remove)
	limited.PUT("/points/:role/:id/address", points.UpdateAddress)
	limited.POST("/points/:role/:id/resolve", points.Resolve)
	limited.POST("/map-click", points.MapClick)
	limited.PUT("/positions/:id", points.Move)
	limited.PUT("/mode", points.SetMode)
	limited.PUT("/viewport", points.SetViewport)
	limited.GET("/results", points.Results)
	limited.GET("/results/geojson", points.ResultsGeoJSON)

	lookups := handlers.NewLookupHandler(cfg.Resolver, cfg.Geocoder)
	limited.POST("/routes", lookups.Route)
	limited.GET("/geocode", lookups.Geocode)
	limited.GET("/reverse-geocode", lookups.ReverseGeocode)

	if cfg.RoutingUpstream != "" {
		proxy, err := handlers.NewRoutingProxy(cfg.RoutingUpstream, cfg.UserAgent, log)
		if err != nil {
			return nil, err
		}
		limited.GET("/api/routing/*path", proxy)
	}

	return r, nil
}

package ports

import (
	"context"
	"distance-matrix-service/internal/domain"
)

// A single candidate returned by a text-search geocoding service.
type GeocodeHit struct {
	Lat   float64
	Lng   float64
	Label string
}

// Contract for the external text-search geocoding service.
type GeocodeSearcher interface {
	// Return candidates for a free-text query, best match first.
	Search(ctx context.Context, query string) ([]GeocodeHit, error)
	// Return the display label for a coordinate. found is false when the
	// service explicitly reports that it has no data for the location.
	Reverse(ctx context.Context, lat, lng float64) (label string, found bool, err error)
}

// Optional persistent cache of address -> coordinates lookups.
type GeocodeCache interface {
	GetMany(ctx context.Context, addresses []string) (map[string]domain.Coordinates, error)
	PutMany(ctx context.Context, results map[string]domain.Coordinates) error
}

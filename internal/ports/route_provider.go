package ports

import (
	"context"
	"distance-matrix-service/internal/domain"
	"errors"
	"fmt"
)

// Contract for a road-routing service queried for one origin/destination pair.
//
// Implementations return a fragment with IsRoad set on success. Failures are
// reported through the typed errors below so the resolver can
// decide between retrying and moving on to the next provider.
type RouteProvider interface {
	Name() string
	Route(ctx context.Context, from, to domain.Coordinates) (domain.RouteFragment, error)
}

// Optional cache of successful road routes keyed by coordinate pair.
type RouteCache interface {
	Get(ctx context.Context, from, to domain.Coordinates) (domain.RouteFragment, bool, error)
	Put(ctx context.Context, from, to domain.Coordinates, route domain.RouteFragment) error
}

// ErrNoRoute is returned when the provider answered but found no road path.
var ErrNoRoute = errors.New("NoRoute")

// StatusError reports a non-success HTTP status from a provider.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("Code %d: %s", e.Code, e.Body)
}

// APICodeError reports a payload code other than "Ok" or "NoRoute".
type APICodeError struct {
	Code string
}

func (e *APICodeError) Error() string {
	return "API Code: " + e.Code
}

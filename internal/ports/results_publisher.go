package ports

import (
	"context"
	"distance-matrix-service/internal/domain"
)

// Receives every result set the orchestrator publishes.
type ResultsPublisher interface {
	PublishResults(ctx context.Context, generation uint64, results []domain.RouteResult) error
}

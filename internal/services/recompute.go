package services

import (
	"context"
	"distance-matrix-service/internal/domain"
	"distance-matrix-service/internal/ports"
	"slices"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// PairResolver computes the route between two coordinates without failing.
type PairResolver interface {
	ResolveRoute(ctx context.Context, c1, c2 domain.Coordinates) domain.RouteFragment
}

type routePair struct {
	origin      domain.Point
	destination domain.Point
}

// planPairs lists the origin/destination pairs to compute, origin-major.
// Points without coordinates are skipped.
func planPairs(mode domain.Mode, origins, destinations []domain.Point) []routePair {
	var sources []domain.Point
	if mode == domain.ModeOneToMany {
		if len(origins) > 0 && origins[0].Coords != nil {
			sources = origins[:1]
		}
	} else {
		sources = origins
	}

	pairs := make([]routePair, 0, len(sources)*len(destinations))
	for _, o := range sources {
		if o.Coords == nil {
			continue
		}
		for _, d := range destinations {
			if d.Coords == nil {
				continue
			}
			pairs = append(pairs, routePair{origin: o, destination: d})
		}
	}

	return pairs
}

// Recomputer rebuilds the full result set whenever point state changes.
//
// Every pass resolves all of its pairs concurrently and publishes only once
// each pair has finished. Passes are tagged with the state version they were
// computed from; a pass that completes after a newer one has already been
// published is discarded.
type Recomputer struct {
	resolver  PairResolver
	publisher ports.ResultsPublisher
	log       *zap.Logger
	ctx       context.Context

	publishMu sync.Mutex

	mu         sync.RWMutex
	results    []domain.RouteResult
	generation uint64

	wg sync.WaitGroup
}

// NewRecomputer creates a recomputer whose passes run under ctx. publisher may be nil.
func NewRecomputer(ctx context.Context, resolver PairResolver, publisher ports.ResultsPublisher, log *zap.Logger) *Recomputer {
	if log == nil {
		log = zap.NewNop()
	}
	return &Recomputer{
		resolver:  resolver,
		publisher: publisher,
		log:       log,
		ctx:       ctx,
		results:   []domain.RouteResult{},
	}
}

// Schedule starts a background pass for the given state.
func (r *Recomputer) Schedule(snap Snapshot) {
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()

		results := r.Compute(r.ctx, snap.Mode, snap.Origins, snap.Destinations)
		r.publish(snap.Version, results)
	}()
}

// Compute resolves every pair for the given state and returns the results in
// pair order. It blocks until all pairs are done.
func (r *Recomputer) Compute(
	ctx context.Context,
	mode domain.Mode,
	origins []domain.Point,
	destinations []domain.Point,
) []domain.RouteResult {
	pairs := planPairs(mode, origins, destinations)
	results := make([]domain.RouteResult, len(pairs))

	var g errgroup.Group
	for i, p := range pairs {
		g.Go(func() error {
			results[i] = domain.RouteResult{
				Origin:        p.origin,
				Destination:   p.destination,
				RouteFragment: r.resolver.ResolveRoute(ctx, *p.origin.Coords, *p.destination.Coords),
			}
			return nil
		})
	}
	// Resolution never fails; Wait is only the join.
	_ = g.Wait()

	return results
}

// publish installs results unless a newer pass has already been published.
// Passes publish one at a time so the external publisher sees generations
// in increasing order.
func (r *Recomputer) publish(generation uint64, results []domain.RouteResult) {
	r.publishMu.Lock()
	defer r.publishMu.Unlock()

	r.mu.Lock()
	published := r.generation
	if generation < published {
		r.mu.Unlock()
		r.log.Debug("discarding stale result pass",
			zap.Uint64("generation", generation),
			zap.Uint64("published", published),
		)
		return
	}
	r.results = results
	r.generation = generation
	r.mu.Unlock()

	r.log.Info("results published",
		zap.Uint64("generation", generation),
		zap.Int("count", len(results)),
	)

	if r.publisher != nil {
		if err := r.publisher.PublishResults(r.ctx, generation, results); err != nil {
			r.log.Warn("results publisher failed", zap.Error(err))
		}
	}
}

// Results returns the most recently published result set and the state
// version it was computed from.
func (r *Recomputer) Results() ([]domain.RouteResult, uint64) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return slices.Clone(r.results), r.generation
}

// Wait blocks until every scheduled pass has finished.
func (r *Recomputer) Wait() {
	r.wg.Wait()
}

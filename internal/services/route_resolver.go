package services

import (
	"context"
	"distance-matrix-service/internal/domain"
	"distance-matrix-service/internal/platform/obs"
	"distance-matrix-service/internal/ports"
	"errors"
	"net/http"
	"strconv"
	"time"

	"go.uber.org/zap"
)

const (
	maxAttemptsPerProvider = 2
	rateLimitBackoffUnit   = 1000 * time.Millisecond
	networkRetryDelay      = 500 * time.Millisecond

	reasonInvalidCoords = "Invalid Coordinates (NaN)"
	reasonRateLimited   = "429 Rate Limit"
	reasonNoAttempts    = "No Attempts"
	reasonNetwork       = "Network Error"
)

type outcomeKind int

const (
	outcomeSuccess outcomeKind = iota
	// Try the same provider again after wait.
	outcomeRetry
	// Give up on this provider and move to the next one.
	outcomeSkip
)

// attemptOutcome is the tagged result of a single provider request.
type attemptOutcome struct {
	kind   outcomeKind
	route  domain.RouteFragment
	reason string
	wait   time.Duration

	// Wait even when no attempt remains on this provider.
	waitLast bool
}

// classify maps a provider response onto the retry policy:
// rate limits back off linearly by attempt, also before leaving the
// provider; transport failures retry after a fixed delay; every other
// failure skips to the next provider.
func classify(route domain.RouteFragment, err error, attempt int) attemptOutcome {
	if err == nil {
		return attemptOutcome{kind: outcomeSuccess, route: route}
	}

	var se *ports.StatusError
	if errors.As(err, &se) {
		if se.Code == http.StatusTooManyRequests {
			return attemptOutcome{
				kind:     outcomeRetry,
				reason:   reasonRateLimited,
				wait:     rateLimitBackoffUnit * time.Duration(attempt),
				waitLast: true,
			}
		}
		return attemptOutcome{kind: outcomeSkip, reason: strconv.Itoa(se.Code)}
	}

	if errors.Is(err, ports.ErrNoRoute) {
		return attemptOutcome{kind: outcomeSkip, reason: "NoRoute"}
	}

	var ae *ports.APICodeError
	if errors.As(err, &ae) {
		return attemptOutcome{kind: outcomeSkip, reason: ae.Error()}
	}

	reason := err.Error()
	if reason == "" {
		reason = reasonNetwork
	}
	return attemptOutcome{kind: outcomeRetry, reason: reason, wait: networkRetryDelay}
}

// RouteResolver computes the distance between two coordinates by trying an
// ordered list of road-routing providers, falling back to the great-circle
// distance when none of them produces a route. It never fails.
type RouteResolver struct {
	providers []ports.RouteProvider
	cache     ports.RouteCache
	log       *zap.Logger
	sleep     func(ctx context.Context, d time.Duration) error
}

func NewRouteResolver(providers []ports.RouteProvider, cache ports.RouteCache, log *zap.Logger) *RouteResolver {
	if log == nil {
		log = zap.NewNop()
	}
	return &RouteResolver{
		providers: providers,
		cache:     cache,
		log:       log,
		sleep:     sleepContext,
	}
}

// ResolveRoute returns a road route from the first provider that succeeds,
// or a straight two-point path with the great-circle distance and the last
// failure reason.
func (r *RouteResolver) ResolveRoute(ctx context.Context, c1, c2 domain.Coordinates) domain.RouteFragment {
	if !c1.IsFinite() || !c2.IsFinite() {
		r.log.Warn("invalid coordinates, using great-circle distance",
			zap.Float64s("from", c1.CoordsToList()),
			zap.Float64s("to", c2.CoordsToList()),
		)
		return fallbackRoute(c1, c2, reasonInvalidCoords)
	}

	from := c1.Normalized()
	to := c2.Normalized()

	if r.cache != nil {
		cached, ok, err := r.cache.Get(ctx, from, to)
		if err != nil {
			r.log.Warn("route cache read failed", zap.Error(err))
		} else if ok {
			return cached
		}
	}

	lastReason := reasonNoAttempts
	for _, p := range r.providers {
		route, reason, ok := r.tryProvider(ctx, p, from, to)
		if ok {
			if r.cache != nil {
				if err := r.cache.Put(ctx, from, to, route); err != nil {
					r.log.Warn("route cache write failed", zap.Error(err))
				}
			}
			return route
		}
		if reason != "" {
			lastReason = reason
		}
		if ctx.Err() != nil {
			break
		}
	}

	r.log.Info("all routing providers failed, using great-circle distance",
		zap.String("reason", lastReason),
	)
	return fallbackRoute(c1, c2, lastReason)
}

// tryProvider drives up to maxAttemptsPerProvider requests against p.
func (r *RouteResolver) tryProvider(
	ctx context.Context,
	p ports.RouteProvider,
	from domain.Coordinates,
	to domain.Coordinates,
) (_ domain.RouteFragment, reason string, ok bool) {
	for attempt := 1; attempt <= maxAttemptsPerProvider; attempt++ {
		route, err := r.attempt(ctx, p, from, to)
		out := classify(route, err, attempt)

		switch out.kind {
		case outcomeSuccess:
			return out.route, "", true
		case outcomeSkip:
			r.log.Debug("routing provider rejected request",
				zap.String("provider", p.Name()),
				zap.String("reason", out.reason),
			)
			return domain.RouteFragment{}, out.reason, false
		}

		reason = out.reason
		r.log.Debug("routing provider attempt failed",
			zap.String("provider", p.Name()),
			zap.Int("attempt", attempt),
			zap.String("reason", out.reason),
		)

		if attempt == maxAttemptsPerProvider && !out.waitLast {
			break
		}
		if err := r.sleep(ctx, out.wait); err != nil {
			return domain.RouteFragment{}, reason, false
		}
	}

	return domain.RouteFragment{}, reason, false
}

func (r *RouteResolver) attempt(
	ctx context.Context,
	p ports.RouteProvider,
	from domain.Coordinates,
	to domain.Coordinates,
) (_ domain.RouteFragment, err error) {
	defer obs.Time(ctx, r.log, "route.attempt")(&err)
	return p.Route(ctx, from, to)
}

func fallbackRoute(c1, c2 domain.Coordinates, reason string) domain.RouteFragment {
	return domain.RouteFragment{
		Distance:    domain.GreatCircleDistance(c1, c2),
		Path:        []domain.LatLng{{c1.Lat, c1.Lng}, {c2.Lat, c2.Lng}},
		IsRoad:      false,
		ErrorReason: reason,
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

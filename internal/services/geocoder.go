package services

import (
	"context"
	"distance-matrix-service/internal/domain"
	"distance-matrix-service/internal/platform/obs"
	"distance-matrix-service/internal/ports"
	"regexp"
	"strconv"
	"strings"

	"go.uber.org/zap"
)

// "<lat>,<lng>" with optional sign, decimals and surrounding whitespace.
var literalCoords = regexp.MustCompile(`^([+-]?\d+(?:\.\d+)?)\s*,\s*([+-]?\d+(?:\.\d+)?)$`)

// Geocoder resolves addresses to coordinates and back.
//
// Neither direction reports errors to callers: a forward miss is a nil
// result and a reverse failure degrades to a formatted coordinate string.
type Geocoder struct {
	searcher ports.GeocodeSearcher
	cache    ports.GeocodeCache
	log      *zap.Logger
}

// NewGeocoder wires a searcher with an optional cache (nil disables caching).
func NewGeocoder(searcher ports.GeocodeSearcher, cache ports.GeocodeCache, log *zap.Logger) *Geocoder {
	if log == nil {
		log = zap.NewNop()
	}
	return &Geocoder{searcher: searcher, cache: cache, log: log}
}

// ParseLiteralCoordinates recognizes addresses typed as "lat, lng".
func ParseLiteralCoordinates(address string) (domain.Coordinates, bool) {
	m := literalCoords.FindStringSubmatch(strings.TrimSpace(address))
	if m == nil {
		return domain.Coordinates{}, false
	}

	lat, err := strconv.ParseFloat(m[1], 64)
	if err != nil {
		return domain.Coordinates{}, false
	}
	lng, err := strconv.ParseFloat(m[2], 64)
	if err != nil {
		return domain.Coordinates{}, false
	}

	return domain.Coordinates{Lat: lat, Lng: lng, Name: address}, true
}

// ForwardGeocode returns the coordinates for address, or nil when it cannot
// be resolved.
func (g *Geocoder) ForwardGeocode(ctx context.Context, address string) *domain.Coordinates {
	if c, ok := ParseLiteralCoordinates(address); ok {
		if c.Lat < -90 || c.Lat > 90 {
			g.log.Debug("literal coordinates out of range", zap.String("address", address))
			return nil
		}
		return &c
	}

	key := normalizeAddress(address)
	if key == "" {
		return nil
	}

	if g.cache != nil {
		hits, err := g.cache.GetMany(ctx, []string{key})
		if err != nil {
			g.log.Warn("geocode cache read failed", zap.Error(err))
		} else if c, ok := hits[key]; ok {
			return &c
		}
	}

	c, err := g.search(ctx, key)
	if err != nil {
		g.log.Warn("forward geocode failed", zap.String("address", key), zap.Error(err))
		return nil
	}
	if c == nil {
		return nil
	}

	if g.cache != nil {
		if err := g.cache.PutMany(ctx, map[string]domain.Coordinates{key: *c}); err != nil {
			g.log.Warn("geocode cache write failed", zap.Error(err))
		}
	}

	return c
}

func (g *Geocoder) search(ctx context.Context, query string) (_ *domain.Coordinates, err error) {
	defer obs.Time(ctx, g.log, "geocoder.search")(&err)

	hits, err := g.searcher.Search(ctx, query)
	if err != nil {
		return nil, err
	}
	if len(hits) == 0 {
		return nil, nil
	}

	h := hits[0]
	return &domain.Coordinates{Lat: h.Lat, Lng: h.Lng, Name: h.Label}, nil
}

// ReverseGeocode returns a display label for the coordinate. Any failure,
// including an explicit no-data answer, yields "<lat>, <lng>" with six
// decimals and the normalized longitude.
func (g *Geocoder) ReverseGeocode(ctx context.Context, lat, lng float64) string {
	normLng := domain.NormalizeLng(lng)
	fallback := domain.FormatLatLng(lat, normLng)

	label, found, err := g.searcher.Reverse(ctx, lat, normLng)
	if err != nil {
		g.log.Warn("reverse geocode failed",
			zap.Float64("lat", lat),
			zap.Float64("lng", normLng),
			zap.Error(err),
		)
		return fallback
	}
	if !found || strings.TrimSpace(label) == "" {
		return fallback
	}

	return label
}

// normalizeAddress collapses whitespace so cache keys stay consistent.
func normalizeAddress(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

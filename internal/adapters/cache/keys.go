package cache

import (
	"distance-matrix-service/internal/domain"
	"encoding/json"
	"fmt"
	"strings"
)

// routeKey identifies a directed coordinate pair. Coordinates are rounded to
// six decimals (about 10cm) so equal points always share a key.
func routeKey(from, to domain.Coordinates) string {
	return fmt.Sprintf("%.6f,%.6f;%.6f,%.6f", from.Lat, from.Lng, to.Lat, to.Lng)
}

// uniqueKeys trims, drops blanks and removes duplicates, keeping order.
func uniqueKeys(keys []string) []string {
	seen := map[string]struct{}{}
	uniq := make([]string, 0, len(keys))
	for _, k := range keys {
		k = strings.TrimSpace(k)
		if k == "" {
			continue
		}

		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		uniq = append(uniq, k)
	}
	return uniq
}

// cachedRoute is the stored form of a road route.
type cachedRoute struct {
	Distance float64         `json:"distance"`
	Path     []domain.LatLng `json:"path"`
}

func encodeRoute(r domain.RouteFragment) ([]byte, error) {
	return json.Marshal(cachedRoute{Distance: r.Distance, Path: r.Path})
}

func decodeRoute(b []byte) (domain.RouteFragment, error) {
	var c cachedRoute
	if err := json.Unmarshal(b, &c); err != nil {
		return domain.RouteFragment{}, err
	}
	return domain.RouteFragment{Distance: c.Distance, Path: c.Path, IsRoad: true}, nil
}

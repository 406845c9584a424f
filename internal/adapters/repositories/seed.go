package repositories

import (
	"context"
	"distance-matrix-service/internal/domain"
	"distance-matrix-service/internal/ports"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/google/uuid"
)

// Seed persistence keys; kept equal to the point store's keys.
const (
	keyOrigins      = "origins"
	keyDestinations = "destinations"
	keyMode         = "mode"
)

type PointSeed struct {
	Origins      []string `json:"origins"`
	Destinations []string `json:"destinations"`
	Mode         string   `json:"mode"`
}

// Populate the state store with addresses from a JSON file. Points are
// stored unresolved; the server geocodes them when it restores state.
func SeedFromJSON(ctx context.Context, store ports.StateStore, jsonPath string) error {
	bytes, err := os.ReadFile(jsonPath)
	if err != nil {
		return fmt.Errorf("seed points: read %q: %w", jsonPath, err)
	}

	var data PointSeed
	if err := json.Unmarshal(bytes, &data); err != nil {
		return fmt.Errorf("seed points: parse json: %w", err)
	}

	mode := domain.ModeOneToMany
	if data.Mode != "" {
		if mode, err = domain.ParseMode(data.Mode); err != nil {
			return fmt.Errorf("seed points: %w", err)
		}
	}

	origins, err := seedPoints("origins", data.Origins)
	if err != nil {
		return err
	}
	destinations, err := seedPoints("destinations", data.Destinations)
	if err != nil {
		return err
	}
	if mode == domain.ModeOneToMany && len(origins) > 1 {
		return fmt.Errorf("seed points: mode %s allows one origin, got %d", mode, len(origins))
	}

	for key, v := range map[string]any{keyOrigins: origins, keyDestinations: destinations} {
		raw, err := json.Marshal(v)
		if err != nil {
			return fmt.Errorf("seed points: encode %s: %w", key, err)
		}
		if err := store.Save(ctx, key, raw); err != nil {
			return fmt.Errorf("seed points: %w", err)
		}
	}
	if err := store.Save(ctx, keyMode, []byte(mode)); err != nil {
		return fmt.Errorf("seed points: %w", err)
	}

	return nil
}

func seedPoints(field string, addresses []string) ([]domain.Point, error) {
	if len(addresses) == 0 {
		return []domain.Point{{ID: uuid.NewString()}}, nil
	}

	points := make([]domain.Point, 0, len(addresses))
	for i, a := range addresses {
		a = strings.TrimSpace(a)
		if a == "" {
			return nil, fmt.Errorf("seed points: %s at index %d: address cannot be empty", field, i+1)
		}
		points = append(points, domain.Point{ID: uuid.NewString(), Address: a})
	}
	return points, nil
}

package domain

import (
	"errors"
	"fmt"
)

var (
	ErrPointNotFound = errors.New("point not found")
	ErrInvalidRole   = errors.New("invalid point role")
	ErrInvalidMode   = errors.New("invalid mode")

	ErrInvalidCoordinates = errors.New("invalid coordinates")
)

// Role tags which collection a point belongs to.
type Role string

const (
	RoleOrigin      Role = "origin"
	RoleDestination Role = "destination"
)

func ParseRole(s string) (Role, error) {
	switch Role(s) {
	case RoleOrigin, RoleDestination:
		return Role(s), nil
	}
	return "", fmt.Errorf("parse role %q: %w", s, ErrInvalidRole)
}

// Mode selects how origins are paired with destinations.
type Mode string

const (
	ModeOneToMany  Mode = "one-to-many"
	ModeManyToMany Mode = "many-to-many"
)

func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case ModeOneToMany, ModeManyToMany:
		return Mode(s), nil
	}
	return "", fmt.Errorf("parse mode %q: %w", s, ErrInvalidMode)
}

// A user-defined location. Coords is nil until the address has been
// resolved; a point without coords takes no part in route computation.
// ID never changes across edits and is the only key async completions use.
type Point struct {
	ID      string       `json:"id"`
	Address string       `json:"address"`
	Coords  *Coordinates `json:"coords"`
	Loading bool         `json:"loading"`
	Error   string       `json:"error,omitempty"`
}

// IsEmpty reports whether the point is an unused slot.
func (p Point) IsEmpty() bool {
	return p.Address == "" && p.Coords == nil
}

// Normalized returns a copy whose coordinates carry a wrapped longitude.
func (p Point) Normalized() Point {
	if p.Coords != nil {
		c := p.Coords.Normalized()
		p.Coords = &c
	}
	return p
}

// ValidateLatLng rejects non-finite values and latitudes outside [-90, 90].
// Longitude may take any finite value; it is normalized on storage.
func ValidateLatLng(lat, lng float64) error {
	if !(Coordinates{Lat: lat, Lng: lng}).IsFinite() {
		return fmt.Errorf("%w: lat=%v lng=%v", ErrInvalidCoordinates, lat, lng)
	}
	if lat < -90 || lat > 90 {
		return fmt.Errorf("%w: latitude must be between -90 and 90", ErrInvalidCoordinates)
	}
	return nil
}

// Map viewport persisted between sessions.
type Viewport struct {
	Center [2]float64 `json:"center"`
	Zoom   float64    `json:"zoom"`
}

func DefaultViewport() Viewport {
	return Viewport{Center: [2]float64{20, 0}, Zoom: 2}
}

package domain

import (
	"fmt"
	"math"
)

// Earth radius used by the great-circle fallback, in kilometers.
const earthRadiusKm = 6371.0

// Geographic coordinates (latitude, longitude) with an optional display label.
type Coordinates struct {
	Lat  float64 `json:"lat"`
	Lng  float64 `json:"lng"`
	Name string  `json:"name,omitempty"`
}

// Return coordinates as [lng, lat] for external API compatibility.
func (c Coordinates) CoordsToList() []float64 { return []float64{c.Lng, c.Lat} }

// IsFinite reports whether both components are real numbers.
func (c Coordinates) IsFinite() bool {
	return !math.IsNaN(c.Lat) && !math.IsInf(c.Lat, 0) &&
		!math.IsNaN(c.Lng) && !math.IsInf(c.Lng, 0)
}

// Normalized returns a copy with the longitude wrapped into [-180, 180).
func (c Coordinates) Normalized() Coordinates {
	c.Lng = NormalizeLng(c.Lng)
	return c
}

// NormalizeLng maps any longitude into [-180, 180).
func NormalizeLng(lng float64) float64 {
	return math.Mod(math.Mod(lng+180, 360)+360, 360) - 180
}

// GreatCircleDistance returns the haversine distance between a and b in
// kilometers, rounded to two decimals.
func GreatCircleDistance(a, b Coordinates) float64 {
	dLat := deg2rad(b.Lat - a.Lat)
	dLng := deg2rad(b.Lng - a.Lng)

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(deg2rad(a.Lat))*math.Cos(deg2rad(b.Lat))*
			math.Sin(dLng/2)*math.Sin(dLng/2)
	c := 2 * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))

	return RoundTo(earthRadiusKm*c, 2)
}

// RoundTo rounds x to the given number of decimal places.
func RoundTo(x float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(x*p) / p
}

// FormatLatLng renders a coordinate pair with six decimals, the degraded
// address used whenever no label can be obtained.
func FormatLatLng(lat, lng float64) string {
	return fmt.Sprintf("%.6f, %.6f", lat, lng)
}

func deg2rad(deg float64) float64 {
	return deg * math.Pi / 180
}

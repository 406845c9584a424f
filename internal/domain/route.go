package domain

// Path vertex as (lat, lng).
type LatLng [2]float64

// RouteFragment is what resolving a single origin/destination pair yields.
// IsRoad is false whenever the distance is a great-circle approximation,
// in which case ErrorReason carries the last diagnostic.
type RouteFragment struct {
	Distance    float64  `json:"distance"`
	Path        []LatLng `json:"path,omitempty"`
	IsRoad      bool     `json:"isRoad"`
	ErrorReason string   `json:"errorReason,omitempty"`
}

// Represents the computed route between one origin and one destination.
// Results are derived data: a recomputation replaces the whole set and
// never patches an existing entry.
type RouteResult struct {
	Origin      Point `json:"origin"`
	Destination Point `json:"destination"`
	RouteFragment
}

package dto

import (
	"distance-matrix-service/internal/domain"
	"math"
)

type CoordinatesRequest struct {
	Lat *float64 `json:"lat" binding:"required"`
	Lng *float64 `json:"lng" binding:"required"`
}

type RouteRequest struct {
	From CoordinatesRequest `json:"from"`
	To   CoordinatesRequest `json:"to"`
}

// Distance is null when it could not be computed (non-finite input).
type RouteResponse struct {
	Distance    *float64        `json:"distance"`
	Path        []domain.LatLng `json:"path"`
	IsRoad      bool            `json:"isRoad"`
	ErrorReason string          `json:"errorReason,omitempty"`
}

type RouteResultResponse struct {
	Origin      domain.Point `json:"origin"`
	Destination domain.Point `json:"destination"`
	RouteResponse
}

type ResultsResponse struct {
	Generation uint64                `json:"generation"`
	Results    []RouteResultResponse `json:"results"`
}

type GeocodeResponse struct {
	Query string  `json:"query"`
	Lat   float64 `json:"lat"`
	Lng   float64 `json:"lng"`
	Name  string  `json:"name"`
}

type ReverseGeocodeResponse struct {
	Lat   float64 `json:"lat"`
	Lng   float64 `json:"lng"`
	Label string  `json:"label"`
}

func NewRouteResponse(r domain.RouteFragment) RouteResponse {
	res := RouteResponse{
		Path:        finitePath(r.Path),
		IsRoad:      r.IsRoad,
		ErrorReason: r.ErrorReason,
	}
	if !math.IsNaN(r.Distance) && !math.IsInf(r.Distance, 0) {
		d := r.Distance
		res.Distance = &d
	}
	return res
}

func NewResultsResponse(results []domain.RouteResult, generation uint64) ResultsResponse {
	out := ResultsResponse{
		Generation: generation,
		Results:    make([]RouteResultResponse, 0, len(results)),
	}
	for _, r := range results {
		out.Results = append(out.Results, RouteResultResponse{
			Origin:        r.Origin,
			Destination:   r.Destination,
			RouteResponse: NewRouteResponse(r.RouteFragment),
		})
	}
	return out
}

// finitePath drops vertices JSON cannot encode.
func finitePath(path []domain.LatLng) []domain.LatLng {
	out := make([]domain.LatLng, 0, len(path))
	for _, p := range path {
		if (domain.Coordinates{Lat: p[0], Lng: p[1]}).IsFinite() {
			out = append(out, p)
		}
	}
	return out
}

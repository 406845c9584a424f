package dto

import "distance-matrix-service/internal/domain"

type AddPointRequest struct {
	Role string `json:"role" binding:"required"`
}

type AddPointResponse struct {
	ID    string `json:"id,omitempty"`
	Added bool   `json:"added"`
}

type UpdateAddressRequest struct {
	Address string `json:"address"`
}

// Lat and Lng are pointers so a missing field is distinguishable from zero.
type MapClickRequest struct {
	Lat  *float64 `json:"lat" binding:"required"`
	Lng  *float64 `json:"lng" binding:"required"`
	Role string   `json:"role" binding:"required"`
}

type PositionRequest struct {
	Lat *float64 `json:"lat" binding:"required"`
	Lng *float64 `json:"lng" binding:"required"`
}

type PointIDResponse struct {
	ID string `json:"id"`
}

type ModeRequest struct {
	Mode string `json:"mode" binding:"required"`
}

type ViewportRequest struct {
	Center [2]float64 `json:"center"`
	Zoom   float64    `json:"zoom"`
}

type StateResponse struct {
	Origins      []domain.Point  `json:"origins"`
	Destinations []domain.Point  `json:"destinations"`
	Mode         domain.Mode     `json:"mode"`
	Viewport     domain.Viewport `json:"viewport"`
	FitBounds    uint64          `json:"fitBounds"`
	Version      uint64          `json:"version"`
}

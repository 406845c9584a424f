package handlers

import (
	"context"
	"distance-matrix-service/internal/api/dto"
	"distance-matrix-service/internal/domain"
	"distance-matrix-service/internal/services"
	"net/http"

	"github.com/gin-gonic/gin"
)

// PointStore is the state the point endpoints drive.
type PointStore interface {
	Add(role domain.Role) (string, bool, error)
	Remove(id string, role domain.Role) error
	UpdateAddress(id string, role domain.Role, text string) error
	ResolveOnBlur(id string, role domain.Role) error
	AddFromMapClick(lat, lng float64, role domain.Role) (string, error)
	MoveViaDrag(id string, lat, lng float64) error
	SetMode(mode domain.Mode) error
	SetViewport(ctx context.Context, v domain.Viewport) error
	Snapshot() services.Snapshot
	Results() ([]domain.RouteResult, uint64)
}

type PointHandler struct {
	Store PointStore
}

func NewPointHandler(store PointStore) *PointHandler {
	return &PointHandler{Store: store}
}

// State handles GET /state.
func (h *PointHandler) State(c *gin.Context) {
	snap := h.Store.Snapshot()
	c.JSON(http.StatusOK, dto.StateResponse{
		Origins:      snap.Origins,
		Destinations: snap.Destinations,
		Mode:         snap.Mode,
		Viewport:     snap.Viewport,
		FitBounds:    snap.FitBounds,
		Version:      snap.Version,
	})
}

// Add handles POST /points. A refused add (second origin in one-to-many)
// answers 200 with added=false.
func (h *PointHandler) Add(c *gin.Context) {
	var req dto.AddPointRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid json body")
		return
	}

	role, ok := parseRole(c, req.Role)
	if !ok {
		return
	}

	id, added, err := h.Store.Add(role)
	if err != nil {
		writeDomainError(c, err)
		return
	}

	status := http.StatusOK
	if added {
		status = http.StatusCreated
	}
	c.JSON(status, dto.AddPointResponse{ID: id, Added: added})
}

// Remove handles DELETE /points/:role/:id.
func (h *PointHandler) Remove(c *gin.Context) {
	role, ok := parseRole(c, c.Param("role"))
	if !ok {
		return
	}

	if err := h.Store.Remove(c.Param("id"), role); err != nil {
		writeDomainError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// UpdateAddress handles PUT /points/:role/:id/address.
func (h *PointHandler) UpdateAddress(c *gin.Context) {
	role, ok := parseRole(c, c.Param("role"))
	if !ok {
		return
	}

	var req dto.UpdateAddressRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid json body")
		return
	}

	if err := h.Store.UpdateAddress(c.Param("id"), role, req.Address); err != nil {
		writeDomainError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// Resolve handles POST /points/:role/:id/resolve. Geocoding continues in
// the background; clients observe completion through GET /state.
func (h *PointHandler) Resolve(c *gin.Context) {
	role, ok := parseRole(c, c.Param("role"))
	if !ok {
		return
	}

	if err := h.Store.ResolveOnBlur(c.Param("id"), role); err != nil {
		writeDomainError(c, err)
		return
	}
	c.Status(http.StatusAccepted)
}

// MapClick handles POST /map-click.
func (h *PointHandler) MapClick(c *gin.Context) {
	var req dto.MapClickRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "lat, lng and role are required")
		return
	}

	role, ok := parseRole(c, req.Role)
	if !ok {
		return
	}

	id, err := h.Store.AddFromMapClick(*req.Lat, *req.Lng, role)
	if err != nil {
		writeDomainError(c, err)
		return
	}
	c.JSON(http.StatusAccepted, dto.PointIDResponse{ID: id})
}

// Move handles PUT /positions/:id.
func (h *PointHandler) Move(c *gin.Context) {
	var req dto.PositionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "lat and lng are required")
		return
	}

	if err := h.Store.MoveViaDrag(c.Param("id"), *req.Lat, *req.Lng); err != nil {
		writeDomainError(c, err)
		return
	}
	c.JSON(http.StatusAccepted, dto.PointIDResponse{ID: c.Param("id")})
}

// SetMode handles PUT /mode.
func (h *PointHandler) SetMode(c *gin.Context) {
	var req dto.ModeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "mode is required")
		return
	}

	if err := h.Store.SetMode(domain.Mode(req.Mode)); err != nil {
		writeDomainError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// SetViewport handles PUT /viewport.
func (h *PointHandler) SetViewport(c *gin.Context) {
	var req dto.ViewportRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid json body")
		return
	}

	v := domain.Viewport{Center: req.Center, Zoom: req.Zoom}
	if err := h.Store.SetViewport(c.Request.Context(), v); err != nil {
		writeDomainError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

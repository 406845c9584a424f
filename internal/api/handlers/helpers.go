package handlers

import (
	"distance-matrix-service/internal/domain"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
)

func writeError(c *gin.Context, status int, msg string) {
	c.JSON(status, gin.H{"error": msg})
}

// writeDomainError maps store errors onto HTTP statuses.
func writeDomainError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, domain.ErrPointNotFound):
		writeError(c, http.StatusNotFound, err.Error())
	case errors.Is(err, domain.ErrInvalidRole),
		errors.Is(err, domain.ErrInvalidMode),
		errors.Is(err, domain.ErrInvalidCoordinates):
		writeError(c, http.StatusBadRequest, err.Error())
	default:
		_ = c.Error(err)
		writeError(c, http.StatusInternalServerError, "internal server error")
	}
}

func parseRole(c *gin.Context, raw string) (domain.Role, bool) {
	role, err := domain.ParseRole(raw)
	if err != nil {
		writeError(c, http.StatusBadRequest, "role must be 'origin' or 'destination'")
		return "", false
	}
	return role, true
}

package http

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"questbudget/internal/core"
	"questbudget/internal/services"
)

// writeError maps domain errors onto HTTP statuses. Anything unmapped
// is a 500 with a generic body; the detail goes to the log, not the
// client.
func writeError(c *gin.Context, err error) {
	var (
		verr *core.ValidationError
		nerr *core.NotFoundError
		perr *core.PreconditionError
	)
	switch {
	case errors.As(err, &verr):
		c.JSON(http.StatusBadRequest, gin.H{"error": verr.Msg})
	case errors.As(err, &perr):
		c.JSON(http.StatusBadRequest, gin.H{"error": perr.Msg})
	case errors.As(err, &nerr):
		c.JSON(http.StatusNotFound, gin.H{"error": nerr.Msg})
	case errors.Is(err, services.ErrInvalidCredentials):
		c.JSON(http.StatusUnauthorized, gin.H{"error": services.ErrInvalidCredentials.Error()})
	default:
		slog.ErrorContext(c.Request.Context(), "request failed",
			"method", c.Request.Method,
			"path", c.FullPath(),
			"error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
	}
}

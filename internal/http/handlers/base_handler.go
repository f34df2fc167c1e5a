// README: Shared handler helpers: JSON responses and the mapping from
// domain errors to HTTP status codes. Error strings go to clients
// verbatim; mobile apps match on them.
package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"usta/internal/modules/order"
)

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(c *gin.Context, status int, v any) {
	c.JSON(status, v)
}

func writeError(c *gin.Context, status int, msg string) {
	writeJSON(c, status, errorResponse{Error: msg})
}

func writeOrderError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, order.ErrBadRequest):
		writeError(c, http.StatusBadRequest, err.Error())
	case errors.Is(err, order.ErrOrderNotFound):
		writeError(c, http.StatusNotFound, err.Error())
	case errors.Is(err, order.ErrPermissionDenied):
		writeError(c, http.StatusForbidden, err.Error())
	case errors.Is(err, order.ErrOrderNotAvailable),
		errors.Is(err, order.ErrWorkerNotAvailable),
		errors.Is(err, order.ErrNotNotified),
		errors.Is(err, order.ErrAlreadyAccepted),
		errors.Is(err, order.ErrNotConfirmable),
		errors.Is(err, order.ErrNotParticipant),
		errors.Is(err, order.ErrNotCancellable),
		errors.Is(err, order.ErrNoWorkersToCancel):
		writeError(c, http.StatusConflict, err.Error())
	default:
		writeError(c, http.StatusInternalServerError, "internal error")
	}
}

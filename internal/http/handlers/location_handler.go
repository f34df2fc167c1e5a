// README: Worker location ping. Doubles as the availability toggle via
// the is_active flag.
package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"usta/internal/http/middleware"
	"usta/internal/modules/location"
	"usta/internal/types"
)

type LocationHandler struct {
	location *location.Service
}

func NewLocationHandler(svc *location.Service) *LocationHandler {
	return &LocationHandler{location: svc}
}

type pingReq struct {
	Lat         float64 `json:"lat"`
	Lng         float64 `json:"lng"`
	IsActive    bool    `json:"is_active"`
	Status      string  `json:"status"`
	JobCategory int64   `json:"job_category"`
	JobIDs      []int64 `json:"job_ids"`
	Region      int64   `json:"region"`
	City        int64   `json:"city"`
	Gender      string  `json:"gender"`
	DeviceToken string  `json:"device_token"`
}

// Ping replaces the caller's cached snapshot wholesale.
func (h *LocationHandler) Ping(c *gin.Context) {
	var req pingReq
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid json")
		return
	}
	status := req.Status
	if status == "" {
		status = types.WorkerIdle
	}
	err := h.location.Update(c.Request.Context(), location.Snapshot{
		WorkerID:    middleware.CallerUID(c),
		Status:      status,
		IsActive:    req.IsActive,
		JobCategory: req.JobCategory,
		JobIDs:      req.JobIDs,
		Region:      req.Region,
		City:        req.City,
		Gender:      req.Gender,
		Position:    types.Point{Lat: req.Lat, Lng: req.Lng},
		DeviceToken: req.DeviceToken,
	})
	if err != nil {
		if errors.Is(err, location.ErrBadPing) {
			writeError(c, http.StatusBadRequest, err.Error())
			return
		}
		writeError(c, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(c, http.StatusOK, gin.H{"status": "ok"})
}

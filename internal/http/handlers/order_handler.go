// README: Order endpoints: create (returns the eligible-worker list),
// dispatch fan-out, detail, accepted workers, history, stats.
package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"usta/internal/http/middleware"
	"usta/internal/modules/location"
	"usta/internal/modules/matching"
	"usta/internal/modules/order"
	"usta/internal/types"
)

type OrderHandler struct {
	order     *order.Service
	matcher   *matching.Service
	snapshots location.Store
}

func NewOrderHandler(orderSvc *order.Service, matcher *matching.Service, snapshots location.Store) *OrderHandler {
	return &OrderHandler{order: orderSvc, matcher: matcher, snapshots: snapshots}
}

type orderView struct {
	ID               types.ID     `json:"id"`
	ClientID         types.ID     `json:"client_id"`
	WorkerID         *types.ID    `json:"worker_id,omitempty"`
	JobCategory      int64        `json:"job_category"`
	JobIDs           []int64      `json:"job_ids,omitempty"`
	Region           int64        `json:"region"`
	City             int64        `json:"city"`
	Gender           string       `json:"gender,omitempty"`
	Desc             string       `json:"description"`
	FullDesc         string       `json:"full_description,omitempty"`
	Price            string       `json:"price"`
	WorkerCount      int          `json:"worker_count"`
	Location         types.Point  `json:"location"`
	Status           order.Status `json:"status"`
	Notified         []types.ID   `json:"notified_workers"`
	Accepted         []types.ID   `json:"accepted_workers"`
	Rejected         []types.ID   `json:"rejected_workers"`
	Finished         []types.ID   `json:"finished_workers"`
	ClientIsFinished bool         `json:"client_is_finished"`
}

func toOrderView(o *order.Order) orderView {
	return orderView{
		ID:               o.ID,
		ClientID:         o.ClientID,
		WorkerID:         o.WorkerID,
		JobCategory:      o.JobCategory,
		JobIDs:           o.JobIDs,
		Region:           o.Region,
		City:             o.City,
		Gender:           o.Gender,
		Desc:             o.Desc,
		FullDesc:         o.FullDesc,
		Price:            o.Price,
		WorkerCount:      o.WorkerCount,
		Location:         o.Location,
		Status:           o.Status,
		Notified:         o.Notified.Members(),
		Accepted:         o.Accepted.Members(),
		Rejected:         o.Rejected.Members(),
		Finished:         o.Finished.Members(),
		ClientIsFinished: o.ClientIsFinished,
	}
}

type workerView struct {
	WorkerID   types.ID    `json:"worker_id"`
	Position   types.Point `json:"position"`
	DistanceKm float64     `json:"distance_km"`
}

func toWorkerViews(matches []matching.Match) []workerView {
	out := make([]workerView, len(matches))
	for i, m := range matches {
		out[i] = workerView{
			WorkerID:   m.Worker.WorkerID,
			Position:   m.Worker.Position,
			DistanceKm: m.DistanceKm,
		}
	}
	return out
}

type createOrderReq struct {
	JobCategory int64   `json:"job_category"`
	JobIDs      []int64 `json:"job_ids"`
	Region      int64   `json:"region"`
	City        int64   `json:"city"`
	Gender      string  `json:"gender"`
	Desc        string  `json:"description"`
	FullDesc    string  `json:"full_description"`
	Price       string  `json:"price"`
	WorkerCount int     `json:"worker_count"`
	Lat         float64 `json:"lat"`
	Lng         float64 `json:"lng"`
}

// Create stores a new order and returns it together with the workers
// it could be dispatched to right now.
func (h *OrderHandler) Create(c *gin.Context) {
	var req createOrderReq
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid json")
		return
	}

	o, err := h.order.Create(c.Request.Context(), order.CreateCommand{
		ClientID:    middleware.CallerUID(c),
		JobCategory: req.JobCategory,
		JobIDs:      req.JobIDs,
		Region:      req.Region,
		City:        req.City,
		Gender:      req.Gender,
		Desc:        req.Desc,
		FullDesc:    req.FullDesc,
		Price:       req.Price,
		WorkerCount: req.WorkerCount,
		Location:    &types.Point{Lat: req.Lat, Lng: req.Lng},
	})
	if err != nil {
		writeOrderError(c, err)
		return
	}

	matches, err := h.matcher.FindEligible(c.Request.Context(), o, 0)
	if err != nil {
		writeOrderError(c, err)
		return
	}
	writeJSON(c, http.StatusCreated, gin.H{
		"order":   toOrderView(o),
		"workers": toWorkerViews(matches),
	})
}

type dispatchReq struct {
	WorkerIDs []types.ID `json:"worker_ids"`
}

// Dispatch fans the offer out to the client's chosen workers.
func (h *OrderHandler) Dispatch(c *gin.Context) {
	var req dispatchReq
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid json")
		return
	}
	notified, err := h.order.Dispatch(c.Request.Context(), order.DispatchCommand{
		OrderID:   types.ID(c.Param("id")),
		ClientID:  middleware.CallerUID(c),
		WorkerIDs: req.WorkerIDs,
	})
	if err != nil {
		writeOrderError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, gin.H{"notified": notified})
}

// Get returns the full order to its client or to any worker that has
// been involved with it.
func (h *OrderHandler) Get(c *gin.Context) {
	o, err := h.order.Get(c.Request.Context(), types.ID(c.Param("id")))
	if err != nil {
		writeOrderError(c, err)
		return
	}
	uid := middleware.CallerUID(c)
	involved := o.ClientID == uid ||
		o.Notified.Has(uid) || o.Accepted.Has(uid) ||
		o.Rejected.Has(uid) || o.Finished.Has(uid)
	if !involved {
		writeOrderError(c, order.ErrPermissionDenied)
		return
	}
	writeJSON(c, http.StatusOK, toOrderView(o))
}

// Workers re-runs the matcher for an existing order, optionally capped
// by ?max_radius= kilometres.
func (h *OrderHandler) Workers(c *gin.Context) {
	o, err := h.order.Get(c.Request.Context(), types.ID(c.Param("id")))
	if err != nil {
		writeOrderError(c, err)
		return
	}
	if o.ClientID != middleware.CallerUID(c) {
		writeOrderError(c, order.ErrPermissionDenied)
		return
	}

	var maxRadius float64
	if raw := c.Query("max_radius"); raw != "" {
		maxRadius, err = strconv.ParseFloat(raw, 64)
		if err != nil || maxRadius <= 0 {
			writeError(c, http.StatusBadRequest, "invalid max_radius")
			return
		}
	}
	matches, err := h.matcher.FindEligible(c.Request.Context(), o, maxRadius)
	if err != nil {
		writeOrderError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, gin.H{"workers": toWorkerViews(matches)})
}

// Accepted lists the accepted workers of the caller's order, with their
// last known position when the cache has one.
func (h *OrderHandler) Accepted(c *gin.Context) {
	o, err := h.order.Get(c.Request.Context(), types.ID(c.Param("id")))
	if err != nil {
		writeOrderError(c, err)
		return
	}
	if o.ClientID != middleware.CallerUID(c) {
		writeOrderError(c, order.ErrPermissionDenied)
		return
	}

	workers := make([]workerView, 0, len(o.Accepted))
	for _, id := range o.Accepted.Members() {
		view := workerView{WorkerID: id}
		if snap, ok, err := h.snapshots.Get(c.Request.Context(), id); err == nil && ok {
			view.Position = snap.Position
			view.DistanceKm = location.DistanceKm(o.Location, snap.Position)
		}
		workers = append(workers, view)
	}
	writeJSON(c, http.StatusOK, gin.H{"workers": workers})
}

// History returns the caller's in-progress and completed orders.
func (h *OrderHandler) History(c *gin.Context) {
	list, err := h.order.ListByClient(c.Request.Context(), middleware.CallerUID(c))
	if err != nil {
		writeOrderError(c, err)
		return
	}
	views := make([]orderView, len(list))
	for i, o := range list {
		views[i] = toOrderView(o)
	}
	writeJSON(c, http.StatusOK, gin.H{"orders": views})
}

func (h *OrderHandler) WorkerStats(c *gin.Context) {
	stats, err := h.order.WorkerStats(c.Request.Context(), middleware.CallerUID(c))
	if err != nil {
		writeOrderError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, gin.H{
		"total":            stats.Total,
		"success":          stats.Success,
		"cancelled_client": stats.CancelClient,
	})
}

func (h *OrderHandler) ClientStats(c *gin.Context) {
	stats, err := h.order.ClientStats(c.Request.Context(), middleware.CallerUID(c))
	if err != nil {
		writeOrderError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, gin.H{
		"cancelled": stats.Cancelled,
		"active":    stats.Active,
		"completed": stats.Completed,
	})
}

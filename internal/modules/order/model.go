// README: Order aggregate, status definitions, and worker membership sets.
package order

import (
	"sort"
	"time"

	"usta/internal/types"
)

type Status string

const (
	StatusStable       Status = "stable"
	StatusInProgress   Status = "in_progress"
	StatusSuccess      Status = "success"
	StatusCancelClient Status = "cancel_client"
	StatusCancelWorker Status = "cancel_worker"
)

// Terminal reports whether no further transition is defined from s.
func (s Status) Terminal() bool {
	switch s {
	case StatusSuccess, StatusCancelClient, StatusCancelWorker:
		return true
	}
	return false
}

// WorkerSet is a set of worker ids attached to an order in one of the
// membership roles (notified / accepted / rejected / finished).
type WorkerSet map[types.ID]struct{}

func NewWorkerSet(ids ...types.ID) WorkerSet {
	s := make(WorkerSet, len(ids))
	for _, id := range ids {
		s[id] = struct{}{}
	}
	return s
}

func (s WorkerSet) Has(id types.ID) bool { _, ok := s[id]; return ok }

func (s WorkerSet) Add(id types.ID)    { s[id] = struct{}{} }
func (s WorkerSet) Remove(id types.ID) { delete(s, id) }

// Members returns the ids in a stable order.
func (s WorkerSet) Members() []types.ID {
	out := make([]types.ID, 0, len(s))
	for id := range s {
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func (s WorkerSet) Equal(other WorkerSet) bool {
	if len(s) != len(other) {
		return false
	}
	for id := range s {
		if !other.Has(id) {
			return false
		}
	}
	return true
}

func (s WorkerSet) Clone() WorkerSet {
	out := make(WorkerSet, len(s))
	for id := range s {
		out[id] = struct{}{}
	}
	return out
}

// Order is a client's request for work and the full coordination state
// around it. The four membership sets are pairwise disjoint for any
// given worker; only the coordinator mutates status or the sets.
type Order struct {
	ID       types.ID
	ClientID types.ID
	// WorkerID is the legacy single-assignee field, kept for older
	// readers; it mirrors the first accepted worker.
	WorkerID    *types.ID
	JobCategory int64
	JobIDs      []int64
	Region      int64
	City        int64
	// Gender restricts eligible workers; empty means no preference.
	Gender      string
	Desc        string
	FullDesc    string
	Price       string
	WorkerCount int
	Location    types.Point

	Status           Status
	Notified         WorkerSet
	Accepted         WorkerSet
	Rejected         WorkerSet
	Finished         WorkerSet
	ClientIsFinished bool

	CreatedAt time.Time
}

// Clone deep-copies the aggregate so callers outside the critical
// section never share set storage with the store.
func (o *Order) Clone() *Order {
	cp := *o
	if o.WorkerID != nil {
		w := *o.WorkerID
		cp.WorkerID = &w
	}
	cp.JobIDs = append([]int64(nil), o.JobIDs...)
	cp.Notified = o.Notified.Clone()
	cp.Accepted = o.Accepted.Clone()
	cp.Rejected = o.Rejected.Clone()
	cp.Finished = o.Finished.Clone()
	return &cp
}

// WorkerStats summarises a worker's participation history.
type WorkerStats struct {
	Total        int `json:"total_orders"`
	Success      int `json:"success_orders"`
	CancelClient int `json:"cancel_client_orders"`
}

// ClientStats summarises a client's order history.
type ClientStats struct {
	Cancelled int `json:"cancelled_by_client"`
	Active    int `json:"active_orders"`
	Completed int `json:"completed_orders"`
}

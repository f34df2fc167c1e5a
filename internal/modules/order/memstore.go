// README: In-memory Store with the same semantics as PGStore. Used by
// tests, the bench tool, and single-node deployments without Postgres.
package order

import (
	"context"
	"sync"

	"usta/internal/types"
)

type memWorker struct {
	status string
	point  types.Point
}

type MemStore struct {
	mu      sync.Mutex
	orders  map[types.ID]*Order
	workers map[types.ID]*memWorker
}

func NewMemStore() *MemStore {
	return &MemStore{
		orders:  make(map[types.ID]*Order),
		workers: make(map[types.ID]*memWorker),
	}
}

func (s *MemStore) Create(_ context.Context, o *Order) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.orders[o.ID] = o.Clone()
	return nil
}

func (s *MemStore) Get(_ context.Context, id types.ID) (*Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orders[id]
	if !ok {
		return nil, ErrOrderNotFound
	}
	return o.Clone(), nil
}

func (s *MemStore) Update(_ context.Context, o *Order) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.orders[o.ID]; !ok {
		return ErrOrderNotFound
	}
	s.orders[o.ID] = o.Clone()
	return nil
}

// worker returns the tracked worker record, registering unknown workers
// as idle. The durable system would have a user row already.
func (s *MemStore) worker(id types.ID) *memWorker {
	w, ok := s.workers[id]
	if !ok {
		w = &memWorker{status: types.WorkerIdle}
		s.workers[id] = w
	}
	return w
}

func (s *MemStore) ClaimWorker(_ context.Context, workerID types.ID) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	w := s.worker(workerID)
	if w.status != types.WorkerIdle {
		return false, nil
	}
	w.status = types.WorkerWorking
	return true, nil
}

func (s *MemStore) ReleaseWorker(_ context.Context, workerID types.ID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.worker(workerID).status = types.WorkerIdle
	return nil
}

func (s *MemStore) SavePoint(_ context.Context, workerID types.ID, p types.Point) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.worker(workerID).point = p
	return nil
}

func (s *MemStore) ListByClient(_ context.Context, clientID types.ID) ([]*Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var inProgress, done []*Order
	for _, o := range s.orders {
		if o.ClientID != clientID {
			continue
		}
		switch o.Status {
		case StatusInProgress:
			inProgress = append(inProgress, o.Clone())
		case StatusSuccess:
			done = append(done, o.Clone())
		}
	}
	sortNewestFirst(inProgress)
	sortNewestFirst(done)
	return append(inProgress, done...), nil
}

func sortNewestFirst(orders []*Order) {
	for i := 1; i < len(orders); i++ {
		key := orders[i]
		j := i - 1
		for j >= 0 && orders[j].CreatedAt.Before(key.CreatedAt) {
			orders[j+1] = orders[j]
			j--
		}
		orders[j+1] = key
	}
}

func (s *MemStore) WorkerStats(_ context.Context, workerID types.ID) (WorkerStats, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var stats WorkerStats
	for _, o := range s.orders {
		if !o.Accepted.Has(workerID) {
			continue
		}
		stats.Total++
		switch o.Status {
		case StatusSuccess:
			stats.Success++
		case StatusCancelClient:
			stats.CancelClient++
		}
	}
	return stats, nil
}

func (s *MemStore) ClientStats(_ context.Context, clientID types.ID) (ClientStats, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var stats ClientStats
	for _, o := range s.orders {
		if o.ClientID != clientID {
			continue
		}
		switch o.Status {
		case StatusCancelClient:
			stats.Cancelled++
		case StatusInProgress:
			stats.Active++
		case StatusSuccess:
			stats.Completed++
		}
	}
	return stats, nil
}

// SetWorkerStatus seeds a worker's availability; test and bench helper.
func (s *MemStore) SetWorkerStatus(workerID types.ID, status string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.worker(workerID).status = status
}

// WorkerStatus reads a worker's availability back; test helper, not
// part of Store.
func (s *MemStore) WorkerStatus(workerID types.ID) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.worker(workerID).status
}

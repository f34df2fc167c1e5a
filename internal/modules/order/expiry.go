// README: Cancellable per-offer expiry timers. Accept and Reject cancel
// the timer; a timer that still fires re-validates under the order lock
// and no-ops if the offer was already resolved.
package order

import (
	"sync"
	"time"

	"usta/internal/types"
)

type offerKey struct {
	orderID  types.ID
	workerID types.ID
}

type ExpiryScheduler struct {
	mu     sync.Mutex
	timers map[offerKey]*time.Timer
}

func NewExpiryScheduler() *ExpiryScheduler {
	return &ExpiryScheduler{timers: make(map[offerKey]*time.Timer)}
}

// Schedule arms a timer for the (order, worker) offer. Re-scheduling an
// already-armed offer resets the window.
func (s *ExpiryScheduler) Schedule(orderID, workerID types.ID, d time.Duration, fire func()) {
	key := offerKey{orderID: orderID, workerID: workerID}
	s.mu.Lock()
	defer s.mu.Unlock()
	if t, ok := s.timers[key]; ok {
		t.Stop()
	}
	s.timers[key] = time.AfterFunc(d, func() {
		s.forget(key)
		fire()
	})
}

// Cancel disarms the offer's timer. If the timer already fired, the
// fire path re-validates state itself, so a lost race here is harmless.
func (s *ExpiryScheduler) Cancel(orderID, workerID types.ID) {
	key := offerKey{orderID: orderID, workerID: workerID}
	s.mu.Lock()
	defer s.mu.Unlock()
	if t, ok := s.timers[key]; ok {
		t.Stop()
		delete(s.timers, key)
	}
}

// Stop disarms every pending timer; used on shutdown.
func (s *ExpiryScheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for key, t := range s.timers {
		t.Stop()
		delete(s.timers, key)
	}
}

// Pending reports the number of armed timers.
func (s *ExpiryScheduler) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.timers)
}

func (s *ExpiryScheduler) forget(key offerKey) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.timers, key)
}

// README: Order lifecycle coordinator. Owns every status transition and
// worker-set mutation; all actions run inside the per-order critical
// section and commit before any notification goes out.
package order

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"usta/internal/config"
	"usta/internal/types"
)

// Notifier delivers lifecycle events. Delivery is best-effort and must
// never fail or roll back a committed mutation, so these methods do not
// return errors.
type Notifier interface {
	OfferToWorker(ctx context.Context, workerID types.ID, o *Order, distanceKm float64)
	UpdateToClient(ctx context.Context, o *Order, workerID types.ID, event string)
	TimeoutToClient(ctx context.Context, clientID, orderID, workerID types.ID)
}

// Candidate is a worker cleared for dispatch with its distance to the
// order, used to enrich the offer.
type Candidate struct {
	WorkerID   types.ID
	DistanceKm float64
}

// Eligibility narrows an explicit worker selection to those who still
// pass the order's matching filters. Implemented by the matcher.
type Eligibility interface {
	FilterEligible(ctx context.Context, o *Order, ids []types.ID) ([]Candidate, error)
}

// StatusMirror propagates worker status flips into the location cache
// so the matcher stops offering busy workers promptly. Best-effort.
type StatusMirror interface {
	SetStatus(ctx context.Context, id types.ID, status string) error
}

// Lifecycle event names carried in order_update payloads.
const (
	EventAccepted  = "accepted"
	EventRejected  = "rejected"
	EventCancelled = "cancelled"
	EventSuccess   = "success"
)

type Service struct {
	store       Store
	locks       keyedMutex
	expiry      *ExpiryScheduler
	notifier    Notifier
	eligibility Eligibility
	mirror      StatusMirror
	cfg         config.DispatchConfig
	log         *zap.Logger
}

func NewService(store Store, notifier Notifier, cfg config.DispatchConfig, log *zap.Logger) *Service {
	if cfg.OfferTTL <= 0 {
		cfg.OfferTTL = 60 * time.Second
	}
	return &Service{
		store:    store,
		expiry:   NewExpiryScheduler(),
		notifier: notifier,
		cfg:      cfg,
		log:      log,
	}
}

// SetEligibility wires the matcher in after construction; the matcher
// depends on this package, so the dependency cannot point the other way.
func (s *Service) SetEligibility(e Eligibility) { s.eligibility = e }

// SetStatusMirror wires the location cache in.
func (s *Service) SetStatusMirror(m StatusMirror) { s.mirror = m }

// Close disarms all pending offer timers.
func (s *Service) Close() { s.expiry.Stop() }

type CreateCommand struct {
	ClientID    types.ID
	JobCategory int64
	JobIDs      []int64
	Region      int64
	City        int64
	Gender      string
	Desc        string
	FullDesc    string
	Price       string
	WorkerCount int
	Location    *types.Point
}

type DispatchCommand struct {
	OrderID   types.ID
	ClientID  types.ID
	WorkerIDs []types.ID
}

type AcceptCommand struct {
	OrderID  types.ID
	WorkerID types.ID
}

type RejectCommand struct {
	OrderID  types.ID
	WorkerID types.ID
}

type ConfirmCommand struct {
	OrderID types.ID
	ActorID types.ID
}

type CancelCommand struct {
	OrderID types.ID
	ActorID types.ID
	// WorkerIDs is the client-supplied removal set. Worker-initiated
	// cancels must leave it empty; the set is always exactly {actor}.
	WorkerIDs []types.ID
}

// Create validates and persists a new order in status stable. An order
// without a location can never be matched, so it is rejected here.
func (s *Service) Create(ctx context.Context, cmd CreateCommand) (*Order, error) {
	if cmd.ClientID == "" || cmd.Location == nil {
		return nil, ErrBadRequest
	}
	if cmd.Location.Lat < -90 || cmd.Location.Lat > 90 || cmd.Location.Lng < -180 || cmd.Location.Lng > 180 {
		return nil, ErrBadRequest
	}
	if cmd.WorkerCount <= 0 {
		cmd.WorkerCount = 1
	}

	o := &Order{
		ID:          types.ID(uuid.NewString()),
		ClientID:    cmd.ClientID,
		JobCategory: cmd.JobCategory,
		JobIDs:      append([]int64(nil), cmd.JobIDs...),
		Region:      cmd.Region,
		City:        cmd.City,
		Gender:      cmd.Gender,
		Desc:        cmd.Desc,
		FullDesc:    cmd.FullDesc,
		Price:       cmd.Price,
		WorkerCount: cmd.WorkerCount,
		Location:    *cmd.Location,
		Status:      StatusStable,
		Notified:    NewWorkerSet(),
		Accepted:    NewWorkerSet(),
		Rejected:    NewWorkerSet(),
		Finished:    NewWorkerSet(),
		CreatedAt:   time.Now().UTC(),
	}
	if err := s.store.Create(ctx, o); err != nil {
		return nil, err
	}
	return o.Clone(), nil
}

// Dispatch fans an offer out to the client's selected workers. The
// selection is intersected with the current eligible set, each selected
// worker joins notified_workers, and a per-worker expiry timer is
// armed. Returns how many workers were notified.
func (s *Service) Dispatch(ctx context.Context, cmd DispatchCommand) (int, error) {
	if cmd.OrderID == "" {
		return 0, ErrBadRequest
	}

	unlock := s.locks.lock(cmd.OrderID)
	o, err := s.store.Get(ctx, cmd.OrderID)
	if err != nil {
		unlock()
		return 0, err
	}
	if o.ClientID != cmd.ClientID {
		unlock()
		return 0, ErrPermissionDenied
	}
	if o.Status.Terminal() {
		unlock()
		return 0, ErrOrderNotAvailable
	}

	candidates := make([]Candidate, 0, len(cmd.WorkerIDs))
	if s.eligibility != nil {
		candidates, err = s.eligibility.FilterEligible(ctx, o, cmd.WorkerIDs)
		if err != nil {
			unlock()
			return 0, err
		}
	} else {
		for _, id := range cmd.WorkerIDs {
			candidates = append(candidates, Candidate{WorkerID: id})
		}
	}

	var notified []Candidate
	for _, c := range candidates {
		if o.Notified.Has(c.WorkerID) || o.Accepted.Has(c.WorkerID) || o.Rejected.Has(c.WorkerID) {
			continue
		}
		o.Notified.Add(c.WorkerID)
		notified = append(notified, c)
	}
	if len(notified) > 0 {
		if err := s.store.Update(ctx, o); err != nil {
			unlock()
			return 0, err
		}
	}
	snapshot := o.Clone()
	unlock()

	for _, c := range notified {
		workerID := c.WorkerID
		s.expiry.Schedule(snapshot.ID, workerID, s.cfg.OfferTTL, func() {
			// Timers outlive the request; expiry runs on its own context.
			if err := s.Expire(context.Background(), snapshot.ID, workerID); err != nil {
				s.log.Warn("offer expiry",
					zap.String("order_id", string(snapshot.ID)),
					zap.String("worker_id", string(workerID)),
					zap.Error(err))
			}
		})
		s.notifier.OfferToWorker(ctx, workerID, snapshot, c.DistanceKm)
	}
	return len(notified), nil
}

// Accept moves a worker from notified to accepted and marks them
// working. The store-level idle→working claim is what makes two orders
// racing for the same worker resolve to a single winner.
func (s *Service) Accept(ctx context.Context, cmd AcceptCommand) error {
	if cmd.OrderID == "" || cmd.WorkerID == "" {
		return ErrBadRequest
	}

	unlock := s.locks.lock(cmd.OrderID)
	o, err := s.store.Get(ctx, cmd.OrderID)
	if err != nil {
		unlock()
		return err
	}
	if o.Status != StatusStable && o.Status != StatusInProgress {
		unlock()
		return ErrOrderNotAvailable
	}
	if s.cfg.EnforceWorkerCount && o.WorkerCount > 0 && len(o.Accepted) >= o.WorkerCount {
		unlock()
		return ErrOrderNotAvailable
	}

	claimed, err := s.store.ClaimWorker(ctx, cmd.WorkerID)
	if err != nil {
		unlock()
		return err
	}
	if !claimed {
		unlock()
		return ErrWorkerNotAvailable
	}

	o.Notified.Remove(cmd.WorkerID)
	o.Accepted.Add(cmd.WorkerID)
	if o.Status == StatusStable {
		o.Status = StatusInProgress
	}
	if o.WorkerID == nil {
		w := cmd.WorkerID
		o.WorkerID = &w
	}
	if err := s.store.Update(ctx, o); err != nil {
		// The claim must not leak if the aggregate write failed.
		if relErr := s.store.ReleaseWorker(ctx, cmd.WorkerID); relErr != nil {
			s.log.Error("release worker after failed update",
				zap.String("worker_id", string(cmd.WorkerID)), zap.Error(relErr))
		}
		unlock()
		return err
	}
	snapshot := o.Clone()
	unlock()

	s.expiry.Cancel(cmd.OrderID, cmd.WorkerID)
	s.mirrorStatus(ctx, cmd.WorkerID, types.WorkerWorking)
	s.notifier.UpdateToClient(ctx, snapshot, cmd.WorkerID, EventAccepted)
	return nil
}

// Reject moves a worker from notified to rejected.
func (s *Service) Reject(ctx context.Context, cmd RejectCommand) error {
	if cmd.OrderID == "" || cmd.WorkerID == "" {
		return ErrBadRequest
	}

	unlock := s.locks.lock(cmd.OrderID)
	o, err := s.store.Get(ctx, cmd.OrderID)
	if err != nil {
		unlock()
		return err
	}
	if o.Accepted.Has(cmd.WorkerID) {
		unlock()
		return ErrAlreadyAccepted
	}
	if !o.Notified.Has(cmd.WorkerID) {
		unlock()
		return ErrNotNotified
	}
	if o.Status != StatusStable && o.Status != StatusInProgress {
		unlock()
		return ErrOrderNotAvailable
	}

	o.Notified.Remove(cmd.WorkerID)
	o.Rejected.Add(cmd.WorkerID)
	if err := s.store.Update(ctx, o); err != nil {
		unlock()
		return err
	}
	snapshot := o.Clone()
	unlock()

	s.expiry.Cancel(cmd.OrderID, cmd.WorkerID)
	s.notifier.UpdateToClient(ctx, snapshot, cmd.WorkerID, EventRejected)
	return nil
}

// Confirm records a completion signal from the client or an accepted
// worker. When every accepted worker has finished and the client has
// too, the order transitions to success exactly once.
func (s *Service) Confirm(ctx context.Context, cmd ConfirmCommand) error {
	if cmd.OrderID == "" || cmd.ActorID == "" {
		return ErrBadRequest
	}

	unlock := s.locks.lock(cmd.OrderID)
	o, err := s.store.Get(ctx, cmd.OrderID)
	if err != nil {
		unlock()
		return err
	}
	if o.Status != StatusInProgress {
		unlock()
		return ErrNotConfirmable
	}

	switch {
	case cmd.ActorID == o.ClientID:
		o.ClientIsFinished = true
	case o.Accepted.Has(cmd.ActorID):
		o.Finished.Add(cmd.ActorID)
	default:
		unlock()
		return ErrNotParticipant
	}

	completed := len(o.Accepted) > 0 && o.ClientIsFinished && o.Finished.Equal(o.Accepted)
	if completed {
		o.Status = StatusSuccess
	}
	if err := s.store.Update(ctx, o); err != nil {
		unlock()
		return err
	}
	snapshot := o.Clone()
	unlock()

	if completed {
		for _, workerID := range snapshot.Finished.Members() {
			if err := s.store.ReleaseWorker(ctx, workerID); err != nil {
				s.log.Error("release worker on completion",
					zap.String("worker_id", string(workerID)), zap.Error(err))
			}
			s.mirrorStatus(ctx, workerID, types.WorkerIdle)
		}
		s.notifier.UpdateToClient(ctx, snapshot, "", EventSuccess)
	}
	return nil
}

// Cancel removes accepted workers from an in-progress order. A worker
// may only remove themself; the client names the workers to remove.
func (s *Service) Cancel(ctx context.Context, cmd CancelCommand) error {
	if cmd.OrderID == "" || cmd.ActorID == "" {
		return ErrBadRequest
	}

	unlock := s.locks.lock(cmd.OrderID)
	o, err := s.store.Get(ctx, cmd.OrderID)
	if err != nil {
		unlock()
		return err
	}
	if o.Status != StatusInProgress {
		unlock()
		return ErrNotCancellable
	}

	byClient := cmd.ActorID == o.ClientID
	var targets []types.ID
	if byClient {
		if len(cmd.WorkerIDs) == 0 {
			unlock()
			return ErrNoWorkersToCancel
		}
		for _, workerID := range cmd.WorkerIDs {
			if !o.Accepted.Has(workerID) {
				unlock()
				return ErrNoWorkersToCancel
			}
		}
		targets = cmd.WorkerIDs
	} else {
		if !o.Accepted.Has(cmd.ActorID) {
			unlock()
			return ErrPermissionDenied
		}
		if len(cmd.WorkerIDs) > 0 && !(len(cmd.WorkerIDs) == 1 && cmd.WorkerIDs[0] == cmd.ActorID) {
			unlock()
			return ErrPermissionDenied
		}
		targets = []types.ID{cmd.ActorID}
	}

	for _, workerID := range targets {
		o.Accepted.Remove(workerID)
		o.Finished.Remove(workerID)
	}
	if len(o.Accepted) == 0 {
		if byClient {
			o.Status = StatusCancelClient
		} else {
			o.Status = StatusCancelWorker
		}
	}
	if err := s.store.Update(ctx, o); err != nil {
		unlock()
		return err
	}
	snapshot := o.Clone()
	unlock()

	for _, workerID := range targets {
		if err := s.store.ReleaseWorker(ctx, workerID); err != nil {
			s.log.Error("release worker on cancel",
				zap.String("worker_id", string(workerID)), zap.Error(err))
		}
		s.mirrorStatus(ctx, workerID, types.WorkerIdle)
	}
	if !byClient {
		s.notifier.UpdateToClient(ctx, snapshot, cmd.ActorID, EventCancelled)
	}
	return nil
}

// Expire evicts an unanswered offer. It races Accept and Reject by
// design: it takes the same order lock and re-reads current state, so
// if the offer was already resolved it becomes a no-op.
func (s *Service) Expire(ctx context.Context, orderID, workerID types.ID) error {
	unlock := s.locks.lock(orderID)
	o, err := s.store.Get(ctx, orderID)
	if err != nil {
		unlock()
		if errors.Is(err, ErrOrderNotFound) {
			// Order vanished before the timer fired; nothing to evict.
			return nil
		}
		return err
	}
	if !o.Notified.Has(workerID) {
		unlock()
		return nil
	}

	o.Notified.Remove(workerID)
	if err := s.store.Update(ctx, o); err != nil {
		unlock()
		return err
	}
	clientID := o.ClientID
	unlock()

	s.notifier.TimeoutToClient(ctx, clientID, orderID, workerID)
	return nil
}

func (s *Service) Get(ctx context.Context, id types.ID) (*Order, error) {
	return s.store.Get(ctx, id)
}

func (s *Service) ListByClient(ctx context.Context, clientID types.ID) ([]*Order, error) {
	return s.store.ListByClient(ctx, clientID)
}

func (s *Service) WorkerStats(ctx context.Context, workerID types.ID) (WorkerStats, error) {
	return s.store.WorkerStats(ctx, workerID)
}

func (s *Service) ClientStats(ctx context.Context, clientID types.ID) (ClientStats, error) {
	return s.store.ClientStats(ctx, clientID)
}

func (s *Service) mirrorStatus(ctx context.Context, workerID types.ID, status string) {
	if s.mirror == nil {
		return
	}
	if err := s.mirror.SetStatus(ctx, workerID, status); err != nil {
		s.log.Warn("mirror worker status",
			zap.String("worker_id", string(workerID)),
			zap.String("status", status),
			zap.Error(err))
	}
}

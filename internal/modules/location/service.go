// README: Location service handles high-frequency worker pings and the
// ephemeral-to-durable handoff on disconnect.
package location

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"usta/internal/types"
)

var ErrBadPing = errors.New("invalid location ping")

// DurablePoints persists a worker's last known coordinate to the
// durable user record. Implemented by the order store.
type DurablePoints interface {
	SavePoint(ctx context.Context, workerID types.ID, p types.Point) error
}

// GeoIndexer mirrors worker positions into a proximity index. Index
// writes are best-effort; the snapshot cache stays authoritative.
type GeoIndexer interface {
	AddWorker(ctx context.Context, id types.ID, p types.Point) error
	RemoveWorker(ctx context.Context, id types.ID) error
}

type Service struct {
	store   Store
	durable DurablePoints
	geo     GeoIndexer
	log     *zap.Logger
}

func NewService(store Store, durable DurablePoints, log *zap.Logger) *Service {
	return &Service{store: store, durable: durable, log: log}
}

// SetGeoIndexer enables position mirroring into a proximity index.
func (s *Service) SetGeoIndexer(geo GeoIndexer) { s.geo = geo }

// Update records a worker ping. The snapshot is written wholesale; the
// caller supplies every field except Role and UpdatedAt, which are
// stamped here.
func (s *Service) Update(ctx context.Context, snap Snapshot) error {
	if snap.WorkerID == "" {
		return ErrBadPing
	}
	snap.Role = types.RoleWorker
	snap.UpdatedAt = time.Now().UTC()
	if err := s.store.Upsert(ctx, snap); err != nil {
		return err
	}
	if s.geo != nil {
		if err := s.geo.AddWorker(ctx, snap.WorkerID, snap.Position); err != nil {
			s.log.Warn("geo index write", zap.String("worker_id", string(snap.WorkerID)), zap.Error(err))
		}
	}
	return nil
}

// HandleDisconnect moves the last cached coordinate into the durable
// worker record when a push connection tears down. A missing cache
// entry is a no-op, not an error.
func (s *Service) HandleDisconnect(ctx context.Context, workerID types.ID) {
	snap, ok, err := s.store.Get(ctx, workerID)
	if err != nil {
		s.log.Warn("location cache read on disconnect", zap.String("worker_id", string(workerID)), zap.Error(err))
		return
	}
	if !ok {
		return
	}
	if s.geo != nil {
		if err := s.geo.RemoveWorker(ctx, workerID); err != nil {
			s.log.Warn("geo index remove", zap.String("worker_id", string(workerID)), zap.Error(err))
		}
	}
	if s.durable == nil {
		return
	}
	if err := s.durable.SavePoint(ctx, workerID, snap.Position); err != nil {
		s.log.Warn("persist last point", zap.String("worker_id", string(workerID)), zap.Error(err))
	}
}

// Store exposes the underlying cache to collaborators that only mirror
// status flips into it.
func (s *Service) Store() Store {
	return s.store
}

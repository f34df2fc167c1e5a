package location

import (
	"context"
	"sync"
	"testing"

	"go.uber.org/zap"

	"usta/internal/types"
)

type recordingPoints struct {
	mu     sync.Mutex
	points map[types.ID]types.Point
}

func (r *recordingPoints) SavePoint(_ context.Context, id types.ID, p types.Point) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.points == nil {
		r.points = make(map[types.ID]types.Point)
	}
	r.points[id] = p
	return nil
}

func TestUpdateStampsRoleAndTime(t *testing.T) {
	store := NewMemStore()
	svc := NewService(store, nil, zap.NewNop())
	ctx := context.Background()

	err := svc.Update(ctx, Snapshot{
		WorkerID:    "w1",
		Status:      types.WorkerIdle,
		IsActive:    true,
		JobCategory: 5,
		Position:    types.Point{Lat: 41.311, Lng: 69.280},
	})
	if err != nil {
		t.Fatalf("update: %v", err)
	}

	snap, ok, err := store.Get(ctx, "w1")
	if err != nil || !ok {
		t.Fatalf("get: ok=%v err=%v", ok, err)
	}
	if snap.Role != types.RoleWorker {
		t.Errorf("role = %q, want worker", snap.Role)
	}
	if snap.UpdatedAt.IsZero() {
		t.Error("UpdatedAt not stamped")
	}
}

func TestUpdateRejectsEmptyID(t *testing.T) {
	svc := NewService(NewMemStore(), nil, zap.NewNop())
	if err := svc.Update(context.Background(), Snapshot{}); err != ErrBadPing {
		t.Fatalf("expected ErrBadPing, got %v", err)
	}
}

func TestUpsertReplacesWholesale(t *testing.T) {
	store := NewMemStore()
	ctx := context.Background()

	_ = store.Upsert(ctx, Snapshot{WorkerID: "w1", JobIDs: []int64{1, 2}, IsActive: true})
	_ = store.Upsert(ctx, Snapshot{WorkerID: "w1", JobCategory: 7})

	snap, _, _ := store.Get(ctx, "w1")
	if snap.IsActive || len(snap.JobIDs) != 0 || snap.JobCategory != 7 {
		t.Errorf("second upsert did not replace wholesale: %+v", snap)
	}
}

func TestHandleDisconnectPersistsLastPoint(t *testing.T) {
	store := NewMemStore()
	durable := &recordingPoints{}
	svc := NewService(store, durable, zap.NewNop())
	ctx := context.Background()

	pos := types.Point{Lat: 41.3, Lng: 69.2}
	_ = svc.Update(ctx, Snapshot{WorkerID: "w1", Position: pos})

	svc.HandleDisconnect(ctx, "w1")

	if got := durable.points["w1"]; got != pos {
		t.Errorf("persisted point = %+v, want %+v", got, pos)
	}
}

func TestHandleDisconnectMissIsNoop(t *testing.T) {
	durable := &recordingPoints{}
	svc := NewService(NewMemStore(), durable, zap.NewNop())

	svc.HandleDisconnect(context.Background(), "ghost")

	if len(durable.points) != 0 {
		t.Errorf("expected no persisted points, got %v", durable.points)
	}
}

func TestSetStatusMissingSnapshotIsNoop(t *testing.T) {
	store := NewMemStore()
	if err := store.SetStatus(context.Background(), "ghost", types.WorkerWorking); err != nil {
		t.Fatalf("set status on missing snapshot: %v", err)
	}
}

func TestSetStatusRewritesOnlyStatus(t *testing.T) {
	store := NewMemStore()
	ctx := context.Background()
	_ = store.Upsert(ctx, Snapshot{WorkerID: "w1", Status: types.WorkerIdle, JobCategory: 3})

	if err := store.SetStatus(ctx, "w1", types.WorkerWorking); err != nil {
		t.Fatalf("set status: %v", err)
	}
	snap, _, _ := store.Get(ctx, "w1")
	if snap.Status != types.WorkerWorking || snap.JobCategory != 3 {
		t.Errorf("unexpected snapshot after SetStatus: %+v", snap)
	}
}

// README: Location stores: Redis-backed for production, in-memory for
// tests, bench runs, and single-node deployments.
package location

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"usta/internal/types"
)

const keyPrefix = "worker:"

// Store is the worker location cache. Writes come from location pings,
// reads from the matcher. Scans need only be snapshot-consistent, not
// linearizable with respect to concurrent pings.
type Store interface {
	Upsert(ctx context.Context, snap Snapshot) error
	Get(ctx context.Context, id types.ID) (Snapshot, bool, error)
	ScanAll(ctx context.Context) ([]Snapshot, error)
	// SetStatus rewrites only the status field of a cached snapshot so
	// the matcher sees accept/release flips without waiting for the
	// next ping. Missing snapshot is a no-op.
	SetStatus(ctx context.Context, id types.ID, status string) error
}

// RedisStore keeps one JSON value per worker under "worker:<id>".
type RedisStore struct {
	redis *redis.Client
	// ttl expires stale snapshots; zero keeps them until overwritten.
	ttl time.Duration
}

func NewRedisStore(redis *redis.Client, ttl time.Duration) *RedisStore {
	return &RedisStore{redis: redis, ttl: ttl}
}

func (s *RedisStore) Upsert(ctx context.Context, snap Snapshot) error {
	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}
	return s.redis.Set(ctx, keyPrefix+string(snap.WorkerID), data, s.ttl).Err()
}

func (s *RedisStore) Get(ctx context.Context, id types.ID) (Snapshot, bool, error) {
	val, err := s.redis.Get(ctx, keyPrefix+string(id)).Result()
	if err == redis.Nil {
		return Snapshot{}, false, nil
	}
	if err != nil {
		return Snapshot{}, false, err
	}
	var snap Snapshot
	if err := json.Unmarshal([]byte(val), &snap); err != nil {
		return Snapshot{}, false, nil
	}
	return snap, true, nil
}

func (s *RedisStore) ScanAll(ctx context.Context) ([]Snapshot, error) {
	var snaps []Snapshot
	iter := s.redis.Scan(ctx, 0, keyPrefix+"*", 0).Iterator()
	for iter.Next(ctx) {
		val, err := s.redis.Get(ctx, iter.Val()).Result()
		if err != nil {
			// Key expired between SCAN and GET, or a transient error;
			// the entry is simply invisible to this scan.
			continue
		}
		var snap Snapshot
		if err := json.Unmarshal([]byte(val), &snap); err != nil {
			continue
		}
		snaps = append(snaps, snap)
	}
	if err := iter.Err(); err != nil {
		return nil, err
	}
	return snaps, nil
}

func (s *RedisStore) SetStatus(ctx context.Context, id types.ID, status string) error {
	snap, ok, err := s.Get(ctx, id)
	if err != nil || !ok {
		return err
	}
	snap.Status = status
	return s.Upsert(ctx, snap)
}

// MemStore is a map-backed Store with the same semantics.
type MemStore struct {
	mu    sync.RWMutex
	snaps map[types.ID]Snapshot
}

func NewMemStore() *MemStore {
	return &MemStore{snaps: make(map[types.ID]Snapshot)}
}

func (s *MemStore) Upsert(_ context.Context, snap Snapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snaps[snap.WorkerID] = snap
	return nil
}

func (s *MemStore) Get(_ context.Context, id types.ID) (Snapshot, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	snap, ok := s.snaps[id]
	return snap, ok, nil
}

func (s *MemStore) ScanAll(_ context.Context) ([]Snapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Snapshot, 0, len(s.snaps))
	for _, snap := range s.snaps {
		out = append(out, snap)
	}
	return out, nil
}

func (s *MemStore) SetStatus(_ context.Context, id types.ID, status string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	snap, ok := s.snaps[id]
	if !ok {
		return nil
	}
	snap.Status = status
	s.snaps[id] = snap
	return nil
}

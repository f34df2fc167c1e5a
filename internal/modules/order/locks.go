// README: Sharded per-order mutual exclusion. Every mutating action,
// including timer-fired expiry, serialises through the order's lock so
// read-validate-write is atomic per order.
package order

import (
	"hash/fnv"
	"sync"

	"usta/internal/types"
)

const lockShards = 128

type keyedMutex struct {
	shards [lockShards]sync.Mutex
}

// lock acquires the shard for the given order id and returns the
// matching unlock. Distinct orders may share a shard; that only costs
// throughput, never correctness.
func (m *keyedMutex) lock(id types.ID) func() {
	h := fnv.New32a()
	_, _ = h.Write([]byte(id))
	shard := &m.shards[h.Sum32()%lockShards]
	shard.Lock()
	return shard.Unlock
}

// README: Connection registry. Maps an actor to its live push
// connections; an actor with several devices has several entries.
package push

import (
	"sync"

	"usta/internal/types"
)

// Conn is one live push connection. Send must be safe for concurrent
// use; a failed send only affects that connection.
type Conn interface {
	Send(e Event) error
}

// actorKey namespaces ids by role so a user acting as both client and
// worker holds two separate registrations.
type actorKey struct {
	role string
	id   types.ID
}

func WorkerKey(id types.ID) ActorKey { return ActorKey{actorKey{role: types.RoleWorker, id: id}} }
func ClientKey(id types.ID) ActorKey { return ActorKey{actorKey{role: types.RoleClient, id: id}} }

// ActorKey is an opaque registry key; build one with WorkerKey or
// ClientKey.
type ActorKey struct {
	actorKey
}

type Registry struct {
	mu    sync.RWMutex
	conns map[actorKey]map[Conn]struct{}
}

func NewRegistry() *Registry {
	return &Registry{conns: make(map[actorKey]map[Conn]struct{})}
}

func (r *Registry) Register(key ActorKey, c Conn) {
	r.mu.Lock()
	defer r.mu.Unlock()
	set, ok := r.conns[key.actorKey]
	if !ok {
		set = make(map[Conn]struct{})
		r.conns[key.actorKey] = set
	}
	set[c] = struct{}{}
}

func (r *Registry) Unregister(key ActorKey, c Conn) {
	r.mu.Lock()
	defer r.mu.Unlock()
	set, ok := r.conns[key.actorKey]
	if !ok {
		return
	}
	delete(set, c)
	if len(set) == 0 {
		delete(r.conns, key.actorKey)
	}
}

// Send delivers the event to every live connection for the actor,
// best-effort, and reports how many sends succeeded. A disconnected
// actor simply misses the event.
func (r *Registry) Send(key ActorKey, e Event) int {
	r.mu.RLock()
	conns := make([]Conn, 0, len(r.conns[key.actorKey]))
	for c := range r.conns[key.actorKey] {
		conns = append(conns, c)
	}
	r.mu.RUnlock()

	var delivered int
	for _, c := range conns {
		if err := c.Send(e); err == nil {
			delivered++
		}
	}
	return delivered
}

// Connected reports whether the actor has at least one live connection.
func (r *Registry) Connected(key ActorKey) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.conns[key.actorKey]) > 0
}

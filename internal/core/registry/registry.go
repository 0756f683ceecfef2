package registry

import (
	"errors"
	"fmt"
	"sync"

	"github.com/cespare/xxhash/v2"

	"github.com/entitykit/entitykit/internal/core/actor"
)

var (
	// ErrIDConflict is returned by Register when the id is already bound
	// to a live actor.
	ErrIDConflict = errors.New("entity id already registered")

	// ErrIDNotFound is returned by Lookup for unknown ids.
	ErrIDNotFound = errors.New("entity id not registered")
)

const defaultShardCount = 16

// Registry is the process-wide name service from external entity ids to
// live actor handles. It is the only structure shared across actor
// execution contexts, so it is sharded by id hash with one lock per shard;
// Register is an atomic register-if-absent under the shard lock.
//
// Entries hold non-owning references: removal is driven by actor
// termination through the actor's OnStop hook, never the other way around.
type Registry struct {
	shards []shard
}

type shard struct {
	mu      sync.RWMutex
	entries map[string]*actor.Actor
}

// New builds a registry with the given shard count (a default is applied
// for values <= 0).
func New(shardCount int) *Registry {
	if shardCount <= 0 {
		shardCount = defaultShardCount
	}
	r := &Registry{shards: make([]shard, shardCount)}
	for i := range r.shards {
		r.shards[i].entries = make(map[string]*actor.Actor)
	}
	return r
}

func (r *Registry) shardFor(id string) *shard {
	return &r.shards[xxhash.Sum64String(id)%uint64(len(r.shards))]
}

// Register binds id to the handle. Exactly one of two racing Register calls
// for the same id wins; the other fails with ErrIDConflict.
func (r *Registry) Register(id string, a *actor.Actor) error {
	sh := r.shardFor(id)
	sh.mu.Lock()
	defer sh.mu.Unlock()

	if _, ok := sh.entries[id]; ok {
		return fmt.Errorf("%w: %s", ErrIDConflict, id)
	}
	sh.entries[id] = a
	return nil
}

// Lookup resolves id to its live handle.
func (r *Registry) Lookup(id string) (*actor.Actor, error) {
	sh := r.shardFor(id)
	sh.mu.RLock()
	defer sh.mu.RUnlock()

	a, ok := sh.entries[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrIDNotFound, id)
	}
	return a, nil
}

// Deregister removes the binding for id, but only when it still points at
// the given handle. The identity check keeps a racer that lost Register
// (and is now tearing its fresh actor down) from evicting the winner.
func (r *Registry) Deregister(id string, a *actor.Actor) {
	sh := r.shardFor(id)
	sh.mu.Lock()
	defer sh.mu.Unlock()

	if current, ok := sh.entries[id]; ok && current == a {
		delete(sh.entries, id)
	}
}

// Exists reports whether id is currently bound.
func (r *Registry) Exists(id string) bool {
	sh := r.shardFor(id)
	sh.mu.RLock()
	defer sh.mu.RUnlock()

	_, ok := sh.entries[id]
	return ok
}

// Len counts live entries across all shards.
func (r *Registry) Len() int {
	n := 0
	for i := range r.shards {
		sh := &r.shards[i]
		sh.mu.RLock()
		n += len(sh.entries)
		sh.mu.RUnlock()
	}
	return n
}

// ForEach visits every live entry. The visit runs outside the shard lock on
// a snapshot, so it is safe to stop actors from inside the callback.
// Returning false stops the iteration.
func (r *Registry) ForEach(fn func(id string, a *actor.Actor) bool) {
	for i := range r.shards {
		sh := &r.shards[i]

		sh.mu.RLock()
		ids := make([]string, 0, len(sh.entries))
		handles := make([]*actor.Actor, 0, len(sh.entries))
		for id, a := range sh.entries {
			ids = append(ids, id)
			handles = append(handles, a)
		}
		sh.mu.RUnlock()

		for j := range ids {
			if !fn(ids[j], handles[j]) {
				return
			}
		}
	}
}

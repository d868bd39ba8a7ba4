package slots

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// State is the allocation state of a slot.
type State int

const (
	StateAllocated State = iota + 1
	StateUploading
)

func (s State) String() string {
	switch s {
	case StateAllocated:
		return "allocated"
	case StateUploading:
		return "uploading"
	default:
		return "unknown"
	}
}

type entry struct {
	state       State
	allocatedAt time.Time
}

// Registry tracks provisioned upload slots for the life of the process.
// All methods are safe for concurrent use.
type Registry struct {
	mu    sync.Mutex
	slots map[uuid.UUID]entry
	now   func() time.Time
}

// Option customises a Registry.
type Option func(*Registry)

// WithClock overrides the time source used to stamp allocations.
func WithClock(now func() time.Time) Option {
	return func(r *Registry) {
		r.now = now
	}
}

// NewRegistry constructs an empty Registry.
func NewRegistry(opts ...Option) *Registry {
	r := &Registry{
		slots: make(map[uuid.UUID]entry),
		now:   time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Allocate issues a fresh random identifier in the allocated state.
func (r *Registry) Allocate() uuid.UUID {
	r.mu.Lock()
	defer r.mu.Unlock()

	for {
		id := uuid.New()
		if _, taken := r.slots[id]; taken {
			continue
		}
		r.slots[id] = entry{state: StateAllocated, allocatedAt: r.now()}
		return id
	}
}

// MarkUploading moves id from allocated to uploading. It reports false,
// leaving the registry untouched, when id is unknown or already uploading.
func (r *Registry) MarkUploading(id uuid.UUID) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.slots[id]
	if !ok || e.state != StateAllocated {
		return false
	}
	e.state = StateUploading
	r.slots[id] = e
	return true
}

// Release forgets id whatever its state. Releasing an absent id is a no-op.
func (r *Registry) Release(id uuid.UUID) {
	r.mu.Lock()
	delete(r.slots, id)
	r.mu.Unlock()
}

// State returns the current state of id and whether it is registered.
func (r *Registry) State(id uuid.UUID) (State, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.slots[id]
	return e.state, ok
}

// Len returns the number of registered slots.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.slots)
}

// SweepExpired removes allocated slots older than ttl and returns how many
// were dropped. Uploading slots are never swept; only Release removes them.
func (r *Registry) SweepExpired(ttl time.Duration) int {
	if ttl <= 0 {
		return 0
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	cutoff := r.now().Add(-ttl)
	swept := 0
	for id, e := range r.slots {
		if e.state == StateAllocated && e.allocatedAt.Before(cutoff) {
			delete(r.slots, id)
			swept++
		}
	}
	return swept
}

// RunJanitor sweeps expired allocations every interval until ctx is done.
func (r *Registry) RunJanitor(ctx context.Context, ttl, interval time.Duration, logger *zap.Logger) {
	if ttl <= 0 || interval <= 0 {
		return
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := r.SweepExpired(ttl); n > 0 {
				logger.Info("expired unused slots",
					zap.Int("count", n),
					zap.Duration("ttl", ttl),
					zap.Int("remaining", r.Len()),
				)
			}
		}
	}
}

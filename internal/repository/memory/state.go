// Package memory keeps checkout state in process. State is lost on restart
// and is not shared between replicas.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/032-extremist/redcart-checkout/internal/domain"
	"github.com/032-extremist/redcart-checkout/internal/repository"
)

type entry struct {
	state     *domain.OrchestrationState
	expiresAt time.Time
}

type lock struct {
	token string
	until time.Time
}

// StateRepository implements repository.StateRepository with maps.
type StateRepository struct {
	ttl time.Duration
	now func() time.Time

	mu     sync.Mutex
	states map[string]entry
	locks  map[string]lock
}

// NewStateRepository creates an empty store. States expire ttl after their
// last save; a zero ttl keeps them forever.
func NewStateRepository(ttl time.Duration) *StateRepository {
	return &StateRepository{
		ttl:    ttl,
		now:    time.Now,
		states: make(map[string]entry),
		locks:  make(map[string]lock),
	}
}

// Get returns a copy of the stored state.
func (r *StateRepository) Get(_ context.Context, key string) (*domain.OrchestrationState, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.live(key)
	if !ok {
		return domain.NewState(), nil
	}
	return e.state.Clone(), nil
}

// Save stores a copy of state when the stored version matches expected.
func (r *StateRepository) Save(_ context.Context, key string, state *domain.OrchestrationState, expected int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	var current int64
	if e, ok := r.live(key); ok {
		current = e.state.Version
	}
	if current != expected {
		return repository.ErrStaleState
	}

	e := entry{state: state.Clone()}
	if r.ttl > 0 {
		e.expiresAt = r.now().Add(r.ttl)
	}
	r.states[key] = e
	return nil
}

// live returns the unexpired entry for key, dropping an expired one.
// Callers hold r.mu.
func (r *StateRepository) live(key string) (entry, bool) {
	e, ok := r.states[key]
	if !ok {
		return entry{}, false
	}
	if !e.expiresAt.IsZero() && !r.now().Before(e.expiresAt) {
		delete(r.states, key)
		return entry{}, false
	}
	return e, true
}

// Delete removes the caller's state.
func (r *StateRepository) Delete(_ context.Context, key string) error {
	r.mu.Lock()
	delete(r.states, key)
	r.mu.Unlock()
	return nil
}

// Acquire takes the lock unless an unexpired one exists.
func (r *StateRepository) Acquire(_ context.Context, key, token string, ttl time.Duration) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	if l, held := r.locks[key]; held && now.Before(l.until) {
		return false, nil
	}
	r.locks[key] = lock{token: token, until: now.Add(ttl)}
	return true, nil
}

// Release drops the lock if token still owns it.
func (r *StateRepository) Release(_ context.Context, key, token string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if l, held := r.locks[key]; held && l.token == token {
		delete(r.locks, key)
	}
	return nil
}

// Ping always succeeds.
func (r *StateRepository) Ping(context.Context) error { return nil }

// Len returns the number of stored states, expired ones included.
func (r *StateRepository) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.states)
}

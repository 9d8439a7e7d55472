// Package repository defines where checkout orchestration state lives
// between actions.
package repository

import (
	"context"
	"errors"
	"time"

	"github.com/032-extremist/redcart-checkout/internal/domain"
)

// ErrStaleState is returned by Save when the stored state is no longer the
// version the caller loaded.
var ErrStaleState = errors.New("checkout state changed since it was loaded")

// StateRepository persists one OrchestrationState per caller key and the
// per-caller lock that keeps two actions from running at once.
type StateRepository interface {
	// Get returns the caller's state, or a fresh Idle state (version 0) when
	// none is stored or the stored one has expired.
	Get(ctx context.Context, key string) (*domain.OrchestrationState, error)

	// Save stores state for key if the stored version still equals
	// expected, and returns ErrStaleState otherwise. A missing or expired
	// state has version 0.
	Save(ctx context.Context, key string, state *domain.OrchestrationState, expected int64) error

	// Delete forgets the caller's state.
	Delete(ctx context.Context, key string) error

	// Acquire takes the caller's action lock for at most ttl, tagged with
	// token. It reports false when another unexpired lock exists.
	Acquire(ctx context.Context, key, token string, ttl time.Duration) (bool, error)

	// Release drops the caller's action lock if it is still tagged with
	// token. A lock taken over by someone else is left alone.
	Release(ctx context.Context, key, token string) error

	// Ping checks that the store is reachable.
	Ping(ctx context.Context) error
}

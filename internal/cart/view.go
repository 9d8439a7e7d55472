// Package cart keeps the caller's view of the remote cart in step with the
// server after checkout.
package cart

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/032-extremist/redcart-checkout/internal/domain"
)

// Source reads the cart from the commerce API.
type Source interface {
	Get(ctx context.Context) (*domain.Cart, error)
}

// View caches the last cart read for one caller. Refresh replaces it with
// the server copy; the orchestrator calls it once an order is placed.
type View struct {
	source Source
	logger *slog.Logger
	now    func() time.Time

	mu       sync.RWMutex
	snapshot *domain.Cart
	loadedAt time.Time
}

// NewView creates an empty view over source.
func NewView(source Source, logger *slog.Logger) *View {
	if logger == nil {
		logger = slog.Default()
	}
	return &View{source: source, logger: logger, now: time.Now}
}

// Load returns the cached cart, reading it from the server the first time.
func (v *View) Load(ctx context.Context) (*domain.Cart, error) {
	if c := v.Snapshot(); c != nil {
		return c, nil
	}
	if err := v.Refresh(ctx); err != nil {
		return nil, err
	}
	return v.Snapshot(), nil
}

// Refresh re-reads the cart. On failure the previous snapshot is kept.
func (v *View) Refresh(ctx context.Context) error {
	c, err := v.source.Get(ctx)
	if err != nil {
		return fmt.Errorf("refresh cart: %w", err)
	}

	v.mu.Lock()
	v.snapshot = c
	v.loadedAt = v.now()
	v.mu.Unlock()

	v.logger.DebugContext(ctx, "cart refreshed",
		slog.String("cart_id", c.ID),
		slog.Int("items", c.ItemCount()),
	)
	return nil
}

// Snapshot returns a copy of the cached cart, or nil before the first load.
func (v *View) Snapshot() *domain.Cart {
	v.mu.RLock()
	defer v.mu.RUnlock()
	if v.snapshot == nil {
		return nil
	}
	c := *v.snapshot
	c.Items = append([]domain.CartItem(nil), v.snapshot.Items...)
	return &c
}

// LoadedAt reports when the snapshot was last read.
func (v *View) LoadedAt() time.Time {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.loadedAt
}

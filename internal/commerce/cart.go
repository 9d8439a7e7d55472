package commerce

import (
	"context"
	"net/http"

	"github.com/032-extremist/redcart-checkout/internal/domain"
)

// CartClient reads the caller's cart. Cart edits belong to the storefront.
type CartClient struct {
	c *Client
}

// Get returns the current cart snapshot.
func (c *CartClient) Get(ctx context.Context) (*domain.Cart, error) {
	var out domain.Cart
	if err := c.c.call(ctx, "get_cart", http.MethodGet, "/cart", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

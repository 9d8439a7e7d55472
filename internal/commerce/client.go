// Package commerce holds the thin clients for the remote commerce API:
// orders, mobile-money payments and the cart.
package commerce

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	apperrors "github.com/032-extremist/redcart-checkout/pkg/errors"
	"github.com/032-extremist/redcart-checkout/pkg/httpclient"
	"github.com/032-extremist/redcart-checkout/pkg/logger"
	"github.com/032-extremist/redcart-checkout/pkg/middleware"
	"github.com/032-extremist/redcart-checkout/pkg/tracing"
)

const (
	serviceName = "commerce"
	tracerName  = "github.com/032-extremist/redcart-checkout/internal/commerce"
)

// CircuitOpenFallback is installed on the commerce breaker. It replaces the
// raw open-state error with a message the shopper can act on.
func CircuitOpenFallback(_ context.Context, _ error) (*http.Response, error) {
	return nil, apperrors.ServiceUnavailable("The store is temporarily unavailable. Please try again in a few seconds.")
}

// HTTPDoer executes HTTP requests. Both httpclient.Client and
// httpclient.CircuitBreakerClient satisfy it.
type HTTPDoer interface {
	Do(ctx context.Context, req *http.Request) (*http.Response, error)
}

// Client sends JSON requests to the commerce API on behalf of the caller
// whose credentials travel in the context.
type Client struct {
	baseURL string
	http    HTTPDoer
	timeout time.Duration
	logger  *slog.Logger
}

// NewClient creates a client for baseURL. A zero timeout leaves deadlines to
// the caller's context.
func NewClient(baseURL string, doer HTTPDoer, timeout time.Duration, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    doer,
		timeout: timeout,
		logger:  logger,
	}
}

// Orders returns the orders client.
func (c *Client) Orders() *OrdersClient { return &OrdersClient{c: c} }

// Payments returns the mobile-money payments client.
func (c *Client) Payments() *PaymentsClient { return &PaymentsClient{c: c} }

// Cart returns the cart client.
func (c *Client) Cart() *CartClient { return &CartClient{c: c} }

// call performs one request and decodes a 2xx body into out. out may be nil.
func (c *Client) call(ctx context.Context, op, method, path string, in, out any) (err error) {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	ctx, span := tracing.Tracer(tracerName).Start(ctx, "commerce."+op,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("http.request.method", method),
			attribute.String("url.path", path),
		),
	)
	defer func() { tracing.End(span, err) }()

	var body io.Reader = http.NoBody
	if in != nil {
		raw, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("marshal %s request: %w", op, err)
		}
		body = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("create %s request: %w", op, err)
	}
	c.decorate(ctx, req, in != nil)

	start := time.Now()
	resp, err := c.http.Do(ctx, req)
	if err != nil {
		logger.WithContext(ctx, c.logger).WarnContext(ctx, "commerce request failed",
			slog.String("op", op),
			slog.String("error", err.Error()),
		)
		return transportError(op, err)
	}
	defer func() { _ = resp.Body.Close() }()

	span.SetAttributes(attribute.Int("http.response.status_code", resp.StatusCode))
	logger.WithContext(ctx, c.logger).DebugContext(ctx, "commerce request",
		slog.String("op", op),
		slog.Int("status", resp.StatusCode),
		slog.Duration("duration", time.Since(start)),
	)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return httpclient.ParseResponseError(resp, serviceName)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s response: %w", op, err)
	}
	return nil
}

// decorate attaches the caller's credentials. The anti-forgery token only
// goes on state-changing methods.
func (c *Client) decorate(ctx context.Context, req *http.Request, hasBody bool) {
	creds := middleware.CredentialsFromContext(ctx)
	if creds.Token != "" {
		req.Header.Set("Authorization", "Bearer "+creds.Token)
	}
	if creds.CSRF != "" && isMutating(req.Method) {
		req.Header.Set(middleware.CSRFHeader, creds.CSRF)
	}
	if hasBody {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	if id := logger.CorrelationIDFromContext(ctx); id != "" {
		req.Header.Set(middleware.CorrelationHeader, id)
	}
}

func isMutating(method string) bool {
	switch method {
	case http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete:
		return true
	}
	return false
}

// transportError keeps structured errors such as the breaker fallback and
// turns everything else into a network failure with a shopper-facing text.
func transportError(op string, err error) error {
	var appErr *apperrors.AppError
	if errors.As(err, &appErr) {
		return err
	}
	return &apperrors.AppError{
		Code:    "NETWORK_ERROR",
		Message: "Network error: the store could not be reached.",
		Status:  http.StatusBadGateway,
		Err:     fmt.Errorf("%s: %w: %w", op, apperrors.ErrUpstreamFailure, err),
	}
}

package http

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/032-extremist/redcart-checkout/internal/service"
	"github.com/032-extremist/redcart-checkout/pkg/health"
	"github.com/032-extremist/redcart-checkout/pkg/middleware"
)

const serviceName = "checkout-bff"

// NewRouter creates a chi router with all checkout BFF routes registered.
func NewRouter(
	checkoutService *service.CheckoutService,
	healthHandler *health.Handler,
	logger *slog.Logger,
	corsConfig middleware.CORSConfig,
) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.CORS(corsConfig))
	r.Use(middleware.Recovery(logger))
	r.Use(middleware.RequestLogging(logger))
	r.Use(middleware.Tracing(serviceName))
	r.Use(middleware.PrometheusMetrics(serviceName))
	r.Use(middleware.CredentialsFromRequest)
	r.Use(middleware.RequestLogger(logger, callerKey))

	// Health check endpoints
	r.Get("/health/live", healthHandler.LivenessHandler())
	r.Get("/health/ready", healthHandler.ReadinessHandler())
	r.Get("/metrics", func(w http.ResponseWriter, r *http.Request) {
		promhttp.Handler().ServeHTTP(w, r)
	})

	checkoutHandler := NewCheckoutHandler(checkoutService, logger)

	r.Route("/api/v1/checkout", func(r chi.Router) {
		r.Use(middleware.RequireBearer)
		r.Use(middleware.NoStore)

		r.Get("/", checkoutHandler.GetState)
		r.Delete("/", checkoutHandler.Reset)
		r.Post("/submit", checkoutHandler.Submit)
		r.Post("/payment/push", checkoutHandler.RetryPush)
		r.Post("/payment/status", checkoutHandler.CheckStatus)
	})

	r.Route("/api/v1/orders", func(r chi.Router) {
		r.Use(middleware.RequireBearer)
		r.Use(middleware.NoStore)

		r.Get("/", checkoutHandler.ListOrders)
		r.Get("/{id}/status", checkoutHandler.GetOrderStatus)
	})

	return r
}

// callerKey tags request logs with the same key the state store uses.
func callerKey(r *http.Request) string {
	key, err := service.CallerKey(middleware.BearerToken(r))
	if err != nil {
		return ""
	}
	return key
}

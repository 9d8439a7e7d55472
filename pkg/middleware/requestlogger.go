package middleware

import (
	"log/slog"
	"net/http"

	"github.com/032-extremist/redcart-checkout/pkg/logger"
)

// CallerKeyFunc derives the caller key used to tag request logs. It returns
// "" when the request carries no credential.
type CallerKeyFunc func(r *http.Request) string

// RequestLogger stores a request-scoped logger in the context, enriched with
// correlation_id, caller, trace_id and span_id. Mount it after RequestLogging
// and Tracing so both IDs are already present.
func RequestLogger(base *slog.Logger, callerKey CallerKeyFunc) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			if callerKey != nil {
				if key := callerKey(r); key != "" {
					ctx = logger.WithCaller(ctx, key)
				}
			}

			ctx = logger.NewContext(ctx, logger.WithContext(ctx, base))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

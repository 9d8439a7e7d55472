package middleware

import (
	"context"
	"net/http"
	"strings"

	apperrors "github.com/032-extremist/redcart-checkout/pkg/errors"
	"github.com/032-extremist/redcart-checkout/pkg/httputil"
)

// CSRFHeader is the anti-forgery header the commerce API expects on
// state-changing requests.
const CSRFHeader = "X-CSRF-Token"

type credentialsKeyType struct{}

var credentialsKey credentialsKeyType

// Credentials are the opaque session values a storefront forwards with each
// call. The BFF never inspects or stores them beyond the request.
type Credentials struct {
	Token string
	CSRF  string
}

// CredentialsFromRequest copies the bearer token and anti-forgery token from the inbound
// request into the context. A missing bearer is not an error here.
func CredentialsFromRequest(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		creds := Credentials{
			Token: BearerToken(r),
			CSRF:  r.Header.Get(CSRFHeader),
		}
		next.ServeHTTP(w, r.WithContext(WithCredentials(r.Context(), creds)))
	})
}

// RequireBearer rejects requests without a bearer token with 401 before any
// downstream work happens.
func RequireBearer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if CredentialsFromContext(r.Context()).Token == "" && BearerToken(r) == "" {
			httputil.WriteError(w, r, apperrors.Unauthorized("sign in to continue checkout"), nil)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// NoStore marks responses as uncacheable; checkout state changes on every action.
func NoStore(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Cache-Control", "no-store")
		next.ServeHTTP(w, r)
	})
}

// BearerToken extracts the token from an "Authorization: Bearer" header.
func BearerToken(r *http.Request) string {
	scheme, token, ok := strings.Cut(r.Header.Get("Authorization"), " ")
	if !ok || !strings.EqualFold(scheme, "bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}

// WithCredentials returns a context carrying creds.
func WithCredentials(ctx context.Context, creds Credentials) context.Context {
	return context.WithValue(ctx, credentialsKey, creds)
}

// CredentialsFromContext returns the credentials stored by CredentialsFromRequest.
func CredentialsFromContext(ctx context.Context) Credentials {
	if creds, ok := ctx.Value(credentialsKey).(Credentials); ok {
		return creds
	}
	return Credentials{}
}

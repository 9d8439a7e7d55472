package service

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/golang-jwt/jwt/v5"

	apperrors "github.com/032-extremist/redcart-checkout/pkg/errors"
)

// ErrUnauthenticated is returned for calls that carry no bearer token.
var ErrUnauthenticated = apperrors.Unauthorized("sign in to continue checkout")

// CallerKey derives the key checkout state is stored under. A JWT's sub
// (or userId) claim is used when the token parses; the signature is not
// checked because the commerce API verifies every call. Opaque tokens are
// keyed by their SHA-256 so the token itself is never stored.
func CallerKey(token string) (string, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return "", ErrUnauthenticated
	}

	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err == nil {
		if sub, err := claims.GetSubject(); err == nil && sub != "" {
			return "user:" + sub, nil
		}
		switch id := claims["userId"].(type) {
		case string:
			if id != "" {
				return "user:" + id, nil
			}
		case float64:
			return fmt.Sprintf("user:%.0f", id), nil
		}
	}

	sum := sha256.Sum256([]byte(token))
	return "token:" + hex.EncodeToString(sum[:16]), nil
}

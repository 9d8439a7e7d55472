package service

import (
	"strings"
	"testing"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/032-extremist/redcart-checkout/pkg/errors"
)

func signed(t *testing.T, claims jwt.MapClaims) string {
	t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("not-our-secret"))
	require.NoError(t, err)
	return token
}

func TestCallerKey(t *testing.T) {
	tests := []struct {
		name  string
		token string
		want  string
	}{
		{name: "sub claim", token: signed(t, jwt.MapClaims{"sub": "user-42"}), want: "user:user-42"},
		{name: "userId claim", token: signed(t, jwt.MapClaims{"userId": "u-7"}), want: "user:u-7"},
		{name: "numeric userId", token: signed(t, jwt.MapClaims{"userId": 1234}), want: "user:1234"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := CallerKey(tt.token)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestCallerKey_OpaqueToken(t *testing.T) {
	a, err := CallerKey("opaque-session-token")
	require.NoError(t, err)
	b, err := CallerKey("opaque-session-token")
	require.NoError(t, err)
	c, err := CallerKey("another-token")
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(a, "token:"))
	assert.Len(t, a, len("token:")+32)
	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
	assert.NotContains(t, a, "opaque")
}

func TestCallerKey_Missing(t *testing.T) {
	_, err := CallerKey("  ")
	assert.ErrorIs(t, err, apperrors.ErrUnauthorized)
	assert.Equal(t, 401, apperrors.HTTPStatus(err))
}

package app

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/032-extremist/redcart-checkout/internal/config"
	"github.com/032-extremist/redcart-checkout/internal/domain"
	"github.com/032-extremist/redcart-checkout/internal/event"
	"github.com/032-extremist/redcart-checkout/internal/repository/memory"
	"github.com/032-extremist/redcart-checkout/internal/repository/redis"
	"github.com/032-extremist/redcart-checkout/pkg/health"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestNewDeps_MemoryStore(t *testing.T) {
	cfg, err := config.Load()
	require.NoError(t, err)

	deps, err := NewDeps(context.Background(), cfg, testLogger())
	require.NoError(t, err)
	t.Cleanup(func() { _ = deps.Close() })

	assert.IsType(t, &memory.StateRepository{}, deps.Store)
	assert.IsType(t, event.Noop{}, deps.Events)
	require.NotNil(t, deps.Service)

	_, err = deps.PurgeExpired(context.Background())
	assert.ErrorIs(t, err, ErrPurgeUnsupported)
}

func TestNewDeps_RedisStore(t *testing.T) {
	mr := miniredis.RunT(t)
	port, err := strconv.Atoi(mr.Port())
	require.NoError(t, err)

	t.Setenv("STATE_STORE", "redis")
	t.Setenv("REDIS_HOST", mr.Host())
	t.Setenv("REDIS_PORT", strconv.Itoa(port))
	cfg, err := config.Load()
	require.NoError(t, err)

	deps, err := NewDeps(context.Background(), cfg, testLogger())
	require.NoError(t, err)
	t.Cleanup(func() { _ = deps.Close() })

	assert.IsType(t, &redis.StateRepository{}, deps.Store)

	ctx := context.Background()
	state := domain.NewState()
	state.Version = 4
	require.NoError(t, deps.Store.Save(ctx, "user:42", state, 0))
	got, err := deps.Store.Get(ctx, "user:42")
	require.NoError(t, err)
	assert.Equal(t, int64(4), got.Version)
}

func TestRegisterHealth_ReadyWithStore(t *testing.T) {
	cfg, err := config.Load()
	require.NoError(t, err)
	deps, err := NewDeps(context.Background(), cfg, testLogger())
	require.NoError(t, err)
	t.Cleanup(func() { _ = deps.Close() })

	h := health.NewHandler()
	deps.RegisterHealth(h)

	rec := httptest.NewRecorder()
	h.ReadinessHandler()(rec, httptest.NewRequest(http.MethodGet, "/health/ready", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "state_store")
}

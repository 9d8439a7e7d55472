package redis

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redismock/v9"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/032-extremist/redcart-checkout/internal/domain"
	"github.com/032-extremist/redcart-checkout/internal/repository"
)

var _ repository.StateRepository = (*StateRepository)(nil)

func setupTestRedis(t *testing.T) (*StateRepository, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewStateRepository(client, 24*time.Hour), mr
}

func sampleState() *domain.OrchestrationState {
	return &domain.OrchestrationState{
		Phase:          domain.PhaseAwaitingPaymentAction,
		PendingPayment: &domain.PendingPayment{OrderID: "ORD2", PaymentID: "PAY2"},
		LastResult: &domain.Result{
			OrderID:       "ORD2",
			Status:        domain.OrderStatusPendingPayment,
			PaymentStatus: domain.PaymentStatusPending,
		},
		ErrorMessage: "Order ORD2 was created, but the payment prompt failed: timeout",
		Version:      2,
		UpdatedAt:    time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC),
	}
}

// ---------------------------------------------------------------------------
// Get / Save / Delete
// ---------------------------------------------------------------------------

func TestStateRepository_Get_Missing(t *testing.T) {
	repo, _ := setupTestRedis(t)

	s, err := repo.Get(context.Background(), "caller-1")
	require.NoError(t, err)
	assert.Equal(t, domain.PhaseIdle, s.Phase)
	assert.Nil(t, s.PendingPayment)
}

func TestStateRepository_SaveThenGet(t *testing.T) {
	repo, mr := setupTestRedis(t)
	ctx := context.Background()

	require.NoError(t, repo.Save(ctx, "caller-1", sampleState(), 0))

	assert.True(t, mr.Exists("checkout:state:caller-1"))
	assert.Equal(t, 24*time.Hour, mr.TTL("checkout:state:caller-1"))
	version, err := mr.Get("checkout:version:caller-1")
	require.NoError(t, err)
	assert.Equal(t, "2", version)
	assert.Equal(t, 24*time.Hour, mr.TTL("checkout:version:caller-1"))

	got, err := repo.Get(ctx, "caller-1")
	require.NoError(t, err)
	assert.Equal(t, sampleState(), got)
}

func TestStateRepository_Get_Expired(t *testing.T) {
	repo, mr := setupTestRedis(t)
	ctx := context.Background()
	require.NoError(t, repo.Save(ctx, "caller-1", sampleState(), 0))

	mr.FastForward(25 * time.Hour)

	got, err := repo.Get(ctx, "caller-1")
	require.NoError(t, err)
	assert.Equal(t, domain.PhaseIdle, got.Phase)
}

func TestStateRepository_Get_CorruptValue(t *testing.T) {
	repo, mr := setupTestRedis(t)
	require.NoError(t, mr.Set("checkout:state:caller-1", "{not json"))

	_, err := repo.Get(context.Background(), "caller-1")
	assert.ErrorContains(t, err, "unmarshal checkout state")
}

func TestStateRepository_Delete(t *testing.T) {
	repo, mr := setupTestRedis(t)
	ctx := context.Background()
	require.NoError(t, repo.Save(ctx, "caller-1", sampleState(), 0))

	require.NoError(t, repo.Delete(ctx, "caller-1"))
	assert.False(t, mr.Exists("checkout:state:caller-1"))
	assert.False(t, mr.Exists("checkout:version:caller-1"))
}

func TestStateRepository_Save_StaleVersion(t *testing.T) {
	repo, _ := setupTestRedis(t)
	ctx := context.Background()
	require.NoError(t, repo.Save(ctx, "caller-1", sampleState(), 0))

	next := sampleState()
	next.Version = 3
	next.PendingPayment = &domain.PendingPayment{OrderID: "ORD3", PaymentID: "PAY3"}
	assert.ErrorIs(t, repo.Save(ctx, "caller-1", next, 0), repository.ErrStaleState)

	got, err := repo.Get(ctx, "caller-1")
	require.NoError(t, err)
	assert.Equal(t, "PAY2", got.PendingPayment.PaymentID, "the earlier order is kept")

	require.NoError(t, repo.Save(ctx, "caller-1", next, 2))
	got, err = repo.Get(ctx, "caller-1")
	require.NoError(t, err)
	assert.Equal(t, int64(3), got.Version)
}

func TestStateRepository_Save_AfterExpiry(t *testing.T) {
	repo, mr := setupTestRedis(t)
	ctx := context.Background()
	require.NoError(t, repo.Save(ctx, "caller-1", sampleState(), 0))

	mr.FastForward(25 * time.Hour)

	fresh := domain.NewState()
	fresh.Version = 1
	require.NoError(t, repo.Save(ctx, "caller-1", fresh, 0))
}

// ---------------------------------------------------------------------------
// Locks
// ---------------------------------------------------------------------------

func TestStateRepository_AcquireRelease(t *testing.T) {
	repo, mr := setupTestRedis(t)
	ctx := context.Background()

	ok, err := repo.Acquire(ctx, "caller-1", "tok-a", 30*time.Second)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 30*time.Second, mr.TTL("checkout:lock:caller-1"))

	ok, err = repo.Acquire(ctx, "caller-1", "tok-b", 30*time.Second)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, repo.Release(ctx, "caller-1", "tok-a"))
	ok, err = repo.Acquire(ctx, "caller-1", "tok-c", 30*time.Second)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestStateRepository_LockExpires(t *testing.T) {
	repo, mr := setupTestRedis(t)
	ctx := context.Background()

	ok, err := repo.Acquire(ctx, "caller-1", "tok-a", 30*time.Second)
	require.NoError(t, err)
	require.True(t, ok)

	mr.FastForward(31 * time.Second)

	ok, err = repo.Acquire(ctx, "caller-1", "tok-b", 30*time.Second)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestStateRepository_Release_LeavesTakenOverLock(t *testing.T) {
	repo, mr := setupTestRedis(t)
	ctx := context.Background()

	ok, err := repo.Acquire(ctx, "caller-1", "first", 30*time.Second)
	require.NoError(t, err)
	require.True(t, ok)

	mr.FastForward(31 * time.Second)
	ok, err = repo.Acquire(ctx, "caller-1", "second", 30*time.Second)
	require.NoError(t, err)
	require.True(t, ok)

	require.NoError(t, repo.Release(ctx, "caller-1", "first"))

	holder, err := mr.Get("checkout:lock:caller-1")
	require.NoError(t, err)
	assert.Equal(t, "second", holder)

	ok, err = repo.Acquire(ctx, "caller-1", "third", 30*time.Second)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestStateRepository_Ping(t *testing.T) {
	repo, mr := setupTestRedis(t)
	require.NoError(t, repo.Ping(context.Background()))

	mr.Close()
	assert.Error(t, repo.Ping(context.Background()))
}

// ---------------------------------------------------------------------------
// Command-level error paths
// ---------------------------------------------------------------------------

func TestStateRepository_ErrorsAreWrapped(t *testing.T) {
	client, mock := redismock.NewClientMock()
	repo := NewStateRepository(client, time.Hour)
	ctx := context.Background()
	boom := errors.New("READONLY You can't write against a read only replica")

	mock.ExpectGet("checkout:state:caller-1").SetErr(boom)
	_, err := repo.Get(ctx, "caller-1")
	assert.ErrorIs(t, err, boom)
	assert.ErrorContains(t, err, "redis get checkout state")

	mock.ExpectDel("checkout:state:caller-1", "checkout:version:caller-1").SetErr(boom)
	assert.ErrorContains(t, repo.Delete(ctx, "caller-1"), "redis del checkout state")

	mock.ExpectGet("checkout:state:caller-1").SetVal(`{"phase":"Resolved","version":7}`)
	got, err := repo.Get(ctx, "caller-1")
	require.NoError(t, err)
	assert.Equal(t, int64(7), got.Version)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestStateRepository_AcquireError(t *testing.T) {
	client, mock := redismock.NewClientMock()
	repo := NewStateRepository(client, time.Hour)

	mock.ExpectSetNX("checkout:lock:caller-1", "tok-a", 30*time.Second).SetErr(errors.New("connection reset"))

	ok, err := repo.Acquire(context.Background(), "caller-1", "tok-a", 30*time.Second)
	assert.False(t, ok)
	assert.ErrorContains(t, err, "redis acquire checkout lock")
	require.NoError(t, mock.ExpectationsWereMet())
}

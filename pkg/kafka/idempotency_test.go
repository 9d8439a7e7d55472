package kafka

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryIdempotencyStore_Expiry(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	store := NewMemoryIdempotencyStore(time.Minute)
	store.now = func() time.Time { return now }
	ctx := context.Background()

	require.NoError(t, store.Add(ctx, "evt-1"))
	seen, err := store.Contains(ctx, "evt-1")
	require.NoError(t, err)
	assert.True(t, seen)

	now = now.Add(2 * time.Minute)
	seen, err = store.Contains(ctx, "evt-1")
	require.NoError(t, err)
	assert.False(t, seen)
	assert.Zero(t, store.Len())
}

func TestMemoryIdempotencyStore_AddSweeps(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	store := NewMemoryIdempotencyStore(time.Minute)
	store.now = func() time.Time { return now }
	ctx := context.Background()

	require.NoError(t, store.Add(ctx, "old"))
	now = now.Add(time.Hour)
	require.NoError(t, store.Add(ctx, "new"))

	assert.Equal(t, 1, store.Len())
}

type failingStore struct{}

func (failingStore) Contains(context.Context, string) (bool, error) {
	return false, errors.New("redis down")
}
func (failingStore) Add(context.Context, string) error { return errors.New("redis down") }

func TestIdempotentHandler(t *testing.T) {
	ctx := context.Background()
	calls := 0
	inner := func(context.Context, *Event) error {
		calls++
		return nil
	}

	h := IdempotentHandler(NewMemoryIdempotencyStore(time.Minute), inner, testLogger())
	event := &Event{EventID: "evt-1", EventType: "payment.confirmed"}

	require.NoError(t, h(ctx, event))
	require.NoError(t, h(ctx, event))
	assert.Equal(t, 1, calls)

	require.NoError(t, h(ctx, &Event{EventType: "payment.confirmed"}))
	assert.Equal(t, 2, calls)
}

func TestIdempotentHandler_FailedEventNotRecorded(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryIdempotencyStore(time.Minute)
	h := IdempotentHandler(store, func(context.Context, *Event) error { return errHandler }, testLogger())

	assert.ErrorIs(t, h(ctx, &Event{EventID: "evt-1"}), errHandler)
	assert.Zero(t, store.Len())
}

func TestIdempotentHandler_StoreFailureProcesses(t *testing.T) {
	calls := 0
	h := IdempotentHandler(failingStore{}, func(context.Context, *Event) error {
		calls++
		return nil
	}, testLogger())

	require.NoError(t, h(context.Background(), &Event{EventID: "evt-1"}))
	assert.Equal(t, 1, calls)
}

// Package postgres stores checkout state in PostgreSQL.
package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/032-extremist/redcart-checkout/internal/domain"
	"github.com/032-extremist/redcart-checkout/internal/repository"
	"github.com/032-extremist/redcart-checkout/pkg/database"
)

// StateRepository implements repository.StateRepository using PostgreSQL.
type StateRepository struct {
	db  database.DBTX
	ttl time.Duration
	now func() time.Time
}

// NewStateRepository creates a PostgreSQL-backed state store. States expire
// ttl after their last save.
func NewStateRepository(db database.DBTX, ttl time.Duration) *StateRepository {
	return &StateRepository{db: db, ttl: ttl, now: time.Now}
}

const getStateQuery = `
	SELECT state
	FROM checkout_states
	WHERE caller_key = $1 AND expires_at > $2`

// Get retrieves the caller's unexpired state.
func (r *StateRepository) Get(ctx context.Context, key string) (_ *domain.OrchestrationState, err error) {
	ctx, end := database.TraceQuery(ctx, database.SystemPostgres, "GetState", getStateQuery)
	defer func() { end(err) }()

	var data []byte
	err = r.db.QueryRow(ctx, getStateQuery, key, r.now().UTC()).Scan(&data)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.NewState(), nil
		}
		return nil, fmt.Errorf("query checkout state: %w", err)
	}

	var state domain.OrchestrationState
	if err := json.Unmarshal(data, &state); err != nil {
		return nil, fmt.Errorf("unmarshal checkout state: %w", err)
	}
	return &state, nil
}

const saveStateQuery = `
	INSERT INTO checkout_states (caller_key, state, phase, version, updated_at, expires_at)
	VALUES ($1, $2, $3, $4, $5, $6)
	ON CONFLICT (caller_key) DO UPDATE SET
		state = EXCLUDED.state,
		phase = EXCLUDED.phase,
		version = EXCLUDED.version,
		updated_at = EXCLUDED.updated_at,
		expires_at = EXCLUDED.expires_at
	WHERE checkout_states.version = $7 OR checkout_states.expires_at <= $5`

// Save upserts the caller's state. An existing unexpired row is only
// replaced while its version is expected.
func (r *StateRepository) Save(ctx context.Context, key string, state *domain.OrchestrationState, expected int64) (err error) {
	ctx, end := database.TraceQuery(ctx, database.SystemPostgres, "SaveState", saveStateQuery)
	defer func() { end(err) }()

	data, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("marshal checkout state: %w", err)
	}

	now := r.now().UTC()
	tag, err := r.db.Exec(ctx, saveStateQuery,
		key,
		data,
		string(state.Phase),
		state.Version,
		now,
		now.Add(r.ttl),
		expected,
	)
	if err != nil {
		return fmt.Errorf("upsert checkout state: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return repository.ErrStaleState
	}
	return nil
}

const deleteStateQuery = `DELETE FROM checkout_states WHERE caller_key = $1`

// Delete removes the caller's state.
func (r *StateRepository) Delete(ctx context.Context, key string) (err error) {
	ctx, end := database.TraceQuery(ctx, database.SystemPostgres, "DeleteState", deleteStateQuery)
	defer func() { end(err) }()

	if _, err = r.db.Exec(ctx, deleteStateQuery, key); err != nil {
		return fmt.Errorf("delete checkout state: %w", err)
	}
	return nil
}

// acquireLockQuery inserts the lock row, or takes over one whose holder let
// it expire. No row is touched while an unexpired lock exists.
const acquireLockQuery = `
	INSERT INTO checkout_locks (caller_key, token, expires_at)
	VALUES ($1, $2, $3)
	ON CONFLICT (caller_key) DO UPDATE SET
		token = EXCLUDED.token,
		expires_at = EXCLUDED.expires_at
	WHERE checkout_locks.expires_at <= $4`

// Acquire takes the caller's action lock for token.
func (r *StateRepository) Acquire(ctx context.Context, key, token string, ttl time.Duration) (_ bool, err error) {
	ctx, end := database.TraceQuery(ctx, database.SystemPostgres, "AcquireLock", acquireLockQuery)
	defer func() { end(err) }()

	now := r.now().UTC()
	tag, err := r.db.Exec(ctx, acquireLockQuery, key, token, now.Add(ttl), now)
	if err != nil {
		return false, fmt.Errorf("acquire checkout lock: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

const releaseLockQuery = `DELETE FROM checkout_locks WHERE caller_key = $1 AND token = $2`

// Release drops the caller's action lock if token still owns it.
func (r *StateRepository) Release(ctx context.Context, key, token string) (err error) {
	ctx, end := database.TraceQuery(ctx, database.SystemPostgres, "ReleaseLock", releaseLockQuery)
	defer func() { end(err) }()

	if _, err = r.db.Exec(ctx, releaseLockQuery, key, token); err != nil {
		return fmt.Errorf("release checkout lock: %w", err)
	}
	return nil
}

const purgeExpiredQuery = `DELETE FROM checkout_states WHERE expires_at <= $1`

// PurgeExpired deletes states that expired before now and returns how many
// were removed. Expired rows are already invisible to Get.
func (r *StateRepository) PurgeExpired(ctx context.Context) (_ int64, err error) {
	ctx, end := database.TraceQuery(ctx, database.SystemPostgres, "PurgeExpired", purgeExpiredQuery)
	defer func() { end(err) }()

	tag, err := r.db.Exec(ctx, purgeExpiredQuery, r.now().UTC())
	if err != nil {
		return 0, fmt.Errorf("purge expired checkout states: %w", err)
	}
	return tag.RowsAffected(), nil
}

// Ping runs a trivial query.
func (r *StateRepository) Ping(ctx context.Context) error {
	var one int
	if err := r.db.QueryRow(ctx, "SELECT 1").Scan(&one); err != nil {
		return fmt.Errorf("ping postgres: %w", err)
	}
	return nil
}

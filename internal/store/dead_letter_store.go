package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/nuforge/gamesync/internal/domain"
)

// DeadLetterStore is the durable record of failed publishes, one entry per
// envelope id. It does bookkeeping only; retry decisions live in the
// coordinator.
type DeadLetterStore struct {
	pool   *pgxpool.Pool
	policy domain.RetryPolicy
	now    func() time.Time
}

func NewDeadLetterStore(pg *PostgresStore, policy domain.RetryPolicy) *DeadLetterStore {
	return &DeadLetterStore{
		pool:   pg.Pool(),
		policy: policy,
		now:    time.Now,
	}
}

// Record stores a failed publish. A first failure creates the entry at
// attempts=1; subsequent failures increment the count, refresh the error
// context and push not_before out per the backoff policy. Returns the entry
// id (the envelope id) and the resulting attempt count, so callers can
// number their audit rows off the same counter.
func (s *DeadLetterStore) Record(ctx context.Context, env *domain.Envelope, failure domain.Outcome) (string, int, error) {
	payload, err := json.Marshal(env)
	if err != nil {
		return "", 0, fmt.Errorf("encoding envelope: %w", err)
	}

	var attempts int
	err = s.pool.QueryRow(ctx,
		`SELECT attempts FROM dead_letters WHERE envelope_id = $1`, env.ID,
	).Scan(&attempts)
	if err != nil && err != pgx.ErrNoRows {
		return "", 0, fmt.Errorf("reading dead letter: %w", err)
	}

	attempts++
	now := s.now()
	notBefore := s.policy.NextRetryAt(attempts, now)
	terminal := s.policy.Exhausted(attempts)

	_, err = s.pool.Exec(ctx, `
		INSERT INTO dead_letters (envelope_id, envelope, attempts, first_failed_at, last_attempt_at, last_error, last_kind, not_before, terminal)
		VALUES ($1, $2, $3, $4, $4, $5, $6, $7, $8)
		ON CONFLICT (envelope_id) DO UPDATE SET
			envelope = EXCLUDED.envelope,
			attempts = $3,
			last_attempt_at = $4,
			last_error = $5,
			last_kind = $6,
			not_before = $7,
			terminal = $8
	`, env.ID, payload, attempts, now, failure.Message, failure.Kind, notBefore, terminal)
	if err != nil {
		return "", 0, fmt.Errorf("upserting dead letter: %w", err)
	}

	return env.ID, attempts, nil
}

// ListEligible returns entries whose backoff window has elapsed and whose
// attempt count is below the maximum, oldest not-before first.
func (s *DeadLetterStore) ListEligible(ctx context.Context, limit int) ([]domain.DeadLetterEntry, error) {
	if limit <= 0 {
		limit = 10
	}
	rows, err := s.pool.Query(ctx, `
		SELECT envelope_id, envelope, attempts, first_failed_at, last_attempt_at, last_error, last_kind, not_before, terminal
		FROM dead_letters
		WHERE NOT terminal AND attempts < $1 AND not_before <= $2
		ORDER BY not_before ASC
		LIMIT $3
	`, s.policy.MaxAttempts, s.now(), limit)
	if err != nil {
		return nil, fmt.Errorf("querying eligible dead letters: %w", err)
	}
	defer rows.Close()

	return scanEntries(rows)
}

// List returns entries for operator inspection, newest failures first.
func (s *DeadLetterStore) List(ctx context.Context, limit int, includeTerminal bool) ([]domain.DeadLetterEntry, error) {
	if limit <= 0 {
		limit = 50
	}
	query := `
		SELECT envelope_id, envelope, attempts, first_failed_at, last_attempt_at, last_error, last_kind, not_before, terminal
		FROM dead_letters`
	if !includeTerminal {
		query += ` WHERE NOT terminal`
	}
	query += ` ORDER BY last_attempt_at DESC LIMIT $1`

	rows, err := s.pool.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("querying dead letters: %w", err)
	}
	defer rows.Close()

	return scanEntries(rows)
}

// Get returns one entry by envelope id, or nil when absent.
func (s *DeadLetterStore) Get(ctx context.Context, envelopeID string) (*domain.DeadLetterEntry, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT envelope_id, envelope, attempts, first_failed_at, last_attempt_at, last_error, last_kind, not_before, terminal
		FROM dead_letters WHERE envelope_id = $1
	`, envelopeID)

	entry, err := scanEntry(row)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("querying dead letter: %w", err)
	}
	return entry, nil
}

// Remove deletes an entry, normally after a successful re-publish.
func (s *DeadLetterStore) Remove(ctx context.Context, envelopeID string) error {
	result, err := s.pool.Exec(ctx,
		`DELETE FROM dead_letters WHERE envelope_id = $1`, envelopeID)
	if err != nil {
		return fmt.Errorf("deleting dead letter: %w", err)
	}
	if result.RowsAffected() == 0 {
		return fmt.Errorf("dead letter %s not found", envelopeID)
	}
	return nil
}

// Stats returns derived aggregates for operator dashboards.
func (s *DeadLetterStore) Stats(ctx context.Context) (*domain.DeadLetterStats, error) {
	var st domain.DeadLetterStats
	err := s.pool.QueryRow(ctx, `
		SELECT
			COUNT(*) AS total,
			COUNT(*) FILTER (WHERE NOT terminal AND attempts < $1 AND not_before <= $2) AS ready,
			COUNT(*) FILTER (WHERE NOT terminal AND not_before > $2) AS pending,
			COUNT(*) FILTER (WHERE terminal) AS exhausted,
			COALESCE(AVG(attempts), 0) AS avg_attempts
		FROM dead_letters
	`, s.policy.MaxAttempts, s.now()).Scan(
		&st.TotalItems, &st.ReadyForRetry, &st.PendingRetry, &st.Exhausted, &st.AverageAttempts,
	)
	if err != nil {
		return nil, fmt.Errorf("querying dead letter stats: %w", err)
	}
	return &st, nil
}

// Clear bulk-deletes every entry and returns the count. Destructive; the
// HTTP layer requires operator confirmation before calling it.
func (s *DeadLetterStore) Clear(ctx context.Context) (int, error) {
	result, err := s.pool.Exec(ctx, `DELETE FROM dead_letters`)
	if err != nil {
		return 0, fmt.Errorf("clearing dead letters: %w", err)
	}
	return int(result.RowsAffected()), nil
}

func scanEntries(rows pgx.Rows) ([]domain.DeadLetterEntry, error) {
	var entries []domain.DeadLetterEntry
	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning dead letter: %w", err)
		}
		entries = append(entries, *entry)
	}
	if entries == nil {
		entries = []domain.DeadLetterEntry{}
	}
	return entries, nil
}

func scanEntry(row pgx.Row) (*domain.DeadLetterEntry, error) {
	var e domain.DeadLetterEntry
	var payload []byte
	err := row.Scan(
		&e.EnvelopeID, &payload, &e.Attempts, &e.FirstFailedAt,
		&e.LastAttemptAt, &e.LastError, &e.LastKind, &e.NotBefore, &e.Terminal,
	)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(payload, &e.Envelope); err != nil {
		return nil, fmt.Errorf("decoding stored envelope: %w", err)
	}
	return &e, nil
}

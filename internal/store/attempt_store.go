package store

import (
	"context"
	"fmt"

	"github.com/nuforge/gamesync/internal/domain"
)

// PublishAttemptRecord holds data for inserting a publish attempt.
type PublishAttemptRecord struct {
	EnvelopeID   string
	Attempt      int
	Status       string
	HTTPStatus   *int
	ResponseBody string
	LatencyMs    int
	ErrorMessage string
}

// RecordPublishAttempt appends one attempt to the audit trail.
func (s *PostgresStore) RecordPublishAttempt(ctx context.Context, rec PublishAttemptRecord) error {
	var respBody *string
	if rec.ResponseBody != "" {
		respBody = &rec.ResponseBody
	}

	var errMsg *string
	if rec.ErrorMessage != "" {
		errMsg = &rec.ErrorMessage
	}

	_, err := s.pool.Exec(ctx, `
		INSERT INTO publish_attempts (envelope_id, attempt, status, http_status, response_body, latency_ms, error_message)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, rec.EnvelopeID, rec.Attempt, rec.Status, rec.HTTPStatus, respBody, rec.LatencyMs, errMsg)
	if err != nil {
		return fmt.Errorf("inserting publish attempt: %w", err)
	}
	return nil
}

// ListPublishAttempts returns attempts with optional filtering, newest first.
func (s *PostgresStore) ListPublishAttempts(ctx context.Context, envelopeID, status string, limit int) ([]domain.PublishAttempt, error) {
	query := `SELECT id, envelope_id, attempt, status, http_status, response_body, latency_ms, error_message, created_at FROM publish_attempts`
	args := []interface{}{}
	argIdx := 1
	conditions := []string{}

	if envelopeID != "" {
		conditions = append(conditions, fmt.Sprintf("envelope_id = $%d", argIdx))
		args = append(args, envelopeID)
		argIdx++
	}
	if status != "" {
		conditions = append(conditions, fmt.Sprintf("status = $%d", argIdx))
		args = append(args, status)
		argIdx++
	}

	if len(conditions) > 0 {
		query += " WHERE "
		for i, c := range conditions {
			if i > 0 {
				query += " AND "
			}
			query += c
		}
	}

	query += " ORDER BY created_at DESC"

	if limit > 0 {
		query += fmt.Sprintf(" LIMIT $%d", argIdx)
		args = append(args, limit)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying publish attempts: %w", err)
	}
	defer rows.Close()

	var attempts []domain.PublishAttempt
	for rows.Next() {
		var a domain.PublishAttempt
		err := rows.Scan(
			&a.ID, &a.EnvelopeID, &a.Attempt, &a.Status,
			&a.HTTPStatus, &a.ResponseBody, &a.LatencyMs,
			&a.ErrorMessage, &a.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scanning publish attempt: %w", err)
		}
		attempts = append(attempts, a)
	}

	if attempts == nil {
		attempts = []domain.PublishAttempt{}
	}

	return attempts, nil
}

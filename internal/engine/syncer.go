package engine

import (
	"context"
	"log/slog"

	"github.com/nuforge/gamesync/internal/domain"
	"github.com/nuforge/gamesync/internal/store"
	"github.com/nuforge/gamesync/internal/transform"
)

// Sync result statuses reported back to the caller.
const (
	SyncPublished = "published"
	SyncQueued    = "queued_for_retry"
)

// Publisher delivers one envelope to the ingestion endpoint.
type Publisher interface {
	Publish(ctx context.Context, env *domain.Envelope) (domain.Outcome, error)
}

// DeadLetters records failed publishes for later retry. Record reports the
// resulting attempt count for the envelope.
type DeadLetters interface {
	Record(ctx context.Context, env *domain.Envelope, failure domain.Outcome) (string, int, error)
}

// AttemptLog records publish attempts for the audit trail.
type AttemptLog interface {
	RecordPublishAttempt(ctx context.Context, rec store.PublishAttemptRecord) error
}

// Result tells the caller what happened to their entity: delivered now, or
// durably queued for automatic retry.
type Result struct {
	EnvelopeID string         `json:"envelope_id"`
	Status     string         `json:"status"`
	Outcome    domain.Outcome `json:"outcome"`
}

// Syncer runs the first-publish pipeline: transform a domain entity into an
// envelope, attempt delivery, and dead-letter the envelope when delivery
// fails. Mapping and validation errors are returned to the caller; delivery
// failure never is.
type Syncer struct {
	transformer *transform.Transformer
	publisher   Publisher
	deadLetters DeadLetters
	attempts    AttemptLog
	logger      *slog.Logger
}

func NewSyncer(tr *transform.Transformer, pub Publisher, dl DeadLetters, attempts AttemptLog, logger *slog.Logger) *Syncer {
	return &Syncer{
		transformer: tr,
		publisher:   pub,
		deadLetters: dl,
		attempts:    attempts,
		logger:      logger,
	}
}

// SyncEvent maps and publishes one event.
func (s *Syncer) SyncEvent(ctx context.Context, event *domain.Event) (*Result, error) {
	env, err := s.transformer.EventEnvelope(event)
	if err != nil {
		return nil, err
	}
	return s.deliver(ctx, env)
}

// SyncGame maps and publishes one game.
func (s *Syncer) SyncGame(ctx context.Context, game *domain.Game) (*Result, error) {
	env, err := s.transformer.GameEnvelope(game)
	if err != nil {
		return nil, err
	}
	return s.deliver(ctx, env)
}

func (s *Syncer) deliver(ctx context.Context, env *domain.Envelope) (*Result, error) {
	outcome, err := s.publisher.Publish(ctx, env)
	if err != nil {
		// Configuration or validation problem; the caller must fix it.
		return nil, err
	}

	if outcome.Success {
		s.audit(ctx, env.ID, 1, outcome)
		return &Result{EnvelopeID: env.ID, Status: SyncPublished, Outcome: outcome}, nil
	}

	// Record first so the audit row carries the dead-letter attempt count;
	// a re-sync of an entity that is already dead-lettered continues the
	// sequence instead of restarting at 1.
	_, attempts, err := s.deadLetters.Record(ctx, env, outcome)
	if err != nil {
		s.logger.Error("failed to dead-letter envelope",
			"error", err, "envelope_id", env.ID)
		return nil, err
	}
	s.audit(ctx, env.ID, attempts, outcome)

	s.logger.Warn("publish failed, envelope queued for retry",
		"envelope_id", env.ID,
		"kind", outcome.Kind,
		"status_code", outcome.StatusCode,
	)
	return &Result{EnvelopeID: env.ID, Status: SyncQueued, Outcome: outcome}, nil
}

func (s *Syncer) audit(ctx context.Context, envelopeID string, attempt int, outcome domain.Outcome) {
	status := "success"
	if !outcome.Success {
		status = "failed"
	}

	var httpStatus *int
	if outcome.StatusCode != 0 {
		code := outcome.StatusCode
		httpStatus = &code
	}

	err := s.attempts.RecordPublishAttempt(ctx, store.PublishAttemptRecord{
		EnvelopeID:   envelopeID,
		Attempt:      attempt,
		Status:       status,
		HTTPStatus:   httpStatus,
		ResponseBody: outcome.Body,
		LatencyMs:    int(outcome.LatencyMs),
		ErrorMessage: outcome.Message,
	})
	if err != nil {
		s.logger.Error("failed to record publish attempt",
			"error", err, "envelope_id", envelopeID)
	}
}

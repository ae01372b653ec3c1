package retry

import (
	"context"
	"errors"
	"log/slog"

	"github.com/nuforge/gamesync/internal/domain"
	"github.com/nuforge/gamesync/internal/publish"
	"github.com/nuforge/gamesync/internal/store"
)

// DeadLetters is the slice of the dead-letter store the coordinator needs.
type DeadLetters interface {
	ListEligible(ctx context.Context, limit int) ([]domain.DeadLetterEntry, error)
	Record(ctx context.Context, env *domain.Envelope, failure domain.Outcome) (string, int, error)
	Remove(ctx context.Context, envelopeID string) error
}

// Publisher delivers one envelope to the ingestion endpoint.
type Publisher interface {
	Configured() bool
	Publish(ctx context.Context, env *domain.Envelope) (domain.Outcome, error)
}

// AttemptLog records publish attempts for the audit trail.
type AttemptLog interface {
	RecordPublishAttempt(ctx context.Context, rec store.PublishAttemptRecord) error
}

// Limiter throttles outbound publishes per owning system.
type Limiter interface {
	Allow(ctx context.Context, key string) bool
}

// Report aggregates one batch run.
type Report struct {
	Processed int `json:"processed"`
	Succeeded int `json:"succeeded"`
	Failed    int `json:"failed"`
	Skipped   int `json:"skipped"`
}

// Coordinator re-drives eligible dead-lettered envelopes. It holds no
// timers and no background goroutines: each ProcessBatch call is one
// bounded, strictly sequential pass, driven by an admin action or an
// external scheduler.
type Coordinator struct {
	deadLetters DeadLetters
	publisher   Publisher
	attempts    AttemptLog
	lease       *EnvelopeLease
	limiter     Limiter
	logger      *slog.Logger
}

func NewCoordinator(dl DeadLetters, pub Publisher, attempts AttemptLog, lease *EnvelopeLease, limiter Limiter, logger *slog.Logger) *Coordinator {
	return &Coordinator{
		deadLetters: dl,
		publisher:   pub,
		attempts:    attempts,
		lease:       lease,
		limiter:     limiter,
		logger:      logger,
	}
}

// ProcessBatch re-publishes up to limit eligible entries, one at a time.
// Entries that cannot be claimed or are rate limited are skipped and picked
// up by a later batch. When the publisher is unconfigured the whole batch
// is skipped so no storm of identical failures is generated.
func (c *Coordinator) ProcessBatch(ctx context.Context, limit int) (Report, error) {
	var report Report

	if !c.publisher.Configured() {
		c.logger.Warn("ingestion endpoint not configured, skipping retry batch")
		return report, nil
	}

	entries, err := c.deadLetters.ListEligible(ctx, limit)
	if err != nil {
		return report, err
	}

	for _, entry := range entries {
		if ctx.Err() != nil {
			return report, ctx.Err()
		}

		if c.limiter != nil && !c.limiter.Allow(ctx, entry.Envelope.Source) {
			report.Skipped++
			continue
		}

		token, ok := c.lease.Acquire(ctx, entry.EnvelopeID)
		if !ok {
			// Another invocation holds this envelope.
			report.Skipped++
			continue
		}

		err := c.retryOne(ctx, entry, &report)
		c.lease.Release(ctx, entry.EnvelopeID, token)
		if err != nil {
			return report, err
		}
	}

	c.logger.Info("retry batch complete",
		"processed", report.Processed,
		"succeeded", report.Succeeded,
		"failed", report.Failed,
		"skipped", report.Skipped,
	)
	return report, nil
}

func (c *Coordinator) retryOne(ctx context.Context, entry domain.DeadLetterEntry, report *Report) error {
	report.Processed++
	attemptNumber := entry.Attempts + 1

	outcome, err := c.publisher.Publish(ctx, &entry.Envelope)
	if err != nil {
		var cfgErr *publish.ConfigurationError
		if errors.As(err, &cfgErr) {
			// Configuration vanished mid-batch; abort instead of failing
			// every remaining entry.
			return err
		}
		var valErr *publish.ValidationError
		if errors.As(err, &valErr) {
			// The stored envelope no longer passes schema checks. Count it
			// as a failed attempt so it backs off and eventually exhausts
			// for operator review.
			outcome = domain.Outcome{Kind: domain.KindValidation, Message: valErr.Error()}
		} else {
			outcome = domain.Outcome{Kind: domain.KindUnknown, Message: err.Error()}
		}
	}

	c.audit(ctx, entry.EnvelopeID, attemptNumber, outcome)

	if outcome.Success {
		if err := c.deadLetters.Remove(ctx, entry.EnvelopeID); err != nil {
			c.logger.Error("failed to remove recovered dead letter",
				"error", err, "envelope_id", entry.EnvelopeID)
		}
		report.Succeeded++
		c.logger.Info("dead letter recovered",
			"envelope_id", entry.EnvelopeID,
			"attempt", attemptNumber,
			"remote_id", outcome.RemoteID,
		)
		return nil
	}

	if _, _, err := c.deadLetters.Record(ctx, &entry.Envelope, outcome); err != nil {
		c.logger.Error("failed to update dead letter",
			"error", err, "envelope_id", entry.EnvelopeID)
	}
	report.Failed++
	c.logger.Warn("retry failed",
		"envelope_id", entry.EnvelopeID,
		"attempt", attemptNumber,
		"kind", outcome.Kind,
	)
	return nil
}

func (c *Coordinator) audit(ctx context.Context, envelopeID string, attempt int, outcome domain.Outcome) {
	status := "success"
	if !outcome.Success {
		status = "failed"
	}

	var httpStatus *int
	if outcome.StatusCode != 0 {
		code := outcome.StatusCode
		httpStatus = &code
	}

	err := c.attempts.RecordPublishAttempt(ctx, store.PublishAttemptRecord{
		EnvelopeID:   envelopeID,
		Attempt:      attempt,
		Status:       status,
		HTTPStatus:   httpStatus,
		ResponseBody: outcome.Body,
		LatencyMs:    int(outcome.LatencyMs),
		ErrorMessage: outcome.Message,
	})
	if err != nil {
		c.logger.Error("failed to record publish attempt",
			"error", err, "envelope_id", envelopeID)
	}
}

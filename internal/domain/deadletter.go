package domain

import "time"

// Failure kinds for classified publish outcomes.
const (
	KindValidation = "validation"
	KindAuth       = "auth"
	KindNetwork    = "network"
	KindRejected   = "rejected"
	KindServer     = "server"
	KindUnknown    = "unknown"
)

// Outcome is the transient result of one publish attempt. Ordinary delivery
// failure is reported here, never as an error.
type Outcome struct {
	Success    bool   `json:"success"`
	RemoteID   string `json:"remote_id,omitempty"`
	StatusCode int    `json:"status_code,omitempty"`
	Kind       string `json:"kind,omitempty"`
	Message    string `json:"message,omitempty"`
	Body       string `json:"body,omitempty"`
	LatencyMs  int64  `json:"latency_ms"`
}

// DeadLetterEntry is the durable record of a failed publish. One entry per
// envelope id; retries mutate it in place.
type DeadLetterEntry struct {
	EnvelopeID    string    `json:"envelope_id"`
	Envelope      Envelope  `json:"envelope"`
	Attempts      int       `json:"attempts"`
	FirstFailedAt time.Time `json:"first_failed_at"`
	LastAttemptAt time.Time `json:"last_attempt_at"`
	LastError     string    `json:"last_error"`
	LastKind      string    `json:"last_kind"`
	NotBefore     time.Time `json:"not_before"`
	Terminal      bool      `json:"terminal"`
}

// DeadLetterStats are derived aggregates for operator dashboards.
type DeadLetterStats struct {
	TotalItems      int     `json:"total_items"`
	ReadyForRetry   int     `json:"ready_for_retry"`
	PendingRetry    int     `json:"pending_retry"`
	Exhausted       int     `json:"exhausted"`
	AverageAttempts float64 `json:"average_attempts"`
}

package domain

import "time"

// PublishAttempt is one row of the publish audit trail: every delivery try,
// first-time or retry, successful or not.
type PublishAttempt struct {
	ID           string    `json:"id"`
	EnvelopeID   string    `json:"envelope_id"`
	Attempt      int       `json:"attempt"`
	Status       string    `json:"status"`
	HTTPStatus   *int      `json:"http_status,omitempty"`
	ResponseBody *string   `json:"response_body,omitempty"`
	LatencyMs    *int      `json:"latency_ms,omitempty"`
	ErrorMessage *string   `json:"error_message,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}

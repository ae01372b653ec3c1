package publish

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/nuforge/gamesync/internal/domain"
)

// maxResponseBytes caps how much of an upstream response is retained.
const maxResponseBytes = 1024

// Config holds the ingestion endpoint settings. EndpointURL and Secret may
// both be empty; the publisher then reports itself unconfigured.
type Config struct {
	EndpointURL string
	Secret      string
	TokenIssuer string
	TokenTTL    time.Duration
	HTTPTimeout time.Duration
}

// Health is the result of a probe against the ingestion endpoint.
type Health struct {
	Status    string `json:"status"`
	LatencyMs int64  `json:"latency_ms,omitempty"`
}

// Publisher delivers envelopes to the external content-ingestion endpoint.
// Ordinary delivery failure is returned as a classified Outcome; errors are
// reserved for misconfiguration and invalid envelopes.
type Publisher struct {
	httpClient *http.Client
	cfg        Config
	logger     *slog.Logger
	now        func() time.Time
}

func New(cfg Config, logger *slog.Logger) *Publisher {
	if cfg.TokenTTL <= 0 {
		cfg.TokenTTL = 2 * time.Minute
	}
	if cfg.HTTPTimeout <= 0 {
		cfg.HTTPTimeout = 10 * time.Second
	}
	return &Publisher{
		httpClient: &http.Client{Timeout: cfg.HTTPTimeout},
		cfg:        cfg,
		logger:     logger,
		now:        time.Now,
	}
}

// Configured reports whether both the endpoint URL and the signing secret
// are present. The retry coordinator skips processing entirely when false.
func (p *Publisher) Configured() bool {
	return p.cfg.EndpointURL != "" && p.cfg.Secret != ""
}

// Validate schema-checks an envelope and returns a ValidationError listing
// every violation.
func (p *Publisher) Validate(env *domain.Envelope) error {
	var v []string
	if env.ID == "" {
		v = append(v, "id is required")
	}
	if env.Title == "" {
		v = append(v, "title is required")
	}
	if !domain.ValidStatus(env.Status) {
		v = append(v, fmt.Sprintf("status %q is not a known status", env.Status))
	}
	if len(env.Tags) == 0 {
		v = append(v, "at least one tag is required")
	}
	if !domain.ValidSystem(env.Source) {
		v = append(v, fmt.Sprintf("source %q is not a known owning system", env.Source))
	}
	if env.CreatedAt.IsZero() {
		v = append(v, "created_at is required")
	}
	if env.UpdatedAt.IsZero() {
		v = append(v, "updated_at is required")
	}
	if ef := env.Features.Event; ef != nil {
		if ef.StartTime.IsZero() {
			v = append(v, "event feature requires start_time")
		}
		if ef.EndTime.IsZero() {
			v = append(v, "event feature requires end_time")
		}
		if ef.Location == "" {
			v = append(v, "event feature requires location")
		}
		if !ef.StartTime.IsZero() && !ef.EndTime.IsZero() && ef.EndTime.Before(ef.StartTime) {
			v = append(v, "event feature end_time precedes start_time")
		}
	}
	if gf := env.Features.Game; gf != nil {
		if gf.GameID <= 0 {
			v = append(v, "game feature requires game_id")
		}
		if gf.Name == "" {
			v = append(v, "game feature requires name")
		}
	}
	if len(v) > 0 {
		return &ValidationError{Violations: v}
	}
	return nil
}

// Publish delivers one envelope. It returns an error only for configuration
// problems or an invalid envelope; every delivery failure is classified
// into the outcome.
func (p *Publisher) Publish(ctx context.Context, env *domain.Envelope) (domain.Outcome, error) {
	if err := p.configError(); err != nil {
		return domain.Outcome{}, err
	}
	if err := p.Validate(env); err != nil {
		return domain.Outcome{}, err
	}

	body, err := json.Marshal(env)
	if err != nil {
		return domain.Outcome{}, fmt.Errorf("encoding envelope: %w", err)
	}

	token, err := p.mintToken(env)
	if err != nil {
		return domain.Outcome{}, fmt.Errorf("minting bearer token: %w", err)
	}

	start := p.now()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.cfg.EndpointURL, bytes.NewReader(body))
	if err != nil {
		return failure(start, p.now(), domain.KindUnknown, 0, fmt.Sprintf("building request: %v", err)), nil
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("X-Content-Signature", computeHMAC(body, p.cfg.Secret))
	req.Header.Set("X-Envelope-ID", env.ID)
	req.Header.Set("X-Envelope-Source", env.Source)

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return failure(start, p.now(), domain.KindNetwork, 0, fmt.Sprintf("request failed: %v", err)), nil
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	elapsed := p.now().Sub(start).Milliseconds()
	snippet := strings.TrimSpace(string(respBody))

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		var accepted struct {
			ID string `json:"id"`
		}
		_ = json.Unmarshal(respBody, &accepted)

		p.logger.Info("envelope published",
			"envelope_id", env.ID,
			"remote_id", accepted.ID,
			"status_code", resp.StatusCode,
			"latency_ms", elapsed,
		)
		return domain.Outcome{
			Success:    true,
			RemoteID:   accepted.ID,
			StatusCode: resp.StatusCode,
			Body:       snippet,
			LatencyMs:  elapsed,
		}, nil
	}

	kind := classifyStatus(resp.StatusCode)
	p.logger.Warn("publish rejected by ingestion endpoint",
		"envelope_id", env.ID,
		"status_code", resp.StatusCode,
		"kind", kind,
		"latency_ms", elapsed,
	)
	return domain.Outcome{
		Success:    false,
		StatusCode: resp.StatusCode,
		Kind:       kind,
		Message:    fmt.Sprintf("upstream returned %d: %s", resp.StatusCode, snippet),
		Body:       snippet,
		LatencyMs:  elapsed,
	}, nil
}

// HealthCheck probes the ingestion endpoint and reports round-trip time.
// Used by operators only; it never gates retry eligibility.
func (p *Publisher) HealthCheck(ctx context.Context) (Health, error) {
	if err := p.configError(); err != nil {
		return Health{}, err
	}

	start := p.now()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.healthURL(), nil)
	if err != nil {
		return Health{}, fmt.Errorf("building health request: %w", err)
	}

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return Health{Status: "unhealthy"}, nil
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, io.LimitReader(resp.Body, maxResponseBytes))

	h := Health{LatencyMs: p.now().Sub(start).Milliseconds()}
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		h.Status = "healthy"
	} else {
		h.Status = "unhealthy"
	}
	return h, nil
}

func (p *Publisher) configError() error {
	var missing []string
	if p.cfg.EndpointURL == "" {
		missing = append(missing, "endpoint URL")
	}
	if p.cfg.Secret == "" {
		missing = append(missing, "signing secret")
	}
	if len(missing) > 0 {
		return &ConfigurationError{Missing: missing}
	}
	return nil
}

// mintToken issues a short-lived HS256 bearer token scoped to the
// envelope's owning system.
func (p *Publisher) mintToken(env *domain.Envelope) (string, error) {
	now := p.now()
	claims := jwt.RegisteredClaims{
		Issuer:    p.cfg.TokenIssuer,
		Subject:   env.Source,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(p.cfg.TokenTTL)),
		ID:        uuid.NewString(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(p.cfg.Secret))
}

func (p *Publisher) healthURL() string {
	return strings.TrimSuffix(p.cfg.EndpointURL, "/") + "/health"
}

// classifyStatus maps an upstream HTTP status onto a failure kind.
func classifyStatus(code int) string {
	switch {
	case code == http.StatusUnauthorized || code == http.StatusForbidden:
		return domain.KindAuth
	case code == http.StatusBadRequest || code == http.StatusUnprocessableEntity:
		return domain.KindValidation
	case code >= 400 && code < 500:
		return domain.KindRejected
	case code >= 500:
		return domain.KindServer
	default:
		return domain.KindUnknown
	}
}

func failure(start, end time.Time, kind string, code int, msg string) domain.Outcome {
	return domain.Outcome{
		Success:    false,
		StatusCode: code,
		Kind:       kind,
		Message:    msg,
		LatencyMs:  end.Sub(start).Milliseconds(),
	}
}

// computeHMAC generates an HMAC-SHA256 signature for the payload.
func computeHMAC(payload []byte, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)
	return hex.EncodeToString(mac.Sum(nil))
}

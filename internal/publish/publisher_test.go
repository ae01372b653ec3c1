package publish

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/nuforge/gamesync/internal/domain"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
}

func validEnvelope() *domain.Envelope {
	created := time.Date(2026, 1, 2, 10, 0, 0, 0, time.UTC)
	return &domain.Envelope{
		ID:     "event-1",
		Title:  "Game Night",
		Status: domain.StatusPublished,
		Tags:   []string{"event", domain.SystemEvents},
		Features: domain.Features{
			Event: &domain.EventFeature{
				StartTime: time.Date(2026, 1, 15, 19, 0, 0, 0, time.UTC),
				EndTime:   time.Date(2026, 1, 15, 22, 0, 0, 0, time.UTC),
				Location:  "Hall",
			},
		},
		Source:    domain.SystemEvents,
		CreatedAt: created,
		UpdatedAt: created,
	}
}

func newTestPublisher(endpoint string) *Publisher {
	return New(Config{
		EndpointURL: endpoint,
		Secret:      "test-secret",
		TokenIssuer: "gamesync",
	}, testLogger())
}

func TestPublish_Success(t *testing.T) {
	var gotHeaders http.Header
	var gotBody []byte

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotHeaders = r.Header.Clone()
		gotBody, _ = io.ReadAll(r.Body)
		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(map[string]string{"id": "ingest-42"})
	}))
	defer server.Close()

	p := newTestPublisher(server.URL)
	outcome, err := p.Publish(context.Background(), validEnvelope())
	if err != nil {
		t.Fatalf("Publish: %v", err)
	}

	if !outcome.Success {
		t.Fatalf("outcome = %+v, want success", outcome)
	}
	if outcome.RemoteID != "ingest-42" {
		t.Errorf("RemoteID = %q, want %q", outcome.RemoteID, "ingest-42")
	}
	if !strings.Contains(outcome.Body, "ingest-42") {
		t.Errorf("Body = %q, want the upstream response snippet", outcome.Body)
	}

	// Signature must verify against the exact body sent.
	mac := hmac.New(sha256.New, []byte("test-secret"))
	mac.Write(gotBody)
	wantSig := hex.EncodeToString(mac.Sum(nil))
	if got := gotHeaders.Get("X-Content-Signature"); got != wantSig {
		t.Errorf("signature = %q, want %q", got, wantSig)
	}
	if gotHeaders.Get("X-Envelope-ID") != "event-1" {
		t.Errorf("X-Envelope-ID = %q", gotHeaders.Get("X-Envelope-ID"))
	}
	if gotHeaders.Get("Content-Type") != "application/json" {
		t.Errorf("Content-Type = %q", gotHeaders.Get("Content-Type"))
	}
}

func TestPublish_BearerTokenScopedToSource(t *testing.T) {
	var auth string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth = r.Header.Get("Authorization")
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	p := newTestPublisher(server.URL)
	if _, err := p.Publish(context.Background(), validEnvelope()); err != nil {
		t.Fatalf("Publish: %v", err)
	}

	raw := strings.TrimPrefix(auth, "Bearer ")
	if raw == auth {
		t.Fatalf("Authorization = %q, want bearer token", auth)
	}

	claims := &jwt.RegisteredClaims{}
	_, err := jwt.ParseWithClaims(raw, claims, func(tok *jwt.Token) (any, error) {
		return []byte("test-secret"), nil
	})
	if err != nil {
		t.Fatalf("token does not verify: %v", err)
	}
	if claims.Subject != domain.SystemEvents {
		t.Errorf("token subject = %q, want owning system %q", claims.Subject, domain.SystemEvents)
	}
	if claims.ExpiresAt == nil || time.Until(claims.ExpiresAt.Time) > 3*time.Minute {
		t.Errorf("token expiry = %v, want short-lived", claims.ExpiresAt)
	}
	if claims.ID == "" {
		t.Error("token should carry a jti")
	}
}

func TestPublish_FailureClassification(t *testing.T) {
	tests := []struct {
		name     string
		status   int
		wantKind string
	}{
		{"server error", http.StatusInternalServerError, domain.KindServer},
		{"bad gateway", http.StatusBadGateway, domain.KindServer},
		{"unauthorized", http.StatusUnauthorized, domain.KindAuth},
		{"forbidden", http.StatusForbidden, domain.KindAuth},
		{"bad request", http.StatusBadRequest, domain.KindValidation},
		{"unprocessable", http.StatusUnprocessableEntity, domain.KindValidation},
		{"not found", http.StatusNotFound, domain.KindRejected},
		{"too many requests", http.StatusTooManyRequests, domain.KindRejected},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
			}))
			defer server.Close()

			p := newTestPublisher(server.URL)
			outcome, err := p.Publish(context.Background(), validEnvelope())
			if err != nil {
				t.Fatalf("delivery failure must not be an error: %v", err)
			}
			if outcome.Success {
				t.Fatal("outcome should be failure")
			}
			if outcome.Kind != tt.wantKind {
				t.Errorf("kind = %q, want %q", outcome.Kind, tt.wantKind)
			}
			if outcome.StatusCode != tt.status {
				t.Errorf("status = %d, want %d", outcome.StatusCode, tt.status)
			}
		})
	}
}

func TestPublish_FailureCarriesResponseSnippet(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
		io.WriteString(w, `{"error":"deep_link is required"}`)
	}))
	defer server.Close()

	p := newTestPublisher(server.URL)
	outcome, err := p.Publish(context.Background(), validEnvelope())
	if err != nil {
		t.Fatalf("Publish: %v", err)
	}

	if outcome.Body != `{"error":"deep_link is required"}` {
		t.Errorf("Body = %q, want upstream response", outcome.Body)
	}
	if !strings.Contains(outcome.Message, "deep_link is required") {
		t.Errorf("Message = %q, want it to embed the response", outcome.Message)
	}
}

func TestPublish_NetworkError(t *testing.T) {
	// Closed server: connection refused.
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := server.URL
	server.Close()

	p := newTestPublisher(url)
	outcome, err := p.Publish(context.Background(), validEnvelope())
	if err != nil {
		t.Fatalf("network failure must not be an error: %v", err)
	}
	if outcome.Success || outcome.Kind != domain.KindNetwork {
		t.Errorf("outcome = %+v, want network failure", outcome)
	}
}

func TestPublish_NotConfigured(t *testing.T) {
	p := New(Config{}, testLogger())

	if p.Configured() {
		t.Error("empty config should report unconfigured")
	}

	_, err := p.Publish(context.Background(), validEnvelope())
	var cfgErr *ConfigurationError
	if !errors.As(err, &cfgErr) {
		t.Fatalf("expected ConfigurationError, got %v", err)
	}
	if len(cfgErr.Missing) != 2 {
		t.Errorf("Missing = %v, want endpoint and secret", cfgErr.Missing)
	}
}

func TestValidate_CollectsAllViolations(t *testing.T) {
	p := newTestPublisher("http://unused")

	env := validEnvelope()
	env.Title = ""
	env.Tags = nil
	env.Features.Event.Location = ""

	err := p.Validate(env)
	var vErr *ValidationError
	if !errors.As(err, &vErr) {
		t.Fatalf("expected ValidationError, got %v", err)
	}

	wantSubstrings := []string{"title", "tag", "location"}
	for _, want := range wantSubstrings {
		found := false
		for _, viol := range vErr.Violations {
			if strings.Contains(viol, want) {
				found = true
				break
			}
		}
		if !found {
			t.Errorf("violations %v missing one mentioning %q", vErr.Violations, want)
		}
	}
}

func TestPublish_InvalidEnvelopeNeverHitsEndpoint(t *testing.T) {
	var hits int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++
	}))
	defer server.Close()

	p := newTestPublisher(server.URL)
	env := validEnvelope()
	env.Title = ""

	_, err := p.Publish(context.Background(), env)
	var vErr *ValidationError
	if !errors.As(err, &vErr) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
	if hits != 0 {
		t.Errorf("endpoint received %d requests for an invalid envelope", hits)
	}
}

func TestValidate_EndBeforeStart(t *testing.T) {
	p := newTestPublisher("http://unused")

	env := validEnvelope()
	env.Features.Event.EndTime = env.Features.Event.StartTime.Add(-time.Hour)

	err := p.Validate(env)
	var vErr *ValidationError
	if !errors.As(err, &vErr) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
}

func TestHealthCheck(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/health" {
			t.Errorf("probe path = %q, want /health", r.URL.Path)
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	p := newTestPublisher(server.URL)
	h, err := p.HealthCheck(context.Background())
	if err != nil {
		t.Fatalf("HealthCheck: %v", err)
	}
	if h.Status != "healthy" {
		t.Errorf("status = %q, want healthy", h.Status)
	}
}

func TestHealthCheck_Unreachable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := server.URL
	server.Close()

	p := newTestPublisher(url)
	h, err := p.HealthCheck(context.Background())
	if err != nil {
		t.Fatalf("HealthCheck: %v", err)
	}
	if h.Status != "unhealthy" {
		t.Errorf("status = %q, want unhealthy", h.Status)
	}
}

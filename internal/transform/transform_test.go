package transform

import (
	"errors"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/nuforge/gamesync/internal/domain"
)

func newTestTransformer(t *testing.T) *Transformer {
	t.Helper()
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
	tr := New(logger)
	tr.now = func() time.Time {
		return time.Date(2026, 1, 10, 9, 0, 0, 0, time.UTC)
	}
	return tr
}

func TestEventEnvelope_GameNight(t *testing.T) {
	tr := newTestTransformer(t)

	event := &domain.Event{
		ID:       1,
		Title:    "Game Night",
		Date:     "2025-12-15",
		Time:     "19:00",
		EndTime:  "22:00",
		Location: "Hall",
		Status:   "upcoming",
		GameID:   7,
		RSVPs: []domain.RSVP{
			{Status: "confirmed"},
			{Status: "confirmed"},
			{Status: "interested"},
		},
		MaxPlayers: 6,
	}

	env, err := tr.EventEnvelope(event)
	if err != nil {
		t.Fatalf("EventEnvelope: %v", err)
	}

	if env.ID != "event-1" {
		t.Errorf("ID = %q, want %q", env.ID, "event-1")
	}
	if env.Status != domain.StatusPublished {
		t.Errorf("Status = %q, want %q", env.Status, domain.StatusPublished)
	}

	sum := env.Attendance
	if sum == nil {
		t.Fatal("attendance summary missing")
	}
	if sum.Yes != 2 || sum.No != 0 || sum.Maybe != 1 || sum.Waitlist != 0 {
		t.Errorf("attendance = %+v, want yes=2 no=0 maybe=1 waitlist=0", sum)
	}
	if sum.Capacity == nil || *sum.Capacity != 6 {
		t.Errorf("capacity = %v, want 6", sum.Capacity)
	}

	ef := env.Features.Event
	if ef == nil {
		t.Fatal("event feature missing")
	}
	wantStart := time.Date(2025, 12, 15, 19, 0, 0, 0, time.UTC)
	wantEnd := time.Date(2025, 12, 15, 22, 0, 0, 0, time.UTC)
	if !ef.StartTime.Equal(wantStart) {
		t.Errorf("start = %v, want %v", ef.StartTime, wantStart)
	}
	if !ef.EndTime.Equal(wantEnd) {
		t.Errorf("end = %v, want %v", ef.EndTime, wantEnd)
	}

	// Game feature built from the event's game reference; event title is the
	// fallback name when no lookup is available.
	gf := env.Features.Game
	if gf == nil {
		t.Fatal("game feature missing")
	}
	if gf.GameID != 7 || gf.Name != "Game Night" {
		t.Errorf("game feature = %+v, want game_id=7 name=Game Night", gf)
	}
}

func TestEventEnvelope_TagsAndOrdering(t *testing.T) {
	tr := newTestTransformer(t)

	event := &domain.Event{
		ID:       3,
		Title:    "Strategy Sunday",
		Date:     "2026-02-01",
		Time:     "10:00",
		Location: "Cafe",
		Status:   "upcoming",
		Genre:    "Strategy",
	}

	env, err := tr.EventEnvelope(event)
	if err != nil {
		t.Fatalf("EventEnvelope: %v", err)
	}

	if !env.HasTag("event") {
		t.Error("tag set should contain the content-type tag")
	}
	if !env.HasTag(domain.SystemEvents) {
		t.Error("tag set should contain the owning-system tag")
	}
	if !env.HasTag("strategy") {
		t.Error("tag set should contain the lowercased genre")
	}

	ef := env.Features.Event
	if ef.EndTime.Before(ef.StartTime) {
		t.Errorf("end %v before start %v", ef.EndTime, ef.StartTime)
	}
}

func TestEventEnvelope_StatusTable(t *testing.T) {
	tr := newTestTransformer(t)

	tests := []struct {
		status string
		want   string
	}{
		{"upcoming", domain.StatusPublished},
		{"completed", domain.StatusArchived},
		{"cancelled", domain.StatusDeleted},
		{"draft", domain.StatusDraft},
		{"weird", domain.StatusPending},
		{"", domain.StatusPending},
	}

	for _, tt := range tests {
		event := &domain.Event{
			ID: 1, Title: "T", Date: "2026-01-01", Location: "L",
			Status: tt.status,
		}
		env, err := tr.EventEnvelope(event)
		if err != nil {
			t.Fatalf("EventEnvelope(status=%q): %v", tt.status, err)
		}
		if env.Status != tt.want {
			t.Errorf("status %q mapped to %q, want %q", tt.status, env.Status, tt.want)
		}
	}
}

func TestEventEnvelope_MissingRequiredFields(t *testing.T) {
	tr := newTestTransformer(t)

	_, err := tr.EventEnvelope(&domain.Event{Date: "2026-01-01"})

	var mapErr *MappingError
	if !errors.As(err, &mapErr) {
		t.Fatalf("expected MappingError, got %v", err)
	}
	want := map[string]bool{"id": true, "title": true, "location": true}
	for _, m := range mapErr.Missing {
		delete(want, m)
	}
	if len(want) > 0 {
		t.Errorf("MappingError.Missing = %v, still expected %v", mapErr.Missing, want)
	}
}

func TestEventEnvelope_MalformedDateFallsBack(t *testing.T) {
	tr := newTestTransformer(t)

	event := &domain.Event{
		ID: 2, Title: "Busted", Date: "not-a-date", Location: "Hall",
		Status: "upcoming",
	}

	env, err := tr.EventEnvelope(event)
	if err != nil {
		t.Fatalf("malformed date should degrade, not fail: %v", err)
	}

	// Falls back to the transformer clock, default session length applies.
	wantStart := time.Date(2026, 1, 10, 9, 0, 0, 0, time.UTC)
	ef := env.Features.Event
	if !ef.StartTime.Equal(wantStart) {
		t.Errorf("start = %v, want clock fallback %v", ef.StartTime, wantStart)
	}
	if !ef.EndTime.Equal(wantStart.Add(defaultDuration)) {
		t.Errorf("end = %v, want start + %v", ef.EndTime, defaultDuration)
	}
}

func TestEventEnvelope_EndBeforeStartCrossesMidnight(t *testing.T) {
	tr := newTestTransformer(t)

	event := &domain.Event{
		ID: 4, Title: "Late Night", Date: "2026-01-02", Time: "22:00",
		EndTime: "01:00", Location: "Basement", Status: "upcoming",
	}

	env, err := tr.EventEnvelope(event)
	if err != nil {
		t.Fatalf("EventEnvelope: %v", err)
	}

	ef := env.Features.Event
	want := time.Date(2026, 1, 3, 1, 0, 0, 0, time.UTC)
	if !ef.EndTime.Equal(want) {
		t.Errorf("end = %v, want next-day %v", ef.EndTime, want)
	}
	if ef.EndTime.Before(ef.StartTime) {
		t.Error("end must not precede start")
	}
}

func TestEventEnvelope_NoCapacityWhenUnbounded(t *testing.T) {
	tr := newTestTransformer(t)

	event := &domain.Event{
		ID: 5, Title: "Open Table", Date: "2026-01-05", Location: "Hall",
		Status: "upcoming",
	}

	env, err := tr.EventEnvelope(event)
	if err != nil {
		t.Fatalf("EventEnvelope: %v", err)
	}
	if env.Attendance.Capacity != nil {
		t.Errorf("capacity = %v, want nil for unbounded events", *env.Attendance.Capacity)
	}
}

func TestGameEnvelope_StatusTable(t *testing.T) {
	tr := newTestTransformer(t)

	tests := []struct {
		name     string
		approved bool
		status   string
		want     string
	}{
		{"approved active", true, "active", domain.StatusPublished},
		{"pending review", false, "pending", domain.StatusDraft},
		{"rejected", false, "rejected", domain.StatusArchived},
		{"approved but inactive", true, "inactive", domain.StatusArchived},
		{"unapproved active", false, "active", domain.StatusPending},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env, err := tr.GameEnvelope(&domain.Game{
				ID: 9, Title: "Catan", Approved: tt.approved, Status: tt.status,
			})
			if err != nil {
				t.Fatalf("GameEnvelope: %v", err)
			}
			if env.Status != tt.want {
				t.Errorf("status = %q, want %q", env.Status, tt.want)
			}
		})
	}
}

func TestGameEnvelope_BuildsGameFeatureOnly(t *testing.T) {
	tr := newTestTransformer(t)

	env, err := tr.GameEnvelope(&domain.Game{
		ID: 12, Title: "Terraforming Mars", Genre: "Strategy",
		PlayerCount: "1-5", Approved: true, Status: "active",
	})
	if err != nil {
		t.Fatalf("GameEnvelope: %v", err)
	}

	if env.Features.Event != nil {
		t.Error("game envelopes must not carry an event feature")
	}
	gf := env.Features.Game
	if gf == nil {
		t.Fatal("game feature missing")
	}
	if gf.GameID != 12 || gf.Name != "Terraforming Mars" || gf.PlayerCount != "1-5" {
		t.Errorf("game feature = %+v", gf)
	}
	if env.ID != "game-12" || env.Source != domain.SystemGames {
		t.Errorf("identity = %q/%q, want game-12/%q", env.ID, env.Source, domain.SystemGames)
	}
}

func TestGameEnvelope_MissingTitle(t *testing.T) {
	tr := newTestTransformer(t)

	_, err := tr.GameEnvelope(&domain.Game{ID: 1})

	var mapErr *MappingError
	if !errors.As(err, &mapErr) {
		t.Fatalf("expected MappingError, got %v", err)
	}
	if len(mapErr.Missing) != 1 || mapErr.Missing[0] != "title" {
		t.Errorf("Missing = %v, want [title]", mapErr.Missing)
	}
}

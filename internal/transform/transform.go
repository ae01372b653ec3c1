package transform

import (
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/nuforge/gamesync/internal/domain"
)

// defaultDuration is assumed for events that don't state an end time.
const defaultDuration = 3 * time.Hour

// MappingError reports source records that cannot be mapped because identity
// or title fields are absent. Everything else degrades with fallback values
// so one malformed record never blocks a batch.
type MappingError struct {
	Entity  string
	Missing []string
}

func (e *MappingError) Error() string {
	return fmt.Sprintf("cannot map %s: missing %s", e.Entity, strings.Join(e.Missing, ", "))
}

// Transformer builds publishable envelopes from domain entities. Pure
// mapping, no I/O; malformed optional fields fall back to best-effort
// values and are surfaced through the logger.
type Transformer struct {
	logger *slog.Logger
	now    func() time.Time
	loc    *time.Location
}

func New(logger *slog.Logger) *Transformer {
	return &Transformer{
		logger: logger,
		now:    time.Now,
		loc:    time.UTC,
	}
}

// EventEnvelope maps an event to an envelope. Requires id, title, date and
// location; returns MappingError when any are absent.
func (t *Transformer) EventEnvelope(event *domain.Event) (*domain.Envelope, error) {
	var missing []string
	if event.ID <= 0 {
		missing = append(missing, "id")
	}
	if event.Title == "" {
		missing = append(missing, "title")
	}
	if event.Date == "" {
		missing = append(missing, "date")
	}
	if event.Location == "" {
		missing = append(missing, "location")
	}
	if len(missing) > 0 {
		return nil, &MappingError{Entity: "event", Missing: missing}
	}

	start := t.parseStart(event)
	end := t.parseEnd(event, start)

	feature := &domain.EventFeature{
		StartTime: start,
		EndTime:   end,
		Location:  event.Location,
	}
	if event.MinPlayers > 0 {
		feature.MinPlayers = intPtr(event.MinPlayers)
	}
	if event.MaxPlayers > 0 {
		feature.MaxPlayers = intPtr(event.MaxPlayers)
	}

	env := &domain.Envelope{
		ID:          fmt.Sprintf("event-%d", event.ID),
		Title:       event.Title,
		Description: event.Description,
		Status:      eventStatus(event.Status),
		Tags:        buildTags("event", domain.SystemEvents, event.Genre),
		Features:    domain.Features{Event: feature},
		Attendance:  summarizeRSVPs(event),
		Images:      event.Images,
		Source:      domain.SystemEvents,
		SourceRef:   strconv.Itoa(event.ID),
		DeepLink:    event.DeepLink,
		CreatedAt:   t.orNow(event.CreatedAt),
		UpdatedAt:   t.orNow(event.UpdatedAt),
	}

	if event.GameID > 0 {
		name := event.GameName
		if name == "" {
			// No game lookup available here; the event title is the best
			// name we have.
			name = event.Title
		}
		env.Features.Game = &domain.GameFeature{
			GameID: event.GameID,
			Name:   name,
			Genre:  event.Genre,
		}
	}

	return env, nil
}

// GameEnvelope maps a game catalog entry to an envelope. Requires id and
// title.
func (t *Transformer) GameEnvelope(game *domain.Game) (*domain.Envelope, error) {
	var missing []string
	if game.ID <= 0 {
		missing = append(missing, "id")
	}
	if game.Title == "" {
		missing = append(missing, "title")
	}
	if len(missing) > 0 {
		return nil, &MappingError{Entity: "game", Missing: missing}
	}

	return &domain.Envelope{
		ID:          fmt.Sprintf("game-%d", game.ID),
		Title:       game.Title,
		Description: game.Description,
		Status:      gameStatus(game.Approved, game.Status),
		Tags:        buildTags("game", domain.SystemGames, game.Genre),
		Features: domain.Features{
			Game: &domain.GameFeature{
				GameID:      game.ID,
				Name:        game.Title,
				Genre:       game.Genre,
				PlayerCount: game.PlayerCount,
			},
		},
		Images:    game.Images,
		Source:    domain.SystemGames,
		SourceRef: strconv.Itoa(game.ID),
		DeepLink:  game.DeepLink,
		CreatedAt: t.orNow(game.CreatedAt),
		UpdatedAt: t.orNow(game.UpdatedAt),
	}, nil
}

// eventStatus maps event lifecycle statuses onto envelope statuses.
func eventStatus(status string) string {
	switch status {
	case "upcoming":
		return domain.StatusPublished
	case "completed":
		return domain.StatusArchived
	case "cancelled":
		return domain.StatusDeleted
	case "draft":
		return domain.StatusDraft
	default:
		return domain.StatusPending
	}
}

// gameStatus maps moderation state onto envelope statuses.
func gameStatus(approved bool, status string) string {
	switch {
	case approved && status == "active":
		return domain.StatusPublished
	case status == "pending":
		return domain.StatusDraft
	case status == "rejected" || status == "inactive":
		return domain.StatusArchived
	default:
		return domain.StatusPending
	}
}

// parseStart combines the event's date and time fields. A malformed value
// degrades to the transformer's clock so one bad record never halts a
// batch; the fallback is logged, never silent.
func (t *Transformer) parseStart(event *domain.Event) time.Time {
	clock := event.Time
	if clock == "" {
		clock = "00:00"
	}
	start, err := time.ParseInLocation("2006-01-02 15:04", event.Date+" "+clock, t.loc)
	if err != nil {
		start = t.now().In(t.loc)
		t.logger.Warn("event has unparseable start, falling back to current time",
			"event_id", event.ID,
			"date", event.Date,
			"time", event.Time,
		)
	}
	return start
}

// parseEnd resolves the event's end on the same day as start, defaulting to
// a fixed session length. An end earlier than start is taken to cross
// midnight.
func (t *Transformer) parseEnd(event *domain.Event, start time.Time) time.Time {
	if event.EndTime == "" {
		return start.Add(defaultDuration)
	}
	endClock, err := time.ParseInLocation("15:04", event.EndTime, t.loc)
	if err != nil {
		t.logger.Warn("event has unparseable end time, falling back to default duration",
			"event_id", event.ID,
			"end_time", event.EndTime,
		)
		return start.Add(defaultDuration)
	}
	end := time.Date(start.Year(), start.Month(), start.Day(),
		endClock.Hour(), endClock.Minute(), 0, 0, t.loc)
	if end.Before(start) {
		end = end.Add(24 * time.Hour)
	}
	return end
}

// summarizeRSVPs counts responses by status. Unknown statuses are ignored.
func summarizeRSVPs(event *domain.Event) *domain.AttendanceSummary {
	sum := &domain.AttendanceSummary{}
	for _, r := range event.RSVPs {
		switch r.Status {
		case domain.RSVPConfirmed:
			sum.Yes++
		case domain.RSVPDeclined:
			sum.No++
		case domain.RSVPInterested:
			sum.Maybe++
		case domain.RSVPWaitlist:
			sum.Waitlist++
		}
	}
	if event.MaxPlayers > 0 {
		sum.Capacity = intPtr(event.MaxPlayers)
	}
	return sum
}

func buildTags(contentType, system, genre string) []string {
	tags := []string{contentType, system}
	if genre != "" {
		tags = append(tags, strings.ToLower(genre))
	}
	return tags
}

func (t *Transformer) orNow(ts time.Time) time.Time {
	if ts.IsZero() {
		return t.now()
	}
	return ts
}

func intPtr(n int) *int {
	return &n
}

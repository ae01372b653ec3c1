package domain

import (
	"encoding/json"
	"time"
)

// Envelope lifecycle statuses.
const (
	StatusDraft     = "draft"
	StatusPublished = "published"
	StatusPending   = "pending"
	StatusArchived  = "archived"
	StatusDeleted   = "deleted"
)

// Owning systems. Every envelope originates from exactly one of these.
const (
	SystemEvents = "events"
	SystemGames  = "games"
)

// ValidStatus reports whether s is a known envelope status.
func ValidStatus(s string) bool {
	switch s {
	case StatusDraft, StatusPublished, StatusPending, StatusArchived, StatusDeleted:
		return true
	}
	return false
}

// ValidSystem reports whether s is a known owning system.
func ValidSystem(s string) bool {
	return s == SystemEvents || s == SystemGames
}

// Envelope is the normalized publishable unit sent to the content-ingestion
// endpoint. Once built for a publish attempt it is never mutated; retries
// re-send the same content.
type Envelope struct {
	ID          string             `json:"id"`
	Title       string             `json:"title"`
	Description string             `json:"description,omitempty"`
	Status      string             `json:"status"`
	Tags        []string           `json:"tags"`
	Features    Features           `json:"features"`
	Attendance  *AttendanceSummary `json:"attendance,omitempty"`
	Images      []ImageRef         `json:"images,omitempty"`
	Source      string             `json:"source"`
	SourceRef   string             `json:"source_ref,omitempty"`
	DeepLink    string             `json:"deep_link,omitempty"`
	CreatedAt   time.Time          `json:"created_at"`
	UpdatedAt   time.Time          `json:"updated_at"`
}

// Features is the envelope's typed feature bag. The two known variants are
// modeled explicitly; anything the ingestion side adds later lands in
// Unknown and round-trips untouched.
type Features struct {
	Event   *EventFeature              `json:"event,omitempty"`
	Game    *GameFeature               `json:"game,omitempty"`
	Unknown map[string]json.RawMessage `json:"-"`
}

// EventFeature describes a scheduled gathering.
type EventFeature struct {
	StartTime  time.Time `json:"start_time"`
	EndTime    time.Time `json:"end_time"`
	Location   string    `json:"location"`
	MinPlayers *int      `json:"min_players,omitempty"`
	MaxPlayers *int      `json:"max_players,omitempty"`
}

// GameFeature describes the game being played or cataloged.
type GameFeature struct {
	GameID      int    `json:"game_id"`
	Name        string `json:"name"`
	Genre       string `json:"genre,omitempty"`
	PlayerCount string `json:"player_count,omitempty"`
}

// AttendanceSummary aggregates RSVP responses. Capacity is nil when the
// event has no ceiling.
type AttendanceSummary struct {
	Yes      int  `json:"yes"`
	No       int  `json:"no"`
	Maybe    int  `json:"maybe"`
	Waitlist int  `json:"waitlist"`
	Capacity *int `json:"capacity"`
}

// ImageRef points at an externally hosted image.
type ImageRef struct {
	URL     string `json:"url"`
	Caption string `json:"caption,omitempty"`
	Width   int    `json:"width,omitempty"`
	Height  int    `json:"height,omitempty"`
}

// HasTag reports whether the envelope's tag set contains tag.
func (e *Envelope) HasTag(tag string) bool {
	for _, t := range e.Tags {
		if t == tag {
			return true
		}
	}
	return false
}

// MarshalJSON flattens Unknown feature entries alongside the typed variants.
func (f Features) MarshalJSON() ([]byte, error) {
	out := make(map[string]json.RawMessage, len(f.Unknown)+2)
	for k, v := range f.Unknown {
		out[k] = v
	}
	if f.Event != nil {
		b, err := json.Marshal(f.Event)
		if err != nil {
			return nil, err
		}
		out["event"] = b
	}
	if f.Game != nil {
		b, err := json.Marshal(f.Game)
		if err != nil {
			return nil, err
		}
		out["game"] = b
	}
	return json.Marshal(out)
}

// UnmarshalJSON splits known feature keys into their typed variants and
// keeps the rest in Unknown.
func (f *Features) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	for k, v := range raw {
		switch k {
		case "event":
			var ef EventFeature
			if err := json.Unmarshal(v, &ef); err != nil {
				return err
			}
			f.Event = &ef
		case "game":
			var gf GameFeature
			if err := json.Unmarshal(v, &gf); err != nil {
				return err
			}
			f.Game = &gf
		default:
			if f.Unknown == nil {
				f.Unknown = make(map[string]json.RawMessage)
			}
			f.Unknown[k] = v
		}
	}
	return nil
}

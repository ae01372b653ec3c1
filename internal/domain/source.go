package domain

import "time"

// RSVP response statuses as the event system records them.
const (
	RSVPConfirmed  = "confirmed"
	RSVPDeclined   = "declined"
	RSVPInterested = "interested"
	RSVPWaitlist   = "waitlist"
)

// Event is a gathering as the events system stores it. Date and time fields
// arrive as strings ("2025-12-15", "19:00") and are combined during
// transformation.
type Event struct {
	ID          int        `json:"id"`
	Title       string     `json:"title"`
	Description string     `json:"description,omitempty"`
	Date        string     `json:"date"`
	Time        string     `json:"time,omitempty"`
	EndTime     string     `json:"end_time,omitempty"`
	Location    string     `json:"location"`
	Status      string     `json:"status"`
	GameID      int        `json:"game_id,omitempty"`
	GameName    string     `json:"game_name,omitempty"`
	Genre       string     `json:"genre,omitempty"`
	MinPlayers  int        `json:"min_players,omitempty"`
	MaxPlayers  int        `json:"max_players,omitempty"`
	RSVPs       []RSVP     `json:"rsvps,omitempty"`
	Images      []ImageRef `json:"images,omitempty"`
	DeepLink    string     `json:"deep_link,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// RSVP is a single attendance response.
type RSVP struct {
	UserID string `json:"user_id,omitempty"`
	Status string `json:"status"`
}

// Game is a catalog entry as the games system stores it. Submissions start
// unapproved and are moderated before they go live.
type Game struct {
	ID          int        `json:"id"`
	Title       string     `json:"title"`
	Description string     `json:"description,omitempty"`
	Genre       string     `json:"genre,omitempty"`
	PlayerCount string     `json:"player_count,omitempty"`
	Approved    bool       `json:"approved"`
	Status      string     `json:"status"`
	Images      []ImageRef `json:"images,omitempty"`
	DeepLink    string     `json:"deep_link,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

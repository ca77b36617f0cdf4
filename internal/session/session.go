package session

import "time"

// State is the position of an admin in the ingestion flow.
type State string

const (
	StateIdle            State = "idle"
	StateAwaitingFile    State = "awaiting_file"
	StateAwaitingCaption State = "awaiting_caption"
)

// Mode records whether the session started from add_season or edit_season.
type Mode string

const (
	ModeCreate Mode = "create"
	ModeEdit   Mode = "edit"
)

// Input is a state-scoped event an admin can send mid-session.
type Input string

const (
	InputFile    Input = "file"
	InputCaption Input = "caption"
	InputSkip    Input = "skip"
	InputDone    Input = "done"
)

// Accepts reports whether the state declares a transition for in.
func (s State) Accepts(in Input) bool {
	switch s {
	case StateAwaitingFile:
		return in == InputFile || in == InputDone
	case StateAwaitingCaption:
		return in == InputCaption || in == InputSkip || in == InputDone
	default:
		return false
	}
}

// Session is the ingestion progress of one admin.
type Session struct {
	UserID      int64     `json:"user_id"`
	State       State     `json:"state"`
	Mode        Mode      `json:"mode,omitempty"`
	SeasonKey   string    `json:"season_key,omitempty"`
	SeasonTitle string    `json:"season_title,omitempty"`
	PendingFile string    `json:"pending_file,omitempty"`
	Added       int       `json:"added"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Idle returns the empty session for userID.
func Idle(userID int64) Session {
	return Session{UserID: userID, State: StateIdle}
}

// Active reports whether the session is mid-flow.
func (s Session) Active() bool {
	return s.State == StateAwaitingFile || s.State == StateAwaitingCaption
}

func (s Session) expired(now time.Time, ttl time.Duration) bool {
	return ttl > 0 && !s.UpdatedAt.IsZero() && now.Sub(s.UpdatedAt) > ttl
}

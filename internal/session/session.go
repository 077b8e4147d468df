package session

import (
	"context"

	"github.com/spigell/vkinder/internal/profile"
)

// Session is a user's current candidate list and a cursor into it.
// Cursor is always within [0, len(Candidates)]; Cursor == len means exhausted.
type Session struct {
	UserID     int64               `json:"user_id"`
	Candidates []profile.Candidate `json:"candidates"`
	Cursor     int                 `json:"cursor"`
}

func (s Session) Len() int {
	return len(s.Candidates)
}

// Exhausted reports whether the cursor has moved past the last candidate.
func (s Session) Exhausted() bool {
	return s.Cursor >= len(s.Candidates)
}

// Current returns the candidate under the cursor.
func (s Session) Current() (profile.Candidate, bool) {
	if s.Cursor < 0 || s.Exhausted() {
		return profile.Candidate{}, false
	}
	return s.Candidates[s.Cursor], true
}

// normalize brings a cursor decoded from a backend back into bounds.
func (s Session) normalize() Session {
	if s.Cursor < 0 {
		s.Cursor = 0
	}
	if s.Cursor > len(s.Candidates) {
		s.Cursor = len(s.Candidates)
	}
	return s
}

// Store keeps one session per user. A missing session is reported with ok == false
// and is not an error.
type Store interface {
	Get(ctx context.Context, userID int64) (Session, bool, error)
	// Put overwrites any session of the user.
	Put(ctx context.Context, s Session) error
	// Advance moves the cursor forward by one, saturating at the list length,
	// and returns the updated session.
	Advance(ctx context.Context, userID int64) (Session, bool, error)
}

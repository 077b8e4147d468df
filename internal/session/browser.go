package session

import (
	"context"
	"fmt"

	"github.com/spigell/vkinder/internal/profile"
)

// State is the browsing state of a user.
type State int

const (
	// StateNoSession means the user has not started a search yet.
	StateNoSession State = iota
	// StateActive means a candidate is available under the cursor.
	StateActive
	// StateExhausted means the cursor has moved past the last candidate.
	StateExhausted
)

func (s State) String() string {
	switch s {
	case StateNoSession:
		return "no_session"
	case StateActive:
		return "active"
	case StateExhausted:
		return "exhausted"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Result is the outcome of a browsing operation.
type Result struct {
	State     State
	Candidate profile.Candidate
	Cursor    int
	Total     int
}

// Browser implements the candidate browsing state machine on top of a Store.
type Browser struct {
	store Store
}

func NewBrowser(store Store) *Browser {
	return &Browser{store: store}
}

// Find starts a new browsing pass, replacing any previous one.
func (b *Browser) Find(ctx context.Context, userID int64, candidates []profile.Candidate) (Result, error) {
	s := Session{UserID: userID, Candidates: candidates, Cursor: 0}
	if err := b.store.Put(ctx, s); err != nil {
		return Result{}, fmt.Errorf("put session: %w", err)
	}
	return resultOf(s, true), nil
}

// Current reports the candidate under the cursor.
func (b *Browser) Current(ctx context.Context, userID int64) (Result, error) {
	s, ok, err := b.store.Get(ctx, userID)
	if err != nil {
		return Result{}, fmt.Errorf("get session: %w", err)
	}
	return resultOf(s, ok), nil
}

// Next moves to the following candidate. The cursor never passes the list length.
func (b *Browser) Next(ctx context.Context, userID int64) (Result, error) {
	s, ok, err := b.store.Advance(ctx, userID)
	if err != nil {
		return Result{}, fmt.Errorf("advance session: %w", err)
	}
	return resultOf(s, ok), nil
}

// SkipBlacklisted advances past blacklisted candidates starting at the cursor until a
// candidate outside the blacklist is found or the list is exhausted. Every iteration
// either returns or moves the cursor forward, so the loop runs at most len+1 times.
func (b *Browser) SkipBlacklisted(ctx context.Context, userID int64, blacklist profile.IDSet) (Result, error) {
	res, err := b.Current(ctx, userID)
	if err != nil {
		return Result{}, err
	}

	for res.State == StateActive && blacklist.Has(res.Candidate.ID) {
		prev := res.Cursor
		res, err = b.Next(ctx, userID)
		if err != nil {
			return Result{}, err
		}
		if res.State == StateActive && res.Cursor <= prev {
			return Result{}, fmt.Errorf("session cursor did not advance past %d", prev)
		}
	}

	return res, nil
}

func resultOf(s Session, ok bool) Result {
	if !ok {
		return Result{State: StateNoSession}
	}

	res := Result{Cursor: s.Cursor, Total: s.Len()}
	if c, found := s.Current(); found {
		res.State = StateActive
		res.Candidate = c
		return res
	}

	res.State = StateExhausted
	return res
}

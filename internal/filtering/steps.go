package filtering

import (
	"context"
	"strconv"

	"github.com/spigell/vkinder/internal/profile"
	"go.uber.org/zap"
)

type selfFilter struct {
	toggle
	userID int64
}

// NewSelf creates a filter that removes the requester from their own results.
func NewSelf(userID int64) Filter {
	return &selfFilter{userID: userID}
}

func (f *selfFilter) Name() string { return "self" }

func (f *selfFilter) Apply(_ context.Context, candidates []profile.Candidate) ([]profile.Candidate, Step, error) {
	out, step := keep(candidates, func(c profile.Candidate) bool { return c.ID != f.userID })
	return out, step, nil
}

type sexFilter struct {
	toggle
	want profile.Sex
}

// NewOppositeSex keeps candidates of the sex opposite to the requester's.
// When the requester's sex is unknown the step keeps everyone.
func NewOppositeSex(userSex profile.Sex) Filter {
	return &sexFilter{want: userSex.Opposite()}
}

func (f *sexFilter) Name() string { return "sex" }

func (f *sexFilter) Apply(_ context.Context, candidates []profile.Candidate) ([]profile.Candidate, Step, error) {
	if f.want == profile.SexUnknown {
		return candidates, Step{Initial: len(candidates), Left: len(candidates)}, nil
	}
	out, step := keep(candidates, func(c profile.Candidate) bool { return c.Sex == f.want })
	return out, step, nil
}

func (f *sexFilter) Status() Status {
	return Status{Name: f.Name(), Enabled: f.IsEnabled(), Reason: f.reason, Details: map[string]string{
		"want": f.want.Gender(),
	}}
}

type closedFilter struct {
	toggle
}

// NewClosed creates a filter that removes private profiles.
func NewClosed() Filter {
	return &closedFilter{}
}

func (f *closedFilter) Name() string { return "closed" }

func (f *closedFilter) Apply(_ context.Context, candidates []profile.Candidate) ([]profile.Candidate, Step, error) {
	out, step := keep(candidates, func(c profile.Candidate) bool { return !c.Closed })
	return out, step, nil
}

type duplicatesFilter struct {
	toggle
}

// NewDuplicates keeps the first occurrence of every candidate.
func NewDuplicates() Filter {
	return &duplicatesFilter{}
}

func (f *duplicatesFilter) Name() string { return "duplicates" }

func (f *duplicatesFilter) Apply(_ context.Context, candidates []profile.Candidate) ([]profile.Candidate, Step, error) {
	seen := make(profile.IDSet, len(candidates))
	out, step := keep(candidates, func(c profile.Candidate) bool {
		if seen.Has(c.ID) {
			return false
		}
		seen.Add(c.ID)
		return true
	})
	return out, step, nil
}

type limitFilter struct {
	toggle
	max int
}

// NewLimit caps the number of candidates. Non-positive max disables the cap.
func NewLimit(max int) Filter {
	return &limitFilter{max: max}
}

func (f *limitFilter) Name() string { return "limit" }

func (f *limitFilter) Apply(_ context.Context, candidates []profile.Candidate) ([]profile.Candidate, Step, error) {
	initial := len(candidates)
	if f.max <= 0 || initial <= f.max {
		return candidates, Step{Initial: initial, Left: initial}, nil
	}
	return candidates[:f.max], Step{Initial: initial, Dropped: initial - f.max, Left: f.max}, nil
}

func (f *limitFilter) Status() Status {
	return Status{Name: f.Name(), Enabled: f.IsEnabled(), Reason: f.reason, Details: map[string]string{
		"max": strconv.Itoa(f.max),
	}}
}

// ForSearch builds the pipeline applied to raw search results of the given user.
func ForSearch(user profile.User, blacklist profile.IDSet, max int, logger *zap.Logger) *Filtering {
	return New([]Filter{
		NewSelf(user.ID),
		NewDuplicates(),
		NewOppositeSex(user.Sex),
		NewClosed(),
		NewBlacklist(blacklist, logger),
		NewLimit(max),
	}, logger)
}

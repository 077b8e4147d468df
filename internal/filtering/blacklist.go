package filtering

import (
	"context"
	"strconv"

	"github.com/spigell/vkinder/internal/profile"
	"go.uber.org/zap"
)

// ExcludeBlacklisted drops every candidate whose identifier is in the blacklist.
// The order of the remaining candidates is preserved.
func ExcludeBlacklisted(candidates []profile.Candidate, blacklist profile.IDSet) []profile.Candidate {
	out, _ := keep(candidates, func(c profile.Candidate) bool { return !blacklist.Has(c.ID) })
	return out
}

type blacklistFilter struct {
	toggle
	blacklist profile.IDSet
	logger    *zap.Logger
}

// NewBlacklist creates a filter that removes candidates the user has blocked.
func NewBlacklist(blacklist profile.IDSet, logger *zap.Logger) Filter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &blacklistFilter{blacklist: blacklist, logger: logger}
}

func (f *blacklistFilter) Name() string { return "blacklist" }

func (f *blacklistFilter) Apply(_ context.Context, candidates []profile.Candidate) ([]profile.Candidate, Step, error) {
	initial := len(candidates)
	out := ExcludeBlacklisted(candidates, f.blacklist)

	if dropped := initial - len(out); dropped > 0 {
		f.logger.Info("excluding blacklisted candidates",
			zap.Int("excluded", dropped),
			zap.Int("candidates_left", len(out)),
		)
	}

	return out, Step{Initial: initial, Dropped: initial - len(out), Left: len(out)}, nil
}

func (f *blacklistFilter) Status() Status {
	return Status{Name: f.Name(), Enabled: f.IsEnabled(), Reason: f.reason, Details: map[string]string{
		"entries": strconv.Itoa(f.blacklist.Len()),
	}}
}

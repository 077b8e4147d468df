package ai

import (
	"context"

	"github.com/spigell/vkinder/internal/profile"
)

// Pair is what the icebreaker knows about the two people.
type Pair struct {
	User         profile.User
	Candidate    profile.Candidate
	CommonGroups int
	Score        float64
}

// Icebreaker suggests a first message the user could send to a candidate.
type Icebreaker interface {
	Suggest(ctx context.Context, pair Pair) (string, error)
}

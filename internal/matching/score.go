package matching

import (
	"fmt"
	"math"
	"strings"

	"github.com/spigell/vkinder/internal/profile"
)

// Weights of the compatibility terms. They add up to 1.
const (
	WeightAge    = 0.4
	WeightCity   = 0.3
	WeightGroups = 0.3

	// maxAgeGap is the age difference at which the age term reaches zero.
	maxAgeGap = 10
	// groupsSaturation is the number of common groups giving the full groups term.
	groupsSaturation = 10
)

// Breakdown holds the individual terms of a score.
type Breakdown struct {
	Age    float64
	City   float64
	Groups float64
}

// Total returns the clamped sum of the terms.
func (b Breakdown) Total() float64 {
	return clamp(b.Age + b.City + b.Groups)
}

// Score estimates compatibility between the user and a candidate in [0, 1].
func Score(user profile.User, candidate profile.Candidate, commonGroups int) float64 {
	return Explain(user, candidate, commonGroups).Total()
}

// Explain computes the weighted terms used by Score.
func Explain(user profile.User, candidate profile.Candidate, commonGroups int) Breakdown {
	return Breakdown{
		Age:    ageTerm(user.Age, candidate.Age),
		City:   cityTerm(user.City, candidate.City),
		Groups: groupsTerm(commonGroups),
	}
}

func ageTerm(a, b *int) float64 {
	if a == nil || b == nil {
		return 0
	}
	gap := *a - *b
	if gap < 0 {
		gap = -gap
	}
	if gap > maxAgeGap {
		gap = maxAgeGap
	}
	return WeightAge * (1 - float64(gap)/maxAgeGap)
}

func cityTerm(a, b string) float64 {
	a, b = strings.TrimSpace(a), strings.TrimSpace(b)
	if a == "" || b == "" {
		return 0
	}
	if !strings.EqualFold(a, b) {
		return 0
	}
	return WeightCity
}

func groupsTerm(common int) float64 {
	if common <= 0 {
		return 0
	}
	return WeightGroups * math.Min(float64(common)/groupsSaturation, 1)
}

func clamp(v float64) float64 {
	if math.IsNaN(v) || v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// Percent renders a score as an integer percentage, e.g. "77%".
func Percent(score float64) string {
	return fmt.Sprintf("%.0f%%", clamp(score)*100)
}

// CommonGroups counts groups both users are members of.
func CommonGroups(user, candidate profile.IDSet) int {
	return user.Intersect(candidate)
}

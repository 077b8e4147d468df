package matching

import (
	"math"
	"testing"

	"github.com/spigell/vkinder/internal/profile"
)

const epsilon = 1e-9

func TestScoreScenario(t *testing.T) {
	t.Parallel()

	user := profile.User{Age: profile.Age(30), City: "Moscow"}
	candidate := profile.Candidate{Age: profile.Age(32), City: "Moscow"}

	parts := Explain(user, candidate, 5)
	if math.Abs(parts.Age-0.32) > epsilon {
		t.Fatalf("expected age term 0.32, got %v", parts.Age)
	}
	if math.Abs(parts.City-0.3) > epsilon {
		t.Fatalf("expected city term 0.3, got %v", parts.City)
	}
	if math.Abs(parts.Groups-0.15) > epsilon {
		t.Fatalf("expected groups term 0.15, got %v", parts.Groups)
	}

	score := Score(user, candidate, 5)
	if math.Abs(score-0.77) > epsilon {
		t.Fatalf("expected total 0.77, got %v", score)
	}
	if got := Percent(score); got != "77%" {
		t.Fatalf("expected 77%%, got %q", got)
	}
}

func TestAgeTermMonotonic(t *testing.T) {
	t.Parallel()

	user := profile.User{Age: profile.Age(30)}
	prev := math.Inf(1)
	for gap := 0; gap <= 15; gap++ {
		candidate := profile.Candidate{Age: profile.Age(30 + gap)}
		got := Explain(user, candidate, 0).Age
		if got > prev+epsilon {
			t.Fatalf("age term increased at gap %d: %v > %v", gap, got, prev)
		}
		if gap >= maxAgeGap && got != 0 {
			t.Fatalf("expected zero age term at gap %d, got %v", gap, got)
		}
		prev = got
	}

	younger := Explain(user, profile.Candidate{Age: profile.Age(27)}, 0).Age
	older := Explain(user, profile.Candidate{Age: profile.Age(33)}, 0).Age
	if math.Abs(younger-older) > epsilon {
		t.Fatalf("age term must be symmetric: %v vs %v", younger, older)
	}
}

func TestCityTerm(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		user string
		cand string
		want float64
	}{
		{name: "case insensitive match", user: "Moscow", cand: "moscow", want: WeightCity},
		{name: "cyrillic case insensitive", user: "Москва", cand: "МОСКВА", want: WeightCity},
		{name: "different", user: "Moscow", cand: "Kazan", want: 0},
		{name: "user city absent", user: "", cand: "Moscow", want: 0},
		{name: "candidate city absent", user: "Moscow", cand: "", want: 0},
		{name: "both absent", user: "", cand: "", want: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got := Explain(profile.User{City: tt.user}, profile.Candidate{City: tt.cand}, 0).City
			if got != tt.want {
				t.Fatalf("expected %v, got %v", tt.want, got)
			}
		})
	}
}

func TestScoreBounds(t *testing.T) {
	t.Parallel()

	ages := []*int{nil, profile.Age(18), profile.Age(25), profile.Age(60)}
	cities := []string{"", "Moscow", "moscow", "Kazan"}
	groups := []int{-3, 0, 1, 5, 10, 500}

	for _, ua := range ages {
		for _, ca := range ages {
			for _, uc := range cities {
				for _, cc := range cities {
					for _, g := range groups {
						s := Score(profile.User{Age: ua, City: uc}, profile.Candidate{Age: ca, City: cc}, g)
						if s < 0 || s > 1 {
							t.Fatalf("score out of bounds: %v", s)
						}
					}
				}
			}
		}
	}

	full := Score(profile.User{Age: profile.Age(30), City: "A"}, profile.Candidate{Age: profile.Age(30), City: "a"}, 100)
	if math.Abs(full-1) > epsilon {
		t.Fatalf("expected perfect score 1, got %v", full)
	}
}

func TestMissingFieldsDegrade(t *testing.T) {
	t.Parallel()

	if got := Score(profile.User{}, profile.Candidate{}, 0); got != 0 {
		t.Fatalf("expected 0 for empty profiles, got %v", got)
	}
	if got := Score(profile.User{}, profile.Candidate{}, 10); math.Abs(got-WeightGroups) > epsilon {
		t.Fatalf("expected only the groups term, got %v", got)
	}
}

func TestPercent(t *testing.T) {
	t.Parallel()

	cases := map[float64]string{0: "0%", 0.5: "50%", 1: "100%", 1.7: "100%", -1: "0%", 0.654: "65%"}
	for in, want := range cases {
		if got := Percent(in); got != want {
			t.Fatalf("Percent(%v): expected %q, got %q", in, want, got)
		}
	}
}

func TestCommonGroups(t *testing.T) {
	t.Parallel()

	if got := CommonGroups(profile.NewIDSet(1, 2, 3), profile.NewIDSet(2, 3, 4)); got != 2 {
		t.Fatalf("expected 2, got %d", got)
	}
}

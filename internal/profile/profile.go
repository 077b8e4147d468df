package profile

import (
	"fmt"
	"strings"
)

// Sex follows the VK encoding.
type Sex int

const (
	SexUnknown Sex = 0
	SexFemale  Sex = 1
	SexMale    Sex = 2
)

// Gender returns the storage representation of the sex.
func (s Sex) Gender() string {
	switch s {
	case SexFemale:
		return "female"
	case SexMale:
		return "male"
	default:
		return "unknown"
	}
}

// Opposite returns the opposite sex, or SexUnknown when s is unknown.
func (s Sex) Opposite() Sex {
	switch s {
	case SexFemale:
		return SexMale
	case SexMale:
		return SexFemale
	default:
		return SexUnknown
	}
}

// SexFromGender is the inverse of Sex.Gender.
func SexFromGender(gender string) Sex {
	switch strings.ToLower(strings.TrimSpace(gender)) {
	case "female":
		return SexFemale
	case "male":
		return SexMale
	default:
		return SexUnknown
	}
}

// User is the person talking to the bot.
type User struct {
	ID         int64  `json:"id"`
	FirstName  string `json:"first_name"`
	LastName   string `json:"last_name"`
	Age        *int   `json:"age,omitempty"`
	City       string `json:"city,omitempty"`
	Sex        Sex    `json:"sex"`
	ProfileURL string `json:"profile_url"`
}

// Candidate is a profile proposed as a potential match.
type Candidate struct {
	ID         int64  `json:"id"`
	FirstName  string `json:"first_name"`
	LastName   string `json:"last_name"`
	Age        *int   `json:"age,omitempty"`
	City       string `json:"city,omitempty"`
	Sex        Sex    `json:"sex"`
	ProfileURL string `json:"profile_url"`
	Closed     bool   `json:"closed,omitempty"`
}

func (c Candidate) FullName() string {
	return strings.TrimSpace(c.FirstName + " " + c.LastName)
}

func (u User) FullName() string {
	return strings.TrimSpace(u.FirstName + " " + u.LastName)
}

// Photo is a ranked candidate photo. Rank starts at 1.
type Photo struct {
	ID      int64  `json:"id"`
	OwnerID int64  `json:"owner_id"`
	Likes   int    `json:"likes"`
	URL     string `json:"url"`
	Rank    int    `json:"rank"`
}

// Attachment renders the photo in the messages.send attachment format.
func (p Photo) Attachment() string {
	return fmt.Sprintf("photo%d_%d", p.OwnerID, p.ID)
}

// Attachments renders a list of photos as attachment references.
func Attachments(photos []Photo) []string {
	out := make([]string, 0, len(photos))
	for _, p := range photos {
		out = append(out, p.Attachment())
	}
	return out
}

// Age returns a pointer to v. Handy for literals.
func Age(v int) *int {
	return &v
}

// ProfileURL builds a VK profile link from a screen name, falling back to the numeric id.
func ProfileURL(id int64, domain string) string {
	domain = strings.TrimSpace(domain)
	if domain == "" {
		domain = fmt.Sprintf("id%d", id)
	}
	return "https://vk.com/" + domain
}

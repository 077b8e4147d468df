package storage

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spigell/vkinder/internal/profile"
)

var ErrUserNotFound = errors.New("user not found")

// DefaultPhotoLimit is the number of photos kept per candidate.
const DefaultPhotoLimit = 3

func ValidateUser(u profile.User) error {
	if u.ID <= 0 {
		return fmt.Errorf("invalid user id %d", u.ID)
	}
	return nil
}

func ValidateCandidate(c profile.Candidate) error {
	if c.ID <= 0 {
		return fmt.Errorf("invalid candidate id %d", c.ID)
	}
	return nil
}

func ValidatePair(userID, otherID int64) error {
	if userID <= 0 || otherID <= 0 {
		return fmt.Errorf("invalid pair %d/%d", userID, otherID)
	}
	return nil
}

// Statements splits a schema file into single statements, dropping comments and blanks.
func Statements(schema string) []string {
	var cleaned strings.Builder
	for _, line := range strings.Split(schema, "\n") {
		if strings.HasPrefix(strings.TrimSpace(line), "--") {
			continue
		}
		cleaned.WriteString(line)
		cleaned.WriteString("\n")
	}

	var out []string
	for _, stmt := range strings.Split(cleaned.String(), ";") {
		if stmt = strings.TrimSpace(stmt); stmt != "" {
			out = append(out, stmt)
		}
	}
	return out
}

// NullableString maps an empty string to nil for optional columns.
func NullableString(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}

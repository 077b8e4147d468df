package vk

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/spigell/vkinder/internal/profile"
)

const (
	userFields = "sex,city,bdate,domain"

	// users.get accepts up to 1000 ids, keep requests small.
	usersBatch = 200

	friendsCount         = 100
	friendsOfFriendsFrom = 10
	friendsOfFriendCount = 50
)

type apiUser struct {
	ID        json.Number `json:"id"`
	FirstName string      `json:"first_name"`
	LastName  string      `json:"last_name"`
	Sex       int         `json:"sex"`
	BDate     string      `json:"bdate"`
	Domain    string      `json:"domain"`
	IsClosed  bool        `json:"is_closed"`
	City      *struct {
		Title string `json:"title"`
	} `json:"city"`
	Deactivated string `json:"deactivated"`
}

type idList struct {
	Count int           `json:"count"`
	Items []interface{} `json:"items"`
}

// GetUser fetches the profile of userID. ok is false when VK knows no such user.
func (c *Client) GetUser(ctx context.Context, userID int64) (profile.User, bool, error) {
	users, err := c.usersGet(ctx, []int64{userID})
	if err != nil {
		return profile.User{}, false, err
	}

	for _, u := range users {
		id, err := profile.ParseID(u.ID)
		if err != nil || id != userID {
			continue
		}
		return c.toUser(id, u), true, nil
	}

	return profile.User{}, false, nil
}

// SearchCandidates collects people around the user: friends of the first friends.
// Sex, privacy and blacklist filtering is left to the caller.
func (c *Client) SearchCandidates(ctx context.Context, user profile.User) ([]profile.Candidate, error) {
	friends, err := c.friends(ctx, user.ID, friendsCount)
	if err != nil {
		if isAccessError(err) {
			c.logger.Info("friends of user are hidden", zap.Int64("user_id", user.ID))
			return nil, nil
		}
		return nil, fmt.Errorf("get friends: %w", err)
	}

	seen := profile.NewIDSet(user.ID)
	ids := make([]int64, 0)
	for i, friendID := range friends {
		if i >= friendsOfFriendsFrom {
			break
		}

		fof, err := c.friends(ctx, friendID, friendsOfFriendCount)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			c.logger.Debug("skip friend", zap.Int64("friend_id", friendID), zap.Error(err))
			continue
		}

		for _, id := range fof {
			if seen.Has(id) {
				continue
			}
			seen.Add(id)
			ids = append(ids, id)
		}
	}

	c.logger.Debug("collected candidate ids", zap.Int64("user_id", user.ID),
		zap.Int("friends", len(friends)), zap.Int("candidates", len(ids)))

	candidates := make([]profile.Candidate, 0, len(ids))
	for start := 0; start < len(ids); start += usersBatch {
		end := start + usersBatch
		if end > len(ids) {
			end = len(ids)
		}

		users, err := c.usersGet(ctx, ids[start:end])
		if err != nil {
			return nil, fmt.Errorf("get candidate profiles: %w", err)
		}

		for _, u := range users {
			id, err := profile.ParseID(u.ID)
			if err != nil || u.Deactivated != "" {
				continue
			}
			candidates = append(candidates, c.toCandidate(id, u))
		}
	}

	return candidates, nil
}

func (c *Client) friends(ctx context.Context, userID int64, count int) ([]int64, error) {
	q := url.Values{}
	q.Set("user_id", strconv.FormatInt(userID, 10))
	q.Set("count", strconv.Itoa(count))

	var list idList
	if err := c.call(ctx, "friends.get", c.personalToken(), q, &list); err != nil {
		return nil, err
	}

	return parseIDs(list.Items), nil
}

func (c *Client) usersGet(ctx context.Context, ids []int64) ([]apiUser, error) {
	parts := make([]string, 0, len(ids))
	for _, id := range ids {
		parts = append(parts, strconv.FormatInt(id, 10))
	}

	q := url.Values{}
	q.Set("user_ids", strings.Join(parts, ","))
	q.Set("fields", userFields)
	q.Set("lang", "ru")

	var users []apiUser
	if err := c.call(ctx, "users.get", c.token, q, &users); err != nil {
		return nil, err
	}

	return users, nil
}

func (c *Client) toUser(id int64, u apiUser) profile.User {
	return profile.User{
		ID:         id,
		FirstName:  u.FirstName,
		LastName:   u.LastName,
		Age:        parseAge(u.BDate, c.now()),
		City:       cityTitle(u),
		Sex:        profile.Sex(u.Sex),
		ProfileURL: profile.ProfileURL(id, u.Domain),
	}
}

func (c *Client) toCandidate(id int64, u apiUser) profile.Candidate {
	return profile.Candidate{
		ID:         id,
		FirstName:  u.FirstName,
		LastName:   u.LastName,
		Age:        parseAge(u.BDate, c.now()),
		City:       cityTitle(u),
		Sex:        profile.Sex(u.Sex),
		ProfileURL: profile.ProfileURL(id, u.Domain),
		Closed:     u.IsClosed,
	}
}

func cityTitle(u apiUser) string {
	if u.City == nil {
		return ""
	}
	return strings.TrimSpace(u.City.Title)
}

// parseAge derives the age from a D.M.YYYY birth date as the difference of years.
// Dates without a year yield nil.
func parseAge(bdate string, now time.Time) *int {
	parts := strings.Split(strings.TrimSpace(bdate), ".")
	if len(parts) != 3 {
		return nil
	}

	year, err := strconv.Atoi(parts[2])
	if err != nil || year <= 0 {
		return nil
	}

	age := now.Year() - year
	if age < 0 {
		return nil
	}
	return &age
}

// parseIDs normalizes item lists into int64 ids, skipping anything that is not an id.
func parseIDs(items []interface{}) []int64 {
	ids := make([]int64, 0, len(items))
	for _, item := range items {
		id, err := profile.ParseID(item)
		if err != nil {
			continue
		}
		ids = append(ids, id)
	}
	return ids
}

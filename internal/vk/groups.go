package vk

import (
	"context"
	"fmt"
	"net/url"
	"strconv"

	"go.uber.org/zap"

	"github.com/spigell/vkinder/internal/profile"
)

const groupsCount = 1000

// Groups returns the communities userID is a member of. Hidden lists yield an empty set.
func (c *Client) Groups(ctx context.Context, userID int64) (profile.IDSet, error) {
	q := url.Values{}
	q.Set("user_id", strconv.FormatInt(userID, 10))
	q.Set("count", strconv.Itoa(groupsCount))

	var list idList
	if err := c.call(ctx, "groups.get", c.personalToken(), q, &list); err != nil {
		if isAccessError(err) {
			c.logger.Debug("groups are hidden", zap.Int64("user_id", userID), zap.Error(err))
			return profile.NewIDSet(), nil
		}
		return nil, fmt.Errorf("get groups: %w", err)
	}

	return profile.NewIDSet(parseIDs(list.Items)...), nil
}

// ValidateToken checks the community token and returns the community name.
func (c *Client) ValidateToken(ctx context.Context) (string, error) {
	q := url.Values{}
	q.Set("group_id", strconv.FormatInt(c.groupID, 10))

	var res struct {
		Groups []struct {
			ID   int64  `json:"id"`
			Name string `json:"name"`
		} `json:"groups"`
	}
	if err := c.call(ctx, "groups.getById", c.token, q, &res); err != nil {
		return "", fmt.Errorf("validate token: %w", err)
	}

	if len(res.Groups) == 0 {
		return "", fmt.Errorf("validate token: group %d not found", c.groupID)
	}

	return res.Groups[0].Name, nil
}

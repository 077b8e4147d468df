package vk

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"sort"
	"strconv"

	"go.uber.org/zap"

	"github.com/spigell/vkinder/internal/profile"
)

const photosScanCount = 100

type apiPhoto struct {
	ID      int64 `json:"id"`
	OwnerID int64 `json:"owner_id"`
	Likes   struct {
		Count int `json:"count"`
	} `json:"likes"`
	Sizes []struct {
		URL    string `json:"url"`
		Width  int    `json:"width"`
		Height int    `json:"height"`
	} `json:"sizes"`
}

type photoList struct {
	Count int        `json:"count"`
	Items []apiPhoto `json:"items"`
}

// TopPhotos returns up to limit photos of ownerID ordered by likes, most liked first.
// Hidden albums yield an empty list.
func (c *Client) TopPhotos(ctx context.Context, ownerID int64, limit int) ([]profile.Photo, error) {
	if limit <= 0 {
		return nil, nil
	}

	q := url.Values{}
	q.Set("user_id", strconv.FormatInt(ownerID, 10))
	q.Set("count", strconv.Itoa(photosScanCount))
	q.Set("extended", "1")

	var list photoList
	if err := c.call(ctx, "photos.getUserPhotos", c.personalToken(), q, &list); err != nil {
		if isAccessError(err) {
			c.logger.Debug("photos are hidden", zap.Int64("owner_id", ownerID), zap.Error(err))
			return nil, nil
		}
		return nil, fmt.Errorf("get photos: %w", err)
	}

	return rankPhotos(list.Items, limit), nil
}

func rankPhotos(items []apiPhoto, limit int) []profile.Photo {
	sorted := append([]apiPhoto(nil), items...)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Likes.Count > sorted[j].Likes.Count
	})

	if len(sorted) > limit {
		sorted = sorted[:limit]
	}

	photos := make([]profile.Photo, 0, len(sorted))
	for i, p := range sorted {
		photos = append(photos, profile.Photo{
			ID:      p.ID,
			OwnerID: p.OwnerID,
			Likes:   p.Likes.Count,
			URL:     largestSize(p),
			Rank:    i + 1,
		})
	}
	return photos
}

func largestSize(p apiPhoto) string {
	best := -1
	for i, s := range p.Sizes {
		if best < 0 || s.Height > p.Sizes[best].Height ||
			(s.Height == p.Sizes[best].Height && s.Width > p.Sizes[best].Width) {
			best = i
		}
	}
	if best < 0 {
		return ""
	}
	return p.Sizes[best].URL
}

// LikePhoto likes a photo on behalf of the user token owner.
// Without a user token, or when VK refuses, it reports false.
func (c *Client) LikePhoto(ctx context.Context, ownerID, photoID int64) (bool, error) {
	return c.like(ctx, "likes.add", ownerID, photoID)
}

// UnlikePhoto removes a like set by the user token owner.
func (c *Client) UnlikePhoto(ctx context.Context, photoID, ownerID int64) (bool, error) {
	return c.like(ctx, "likes.delete", ownerID, photoID)
}

func (c *Client) like(ctx context.Context, method string, ownerID, photoID int64) (bool, error) {
	if !c.HasUserToken() {
		c.logger.Debug("skip like call", zap.String("method", method), zap.Error(ErrNoUserToken))
		return false, nil
	}

	q := url.Values{}
	q.Set("type", "photo")
	q.Set("owner_id", strconv.FormatInt(ownerID, 10))
	q.Set("item_id", strconv.FormatInt(photoID, 10))

	var res struct {
		Likes int `json:"likes"`
	}
	if err := c.call(ctx, method, c.userToken, q, &res); err != nil {
		var apiErr *APIError
		if errors.As(err, &apiErr) {
			c.logger.Warn("vk refused like call", zap.String("method", method), zap.Error(err))
			return false, nil
		}
		return false, fmt.Errorf("%s: %w", method, err)
	}

	return true, nil
}

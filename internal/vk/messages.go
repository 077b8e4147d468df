package vk

import (
	"context"
	"encoding/json"
	"math/rand"
	"net/url"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/spigell/vkinder/internal/messenger"
	"github.com/spigell/vkinder/internal/utils"
)

// Send delivers msg through messages.send. Failures are logged, not returned.
func (c *Client) Send(ctx context.Context, msg messenger.Message) {
	q, err := sendParams(msg)
	if err != nil {
		c.logger.Error("failed to build message", zap.Int64("user_id", msg.UserID), zap.Error(err))
		return
	}

	if err := c.call(ctx, "messages.send", c.token, q, nil); err != nil {
		c.logger.Error("failed to send message",
			zap.Int64("user_id", msg.UserID),
			zap.String("text", utils.TruncateForLog(msg.Text, 64)),
			zap.Error(err),
		)
	}
}

func sendParams(msg messenger.Message) (url.Values, error) {
	q := url.Values{}
	q.Set("user_id", strconv.FormatInt(msg.UserID, 10))
	q.Set("message", msg.Text)
	q.Set("random_id", strconv.FormatInt(int64(rand.Int31()), 10))

	if msg.Keyboard != nil {
		kb, err := json.Marshal(msg.Keyboard)
		if err != nil {
			return nil, err
		}
		q.Set("keyboard", string(kb))
	}

	if len(msg.Attachments) > 0 {
		q.Set("attachment", strings.Join(msg.Attachments, ","))
	}

	return q, nil
}

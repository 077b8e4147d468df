package vk

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/mitchellh/mapstructure"
	"go.uber.org/zap"

	"github.com/spigell/vkinder/internal/utils"
)

const (
	EventMessageNew = "message_new"

	pollRetryBase = time.Second
	pollRetryMax  = 30 * time.Second
)

// IncomingMessage is a private message written to the community.
type IncomingMessage struct {
	ID     int64  `mapstructure:"id"`
	FromID int64  `mapstructure:"from_id"`
	PeerID int64  `mapstructure:"peer_id"`
	Text   string `mapstructure:"text"`
	Date   int64  `mapstructure:"date"`
}

// Handler processes one inbound message. Handlers run sequentially in arrival order.
type Handler func(ctx context.Context, msg IncomingMessage)

type pollServer struct {
	Key    string      `json:"key"`
	Server string      `json:"server"`
	TS     json.Number `json:"ts"`
}

type pollResponse struct {
	TS      json.Number              `json:"ts"`
	Updates []map[string]interface{} `json:"updates"`
	Failed  int                      `json:"failed"`
}

type update struct {
	Type   string                 `mapstructure:"type"`
	Object map[string]interface{} `mapstructure:"object"`
}

// Listen runs the community long-poll loop until ctx is cancelled.
func (c *Client) Listen(ctx context.Context, handle Handler) error {
	server, err := c.pollServer(ctx)
	if err != nil {
		return err
	}

	c.logger.Info("listening for messages", zap.Int64("group_id", c.groupID))

	failures := 0
	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		resp, err := c.poll(ctx, server)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}

			failures++
			delay := utils.Backoff(pollRetryBase, pollRetryMax, failures)
			c.logger.Warn("long poll request failed", zap.Error(err), zap.Duration("retry_in", delay))
			if werr := utils.WaitFor(ctx, delay); werr != nil {
				return werr
			}
			continue
		}
		failures = 0

		switch resp.Failed {
		case 0:
		case 1:
			// History is partially lost, continue from the suggested ts.
			server.TS = resp.TS
			continue
		case 2, 3:
			c.logger.Debug("refresh long poll server", zap.Int("failed", resp.Failed))
			if server, err = c.pollServer(ctx); err != nil {
				return err
			}
			continue
		default:
			return fmt.Errorf("long poll: unknown failure %d", resp.Failed)
		}

		server.TS = resp.TS
		for _, raw := range resp.Updates {
			msg, ok, err := decodeMessage(raw)
			if err != nil {
				c.logger.Warn("skip malformed update", zap.Error(err))
				continue
			}
			if !ok {
				continue
			}
			handle(ctx, msg)
		}
	}
}

func (c *Client) pollServer(ctx context.Context) (pollServer, error) {
	q := url.Values{}
	q.Set("group_id", strconv.FormatInt(c.groupID, 10))

	var s pollServer
	if err := c.call(ctx, "groups.getLongPollServer", c.token, q, &s); err != nil {
		return pollServer{}, fmt.Errorf("get long poll server: %w", err)
	}
	return s, nil
}

func (c *Client) poll(ctx context.Context, s pollServer) (pollResponse, error) {
	q := url.Values{}
	q.Set("act", "a_check")
	q.Set("key", s.Key)
	q.Set("ts", s.TS.String())
	q.Set("wait", strconv.Itoa(c.LongPollWait))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.Server, nil)
	if err != nil {
		return pollResponse{}, err
	}
	req = c.setHeaders(req)
	req.URL.RawQuery = q.Encode()

	data, err := c.do(req)
	if err != nil {
		return pollResponse{}, err
	}

	var resp pollResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		return pollResponse{}, fmt.Errorf("decode long poll response: %w", err)
	}
	return resp, nil
}

// decodeMessage extracts a private message from a raw update. ok is false for other events.
func decodeMessage(raw map[string]interface{}) (IncomingMessage, bool, error) {
	var u update
	if err := mapstructure.Decode(raw, &u); err != nil {
		return IncomingMessage{}, false, err
	}
	if u.Type != EventMessageNew {
		return IncomingMessage{}, false, nil
	}

	// Since API 5.103 the message is nested under object.message.
	body, ok := u.Object["message"].(map[string]interface{})
	if !ok {
		body = u.Object
	}

	var msg IncomingMessage
	cfg := &mapstructure.DecoderConfig{
		Result:           &msg,
		WeaklyTypedInput: true,
	}
	decoder, err := mapstructure.NewDecoder(cfg)
	if err != nil {
		return IncomingMessage{}, false, err
	}
	if err := decoder.Decode(body); err != nil {
		return IncomingMessage{}, false, fmt.Errorf("decode message: %w", err)
	}

	if msg.FromID == 0 {
		return IncomingMessage{}, false, errors.New("message without sender")
	}

	return msg, true, nil
}

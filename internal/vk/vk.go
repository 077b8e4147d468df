package vk

import (
	"net/http"
	"time"

	"go.uber.org/zap"
)

const (
	apiURL     = "https://api.vk.com/method"
	apiVersion = "5.199"
	userAgent  = "spigell/vkinder"

	// Max attempts for a single method call when VK asks to slow down.
	defaultMaxAttempts = 3
	retryBase          = 400 * time.Millisecond
	retryMax           = 5 * time.Second
)

// Observer receives the outcome of every API call.
type Observer interface {
	ObserveAPICall(method string, took time.Duration, err error)
}

type Client struct {
	token     string
	userToken string
	groupID   int64
	logger    *zap.Logger
	observer  Observer
	now       func() time.Time

	HTTPClient  *http.Client
	UserAgent   string
	APIURL      string
	Version     string
	MaxAttempts int
	// LongPollWait is the wait parameter of long-poll requests, in seconds.
	LongPollWait int
}

// New creates a client acting on behalf of the community groupID with its access token.
func New(logger *zap.Logger, token string, groupID int64) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Client{
		token:   token,
		groupID: groupID,
		logger:  logger,
		now:     time.Now,
		APIURL:  apiURL,
		Version: apiVersion,
		HTTPClient: &http.Client{
			Timeout: 35 * time.Second,
		},
		UserAgent:    userAgent,
		MaxAttempts:  defaultMaxAttempts,
		LongPollWait: 25,
	}
}

// WithUserToken sets the personal token used for methods that community tokens cannot call
// (friends, photos, groups and likes).
func (c *Client) WithUserToken(token string) *Client {
	c.userToken = token
	return c
}

func (c *Client) WithObserver(o Observer) *Client {
	c.observer = o
	return c
}

// HasUserToken reports whether user-scoped methods are available.
func (c *Client) HasUserToken() bool {
	return c.userToken != ""
}

// personalToken returns the token for user-scoped read methods, falling back to the
// community token.
func (c *Client) personalToken() string {
	if c.userToken != "" {
		return c.userToken
	}
	return c.token
}

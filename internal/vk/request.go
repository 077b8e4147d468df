package vk

import (
	"bytes"
	"compress/gzip"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/spigell/vkinder/internal/utils"
)

const (
	formContentType = "application/x-www-form-urlencoded"
	contentEncoding = "gzip"
)

type envelope struct {
	Response json.RawMessage `json:"response"`
	Error    *APIError       `json:"error"`
}

// call invokes an API method and decodes the "response" field into target.
// Temporary API errors are retried with backoff.
func (c *Client) call(ctx context.Context, method, token string, params url.Values, target interface{}) error {
	attempts := c.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}

	var err error
	for attempt := 1; attempt <= attempts; attempt++ {
		start := time.Now()
		err = c.callOnce(ctx, method, token, params, target)
		if c.observer != nil {
			c.observer.ObserveAPICall(method, time.Since(start), err)
		}

		var apiErr *APIError
		if err == nil || !errors.As(err, &apiErr) || !apiErr.Temporary() || attempt == attempts {
			return err
		}

		delay := utils.Backoff(retryBase, retryMax, attempt)
		c.logger.Debug("vk asked to retry", zap.String("method", method), zap.Int("code", apiErr.Code),
			zap.Int("attempt", attempt), zap.Duration("delay", delay))

		if werr := utils.WaitFor(ctx, delay); werr != nil {
			return werr
		}
	}

	return err
}

func (c *Client) callOnce(ctx context.Context, method, token string, params url.Values, target interface{}) error {
	form := url.Values{}
	for k, v := range params {
		form[k] = v
	}
	form.Set("access_token", token)
	form.Set("v", c.Version)

	endpoint := fmt.Sprintf("%s/%s", strings.TrimRight(c.APIURL, "/"), method)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return err
	}

	req = c.setHeaders(req)
	req.Header.Set("Content-Type", formContentType)

	data, err := c.do(req)
	if err != nil {
		return fmt.Errorf("vk %s: %w", method, err)
	}

	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return fmt.Errorf("vk %s: decode envelope: %w", method, err)
	}

	if env.Error != nil {
		env.Error.Method = method
		return env.Error
	}

	if target == nil {
		return nil
	}

	dec := json.NewDecoder(bytes.NewReader(env.Response))
	dec.UseNumber()
	if err := dec.Decode(target); err != nil {
		return fmt.Errorf("vk %s: decode response: %w", method, err)
	}

	return nil
}

// do sends the request and returns the (decompressed) body of a 200 response.
func (c *Client) do(req *http.Request) ([]byte, error) {
	c.logger.Debug("make request", zap.String("url", redact(req.URL)))

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var reader io.Reader = resp.Body
	if resp.Header.Get("Content-Encoding") == "gzip" {
		gzipReader, err := gzip.NewReader(resp.Body)
		if err != nil {
			return nil, err
		}
		defer gzipReader.Close()
		reader = gzipReader
	}

	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("bad status: %s", resp.Status)
	}

	return data, nil
}

func (c *Client) setHeaders(req *http.Request) *http.Request {
	req.Header.Set("User-Agent", c.UserAgent)
	req.Header.Set("Accept-Encoding", contentEncoding)

	return req
}

// redact drops credentials from a URL before it is logged.
func redact(u *url.URL) string {
	clean := *u
	q := clean.Query()
	if q.Has("access_token") {
		q.Set("access_token", "***")
	}
	if q.Has("key") {
		q.Set("key", "***")
	}
	clean.RawQuery = q.Encode()
	return clean.String()
}

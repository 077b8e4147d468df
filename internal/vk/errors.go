package vk

import (
	"errors"
	"fmt"
)

// Error codes returned by the VK API that the client handles specially.
const (
	CodeTooManyRequests = 6
	CodeInternal        = 10
	CodeCaptcha         = 14
	CodeAccessDenied    = 15
	CodeProfilePrivate  = 30
	CodeAlbumDenied     = 200
)

// ErrNoUserToken is returned by operations that need a personal user token.
var ErrNoUserToken = errors.New("vk user token is not configured")

// APIError is an error reported in the "error" field of a VK response.
type APIError struct {
	Method  string
	Code    int    `json:"error_code"`
	Message string `json:"error_msg"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("vk %s: error %d: %s", e.Method, e.Code, e.Message)
}

// Temporary reports whether repeating the call later may succeed.
func (e *APIError) Temporary() bool {
	return e.Code == CodeTooManyRequests || e.Code == CodeInternal
}

// isAccessError reports whether err means the object exists but is hidden from us.
func isAccessError(err error) bool {
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		return false
	}
	switch apiErr.Code {
	case CodeAccessDenied, CodeProfilePrivate, CodeAlbumDenied:
		return true
	}
	return false
}

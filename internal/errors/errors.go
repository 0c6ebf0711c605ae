// Package errors defines the error kinds surfaced by securechat.
//
// Every error here is safe to print: none of them carries secret bytes.
// DecodeError reports only the byte offset of the first invalid sequence,
// and APIError carries the server's diagnostic body, never the request.
package errors

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// ErrNoChoices is returned when the API answered successfully but the
// response contained an empty choices list.
var ErrNoChoices = errors.New("API returned no choices")

// ErrLockFailed is wrapped by LockError when the memory lock policy
// requires locking and the lock call fails.
var ErrLockFailed = errors.New("memory lock failed")

// DecodeError is returned when bytes expected to be text are not valid
// UTF-8, or when a response body cannot be parsed.
type DecodeError struct {
	// Context names what was being decoded (e.g. "base URL", "response body").
	Context string
	// Offset is the index of the first invalid byte, or -1 when unknown.
	Offset int
	Err    error
}

func (e *DecodeError) Error() string {
	msg := "decode error"
	if e.Context != "" {
		msg += " in " + e.Context
	}
	if e.Offset >= 0 {
		msg += fmt.Sprintf(": invalid UTF-8 at byte offset %d", e.Offset)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}

// MissingFieldError is returned when a content-part description lacks a
// required field.
type MissingFieldError struct {
	Field   string
	Context string
}

func (e *MissingFieldError) Error() string {
	if e.Context == "" {
		return fmt.Sprintf("missing field '%s'", e.Field)
	}
	return fmt.Sprintf("missing field '%s' in %s", e.Field, e.Context)
}

// InvalidFieldError is returned when a content-part field is present but
// holds a value of the wrong kind (e.g. a number where bytes are expected).
type InvalidFieldError struct {
	Field string
	Want  string
	Got   string
}

func (e *InvalidFieldError) Error() string {
	return fmt.Sprintf("field '%s' must be %s, got %s", e.Field, e.Want, e.Got)
}

// UnsupportedContentTypeError is returned for a content part whose "type"
// discriminator is neither "text" nor "image_url".
type UnsupportedContentTypeError struct {
	Type string
}

func (e *UnsupportedContentTypeError) Error() string {
	return fmt.Sprintf("unsupported content type: %s", e.Type)
}

// ConnectionError is returned when the transport could not deliver the
// request (DNS, TCP, TLS failures).
type ConnectionError struct {
	Err error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("failed to send request: %v", e.Err)
}

func (e *ConnectionError) Unwrap() error {
	return e.Err
}

// APIError is returned when the server responds with a non-success status.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("API request failed with status %d: %s", e.StatusCode, e.Body)
}

// IsRateLimited reports whether the server answered 429.
func (e *APIError) IsRateLimited() bool {
	return e.StatusCode == http.StatusTooManyRequests
}

// LockError is returned by secure buffer construction when the lock
// policy is "required" and the OS refused to lock the memory.
type LockError struct {
	Err error
}

func (e *LockError) Error() string {
	return fmt.Sprintf("%v: %v", ErrLockFailed, e.Err)
}

func (e *LockError) Unwrap() []error {
	return []error{ErrLockFailed, e.Err}
}

// UserError wraps an error with a suggestion for the command line user.
type UserError struct {
	Message    string
	Suggestion string
	Err        error
}

func (e UserError) Error() string {
	var parts []string

	if e.Message != "" {
		parts = append(parts, e.Message)
	} else if e.Err != nil {
		parts = append(parts, e.Err.Error())
	}

	if e.Message != "" && e.Err != nil {
		parts = append(parts, "\n  Details: "+e.Err.Error())
	}

	if e.Suggestion != "" {
		parts = append(parts, "\n  Try: "+e.Suggestion)
	}

	return strings.Join(parts, "")
}

func (e UserError) Unwrap() error {
	return e.Err
}

// Suggest attaches an actionable suggestion to well-known error kinds.
// Errors without a known suggestion are returned unchanged.
func Suggest(err error) error {
	if err == nil {
		return nil
	}

	var userErr UserError
	if errors.As(err, &userErr) {
		return err
	}

	var apiErr *APIError
	if errors.As(err, &apiErr) {
		switch {
		case apiErr.StatusCode == http.StatusUnauthorized || apiErr.StatusCode == http.StatusForbidden:
			return UserError{Message: "the API rejected the credentials", Suggestion: "check api_key or api_key_file in your config (securechat config api_key)", Err: err}
		case apiErr.StatusCode == http.StatusNotFound:
			return UserError{Message: "the chat completions endpoint was not found", Suggestion: "check base_url; the client appends /openai/v1/chat/completions", Err: err}
		case apiErr.IsRateLimited():
			return UserError{Message: "the API rate limit was exceeded", Suggestion: "wait a moment and try again", Err: err}
		}
		return err
	}

	var connErr *ConnectionError
	if errors.As(err, &connErr) {
		return UserError{Message: "unable to reach the API", Suggestion: "check your network connection and base_url", Err: err}
	}

	if errors.Is(err, ErrLockFailed) {
		return UserError{Message: "secret memory could not be locked", Suggestion: "raise RLIMIT_MEMLOCK (ulimit -l) or set lock_policy = \"best-effort\"", Err: err}
	}

	var contentErr *UnsupportedContentTypeError
	if errors.As(err, &contentErr) {
		return UserError{Message: "a message has an unsupported content part", Suggestion: "content parts must have type \"text\" or \"image_url\"", Err: err}
	}

	return err
}

// IsRetryable reports whether a caller-side retry could succeed. The
// library never retries on its own.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}

	var connErr *ConnectionError
	if errors.As(err, &connErr) {
		return true
	}

	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.IsRateLimited() || apiErr.StatusCode >= http.StatusInternalServerError
	}

	return false
}

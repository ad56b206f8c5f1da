package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// UnknownErrorMessage is shown when a failure carries no usable message
const UnknownErrorMessage = "An unknown error occurred. Please try again."

// Error is a non-2xx backend response
type Error struct {
	Method     string
	Path       string
	StatusCode int
	// Detail is the server supplied "detail" message, if any
	Detail string
}

func (e *Error) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("request failed with status code %d: %s", e.StatusCode, e.Detail)
	}
	return fmt.Sprintf("request failed with status code %d", e.StatusCode)
}

func newError(method, path string, statusCode int, body []byte) *Error {
	return &Error{
		Method:     method,
		Path:       path,
		StatusCode: statusCode,
		Detail:     decodeDetail(body),
	}
}

// decodeDetail extracts the "detail" field. Besides a plain string it
// accepts the validation error form, a list of {"msg": ...} objects.
func decodeDetail(body []byte) string {
	var envelope struct {
		Detail json.RawMessage `json:"detail"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil || len(envelope.Detail) == 0 {
		return ""
	}

	var s string
	if err := json.Unmarshal(envelope.Detail, &s); err == nil {
		return s
	}

	var items []struct {
		Msg string        `json:"msg"`
		Loc []interface{} `json:"loc"`
	}
	if err := json.Unmarshal(envelope.Detail, &items); err == nil {
		msgs := make([]string, 0, len(items))
		for _, it := range items {
			if it.Msg == "" {
				continue
			}
			if field := lastLoc(it.Loc); field != "" {
				msgs = append(msgs, field+": "+it.Msg)
			} else {
				msgs = append(msgs, it.Msg)
			}
		}
		return strings.Join(msgs, "; ")
	}

	return ""
}

func lastLoc(loc []interface{}) string {
	if len(loc) == 0 {
		return ""
	}
	if s, ok := loc[len(loc)-1].(string); ok {
		return s
	}
	return ""
}

// ErrorMessage turns any failure into a user-facing message: the server's
// detail when present, otherwise the error text, otherwise a generic message.
func ErrorMessage(err error) string {
	if err == nil {
		return UnknownErrorMessage
	}

	var apiErr *Error
	if errors.As(err, &apiErr) && apiErr.Detail != "" {
		return apiErr.Detail
	}

	if msg := err.Error(); msg != "" {
		return msg
	}
	return UnknownErrorMessage
}

// StatusCode returns the HTTP status of err, or 0 if err is not an *Error
func StatusCode(err error) int {
	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode
	}
	return 0
}

// IsUnauthorized reports a 401 response
func IsUnauthorized(err error) bool {
	return StatusCode(err) == http.StatusUnauthorized
}

// IsNotFound reports a 404 response
func IsNotFound(err error) bool {
	return StatusCode(err) == http.StatusNotFound
}

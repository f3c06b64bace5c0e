package client

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// Error kinds. An *APIError matches at most one of them with errors.Is;
// 5xx and unmapped 4xx responses match none.
var (
	ErrUnauthorized    = errors.New("unauthorized")
	ErrNotFound        = errors.New("not found")
	ErrPayloadTooLarge = errors.New("payload too large")
	ErrValidation      = errors.New("validation failed")
)

// APIError is a non-2xx response from the service.
type APIError struct {
	Method     string
	Path       string
	StatusCode int
	Message    string
	Body       []byte
	RequestID  string
	kind       error
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s %s: status %d: %s", e.Method, e.Path, e.StatusCode, e.Message)
}

// Unwrap exposes the error kind for errors.Is.
func (e *APIError) Unwrap() error { return e.kind }

// newAPIError classifies a failed response. 413 and 422 replies carry their
// message in "detail"; everything else in "message".
func newAPIError(method, path string, status int, body []byte, requestID string) *APIError {
	e := &APIError{
		Method:     method,
		Path:       path,
		StatusCode: status,
		Body:       body,
		RequestID:  requestID,
	}
	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		e.kind = ErrUnauthorized
		e.Message = messageField(body, "message", "Unauthorized.")
	case status == http.StatusNotFound:
		e.kind = ErrNotFound
		e.Message = messageField(body, "message", "Not found.")
	case status == http.StatusRequestEntityTooLarge:
		e.kind = ErrPayloadTooLarge
		e.Message = messageField(body, "detail", "Payload too large.")
	case status == http.StatusUnprocessableEntity:
		e.kind = ErrValidation
		e.Message = messageField(body, "detail", "Validation failed.")
	default:
		e.Message = messageField(body, "message", "Unknown error")
	}
	return e
}

// messageField extracts a message from a JSON error body. Non-JSON bodies are
// returned verbatim; a structured field is returned as compact JSON.
func messageField(body []byte, field, fallback string) string {
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(body, &obj); err != nil {
		if text := strings.TrimSpace(string(body)); text != "" {
			return text
		}
		return fallback
	}
	raw, ok := obj[field]
	if !ok {
		return fallback
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return string(raw)
}

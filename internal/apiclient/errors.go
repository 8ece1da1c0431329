package apiclient

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

var (
	// ErrMalformedResponse marks a 2xx response that lacks a field the contract requires
	ErrMalformedResponse  = errors.New("malformed response")
	ErrBackendUnavailable = errors.New("backend temporarily unavailable")
)

// APIError is a non-2xx response from the backend
type APIError struct {
	StatusCode int
	Message    string
	Route      string
}

func (e *APIError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%s: %d %s", e.Route, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("%s: %d %s", e.Route, e.StatusCode, http.StatusText(e.StatusCode))
}

// Unauthorized reports a 401 or 403
func (e *APIError) Unauthorized() bool {
	return e.StatusCode == http.StatusUnauthorized || e.StatusCode == http.StatusForbidden
}

// MessageFrom returns the message the backend put in its error body,
// or fallback when there is none.
func MessageFrom(err error, fallback string) string {
	var apiErr *APIError
	if errors.As(err, &apiErr) && apiErr.Message != "" {
		return apiErr.Message
	}
	return fallback
}

// IsUnauthorized reports whether err is a 401/403 from the backend
func IsUnauthorized(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Unauthorized()
}

// errorBody matches both {"message": "..."} and {"error": "..."}
type errorBody struct {
	Message string `json:"message"`
	Error   string `json:"error"`
}

func parseErrorBody(status int, route string, body []byte) *APIError {
	apiErr := &APIError{StatusCode: status, Route: route}
	var eb errorBody
	if err := json.Unmarshal(body, &eb); err == nil {
		apiErr.Message = strings.TrimSpace(eb.Message)
		if apiErr.Message == "" {
			apiErr.Message = strings.TrimSpace(eb.Error)
		}
	}
	return apiErr
}

package client

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strings"
)

var (
	// ErrNoCredential is returned when no token material is available
	ErrNoCredential = errors.New("no credential available")

	// ErrSessionExpired is returned when the session could not be refreshed
	ErrSessionExpired = errors.New("session expired")

	// ErrMissingAccessToken is returned when an ok response carries no access_token
	ErrMissingAccessToken = errors.New("backend response missing access_token")

	// ErrInvalidToken is returned when a token cannot be decoded
	ErrInvalidToken = errors.New("invalid token")
)

// APIError is a non-2xx response from the backend
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("backend returned %d: %s", e.Status, e.Message)
}

// IsUnauthorized reports whether err is a 401 from the backend
func IsUnauthorized(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Status == http.StatusUnauthorized
}

// StatusCode returns the backend status carried by err, or 0
func StatusCode(err error) int {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Status
	}
	return 0
}

// decodeAPIError extracts a human readable message from an error body.
// The backend uses {"error": "..."}, {"error": {"field": "..."}},
// {"message": "..."} or the framework default {"detail": "..."}.
func decodeAPIError(status int, body []byte) *APIError {
	apiErr := &APIError{Status: status, Message: http.StatusText(status)}

	var payload map[string]json.RawMessage
	if err := json.Unmarshal(body, &payload); err != nil {
		return apiErr
	}

	if raw, ok := payload["error"]; ok {
		if msg := flattenMessage(raw); msg != "" {
			apiErr.Message = msg
			return apiErr
		}
	}
	for _, key := range []string{"message", "detail"} {
		if raw, ok := payload[key]; ok {
			if msg := flattenMessage(raw); msg != "" {
				apiErr.Message = msg
				return apiErr
			}
		}
	}
	return apiErr
}

// flattenMessage turns a string, list or object of messages into one line
func flattenMessage(raw json.RawMessage) string {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}

	var list []json.RawMessage
	if err := json.Unmarshal(raw, &list); err == nil {
		parts := make([]string, 0, len(list))
		for _, item := range list {
			if msg := flattenMessage(item); msg != "" {
				parts = append(parts, msg)
			}
		}
		return strings.Join(parts, ", ")
	}

	var obj map[string]json.RawMessage
	if err := json.Unmarshal(raw, &obj); err == nil {
		keys := make([]string, 0, len(obj))
		for k := range obj {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		parts := make([]string, 0, len(keys))
		for _, k := range keys {
			if msg := flattenMessage(obj[k]); msg != "" {
				parts = append(parts, msg)
			}
		}
		return strings.Join(parts, ", ")
	}

	return ""
}

package backend

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strings"

	"github.com/nainya/applydesk/pkg/inflight"
)

// APIError is a non-2xx response from the backend
type APIError struct {
	StatusCode int
	Message    string
	Body       []byte
}

func (e *APIError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("backend: %d %s", e.StatusCode, e.Message)
	}
	return fmt.Sprintf("backend: %d %s", e.StatusCode, http.StatusText(e.StatusCode))
}

// newAPIError extracts a message from the structured error body. The
// backend reports errors as {"detail": ...}, {"error": ...} or
// {"message": ...}; field validation errors arrive as {"field": ["msg"]}.
func newAPIError(status int, body []byte) *APIError {
	e := &APIError{StatusCode: status, Body: body}

	var obj map[string]json.RawMessage
	if err := json.Unmarshal(body, &obj); err != nil {
		if s := strings.TrimSpace(string(body)); s != "" && len(s) < 200 && !strings.HasPrefix(s, "<") {
			e.Message = s
		}
		return e
	}

	for _, k := range []string{"detail", "error", "message"} {
		if raw, ok := obj[k]; ok {
			var s string
			if json.Unmarshal(raw, &s) == nil && s != "" {
				e.Message = s
				return e
			}
		}
	}

	var parts []string
	for field, raw := range obj {
		var msgs []string
		if json.Unmarshal(raw, &msgs) == nil && len(msgs) > 0 {
			parts = append(parts, field+": "+strings.Join(msgs, " "))
		}
	}
	if len(parts) > 0 {
		sort.Strings(parts)
		e.Message = strings.Join(parts, "; ")
	}
	return e
}

// IsAborted reports whether err came from a cancelled or superseded call.
// Such errors are dropped silently by callers.
func IsAborted(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, inflight.ErrSuperseded)
}

// UserMessage turns err into a short status line for the user
func UserMessage(err error) string {
	if err == nil {
		return ""
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		switch {
		case apiErr.StatusCode == http.StatusUnauthorized:
			return "Your session has expired. Please sign in again."
		case apiErr.StatusCode == http.StatusForbidden:
			return "You do not have permission to do that."
		case apiErr.StatusCode == http.StatusNotFound:
			return "The requested item no longer exists."
		case apiErr.StatusCode >= 500:
			return "The server ran into a problem. Please try again later."
		case apiErr.Message != "":
			return apiErr.Message
		default:
			return "The request was rejected."
		}
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return "The server took too long to respond."
	}
	if IsAborted(err) {
		return ""
	}
	return "Could not reach the server. Check your connection."
}

package tracker

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

// TrackerError reports a failed tracker call. StatusCode is zero when the
// request never got a response.
type TrackerError struct {
	Op         string
	StatusCode int
	// Payload is the decoded response body, or the raw text when it was
	// not JSON.
	Payload any
	Err     error
}

func newTrackerError(op string, status int, body []byte) *TrackerError {
	e := &TrackerError{Op: op, StatusCode: status}
	var decoded map[string]any
	if err := json.Unmarshal(body, &decoded); err == nil {
		e.Payload = decoded
	} else if len(body) > 0 {
		e.Payload = string(body)
	}
	return e
}

func (e *TrackerError) Error() string {
	if e.StatusCode == 0 {
		return fmt.Sprintf("failed to %s: %v", e.Op, e.Err)
	}
	msg := fmt.Sprintf("failed to %s: %d", e.Op, e.StatusCode)
	if d := e.details(); d != "" {
		msg += " - " + d
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *TrackerError) Unwrap() error { return e.Err }

// ExternalService names the failing collaborator.
func (e *TrackerError) ExternalService() string { return "tracker:jira" }

// details flattens Jira's errorMessages list, or its per-field errors map.
func (e *TrackerError) details() string {
	m, ok := e.Payload.(map[string]any)
	if !ok {
		return ""
	}
	if list, ok := m["errorMessages"].([]any); ok && len(list) > 0 {
		msgs := make([]string, 0, len(list))
		for _, v := range list {
			msgs = append(msgs, fmt.Sprint(v))
		}
		return strings.Join(msgs, ", ")
	}
	if fields, ok := m["errors"].(map[string]any); ok && len(fields) > 0 {
		names := make([]string, 0, len(fields))
		for k := range fields {
			names = append(names, k)
		}
		sort.Strings(names)
		parts := make([]string, 0, len(names))
		for _, k := range names {
			parts = append(parts, fmt.Sprintf("%s: %v", k, fields[k]))
		}
		return strings.Join(parts, ", ")
	}
	return ""
}

package clickup

import (
	"encoding/json"
	"strconv"
)

// PriorityNormal is ClickUp's "normal" priority level.
const PriorityNormal = 2

// TaskRequest is the body of POST /list/{id}/task.
type TaskRequest struct {
	Name        string   `json:"name"`
	Description string   `json:"description,omitempty"`
	Tags        []string `json:"tags,omitempty"`
	Priority    int      `json:"priority,omitempty"`
	NotifyAll   bool     `json:"notify_all"`
}

// Task is the subset of the created task the relay reports back.
type Task struct {
	ID  string `json:"id"`
	URL string `json:"url"`
}

// APIError is a non-2xx response from ClickUp.
type APIError struct {
	StatusCode int
	Body       []byte
}

func (e *APIError) Error() string {
	var parsed struct {
		Err  string `json:"err"`
		Code string `json:"ECODE"`
	}
	if json.Unmarshal(e.Body, &parsed) == nil && parsed.Err != "" {
		if parsed.Code != "" {
			return "clickup: " + parsed.Err + " (" + parsed.Code + ")"
		}
		return "clickup: " + parsed.Err
	}
	return "clickup: request failed with status " + strconv.Itoa(e.StatusCode)
}

// Details returns the decoded response body, or its raw text when it is not
// JSON.
func (e *APIError) Details() any {
	if len(e.Body) == 0 {
		return nil
	}
	var v any
	if err := json.Unmarshal(e.Body, &v); err != nil {
		return string(e.Body)
	}
	return v
}

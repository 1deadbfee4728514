package tools

import (
	"encoding/json"
	"fmt"
)

// Result is the outcome of one tool execution. Both successes and failures
// are results; failures carry an "error" key so the model can read them and
// recover.
type Result struct {
	ID   string                 `json:"id,omitempty"`
	Data map[string]interface{} `json:"data"`
}

// Ok wraps successful result data.
func Ok(data map[string]interface{}) *Result {
	if data == nil {
		data = map[string]interface{}{}
	}
	return &Result{Data: data}
}

// Errorf builds a failed result the model can read.
func Errorf(format string, args ...interface{}) *Result {
	return &Result{Data: map[string]interface{}{
		"error": fmt.Sprintf(format, args...),
	}}
}

// Aborted builds the result used when the turn was cancelled before or
// during execution.
func Aborted() *Result {
	return &Result{Data: map[string]interface{}{
		"aborted": true,
		"error":   "cancelled",
	}}
}

// IsError reports whether the result carries an error.
func (r *Result) IsError() bool {
	if r == nil || r.Data == nil {
		return false
	}
	_, ok := r.Data["error"]
	return ok
}

// IsAborted reports whether the result came from a cancelled turn.
func (r *Result) IsAborted() bool {
	if r == nil || r.Data == nil {
		return false
	}
	aborted, _ := r.Data["aborted"].(bool)
	return aborted
}

// ErrorMessage returns the error text, or "" for successes.
func (r *Result) ErrorMessage() string {
	if r == nil || r.Data == nil {
		return ""
	}
	msg, _ := r.Data["error"].(string)
	return msg
}

// JSON renders the result payload for a tool message. Marshalling a
// map[string]interface{} of JSON-decoded values cannot fail; the fallback
// exists for exotic executor payloads.
func (r *Result) JSON() string {
	data, err := json.Marshal(r.Data)
	if err != nil {
		return fmt.Sprintf(`{"error":"unencodable tool result: %s"}`, err)
	}
	return string(data)
}

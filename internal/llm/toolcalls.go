package llm

import (
	"encoding/json"
	"fmt"
	"strings"
	"unicode"

	"github.com/google/uuid"
)

// NormalizeToolCallIDs ensures every native tool call has a stable identifier.
// Some providers occasionally omit call IDs, which breaks downstream requests
// that require tool_call_id on tool messages.
func NormalizeToolCallIDs(toolCalls []map[string]interface{}) []map[string]interface{} {
	for i, tc := range toolCalls {
		if tc == nil {
			continue
		}

		id := firstNonEmptyString(tc["id"], tc["call_id"])
		if strings.TrimSpace(id) == "" {
			if fn, ok := tc["function"].(map[string]interface{}); ok {
				if name := sanitizeToolName(fn["name"]); name != "" {
					id = fmt.Sprintf("call_%s_%d", name, i+1)
				}
			}
		}
		if strings.TrimSpace(id) == "" {
			id = "call_" + uuid.NewString()
		}

		tc["id"] = id
		tc["call_id"] = id
	}
	return toolCalls
}

// DecodeNativeCall converts one provider tool-call map into the unified
// ToolCall. String-form arguments are parsed defensively; payloads that look
// like source code instead of JSON yield ErrCodeShapedArguments.
func DecodeNativeCall(tc map[string]interface{}) (*ToolCall, error) {
	if tc == nil {
		return nil, fmt.Errorf("tool call is nil")
	}

	function, ok := tc["function"].(map[string]interface{})
	if !ok {
		return nil, fmt.Errorf("tool call is missing function details")
	}

	name, _ := function["name"].(string)
	if strings.TrimSpace(name) == "" {
		return nil, fmt.Errorf("tool call is missing a function name")
	}

	args, err := ParseRawArguments(function["arguments"])
	if err != nil {
		return nil, err
	}

	id, _ := tc["id"].(string)
	if id == "" {
		id, _ = tc["call_id"].(string)
	}

	return &ToolCall{ID: id, Name: name, Arguments: args}, nil
}

// ErrCodeShapedArguments marks argument payloads that are source code rather
// than a JSON object.
type ErrCodeShapedArguments struct {
	Payload string
}

func (e *ErrCodeShapedArguments) Error() string {
	return "tool arguments look like code, not JSON: " + TruncateForError(e.Payload, 120)
}

// ParseRawArguments normalizes the raw arguments value coming from a provider
// into an object. The raw form may be nil, an object, or a JSON string.
func ParseRawArguments(raw interface{}) (map[string]interface{}, error) {
	switch value := raw.(type) {
	case nil:
		return map[string]interface{}{}, nil
	case map[string]interface{}:
		return value, nil
	case string:
		trimmed := strings.TrimSpace(value)
		if trimmed == "" {
			return map[string]interface{}{}, nil
		}
		var args map[string]interface{}
		if err := json.Unmarshal([]byte(trimmed), &args); err != nil {
			if LooksLikeCode(trimmed) {
				return nil, &ErrCodeShapedArguments{Payload: trimmed}
			}
			return nil, fmt.Errorf("could not parse tool arguments: %w", err)
		}
		return args, nil
	default:
		data, err := json.Marshal(value)
		if err != nil {
			return nil, fmt.Errorf("could not encode tool arguments: %w", err)
		}
		var args map[string]interface{}
		if err := json.Unmarshal(data, &args); err != nil {
			return nil, fmt.Errorf("could not parse tool arguments: %w", err)
		}
		return args, nil
	}
}

// LooksLikeCode reports whether a failed-to-parse arguments payload reads
// like source code. Used to give the model a more useful terminal error.
func LooksLikeCode(s string) bool {
	trimmed := strings.TrimSpace(s)
	if trimmed == "" {
		return false
	}
	if strings.HasPrefix(trimmed, "{") || strings.HasPrefix(trimmed, "[") {
		return false
	}

	markers := []string{
		"const ", "let ", "var ", "function ", "def ", "return ",
		"import ", "=>", "console.", "print(", ";",
	}
	hits := 0
	for _, marker := range markers {
		if strings.Contains(trimmed, marker) {
			hits++
		}
	}
	return hits >= 1 && strings.ContainsAny(trimmed, "(){};=")
}

func firstNonEmptyString(values ...interface{}) string {
	for _, v := range values {
		if s, ok := v.(string); ok && strings.TrimSpace(s) != "" {
			return s
		}
	}
	return ""
}

func sanitizeToolName(raw interface{}) string {
	name, _ := raw.(string)
	name = strings.TrimSpace(name)
	if name == "" {
		return ""
	}

	var b strings.Builder
	for _, r := range name {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_' || r == '-' {
			b.WriteRune(r)
		} else {
			b.WriteRune('_')
		}
	}
	return strings.Trim(b.String(), "_")
}

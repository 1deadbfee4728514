package llm

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
)

// toolProtocolSentinel marks the injected tool instruction so injection stays
// idempotent within a turn.
const toolProtocolSentinel = "[tool-protocol-v1]"

var (
	functionCallTagRe = regexp.MustCompile(`(?s)<function_call>\s*(\{.*?\})\s*</function_call>`)
	fencedJSONRe      = regexp.MustCompile("(?s)```(?:json)?\\s*(\\{.*?\\})\\s*```")
	callShapeRe       = regexp.MustCompile(`([a-zA-Z_][a-zA-Z0-9_]*)\s*\(\s*(\{[\s\S]*?\})\s*\)`)
)

// InjectTools returns a copy of messages with a system instruction describing
// the tag protocol and a compact tool catalog appended. Calling it again with
// the same tools is a no-op.
func InjectTools(messages []*Message, tools []map[string]interface{}) []*Message {
	for _, msg := range messages {
		if msg != nil && msg.Role == "system" && strings.Contains(msg.Content, toolProtocolSentinel) {
			return messages
		}
	}

	result := make([]*Message, 0, len(messages)+1)
	result = append(result, messages...)
	result = append(result, &Message{
		Role:    "system",
		Content: buildToolProtocolPrompt(tools),
	})
	return result
}

func buildToolProtocolPrompt(tools []map[string]interface{}) string {
	var sb strings.Builder
	sb.WriteString(toolProtocolSentinel)
	sb.WriteString("\nYou can call tools to answer questions about the user's listening history.\n")
	sb.WriteString("To call a tool, reply with exactly one block of the form:\n")
	sb.WriteString("<function_call>{\"name\":\"tool_name\",\"arguments\":{...}}</function_call>\n")
	sb.WriteString("Do not describe the call in prose; emit the block. Available tools:\n")

	for _, tool := range tools {
		function, ok := tool["function"].(map[string]interface{})
		if !ok {
			continue
		}
		name, _ := function["name"].(string)
		if name == "" {
			continue
		}
		description, _ := function["description"].(string)
		sb.WriteString("- ")
		sb.WriteString(name)
		if description != "" {
			sb.WriteString(": ")
			sb.WriteString(description)
		}
		if params, ok := function["parameters"]; ok && params != nil {
			if data, err := json.Marshal(params); err == nil {
				sb.WriteString(" ")
				sb.WriteString(string(data))
			}
		}
		sb.WriteString("\n")
	}

	return strings.TrimRight(sb.String(), "\n")
}

// ParseCalls recovers tool calls from free-form model output. Strategies are
// tried in order: tagged blocks, fenced JSON blocks, name({...}) shapes. The
// parser only recognizes; it never executes.
func ParseCalls(text string) []*ToolCall {
	if strings.TrimSpace(text) == "" {
		return nil
	}

	if calls := parseTaggedCalls(text); len(calls) > 0 {
		return calls
	}
	if calls := parseFencedCalls(text); len(calls) > 0 {
		return calls
	}
	return parseCallShapes(text)
}

func parseTaggedCalls(text string) []*ToolCall {
	matches := functionCallTagRe.FindAllStringSubmatch(text, -1)
	calls := make([]*ToolCall, 0, len(matches))
	for _, match := range matches {
		if call := decodeCallPayload(match[1]); call != nil {
			call.ID = syntheticCallID(len(calls))
			calls = append(calls, call)
		}
	}
	return calls
}

func parseFencedCalls(text string) []*ToolCall {
	matches := fencedJSONRe.FindAllStringSubmatch(text, -1)
	calls := make([]*ToolCall, 0, len(matches))
	for _, match := range matches {
		if call := decodeCallPayload(match[1]); call != nil {
			call.ID = syntheticCallID(len(calls))
			calls = append(calls, call)
		}
	}
	return calls
}

func parseCallShapes(text string) []*ToolCall {
	matches := callShapeRe.FindAllStringSubmatch(text, -1)
	calls := make([]*ToolCall, 0, len(matches))
	for _, match := range matches {
		name := match[1]
		var args map[string]interface{}
		if err := json.Unmarshal([]byte(match[2]), &args); err != nil {
			continue
		}
		calls = append(calls, &ToolCall{
			ID:        syntheticCallID(len(calls)),
			Name:      name,
			Arguments: args,
		})
	}
	return calls
}

// decodeCallPayload parses a {"name":..., "arguments":...} payload. Arguments
// may arrive as an object or as a JSON-encoded string.
func decodeCallPayload(payload string) *ToolCall {
	var envelope struct {
		Name      string          `json:"name"`
		Arguments json.RawMessage `json:"arguments"`
	}
	if err := ExtractJSONObject(payload, &envelope); err != nil {
		return nil
	}
	if strings.TrimSpace(envelope.Name) == "" {
		return nil
	}

	args := map[string]interface{}{}
	if len(envelope.Arguments) > 0 {
		if err := json.Unmarshal(envelope.Arguments, &args); err != nil {
			// Sometimes arguments are double-encoded.
			var encoded string
			if err := json.Unmarshal(envelope.Arguments, &encoded); err != nil {
				return nil
			}
			if err := json.Unmarshal([]byte(encoded), &args); err != nil {
				return nil
			}
		}
	}

	return &ToolCall{Name: envelope.Name, Arguments: args}
}

func syntheticCallID(seq int) string {
	return fmt.Sprintf("fallback_%d", seq)
}

// FormatCall renders a tool call in the tag protocol. ParseCalls on the
// result yields a structurally equal call.
func FormatCall(c *ToolCall) string {
	if c == nil {
		return ""
	}
	args := c.Arguments
	if args == nil {
		args = map[string]interface{}{}
	}
	payload, err := json.Marshal(map[string]interface{}{
		"name":      c.Name,
		"arguments": args,
	})
	if err != nil {
		return ""
	}
	return "<function_call>" + string(payload) + "</function_call>"
}

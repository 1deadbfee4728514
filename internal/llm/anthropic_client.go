package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/anthropics/anthropic-sdk-go/shared/constant"

	"github.com/rhinos0608/rhythm-chamber-sub002/internal/consts"
)

// AnthropicClient talks to the Anthropic Messages API.
type AnthropicClient struct {
	client anthropic.Client
	model  string
}

func NewAnthropicClient(apiKey, model string) *AnthropicClient {
	return &AnthropicClient{
		client: anthropic.NewClient(option.WithAPIKey(apiKey)),
		model:  model,
	}
}

func (c *AnthropicClient) GetModelName() string {
	return c.model
}

func (c *AnthropicClient) buildParams(req *CompletionRequest) anthropic.MessageNewParams {
	messages := make([]anthropic.MessageParam, 0, len(req.Messages))
	var systemExtras []string
	for _, msg := range req.Messages {
		switch msg.Role {
		case "assistant":
			blocks := make([]anthropic.ContentBlockParamUnion, 0, 1+len(msg.ToolCalls))
			if msg.Content != "" {
				blocks = append(blocks, anthropic.NewTextBlock(msg.Content))
			}
			for _, tc := range msg.ToolCalls {
				callID, _ := tc["id"].(string)
				fn, _ := tc["function"].(map[string]interface{})
				name, _ := fn["name"].(string)
				input := decodeAnthropicInput(fn["arguments"])
				blocks = append(blocks, anthropic.NewToolUseBlock(callID, input, name))
			}
			if len(blocks) == 0 {
				continue
			}
			messages = append(messages, anthropic.MessageParam{
				Role:    anthropic.MessageParamRoleAssistant,
				Content: blocks,
			})
		case "tool":
			messages = append(messages, anthropic.MessageParam{
				Role: anthropic.MessageParamRoleUser,
				Content: []anthropic.ContentBlockParamUnion{
					anthropic.NewToolResultBlock(msg.ToolID, msg.Content, false),
				},
			})
		case "system":
			// System text travels in the dedicated field below.
			systemExtras = append(systemExtras, msg.Content)
			continue
		default:
			messages = append(messages, anthropic.MessageParam{
				Role: anthropic.MessageParamRoleUser,
				Content: []anthropic.ContentBlockParamUnion{
					anthropic.NewTextBlock(msg.Content),
				},
			})
		}
	}

	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = consts.DefaultMaxTokens
	}

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(c.model),
		MaxTokens: int64(maxTokens),
		Messages:  messages,
	}
	if req.SystemPrompt != "" {
		params.System = []anthropic.TextBlockParam{{Text: req.SystemPrompt}}
	}
	for _, extra := range systemExtras {
		params.System = append(params.System, anthropic.TextBlockParam{Text: extra})
	}
	if req.Temperature != nil {
		params.Temperature = anthropic.Float(*req.Temperature)
	}
	if req.TopP != nil {
		params.TopP = anthropic.Float(*req.TopP)
	}

	if len(req.Tools) > 0 {
		toolParams := make([]anthropic.ToolUnionParam, 0, len(req.Tools))
		for _, tool := range req.Tools {
			fn, ok := tool["function"].(map[string]interface{})
			if !ok {
				continue
			}
			name, _ := fn["name"].(string)
			description, _ := fn["description"].(string)
			parameters, _ := fn["parameters"].(map[string]interface{})

			schema := anthropic.ToolInputSchemaParam{Type: constant.Object("object")}
			if props, ok := parameters["properties"].(map[string]interface{}); ok {
				schema.Properties = props
			}
			if required, ok := parameters["required"].([]interface{}); ok {
				names := make([]string, 0, len(required))
				for _, r := range required {
					if s, ok := r.(string); ok {
						names = append(names, s)
					}
				}
				schema.Required = names
			}

			toolParams = append(toolParams, anthropic.ToolUnionParam{
				OfTool: &anthropic.ToolParam{
					Name:        name,
					Description: anthropic.String(description),
					InputSchema: schema,
					Type:        anthropic.ToolTypeCustom,
				},
			})
		}
		params.Tools = toolParams
	}

	return params
}

func decodeAnthropicInput(raw interface{}) map[string]interface{} {
	switch value := raw.(type) {
	case map[string]interface{}:
		return value
	case string:
		var input map[string]interface{}
		if err := json.Unmarshal([]byte(value), &input); err == nil {
			return input
		}
	}
	return map[string]interface{}{}
}

func (c *AnthropicClient) CompleteWithRequest(ctx context.Context, req *CompletionRequest) (*CompletionResponse, error) {
	msg, err := c.client.Messages.New(ctx, c.buildParams(req))
	if err != nil {
		return nil, fmt.Errorf("anthropic request failed: %w", err)
	}

	result := &CompletionResponse{StopReason: string(msg.StopReason)}
	var content strings.Builder
	for _, block := range msg.Content {
		switch block.Type {
		case "text":
			content.WriteString(block.Text)
		case "tool_use":
			result.ToolCalls = append(result.ToolCalls, map[string]interface{}{
				"id":   block.ID,
				"type": "function",
				"function": map[string]interface{}{
					"name":      block.Name,
					"arguments": string(block.Input),
				},
			})
		}
	}
	result.Content = content.String()
	return result, nil
}

func (c *AnthropicClient) Complete(ctx context.Context, prompt string) (string, error) {
	resp, err := c.CompleteWithRequest(ctx, &CompletionRequest{
		Messages: []*Message{{Role: "user", Content: prompt}},
	})
	if err != nil {
		return "", err
	}
	return resp.Content, nil
}

func (c *AnthropicClient) Stream(ctx context.Context, req *CompletionRequest, onToken func(string) error) (*CompletionResponse, error) {
	stream := c.client.Messages.NewStreaming(ctx, c.buildParams(req))
	defer stream.Close()

	var content strings.Builder
	for stream.Next() {
		event := stream.Current()
		if deltaEvent, ok := event.AsAny().(anthropic.ContentBlockDeltaEvent); ok {
			if textDelta, ok := deltaEvent.Delta.AsAny().(anthropic.TextDelta); ok {
				content.WriteString(textDelta.Text)
				if onToken != nil {
					if err := onToken(textDelta.Text); err != nil {
						return nil, err
					}
				}
			}
		}
	}
	if err := stream.Err(); err != nil {
		return nil, fmt.Errorf("anthropic stream failed: %w", err)
	}

	return &CompletionResponse{Content: content.String()}, nil
}

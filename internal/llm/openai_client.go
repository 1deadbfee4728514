package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/responses"
	"github.com/openai/openai-go/shared"

	"github.com/rhinos0608/rhythm-chamber-sub002/internal/logger"
)

// OpenAIClient talks to the OpenAI Responses API.
type OpenAIClient struct {
	client *openai.Client
	model  string
}

func NewOpenAIClient(apiKey, model string) *OpenAIClient {
	client := openai.NewClient(option.WithAPIKey(apiKey))
	return &OpenAIClient{
		client: &client,
		model:  model,
	}
}

func (c *OpenAIClient) GetModelName() string {
	return c.model
}

// reasoningModel reports whether the model rejects sampling parameters such
// as temperature and top_p.
func (c *OpenAIClient) reasoningModel() bool {
	m := strings.ToLower(c.model)
	return strings.HasPrefix(m, "o1") || strings.HasPrefix(m, "o3") ||
		strings.HasPrefix(m, "o4") || strings.HasPrefix(m, "gpt-5")
}

func (c *OpenAIClient) buildParams(req *CompletionRequest) (responses.ResponseNewParams, error) {
	items := make(responses.ResponseInputParam, 0, len(req.Messages))
	for _, msg := range req.Messages {
		switch msg.Role {
		case "system":
			items = append(items, responses.ResponseInputItemParamOfMessage(msg.Content, responses.EasyInputMessageRoleSystem))
		case "assistant":
			if len(msg.ToolCalls) > 0 {
				for _, tc := range msg.ToolCalls {
					callID, _ := tc["id"].(string)
					fn, _ := tc["function"].(map[string]interface{})
					name, _ := fn["name"].(string)
					args := "{}"
					switch a := fn["arguments"].(type) {
					case string:
						if strings.TrimSpace(a) != "" {
							args = a
						}
					case map[string]interface{}:
						if data, err := json.Marshal(a); err == nil {
							args = string(data)
						}
					}
					items = append(items, responses.ResponseInputItemParamOfFunctionCall(args, callID, name))
				}
			}
			if msg.Content != "" {
				items = append(items, responses.ResponseInputItemParamOfMessage(msg.Content, responses.EasyInputMessageRoleAssistant))
			}
		case "tool":
			items = append(items, responses.ResponseInputItemParamOfFunctionCallOutput(msg.ToolID, msg.Content))
		default:
			items = append(items, responses.ResponseInputItemParamOfMessage(msg.Content, responses.EasyInputMessageRoleUser))
		}
	}

	params := responses.ResponseNewParams{
		Model: shared.ResponsesModel(c.model),
		Input: responses.ResponseNewParamsInputUnion{OfInputItemList: items},
	}

	if req.SystemPrompt != "" {
		params.Instructions = openai.String(req.SystemPrompt)
	}
	if req.MaxTokens > 0 {
		params.MaxOutputTokens = openai.Int(int64(req.MaxTokens))
	}
	if !c.reasoningModel() {
		if req.Temperature != nil {
			params.Temperature = openai.Float(*req.Temperature)
		}
		if req.TopP != nil {
			params.TopP = openai.Float(*req.TopP)
		}
	}

	if len(req.Tools) > 0 {
		toolParams := make([]responses.ToolUnionParam, 0, len(req.Tools))
		for _, tool := range req.Tools {
			fn, ok := tool["function"].(map[string]interface{})
			if !ok {
				continue
			}
			name, _ := fn["name"].(string)
			parameters, _ := fn["parameters"].(map[string]interface{})
			tp := responses.ToolParamOfFunction(name, parameters, false)
			if desc, ok := fn["description"].(string); ok && desc != "" {
				tp.OfFunction.Description = openai.String(desc)
			}
			toolParams = append(toolParams, tp)
		}
		params.Tools = toolParams
	}

	return params, nil
}

func (c *OpenAIClient) CompleteWithRequest(ctx context.Context, req *CompletionRequest) (*CompletionResponse, error) {
	params, err := c.buildParams(req)
	if err != nil {
		return nil, err
	}

	resp, err := c.client.Responses.New(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("openai request failed: %w", err)
	}

	result := &CompletionResponse{
		Content:    resp.OutputText(),
		StopReason: string(resp.Status),
	}

	for _, item := range resp.Output {
		if item.Type != "function_call" {
			continue
		}
		call := item.AsFunctionCall()
		callID := call.CallID
		if callID == "" {
			callID = call.ID
		}
		result.ToolCalls = append(result.ToolCalls, map[string]interface{}{
			"id":   callID,
			"type": "function",
			"function": map[string]interface{}{
				"name":      call.Name,
				"arguments": call.Arguments,
			},
		})
	}
	if len(result.ToolCalls) > 0 {
		result.StopReason = "tool_calls"
	}

	return result, nil
}

func (c *OpenAIClient) Complete(ctx context.Context, prompt string) (string, error) {
	resp, err := c.CompleteWithRequest(ctx, &CompletionRequest{
		Messages: []*Message{{Role: "user", Content: prompt}},
	})
	if err != nil {
		return "", err
	}
	return resp.Content, nil
}

func (c *OpenAIClient) Stream(ctx context.Context, req *CompletionRequest, onToken func(string) error) (*CompletionResponse, error) {
	params, err := c.buildParams(req)
	if err != nil {
		return nil, err
	}

	stream := c.client.Responses.NewStreaming(ctx, params)
	defer stream.Close()

	var content strings.Builder
	for stream.Next() {
		event := stream.Current()
		if event.Type == "response.output_text.delta" {
			delta := event.AsResponseOutputTextDelta().Delta
			content.WriteString(delta)
			if onToken != nil {
				if err := onToken(delta); err != nil {
					return nil, err
				}
			}
		}
	}
	if err := stream.Err(); err != nil {
		return nil, fmt.Errorf("openai stream failed: %w", err)
	}

	logger.Debug("openai stream complete, %d chars", content.Len())
	return &CompletionResponse{Content: content.String()}, nil
}

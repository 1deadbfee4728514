package llm

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/rhinos0608/rhythm-chamber-sub002/internal/consts"
)

// OllamaClient talks to the Ollama REST API at {base}/api/chat.
type OllamaClient struct {
	baseURL string
	model   string
	client  *http.Client
}

type ollamaChatMessage struct {
	Role       string                   `json:"role"`
	Content    string                   `json:"content"`
	Name       string                   `json:"name,omitempty"`
	ToolCalls  []map[string]interface{} `json:"tool_calls,omitempty"`
	ToolCallID string                   `json:"tool_call_id,omitempty"`
}

type ollamaChatRequest struct {
	Model    string                   `json:"model"`
	Stream   bool                     `json:"stream"`
	System   string                   `json:"system,omitempty"`
	Messages []ollamaChatMessage      `json:"messages"`
	Tools    []map[string]interface{} `json:"tools,omitempty"`
	Options  map[string]interface{}   `json:"options,omitempty"`
}

type ollamaChatResponse struct {
	Message    *ollamaChatMessage `json:"message"`
	Done       bool               `json:"done"`
	DoneReason string             `json:"done_reason"`
}

func NewOllamaClient(baseURL, model string) (*OllamaClient, error) {
	if strings.TrimSpace(model) == "" {
		return nil, fmt.Errorf("ollama client requires a model identifier")
	}
	base := strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if base == "" {
		base = "http://localhost:11434"
	}

	return &OllamaClient{
		baseURL: base,
		model:   model,
		client: &http.Client{
			Timeout: consts.LLMTimeoutLocal,
		},
	}, nil
}

func (c *OllamaClient) GetModelName() string {
	return c.model
}

func (c *OllamaClient) buildChatRequest(req *CompletionRequest, stream bool) (*ollamaChatRequest, error) {
	messages := make([]ollamaChatMessage, 0, len(req.Messages))
	for _, msg := range req.Messages {
		if msg == nil {
			continue
		}
		role := strings.TrimSpace(msg.Role)
		if role == "" {
			role = "user"
		}
		oMsg := ollamaChatMessage{Role: role, Content: msg.Content}
		if len(msg.ToolCalls) > 0 {
			oMsg.ToolCalls = msg.ToolCalls
		}
		if msg.ToolID != "" {
			oMsg.ToolCallID = msg.ToolID
		}
		if msg.ToolName != "" {
			oMsg.Name = msg.ToolName
		}
		messages = append(messages, oMsg)
	}
	if len(messages) == 0 {
		return nil, fmt.Errorf("ollama completion requires at least one message")
	}

	options := make(map[string]interface{})
	if req.Temperature != nil {
		options["temperature"] = *req.Temperature
	}
	if req.TopP != nil {
		options["top_p"] = *req.TopP
	}
	if req.MaxTokens > 0 {
		options["num_predict"] = req.MaxTokens
	}
	if len(options) == 0 {
		options = nil
	}

	payload := &ollamaChatRequest{
		Model:    c.model,
		Stream:   stream,
		System:   req.SystemPrompt,
		Messages: messages,
		Options:  options,
	}
	if SupportsToolCalling(c.model) {
		payload.Tools = req.Tools
	}
	return payload, nil
}

func (c *OllamaClient) newChatRequest(ctx context.Context, payload *ollamaChatRequest) (*http.Request, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("could not encode ollama request: %w", err)
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/chat", bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	return httpReq, nil
}

func (c *OllamaClient) CompleteWithRequest(ctx context.Context, req *CompletionRequest) (*CompletionResponse, error) {
	payload, err := c.buildChatRequest(req, false)
	if err != nil {
		return nil, err
	}
	httpReq, err := c.newChatRequest(ctx, payload)
	if err != nil {
		return nil, err
	}

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("ollama completion failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("ollama completion failed: status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var chatResp ollamaChatResponse
	if err := json.NewDecoder(resp.Body).Decode(&chatResp); err != nil {
		return nil, fmt.Errorf("ollama completion failed: %w", err)
	}

	content := ""
	var toolCalls []map[string]interface{}
	if chatResp.Message != nil {
		content = chatResp.Message.Content
		toolCalls = NormalizeToolCallIDs(chatResp.Message.ToolCalls)
	}

	stopReason := strings.TrimSpace(chatResp.DoneReason)
	if stopReason == "" && chatResp.Done {
		stopReason = "stop"
	}

	return &CompletionResponse{
		Content:    content,
		ToolCalls:  toolCalls,
		StopReason: stopReason,
	}, nil
}

func (c *OllamaClient) Complete(ctx context.Context, prompt string) (string, error) {
	resp, err := c.CompleteWithRequest(ctx, &CompletionRequest{
		Messages: []*Message{{Role: "user", Content: prompt}},
	})
	if err != nil {
		return "", err
	}
	return resp.Content, nil
}

func (c *OllamaClient) Stream(ctx context.Context, req *CompletionRequest, onToken func(string) error) (*CompletionResponse, error) {
	payload, err := c.buildChatRequest(req, true)
	if err != nil {
		return nil, err
	}
	httpReq, err := c.newChatRequest(ctx, payload)
	if err != nil {
		return nil, err
	}

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("ollama stream failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("ollama stream failed: status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var content strings.Builder
	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 0, consts.BufferSize256KB), consts.BufferSize1MB)

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		var event ollamaChatResponse
		if err := json.Unmarshal([]byte(line), &event); err != nil {
			return nil, fmt.Errorf("ollama stream failed to decode chunk: %w", err)
		}

		if event.Message != nil && event.Message.Content != "" {
			content.WriteString(event.Message.Content)
			if onToken != nil {
				if err := onToken(event.Message.Content); err != nil {
					return nil, err
				}
			}
		}
		if event.Done {
			break
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("ollama stream failed: %w", err)
	}

	return &CompletionResponse{Content: content.String()}, nil
}

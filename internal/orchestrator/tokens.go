package orchestrator

import (
	"encoding/json"

	"github.com/pkoukk/tiktoken-go"

	"github.com/rhinos0608/rhythm-chamber-sub002/internal/config"
	"github.com/rhinos0608/rhythm-chamber-sub002/internal/consts"
	"github.com/rhinos0608/rhythm-chamber-sub002/internal/llm"
)

const (
	systemMessageOverhead = 2
	perMessageOverhead    = 4
)

// TurnRequest is the working copy of what a provider call will carry. The
// accountant measures and trims copies of it; callers' inputs are never
// mutated.
type TurnRequest struct {
	SystemPrompt string
	Messages     []*llm.Message
	RAGContext   string
	Tools        []map[string]interface{}
}

func (r TurnRequest) clone() TurnRequest {
	messages := make([]*llm.Message, len(r.Messages))
	copy(messages, r.Messages)
	r.Messages = messages
	return r
}

// Warning is one threshold crossing reported by Measure.
type Warning struct {
	Level   string
	Message string
}

// Budget is the measured size of a turn request.
type Budget struct {
	Total         int
	ContextWindow int
	UsagePercent  int
	Warnings      []Warning
}

// NeedsTruncation reports whether the request crosses the truncation
// threshold.
func (b Budget) NeedsTruncation() bool {
	return b.UsagePercent >= consts.TokenTruncateThreshold
}

// Accountant measures turn requests against the model's context window.
// Exact encodings come from tiktoken where the model is known; everything
// else falls back to the chars-per-token heuristic.
type Accountant struct {
	encoder *tiktoken.Tiktoken
	window  int
}

func NewAccountant(modelID string) *Accountant {
	encoder, _ := encodingForModel(modelID)
	return &Accountant{
		encoder: encoder,
		window:  llm.DetectContextWindow(modelID),
	}
}

func encodingForModel(modelID string) (*tiktoken.Tiktoken, bool) {
	encoder, err := tiktoken.EncodingForModel(modelID)
	if err == nil {
		return encoder, false
	}

	fallback, err := tiktoken.GetEncoding("cl100k_base")
	if err != nil {
		return nil, true
	}
	return fallback, true
}

func (a *Accountant) tokenCount(text string) int {
	if text == "" {
		return 0
	}
	if a.encoder != nil {
		return len(a.encoder.Encode(text, nil, nil))
	}
	return llm.EstimateTextTokens(text)
}

func (a *Accountant) jsonTokens(v interface{}) int {
	if a.encoder == nil {
		return llm.EstimateJSONTokens(v)
	}
	data, err := json.Marshal(v)
	if err != nil {
		return 0
	}
	return len(a.encoder.Encode(string(data), nil, nil))
}

func (a *Accountant) messageTokens(msg *llm.Message) int {
	if msg == nil {
		return 0
	}
	tokens := a.tokenCount(msg.Content) + perMessageOverhead
	if msg.ToolID != "" {
		tokens += a.tokenCount(msg.ToolID)
	}
	if msg.ToolName != "" {
		tokens += a.tokenCount(msg.ToolName)
	}
	if len(msg.ToolCalls) > 0 {
		tokens += a.jsonTokens(msg.ToolCalls)
	}
	return tokens
}

// Measure sizes a turn request and reports threshold crossings.
func (a *Accountant) Measure(req TurnRequest) Budget {
	total := a.tokenCount(req.SystemPrompt)
	if req.SystemPrompt != "" {
		total += systemMessageOverhead
	}
	total += a.tokenCount(req.RAGContext)

	for _, msg := range req.Messages {
		total += a.messageTokens(msg)
	}

	if len(req.Tools) > 0 {
		total += a.jsonTokens(req.Tools)
	}

	budget := Budget{
		Total:         total,
		ContextWindow: a.window,
		UsagePercent:  total * 100 / a.window,
	}

	switch {
	case budget.UsagePercent >= consts.TokenTruncateThreshold:
		budget.Warnings = append(budget.Warnings, Warning{
			Level:   "warn",
			Message: "the conversation exceeds the model's context window; older content will be dropped",
		})
	case budget.UsagePercent >= consts.TokenWarnThreshold:
		budget.Warnings = append(budget.Warnings, Warning{
			Level:   "warn",
			Message: "the conversation is close to the model's context window",
		})
	case budget.UsagePercent >= consts.TokenInfoThreshold:
		budget.Warnings = append(budget.Warnings, Warning{
			Level:   "info",
			Message: "the conversation is using a large share of the model's context window",
		})
	}

	return budget
}

// Truncation is the outcome of TruncateToTarget.
type Truncation struct {
	Request      TurnRequest
	Budget       Budget
	Truncated    bool
	DroppedRAG   bool
	DroppedTools bool
	DroppedPairs int
	Fits         bool
}

// TruncateToTarget applies the configured levers in order until the request
// fits under the truncation threshold or every lever is spent. The current
// user message (last in history) and the system prompt are never dropped.
func (a *Accountant) TruncateToTarget(req TurnRequest, order []string) Truncation {
	result := Truncation{Request: req.clone()}
	result.Budget = a.Measure(result.Request)
	if !result.Budget.NeedsTruncation() {
		result.Fits = true
		return result
	}

	for _, lever := range order {
		switch lever {
		case config.LeverRAG:
			if result.Request.RAGContext == "" {
				continue
			}
			result.Request.RAGContext = ""
			result.DroppedRAG = true
		case config.LeverTools:
			if len(result.Request.Tools) == 0 {
				continue
			}
			result.Request.Tools = nil
			result.DroppedTools = true
		case config.LeverHistory:
			for a.Measure(result.Request).NeedsTruncation() {
				if !dropOldestPair(&result.Request) {
					break
				}
				result.DroppedPairs++
			}
		default:
			continue
		}

		result.Truncated = true
		result.Budget = a.Measure(result.Request)
		if !result.Budget.NeedsTruncation() {
			result.Fits = true
			return result
		}
	}

	result.Fits = !result.Budget.NeedsTruncation()
	return result
}

// dropOldestPair removes the oldest user message and everything up to the
// next user message. The last message is the current user turn and is
// untouchable.
func dropOldestPair(req *TurnRequest) bool {
	start := -1
	for i, msg := range req.Messages {
		if msg.Role == "user" && !msg.Synthetic {
			start = i
			break
		}
	}
	if start == -1 || start == len(req.Messages)-1 {
		return false
	}

	end := len(req.Messages)
	for i := start + 1; i < len(req.Messages); i++ {
		if req.Messages[i].Role == "user" && !req.Messages[i].Synthetic {
			end = i
			break
		}
	}
	if end == len(req.Messages) {
		return false
	}

	req.Messages = append(req.Messages[:start:start], req.Messages[end:]...)
	return true
}

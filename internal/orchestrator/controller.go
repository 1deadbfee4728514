package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rhinos0608/rhythm-chamber-sub002/internal/config"
	"github.com/rhinos0608/rhythm-chamber-sub002/internal/consts"
	"github.com/rhinos0608/rhythm-chamber-sub002/internal/dataset"
	"github.com/rhinos0608/rhythm-chamber-sub002/internal/llm"
	"github.com/rhinos0608/rhythm-chamber-sub002/internal/logger"
	"github.com/rhinos0608/rhythm-chamber-sub002/internal/personality"
	"github.com/rhinos0608/rhythm-chamber-sub002/internal/progress"
	"github.com/rhinos0608/rhythm-chamber-sub002/internal/rag"
	"github.com/rhinos0608/rhythm-chamber-sub002/internal/session"
	"github.com/rhinos0608/rhythm-chamber-sub002/internal/tools"
)

// Reply is the envelope a completed turn hands back to the caller.
type Reply struct {
	Status  string `json:"status"`
	Role    string `json:"role"`
	Content string `json:"content"`

	IsFallback            bool `json:"is_fallback,omitempty"`
	IsFunctionError       bool `json:"is_function_error,omitempty"`
	IsCircuitBreakerError bool `json:"is_circuit_breaker_error,omitempty"`
	Aborted               bool `json:"aborted,omitempty"`
}

// Options tunes a single SendMessage call.
type Options struct {
	Progress  progress.Callback
	Streaming bool
}

// Controller drives one conversation: it owns the per-turn circuit breaker,
// the token accountant, and the tool loop around the provider client.
type Controller struct {
	client     llm.Client
	provider   string
	model      string
	registry   *tools.Registry
	validator  *tools.Validator
	dispatcher *tools.Dispatcher
	breaker    *Breaker
	accountant *Accountant
	capability *llm.CapabilityMemory
	retriever  rag.Retriever
	session    *session.Session
	snapshot   func() *dataset.Dataset
	cfg        *config.Config
}

// NewController wires a controller for one session. The registry is filtered
// down to the configured tool allowlist before anything is exposed to the
// provider.
func NewController(cfg *config.Config, client llm.Client, registry *tools.Registry, sess *session.Session, snapshot func() *dataset.Dataset, retriever rag.Retriever) *Controller {
	enabled := registry.Enabled(cfg.EnabledTools)
	return &Controller{
		client:     client,
		provider:   cfg.Provider,
		model:      cfg.Model,
		registry:   enabled,
		validator:  tools.NewValidator(),
		dispatcher: tools.NewDispatcher(enabled, snapshot),
		breaker:    NewBreaker(),
		accountant: NewAccountant(cfg.Model),
		capability: llm.NewCapabilityMemory(),
		retriever:  retriever,
		session:    sess,
		snapshot:   snapshot,
		cfg:        cfg,
	}
}

// Session exposes the conversation backing this controller.
func (c *Controller) Session() *session.Session {
	return c.session
}

// CapabilityLevel reports the level the next turn would run at.
func (c *Controller) CapabilityLevel() llm.CapabilityLevel {
	return c.resolveLevel()
}

func (c *Controller) resolveLevel() llm.CapabilityLevel {
	if c.cfg.CapabilityDefault == config.CapabilityPromptInject {
		return llm.LevelPromptInject
	}
	return c.capability.Resolve(c.provider, c.model).Level
}

func (c *Controller) llmTimeout() time.Duration {
	if llm.IsLocalProvider(c.provider) {
		return consts.LLMTimeoutLocal
	}
	return consts.LLMTimeoutCloud
}

func (c *Controller) emit(cb progress.Callback, ev progress.Event) {
	if err := progress.Dispatch(cb, ev); err != nil {
		logger.Debug("progress callback rejected %s event: %v", ev.Kind, err)
	}
}

// promptContext gathers the per-turn system prompt ingredients from the
// current dataset snapshot.
func (c *Controller) promptContext(ragContext string) llm.PromptContext {
	pc := llm.PromptContext{RAGContext: ragContext, Now: time.Now()}
	if ds := c.snapshot(); ds != nil {
		pc.DatasetSummary = ds.Summary()
		pc.PersonalityLine = personality.Classify(ds).Line()
	}
	return pc
}

// fallbackReply synthesizes a local answer when the provider is unreachable
// or returned nothing usable.
func (c *Controller) fallbackReply() *Reply {
	content := "I could not reach the language model just now. Please try again in a moment."
	if ds := c.snapshot(); ds != nil && ds.Len() > 0 {
		profile := personality.Classify(ds)
		content = personality.FallbackReply(profile, ds.TotalStats(dataset.Filter{}))
	}
	c.session.AddMessage(&llm.Message{Role: "assistant", Content: content})
	return &Reply{Status: "success", Role: "assistant", Content: content, IsFallback: true}
}

// terminal appends an assistant-visible error reply to the history and
// returns it. Aborted turns never go through here.
func (c *Controller) terminal(reply *Reply) *Reply {
	reply.Status = "error"
	reply.Role = "assistant"
	c.session.AddMessage(&llm.Message{Role: "assistant", Content: reply.Content})
	return reply
}

// SendMessage runs one full user turn: context assembly, budget enforcement,
// the provider call, the tool loop, and finalization. The returned Reply is
// always non-nil on a nil error.
func (c *Controller) SendMessage(ctx context.Context, userText string, opts *Options) (*Reply, error) {
	if opts == nil {
		opts = &Options{}
	}
	if strings.TrimSpace(userText) == "" {
		return nil, errors.New("empty message")
	}

	// Phase 1: prepare.
	c.breaker.ResetTurn()
	c.session.AddMessage(&llm.Message{Role: "user", Content: userText})

	ragContext := ""
	if c.retriever != nil && c.retriever.IsConfigured() {
		fetched, err := c.retriever.GetContext(ctx, userText, 8)
		if err != nil {
			logger.Warn("retrieval failed, continuing without context: %v", err)
		} else {
			ragContext = fetched
		}
	}

	// Phase 2 and 3: capability.
	level := c.resolveLevel()
	if level >= llm.LevelPromptInject {
		c.emit(opts.Progress, progress.Event{Kind: progress.KindFallbackMode, CapabilityLevel: int(level)})
	}

	useTools := c.registry.Len() > 0 && level < llm.LevelIntentOnly
	toolsJSON := c.registry.ToJSONSchema()

	// Phase 4: budget.
	req := TurnRequest{
		SystemPrompt: llm.BuildSystemPrompt(c.promptContext("")),
		Messages:     c.session.GetMessages(),
		RAGContext:   ragContext,
	}
	if useTools {
		req.Tools = toolsJSON
	}
	budget := c.accountant.Measure(req)
	c.emit(opts.Progress, progress.Event{
		Kind:          progress.KindTokenUpdate,
		Total:         budget.Total,
		ContextWindow: budget.ContextWindow,
		UsagePercent:  budget.UsagePercent,
	})
	if !budget.NeedsTruncation() {
		for _, w := range budget.Warnings {
			c.emit(opts.Progress, progress.Event{Kind: progress.KindTokenWarning, Level: w.Level, Message: w.Message})
		}
	}
	if budget.NeedsTruncation() {
		tr := c.accountant.TruncateToTarget(req, c.cfg.TruncationOrder)
		if tr.DroppedRAG {
			ragContext = ""
		}
		if tr.DroppedTools {
			useTools = false
		}
		for i := 0; i < tr.DroppedPairs; i++ {
			if !c.session.DropOldestExchange() {
				break
			}
		}
		c.emit(opts.Progress, progress.Event{
			Kind:          progress.KindTokenWarning,
			Level:         "critical",
			Message:       truncationSummary(tr),
			Truncated:     tr.Truncated,
			Total:         tr.Budget.Total,
			ContextWindow: tr.Budget.ContextWindow,
			UsagePercent:  tr.Budget.UsagePercent,
		})
		if !tr.Fits {
			return c.terminal(&Reply{
				Content: "Your message is too large for the model's context window, even after trimming. Please shorten it or start a new conversation.",
			}), nil
		}
	}

	// Phase 7 for intent-only models runs before the provider call: a single
	// probable intent is derived from the user text and executed, and its
	// result is narrated by a plain completion.
	if level == llm.LevelIntentOnly {
		if call := deriveIntent(userText); call != nil {
			c.emit(opts.Progress, progress.Event{Kind: progress.KindFallbackParsing, CapabilityLevel: int(level), Count: 1})
			if reply, done := c.runCall(ctx, call, false, opts.Progress); done {
				return reply, nil
			}
		}
	}

	// Phases 5 through 7: the provider round loop. Tools ride only on the
	// first request; follow-up requests narrate accumulated results.
	for round := 0; round < consts.MaxToolRounds; round++ {
		carryTools := useTools && round == 0

		messages := c.session.GetMessages()
		var reqTools []map[string]interface{}
		if carryTools {
			switch level {
			case llm.LevelNative:
				reqTools = toolsJSON
			case llm.LevelPromptInject, llm.LevelRegexParse:
				messages = llm.InjectTools(messages, toolsJSON)
			}
		}

		provReq := &llm.CompletionRequest{
			Messages:     messages,
			Tools:        reqTools,
			Temperature:  c.cfg.Temperature,
			TopP:         c.cfg.TopP,
			MaxTokens:    c.maxTokens(),
			SystemPrompt: llm.BuildSystemPrompt(c.promptContext(ragContext)),
		}

		c.emit(opts.Progress, progress.Event{Kind: progress.KindThinking})
		resp, err := c.callProvider(ctx, provReq, opts)
		if err != nil {
			if ctx.Err() != nil {
				return &Reply{Status: "error", Role: "assistant", Aborted: true}, nil
			}
			logger.Error("provider call failed: %v", err)
			return c.fallbackReply(), nil
		}

		calls, reply := c.extractCalls(resp, level, opts.Progress)
		if reply != nil {
			return reply, nil
		}

		// Record the assistant turn before any tool result so the history
		// invariant holds: every tool message follows the assistant message
		// that requested it.
		nativeCalls := level == llm.LevelNative && len(resp.ToolCalls) > 0
		assistant := &llm.Message{Role: "assistant", Content: resp.Content}
		if nativeCalls {
			assistant.ToolCalls = llm.NormalizeToolCallIDs(resp.ToolCalls)
		}
		c.session.AddMessage(assistant)

		if len(calls) == 0 {
			// Phase 6: guard against an empty reply.
			if strings.TrimSpace(resp.Content) == "" {
				logger.Warn("provider returned an empty reply, falling back")
				return c.fallbackReply(), nil
			}
			return &Reply{Status: "success", Role: "assistant", Content: resp.Content}, nil
		}

		for _, call := range calls {
			if reply, done := c.runCall(ctx, call, nativeCalls, opts.Progress); done {
				return reply, nil
			}
		}
	}

	logger.Warn("tool round limit reached without a final reply")
	return c.fallbackReply(), nil
}

func (c *Controller) maxTokens() int {
	if c.cfg.MaxTokens > 0 {
		return c.cfg.MaxTokens
	}
	return consts.DefaultMaxTokens
}

// callProvider runs one completion under the provider timeout. Streaming is
// only used when the request carries no native tools; every fallback level
// parses from assembled content anyway.
func (c *Controller) callProvider(ctx context.Context, req *llm.CompletionRequest, opts *Options) (*llm.CompletionResponse, error) {
	callCtx, cancel := context.WithTimeout(ctx, c.llmTimeout())
	defer cancel()

	if opts.Streaming && len(req.Tools) == 0 {
		return c.client.Stream(callCtx, req, func(token string) error {
			c.emit(opts.Progress, progress.Event{Kind: progress.KindToken, Text: token})
			return nil
		})
	}
	return c.client.CompleteWithRequest(callCtx, req)
}

// extractCalls pulls tool calls out of a completion according to the active
// capability level. A non-nil reply is terminal.
func (c *Controller) extractCalls(resp *llm.CompletionResponse, level llm.CapabilityLevel, cb progress.Callback) ([]*llm.ToolCall, *Reply) {
	switch level {
	case llm.LevelNative:
		if len(resp.ToolCalls) > 0 {
			normalized := llm.NormalizeToolCallIDs(resp.ToolCalls)
			calls := make([]*llm.ToolCall, 0, len(normalized))
			for _, raw := range normalized {
				call, err := llm.DecodeNativeCall(raw)
				if err != nil {
					var codeErr *llm.ErrCodeShapedArguments
					if errors.As(err, &codeErr) {
						return nil, c.terminal(&Reply{
							Content:         "The model only shared code instead of calling a tool, so I could not run anything. Try asking again in plain language.",
							IsFunctionError: true,
						})
					}
					logger.Warn("skipping undecodable tool call: %v", err)
					continue
				}
				calls = append(calls, call)
			}
			return calls, nil
		}
		// A native-classified model answering in protocol tags is a parse
		// failure; remember it and recover the calls this once.
		if parsed := llm.ParseCalls(resp.Content); len(parsed) > 0 {
			c.capability.NoteParseFailure(c.provider, c.model, "structured call expected, tagged text received")
			c.emit(cb, progress.Event{Kind: progress.KindFallbackParsing, CapabilityLevel: int(llm.LevelPromptInject), Count: len(parsed)})
			return parsed, nil
		}
		return nil, nil

	case llm.LevelPromptInject, llm.LevelRegexParse:
		parsed := llm.ParseCalls(resp.Content)
		if len(parsed) > 0 {
			c.emit(cb, progress.Event{Kind: progress.KindFallbackParsing, CapabilityLevel: int(level), Count: len(parsed)})
		}
		return parsed, nil

	default:
		return nil, nil
	}
}

// runCall takes one tool call through the breaker, validation, dispatch, and
// history append. native selects the result shape: a tool-role message that
// references the structured call, or a synthetic user message for parsed and
// derived calls. done reports that the turn must end with the given reply.
func (c *Controller) runCall(ctx context.Context, call *llm.ToolCall, native bool, cb progress.Callback) (*Reply, bool) {
	exempt := c.registry.BreakerExempt(call.Name)

	if !exempt {
		if allowed, reason := c.breaker.Check(); !allowed {
			c.emit(cb, progress.Event{Kind: progress.KindCircuitBreakerTrip, Reason: reason})
			return c.terminal(&Reply{
				Content:               fmt.Sprintf("I have hit the per-message tool limit (%d calls), so I am stopping here. Ask a follow-up and I will pick it up fresh.", consts.MaxCallsPerTurn),
				IsCircuitBreakerError: true,
			}), true
		}
	}

	schema, ok := c.registry.Get(call.Name)
	if !ok {
		return c.terminal(&Reply{
			Content:         fmt.Sprintf("The model asked for %q, which is not a tool I have.", call.Name),
			IsFunctionError: true,
		}), true
	}

	validation := c.validator.Validate(schema, call.Arguments)
	if !validation.Valid {
		return c.terminal(&Reply{
			Content:         fmt.Sprintf("I could not run %s: %s.", call.Name, validation.Errors[0]),
			IsFunctionError: true,
		}), true
	}

	if !exempt {
		c.breaker.Record()
	}
	c.emit(cb, progress.Event{Kind: progress.KindToolStart, Tool: call.Name})

	result := runWithTimeout(ctx, consts.ToolTimeout, func(callCtx context.Context) *tools.Result {
		return c.dispatcher.Dispatch(callCtx, &tools.Call{ID: call.ID, Name: call.Name, Arguments: validation.Normalized})
	})

	if result.IsAborted() {
		c.emit(cb, progress.Event{Kind: progress.KindToolEnd, Tool: call.Name, Err: result.ErrorMessage()})
		c.appendToolResult(call, native, result)
		if ctx.Err() != nil {
			// User abort: leave the partial results in place, no closing
			// assistant message.
			return &Reply{Status: "error", Role: "assistant", Aborted: true}, true
		}
		return c.terminal(&Reply{
			Content:         fmt.Sprintf("The %s tool timed out after %s, so I cannot answer that part.", call.Name, consts.ToolTimeout),
			IsFunctionError: true,
		}), true
	}

	c.emit(cb, progress.Event{Kind: progress.KindToolEnd, Tool: call.Name, Result: result.Data, Err: result.ErrorMessage()})
	c.appendToolResult(call, native, result)
	return nil, false
}

// appendToolResult records a tool outcome in the shape the active level can
// consume: a tool-role message for native calls, a synthetic user message
// for every parsed or derived call.
func (c *Controller) appendToolResult(call *llm.ToolCall, native bool, result *tools.Result) {
	if native {
		c.session.AddMessage(&llm.Message{
			Role:     "tool",
			Content:  result.JSON(),
			ToolID:   call.ID,
			ToolName: call.Name,
		})
		return
	}
	c.session.AddMessage(&llm.Message{
		Role:      "user",
		Content:   fmt.Sprintf("Result of %s: %s", call.Name, result.JSON()),
		Synthetic: true,
	})
}

func truncationSummary(tr Truncation) string {
	var spent []string
	if tr.DroppedRAG {
		spent = append(spent, "retrieved context")
	}
	if tr.DroppedTools {
		spent = append(spent, "tool definitions")
	}
	if tr.DroppedPairs > 0 {
		spent = append(spent, fmt.Sprintf("%d oldest exchanges", tr.DroppedPairs))
	}
	if len(spent) == 0 {
		return "context budget exceeded, nothing left to trim"
	}
	return "context budget exceeded, dropped " + strings.Join(spent, ", ")
}

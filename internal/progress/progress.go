package progress

// Kind discriminates the progress events a turn can emit.
type Kind string

const (
	// KindThinking signals that a provider request is about to start.
	KindThinking Kind = "thinking"
	// KindToken carries one streamed content chunk.
	KindToken Kind = "token"
	// KindToolStart announces a tool dispatch.
	KindToolStart Kind = "tool_start"
	// KindToolEnd announces tool completion, with Err set on failure.
	KindToolEnd Kind = "tool_end"
	// KindCircuitBreakerTrip reports that the per-turn call cap was hit.
	KindCircuitBreakerTrip Kind = "circuit_breaker_trip"
	// KindTokenUpdate carries the current context-window accounting.
	KindTokenUpdate Kind = "token_update"
	// KindTokenWarning reports a budget warning, possibly after truncation.
	KindTokenWarning Kind = "token_warning"
	// KindFallbackMode reports that the turn runs on a non-native capability level.
	KindFallbackMode Kind = "fallback_mode"
	// KindFallbackParsing reports how many calls the fallback parser recovered.
	KindFallbackParsing Kind = "fallback_parsing"
)

// Event is the typed progress union delivered to the caller. Only the fields
// relevant to Kind are populated.
type Event struct {
	Kind Kind `json:"kind"`

	// Token payload
	Text string `json:"text,omitempty"`

	// Tool payloads
	Tool   string                 `json:"tool,omitempty"`
	Result map[string]interface{} `json:"result,omitempty"`
	Err    string                 `json:"error,omitempty"`

	// Circuit breaker payload
	Reason string `json:"reason,omitempty"`

	// Token accounting payloads
	Total         int    `json:"total,omitempty"`
	ContextWindow int    `json:"context_window,omitempty"`
	UsagePercent  int    `json:"usage_percent,omitempty"`
	Level         string `json:"level,omitempty"`
	Message       string `json:"message,omitempty"`
	Truncated     bool   `json:"truncated,omitempty"`

	// Fallback payloads
	CapabilityLevel int `json:"capability_level,omitempty"`
	Count           int `json:"count,omitempty"`
}

// Callback receives progress events. Events for a turn are delivered serially
// and in causal order; a tool_end never precedes its paired tool_start.
type Callback func(Event) error

// Dispatch sends the event if the callback is set.
func Dispatch(cb Callback, ev Event) error {
	if cb == nil {
		return nil
	}
	return cb(ev)
}

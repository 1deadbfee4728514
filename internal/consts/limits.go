package consts

import "time"

// Tool-calling limits
const (
	// MaxCallsPerTurn caps how many tool calls a single user turn may dispatch
	MaxCallsPerTurn = 5
	// MaxToolRounds bounds the provider round-trips within one turn
	MaxToolRounds = 8
)

// Timeouts for LLM and tool execution
const (
	// LLMTimeoutCloud is the per-request timeout for hosted providers
	LLMTimeoutCloud = 60 * time.Second
	// LLMTimeoutLocal is the per-request timeout for local backends, which
	// are slower to produce the first token
	LLMTimeoutLocal = 5 * time.Minute
	// ToolTimeout is the per-call timeout for tool executors
	ToolTimeout = 10 * time.Second
)

// Token budget thresholds, in percent of the model context window
const (
	// TokenInfoThreshold surfaces an informational warning
	TokenInfoThreshold = 70
	// TokenWarnThreshold surfaces a stronger warning but the request proceeds
	TokenWarnThreshold = 85
	// TokenTruncateThreshold triggers request truncation
	TokenTruncateThreshold = 95
)

// Buffer sizes for streaming scanners
const (
	// BufferSize256KB is 256 kilobytes
	BufferSize256KB = 256 * 1024
	// BufferSize1MB is 1 megabyte
	BufferSize1MB = 1024 * 1024
)

// LLM default configurations
const (
	// DefaultMaxTokens is the default maximum tokens for LLM responses
	DefaultMaxTokens = 1024
	// DefaultContextWindow is the conservative window for unknown models
	DefaultContextWindow = 8192
)

package llm

import (
	"fmt"
	"strings"
	"sync"

	"github.com/rhinos0608/rhythm-chamber-sub002/internal/consts"
)

// CapabilityLevel classifies how a provider/model pair surfaces tool calls.
type CapabilityLevel int

const (
	// LevelNative providers advertise structured tool-call output.
	LevelNative CapabilityLevel = iota + 1
	// LevelPromptInject models follow an explicit <function_call> protocol
	// injected into the system prompt.
	LevelPromptInject
	// LevelRegexParse models ignore tags; calls are recovered from prose.
	LevelRegexParse
	// LevelIntentOnly models will not emit calls; a single probable intent is
	// derived from the user's message instead.
	LevelIntentOnly
)

func (l CapabilityLevel) String() string {
	switch l {
	case LevelNative:
		return "native"
	case LevelPromptInject:
		return "prompt-inject"
	case LevelRegexParse:
		return "regex-parse"
	case LevelIntentOnly:
		return "intent-only"
	default:
		return "unknown"
	}
}

// Capability is the detector's classification of a provider/model pair.
type Capability struct {
	Level  CapabilityLevel
	Reason string
}

// Providers whose APIs expose structured tool calls.
var nativeToolProviders = map[string]bool{
	ProviderOpenAI:    true,
	ProviderAnthropic: true,
}

// Local model families that reliably honor the injected tag protocol but have
// no native tool API worth trusting.
var promptInjectModels = []string{
	"llama-2",
	"llama2",
	"gemma",
	"vicuna",
	"wizardlm",
	"openhermes",
}

// Local model families that ignore the tag protocol; calls must be recovered
// from prose.
var regexParseModels = []string{
	"phi-2",
	"phi2",
	"stablelm",
	"orca-mini",
}

// Models too small to emit calls at all.
var intentOnlyModels = []string{
	"tinyllama",
	"tinydolphin",
	"qwen:0.5b",
	"smollm",
}

// Ollama-served families with a dependable native tool API.
var ollamaNativeModels = []string{
	"llama3.1",
	"llama-3.1",
	"llama3.2",
	"llama3.3",
	"qwen2.5",
	"qwen3",
	"mistral-nemo",
	"mistral-small",
	"devstral",
	"command-r",
	"firefunction",
}

// DetectCapability classifies the provider/model pair into a tool-calling
// capability level. The detector is pure; it never probes the network.
// Unknown pairs default to native and degrade on observed failure.
func DetectCapability(provider, model string) Capability {
	p := strings.ToLower(strings.TrimSpace(provider))
	m := strings.ToLower(strings.TrimSpace(model))

	if nativeToolProviders[p] {
		if !SupportsToolCalling(m) {
			return Capability{Level: LevelPromptInject, Reason: fmt.Sprintf("%s model %q has no tool endpoint", p, model)}
		}
		return Capability{Level: LevelNative, Reason: fmt.Sprintf("provider %s advertises structured tool calls", p)}
	}

	if containsAny(m, intentOnlyModels...) {
		return Capability{Level: LevelIntentOnly, Reason: fmt.Sprintf("model %q is known not to emit tool calls", model)}
	}
	if containsAny(m, regexParseModels...) {
		return Capability{Level: LevelRegexParse, Reason: fmt.Sprintf("model %q ignores the tag protocol", model)}
	}
	if containsAny(m, promptInjectModels...) {
		return Capability{Level: LevelPromptInject, Reason: fmt.Sprintf("model %q follows the injected protocol", model)}
	}

	if p == ProviderOllama || p == ProviderOpenAICompatible {
		if containsAny(m, ollamaNativeModels...) {
			return Capability{Level: LevelNative, Reason: fmt.Sprintf("local model %q has a dependable tool API", model)}
		}
		// Unknown local models get the benefit of the doubt once.
		return Capability{Level: LevelNative, Reason: fmt.Sprintf("unknown local model %q, assuming native until a parse failure", model)}
	}

	return Capability{Level: LevelNative, Reason: fmt.Sprintf("unknown provider %q, assuming native until a parse failure", provider)}
}

// CapabilityMemory records observed tool-calling failures across turns so
// that an optimistic native classification can degrade to prompt injection.
type CapabilityMemory struct {
	mu      sync.Mutex
	demoted map[string]string // provider/model -> reason
}

// NewCapabilityMemory creates an empty degradation memory.
func NewCapabilityMemory() *CapabilityMemory {
	return &CapabilityMemory{demoted: make(map[string]string)}
}

func capabilityKey(provider, model string) string {
	return strings.ToLower(strings.TrimSpace(provider)) + "/" + strings.ToLower(strings.TrimSpace(model))
}

// NoteParseFailure records that a native-classified pair produced a reply the
// tool-call round-trip could not parse. Subsequent turns classify it one
// level down.
func (m *CapabilityMemory) NoteParseFailure(provider, model, reason string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.demoted[capabilityKey(provider, model)] = reason
}

// Resolve applies recorded degradations on top of the static table.
func (m *CapabilityMemory) Resolve(provider, model string) Capability {
	cap := DetectCapability(provider, model)

	m.mu.Lock()
	reason, demoted := m.demoted[capabilityKey(provider, model)]
	m.mu.Unlock()

	if demoted && cap.Level == LevelNative {
		return Capability{Level: LevelPromptInject, Reason: "degraded after observed failure: " + reason}
	}
	return cap
}

// SupportsToolCalling detects if a hosted model supports tool/function calling.
func SupportsToolCalling(modelID string) bool {
	id := strings.ToLower(strings.TrimSpace(modelID))

	exclusions := []string{
		"gpt-3.5-turbo-0301",
		"gpt-4-0314",
		"gpt-4-vision",
		"audio-preview",
		"realtime",
		"claude-1",
		"claude-instant",
	}
	for _, excl := range exclusions {
		if strings.Contains(id, excl) {
			return false
		}
	}
	return true
}

type windowEntry struct {
	pattern string
	window  int
}

// Longest-prefix-wins would be fragile with marketing names; first match in
// order is intentional, most specific patterns first.
var contextWindows = []windowEntry{
	{"gpt-5", 400000},
	{"gpt-4.1", 1000000},
	{"gpt-4o", 128000},
	{"gpt-4-turbo", 128000},
	{"gpt-4-32k", 32768},
	{"gpt-4", 8192},
	{"gpt-3.5-turbo-16k", 16384},
	{"gpt-3.5", 4096},
	{"o3", 200000},
	{"o1", 200000},
	{"claude", 200000},
	{"llama-3.1", 131072},
	{"llama3.1", 131072},
	{"llama3.2", 131072},
	{"llama3", 8192},
	{"qwen2.5", 32768},
	{"qwen3", 32768},
	{"mistral-nemo", 128000},
	{"mistral", 32768},
	{"gemma", 8192},
	{"phi", 4096},
	{"tinyllama", 2048},
}

// DetectContextWindow returns the context window for the model, falling back
// to a conservative default for unknowns.
func DetectContextWindow(modelID string) int {
	id := strings.ToLower(strings.TrimSpace(modelID))
	if id == "" {
		return consts.DefaultContextWindow
	}

	for _, entry := range contextWindows {
		if strings.Contains(id, entry.pattern) {
			return entry.window
		}
	}

	if strings.Contains(id, "32k") {
		return 32768
	}
	if strings.Contains(id, "16k") {
		return 16384
	}

	return consts.DefaultContextWindow
}

func containsAny(s string, substrings ...string) bool {
	for _, sub := range substrings {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}

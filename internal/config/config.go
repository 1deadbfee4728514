package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
)

// Truncation lever identifiers, in the order they may be spent.
const (
	LeverRAG     = "rag"
	LeverTools   = "tools"
	LeverHistory = "history"
)

// Capability override values for the capability_default knob.
const (
	CapabilityAuto         = "auto"
	CapabilityPromptInject = "prompt-inject"
)

// Config represents application configuration.
type Config struct {
	Provider string `json:"provider"`
	Model    string `json:"model"`
	BaseURL  string `json:"base_url,omitempty"`

	// APIKeys maps provider identifiers to keys. Environment variables
	// (OPENAI_API_KEY, ANTHROPIC_API_KEY) take precedence at resolve time.
	APIKeys map[string]string `json:"api_keys,omitempty"`

	Temperature *float64 `json:"temperature,omitempty"`
	TopP        *float64 `json:"top_p,omitempty"`
	MaxTokens   int      `json:"max_tokens,omitempty"`

	// EnabledTools limits the exposed tool catalog. Empty means all tools.
	EnabledTools []string `json:"enabled_tools,omitempty"`

	// TruncationOrder lists the levers spent when the context budget is
	// exceeded. Remaining levers are appended in default order.
	TruncationOrder []string `json:"truncation_order,omitempty"`

	// CapabilityDefault forces a capability floor: "auto" trusts detection,
	// "prompt-inject" never uses native tool APIs.
	CapabilityDefault string `json:"capability_default,omitempty"`

	DatasetPath string `json:"dataset_path,omitempty"`
	ListenAddr  string `json:"listen_addr,omitempty"`

	LogLevel string `json:"log_level"` // debug, info, warn, error, none
	LogPath  string `json:"-"`
}

func defaultConfigDir() string {
	switch runtime.GOOS {
	case "windows":
		if appData := strings.TrimSpace(os.Getenv("APPDATA")); appData != "" {
			return filepath.Join(appData, "rhythm-chamber")
		}
		homeDir, _ := os.UserHomeDir()
		return filepath.Join(homeDir, "AppData", "Roaming", "rhythm-chamber")
	default:
		homeDir, _ := os.UserHomeDir()
		return filepath.Join(homeDir, ".config", "rhythm-chamber")
	}
}

func defaultStateDir() string {
	switch runtime.GOOS {
	case "linux":
		if stateHome := strings.TrimSpace(os.Getenv("XDG_STATE_HOME")); stateHome != "" {
			return filepath.Join(stateHome, "rhythm-chamber")
		}
		homeDir, _ := os.UserHomeDir()
		return filepath.Join(homeDir, ".local", "state", "rhythm-chamber")
	default:
		homeDir, _ := os.UserHomeDir()
		return filepath.Join(homeDir, ".local", "state", "rhythm-chamber")
	}
}

// DefaultConfig returns the configuration used when no file exists.
func DefaultConfig() *Config {
	return &Config{
		Provider:          "ollama",
		Model:             "llama3.1",
		BaseURL:           "http://localhost:11434",
		APIKeys:           make(map[string]string),
		MaxTokens:         1024,
		TruncationOrder:   []string{LeverRAG, LeverTools, LeverHistory},
		CapabilityDefault: CapabilityAuto,
		ListenAddr:        "127.0.0.1:8181",
		LogLevel:          "info",
		LogPath:           filepath.Join(defaultStateDir(), "rhythm-chamber.log"),
	}
}

// Load loads configuration from file, layering it over the defaults. A
// missing file is not an error.
func Load(path string) (*Config, error) {
	config := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return config, nil
		}
		return nil, err
	}

	if err := json.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("could not parse config %s: %w", path, err)
	}

	if config.APIKeys == nil {
		config.APIKeys = make(map[string]string)
	}
	if config.LogLevel == "" {
		config.LogLevel = "info"
	}
	if config.LogPath == "" {
		config.LogPath = filepath.Join(defaultStateDir(), "rhythm-chamber.log")
	}
	if config.CapabilityDefault == "" {
		config.CapabilityDefault = CapabilityAuto
	}
	if config.ListenAddr == "" {
		config.ListenAddr = "127.0.0.1:8181"
	}
	config.TruncationOrder = normalizeTruncationOrder(config.TruncationOrder)

	if err := config.validate(); err != nil {
		return nil, err
	}
	return config, nil
}

// Save saves configuration to file.
func (c *Config) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}

	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// GetConfigPath returns the default config path.
func GetConfigPath() string {
	return filepath.Join(defaultConfigDir(), "config.json")
}

// APIKey resolves the key for a provider. Environment variables win over the
// config file so keys need never touch disk.
func (c *Config) APIKey(provider string) string {
	switch strings.ToLower(provider) {
	case "openai":
		if key := os.Getenv("OPENAI_API_KEY"); key != "" {
			return key
		}
	case "anthropic":
		if key := os.Getenv("ANTHROPIC_API_KEY"); key != "" {
			return key
		}
	}
	if c.APIKeys == nil {
		return ""
	}
	return c.APIKeys[strings.ToLower(provider)]
}

func (c *Config) validate() error {
	switch c.CapabilityDefault {
	case CapabilityAuto, CapabilityPromptInject:
	default:
		return fmt.Errorf("invalid capability_default %q (want %q or %q)",
			c.CapabilityDefault, CapabilityAuto, CapabilityPromptInject)
	}
	return nil
}

// normalizeTruncationOrder drops unknown or duplicate levers and appends any
// missing ones in default order, so every lever is always reachable.
func normalizeTruncationOrder(order []string) []string {
	defaults := []string{LeverRAG, LeverTools, LeverHistory}
	known := map[string]bool{LeverRAG: true, LeverTools: true, LeverHistory: true}

	result := make([]string, 0, len(defaults))
	seen := make(map[string]bool)
	for _, lever := range order {
		lever = strings.ToLower(strings.TrimSpace(lever))
		if !known[lever] || seen[lever] {
			continue
		}
		seen[lever] = true
		result = append(result, lever)
	}
	for _, lever := range defaults {
		if !seen[lever] {
			result = append(result, lever)
		}
	}
	return result
}

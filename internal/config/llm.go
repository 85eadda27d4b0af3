package config

import "time"

// Supported LLM providers
const (
	ProviderOllama = "ollama"
	ProviderOpenAI = "openai"
	ProviderGemini = "gemini"
)

// LLMConfig holds all model backend configuration
type LLMConfig struct {
	Provider    string  `yaml:"provider" json:"provider"`
	BaseURL     string  `yaml:"base_url" json:"baseUrl"`
	Model       string  `yaml:"model" json:"model"`
	APIKey      string  `yaml:"api_key" json:"-"` // Never serialize
	TimeoutMS   int     `yaml:"timeout_ms" json:"timeoutMs"`
	Temperature float64 `yaml:"temperature" json:"temperature"`
}

// DefaultLLMConfig returns the default backend configuration: a local ollama server
func DefaultLLMConfig() LLMConfig {
	return LLMConfig{
		Provider:    ProviderOllama,
		TimeoutMS:   120000,
		Temperature: 0.8,
	}
}

// Timeout returns the per-call deadline
func (c LLMConfig) Timeout() time.Duration {
	if c.TimeoutMS <= 0 {
		return 120 * time.Second
	}
	return time.Duration(c.TimeoutMS) * time.Millisecond
}

// ResolvedBaseURL returns the configured base URL or the provider's default
func (c LLMConfig) ResolvedBaseURL() string {
	if c.BaseURL != "" {
		return c.BaseURL
	}
	if c.Provider == ProviderOllama {
		return "http://localhost:11434"
	}
	return ""
}

// ResolvedModel returns the configured model or the provider's default
func (c LLMConfig) ResolvedModel() string {
	if c.Model != "" {
		return c.Model
	}
	switch c.Provider {
	case ProviderOpenAI:
		return "gpt-4o-mini"
	case ProviderGemini:
		return "gemini-2.0-flash"
	default:
		return "llama3.1"
	}
}

// IsRemote returns true for hosted providers that need an API key
func (c LLMConfig) IsRemote() bool {
	return c.Provider == ProviderOpenAI || c.Provider == ProviderGemini
}

// GenerationConfig tunes the synthesis engines
type GenerationConfig struct {
	AgentBatchSize      int    `yaml:"agent_batch_size" json:"agentBatchSize"`
	PollBatchSize       int    `yaml:"poll_batch_size" json:"pollBatchSize"`
	ReactionBatchSize   int    `yaml:"reaction_batch_size" json:"reactionBatchSize"`
	ReactionMaxAttempts int    `yaml:"reaction_max_attempts" json:"reactionMaxAttempts"`
	ReactionBackoffMS   int    `yaml:"reaction_backoff_ms" json:"reactionBackoffMs"`
	NameWindow          int    `yaml:"name_window" json:"nameWindow"`
	ReactionMode        string `yaml:"reaction_mode" json:"reactionMode"`
}

// DefaultGenerationConfig returns the tuned defaults
func DefaultGenerationConfig() GenerationConfig {
	return GenerationConfig{
		AgentBatchSize:      5,
		PollBatchSize:       5,
		ReactionBatchSize:   5,
		ReactionMaxAttempts: 3,
		ReactionBackoffMS:   500,
		NameWindow:          60,
		ReactionMode:        "single",
	}
}

// ReactionBackoff returns the base backoff unit between reaction attempts
func (c GenerationConfig) ReactionBackoff() time.Duration {
	return time.Duration(c.ReactionBackoffMS) * time.Millisecond
}

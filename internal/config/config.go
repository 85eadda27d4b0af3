package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config is the full process configuration
type Config struct {
	Port        string `yaml:"port" json:"port"`
	LogLevel    string `yaml:"log_level" json:"logLevel"`
	LogJSON     bool   `yaml:"log_json" json:"logJson"`
	MongoURI    string `yaml:"mongo_uri" json:"-"`
	MongoDB     string `yaml:"mongo_db" json:"mongoDb"`
	RedisURI    string `yaml:"redis_uri" json:"-"`
	NATSURL     string `yaml:"nats_url" json:"natsUrl"`
	FallbackDir string `yaml:"fallback_dir" json:"fallbackDir"`

	LLM        LLMConfig        `yaml:"llm" json:"llm"`
	Generation GenerationConfig `yaml:"generation" json:"generation"`
}

// Default returns the built-in defaults without reading the environment
func Default() *Config {
	return &Config{
		Port:        "8080",
		LogLevel:    "info",
		MongoURI:    "mongodb://localhost:27017",
		MongoDB:     "popsim",
		RedisURI:    "localhost:6379",
		FallbackDir: "./data/fallback",
		LLM:         DefaultLLMConfig(),
		Generation:  DefaultGenerationConfig(),
	}
}

// Load builds the configuration: defaults, then the optional YAML file, then
// any environment variable that is explicitly set. An empty path falls back to
// POPSIM_CONFIG.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path == "" {
		path = os.Getenv("POPSIM_CONFIG")
	}
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	cfg.applyEnv()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() {
	c.Port = getEnvOrDefault("PORT", c.Port)
	c.LogLevel = getEnvOrDefault("LOG_LEVEL", c.LogLevel)
	c.LogJSON = getEnvBool("LOG_JSON", c.LogJSON)
	c.MongoURI = getEnvOrDefault("MONGO_URI", c.MongoURI)
	c.MongoDB = getEnvOrDefault("MONGO_DB", c.MongoDB)
	c.RedisURI = strings.TrimPrefix(getEnvOrDefault("REDIS_URI", c.RedisURI), "redis://")
	c.NATSURL = getEnvOrDefault("NATS_URL", c.NATSURL)
	c.FallbackDir = getEnvOrDefault("FALLBACK_DIR", c.FallbackDir)

	c.LLM.Provider = strings.ToLower(getEnvOrDefault("LLM_PROVIDER", c.LLM.Provider))
	c.LLM.BaseURL = getEnvOrDefault("LLM_BASE_URL", c.LLM.BaseURL)
	c.LLM.Model = getEnvOrDefault("LLM_MODEL", c.LLM.Model)
	c.LLM.APIKey = getEnvOrDefault("LLM_API_KEY", c.LLM.APIKey)
	c.LLM.TimeoutMS = getEnvInt("LLM_TIMEOUT_MS", c.LLM.TimeoutMS)

	c.Generation.ReactionMode = getEnvOrDefault("REACTION_MODE", c.Generation.ReactionMode)
}

// Validate rejects configurations the server cannot start with
func (c *Config) Validate() error {
	switch c.LLM.Provider {
	case ProviderOllama, ProviderOpenAI, ProviderGemini:
	default:
		return fmt.Errorf("unknown LLM provider %q (want ollama, openai or gemini)", c.LLM.Provider)
	}
	switch c.Generation.ReactionMode {
	case "single", "batched":
	default:
		return fmt.Errorf("unknown reaction mode %q (want single or batched)", c.Generation.ReactionMode)
	}
	if c.Generation.AgentBatchSize <= 0 || c.Generation.ReactionMaxAttempts <= 0 {
		return fmt.Errorf("generation batch size and attempts must be positive")
	}
	return nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return defaultValue
}

package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	for _, k := range []string{"POPSIM_CONFIG", "PORT", "MONGO_DB", "LLM_PROVIDER", "LLM_BASE_URL", "REACTION_MODE"} {
		t.Setenv(k, "")
	}

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, "popsim", cfg.MongoDB)
	assert.Equal(t, ProviderOllama, cfg.LLM.Provider)
	assert.Equal(t, "http://localhost:11434", cfg.LLM.ResolvedBaseURL())
	assert.Equal(t, 5, cfg.Generation.AgentBatchSize)
	assert.Equal(t, 3, cfg.Generation.ReactionMaxAttempts)
	assert.Equal(t, 60, cfg.Generation.NameWindow)
	assert.Equal(t, int64(500), cfg.Generation.ReactionBackoff().Milliseconds())
}

func TestLoadYAMLThenEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "popsim.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
port: "9000"
llm:
  provider: openai
  model: gpt-4o
generation:
  agent_batch_size: 8
  reaction_mode: batched
`), 0o600))

	for _, k := range []string{"PORT", "LLM_PROVIDER", "REACTION_MODE"} {
		t.Setenv(k, "")
	}
	t.Setenv("LLM_MODEL", "gpt-4.1-mini")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "9000", cfg.Port)
	assert.Equal(t, ProviderOpenAI, cfg.LLM.Provider)
	assert.Equal(t, "gpt-4.1-mini", cfg.LLM.Model, "explicit env wins over file")
	assert.Equal(t, 8, cfg.Generation.AgentBatchSize)
	assert.Equal(t, "batched", cfg.Generation.ReactionMode)
	assert.Equal(t, 3, cfg.Generation.ReactionMaxAttempts, "unset file keys keep defaults")
}

func TestLoadRejectsUnknownProvider(t *testing.T) {
	t.Setenv("POPSIM_CONFIG", "")
	t.Setenv("LLM_PROVIDER", "carrier-pigeon")

	_, err := Load("")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "carrier-pigeon")
}

func TestResolvedModelPerProvider(t *testing.T) {
	assert.Equal(t, "llama3.1", LLMConfig{Provider: ProviderOllama}.ResolvedModel())
	assert.Equal(t, "gpt-4o-mini", LLMConfig{Provider: ProviderOpenAI}.ResolvedModel())
	assert.Equal(t, "gemini-2.0-flash", LLMConfig{Provider: ProviderGemini}.ResolvedModel())
	assert.Equal(t, "mistral", LLMConfig{Provider: ProviderOllama, Model: "mistral"}.ResolvedModel())
}

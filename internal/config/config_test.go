package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaults(t *testing.T) {
	cfg := Default()

	assert.Equal(t, "gpt-4o", cfg.LLM.ChatModel)
	assert.Equal(t, "bolt://localhost:7687", cfg.Neo4j.URI)
	assert.Equal(t, 10, cfg.Agent.HistoryLimit)
	assert.Equal(t, 5, cfg.Agent.ContextResults)
	assert.Equal(t, 10*time.Second, cfg.Agent.MemoryTimeout)
	assert.Equal(t, "Memento", cfg.Agent.Name)
}

func TestLoadFrom(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	data := `
llm:
  api_key: file-key
  chat_model: gpt-4o-mini
  max_tokens: 512
agent:
  name: TestBot
  history_limit: 4
`
	require.NoError(t, os.WriteFile(path, []byte(data), 0o600))

	cfg, err := LoadFrom(path)
	require.NoError(t, err)

	assert.Equal(t, "file-key", cfg.LLM.APIKey)
	assert.Equal(t, "gpt-4o-mini", cfg.LLM.ChatModel)
	assert.Equal(t, 512, cfg.LLM.MaxTokens)
	assert.Equal(t, "TestBot", cfg.Agent.Name)
	assert.Equal(t, 4, cfg.Agent.HistoryLimit)
	// Untouched sections keep defaults.
	assert.Equal(t, "neo4j", cfg.Neo4j.Username)
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "env-key")
	t.Setenv("OPENAI_BASE_URL", "https://azure.example.com/openai/v1")
	t.Setenv("NEO4J_PASSWORD", "s3cret")
	t.Setenv("CONVERSATION_HISTORY_LIMIT", "7")
	t.Setenv("AGENT_NAME", "Env Agent")

	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("llm:\n  api_key: file-key\n"), 0o600))

	cfg, err := LoadFrom(path)
	require.NoError(t, err)

	// Environment wins over file.
	assert.Equal(t, "env-key", cfg.LLM.APIKey)
	assert.Equal(t, "https://azure.example.com/openai/v1", cfg.LLM.BaseURL)
	assert.Equal(t, "s3cret", cfg.Neo4j.Password)
	assert.Equal(t, 7, cfg.Agent.HistoryLimit)
	assert.Equal(t, "Env Agent", cfg.Agent.Name)
}

func TestEnvOverrideIgnoresBadInt(t *testing.T) {
	t.Setenv("CONVERSATION_HISTORY_LIMIT", "not-a-number")

	cfg := Default()
	cfg.applyEnv()
	assert.Equal(t, 10, cfg.Agent.HistoryLimit)
}

func TestValidate(t *testing.T) {
	cfg := Default()
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "llm.api_key")

	cfg.LLM.APIKey = "k"
	assert.NoError(t, cfg.Validate())

	cfg.Neo4j.URI = ""
	err = cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "neo4j.uri")
}

// Package config loads memento configuration from config.yaml with
// environment-variable overrides. A .env file, when present, is loaded by the
// entrypoint before this package reads the environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// LLMConfig holds settings for the OpenAI-compatible chat endpoint. An empty
// BaseURL selects the default public endpoint; Azure and other compatible
// gateways are configured purely through BaseURL rather than a separate
// client implementation.
type LLMConfig struct {
	APIKey           string `yaml:"api_key"`
	BaseURL          string `yaml:"base_url,omitempty"`
	ChatModel        string `yaml:"chat_model"`
	EmbeddingModel   string `yaml:"embedding_model,omitempty"`
	EmbeddingBaseURL string `yaml:"embedding_base_url,omitempty"`
	MaxTokens        int    `yaml:"max_tokens"`
}

// Neo4jConfig holds the knowledge-graph connection settings.
type Neo4jConfig struct {
	URI      string `yaml:"uri"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// SearchConfig holds web-search provider settings.
type SearchConfig struct {
	APIKey     string `yaml:"api_key"`
	BaseURL    string `yaml:"base_url,omitempty"`
	MaxResults int    `yaml:"max_results"`
}

// AgentConfig holds conversation-level settings.
type AgentConfig struct {
	Name           string        `yaml:"name"`
	HistoryLimit   int           `yaml:"history_limit"`   // trailing turns included in model requests
	ContextResults int           `yaml:"context_results"` // memory results per context query
	MemoryTimeout  time.Duration `yaml:"memory_timeout"`  // budget for context retrieval
	ToolTimeout    time.Duration `yaml:"tool_timeout"`    // budget per tool call
}

// Config is the root configuration for the memento agent.
type Config struct {
	LLM      LLMConfig    `yaml:"llm"`
	Neo4j    Neo4jConfig  `yaml:"neo4j"`
	Search   SearchConfig `yaml:"search"`
	Agent    AgentConfig  `yaml:"agent"`
	DataDir  string       `yaml:"data_dir"`
	LogLevel string       `yaml:"log_level"`
}

// Default returns a config with sensible defaults.
func Default() *Config {
	return &Config{
		LLM: LLMConfig{
			ChatModel:      "gpt-4o",
			EmbeddingModel: "text-embedding-3-small",
			MaxTokens:      1000,
		},
		Neo4j: Neo4jConfig{
			URI:      "bolt://localhost:7687",
			Username: "neo4j",
			Password: "password",
		},
		Search: SearchConfig{
			MaxResults: 5,
		},
		Agent: AgentConfig{
			Name:           "Memento",
			HistoryLimit:   10,
			ContextResults: 5,
			MemoryTimeout:  10 * time.Second,
			ToolTimeout:    30 * time.Second,
		},
		DataDir:  defaultDataDir(),
		LogLevel: "info",
	}
}

func defaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".memento"
	}
	return filepath.Join(home, ".memento")
}

// Load reads config.yaml from the data directory (when present), then applies
// environment overrides. A missing config file is not an error.
func Load() (*Config, error) {
	cfg := Default()

	path := filepath.Join(cfg.DataDir, "config.yaml")
	data, err := os.ReadFile(path)
	if err == nil {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
	} else if !os.IsNotExist(err) {
		return nil, err
	}

	cfg.applyEnv()
	return cfg, nil
}

// LoadFrom reads config from an explicit path and applies environment overrides.
func LoadFrom(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}

	cfg.applyEnv()
	return cfg, nil
}

// applyEnv overrides config values from the environment. Environment wins over
// the config file so deployments can inject secrets without editing YAML.
func (c *Config) applyEnv() {
	setString(&c.LLM.APIKey, "OPENAI_API_KEY")
	setString(&c.LLM.BaseURL, "OPENAI_BASE_URL")
	setString(&c.LLM.ChatModel, "MEMENTO_CHAT_MODEL")
	setString(&c.LLM.EmbeddingModel, "MEMENTO_EMBEDDING_MODEL")
	setString(&c.LLM.EmbeddingBaseURL, "MEMENTO_EMBEDDING_BASE_URL")

	setString(&c.Neo4j.URI, "NEO4J_URI")
	setString(&c.Neo4j.Username, "NEO4J_USER")
	setString(&c.Neo4j.Password, "NEO4J_PASSWORD")

	setString(&c.Search.APIKey, "TAVILY_API_KEY")

	setString(&c.Agent.Name, "AGENT_NAME")
	setInt(&c.Agent.HistoryLimit, "CONVERSATION_HISTORY_LIMIT")

	setString(&c.DataDir, "MEMENTO_DATA_DIR")
	setString(&c.LogLevel, "MEMENTO_LOG_LEVEL")
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			*dst = n
		}
	}
}

// Validate reports missing required settings. The search API key is optional:
// without it the web_search tool degrades, it does not block startup.
func (c *Config) Validate() error {
	var missing []string
	if c.LLM.APIKey == "" {
		missing = append(missing, "llm.api_key (OPENAI_API_KEY)")
	}
	if c.LLM.ChatModel == "" {
		missing = append(missing, "llm.chat_model")
	}
	if c.Neo4j.URI == "" {
		missing = append(missing, "neo4j.uri (NEO4J_URI)")
	}
	if len(missing) > 0 {
		return errors.New("missing required configuration: " + strings.Join(missing, ", "))
	}
	return nil
}

// EnsureDataDir creates the data directory if it doesn't exist.
func (c *Config) EnsureDataDir() error {
	return os.MkdirAll(c.DataDir, 0o700)
}

// DBPath returns the path to the session SQLite database.
func (c *Config) DBPath() string {
	return filepath.Join(c.DataDir, "memento.db")
}

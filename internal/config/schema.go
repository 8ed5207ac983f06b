// Package config defines the configuration schema for harborseal.
//
// JSON keys use camelCase. Everything lives in a single file under
// ~/.harborseal/config.json; missing sections fall back to defaults.
package config

import (
	"os"
	"path/filepath"
)

// ModelConfig holds the model-service endpoint and generation settings.
type ModelConfig struct {
	APIKey      string  `json:"apiKey,omitempty"`
	APIBase     string  `json:"apiBase"`
	ChatModel   string  `json:"chatModel"`
	EmbedModel  string  `json:"embedModel"`
	MaxTokens   int     `json:"maxTokens"`
	Temperature float64 `json:"temperature"`
}

func defaultModelConfig() ModelConfig {
	return ModelConfig{
		APIBase:     "https://api.openai.com/v1",
		ChatModel:   "gpt-4o-mini",
		EmbedModel:  "text-embedding-3-small",
		MaxTokens:   1000,
		Temperature: 0.7,
	}
}

// ProviderSpec describes one tool provider to connect at startup. Target is
// a launchable (script path or executable) or a remote URL; the launch layer
// classifies it.
type ProviderSpec struct {
	Target  string            `json:"target"`
	Args    []string          `json:"args,omitempty"`
	Env     map[string]string `json:"env,omitempty"`
	Headers map[string]string `json:"headers,omitempty"`
}

// AgentConfig holds dispatch-loop settings.
type AgentConfig struct {
	SystemPrompt     string `json:"systemPrompt,omitempty"`
	InvokeTimeoutMs  int    `json:"invokeTimeoutMs"`
	ConnectTimeoutMs int    `json:"connectTimeoutMs"`
}

func defaultAgentConfig() AgentConfig {
	return AgentConfig{
		InvokeTimeoutMs:  60000,
		ConnectTimeoutMs: 15000,
	}
}

// IndexConfig holds document-index settings for the retrieval provider.
type IndexConfig struct {
	Path         string `json:"path"`
	DocsDir      string `json:"docsDir"`
	ChunkSize    int    `json:"chunkSize"`
	ChunkOverlap int    `json:"chunkOverlap"`
	TopK         int    `json:"topK"`
	Watch        bool   `json:"watch"`
	Resync       string `json:"resync,omitempty"` // cron spec; empty disables periodic resync
}

func defaultIndexConfig() IndexConfig {
	return IndexConfig{
		Path:         "~/.harborseal/index.db",
		DocsDir:      "~/.harborseal/docs",
		ChunkSize:    512,
		ChunkOverlap: 50,
		TopK:         5,
		Watch:        true,
		Resync:       "@every 10m",
	}
}

// Config is the root configuration object, loaded from ~/.harborseal/config.json.
type Config struct {
	Model     ModelConfig             `json:"model"`
	Agent     AgentConfig             `json:"agent"`
	Index     IndexConfig             `json:"index"`
	Providers map[string]ProviderSpec `json:"providers"`
}

// DefaultConfig returns a Config populated with all default values,
// including the bundled retrieval provider.
func DefaultConfig() Config {
	return Config{
		Model: defaultModelConfig(),
		Agent: defaultAgentConfig(),
		Index: defaultIndexConfig(),
		Providers: map[string]ProviderSpec{
			"rag": {Target: "harborseal", Args: []string{"rag-serve"}},
		},
	}
}

// IndexPath returns the expanded absolute path to the index database.
func (c *Config) IndexPath() string {
	return expandHome(c.Index.Path, "~/.harborseal/index.db")
}

// DocsPath returns the expanded absolute path to the watched documents folder.
func (c *Config) DocsPath() string {
	return expandHome(c.Index.DocsDir, "~/.harborseal/docs")
}

func expandHome(path, fallback string) string {
	if path == "" {
		path = fallback
	}
	if len(path) >= 2 && path[:2] == "~/" {
		home, err := os.UserHomeDir()
		if err == nil {
			path = filepath.Join(home, path[2:])
		}
	}
	return path
}

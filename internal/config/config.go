package config

import "fmt"

// ConfigError represents a configuration error.
type ConfigError struct {
	Message string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("config: %s", e.Message)
}

// Config is the root configuration for colloquium.
type Config struct {
	Server   ServerConfig   `yaml:"server,omitempty"`
	Provider ProviderConfig `yaml:"provider,omitempty"`
	Session  SessionConfig  `yaml:"session,omitempty"`
	Sources  SourcesConfig  `yaml:"sources,omitempty"`
	Database DatabaseConfig `yaml:"database,omitempty"`
	Logging  LoggingConfig  `yaml:"logging,omitempty"`
}

// ServerConfig controls the HTTP/WebSocket server.
type ServerConfig struct {
	Bind string `yaml:"bind,omitempty"` // "loopback" | "lan" | "custom"
	Host string `yaml:"host,omitempty"` // used when bind: custom
	Port int    `yaml:"port,omitempty"`
}

// ProviderConfig selects and configures the model provider.
type ProviderConfig struct {
	Name      string `yaml:"name,omitempty"` // "anthropic" | "mock"
	APIKey    string `yaml:"apiKey,omitempty"`
	Model     string `yaml:"model,omitempty"`
	Endpoint  string `yaml:"endpoint,omitempty"`
	MaxTokens int    `yaml:"maxTokens,omitempty"`
}

// SessionConfig tunes the conversation engine.
type SessionConfig struct {
	TurnTimeoutSeconds   int `yaml:"turnTimeoutSeconds,omitempty"`
	ReviewTimeoutSeconds int `yaml:"reviewTimeoutSeconds,omitempty"`
	MaxLearnerTurns      int `yaml:"maxLearnerTurns,omitempty"`
}

// SourcesConfig tunes the scene material lookup cache.
type SourcesConfig struct {
	CacheSize       int `yaml:"cacheSize,omitempty"`
	CacheTTLSeconds int `yaml:"cacheTtlSeconds,omitempty"`
}

// DatabaseConfig points at the SQLite file. An empty path disables
// persistence: sessions stay in memory and export is unavailable.
type DatabaseConfig struct {
	Path string `yaml:"path,omitempty"`
}

// LoggingConfig controls log output.
type LoggingConfig struct {
	Level string `yaml:"level,omitempty"`
}

// Defaults returns a Config with sensible defaults applied.
func Defaults() Config {
	return Config{
		Server: ServerConfig{
			Bind: "loopback",
			Port: 8732,
		},
		Provider: ProviderConfig{
			Name:      "anthropic",
			Model:     "claude-sonnet-4-5",
			MaxTokens: 1024,
		},
		Session: SessionConfig{
			TurnTimeoutSeconds:   60,
			ReviewTimeoutSeconds: 90,
		},
		Sources: SourcesConfig{
			CacheSize:       64,
			CacheTTLSeconds: 300,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// ListenAddr computes the listen address from the server section.
func (c ServerConfig) ListenAddr() string {
	switch c.Bind {
	case "lan":
		return fmt.Sprintf("0.0.0.0:%d", c.Port)
	case "custom":
		host := c.Host
		if host == "" {
			host = "0.0.0.0"
		}
		return fmt.Sprintf("%s:%d", host, c.Port)
	default:
		return fmt.Sprintf("127.0.0.1:%d", c.Port)
	}
}

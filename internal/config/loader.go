package config

import (
	"os"
	"regexp"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// envVarPattern matches ${VAR_NAME} patterns in strings.
var envVarPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)\}`)

// expandEnvVars replaces ${VAR} patterns with environment variable values.
// Unset variables are left unchanged.
func expandEnvVars(s string) string {
	return envVarPattern.ReplaceAllStringFunc(s, func(match string) string {
		varName := match[2 : len(match)-1]
		if val, ok := os.LookupEnv(varName); ok {
			return val
		}
		return match
	})
}

// expandSensitiveFields processes environment variable references in
// credential fields so API keys can be stored as ${ENV_VAR}.
func expandSensitiveFields(cfg *Config) {
	cfg.Provider.APIKey = expandEnvVars(cfg.Provider.APIKey)
}

// Load reads the config file, applies environment overrides, and returns
// a merged Config. Missing files produce defaults only.
func Load(path string) (Config, error) {
	cfg := Defaults()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			applyEnvOverrides(&cfg)
			return cfg, nil
		}
		return cfg, err
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, &ConfigError{Message: "failed to parse config: " + err.Error()}
	}

	applyDefaults(&cfg)
	applyEnvOverrides(&cfg)
	expandSensitiveFields(&cfg)
	return cfg, nil
}

// applyDefaults fills zero-value fields with sensible defaults.
func applyDefaults(cfg *Config) {
	if cfg.Server.Bind == "" {
		cfg.Server.Bind = "loopback"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8732
	}
	if cfg.Provider.Name == "" {
		cfg.Provider.Name = "anthropic"
	}
	if cfg.Provider.Model == "" {
		cfg.Provider.Model = "claude-sonnet-4-5"
	}
	if cfg.Provider.MaxTokens == 0 {
		cfg.Provider.MaxTokens = 1024
	}
	if cfg.Session.TurnTimeoutSeconds == 0 {
		cfg.Session.TurnTimeoutSeconds = 60
	}
	if cfg.Session.ReviewTimeoutSeconds == 0 {
		cfg.Session.ReviewTimeoutSeconds = 90
	}
	if cfg.Sources.CacheSize == 0 {
		cfg.Sources.CacheSize = 64
	}
	if cfg.Sources.CacheTTLSeconds == 0 {
		cfg.Sources.CacheTTLSeconds = 300
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
}

// applyEnvOverrides reads COLLOQUIUM_* environment variables and overrides config values.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("COLLOQUIUM_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}
	if v := os.Getenv("COLLOQUIUM_BIND"); v != "" {
		cfg.Server.Bind = v
	}
	if v := os.Getenv("COLLOQUIUM_PROVIDER"); v != "" {
		cfg.Provider.Name = v
	}
	if v := os.Getenv("COLLOQUIUM_API_KEY"); v != "" {
		cfg.Provider.APIKey = v
	}
	if v := os.Getenv("COLLOQUIUM_DB_PATH"); v != "" {
		cfg.Database.Path = v
	}
	if v := os.Getenv("COLLOQUIUM_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = strings.ToLower(v)
	}
}

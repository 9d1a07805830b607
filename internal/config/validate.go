package config

import (
	"fmt"
	"slices"
)

// ValidationIssue describes a problem with a config value.
type ValidationIssue struct {
	Path    string
	Message string
}

func (v ValidationIssue) String() string {
	return fmt.Sprintf("%s: %s", v.Path, v.Message)
}

// Validate checks a Config for issues. Returns nil if valid.
func Validate(cfg *Config) []ValidationIssue {
	var issues []ValidationIssue

	if cfg.Server.Port < 0 || cfg.Server.Port > 65535 {
		issues = append(issues, ValidationIssue{
			Path:    "server.port",
			Message: fmt.Sprintf("port must be 0-65535, got %d", cfg.Server.Port),
		})
	}

	validBinds := []string{"loopback", "lan", "custom"}
	if cfg.Server.Bind != "" && !slices.Contains(validBinds, cfg.Server.Bind) {
		issues = append(issues, ValidationIssue{
			Path:    "server.bind",
			Message: fmt.Sprintf("must be one of %v, got %q", validBinds, cfg.Server.Bind),
		})
	}

	validProviders := []string{"anthropic", "mock"}
	if cfg.Provider.Name != "" && !slices.Contains(validProviders, cfg.Provider.Name) {
		issues = append(issues, ValidationIssue{
			Path:    "provider.name",
			Message: fmt.Sprintf("must be one of %v, got %q", validProviders, cfg.Provider.Name),
		})
	}

	if cfg.Provider.MaxTokens < 0 {
		issues = append(issues, ValidationIssue{
			Path:    "provider.maxTokens",
			Message: fmt.Sprintf("must be non-negative, got %d", cfg.Provider.MaxTokens),
		})
	}

	if cfg.Session.TurnTimeoutSeconds < 0 {
		issues = append(issues, ValidationIssue{
			Path:    "session.turnTimeoutSeconds",
			Message: fmt.Sprintf("must be non-negative, got %d", cfg.Session.TurnTimeoutSeconds),
		})
	}
	if cfg.Session.ReviewTimeoutSeconds < 0 {
		issues = append(issues, ValidationIssue{
			Path:    "session.reviewTimeoutSeconds",
			Message: fmt.Sprintf("must be non-negative, got %d", cfg.Session.ReviewTimeoutSeconds),
		})
	}
	if cfg.Session.MaxLearnerTurns < 0 {
		issues = append(issues, ValidationIssue{
			Path:    "session.maxLearnerTurns",
			Message: fmt.Sprintf("must be non-negative, got %d", cfg.Session.MaxLearnerTurns),
		})
	}

	if cfg.Sources.CacheSize < 0 {
		issues = append(issues, ValidationIssue{
			Path:    "sources.cacheSize",
			Message: fmt.Sprintf("must be non-negative, got %d", cfg.Sources.CacheSize),
		})
	}

	validLogLevels := []string{"silent", "fatal", "error", "warn", "info", "debug", "trace"}
	if cfg.Logging.Level != "" && !slices.Contains(validLogLevels, cfg.Logging.Level) {
		issues = append(issues, ValidationIssue{
			Path:    "logging.level",
			Message: fmt.Sprintf("must be one of %v, got %q", validLogLevels, cfg.Logging.Level),
		})
	}

	return issues
}

package config

import (
	"fmt"
	"slices"
	"strings"
)

// ValidationIssue describes a problem with a config value.
type ValidationIssue struct {
	Path    string
	Message string
}

func (v ValidationIssue) String() string {
	return fmt.Sprintf("%s: %s", v.Path, v.Message)
}

// KnownTools lists every tool name the agent can register.
var KnownTools = append(append([]string(nil), DefaultTools...), "profile-aggregator")

// Validate checks a Config for issues. Returns nil if valid.
func Validate(cfg *Config) []ValidationIssue {
	var issues []ValidationIssue
	add := func(path, format string, args ...any) {
		issues = append(issues, ValidationIssue{Path: path, Message: fmt.Sprintf(format, args...)})
	}

	if cfg.Gateway.Port < 0 || cfg.Gateway.Port > 65535 {
		add("gateway.port", "port must be 0-65535, got %d", cfg.Gateway.Port)
	}

	validBinds := []string{"auto", "lan", "loopback", "custom"}
	if cfg.Gateway.Bind != "" && !slices.Contains(validBinds, cfg.Gateway.Bind) {
		add("gateway.bind", "must be one of %v, got %q", validBinds, cfg.Gateway.Bind)
	}
	if cfg.Gateway.Bind == "custom" && cfg.Gateway.CustomBindHost == "" {
		add("gateway.customBindHost", "required when bind is custom")
	}
	if cfg.Gateway.TLS.Enabled && (cfg.Gateway.TLS.CertPath == "" || cfg.Gateway.TLS.KeyPath == "") {
		add("gateway.tls", "certPath and keyPath are required when TLS is enabled")
	}

	for principal, key := range cfg.Auth.Keys {
		if key == "" {
			add("auth.keys."+principal, "key is empty")
		}
	}

	for _, ref := range append([]string{cfg.Models.Reasoning, cfg.Models.Summarizer, cfg.Tools.GitHubRepo.Model}, cfg.Models.Fallbacks...) {
		if ref == "" {
			continue
		}
		if provider, model, ok := strings.Cut(ref, ":"); !ok || provider == "" || model == "" {
			add("models", "model reference %q must be provider:model", ref)
		}
	}
	if cfg.Models.Temperature != nil && (*cfg.Models.Temperature < 0 || *cfg.Models.Temperature > 2) {
		add("models.temperature", "must be between 0 and 2, got %v", *cfg.Models.Temperature)
	}

	if cfg.Agent.MaxSteps < 0 {
		add("agent.maxSteps", "must not be negative")
	}
	if cfg.Agent.SummaryThreshold < 0 {
		add("agent.summaryThreshold", "must not be negative")
	}

	for _, name := range cfg.Tools.Enabled {
		if !slices.Contains(KnownTools, name) {
			add("tools.enabled", "unknown tool %q", name)
		}
	}

	validBackends := []string{"groundx", "local"}
	if !slices.Contains(validBackends, cfg.Retriever.Backend) {
		add("retriever.backend", "must be one of %v, got %q", validBackends, cfg.Retriever.Backend)
	}
	if cfg.Retriever.Backend == "local" && cfg.Knowledge.Path == "" {
		add("knowledge.path", "required when retriever.backend is local")
	}

	validCaches := []string{"memory", "redis", "none"}
	if !slices.Contains(validCaches, cfg.Cache.Backend) {
		add("cache.backend", "must be one of %v, got %q", validCaches, cfg.Cache.Backend)
	}
	if cfg.Cache.Backend == "redis" && cfg.Cache.RedisURL == "" {
		add("cache.redisUrl", "required when cache.backend is redis")
	}

	validLogLevels := []string{"silent", "fatal", "error", "warn", "info", "debug", "trace"}
	if cfg.Logging.Level != "" && !slices.Contains(validLogLevels, cfg.Logging.Level) {
		add("logging.level", "must be one of %v, got %q", validLogLevels, cfg.Logging.Level)
	}
	validFormats := []string{"console", "json"}
	if cfg.Logging.Format != "" && !slices.Contains(validFormats, cfg.Logging.Format) {
		add("logging.format", "must be one of %v, got %q", validFormats, cfg.Logging.Format)
	}

	return issues
}

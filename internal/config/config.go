package config

import (
	"fmt"
	"time"
)

// ConfigError represents a configuration error.
type ConfigError struct {
	Message string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("config: %s", e.Message)
}

// Default tool names, in registration order.
var DefaultTools = []string{
	"github-profile",
	"linkedin-profile",
	"github-repo",
	"context-retriever",
	"weather-data",
}

// Defaults returns a Config with sensible defaults applied.
func Defaults() Config {
	return Config{
		Gateway: GatewayConfig{
			Port:           8000,
			Bind:           "loopback",
			AllowedOrigins: []string{"*"},
			DefaultThread:  "thread-1",
		},
		Auth: AuthConfig{
			Header: "RHYLIIEEE-API-KEY",
		},
		Models: ModelsConfig{
			Reasoning:  "mistral:mistral-medium-latest",
			Summarizer: "gemini:gemini-2.0-flash",
			Fallbacks:  []string{"gemini:gemini-2.0-flash"},
			MaxTokens:  2048,
			Retries:    3,
		},
		Agent: AgentConfig{
			MaxSteps:         12,
			SummaryThreshold: 6,
		},
		Tools: ToolsConfig{
			Enabled: append([]string(nil), DefaultTools...),
			GitHubRepo: GitHubRepoConfig{
				Model: "openrouter:deepseek/deepseek-chat-v3-0324:free",
			},
			HTTP: HTTPConfig{
				Retries: 5,
				Backoff: 200 * time.Millisecond,
				Timeout: 20 * time.Second,
			},
		},
		Retriever: RetrieverConfig{
			Backend: "groundx",
			BaseURL: "https://api.groundx.ai",
			TopK:    10,
		},
		Weather: WeatherConfig{
			GeocodeURL:  "https://geocode.maps.co",
			ForecastURL: "https://api.open-meteo.com/v1/forecast",
			Model:       "jma_seamless",
		},
		Cache: CacheConfig{
			Backend: "memory",
			TTL:     time.Hour,
		},
		Knowledge: KnowledgeConfig{
			ChunkSize: 1200,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
		},
	}
}

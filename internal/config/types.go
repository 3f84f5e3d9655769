package config

import "time"

// Config is the root configuration for Steve.
type Config struct {
	Gateway   GatewayConfig   `yaml:"gateway,omitempty"`
	Auth      AuthConfig      `yaml:"auth,omitempty"`
	Models    ModelsConfig    `yaml:"models,omitempty"`
	Agent     AgentConfig     `yaml:"agent,omitempty"`
	Tools     ToolsConfig     `yaml:"tools,omitempty"`
	Retriever RetrieverConfig `yaml:"retriever,omitempty"`
	Weather   WeatherConfig   `yaml:"weather,omitempty"`
	Cache     CacheConfig     `yaml:"cache,omitempty"`
	Knowledge KnowledgeConfig `yaml:"knowledge,omitempty"`
	Hooks     HooksConfig     `yaml:"hooks,omitempty"`
	Logging   LoggingConfig   `yaml:"logging,omitempty"`
	Prompts   PromptsConfig   `yaml:"prompts,omitempty"`
}

// GatewayConfig controls the HTTP/WebSocket server.
type GatewayConfig struct {
	Port           int        `yaml:"port,omitempty"`
	Bind           string     `yaml:"bind,omitempty"` // "auto" | "lan" | "loopback" | "custom"
	CustomBindHost string     `yaml:"customBindHost,omitempty"`
	TLS            GatewayTLS `yaml:"tls,omitempty"`
	AllowedOrigins []string   `yaml:"allowedOrigins,omitempty"`
	DefaultThread  string     `yaml:"defaultThread,omitempty"`
}

// GatewayTLS configures TLS for the gateway.
type GatewayTLS struct {
	Enabled  bool   `yaml:"enabled,omitempty"`
	CertPath string `yaml:"certPath,omitempty"`
	KeyPath  string `yaml:"keyPath,omitempty"`
}

// AuthConfig maps principals to pre-shared API keys.
type AuthConfig struct {
	Header string            `yaml:"header,omitempty"`
	Keys   map[string]string `yaml:"keys,omitempty"` // principal -> key
}

// ModelsConfig selects the models for each agent role. References use the
// "provider:model" form, e.g. "gemini:gemini-2.0-flash".
type ModelsConfig struct {
	Reasoning   string                    `yaml:"reasoning,omitempty"`
	Summarizer  string                    `yaml:"summarizer,omitempty"`
	Fallbacks   []string                  `yaml:"fallbacks,omitempty"`
	MaxTokens   int                       `yaml:"maxTokens,omitempty"`
	Temperature *float64                  `yaml:"temperature,omitempty"`
	Retries     int                       `yaml:"retries,omitempty"`
	Providers   map[string]ProviderConfig `yaml:"providers,omitempty"`
}

// ProviderConfig holds credentials and endpoint for a model provider.
type ProviderConfig struct {
	APIKey  string `yaml:"apiKey,omitempty"`
	BaseURL string `yaml:"baseUrl,omitempty"`
	API     string `yaml:"api,omitempty"` // "gemini" | "openai" | "anthropic"
}

// AgentConfig tunes the conversation graph.
type AgentConfig struct {
	MaxSteps         int `yaml:"maxSteps,omitempty"`
	SummaryThreshold int `yaml:"summaryThreshold,omitempty"`
}

// ToolsConfig selects and configures tools.
type ToolsConfig struct {
	Enabled    []string         `yaml:"enabled,omitempty"`
	GitHubRepo GitHubRepoConfig `yaml:"githubRepo,omitempty"`
	HTTP       HTTPConfig       `yaml:"http,omitempty"`
}

// GitHubRepoConfig configures the repository question tool.
type GitHubRepoConfig struct {
	Model string `yaml:"model,omitempty"`
}

// HTTPConfig configures the retrying HTTP client shared by tools.
type HTTPConfig struct {
	Retries int           `yaml:"retries,omitempty"`
	Backoff time.Duration `yaml:"backoff,omitempty"`
	Timeout time.Duration `yaml:"timeout,omitempty"`
}

// RetrieverConfig selects the context-retriever backend.
type RetrieverConfig struct {
	Backend  string `yaml:"backend,omitempty"` // "groundx" | "local"
	BaseURL  string `yaml:"baseUrl,omitempty"`
	APIKey   string `yaml:"apiKey,omitempty"`
	BucketID string `yaml:"bucketId,omitempty"`
	TopK     int    `yaml:"topK,omitempty"`
}

// WeatherConfig configures the weather tool endpoints.
type WeatherConfig struct {
	GeocodeURL    string `yaml:"geocodeUrl,omitempty"`
	GeocodeAPIKey string `yaml:"geocodeApiKey,omitempty"`
	ForecastURL   string `yaml:"forecastUrl,omitempty"`
	Model         string `yaml:"model,omitempty"`
}

// CacheConfig selects the tool response cache.
type CacheConfig struct {
	Backend  string        `yaml:"backend,omitempty"` // "memory" | "redis" | "none"
	RedisURL string        `yaml:"redisUrl,omitempty"`
	TTL      time.Duration `yaml:"ttl,omitempty"`
}

// KnowledgeConfig configures the local knowledge base.
type KnowledgeConfig struct {
	Path      string `yaml:"path,omitempty"`
	ChunkSize int    `yaml:"chunkSize,omitempty"`
}

// HooksConfig binds shell commands to lifecycle events.
type HooksConfig struct {
	GatewayStart []HookEntry `yaml:"gatewayStart,omitempty"`
	GatewayStop  []HookEntry `yaml:"gatewayStop,omitempty"`
	TurnStart    []HookEntry `yaml:"turnStart,omitempty"`
	ToolInvoked  []HookEntry `yaml:"toolInvoked,omitempty"`
	TurnEnd      []HookEntry `yaml:"turnEnd,omitempty"`
	TurnError    []HookEntry `yaml:"turnError,omitempty"`
}

// HookEntry defines a single hook action.
type HookEntry struct {
	Command string `yaml:"command"`
	Timeout int    `yaml:"timeout,omitempty"` // milliseconds
}

// LoggingConfig controls logging behavior.
type LoggingConfig struct {
	Level  string `yaml:"level,omitempty"` // "silent" | "fatal" | "error" | "warn" | "info" | "debug" | "trace"
	Format string `yaml:"format,omitempty"`
	File   string `yaml:"file,omitempty"`
}

// PromptsConfig points at an alternate prompts file.
type PromptsConfig struct {
	File string `yaml:"file,omitempty"`
}

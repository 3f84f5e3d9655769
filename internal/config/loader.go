package config

import (
	"os"
	"regexp"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
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
// credential fields so keys can be stored as ${ENV_VAR}.
func expandSensitiveFields(cfg *Config) {
	for principal, key := range cfg.Auth.Keys {
		if !envVarPattern.MatchString(key) {
			continue
		}
		// A reference that resolves to nothing must not become a usable key.
		expanded := expandEnvVars(key)
		if expanded == "" || envVarPattern.MatchString(expanded) {
			delete(cfg.Auth.Keys, principal)
			continue
		}
		cfg.Auth.Keys[principal] = expanded
	}
	for name, provider := range cfg.Models.Providers {
		provider.APIKey = expandEnvVars(provider.APIKey)
		cfg.Models.Providers[name] = provider
	}
	cfg.Retriever.APIKey = expandEnvVars(cfg.Retriever.APIKey)
	cfg.Retriever.BucketID = expandEnvVars(cfg.Retriever.BucketID)
	cfg.Weather.GeocodeAPIKey = expandEnvVars(cfg.Weather.GeocodeAPIKey)
	cfg.Cache.RedisURL = expandEnvVars(cfg.Cache.RedisURL)
}

// envOverrides are read from the process environment after the file.
// STEVE_* variables override file values; the bare provider keys fill
// credentials that the file leaves empty.
type envOverrides struct {
	Port      int           `envconfig:"STEVE_PORT"`
	Bind      string        `envconfig:"STEVE_BIND"`
	LogLevel  string        `envconfig:"STEVE_LOG_LEVEL"`
	LogFormat string        `envconfig:"STEVE_LOG_FORMAT"`
	Model     string        `envconfig:"STEVE_MODEL"`
	RedisURL  string        `envconfig:"STEVE_REDIS_URL"`
	CacheTTL  time.Duration `envconfig:"STEVE_CACHE_TTL"`
	KBPath    string        `envconfig:"STEVE_KB_PATH"`
	Retriever string        `envconfig:"STEVE_RETRIEVER"`

	GeminiKey     string `envconfig:"GEMINI_API_KEY"`
	GoogleKey     string `envconfig:"GOOGLE_API_KEY"`
	MistralKey    string `envconfig:"MISTRAL_API_KEY"`
	OpenRouterKey string `envconfig:"OPENROUTER_API_KEY"`
	OpenAIKey     string `envconfig:"OPENAI_API_KEY"`
	AnthropicKey  string `envconfig:"ANTHROPIC_API_KEY"`
	GroundXKey    string `envconfig:"GROUNDX_API_KEY"`
	GroundXBucket string `envconfig:"GROUNDX_BUCKET_ID"`
	GeocodeKey    string `envconfig:"GEOCODE_API_KEY"`
	RhyleKey      string `envconfig:"RHYLE_API_KEY"`
	JomarKey      string `envconfig:"JOMAR_API_KEY"`
}

// LoadDotEnv loads a .env file into the environment if one exists.
// Variables already set in the environment win.
func LoadDotEnv(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	var existing []string
	for _, p := range paths {
		if _, err := os.Stat(p); err == nil {
			existing = append(existing, p)
		}
	}
	if len(existing) == 0 {
		return nil
	}
	return godotenv.Load(existing...)
}

// Load reads the config file, applies environment overrides, and returns
// a merged Config. Missing files produce defaults only.
func Load(path string) (Config, error) {
	cfg := Defaults()

	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			return cfg, err
		}
	} else if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, &ConfigError{Message: "failed to parse config: " + err.Error()}
	}

	applyDefaults(&cfg)
	if err := applyEnvOverrides(&cfg); err != nil {
		return cfg, err
	}
	expandSensitiveFields(&cfg)

	if cfg.Knowledge.Path == "" {
		paths, err := ResolvePaths()
		if err != nil {
			return cfg, err
		}
		cfg.Knowledge.Path = paths.Knowledge
	}
	return cfg, nil
}

// LoadRaw reads the config file into a generic map for path-based access.
func LoadRaw(path string) (map[string]any, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return map[string]any{}, nil
		}
		return nil, err
	}

	var raw map[string]any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, &ConfigError{Message: "failed to parse config: " + err.Error()}
	}
	if raw == nil {
		raw = map[string]any{}
	}
	return raw, nil
}

// SaveRaw writes a generic map back to a YAML config file.
func SaveRaw(path string, raw map[string]any) error {
	data, err := yaml.Marshal(raw)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o600)
}

// applyDefaults fills zero-value fields left empty by a partial file.
func applyDefaults(cfg *Config) {
	d := Defaults()
	if cfg.Gateway.Port == 0 {
		cfg.Gateway.Port = d.Gateway.Port
	}
	if cfg.Gateway.Bind == "" {
		cfg.Gateway.Bind = d.Gateway.Bind
	}
	if cfg.Gateway.DefaultThread == "" {
		cfg.Gateway.DefaultThread = d.Gateway.DefaultThread
	}
	if cfg.Auth.Header == "" {
		cfg.Auth.Header = d.Auth.Header
	}
	if cfg.Models.Reasoning == "" {
		cfg.Models.Reasoning = d.Models.Reasoning
	}
	if cfg.Models.Summarizer == "" {
		cfg.Models.Summarizer = cfg.Models.Reasoning
	}
	if cfg.Models.MaxTokens == 0 {
		cfg.Models.MaxTokens = d.Models.MaxTokens
	}
	if cfg.Models.Retries == 0 {
		cfg.Models.Retries = d.Models.Retries
	}
	if cfg.Agent.MaxSteps == 0 {
		cfg.Agent.MaxSteps = d.Agent.MaxSteps
	}
	if cfg.Agent.SummaryThreshold == 0 {
		cfg.Agent.SummaryThreshold = d.Agent.SummaryThreshold
	}
	if cfg.Tools.GitHubRepo.Model == "" {
		cfg.Tools.GitHubRepo.Model = d.Tools.GitHubRepo.Model
	}
	if cfg.Tools.HTTP.Retries == 0 {
		cfg.Tools.HTTP.Retries = d.Tools.HTTP.Retries
	}
	if cfg.Tools.HTTP.Backoff == 0 {
		cfg.Tools.HTTP.Backoff = d.Tools.HTTP.Backoff
	}
	if cfg.Tools.HTTP.Timeout == 0 {
		cfg.Tools.HTTP.Timeout = d.Tools.HTTP.Timeout
	}
	if cfg.Retriever.Backend == "" {
		cfg.Retriever.Backend = d.Retriever.Backend
	}
	if cfg.Retriever.BaseURL == "" {
		cfg.Retriever.BaseURL = d.Retriever.BaseURL
	}
	if cfg.Retriever.TopK == 0 {
		cfg.Retriever.TopK = d.Retriever.TopK
	}
	if cfg.Weather.GeocodeURL == "" {
		cfg.Weather.GeocodeURL = d.Weather.GeocodeURL
	}
	if cfg.Weather.ForecastURL == "" {
		cfg.Weather.ForecastURL = d.Weather.ForecastURL
	}
	if cfg.Weather.Model == "" {
		cfg.Weather.Model = d.Weather.Model
	}
	if cfg.Cache.Backend == "" {
		cfg.Cache.Backend = d.Cache.Backend
	}
	if cfg.Cache.TTL == 0 {
		cfg.Cache.TTL = d.Cache.TTL
	}
	if cfg.Knowledge.ChunkSize == 0 {
		cfg.Knowledge.ChunkSize = d.Knowledge.ChunkSize
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = d.Logging.Level
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = d.Logging.Format
	}
}

// applyEnvOverrides reads STEVE_* and provider variables into cfg.
func applyEnvOverrides(cfg *Config) error {
	var env envOverrides
	if err := envconfig.Process("", &env); err != nil {
		return &ConfigError{Message: "environment: " + err.Error()}
	}

	if env.Port != 0 {
		cfg.Gateway.Port = env.Port
	}
	if env.Bind != "" {
		cfg.Gateway.Bind = env.Bind
	}
	if env.LogLevel != "" {
		cfg.Logging.Level = strings.ToLower(env.LogLevel)
	}
	if env.LogFormat != "" {
		cfg.Logging.Format = strings.ToLower(env.LogFormat)
	}
	if env.Model != "" {
		cfg.Models.Reasoning = env.Model
	}
	if env.RedisURL != "" {
		cfg.Cache.RedisURL = env.RedisURL
		cfg.Cache.Backend = "redis"
	}
	if env.CacheTTL != 0 {
		cfg.Cache.TTL = env.CacheTTL
	}
	if env.KBPath != "" {
		cfg.Knowledge.Path = env.KBPath
	}
	if env.Retriever != "" {
		cfg.Retriever.Backend = env.Retriever
	}

	geminiKey := env.GeminiKey
	if geminiKey == "" {
		geminiKey = env.GoogleKey
	}
	providerKey(cfg, "gemini", geminiKey)
	providerKey(cfg, "mistral", env.MistralKey)
	providerKey(cfg, "openrouter", env.OpenRouterKey)
	providerKey(cfg, "openai", env.OpenAIKey)
	providerKey(cfg, "anthropic", env.AnthropicKey)

	if cfg.Retriever.APIKey == "" {
		cfg.Retriever.APIKey = env.GroundXKey
	}
	if cfg.Retriever.BucketID == "" {
		cfg.Retriever.BucketID = env.GroundXBucket
	}
	if cfg.Weather.GeocodeAPIKey == "" {
		cfg.Weather.GeocodeAPIKey = env.GeocodeKey
	}

	principalKey(cfg, "rhyliieee", env.RhyleKey)
	principalKey(cfg, "jomar", env.JomarKey)
	return nil
}

func providerKey(cfg *Config, name, key string) {
	if key == "" {
		return
	}
	if cfg.Models.Providers == nil {
		cfg.Models.Providers = map[string]ProviderConfig{}
	}
	p := cfg.Models.Providers[name]
	if p.APIKey == "" {
		p.APIKey = key
	}
	cfg.Models.Providers[name] = p
}

func principalKey(cfg *Config, principal, key string) {
	if key == "" {
		return
	}
	if cfg.Auth.Keys == nil {
		cfg.Auth.Keys = map[string]string{}
	}
	if _, ok := cfg.Auth.Keys[principal]; !ok {
		cfg.Auth.Keys[principal] = key
	}
}

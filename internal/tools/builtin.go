package tools

import (
	"fmt"

	"github.com/soyeahso/steve/internal/config"
	"github.com/soyeahso/steve/internal/logging"
)

// Deps are the collaborators the built-in tools need.
type Deps struct {
	Fetcher *Fetcher
	// RepoAnswerer backs github-repo.
	RepoAnswerer Answerer
	// Knowledge backs context-retriever when the local backend is selected.
	Knowledge KnowledgeIndex
}

// NewRegistryFromConfig registers every tool listed in cfg.Tools.Enabled.
func NewRegistryFromConfig(cfg *config.Config, deps Deps, log *logging.Logger) (*Registry, error) {
	reg := NewRegistry(log)
	for _, name := range cfg.Tools.Enabled {
		t, err := buildTool(name, cfg, deps, log)
		if err != nil {
			return nil, err
		}
		if err := reg.Register(t); err != nil {
			return nil, err
		}
	}
	return reg, nil
}

func buildTool(name string, cfg *config.Config, deps Deps, log *logging.Logger) (Tool, error) {
	switch name {
	case "github-profile":
		return GitHubProfile{}, nil
	case "linkedin-profile":
		return LinkedInProfile{}, nil
	case "profile-aggregator":
		return NewProfileAggregator(), nil
	case "github-repo":
		if deps.RepoAnswerer == nil {
			return nil, fmt.Errorf("github-repo: no repository answerer configured")
		}
		return NewGitHubRepo(deps.RepoAnswerer), nil
	case "context-retriever":
		s, err := newSearcher(cfg.Retriever, deps)
		if err != nil {
			return nil, err
		}
		return NewContextRetriever(s, log), nil
	case "weather-data":
		if deps.Fetcher == nil {
			return nil, fmt.Errorf("weather-data: no http fetcher configured")
		}
		return NewWeather(deps.Fetcher, WeatherConfig{
			GeocodeURL:    cfg.Weather.GeocodeURL,
			GeocodeAPIKey: cfg.Weather.GeocodeAPIKey,
			ForecastURL:   cfg.Weather.ForecastURL,
			Model:         cfg.Weather.Model,
		}, log), nil
	default:
		return nil, fmt.Errorf("unknown tool %q", name)
	}
}

func newSearcher(cfg config.RetrieverConfig, deps Deps) (Searcher, error) {
	switch cfg.Backend {
	case "local":
		if deps.Knowledge == nil {
			return nil, fmt.Errorf("context-retriever: local backend needs a knowledge base")
		}
		return NewLocalSearcher(deps.Knowledge, cfg.TopK), nil
	case "", "groundx":
		if deps.Fetcher == nil {
			return nil, fmt.Errorf("context-retriever: no http fetcher configured")
		}
		return NewGroundX(deps.Fetcher, cfg.BaseURL, cfg.APIKey, cfg.BucketID, cfg.TopK), nil
	default:
		return nil, fmt.Errorf("context-retriever: unknown backend %q", cfg.Backend)
	}
}

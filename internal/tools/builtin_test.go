package tools

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/soyeahso/steve/internal/config"
)

func TestNewRegistryFromConfig(t *testing.T) {
	cfg := config.Defaults()
	deps := Deps{
		Fetcher: testFetcher(t, nil),
		RepoAnswerer: AnswerFunc(func(context.Context, string) (string, error) {
			return "ok", nil
		}),
	}

	reg, err := NewRegistryFromConfig(&cfg, deps, silentLog())
	require.NoError(t, err)
	assert.Equal(t, config.DefaultTools, reg.Names())

	routes := map[string]Route{}
	for _, s := range reg.Specs() {
		routes[s.Name] = s.Route
	}
	assert.Equal(t, RouteReason, routes["context-retriever"])
	assert.Equal(t, RouteDirect, routes["github-repo"])
	assert.Equal(t, RouteTerminate, routes["weather-data"])
}

func TestNewRegistryFromConfigLocalRetriever(t *testing.T) {
	cfg := config.Defaults()
	cfg.Tools.Enabled = []string{"context-retriever", "profile-aggregator"}
	cfg.Retriever.Backend = "local"

	_, err := NewRegistryFromConfig(&cfg, Deps{}, silentLog())
	assert.ErrorContains(t, err, "knowledge base")

	reg, err := NewRegistryFromConfig(&cfg, Deps{Knowledge: &fakeIndex{}}, silentLog())
	require.NoError(t, err)
	assert.Equal(t, []string{"context-retriever", "profile-aggregator"}, reg.Names())
}

func TestNewRegistryFromConfigErrors(t *testing.T) {
	cfg := config.Defaults()
	cfg.Tools.Enabled = []string{"github-repo"}
	_, err := NewRegistryFromConfig(&cfg, Deps{}, silentLog())
	assert.ErrorContains(t, err, "answerer")

	cfg.Tools.Enabled = []string{"teleporter"}
	_, err = NewRegistryFromConfig(&cfg, Deps{}, silentLog())
	assert.ErrorContains(t, err, "unknown tool")

	cfg.Tools.Enabled = []string{"github-profile", "github-profile"}
	_, err = NewRegistryFromConfig(&cfg, Deps{}, silentLog())
	assert.ErrorContains(t, err, "already registered")
}

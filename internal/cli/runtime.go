package cli

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/soyeahso/steve/internal/agent"
	"github.com/soyeahso/steve/internal/cache"
	"github.com/soyeahso/steve/internal/config"
	"github.com/soyeahso/steve/internal/hooks"
	"github.com/soyeahso/steve/internal/llm"
	"github.com/soyeahso/steve/internal/logging"
	"github.com/soyeahso/steve/internal/prompts"
	"github.com/soyeahso/steve/internal/store"
	"github.com/soyeahso/steve/internal/tools"
)

var errNoProviders = errors.New("no model providers have credentials")

// runtime holds everything a turn needs, built once per process.
type runtime struct {
	cfg     config.Config
	hooks   *hooks.Manager
	tools   *tools.Registry
	graph   *agent.Graph
	closers []io.Closer
}

// buildRuntime wires the model gateway, tools and conversation graph from
// cfg. Resources opened along the way are released by Close, also when an
// error is returned.
func buildRuntime(ctx context.Context, cfg config.Config, log *logging.Logger) (*runtime, error) {
	rt := &runtime{cfg: cfg, hooks: hooks.NewManager(log)}
	if n := rt.hooks.RegisterCommands(cfg.Hooks); n > 0 {
		log.Info().Int("hooks", n).Msg("registered command hooks")
	}

	ps, err := prompts.Load(cfg.Prompts.File)
	if err != nil {
		return rt, err
	}

	models, err := llm.NewRegistryFromConfig(cfg.Models, log)
	if err != nil {
		return rt, err
	}
	if len(models.List()) == 0 {
		return rt, errNoProviders
	}
	log.Info().Strs("providers", models.List()).Msg("model providers available")

	gw := agent.NewModelGateway(models, ps, agent.GatewayConfigFrom(&cfg), log)
	if err := rt.buildTools(ctx, gw.RepoAnswerer(), log); err != nil {
		return rt, err
	}

	rt.graph = agent.NewGraph(gw.WithTools(rt.tools.Definitions()), rt.tools, agent.NewSessionStore(), agent.Options{
		MaxSteps:         cfg.Agent.MaxSteps,
		SummaryThreshold: cfg.Agent.SummaryThreshold,
		Hooks:            rt.hooks,
	}, log)
	return rt, nil
}

// buildTools creates the enabled tools and the cache and knowledge base
// they depend on.
func (rt *runtime) buildTools(ctx context.Context, repo tools.Answerer, log *logging.Logger) error {
	c, err := cache.New(ctx, rt.cfg.Cache, log)
	if err != nil {
		return fmt.Errorf("opening cache: %w", err)
	}
	rt.closers = append(rt.closers, c)

	deps := tools.Deps{
		Fetcher:      tools.NewFetcher(rt.cfg.Tools.HTTP, c, rt.cfg.Cache.TTL, log),
		RepoAnswerer: repo,
	}
	if rt.cfg.Retriever.Backend == "local" {
		kb, err := openKnowledge(rt.cfg, log)
		if err != nil {
			return err
		}
		rt.closers = append(rt.closers, kb.db)
		deps.Knowledge = kb.Knowledge
	}

	rt.tools, err = tools.NewRegistryFromConfig(&rt.cfg, deps, log)
	return err
}

// Close releases the runtime's resources in reverse order.
func (rt *runtime) Close() error {
	var errs []error
	for i := len(rt.closers) - 1; i >= 0; i-- {
		errs = append(errs, rt.closers[i].Close())
	}
	return errors.Join(errs...)
}

type knowledgeBase struct {
	*store.Knowledge
	db *store.DB
}

// openKnowledge opens the sqlite knowledge base at the configured path, or
// the default one under the Steve home directory.
func openKnowledge(cfg config.Config, log *logging.Logger) (*knowledgeBase, error) {
	path := cfg.Knowledge.Path
	if path == "" {
		path = paths.Knowledge
	}
	db, err := store.Open(path, log)
	if err != nil {
		return nil, fmt.Errorf("opening knowledge base: %w", err)
	}
	log.Info().Str("path", path).Msg("knowledge base open")
	return &knowledgeBase{Knowledge: store.NewKnowledge(db, cfg.Knowledge.ChunkSize), db: db}, nil
}

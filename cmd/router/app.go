package main

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/AltairaLabs/agent-router/internal/agents"
	"github.com/AltairaLabs/agent-router/internal/coordinator"
	"github.com/AltairaLabs/agent-router/internal/coordinator/cache"
	"github.com/AltairaLabs/agent-router/internal/coordinator/config"
	"github.com/AltairaLabs/agent-router/internal/events"
	"github.com/AltairaLabs/agent-router/internal/orchestrator"
	"github.com/AltairaLabs/agent-router/internal/routing"
	"github.com/AltairaLabs/agent-router/internal/session"
	"github.com/AltairaLabs/agent-router/internal/storage/sqlite"
)

// app holds the wired components of one router process
type app struct {
	cfg     *config.Config
	logger  *slog.Logger
	store   *session.MemoryStore
	hub     *events.Hub
	invoker agents.Invoker
	cache   *cache.ResultCache
	archive *sqlite.Archive
	router  *coordinator.Router

	closers []func() error
}

// newApp wires the router from cfg. A nil invoker dials agents over gRPC.
func newApp(cfg *config.Config, logger *slog.Logger, invoker agents.Invoker) (*app, error) {
	a := &app{cfg: cfg, logger: logger}

	registry, err := cfg.Registry()
	if err != nil {
		return nil, err
	}
	if len(registry.Addresses()) == 0 {
		logger.Warn("No agent endpoints configured; every dispatch will fail")
	}

	tables := routing.DefaultTables()
	if cfg.Routing.TablesFile != "" {
		tables, err = routing.LoadTables(cfg.Routing.TablesFile)
		if err != nil {
			return nil, err
		}
		logger.Info("Loaded routing tables", "path", cfg.Routing.TablesFile)
	}

	if invoker == nil {
		grpcInvoker := agents.NewGRPCInvoker(registry, logger)
		a.closers = append(a.closers, grpcInvoker.Close)
		invoker = grpcInvoker
	}
	a.invoker = invoker

	a.store = session.NewMemoryStore(cfg.SessionStore(), logger)
	a.hub = events.NewHub(logger)

	a.cache, err = cache.NewResultCache(cfg.ResultCache())
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("creating result cache: %w", err)
	}
	a.closers = append(a.closers, func() error { a.cache.Close(); return nil })

	execOpts := []orchestrator.Option{orchestrator.WithDeadline(cfg.Orchestration.Timeout)}
	routerOpts := []coordinator.RouterOption{coordinator.WithResultCache(a.cache)}
	if cfg.Archive.Path != "" {
		a.archive, err = sqlite.Open(cfg.Archive.Path)
		if err != nil {
			a.Close()
			return nil, err
		}
		a.closers = append(a.closers, a.archive.Close)
		execOpts = append(execOpts, orchestrator.WithArchiver(a.archive))
		routerOpts = append(routerOpts, coordinator.WithResultArchive(a.archive))
		logger.Info("Task archive enabled", "path", a.archive.Path())
	}

	executor := orchestrator.New(a.store, invoker, registry, cfg.RetryPolicy(), a.hub, logger, execOpts...)
	decider := routing.NewDecider(tables, cfg.Session.HistoryWindow)
	a.router = coordinator.NewRouter(a.store, decider, executor, logger, routerOpts...)

	return a, nil
}

// newMCPServer exposes the router over MCP. Client bindings to a conversation
// are dropped when the session store expires it.
func (a *app) newMCPServer() *coordinator.MCPServer {
	ms := coordinator.NewMCPServer(coordinator.Config{
		Name:    a.cfg.Server.Name,
		Version: a.cfg.Server.Version,
	}, a.router, a.hub, coordinator.NewAuditLogger(a.logger), a.logger)
	a.store.OnEvict(ms.Clients().Forget)
	return ms
}

// Close releases every resource in reverse creation order
func (a *app) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}

// Package cmd provides the aura CLI: an interactive chat command plus
// status and version reporting over the assembled assistant stack.
package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/embermind/aura/agents/advisor"
	"github.com/embermind/aura/agents/finance"
	"github.com/embermind/aura/agents/general"
	"github.com/embermind/aura/agents/travel"
	"github.com/embermind/aura/agents/weather"
	"github.com/embermind/aura/core/config"
	"github.com/embermind/aura/core/contextual"
	"github.com/embermind/aura/core/coordinator"
	"github.com/embermind/aura/core/events"
	"github.com/embermind/aura/core/memory"
	"github.com/embermind/aura/core/orchestrator"
	"github.com/embermind/aura/core/proactive"
	"github.com/embermind/aura/core/providers"
	"github.com/embermind/aura/core/scheduler"
	"github.com/embermind/aura/core/storage"
	"github.com/embermind/aura/core/worker"
)

const eventBusBuffer = 256

// app is the fully wired assistant stack behind every CLI command.
type app struct {
	dirs      *storage.Dirs
	config    *config.Manager
	providers *providers.Registry
	store     *scheduler.TaskStore
	bus       *events.Bus
	scheduler *scheduler.Scheduler
	memory    *memory.Store
	engine    *contextual.Engine
	sessions  *proactive.Manager
	orch      *orchestrator.Orchestrator
}

// buildApp resolves platform directories, loads configuration, registers
// every provider with credentials in the environment, and assembles the
// orchestration stack.
func buildApp(ctx context.Context) (*app, error) {
	dirs := storage.ResolveDirs()
	if err := dirs.EnsureAll(); err != nil {
		return nil, fmt.Errorf("ensure directories: %w", err)
	}

	manager := config.NewManager(dirs)
	if err := manager.Load(); err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if err := manager.Watch(slog.Default()); err != nil {
		slog.Warn("config hot reload unavailable", "error", err)
	}
	cfg := manager.Get()

	registry := providers.NewRegistry()
	if err := registerProviders(ctx, registry, cfg); err != nil {
		manager.Close()
		return nil, err
	}
	provider, err := registry.Default()
	if err != nil {
		manager.Close()
		return nil, fmt.Errorf("no provider configured: set ANTHROPIC_API_KEY, OPENAI_API_KEY, or GEMINI_API_KEY")
	}

	engine, err := contextual.NewEngine(contextual.Config{NumShards: cfg.Contextual.Shards})
	if err != nil {
		return nil, err
	}

	storeCfg := scheduler.DefaultTaskStoreConfig()
	storeCfg.DBPath = dirs.TaskDBPath()
	if ttl, err := time.ParseDuration(cfg.Scheduler.ArchiveTTL); err == nil {
		storeCfg.ArchiveTTL = ttl
	}
	store, err := scheduler.NewTaskStore(storeCfg)
	if err != nil {
		return nil, fmt.Errorf("open task store: %w", err)
	}

	bus := events.NewBus(eventBusBuffer)
	sched, err := scheduler.New(scheduler.Config{
		Store:        store,
		Bus:          bus,
		NumWorkers:   cfg.Scheduler.Workers,
		NumUrgent:    cfg.Scheduler.UrgentWorkers,
		MaxQueueSize: cfg.Scheduler.QueueSize,
		Retry:        retryPolicy(cfg),
	})
	if err != nil {
		store.Close()
		return nil, err
	}

	mem, err := memory.NewStore(memory.Config{
		Path:      memoryIndexPath(cfg, dirs),
		CacheSize: cfg.Memory.CacheSize,
	})
	if err != nil {
		store.Close()
		return nil, fmt.Errorf("open memory store: %w", err)
	}

	adv, err := advisor.New(advisor.Config{Provider: provider})
	if err != nil {
		return nil, err
	}

	orchestrator.RegisterTaskHandlers(sched, engine, adv)
	if err := orchestrator.RegisterMaintenance(sched, orchestrator.MaintenanceConfig{
		Retention: storeCfg.ArchiveTTL,
	}); err != nil {
		return nil, err
	}
	sched.Start()

	idleTimeout, _ := time.ParseDuration(cfg.Session.IdleTimeout)
	sessions, err := proactive.NewManager(proactive.Config{
		Engine:          engine,
		Submitter:       orchestrator.NewAnalysisSubmitter(sched),
		Archiver:        orchestrator.NewSessionArchiver(sched),
		Generator:       adv,
		Predictive:      adv,
		SuggestionLimit: cfg.Session.SuggestionLimit,
		IdleTimeout:     idleTimeout,
		NumShards:       cfg.Contextual.Shards,
	})
	if err != nil {
		return nil, err
	}

	workers, fallback, err := buildWorkers(provider, mem)
	if err != nil {
		return nil, err
	}
	coord := coordinator.New(workers, coordinator.Config{})

	orch, err := orchestrator.New(orchestrator.Config{
		Coordinator: coord,
		Fallback:    fallback,
		Sessions:    sessions,
		Engine:      engine,
		Scheduler:   sched,
		Memory:      mem,
		Bus:         bus,
	})
	if err != nil {
		return nil, err
	}

	return &app{
		dirs:      dirs,
		config:    manager,
		providers: registry,
		store:     store,
		bus:       bus,
		scheduler: sched,
		memory:    mem,
		engine:    engine,
		sessions:  sessions,
		orch:      orch,
	}, nil
}

// registerProviders registers every backend with credentials present in the
// environment. The configured default wins when available; the first
// registered backend serves otherwise.
func registerProviders(ctx context.Context, registry *providers.Registry, cfg *config.Config) error {
	if key := os.Getenv("ANTHROPIC_API_KEY"); key != "" {
		pc := providers.DefaultAnthropicConfig()
		pc.APIKey = key
		applyProviderConfig(&pc.BaseConfig, cfg, providers.ProviderTypeAnthropic)
		if err := registry.RegisterAnthropic(pc); err != nil {
			return fmt.Errorf("register anthropic: %w", err)
		}
	}
	if key := os.Getenv("OPENAI_API_KEY"); key != "" {
		pc := providers.DefaultOpenAIConfig()
		pc.APIKey = key
		applyProviderConfig(&pc.BaseConfig, cfg, providers.ProviderTypeOpenAI)
		if err := registry.RegisterOpenAI(pc); err != nil {
			return fmt.Errorf("register openai: %w", err)
		}
	}
	if key := os.Getenv("GEMINI_API_KEY"); key != "" {
		pc := providers.DefaultGoogleConfig()
		pc.APIKey = key
		applyProviderConfig(&pc.BaseConfig, cfg, providers.ProviderTypeGoogle)
		if err := registry.RegisterGoogle(ctx, pc); err != nil {
			return fmt.Errorf("register google: %w", err)
		}
	}

	wanted := providers.ProviderType(cfg.Provider.Default)
	if registry.Has(wanted) {
		return registry.SetDefault(wanted)
	}
	return nil
}

// applyProviderConfig overlays the configured generation parameters onto the
// default provider, leaving the others at their per-backend defaults.
func applyProviderConfig(base *providers.BaseConfig, cfg *config.Config, pt providers.ProviderType) {
	if string(pt) != cfg.Provider.Default {
		return
	}
	if cfg.Provider.Model != "" {
		base.Model = cfg.Provider.Model
	}
	if cfg.Provider.MaxTokens > 0 {
		base.MaxTokens = cfg.Provider.MaxTokens
	}
	if cfg.Provider.Temperature > 0 {
		base.Temperature = cfg.Provider.Temperature
	}
	if cfg.Provider.Timeout > 0 {
		base.Timeout = cfg.Provider.Timeout
	}
}

func buildWorkers(provider providers.Provider, mem *memory.Store) (*worker.Registry, worker.Worker, error) {
	registry := worker.NewRegistry()

	travelAgent, err := travel.New(travel.Config{Provider: provider, Memory: mem})
	if err != nil {
		return nil, nil, err
	}
	weatherAgent, err := weather.New(weather.Config{Provider: provider})
	if err != nil {
		return nil, nil, err
	}
	financeAgent, err := finance.New(finance.Config{Provider: provider, Memory: mem})
	if err != nil {
		return nil, nil, err
	}
	for _, w := range []worker.Worker{travelAgent, weatherAgent, financeAgent} {
		if err := registry.Register(w); err != nil {
			return nil, nil, err
		}
	}

	fallback, err := general.New(general.Config{Provider: provider, Memory: mem})
	if err != nil {
		return nil, nil, err
	}
	return registry, fallback, nil
}

func retryPolicy(cfg *config.Config) scheduler.RetryPolicy {
	policy := scheduler.DefaultRetryPolicy()
	if d, err := time.ParseDuration(cfg.Scheduler.RetryInitial); err == nil {
		policy.InitialDelay = d
	}
	if d, err := time.ParseDuration(cfg.Scheduler.RetryMax); err == nil {
		policy.MaxDelay = d
	}
	return policy
}

func memoryIndexPath(cfg *config.Config, dirs *storage.Dirs) string {
	if cfg.Memory.IndexPath != "" {
		return cfg.Memory.IndexPath
	}
	return dirs.MemoryIndexPath()
}

// Close tears the stack down in dependency order.
func (a *app) Close() {
	a.scheduler.Stop()
	a.bus.Close()
	a.store.Close()
	a.memory.Close()
	a.config.Close()
	if err := a.providers.Close(); err != nil {
		slog.Warn("provider shutdown", "error", err)
	}
}

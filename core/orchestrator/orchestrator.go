// Package orchestrator is the boundary of the assistant backend. It composes
// the coordinator, the proactive session manager, the scheduler, and the
// memory store behind four operations: process a message, fetch suggestions,
// manage sessions, and report health.
package orchestrator

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/embermind/aura/core/contextual"
	"github.com/embermind/aura/core/coordinator"
	"github.com/embermind/aura/core/domain"
	"github.com/embermind/aura/core/events"
	"github.com/embermind/aura/core/memory"
	"github.com/embermind/aura/core/proactive"
	"github.com/embermind/aura/core/scheduler"
	"github.com/embermind/aura/core/worker"
	"github.com/google/uuid"
)

// Orchestrator is the single entry point collaborators talk to.
type Orchestrator struct {
	coordinator *coordinator.Coordinator
	fallback    worker.Worker
	sessions    *proactive.Manager
	engine      *contextual.Engine
	scheduler   *scheduler.Scheduler
	memory      *memory.Store
	health      *healthMonitor

	logger  *slog.Logger
	started time.Time
	now     func() time.Time
}

// Config wires the orchestrator's collaborators.
type Config struct {
	// Coordinator routes multi-agent requests. Required.
	Coordinator *coordinator.Coordinator

	// Fallback answers requests no specialized worker can. Optional; without
	// it, coordinator failures surface to the caller.
	Fallback worker.Worker

	// Sessions is the proactive session manager. Required.
	Sessions *proactive.Manager

	// Engine is the context awareness engine backing the sessions.
	Engine *contextual.Engine

	// Scheduler runs deferred background work. Optional.
	Scheduler *scheduler.Scheduler

	// Memory stores interactions for later retrieval. Optional.
	Memory *memory.Store

	// Bus is the task event bus; when set, the orchestrator subscribes its
	// health monitor to it. Optional.
	Bus *events.Bus

	// Logger is optional; defaults to slog.Default().
	Logger *slog.Logger

	// Now overrides the clock in tests.
	Now func() time.Time
}

// New creates an Orchestrator.
func New(cfg Config) (*Orchestrator, error) {
	if cfg.Coordinator == nil {
		return nil, fmt.Errorf("orchestrator: nil coordinator")
	}
	if cfg.Sessions == nil {
		return nil, fmt.Errorf("orchestrator: nil session manager")
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}

	o := &Orchestrator{
		coordinator: cfg.Coordinator,
		fallback:    cfg.Fallback,
		sessions:    cfg.Sessions,
		engine:      cfg.Engine,
		scheduler:   cfg.Scheduler,
		memory:      cfg.Memory,
		health:      newHealthMonitor(),
		logger:      cfg.Logger,
		started:     cfg.Now(),
		now:         cfg.Now,
	}
	if cfg.Bus != nil {
		cfg.Bus.Subscribe(o.health)
	}
	return o, nil
}

// ProcessMessage answers one user turn. Multi-agent coordination runs first;
// if no specialized worker can serve the request, the general fallback worker
// answers instead. The proactive session is updated before returning on every
// path, success or failure.
func (o *Orchestrator) ProcessMessage(ctx context.Context, userID, message string, reqContext map[string]any) (*domain.Response, error) {
	defer o.sessions.RecordInteraction(userID)

	req := domain.Request{
		ID:      fmt.Sprintf("req_%s", uuid.New().String()[:8]),
		UserID:  userID,
		Message: message,
		Context: reqContext,
	}

	resp, err := o.coordinator.Process(ctx, req)
	if err != nil {
		resp, err = o.processFallback(ctx, req, err)
		if err != nil {
			return nil, err
		}
	}

	o.storeInteraction(ctx, req, resp)
	return resp, nil
}

// processFallback hands the request to the general worker after the
// coordinator could not serve it.
func (o *Orchestrator) processFallback(ctx context.Context, req domain.Request, routeErr error) (*domain.Response, error) {
	if o.fallback == nil {
		return nil, routeErr
	}

	o.logger.Info("falling back to general worker",
		"request", req.ID, "error", routeErr)

	result, err := o.fallback.Process(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("fallback worker: %w", err)
	}
	if !result.Success {
		return nil, fmt.Errorf("fallback worker: %s", result.Err)
	}

	return &domain.Response{
		Content:    result.Content,
		Confidence: result.Confidence,
		Sources:    result.Sources,
		Workers:    []string{o.fallback.ID()},
		Metadata: map[string]any{
			"routing": map[string]any{
				"fallback": true,
				"reason":   routeErr.Error(),
			},
		},
	}, nil
}

func (o *Orchestrator) storeInteraction(ctx context.Context, req domain.Request, resp *domain.Response) {
	if o.memory == nil {
		return
	}

	domainName := ""
	if len(resp.Workers) > 0 {
		domainName = resp.Workers[0]
	}
	err := o.memory.StoreInteraction(ctx, &memory.Interaction{
		UserID:   req.UserID,
		Query:    req.Message,
		Response: resp.Content,
		Domain:   domainName,
	})
	if err != nil {
		o.logger.Warn("interaction not stored", "user", req.UserID, "error", err)
	}
}

// Suggestions returns the current proactive suggestions for a user.
func (o *Orchestrator) Suggestions(ctx context.Context, userID, query string, voice bool) []domain.Suggestion {
	return o.sessions.Suggestions(ctx, userID, query, voice)
}

// StartSession starts (or restarts) a proactive session in the given mode.
func (o *Orchestrator) StartSession(userID string, mode domain.Mode) (*proactive.Session, error) {
	return o.sessions.Start(userID, mode)
}

// EndSession ends a user's session. Returns false when no live session
// existed; ending twice is benign.
func (o *Orchestrator) EndSession(userID string) bool {
	return o.sessions.End(userID)
}

// UpdateContext feeds a context update through the session manager into the
// awareness engine. The returned suggestion, if any, is the reflex response.
func (o *Orchestrator) UpdateContext(ctx context.Context, userID string, updates map[contextual.FactorType]map[string]any, source string) (*domain.Suggestion, error) {
	return o.sessions.UpdateContext(ctx, userID, updates, source)
}

// Close releases owned resources. The scheduler, memory store, and engine
// are stopped by whoever created them.
func (o *Orchestrator) Close() error {
	return nil
}

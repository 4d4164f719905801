// Package general implements the fallback worker. It is not registered
// with the coordinator: the orchestrator hands it a request only after
// routing finds no capable specialist. It answers through the provider
// with the user's recent history as conversation context.
package general

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/embermind/aura/core/domain"
	"github.com/embermind/aura/core/memory"
	"github.com/embermind/aura/core/providers"
	"github.com/embermind/aura/core/worker"
)

// WorkerID identifies this worker in capability scores and results.
const WorkerID = "general"

// BaselineConfidence is the flat score stamped on capability checks and
// results. The fallback runs without domain evidence, so the value marks
// its answers as low-confidence in synthesis and session history.
const BaselineConfidence = 0.3

const (
	defaultMaxTokens = 1024
	maxMemories      = 3
)

// Agent is the catch-all assistant worker.
type Agent struct {
	config Config
	logger *slog.Logger
}

// Config configures the general agent.
type Config struct {
	// Provider is the model backend. Required.
	Provider providers.Provider

	// Memory supplies past interactions for conversation context. Optional.
	Memory *memory.Store

	// Model overrides the provider's default model.
	Model string

	// SystemPrompt overrides DefaultSystemPrompt.
	SystemPrompt string

	// MaxTokens bounds the answer length (default 1024).
	MaxTokens int

	Logger *slog.Logger
}

// New creates a general agent.
func New(cfg Config) (*Agent, error) {
	if cfg.Provider == nil {
		return nil, fmt.Errorf("general agent: nil provider")
	}
	if cfg.SystemPrompt == "" {
		cfg.SystemPrompt = DefaultSystemPrompt
	}
	if cfg.MaxTokens == 0 {
		cfg.MaxTokens = defaultMaxTokens
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Agent{config: cfg, logger: cfg.Logger}, nil
}

func (a *Agent) ID() string { return WorkerID }

// Describe returns the agent's domain and capability list.
func (a *Agent) Describe() worker.Descriptor {
	return worker.Descriptor{
		Domain:       "general",
		Capabilities: []string{"conversation", "general_knowledge"},
	}
}

// CanHandle reports the fixed baseline for every request.
func (a *Agent) CanHandle(ctx context.Context, req domain.Request) domain.CapabilityScore {
	return domain.CapabilityScore{
		WorkerID:   WorkerID,
		Confidence: BaselineConfidence,
		Rationale:  "general fallback",
	}
}

// Process answers the request through the provider. Provider failures are
// reported in the result, not as errors.
func (a *Agent) Process(ctx context.Context, req domain.Request) (domain.WorkerResult, error) {
	start := time.Now()

	var messages []providers.Message
	if a.config.Memory != nil {
		memories, err := a.config.Memory.RelevantMemories(ctx, req.UserID, req.Message, maxMemories)
		if err != nil {
			a.logger.Warn("memory lookup failed", "user", req.UserID, "error", err)
		}
		for _, m := range memories {
			messages = append(messages,
				providers.Message{Role: providers.RoleUser, Content: m.Query},
				providers.Message{Role: providers.RoleAssistant, Content: m.Response},
			)
		}
	}
	messages = append(messages, providers.Message{
		Role:    providers.RoleUser,
		Content: req.Message,
	})

	resp, err := a.config.Provider.Generate(ctx, &providers.Request{
		Messages:     messages,
		Model:        a.config.Model,
		MaxTokens:    a.config.MaxTokens,
		SystemPrompt: a.config.SystemPrompt,
	})
	if err != nil {
		a.logger.Warn("general generation failed", "request", req.ID, "error", err)
		return domain.WorkerResult{
			WorkerID: WorkerID,
			Err:      err.Error(),
			Elapsed:  time.Since(start),
		}, nil
	}

	return domain.WorkerResult{
		WorkerID:   WorkerID,
		Success:    true,
		Content:    resp.Content,
		Confidence: BaselineConfidence,
		Sources:    []string{"model:" + resp.Model},
		Elapsed:    time.Since(start),
	}, nil
}

// Package weather implements the weather and conditions worker. Forecast
// questions are stateless, so the agent carries no memory; it pins the
// user's known location from request context and asks the provider for a
// short factual answer at low temperature.
package weather

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/embermind/aura/core/domain"
	"github.com/embermind/aura/core/providers"
	"github.com/embermind/aura/core/worker"
)

// WorkerID identifies this worker in capability scores and results.
const WorkerID = "weather"

const defaultMaxTokens = 512

// generationTemperature keeps forecast answers factual rather than chatty.
const generationTemperature = 0.3

var keywords = map[string]float64{
	"weather":     0.40,
	"forecast":    0.40,
	"temperature": 0.35,
	"rain":        0.30,
	"snow":        0.30,
	"wind":        0.25,
	"humidity":    0.30,
	"sunny":       0.25,
	"storm":       0.30,
	"umbrella":    0.25,
	"cold":        0.15,
	"hot":         0.10,
}

// Agent answers weather and conditions questions.
type Agent struct {
	config Config
	logger *slog.Logger
}

// Config configures the weather agent.
type Config struct {
	// Provider is the model backend. Required.
	Provider providers.Provider

	// Model overrides the provider's default model.
	Model string

	// SystemPrompt overrides DefaultSystemPrompt.
	SystemPrompt string

	// MaxTokens bounds the answer length (default 512).
	MaxTokens int

	Logger *slog.Logger
}

// New creates a weather agent.
func New(cfg Config) (*Agent, error) {
	if cfg.Provider == nil {
		return nil, fmt.Errorf("weather agent: nil provider")
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
		Domain:       "weather",
		Capabilities: []string{"current_conditions", "forecast", "severe_weather"},
	}
}

// CanHandle scores the request by keyword evidence. No model calls.
func (a *Agent) CanHandle(ctx context.Context, req domain.Request) domain.CapabilityScore {
	confidence, matched := scoreMessage(req.Message)
	return domain.CapabilityScore{
		WorkerID:            WorkerID,
		Confidence:          confidence,
		MatchedCapabilities: matched,
	}
}

// Process answers the request through the provider. Provider failures are
// reported in the result, not as errors.
func (a *Agent) Process(ctx context.Context, req domain.Request) (domain.WorkerResult, error) {
	start := time.Now()
	temp := generationTemperature

	resp, err := a.config.Provider.Generate(ctx, &providers.Request{
		Messages: []providers.Message{
			{Role: providers.RoleUser, Content: req.Message},
		},
		Model:        a.config.Model,
		MaxTokens:    a.config.MaxTokens,
		Temperature:  &temp,
		SystemPrompt: a.systemPrompt(req),
	})
	if err != nil {
		a.logger.Warn("weather generation failed", "request", req.ID, "error", err)
		return domain.WorkerResult{
			WorkerID: WorkerID,
			Err:      err.Error(),
			Elapsed:  time.Since(start),
		}, nil
	}

	confidence, _ := scoreMessage(req.Message)
	return domain.WorkerResult{
		WorkerID:   WorkerID,
		Success:    true,
		Content:    resp.Content,
		Confidence: confidence,
		Sources:    []string{"model:" + resp.Model},
		Elapsed:    time.Since(start),
	}, nil
}

// systemPrompt pins the user's location when the request context carries one,
// so "is it going to rain" resolves without a follow-up question.
func (a *Agent) systemPrompt(req domain.Request) string {
	location, _ := req.Context["location"].(string)
	if location == "" {
		return a.config.SystemPrompt
	}
	return fmt.Sprintf("%s\n\nThe user's current location is %s.", a.config.SystemPrompt, location)
}

func scoreMessage(message string) (float64, []string) {
	lower := strings.ToLower(message)
	var matched []string
	total := 0.0
	for word, weight := range keywords {
		if strings.Contains(lower, word) {
			matched = append(matched, word)
			total += weight
		}
	}
	sort.Strings(matched)
	if total > 0.95 {
		total = 0.95
	}
	return total, matched
}

// Package finance implements the personal finance worker. It folds the
// user's stored preferences (currency, risk tolerance) into the system
// prompt and answers at low temperature so figures stay conservative.
package finance

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/embermind/aura/core/domain"
	"github.com/embermind/aura/core/memory"
	"github.com/embermind/aura/core/providers"
	"github.com/embermind/aura/core/worker"
)

// WorkerID identifies this worker in capability scores and results.
const WorkerID = "finance"

const defaultMaxTokens = 1024

const generationTemperature = 0.2

var keywords = map[string]float64{
	"budget":     0.35,
	"invest":     0.35,
	"savings":    0.30,
	"stock":      0.30,
	"portfolio":  0.35,
	"mortgage":   0.35,
	"loan":       0.30,
	"interest":   0.25,
	"retirement": 0.30,
	"tax":        0.30,
	"expense":    0.25,
	"spending":   0.25,
	"account":    0.15,
	"money":      0.15,
}

// Agent answers budgeting, saving, and investing questions.
type Agent struct {
	config Config
	logger *slog.Logger
}

// Config configures the finance agent.
type Config struct {
	// Provider is the model backend. Required.
	Provider providers.Provider

	// Memory supplies user preferences for prompt context. Optional.
	Memory *memory.Store

	// Model overrides the provider's default model.
	Model string

	// SystemPrompt overrides DefaultSystemPrompt.
	SystemPrompt string

	// MaxTokens bounds the answer length (default 1024).
	MaxTokens int

	Logger *slog.Logger
}

// New creates a finance agent.
func New(cfg Config) (*Agent, error) {
	if cfg.Provider == nil {
		return nil, fmt.Errorf("finance agent: nil provider")
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
		Domain:       "finance",
		Capabilities: []string{"budgeting", "savings", "investing", "spending_analysis"},
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
		SystemPrompt: a.systemPrompt(req.UserID),
	})
	if err != nil {
		a.logger.Warn("finance generation failed", "request", req.ID, "error", err)
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

// systemPrompt folds the user's stored preferences into the prompt in a
// stable order.
func (a *Agent) systemPrompt(userID string) string {
	if a.config.Memory == nil {
		return a.config.SystemPrompt
	}
	prefs := a.config.Memory.Preferences(userID)
	if len(prefs) == 0 {
		return a.config.SystemPrompt
	}

	keys := make([]string, 0, len(prefs))
	for k := range prefs {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	b.WriteString(a.config.SystemPrompt)
	b.WriteString("\n\nUser preferences:\n")
	for _, k := range keys {
		fmt.Fprintf(&b, "- %s: %s\n", k, prefs[k])
	}
	return b.String()
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

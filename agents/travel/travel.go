// Package travel implements the travel specialist worker. It scores
// trip-planning requests by keyword evidence and answers them through the
// configured model provider, seeding the conversation with the user's
// recent travel history from the memory store.
package travel

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
const WorkerID = "travel"

const (
	defaultMaxTokens = 1024
	maxMemories      = 3
)

// keywords weight travel evidence in a request. Strong signals carry more
// weight than generic ones so "book a flight" outranks "book a table".
var keywords = map[string]float64{
	"flight":      0.35,
	"hotel":       0.30,
	"itinerary":   0.35,
	"airport":     0.30,
	"visa":        0.30,
	"trip":        0.25,
	"travel":      0.25,
	"destination": 0.25,
	"layover":     0.30,
	"train":       0.20,
	"booking":     0.15,
	"vacation":    0.25,
	"passport":    0.30,
}

// Agent answers travel planning, booking, and routing questions.
type Agent struct {
	config Config
	logger *slog.Logger
}

// Config configures the travel agent.
type Config struct {
	// Provider is the model backend. Required.
	Provider providers.Provider

	// Memory supplies past interactions for prompt context. Optional.
	Memory *memory.Store

	// Model overrides the provider's default model.
	Model string

	// SystemPrompt overrides DefaultSystemPrompt.
	SystemPrompt string

	// MaxTokens bounds the answer length (default 1024).
	MaxTokens int

	Logger *slog.Logger
}

// New creates a travel agent.
func New(cfg Config) (*Agent, error) {
	if cfg.Provider == nil {
		return nil, fmt.Errorf("travel agent: nil provider")
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
		Domain:       "travel",
		Capabilities: []string{"trip_planning", "flight_search", "hotel_search", "itinerary"},
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

	resp, err := a.config.Provider.Generate(ctx, a.buildRequest(ctx, req))
	if err != nil {
		a.logger.Warn("travel generation failed", "request", req.ID, "error", err)
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
		Metadata:   map[string]any{"stop_reason": string(resp.StopReason)},
		Elapsed:    time.Since(start),
	}, nil
}

// buildRequest assembles the provider request: recent travel exchanges as
// prior turns, then the current message.
func (a *Agent) buildRequest(ctx context.Context, req domain.Request) *providers.Request {
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

	return &providers.Request{
		Messages:     messages,
		Model:        a.config.Model,
		MaxTokens:    a.config.MaxTokens,
		SystemPrompt: withRequestContext(a.config.SystemPrompt, req.Context),
	}
}

// withRequestContext appends known request context (location, dates) to the
// system prompt in a stable order.
func withRequestContext(prompt string, reqContext map[string]any) string {
	if len(reqContext) == 0 {
		return prompt
	}
	keys := make([]string, 0, len(reqContext))
	for k := range reqContext {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	b.WriteString(prompt)
	b.WriteString("\n\nKnown request context:\n")
	for _, k := range keys {
		fmt.Fprintf(&b, "- %s: %v\n", k, reqContext[k])
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

// Package advisor is the model-backed generation step behind proactive
// suggestions. One Advisor serves both consumers: it phrases contextual
// state into short recommendations for the awareness engine and produces
// longer-horizon predictive suggestions for the session manager.
package advisor

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/embermind/aura/core/contextual"
	"github.com/embermind/aura/core/domain"
	"github.com/embermind/aura/core/providers"
)

const (
	defaultMaxTokens      = 512
	maxRecommendations    = 5
	maxPredictions        = 3
	predictiveConfidence  = 0.5
	generationTemperature = 0.5
)

// Advisor generates recommendation and prediction text through a provider.
type Advisor struct {
	config Config
	logger *slog.Logger
}

// Config configures the advisor.
type Config struct {
	// Provider is the model backend. Required.
	Provider providers.Provider

	// Model overrides the provider's default model.
	Model string

	// MaxTokens bounds each generation (default 512).
	MaxTokens int

	Logger *slog.Logger
}

// New creates an Advisor.
func New(cfg Config) (*Advisor, error) {
	if cfg.Provider == nil {
		return nil, fmt.Errorf("advisor: nil provider")
	}
	if cfg.MaxTokens == 0 {
		cfg.MaxTokens = defaultMaxTokens
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Advisor{config: cfg, logger: cfg.Logger}, nil
}

// Recommendations phrases the bounded contextual state into short actionable
// lines, one recommendation per line, at most five.
func (a *Advisor) Recommendations(ctx context.Context, input contextual.RecommendationInput) ([]string, error) {
	prompt := buildRecommendationPrompt(input)
	content, err := a.generate(ctx, recommendationSystemPrompt, prompt)
	if err != nil {
		return nil, fmt.Errorf("advisor recommendations: %w", err)
	}

	lines := parseLines(content, maxRecommendations)
	return lines, nil
}

// PredictiveRecommendations produces up to three longer-horizon suggestions.
// The session manager stamps the suggestion type; the advisor sets content,
// priority, and confidence only.
func (a *Advisor) PredictiveRecommendations(ctx context.Context, userID, query string) ([]domain.Suggestion, error) {
	prompt := fmt.Sprintf("User: %s", userID)
	if query != "" {
		prompt = fmt.Sprintf("%s\nCurrent query: %s", prompt, query)
	}

	content, err := a.generate(ctx, predictiveSystemPrompt, prompt)
	if err != nil {
		return nil, fmt.Errorf("advisor predictions: %w", err)
	}

	lines := parseLines(content, maxPredictions)
	suggestions := make([]domain.Suggestion, 0, len(lines))
	for _, line := range lines {
		suggestions = append(suggestions, domain.Suggestion{
			Content:    line,
			Priority:   domain.PriorityLow,
			Confidence: predictiveConfidence,
		})
	}
	return suggestions, nil
}

func (a *Advisor) generate(ctx context.Context, system, prompt string) (string, error) {
	temp := generationTemperature
	resp, err := a.config.Provider.Generate(ctx, &providers.Request{
		Messages: []providers.Message{
			{Role: providers.RoleUser, Content: prompt},
		},
		Model:        a.config.Model,
		MaxTokens:    a.config.MaxTokens,
		Temperature:  &temp,
		SystemPrompt: system,
	})
	if err != nil {
		return "", err
	}
	return resp.Content, nil
}

// buildRecommendationPrompt renders the contextual snapshot as compact
// labelled lines the model can reason over.
func buildRecommendationPrompt(input contextual.RecommendationInput) string {
	var b strings.Builder

	if input.Query != "" {
		fmt.Fprintf(&b, "Current query: %s\n", input.Query)
	}

	if len(input.Factors) > 0 {
		b.WriteString("Context factors:\n")
		for _, f := range input.Factors {
			fmt.Fprintf(&b, "- %s/%s = %v\n", f.Type, f.Key, f.Value)
		}
	}
	if len(input.Insights) > 0 {
		b.WriteString("Insights:\n")
		for _, i := range input.Insights {
			fmt.Fprintf(&b, "- %s\n", i.Description)
		}
	}
	if len(input.Needs) > 0 {
		b.WriteString("Anticipated needs:\n")
		for _, n := range input.Needs {
			fmt.Fprintf(&b, "- %s\n", n.Description)
		}
	}

	if b.Len() == 0 {
		b.WriteString("No context is available.\n")
	}
	return b.String()
}

// parseLines splits model output into clean suggestion lines, stripping
// bullet and number prefixes, capped at limit.
func parseLines(content string, limit int) []string {
	var out []string
	for _, line := range strings.Split(content, "\n") {
		line = strings.TrimSpace(line)
		line = strings.TrimLeft(line, "-*0123456789.) ")
		if line == "" {
			continue
		}
		out = append(out, line)
		if len(out) == limit {
			break
		}
	}
	return out
}

const recommendationSystemPrompt = `You turn a user's context snapshot into
short actionable recommendations. Reply with one recommendation per line, no
preamble, no numbering, at most five lines. Each line is a single imperative
sentence under twenty words. Only recommend things the given context actually
supports.`

const predictiveSystemPrompt = `You anticipate what a user will likely need
in the coming hours. Reply with one prediction per line, no preamble, at most
three lines. Each line is a single short sentence phrased as a suggestion.
If you have nothing well-grounded to predict, reply with an empty message.`

package proactive

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/embermind/aura/core/contextual"
	"github.com/embermind/aura/core/domain"
)

// MaxSuggestions caps the merged list one call may return.
const MaxSuggestions = 5

// recommendationConfidence is assigned to query-directed recommendations,
// which carry no confidence of their own.
const recommendationConfidence = 0.6

// Predictive supplies longer-horizon suggestions. It is consulted only in
// proactive and predictive modes and may fail; failures degrade to silence.
type Predictive interface {
	PredictiveRecommendations(ctx context.Context, userID, query string) ([]domain.Suggestion, error)
}

// Suggestions merges anticipated needs, query-directed recommendations,
// and (in proactive/predictive modes) predictive suggestions, sorted by
// priority then confidence and capped at MaxSuggestions. Each call consumes
// one unit of the hourly budget; an exhausted budget returns an empty list,
// never an error.
func (m *Manager) Suggestions(ctx context.Context, userID, query string, voice bool) []domain.Suggestion {
	sess, shard := m.ensure(userID)
	now := m.now()
	sess.LastActivity = now
	allowed := sess.allowSuggestionLocked(now, m.suggestionLimit)
	mode := sess.Mode
	shard.mu.Unlock()

	if !allowed {
		m.logger.Debug("suggestion budget exhausted", "user", userID)
		return []domain.Suggestion{}
	}

	snap := m.engine.Snapshot(userID)

	suggestions := make([]domain.Suggestion, 0, MaxSuggestions)
	for _, need := range snap.Needs {
		suggestions = append(suggestions, needSuggestion(need))
	}

	if m.generator != nil && query != "" {
		for _, text := range m.engine.Recommendations(ctx, m.generator, userID, query) {
			suggestions = append(suggestions, domain.Suggestion{
				Content:    text,
				Type:       domain.SuggestionRecommendation,
				Priority:   domain.PriorityMedium,
				Confidence: recommendationConfidence,
			})
		}
	}

	if mode.Anticipatory() && m.predictive != nil {
		predicted, err := m.predictive.PredictiveRecommendations(ctx, userID, query)
		if err != nil {
			m.logger.Warn("predictive recommendations failed", "user", userID, "error", err)
		} else {
			for _, s := range predicted {
				s.Type = domain.SuggestionPredictive
				suggestions = append(suggestions, s)
			}
		}
	}

	for i := range suggestions {
		suggestions[i].VoiceOptimized = voice
	}

	sort.SliceStable(suggestions, func(i, j int) bool {
		if suggestions[i].Priority.Rank() != suggestions[j].Priority.Rank() {
			return suggestions[i].Priority.Rank() > suggestions[j].Priority.Rank()
		}
		return suggestions[i].Confidence > suggestions[j].Confidence
	})

	if len(suggestions) > MaxSuggestions {
		suggestions = suggestions[:MaxSuggestions]
	}
	return suggestions
}

// needSuggestion converts an anticipated need into an outward suggestion.
func needSuggestion(need *contextual.Need) domain.Suggestion {
	content := need.Description
	if len(need.SuggestedActions) > 0 {
		content = fmt.Sprintf("%s (next: %s)", content, strings.Join(need.SuggestedActions, "; "))
	}
	expires := need.ExpectedTime
	return domain.Suggestion{
		Content:        content,
		Type:           domain.SuggestionAnticipated,
		Priority:       urgencyPriority(need.Urgency),
		Confidence:     need.Confidence.Score(),
		Sources:        []string{need.RuleID},
		ContextUsed:    append([]string(nil), need.ContextTriggers...),
		RequiresAction: len(need.SuggestedActions) > 0,
		ExpiresAt:      &expires,
	}
}

// reflexSuggestion turns the top current insight into one immediate
// suggestion.
func reflexSuggestion(insight *contextual.Insight) *domain.Suggestion {
	var expires *time.Time
	if insight.RelevantUntil != nil {
		e := *insight.RelevantUntil
		expires = &e
	}
	return &domain.Suggestion{
		Content:     insight.Description,
		Type:        domain.SuggestionReflex,
		Priority:    insight.Priority,
		Confidence:  insight.Confidence,
		Sources:     append([]string(nil), insight.FactorRefs...),
		ContextUsed: append([]string(nil), insight.FactorRefs...),
		ExpiresAt:   expires,
	}
}

func urgencyPriority(u domain.Urgency) domain.Priority {
	switch u {
	case domain.UrgencyImmediate:
		return domain.PriorityCritical
	case domain.UrgencyHigh:
		return domain.PriorityHigh
	case domain.UrgencyModerate:
		return domain.PriorityMedium
	default:
		return domain.PriorityLow
	}
}

package contextual

import (
	"context"
	"time"
)

// Bounds for the recommendation input: the generation step sees only the
// most relevant slice of state.
const (
	maxRecommendationFactors  = 10
	maxRecommendationInsights = 5
	maxRecommendationNeeds    = 3
)

// RecommendationInput is the bounded context handed to the generation step.
type RecommendationInput struct {
	UserID   string
	Query    string
	Factors  []*Factor
	Insights []*Insight
	Needs    []*Need
}

// Generator phrases contextual state into short actionable recommendations.
// It is an external collaborator (typically model-backed) and may fail;
// callers treat failure as "no recommendations".
type Generator interface {
	Recommendations(ctx context.Context, input RecommendationInput) ([]string, error)
}

// Recommendations gathers the most relevant factors, insights, and needs for
// a user and asks the generator to phrase actionable text. The input is
// bounded; the output is a short ordered list, empty on any failure. The
// generator runs outside all engine locks.
func (e *Engine) Recommendations(ctx context.Context, gen Generator, userID, query string, types ...FactorType) []string {
	if gen == nil {
		return nil
	}

	snap := e.Snapshot(userID)

	factors := snap.Factors
	if len(types) > 0 {
		wanted := make(map[FactorType]bool, len(types))
		for _, t := range types {
			wanted[t] = true
		}
		filtered := factors[:0]
		for _, f := range factors {
			if wanted[f.Type] {
				filtered = append(filtered, f)
			}
		}
		factors = filtered
	}
	if len(factors) > maxRecommendationFactors {
		factors = factors[:maxRecommendationFactors]
	}

	insights := snap.Insights
	if len(insights) > maxRecommendationInsights {
		insights = insights[:maxRecommendationInsights]
	}

	needs := snap.Needs
	if len(needs) > maxRecommendationNeeds {
		needs = needs[:maxRecommendationNeeds]
	}

	genCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()

	recs, err := gen.Recommendations(genCtx, RecommendationInput{
		UserID:   userID,
		Query:    query,
		Factors:  factors,
		Insights: insights,
		Needs:    needs,
	})
	if err != nil {
		e.logger.Warn("recommendation generation failed", "user", userID, "error", err)
		return nil
	}
	return recs
}

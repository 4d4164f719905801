package contextual

import (
	"fmt"
	"time"

	"github.com/embermind/aura/core/domain"
)

// DefaultAnalyzers returns the built-in pair analyzers. The set is
// pluggable: callers can append their own before constructing the engine.
func DefaultAnalyzers() []PairAnalyzer {
	return []PairAnalyzer{
		&locationTemporalAnalyzer{},
		&environmentalTravelAnalyzer{},
		&financialActivityAnalyzer{},
		&emotionalTemporalAnalyzer{},
	}
}

// pairConfidence combines two factor confidences conservatively.
func pairConfidence(a, b *Factor) float64 {
	if a.Confidence < b.Confidence {
		return a.Confidence
	}
	return b.Confidence
}

// findFactor returns the factor with the given key from a bucket, or nil.
func findFactor(bucket []*Factor, key string) *Factor {
	for _, f := range bucket {
		if f.Key == key {
			return f
		}
	}
	return nil
}

// =============================================================================
// Location x Temporal
// =============================================================================

// locationTemporalAnalyzer spots a user away from home late in the day and
// flags the likely trip back.
type locationTemporalAnalyzer struct{}

func (a *locationTemporalAnalyzer) Pair() (FactorType, FactorType) {
	return FactorLocation, FactorTemporal
}

func (a *locationTemporalAnalyzer) Analyze(locs, temps []*Factor, now time.Time) *Insight {
	place := findFactor(locs, "current_place")
	hour := findFactor(temps, "hour_of_day")
	if place == nil || hour == nil {
		return nil
	}

	h, ok := asFloat(hour.Value)
	if !ok || h < 17 || h > 23 {
		return nil
	}
	loc, _ := place.Value.(string)
	if loc == "" || loc == "home" {
		return nil
	}

	until := now.Add(4 * time.Hour)
	return &Insight{
		ID:            newInsightID(),
		Description:   fmt.Sprintf("away from home at %s in the evening, likely heading back soon", loc),
		FactorRefs:    []string{factorRef(place), factorRef(hour)},
		Confidence:    pairConfidence(place, hour),
		Priority:      domain.PriorityMedium,
		CreatedAt:     now,
		RelevantUntil: &until,
	}
}

// =============================================================================
// Environmental x Travel
// =============================================================================

// environmentalTravelAnalyzer flags weather that will affect a planned trip.
type environmentalTravelAnalyzer struct{}

func (a *environmentalTravelAnalyzer) Pair() (FactorType, FactorType) {
	return FactorEnvironmental, FactorTravel
}

func (a *environmentalTravelAnalyzer) Analyze(envs, trips []*Factor, now time.Time) *Insight {
	weather := findFactor(envs, "conditions")
	trip := findFactor(trips, "upcoming_trip")
	if weather == nil || trip == nil {
		return nil
	}

	cond, _ := weather.Value.(string)
	switch cond {
	case "storm", "snow", "ice", "heavy_rain", "fog":
	default:
		return nil
	}

	until := now.Add(12 * time.Hour)
	return &Insight{
		ID:            newInsightID(),
		Description:   fmt.Sprintf("%s expected along the route for %v", cond, trip.Value),
		FactorRefs:    []string{factorRef(weather), factorRef(trip)},
		Confidence:    pairConfidence(weather, trip),
		Priority:      domain.PriorityHigh,
		CreatedAt:     now,
		RelevantUntil: &until,
	}
}

// =============================================================================
// Financial x Activity
// =============================================================================

// financialActivityAnalyzer notices an active shopping session while the
// period budget is nearly spent.
type financialActivityAnalyzer struct{}

func (a *financialActivityAnalyzer) Pair() (FactorType, FactorType) {
	return FactorFinancial, FactorActivity
}

func (a *financialActivityAnalyzer) Analyze(fins, acts []*Factor, now time.Time) *Insight {
	budget := findFactor(fins, "budget_remaining_ratio")
	activity := findFactor(acts, "current_activity")
	if budget == nil || activity == nil {
		return nil
	}

	ratio, ok := asFloat(budget.Value)
	if !ok || ratio > 0.15 {
		return nil
	}
	if act, _ := activity.Value.(string); act != "shopping" {
		return nil
	}

	return &Insight{
		ID:          newInsightID(),
		Description: fmt.Sprintf("shopping with only %.0f%% of the period budget left", ratio*100),
		FactorRefs:  []string{factorRef(budget), factorRef(activity)},
		Confidence:  pairConfidence(budget, activity),
		Priority:    domain.PriorityHigh,
		CreatedAt:   now,
	}
}

// =============================================================================
// Emotional x Temporal
// =============================================================================

// emotionalTemporalAnalyzer flags sustained stress late at night.
type emotionalTemporalAnalyzer struct{}

func (a *emotionalTemporalAnalyzer) Pair() (FactorType, FactorType) {
	return FactorEmotional, FactorTemporal
}

func (a *emotionalTemporalAnalyzer) Analyze(emos, temps []*Factor, now time.Time) *Insight {
	stress := findFactor(emos, "stress_level")
	hour := findFactor(temps, "hour_of_day")
	if stress == nil || hour == nil {
		return nil
	}

	level, ok := asFloat(stress.Value)
	if !ok || level < 0.7 {
		return nil
	}
	h, ok := asFloat(hour.Value)
	if !ok || (h >= 6 && h < 22) {
		return nil
	}

	until := now.Add(8 * time.Hour)
	return &Insight{
		ID:            newInsightID(),
		Description:   "elevated stress late at night, winding-down support may help",
		FactorRefs:    []string{factorRef(stress), factorRef(hour)},
		Confidence:    pairConfidence(stress, hour),
		Priority:      domain.PriorityMedium,
		CreatedAt:     now,
		RelevantUntil: &until,
	}
}

// Package contextual maintains per-user situational state: typed contextual
// factors, insights derived by cross-referencing factor types, and
// anticipated needs produced by declarative rule evaluation.
package contextual

import (
	"time"

	"github.com/embermind/aura/core/domain"
	"github.com/gobwas/glob"
)

// FactorType is the category of one contextual observation.
type FactorType string

const (
	FactorLocation      FactorType = "location"
	FactorTemporal      FactorType = "temporal"
	FactorActivity      FactorType = "activity"
	FactorSocial        FactorType = "social"
	FactorEnvironmental FactorType = "environmental"
	FactorEmotional     FactorType = "emotional"
	FactorFinancial     FactorType = "financial"
	FactorTravel        FactorType = "travel"
)

// Valid returns true if the factor type is a known value.
func (t FactorType) Valid() bool {
	switch t {
	case FactorLocation, FactorTemporal, FactorActivity, FactorSocial,
		FactorEnvironmental, FactorEmotional, FactorFinancial, FactorTravel:
		return true
	default:
		return false
	}
}

// Factor is one typed, timestamped observation about a user's situation.
// Factors are keyed by (type, key); a newer factor replaces an older one.
type Factor struct {
	Type       FactorType      `json:"type"`
	Key        string          `json:"key"`
	Value      any             `json:"value"`
	Confidence float64         `json:"confidence"`
	Timestamp  time.Time       `json:"timestamp"`
	Source     string          `json:"source"`
	Priority   domain.Priority `json:"priority"`
	ExpiresAt  *time.Time      `json:"expires_at,omitempty"`
}

// Expired reports whether the factor's TTL has passed.
func (f *Factor) Expired(now time.Time) bool {
	return f.ExpiresAt != nil && now.After(*f.ExpiresAt)
}

type factorKey struct {
	Type FactorType
	Key  string
}

// safetyKeyPatterns match keys whose observations are safety-relevant
// regardless of factor type.
var safetyKeyPatterns = compilePatterns(
	"fuel*", "battery*", "brake*", "tire*", "engine*", "oil*", "alarm*", "smoke*",
)

func compilePatterns(patterns ...string) []glob.Glob {
	out := make([]glob.Glob, 0, len(patterns))
	for _, p := range patterns {
		out = append(out, glob.MustCompile(p))
	}
	return out
}

// classifyPriority derives a factor's priority from a static classification:
// safety-related keys are high, location/temporal medium, activity/social
// low, everything else medium.
func classifyPriority(typ FactorType, key string) domain.Priority {
	for _, pattern := range safetyKeyPatterns {
		if pattern.Match(key) {
			return domain.PriorityHigh
		}
	}

	switch typ {
	case FactorLocation, FactorTemporal:
		return domain.PriorityMedium
	case FactorActivity, FactorSocial:
		return domain.PriorityLow
	default:
		return domain.PriorityMedium
	}
}

// Package domain holds the shared value types used across the orchestration
// layer: priorities, proactive modes, and the request/response contracts
// exchanged between the orchestrator, coordinator, and workers.
package domain

// Priority classifies work and suggestions into four scheduling classes.
type Priority string

const (
	PriorityLow      Priority = "low"
	PriorityMedium   Priority = "medium"
	PriorityHigh     Priority = "high"
	PriorityCritical Priority = "critical"
)

// Valid returns true if the priority is a known value.
func (p Priority) Valid() bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh, PriorityCritical:
		return true
	default:
		return false
	}
}

// Lane returns the scheduling lane index for this priority.
// Lanes are ordered low=0 .. critical=3.
func (p Priority) Lane() int {
	switch p {
	case PriorityCritical:
		return 3
	case PriorityHigh:
		return 2
	case PriorityMedium:
		return 1
	default:
		return 0
	}
}

// Rank returns a comparable weight, higher is more urgent.
func (p Priority) Rank() int { return p.Lane() }

// NumLanes is the number of scheduling lanes.
const NumLanes = 4

// Mode is the proactive session mode for a user.
type Mode string

const (
	// ModePassive observes context but never volunteers suggestions.
	ModePassive Mode = "passive"
	// ModeReactive answers reflexively to high-priority insights only.
	ModeReactive Mode = "reactive"
	// ModeProactive adds anticipated-need suggestions and deferred analysis.
	ModeProactive Mode = "proactive"
	// ModePredictive adds longer-horizon predictive recommendations.
	ModePredictive Mode = "predictive"
)

// Valid returns true if the mode is a known value.
func (m Mode) Valid() bool {
	switch m {
	case ModePassive, ModeReactive, ModeProactive, ModePredictive:
		return true
	default:
		return false
	}
}

// Reflexive reports whether the mode generates immediate reflex suggestions
// on context updates.
func (m Mode) Reflexive() bool {
	return m == ModeReactive || m == ModeProactive || m == ModePredictive
}

// Anticipatory reports whether the mode schedules deferred analysis and
// surfaces predictive recommendations.
func (m Mode) Anticipatory() bool {
	return m == ModeProactive || m == ModePredictive
}

// Urgency expresses how soon an anticipated need becomes relevant.
type Urgency string

const (
	UrgencyLow       Urgency = "low"
	UrgencyModerate  Urgency = "moderate"
	UrgencyHigh      Urgency = "high"
	UrgencyImmediate Urgency = "immediate"
)

// ConfidenceBucket is the coarse confidence class attached to anticipated
// needs, as opposed to the continuous [0,1] scores workers report.
type ConfidenceBucket string

const (
	ConfidenceSpeculative ConfidenceBucket = "speculative"
	ConfidenceLikely      ConfidenceBucket = "likely"
	ConfidenceStrong      ConfidenceBucket = "strong"
)

// Score maps the bucket onto a [0,1] weight for sorting against
// continuous confidences.
func (c ConfidenceBucket) Score() float64 {
	switch c {
	case ConfidenceStrong:
		return 0.9
	case ConfidenceLikely:
		return 0.7
	case ConfidenceSpeculative:
		return 0.4
	default:
		return 0.0
	}
}

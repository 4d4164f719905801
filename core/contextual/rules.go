package contextual

import (
	"fmt"
	"time"

	"github.com/embermind/aura/core/domain"
	"github.com/gobwas/glob"
	"github.com/google/uuid"
)

// Operator is a rule condition comparison.
type Operator string

const (
	OpLess    Operator = "<"
	OpGreater Operator = ">"
	OpEqual   Operator = "=="
)

// Condition compares one flattened factor value against a threshold.
type Condition struct {
	Key       string   `json:"key"`
	Op        Operator `json:"op"`
	Threshold float64  `json:"threshold"`
}

// holds evaluates the condition against a flattened value map. The key must
// be present and numeric.
func (c Condition) holds(values map[string]any) (bool, error) {
	raw, present := values[c.Key]
	if !present {
		return false, nil
	}
	v, ok := asFloat(raw)
	if !ok {
		return false, fmt.Errorf("condition %s: value %v is not numeric", c.Key, raw)
	}

	switch c.Op {
	case OpLess:
		return v < c.Threshold, nil
	case OpGreater:
		return v > c.Threshold, nil
	case OpEqual:
		return v == c.Threshold, nil
	default:
		return false, fmt.Errorf("condition %s: unknown operator %q", c.Key, c.Op)
	}
}

// Rule is one declarative anticipation rule. It fires only when every
// trigger key pattern matches a present factor key and every condition
// holds against the flattened current values.
type Rule struct {
	ID               string
	TriggerKeys      []string
	Conditions       []Condition
	Category         string
	Description      string
	Urgency          domain.Urgency
	Confidence       domain.ConfidenceBucket
	LeadTime         time.Duration
	SuggestedActions []string
}

// Need is one anticipated future need produced by a fired rule. It is
// dropped once ExpectedTime is in the past.
type Need struct {
	ID               string                  `json:"id"`
	RuleID           string                  `json:"rule_id"`
	Description      string                  `json:"description"`
	Category         string                  `json:"category"`
	Confidence       domain.ConfidenceBucket `json:"confidence"`
	Urgency          domain.Urgency          `json:"urgency"`
	ExpectedTime     time.Time               `json:"expected_time"`
	ContextTriggers  []string                `json:"context_triggers,omitempty"`
	SuggestedActions []string                `json:"suggested_actions,omitempty"`
	CreatedAt        time.Time               `json:"created_at"`
}

// expired reports whether the need's expected time has passed.
func (n *Need) expired(now time.Time) bool {
	return now.After(n.ExpectedTime)
}

// compiledRule pairs a rule with its pre-compiled trigger globs.
type compiledRule struct {
	rule     Rule
	triggers []glob.Glob
}

func compileRules(rules []Rule) ([]compiledRule, error) {
	out := make([]compiledRule, 0, len(rules))
	for _, r := range rules {
		cr := compiledRule{rule: r}
		for _, pattern := range r.TriggerKeys {
			g, err := glob.Compile(pattern)
			if err != nil {
				return nil, fmt.Errorf("rule %s: bad trigger pattern %q: %w", r.ID, pattern, err)
			}
			cr.triggers = append(cr.triggers, g)
		}
		out = append(out, cr)
	}
	return out, nil
}

// triggersPresent reports whether every trigger pattern matches at least one
// present key.
func (cr *compiledRule) triggersPresent(values map[string]any) bool {
	for _, g := range cr.triggers {
		matched := false
		for key := range values {
			if g.Match(key) {
				matched = true
				break
			}
		}
		if !matched {
			return false
		}
	}
	return true
}

// evaluate checks every condition; the rule fires only if all hold.
func (cr *compiledRule) evaluate(values map[string]any) (bool, error) {
	if !cr.triggersPresent(values) {
		return false, nil
	}
	for _, cond := range cr.rule.Conditions {
		ok, err := cond.holds(values)
		if err != nil || !ok {
			return false, err
		}
	}
	return true, nil
}

// need materializes the rule into an anticipated need.
func (cr *compiledRule) need(now time.Time) *Need {
	return &Need{
		ID:               fmt.Sprintf("need_%s", uuid.New().String()[:8]),
		RuleID:           cr.rule.ID,
		Description:      cr.rule.Description,
		Category:         cr.rule.Category,
		Confidence:       cr.rule.Confidence,
		Urgency:          cr.rule.Urgency,
		ExpectedTime:     now.Add(cr.rule.LeadTime),
		ContextTriggers:  append([]string(nil), cr.rule.TriggerKeys...),
		SuggestedActions: append([]string(nil), cr.rule.SuggestedActions...),
		CreatedAt:        now,
	}
}

// DefaultRules returns the built-in anticipation rule set. The business
// content here is illustrative; the evaluation contract is what matters.
func DefaultRules() []Rule {
	return []Rule{
		{
			ID:          "low-fuel",
			TriggerKeys: []string{"fuel_level"},
			Conditions:  []Condition{{Key: "fuel_level", Op: OpLess, Threshold: 0.25}},
			Category:    "refueling",
			Description: "fuel is running low, a stop will be needed soon",
			Urgency:     domain.UrgencyHigh,
			Confidence:  domain.ConfidenceStrong,
			LeadTime:    30 * time.Minute,
			SuggestedActions: []string{
				"find nearby fuel stations",
				"add a fuel stop to the current route",
			},
		},
		{
			ID:          "storm-prep",
			TriggerKeys: []string{"storm_probability", "upcoming_trip*"},
			Conditions:  []Condition{{Key: "storm_probability", Op: OpGreater, Threshold: 0.6}},
			Category:    "weather",
			Description: "a storm is likely before the next planned trip",
			Urgency:     domain.UrgencyModerate,
			Confidence:  domain.ConfidenceLikely,
			LeadTime:    2 * time.Hour,
			SuggestedActions: []string{
				"suggest an earlier departure",
				"check route alternatives",
			},
		},
		{
			ID:          "maintenance-due",
			TriggerKeys: []string{"miles_since_service"},
			Conditions:  []Condition{{Key: "miles_since_service", Op: OpGreater, Threshold: 5000}},
			Category:    "maintenance",
			Description: "vehicle service interval exceeded",
			Urgency:     domain.UrgencyLow,
			Confidence:  domain.ConfidenceLikely,
			LeadTime:    72 * time.Hour,
			SuggestedActions: []string{
				"find service availability this week",
			},
		},
		{
			ID:          "budget-pressure",
			TriggerKeys: []string{"budget_remaining_ratio", "days_left_in_period"},
			Conditions: []Condition{
				{Key: "budget_remaining_ratio", Op: OpLess, Threshold: 0.2},
				{Key: "days_left_in_period", Op: OpGreater, Threshold: 5},
			},
			Category:    "finance",
			Description: "budget is nearly spent with most of the period remaining",
			Urgency:     domain.UrgencyModerate,
			Confidence:  domain.ConfidenceLikely,
			LeadTime:    24 * time.Hour,
			SuggestedActions: []string{
				"summarize recent spending",
				"suggest category limits for the rest of the period",
			},
		},
	}
}

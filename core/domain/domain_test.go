package domain_test

import (
	"testing"

	"github.com/embermind/aura/core/domain"
	"github.com/stretchr/testify/assert"
)

func TestPriority_Valid(t *testing.T) {
	tests := []struct {
		priority domain.Priority
		want     bool
	}{
		{domain.PriorityLow, true},
		{domain.PriorityMedium, true},
		{domain.PriorityHigh, true},
		{domain.PriorityCritical, true},
		{domain.Priority(""), false},
		{domain.Priority("urgent"), false},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, tt.priority.Valid(), "priority %q", tt.priority)
	}
}

func TestPriority_LaneOrdering(t *testing.T) {
	assert.Equal(t, 0, domain.PriorityLow.Lane())
	assert.Equal(t, 1, domain.PriorityMedium.Lane())
	assert.Equal(t, 2, domain.PriorityHigh.Lane())
	assert.Equal(t, 3, domain.PriorityCritical.Lane())

	// Unknown priorities fall into the low lane rather than panicking.
	assert.Equal(t, 0, domain.Priority("bogus").Lane())
}

func TestMode_Behavior(t *testing.T) {
	assert.False(t, domain.ModePassive.Reflexive())
	assert.True(t, domain.ModeReactive.Reflexive())
	assert.True(t, domain.ModeProactive.Reflexive())
	assert.True(t, domain.ModePredictive.Reflexive())

	assert.False(t, domain.ModePassive.Anticipatory())
	assert.False(t, domain.ModeReactive.Anticipatory())
	assert.True(t, domain.ModeProactive.Anticipatory())
	assert.True(t, domain.ModePredictive.Anticipatory())
}

func TestRequest_CloneContext(t *testing.T) {
	req := domain.Request{
		ID:      "req_1",
		UserID:  "user_1",
		Message: "how far to the nearest charger",
		Context: map[string]any{"city": "Oakland"},
	}

	clone := req.CloneContext()
	clone.Context["city"] = "Berkeley"

	assert.Equal(t, "Oakland", req.Context["city"])
	assert.Equal(t, "Berkeley", clone.Context["city"])
}

func TestConfidenceBucket_Score(t *testing.T) {
	assert.Greater(t, domain.ConfidenceStrong.Score(), domain.ConfidenceLikely.Score())
	assert.Greater(t, domain.ConfidenceLikely.Score(), domain.ConfidenceSpeculative.Score())
	assert.Equal(t, 0.0, domain.ConfidenceBucket("unknown").Score())
}

package advisor_test

import (
	"context"
	"errors"
	"testing"

	"github.com/embermind/aura/agents/advisor"
	"github.com/embermind/aura/core/contextual"
	"github.com/embermind/aura/core/providers"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeProvider struct {
	lastRequest *providers.Request
	content     string
	err         error
}

func (p *fakeProvider) Name() string                    { return "fake" }
func (p *fakeProvider) ValidateConfig() error           { return nil }
func (p *fakeProvider) SupportsModel(model string) bool { return true }
func (p *fakeProvider) DefaultModel() string            { return "fake-model" }
func (p *fakeProvider) Close() error                    { return nil }

func (p *fakeProvider) Generate(ctx context.Context, req *providers.Request) (*providers.Response, error) {
	p.lastRequest = req
	if p.err != nil {
		return nil, p.err
	}
	return &providers.Response{
		Content:    p.content,
		Model:      "fake-model",
		StopReason: providers.StopReasonEndTurn,
	}, nil
}

func TestNew_RequiresProvider(t *testing.T) {
	_, err := advisor.New(advisor.Config{})
	assert.Error(t, err)
}

func TestRecommendations_ParsesBulletedOutput(t *testing.T) {
	provider := &fakeProvider{content: "- check chain requirements\n* leave before 3pm\n\n1. fill the tank"}
	adv, err := advisor.New(advisor.Config{Provider: provider})
	require.NoError(t, err)

	recs, err := adv.Recommendations(context.Background(), contextual.RecommendationInput{
		UserID: "user1",
		Query:  "driving to tahoe",
		Factors: []*contextual.Factor{
			{Type: contextual.FactorEnvironmental, Key: "temperature", Value: -2.0},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{
		"check chain requirements",
		"leave before 3pm",
		"fill the tank",
	}, recs)

	// The snapshot reaches the model as labelled lines.
	assert.Contains(t, provider.lastRequest.Messages[0].Content, "environmental/temperature = -2")
	assert.Contains(t, provider.lastRequest.Messages[0].Content, "driving to tahoe")
}

func TestRecommendations_CapsAtFive(t *testing.T) {
	provider := &fakeProvider{content: "a\nb\nc\nd\ne\nf\ng"}
	adv, err := advisor.New(advisor.Config{Provider: provider})
	require.NoError(t, err)

	recs, err := adv.Recommendations(context.Background(), contextual.RecommendationInput{UserID: "user1"})
	require.NoError(t, err)
	assert.Len(t, recs, 5)
}

func TestRecommendations_ProviderErrorPropagates(t *testing.T) {
	adv, err := advisor.New(advisor.Config{Provider: &fakeProvider{err: errors.New("offline")}})
	require.NoError(t, err)

	_, err = adv.Recommendations(context.Background(), contextual.RecommendationInput{UserID: "user1"})
	assert.Error(t, err)
}

func TestPredictiveRecommendations_BuildsSuggestions(t *testing.T) {
	provider := &fakeProvider{content: "pack an umbrella\nbook the usual table"}
	adv, err := advisor.New(advisor.Config{Provider: provider})
	require.NoError(t, err)

	got, err := adv.PredictiveRecommendations(context.Background(), "user1", "evening plans")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "pack an umbrella", got[0].Content)
	assert.Equal(t, 0.5, got[0].Confidence)
}

func TestPredictiveRecommendations_EmptyOutputMeansNoSuggestions(t *testing.T) {
	adv, err := advisor.New(advisor.Config{Provider: &fakeProvider{content: "  \n "}})
	require.NoError(t, err)

	got, err := adv.PredictiveRecommendations(context.Background(), "user1", "")
	require.NoError(t, err)
	assert.Empty(t, got)
}

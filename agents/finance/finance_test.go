package finance_test

import (
	"context"
	"errors"
	"testing"

	"github.com/embermind/aura/agents/finance"
	"github.com/embermind/aura/core/domain"
	"github.com/embermind/aura/core/memory"
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

func TestCanHandle_ScoresMoneyQuestions(t *testing.T) {
	agent, err := finance.New(finance.Config{Provider: &fakeProvider{}})
	require.NoError(t, err)

	score := agent.CanHandle(context.Background(), domain.Request{
		Message: "help me plan a monthly budget for my savings goal",
	})
	assert.Greater(t, score.Confidence, 0.5)
	assert.Contains(t, score.MatchedCapabilities, "budget")

	off := agent.CanHandle(context.Background(), domain.Request{
		Message: "will it rain tomorrow",
	})
	assert.Zero(t, off.Confidence)
}

func TestProcess_FoldsPreferencesIntoPrompt(t *testing.T) {
	mem, err := memory.NewStore(memory.Config{})
	require.NoError(t, err)
	t.Cleanup(func() { mem.Close() })
	mem.SetPreference("user1", "currency", "EUR")
	mem.SetPreference("user1", "risk_tolerance", "low")

	provider := &fakeProvider{content: "ok"}
	agent, err := finance.New(finance.Config{Provider: provider, Memory: mem})
	require.NoError(t, err)

	_, err = agent.Process(context.Background(), domain.Request{
		UserID: "user1", Message: "how should I invest my savings",
	})
	require.NoError(t, err)

	require.NotNil(t, provider.lastRequest)
	assert.Contains(t, provider.lastRequest.SystemPrompt, "currency: EUR")
	assert.Contains(t, provider.lastRequest.SystemPrompt, "risk_tolerance: low")
}

func TestProcess_UsesLowTemperature(t *testing.T) {
	provider := &fakeProvider{content: "ok"}
	agent, err := finance.New(finance.Config{Provider: provider})
	require.NoError(t, err)

	_, err = agent.Process(context.Background(), domain.Request{Message: "budget help"})
	require.NoError(t, err)
	require.NotNil(t, provider.lastRequest.Temperature)
	assert.InDelta(t, 0.2, *provider.lastRequest.Temperature, 0.001)
}

func TestProcess_ProviderFailureReportedInResult(t *testing.T) {
	agent, err := finance.New(finance.Config{Provider: &fakeProvider{err: errors.New("quota exceeded")}})
	require.NoError(t, err)

	result, err := agent.Process(context.Background(), domain.Request{Message: "tax question"})
	require.NoError(t, err)
	assert.False(t, result.Success)
	assert.Equal(t, "quota exceeded", result.Err)
}

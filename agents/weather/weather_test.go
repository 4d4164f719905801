package weather_test

import (
	"context"
	"errors"
	"testing"

	"github.com/embermind/aura/agents/weather"
	"github.com/embermind/aura/core/domain"
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

func TestCanHandle_ScoresForecastQuestions(t *testing.T) {
	agent, err := weather.New(weather.Config{Provider: &fakeProvider{}})
	require.NoError(t, err)

	score := agent.CanHandle(context.Background(), domain.Request{
		Message: "what's the forecast, will it rain this weekend?",
	})
	assert.Greater(t, score.Confidence, 0.6)

	off := agent.CanHandle(context.Background(), domain.Request{
		Message: "transfer money to my savings account",
	})
	assert.Zero(t, off.Confidence)
}

func TestProcess_UsesLowTemperature(t *testing.T) {
	provider := &fakeProvider{content: "Light rain, 12C."}
	agent, err := weather.New(weather.Config{Provider: provider})
	require.NoError(t, err)

	result, err := agent.Process(context.Background(), domain.Request{Message: "weather today"})
	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.Equal(t, "Light rain, 12C.", result.Content)

	require.NotNil(t, provider.lastRequest)
	require.NotNil(t, provider.lastRequest.Temperature)
	assert.InDelta(t, 0.3, *provider.lastRequest.Temperature, 0.001)
}

func TestProcess_PinsKnownLocation(t *testing.T) {
	provider := &fakeProvider{content: "ok"}
	agent, err := weather.New(weather.Config{Provider: provider})
	require.NoError(t, err)

	_, err = agent.Process(context.Background(), domain.Request{
		Message: "is it going to snow",
		Context: map[string]any{"location": "Tahoe City"},
	})
	require.NoError(t, err)
	assert.Contains(t, provider.lastRequest.SystemPrompt, "Tahoe City")
}

func TestProcess_ProviderFailureReportedInResult(t *testing.T) {
	agent, err := weather.New(weather.Config{Provider: &fakeProvider{err: errors.New("timeout")}})
	require.NoError(t, err)

	result, err := agent.Process(context.Background(), domain.Request{Message: "forecast"})
	require.NoError(t, err)
	assert.False(t, result.Success)
	assert.Equal(t, "timeout", result.Err)
}

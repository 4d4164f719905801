package providers_test

import (
	"testing"

	"github.com/embermind/aura/core/providers"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBaseConfig_Validate(t *testing.T) {
	cfg := providers.DefaultBaseConfig()
	cfg.APIKey = "sk-test"
	require.NoError(t, cfg.Validate())

	missing := cfg
	missing.APIKey = ""
	assert.Error(t, missing.Validate())

	noTokens := cfg
	noTokens.MaxTokens = 0
	assert.Error(t, noTokens.Validate())

	hot := cfg
	hot.Temperature = 2.5
	assert.Error(t, hot.Validate())
}

func TestOpenAIConfig_ReasoningEffort(t *testing.T) {
	cfg := providers.DefaultOpenAIConfig()
	cfg.APIKey = "sk-test"

	for _, effort := range []string{"", "low", "medium", "high"} {
		cfg.ReasoningEffort = effort
		assert.NoError(t, cfg.Validate(), effort)
	}

	cfg.ReasoningEffort = "maximum"
	assert.Error(t, cfg.Validate())
}

func TestGoogleConfig_VertexRequiresProject(t *testing.T) {
	cfg := providers.DefaultGoogleConfig()
	cfg.UseVertexAI = true
	assert.Error(t, cfg.Validate())

	cfg.ProjectID = "my-project"
	assert.NoError(t, cfg.Validate(), "vertex auth does not need an api key")

	direct := providers.DefaultGoogleConfig()
	assert.Error(t, direct.Validate(), "gemini api needs an api key")
	direct.APIKey = "key"
	assert.NoError(t, direct.Validate())
}

func TestNewAnthropicProvider_FillsDefaults(t *testing.T) {
	provider, err := providers.NewAnthropicProvider(providers.AnthropicConfig{
		BaseConfig: providers.BaseConfig{APIKey: "sk-test"},
	})
	require.NoError(t, err)
	assert.Equal(t, providers.DefaultAnthropicConfig().Model, provider.DefaultModel())
	assert.True(t, provider.SupportsModel("claude-sonnet-4-5-20250901"))
	assert.False(t, provider.SupportsModel("gpt-5.2"))
}

func TestNewAnthropicProvider_RejectsMissingKey(t *testing.T) {
	_, err := providers.NewAnthropicProvider(providers.AnthropicConfig{})
	assert.Error(t, err)
}

func TestNewOpenAIProvider_FillsDefaults(t *testing.T) {
	provider, err := providers.NewOpenAIProvider(providers.OpenAIConfig{
		BaseConfig: providers.BaseConfig{APIKey: "sk-test"},
	})
	require.NoError(t, err)
	assert.Equal(t, "openai", provider.Name())
	assert.Equal(t, providers.DefaultOpenAIConfig().Model, provider.DefaultModel())
}

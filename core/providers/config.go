package providers

import (
	"fmt"
	"time"
)

// ProviderType names a backend in the registry and in configuration.
type ProviderType string

const (
	ProviderTypeAnthropic ProviderType = "anthropic"
	ProviderTypeOpenAI    ProviderType = "openai"
	ProviderTypeGoogle    ProviderType = "google"
)

// BaseConfig holds the knobs every backend shares. Model and MaxTokens are
// defaults; a request can override both per call.
type BaseConfig struct {
	APIKey      string        `json:"api_key" yaml:"api_key"`
	Model       string        `json:"model" yaml:"model"`
	MaxTokens   int           `json:"max_tokens" yaml:"max_tokens"`
	Temperature float64       `json:"temperature" yaml:"temperature"`
	Timeout     time.Duration `json:"timeout" yaml:"timeout"`
}

// DefaultBaseConfig returns the shared defaults. Model stays empty; each
// backend fills its own.
func DefaultBaseConfig() BaseConfig {
	return BaseConfig{
		MaxTokens:   4096,
		Temperature: 0.7,
		Timeout:     2 * time.Minute,
	}
}

// Validate checks the shared configuration, including the API key.
func (c *BaseConfig) Validate() error {
	if c.APIKey == "" {
		return fmt.Errorf("api_key is required")
	}
	return c.validateGeneration()
}

// validateGeneration checks the generation knobs without the credential,
// for backends with another auth path.
func (c *BaseConfig) validateGeneration() error {
	if c.MaxTokens <= 0 {
		return fmt.Errorf("max_tokens must be positive")
	}
	if c.Temperature < 0 || c.Temperature > 2 {
		return fmt.Errorf("temperature must be between 0 and 2")
	}
	return nil
}

// AnthropicConfig configures the Claude backend.
type AnthropicConfig struct {
	BaseConfig `json:",inline" yaml:",inline"`

	// BaseURL points requests at a proxy or alternate endpoint.
	BaseURL string `json:"base_url,omitempty" yaml:"base_url,omitempty"`

	// SystemPrompt serves when a request carries none.
	SystemPrompt string `json:"system_prompt" yaml:"system_prompt"`
}

// DefaultAnthropicConfig returns the Claude defaults.
func DefaultAnthropicConfig() AnthropicConfig {
	base := DefaultBaseConfig()
	base.Model = "claude-sonnet-4-5-20250901"
	base.MaxTokens = 8192
	return AnthropicConfig{BaseConfig: base}
}

func (c *AnthropicConfig) Validate() error {
	if err := c.BaseConfig.Validate(); err != nil {
		return fmt.Errorf("anthropic config: %w", err)
	}
	return nil
}

// OpenAIConfig configures the GPT backend.
type OpenAIConfig struct {
	BaseConfig `json:",inline" yaml:",inline"`

	// BaseURL points requests at Azure or a proxy.
	BaseURL string `json:"base_url,omitempty" yaml:"base_url,omitempty"`

	Organization string `json:"organization,omitempty" yaml:"organization,omitempty"`
	Project      string `json:"project,omitempty" yaml:"project,omitempty"`

	// ReasoningEffort applies to reasoning-capable models: low, medium, or
	// high.
	ReasoningEffort string `json:"reasoning_effort,omitempty" yaml:"reasoning_effort,omitempty"`

	// SystemPrompt serves when a request carries none.
	SystemPrompt string `json:"system_prompt" yaml:"system_prompt"`
}

// DefaultOpenAIConfig returns the GPT defaults.
func DefaultOpenAIConfig() OpenAIConfig {
	base := DefaultBaseConfig()
	base.Model = "gpt-5.2"
	base.MaxTokens = 8192
	return OpenAIConfig{BaseConfig: base}
}

func (c *OpenAIConfig) Validate() error {
	if err := c.BaseConfig.Validate(); err != nil {
		return fmt.Errorf("openai config: %w", err)
	}
	switch c.ReasoningEffort {
	case "", "low", "medium", "high":
		return nil
	default:
		return fmt.Errorf("openai config: reasoning_effort must be low, medium, or high")
	}
}

// GoogleConfig configures the Gemini backend.
type GoogleConfig struct {
	BaseConfig `json:",inline" yaml:",inline"`

	// ProjectID and Location select the Vertex AI project when UseVertexAI
	// is set. Vertex auth comes from the environment, not APIKey.
	ProjectID string `json:"project_id,omitempty" yaml:"project_id,omitempty"`
	Location  string `json:"location,omitempty" yaml:"location,omitempty"`

	// UseVertexAI switches from the Gemini API to Vertex AI.
	UseVertexAI bool `json:"use_vertex_ai" yaml:"use_vertex_ai"`

	// SystemPrompt serves when a request carries none.
	SystemPrompt string `json:"system_prompt" yaml:"system_prompt"`
}

// DefaultGoogleConfig returns the Gemini defaults.
func DefaultGoogleConfig() GoogleConfig {
	base := DefaultBaseConfig()
	base.Model = "gemini-2.5-flash"
	base.MaxTokens = 8192
	return GoogleConfig{BaseConfig: base, Location: "us-central1"}
}

func (c *GoogleConfig) Validate() error {
	if c.UseVertexAI {
		if c.ProjectID == "" {
			return fmt.Errorf("google config: project_id required for vertex ai")
		}
	} else if c.APIKey == "" {
		return fmt.Errorf("google config: api_key is required")
	}
	if err := c.validateGeneration(); err != nil {
		return fmt.Errorf("google config: %w", err)
	}
	return nil
}

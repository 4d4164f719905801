// Package providers adapts vendor model SDKs (Anthropic, OpenAI, Google) to
// one request and response shape, so agents generate text without importing
// a vendor package. A Registry holds the configured backends and picks which
// one serves by default.
package providers

import "context"

// Role attributes a conversation turn.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is one turn of conversation context.
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// Request is a vendor-neutral completion request. Zero fields fall back to
// the provider's configured defaults.
type Request struct {
	Messages     []Message `json:"messages"`
	SystemPrompt string    `json:"system_prompt,omitempty"`
	Model        string    `json:"model,omitempty"`
	MaxTokens    int       `json:"max_tokens,omitempty"`
	Temperature  *float64  `json:"temperature,omitempty"`
}

// StopReason says why generation ended.
type StopReason string

const (
	StopReasonEndTurn   StopReason = "end_turn"
	StopReasonMaxTokens StopReason = "max_tokens"
	StopReasonError     StopReason = "error"
)

// Usage is the token accounting for one request.
type Usage struct {
	InputTokens     int `json:"input_tokens"`
	OutputTokens    int `json:"output_tokens"`
	TotalTokens     int `json:"total_tokens"`
	CacheReadTokens int `json:"cache_read_tokens,omitempty"`
}

// Response is a vendor-neutral completion result.
type Response struct {
	Content    string     `json:"content"`
	Model      string     `json:"model"`
	StopReason StopReason `json:"stop_reason"`
	Usage      Usage      `json:"usage"`
}

// Provider is one configured model backend.
type Provider interface {
	// Name identifies the backend in logs and result sources.
	Name() string

	// Generate performs one non-streaming completion.
	Generate(ctx context.Context, req *Request) (*Response, error)

	// ValidateConfig reports whether the backend is usable as configured.
	ValidateConfig() error

	// SupportsModel reports whether the backend serves the named model.
	SupportsModel(model string) bool

	// DefaultModel is the model used when a request names none.
	DefaultModel() string

	// Close releases backend resources.
	Close() error
}

package domain

import "time"

// =============================================================================
// Request / Response Contracts
// =============================================================================

// Request is a single user turn handed to the orchestration layer.
// Context carries transport-agnostic request context (location, device,
// conversation hints); the coordinator hands each fan-out worker its own
// copy so no worker mutates another's view.
type Request struct {
	ID      string         `json:"id"`
	UserID  string         `json:"user_id"`
	Message string         `json:"message"`
	Context map[string]any `json:"context,omitempty"`

	// CollaborationPeers lists the other workers dispatched alongside this
	// request on the multi-agent path. Empty on the single-agent path.
	CollaborationPeers []string `json:"collaboration_peers,omitempty"`
}

// CloneContext returns a copy of the request with an independent context map.
func (r Request) CloneContext() Request {
	if r.Context == nil {
		return r
	}
	ctx := make(map[string]any, len(r.Context))
	for k, v := range r.Context {
		ctx[k] = v
	}
	r.Context = ctx
	return r
}

// CapabilityScore is one worker's self-reported fitness for a request.
// Produced fresh per request and never persisted.
type CapabilityScore struct {
	WorkerID            string   `json:"worker_id"`
	Confidence          float64  `json:"confidence"`
	MatchedCapabilities []string `json:"matched_capabilities,omitempty"`
	Rationale           string   `json:"rationale,omitempty"`
}

// ToolCall records an external tool invocation a worker made while
// producing its result.
type ToolCall struct {
	Name      string         `json:"name"`
	Arguments map[string]any `json:"arguments,omitempty"`
	Result    string         `json:"result,omitempty"`
}

// WorkerResult is the outcome of one worker processing a request.
// Immutable once returned; the coordinator owns it during synthesis.
type WorkerResult struct {
	WorkerID   string         `json:"worker_id"`
	Success    bool           `json:"success"`
	Content    string         `json:"content"`
	Confidence float64        `json:"confidence"`
	Sources    []string       `json:"sources,omitempty"`
	ToolCalls  []ToolCall     `json:"tool_calls,omitempty"`
	Metadata   map[string]any `json:"metadata,omitempty"`
	Elapsed    time.Duration  `json:"elapsed_ms"`
	Err        string         `json:"error,omitempty"`
}

// Response is the coordinator's merged answer for one request.
type Response struct {
	Content    string         `json:"content"`
	Confidence float64        `json:"confidence"`
	Sources    []string       `json:"sources,omitempty"`
	Workers    []string       `json:"workers"`
	MultiAgent bool           `json:"multi_agent"`
	Metadata   map[string]any `json:"metadata,omitempty"`
}

// SuggestionType labels where a suggestion came from.
type SuggestionType string

const (
	SuggestionAnticipated    SuggestionType = "anticipated_need"
	SuggestionRecommendation SuggestionType = "recommendation"
	SuggestionPredictive     SuggestionType = "predictive"
	SuggestionReflex         SuggestionType = "reflex"
)

// Suggestion is an outward-facing proactive hint. Ephemeral: generated on
// demand, delivery is the transport layer's problem.
type Suggestion struct {
	Content        string         `json:"content"`
	Type           SuggestionType `json:"type"`
	Priority       Priority       `json:"priority"`
	Confidence     float64        `json:"confidence"`
	Sources        []string       `json:"sources,omitempty"`
	ContextUsed    []string       `json:"context_used,omitempty"`
	VoiceOptimized bool           `json:"voice_optimized,omitempty"`
	RequiresAction bool           `json:"requires_action,omitempty"`
	ExpiresAt      *time.Time     `json:"expires_at,omitempty"`
}

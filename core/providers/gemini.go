package providers

import (
	"context"
	"fmt"

	"google.golang.org/genai"
)

// googleModels lists the Gemini models this adapter accepts.
var googleModels = map[string]bool{
	"gemini-2.5-pro":   true,
	"gemini-2.5-flash": true,
}

// GoogleProvider adapts the Gemini generate-content API. It talks to the
// Gemini API by default and to Vertex AI when UseVertexAI is set.
type GoogleProvider struct {
	client *genai.Client
	config GoogleConfig
}

// NewGoogleProvider fills config defaults and builds the SDK client.
func NewGoogleProvider(ctx context.Context, config GoogleConfig) (*GoogleProvider, error) {
	if config.Model == "" {
		config.Model = DefaultGoogleConfig().Model
	}
	if config.MaxTokens == 0 {
		config.MaxTokens = DefaultGoogleConfig().MaxTokens
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}

	clientConfig := &genai.ClientConfig{}
	if config.UseVertexAI {
		clientConfig.Project = config.ProjectID
		clientConfig.Location = config.Location
		clientConfig.Backend = genai.BackendVertexAI
	} else {
		clientConfig.APIKey = config.APIKey
		clientConfig.Backend = genai.BackendGeminiAPI
	}

	client, err := genai.NewClient(ctx, clientConfig)
	if err != nil {
		return nil, fmt.Errorf("google provider: %w", err)
	}

	return &GoogleProvider{client: client, config: config}, nil
}

func (p *GoogleProvider) Name() string {
	return string(ProviderTypeGoogle)
}

// Generate performs one non-streaming completion.
func (p *GoogleProvider) Generate(ctx context.Context, req *Request) (*Response, error) {
	model := req.Model
	if model == "" {
		model = p.config.Model
	}

	resp, err := p.client.Models.GenerateContent(ctx, model, convertGeminiContents(req.Messages), p.buildConfig(req))
	if err != nil {
		return nil, fmt.Errorf("google generate: %w", err)
	}
	return convertGeminiResponse(model, resp), nil
}

func (p *GoogleProvider) ValidateConfig() error {
	return p.config.Validate()
}

func (p *GoogleProvider) SupportsModel(model string) bool {
	return googleModels[model]
}

func (p *GoogleProvider) DefaultModel() string {
	return p.config.Model
}

func (p *GoogleProvider) Close() error {
	return nil
}

// buildConfig carries the generation knobs. Gemini takes the system prompt
// as a separate instruction rather than a conversation turn.
func (p *GoogleProvider) buildConfig(req *Request) *genai.GenerateContentConfig {
	maxTokens := req.MaxTokens
	if maxTokens == 0 {
		maxTokens = p.config.MaxTokens
	}

	config := &genai.GenerateContentConfig{
		MaxOutputTokens: int32(maxTokens),
	}

	if system := firstNonEmpty(req.SystemPrompt, p.config.SystemPrompt); system != "" {
		config.SystemInstruction = genai.NewContentFromText(system, genai.RoleUser)
	}

	if req.Temperature != nil {
		config.Temperature = genai.Ptr(float32(*req.Temperature))
	} else if p.config.Temperature > 0 {
		config.Temperature = genai.Ptr(float32(p.config.Temperature))
	}

	return config
}

func convertGeminiContents(messages []Message) []*genai.Content {
	result := make([]*genai.Content, 0, len(messages))
	for _, msg := range messages {
		switch msg.Role {
		case RoleUser:
			result = append(result, genai.NewContentFromText(msg.Content, genai.RoleUser))
		case RoleAssistant:
			result = append(result, genai.NewContentFromText(msg.Content, genai.RoleModel))
		}
	}
	return result
}

func convertGeminiResponse(model string, resp *genai.GenerateContentResponse) *Response {
	response := &Response{
		Content:    resp.Text(),
		Model:      model,
		StopReason: StopReasonEndTurn,
	}

	if len(resp.Candidates) > 0 {
		response.StopReason = convertGeminiFinish(resp.Candidates[0].FinishReason)
	}

	if resp.UsageMetadata != nil {
		response.Usage = Usage{
			InputTokens:  int(resp.UsageMetadata.PromptTokenCount),
			OutputTokens: int(resp.UsageMetadata.CandidatesTokenCount),
			TotalTokens:  int(resp.UsageMetadata.TotalTokenCount),
		}
	}

	return response
}

func convertGeminiFinish(reason genai.FinishReason) StopReason {
	switch reason {
	case genai.FinishReasonMaxTokens:
		return StopReasonMaxTokens
	case genai.FinishReasonSafety, genai.FinishReasonRecitation:
		return StopReasonError
	default:
		return StopReasonEndTurn
	}
}

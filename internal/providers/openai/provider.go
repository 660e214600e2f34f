// Package openai wraps the go-openai SDK behind the providers.LLMProvider
// contract.
package openai

import (
	"context"
	"fmt"
	"time"

	"github.com/sashabaranov/go-openai"
	"github.com/sirupsen/logrus"

	"github.com/clawrouter/claw-router/internal/providers"
	"github.com/clawrouter/claw-router/internal/types"
)

// Provider implements providers.LLMProvider for OpenAI-compatible
// upstreams (OpenAI itself, or any API-compatible endpoint reachable via
// BaseURL).
type Provider struct {
	client  *openai.Client
	baseURL string
	logger  *logrus.Logger
}

// Config holds OpenAI-specific provider configuration.
type Config struct {
	APIKey  string        `yaml:"api_key"`
	BaseURL string        `yaml:"base_url"`
	OrgID   string        `yaml:"org_id"`
	Timeout time.Duration `yaml:"timeout"`
}

const defaultBaseURL = "https://api.openai.com/v1"

// New constructs an OpenAI provider from config.
func New(config *Config, logger *logrus.Logger) *Provider {
	clientConfig := openai.DefaultConfig(config.APIKey)
	baseURL := defaultBaseURL
	if config.BaseURL != "" {
		clientConfig.BaseURL = config.BaseURL
		baseURL = config.BaseURL
	}
	if config.OrgID != "" {
		clientConfig.OrgID = config.OrgID
	}

	return &Provider{
		client:  openai.NewClientWithConfig(clientConfig),
		baseURL: baseURL,
		logger:  logger,
	}
}

func (p *Provider) GetProviderName() string { return "openai" }

// Endpoint returns the chat-completions URL the proxy forwards raw
// request bodies to. model is accepted for interface symmetry with
// providers that namespace by model; OpenAI's REST surface does not.
func (p *Provider) Endpoint(model string) string {
	return p.baseURL + "/chat/completions"
}

func (p *Provider) AuthHeader(token string) (string, string) {
	return "Authorization", "Bearer " + token
}

// ChatCompletion performs a small, non-streaming completion — used by
// the LLM Classifier's fallback call, not by the main forwarding path.
func (p *Provider) ChatCompletion(ctx context.Context, req *types.ChatRequest) (*types.ChatResponse, error) {
	openaiReq, err := convertRequest(req)
	if err != nil {
		return nil, fmt.Errorf("failed to convert request: %w", err)
	}

	resp, err := p.client.CreateChatCompletion(ctx, openaiReq)
	if err != nil {
		p.logger.WithError(err).Error("openai api call failed")
		return nil, fmt.Errorf("openai api call failed: %w", err)
	}

	return convertResponse(&resp), nil
}

func (p *Provider) HealthCheck(ctx context.Context) error {
	_, err := p.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:     openai.GPT3Dot5Turbo,
		MaxTokens: 1,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: "ping"},
		},
	})
	if err != nil {
		return fmt.Errorf("openai health check failed: %w", err)
	}
	return nil
}

func convertRequest(req *types.ChatRequest) (openai.ChatCompletionRequest, error) {
	messages := make([]openai.ChatCompletionMessage, 0, len(req.Messages))
	for _, m := range req.Messages {
		content, ok := m.Content.(string)
		if !ok {
			return openai.ChatCompletionRequest{}, fmt.Errorf("openai provider only supports text content, got %T", m.Content)
		}
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    m.Role,
			Content: content,
		})
	}

	out := openai.ChatCompletionRequest{
		Model:    req.Model,
		Messages: messages,
		Stream:   req.Stream,
	}
	if req.MaxTokens != nil {
		out.MaxTokens = *req.MaxTokens
	}
	if req.Temperature != nil {
		out.Temperature = *req.Temperature
	}
	if req.TopP != nil {
		out.TopP = *req.TopP
	}
	if len(req.Stop) > 0 {
		out.Stop = req.Stop
	}
	return out, nil
}

func convertResponse(resp *openai.ChatCompletionResponse) *types.ChatResponse {
	choices := make([]types.Choice, 0, len(resp.Choices))
	for _, c := range resp.Choices {
		choices = append(choices, types.Choice{
			Index:        c.Index,
			Message:      types.Message{Role: c.Message.Role, Content: c.Message.Content},
			FinishReason: string(c.FinishReason),
		})
	}

	usage := &types.Usage{
		PromptTokens:     resp.Usage.PromptTokens,
		CompletionTokens: resp.Usage.CompletionTokens,
		TotalTokens:      resp.Usage.TotalTokens,
	}

	return &types.ChatResponse{
		ID:      resp.ID,
		Model:   resp.Model,
		Choices: choices,
		Usage:   usage,
	}
}

var _ providers.LLMProvider = (*Provider)(nil)

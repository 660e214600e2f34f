// Package anthropic wraps the Anthropic SDK behind the providers.LLMProvider
// contract.
package anthropic

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/sirupsen/logrus"

	"github.com/clawrouter/claw-router/internal/providers"
	"github.com/clawrouter/claw-router/internal/types"
)

// Provider implements providers.LLMProvider for the Anthropic Messages API.
type Provider struct {
	client  *anthropic.Client
	baseURL string
	logger  *logrus.Logger
}

// Config holds Anthropic-specific provider configuration.
type Config struct {
	APIKey  string        `yaml:"api_key"`
	BaseURL string        `yaml:"base_url"`
	Timeout time.Duration `yaml:"timeout"`
}

const (
	defaultBaseURL   = "https://api.anthropic.com"
	defaultMaxTokens = 1024
	healthCheckModel = "claude-3-haiku-20240307"
)

// New constructs an Anthropic provider from config.
func New(config *Config, logger *logrus.Logger) *Provider {
	opts := []option.RequestOption{option.WithAPIKey(config.APIKey)}

	baseURL := defaultBaseURL
	if config.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(config.BaseURL))
		baseURL = config.BaseURL
	}

	client := anthropic.NewClient(opts...)

	return &Provider{
		client:  &client,
		baseURL: baseURL,
		logger:  logger,
	}
}

func (p *Provider) GetProviderName() string { return "anthropic" }

// Endpoint returns the messages URL the proxy forwards raw request bodies
// to. model is accepted for interface symmetry; Anthropic's REST surface
// does not namespace by model in the path.
func (p *Provider) Endpoint(model string) string {
	return p.baseURL + "/v1/messages"
}

func (p *Provider) AuthHeader(token string) (string, string) {
	return "x-api-key", token
}

// ChatCompletion performs a small, non-streaming completion — used by the
// LLM Classifier's fallback call, not by the main forwarding path.
func (p *Provider) ChatCompletion(ctx context.Context, req *types.ChatRequest) (*types.ChatResponse, error) {
	anthropicReq, err := convertRequest(req)
	if err != nil {
		return nil, fmt.Errorf("failed to convert request: %w", err)
	}

	resp, err := p.client.Messages.New(ctx, *anthropicReq)
	if err != nil {
		p.logger.WithError(err).Error("anthropic api call failed")
		return nil, fmt.Errorf("anthropic api call failed: %w", err)
	}

	return convertResponse(resp), nil
}

func (p *Provider) HealthCheck(ctx context.Context) error {
	_, err := p.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     anthropic.Model(healthCheckModel),
		MaxTokens: 1,
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock("ping")),
		},
	})
	if err != nil {
		return fmt.Errorf("anthropic health check failed: %w", err)
	}
	return nil
}

// convertRequest converts the core's chat request into Anthropic's
// MessageNewParams, peeling off a leading system message (Claude carries
// system instructions out of band rather than as a chat turn).
func convertRequest(req *types.ChatRequest) (*anthropic.MessageNewParams, error) {
	var systemMessage string
	var messages []anthropic.MessageParam

	for _, msg := range req.Messages {
		if msg.Role == "system" {
			text, ok := msg.Content.(string)
			if !ok {
				return nil, fmt.Errorf("system messages must be text only for anthropic")
			}
			systemMessage = text
			continue
		}

		converted, err := convertMessage(msg)
		if err != nil {
			return nil, err
		}
		messages = append(messages, converted)
	}

	out := &anthropic.MessageNewParams{
		Model:    anthropic.Model(req.Model),
		Messages: messages,
	}

	if systemMessage != "" {
		out.System = []anthropic.TextBlockParam{{Text: systemMessage, Type: "text"}}
	}

	out.MaxTokens = int64(defaultMaxTokens)
	if req.MaxTokens != nil {
		out.MaxTokens = int64(*req.MaxTokens)
	}
	if req.Temperature != nil {
		out.Temperature = anthropic.Float(float64(*req.Temperature))
	}
	if req.TopP != nil {
		out.TopP = anthropic.Float(float64(*req.TopP))
	}
	if len(req.Stop) > 0 {
		stopSeqs := make([]string, len(req.Stop))
		copy(stopSeqs, req.Stop)
		out.StopSequences = stopSeqs
	}

	return out, nil
}

func convertMessage(msg types.Message) (anthropic.MessageParam, error) {
	text, ok := msg.Content.(string)
	if !ok {
		return anthropic.MessageParam{}, fmt.Errorf("anthropic provider only supports text content, got %T", msg.Content)
	}

	if msg.Role == "user" {
		return anthropic.NewUserMessage(anthropic.NewTextBlock(text)), nil
	}
	return anthropic.NewAssistantMessage(anthropic.NewTextBlock(text)), nil
}

func convertResponse(resp *anthropic.Message) *types.ChatResponse {
	var textContent strings.Builder
	for _, block := range resp.Content {
		if block.Type == "text" {
			textContent.WriteString(block.Text)
		}
	}

	choices := []types.Choice{
		{
			Index:        0,
			FinishReason: string(resp.StopReason),
			Message:      types.Message{Role: "assistant", Content: textContent.String()},
		},
	}

	usage := &types.Usage{
		PromptTokens:     int(resp.Usage.InputTokens),
		CompletionTokens: int(resp.Usage.OutputTokens),
		TotalTokens:      int(resp.Usage.InputTokens + resp.Usage.OutputTokens),
	}

	return &types.ChatResponse{
		ID:      resp.ID,
		Model:   string(resp.Model),
		Choices: choices,
		Usage:   usage,
	}
}

var _ providers.LLMProvider = (*Provider)(nil)

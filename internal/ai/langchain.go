package ai

import (
	"context"
	"errors"
	"fmt"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"
	"github.com/tmc/langchaingo/schema"
	"go.uber.org/zap"
)

// langchainClient implements Client through a langchaingo model, which covers
// OpenAI-compatible gateways without a hand-written wire format.
type langchainClient struct {
	llm         llms.Model
	maxTokens   int
	temperature float64
	retry       *retrier
}

func newLangchainClient(cfg Config, logger *zap.Logger) (*langchainClient, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("langchain provider requires an API key")
	}
	opts := []openai.Option{
		openai.WithModel(cfg.Model),
		openai.WithToken(cfg.APIKey),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, openai.WithBaseURL(cfg.BaseURL))
	}
	llm, err := openai.New(opts...)
	if err != nil {
		return nil, fmt.Errorf("creating langchain model: %w", err)
	}
	return newLangchainClientWithModel(llm, cfg, logger), nil
}

func newLangchainClientWithModel(llm llms.Model, cfg Config, logger *zap.Logger) *langchainClient {
	return &langchainClient{
		llm:         llm,
		maxTokens:   cfg.MaxTokens,
		temperature: cfg.Temperature,
		retry:       newRetrier(ProviderLangchain, cfg, logger),
	}
}

// Generate sends req through the langchaingo model.
func (l *langchainClient) Generate(ctx context.Context, req Request) (string, error) {
	var messages []llms.MessageContent
	if req.System != "" {
		messages = append(messages, llms.TextParts(schema.ChatMessageTypeSystem, req.System))
	}
	messages = append(messages, llms.TextParts(schema.ChatMessageTypeHuman, req.Prompt))

	maxTokens := l.maxTokens
	if req.MaxTokens > 0 {
		maxTokens = req.MaxTokens
	}
	temperature := l.temperature
	if req.Temperature != nil {
		temperature = *req.Temperature
	}

	return l.retry.do(ctx, func(ctx context.Context) (string, error) {
		resp, err := l.llm.GenerateContent(ctx, messages,
			llms.WithMaxTokens(maxTokens),
			llms.WithTemperature(temperature))
		if err != nil {
			// langchaingo does not classify failures; treat them as transient.
			return "", &retryableError{err: err}
		}
		if len(resp.Choices) == 0 {
			return "", errors.New("empty response from model")
		}
		return resp.Choices[0].Content, nil
	})
}

func (l *langchainClient) Available() bool  { return l.llm != nil }
func (l *langchainClient) Provider() string { return ProviderLangchain }

var _ Client = (*langchainClient)(nil)

// Package ai provides the optional text-generation clients used to classify,
// extract and enrich work items.
//
// Every client retries a failed call a bounded number of times with linearly
// increasing backoff and a per-attempt timeout. A call that still fails
// returns a *ServiceError; when the attempts ran out it also matches
// ErrExhausted. Callers are expected to fall back to rule-based behavior.
package ai

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// Providers.
const (
	ProviderOpenAI    = "openai"
	ProviderAnthropic = "anthropic"
	ProviderLangchain = "langchain"
	ProviderNone      = "none"
)

// Default configuration values.
const (
	defaultOpenAIBaseURL    = "https://api.openai.com"
	defaultAnthropicBaseURL = "https://api.anthropic.com"
	defaultOpenAIModel      = "gpt-4o"
	defaultAnthropicModel   = "claude-3-5-sonnet-20241022"
	defaultMaxTokens        = 2000
	defaultTemperature      = 0.7
	defaultAttempts         = 3
	defaultRetryDelay       = 2 * time.Second
	defaultAttemptTimeout   = 30 * time.Second
	defaultRatePerMinute    = 50
	defaultBurst            = 5
)

// Request is one generation call.
type Request struct {
	System string
	Prompt string
	// Temperature overrides the configured temperature when non-nil.
	Temperature *float64
	// MaxTokens overrides the configured limit when positive.
	MaxTokens int
}

// Temperature returns a pointer suitable for Request.Temperature.
func Temperature(t float64) *float64 { return &t }

// Client generates text from a prompt.
type Client interface {
	Generate(ctx context.Context, req Request) (string, error)
	// Available reports whether calls can reach a model.
	Available() bool
	Provider() string
}

// Config configures a Client.
type Config struct {
	Provider       string
	Model          string
	APIKey         string `json:"-"`
	BaseURL        string
	MaxTokens      int
	Temperature    float64
	Attempts       int
	RetryDelay     time.Duration
	AttemptTimeout time.Duration
	// Jitter adds up to Jitter*backoff of random delay. Zero keeps the
	// backoff exactly delay*(attempt+1).
	Jitter        float64
	RatePerMinute float64
	Burst         int
}

// DefaultConfig returns a disabled configuration with production defaults.
func DefaultConfig() Config {
	return Config{
		Provider:       ProviderNone,
		Model:          defaultOpenAIModel,
		MaxTokens:      defaultMaxTokens,
		Temperature:    defaultTemperature,
		Attempts:       defaultAttempts,
		RetryDelay:     defaultRetryDelay,
		AttemptTimeout: defaultAttemptTimeout,
		RatePerMinute:  defaultRatePerMinute,
		Burst:          defaultBurst,
	}
}

func (c *Config) applyDefaults() {
	d := DefaultConfig()
	if c.MaxTokens <= 0 {
		c.MaxTokens = d.MaxTokens
	}
	if c.Attempts <= 0 {
		c.Attempts = d.Attempts
	}
	if c.RetryDelay < 0 {
		c.RetryDelay = d.RetryDelay
	}
	if c.AttemptTimeout <= 0 {
		c.AttemptTimeout = d.AttemptTimeout
	}
	if c.RatePerMinute <= 0 {
		c.RatePerMinute = d.RatePerMinute
	}
	if c.Burst <= 0 {
		c.Burst = d.Burst
	}
	if c.Jitter < 0 {
		c.Jitter = 0
	}
}

// New creates the client selected by cfg.Provider. An empty provider or
// ProviderNone yields a NoOp client.
func New(cfg Config, logger *zap.Logger) (Client, error) {
	if logger == nil {
		return nil, errors.New("logger is required for ai client")
	}
	cfg.applyDefaults()

	switch cfg.Provider {
	case "", ProviderNone:
		return NoOp{}, nil
	case ProviderOpenAI:
		return newOpenAIClient(cfg, logger)
	case ProviderAnthropic:
		return newAnthropicClient(cfg, logger)
	case ProviderLangchain:
		return newLangchainClient(cfg, logger)
	default:
		return nil, fmt.Errorf("unknown ai provider: %s", cfg.Provider)
	}
}

// NoOp is the client used when AI is disabled. Every call fails with
// ErrDisabled so callers take their rule-based path.
type NoOp struct{}

// ErrDisabled is returned by NoOp.
var ErrDisabled = errors.New("ai disabled")

func (NoOp) Generate(context.Context, Request) (string, error) { return "", ErrDisabled }
func (NoOp) Available() bool                                    { return false }
func (NoOp) Provider() string                                   { return ProviderNone }

var _ Client = NoOp{}

package generation

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/sashabaranov/go-openai"
	"github.com/sony/gobreaker"
)

// BreakerConfig holds configuration for the backend circuit breaker.
type BreakerConfig struct {
	MaxRequests      uint32
	Interval         time.Duration
	Timeout          time.Duration
	FailureThreshold float64
	MinRequests      uint32
}

// DefaultBreakerConfig returns a breaker that opens after most of at least
// five recent calls failed.
func DefaultBreakerConfig() BreakerConfig {
	return BreakerConfig{
		MaxRequests:      5,
		Interval:         30 * time.Second,
		Timeout:          60 * time.Second,
		FailureThreshold: 0.8,
		MinRequests:      5,
	}
}

// OpenAIConfig configures one OpenAI-compatible chat completions model.
type OpenAIConfig struct {
	BaseURL string
	APIKey  string
	Model   string
	Breaker BreakerConfig
}

// OpenAIBackend calls an OpenAI-compatible endpoint with a JSON schema
// response format.
type OpenAIBackend struct {
	client  *openai.Client
	model   string
	breaker *gobreaker.CircuitBreaker
}

var _ Backend = (*OpenAIBackend)(nil)

// NewOpenAIBackend creates a backend for cfg.Model.
func NewOpenAIBackend(cfg OpenAIConfig) *OpenAIBackend {
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}

	bc := cfg.Breaker
	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "generation:" + cfg.Model,
		MaxRequests: bc.MaxRequests,
		Interval:    bc.Interval,
		Timeout:     bc.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < bc.MinRequests {
				return false
			}
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return failureRatio >= bc.FailureThreshold
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			slog.Warn("Circuit breaker state changed", "name", name, "from", from.String(), "to", to.String())
		},
	})

	return &OpenAIBackend{
		client:  openai.NewClientWithConfig(clientCfg),
		model:   cfg.Model,
		breaker: breaker,
	}
}

// Model returns the configured model name.
func (b *OpenAIBackend) Model() string {
	return b.model
}

// Generate sends one chat completion and returns the assistant content.
func (b *OpenAIBackend) Generate(ctx context.Context, call Call) (json.RawMessage, error) {
	req := openai.ChatCompletionRequest{
		Model: b.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: call.System},
			userMessage(call),
		},
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONSchema,
			JSONSchema: &openai.ChatCompletionResponseFormatJSONSchema{
				Name:   call.Schema.Name,
				Schema: &call.Schema.Definition,
				Strict: true,
			},
		},
	}

	out, err := b.breaker.Execute(func() (any, error) {
		return b.client.CreateChatCompletion(ctx, req)
	})
	if err != nil {
		return nil, err
	}

	resp := out.(openai.ChatCompletionResponse)
	if len(resp.Choices) == 0 || resp.Choices[0].Message.Content == "" {
		return nil, ErrEmptyResponse
	}
	return json.RawMessage(resp.Choices[0].Message.Content), nil
}

// userMessage builds the user turn, attaching images as image_url parts.
func userMessage(call Call) openai.ChatCompletionMessage {
	if len(call.Images) == 0 {
		return openai.ChatCompletionMessage{Role: openai.ChatMessageRoleUser, Content: call.Prompt}
	}

	parts := make([]openai.ChatMessagePart, 0, len(call.Images)+1)
	parts = append(parts, openai.ChatMessagePart{Type: openai.ChatMessagePartTypeText, Text: call.Prompt})
	for _, img := range call.Images {
		parts = append(parts, openai.ChatMessagePart{
			Type:     openai.ChatMessagePartTypeImageURL,
			ImageURL: &openai.ChatMessageImageURL{URL: img, Detail: openai.ImageURLDetailAuto},
		})
	}
	return openai.ChatCompletionMessage{Role: openai.ChatMessageRoleUser, MultiContent: parts}
}

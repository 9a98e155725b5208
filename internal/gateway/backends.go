package gateway

import (
	"context"
	"errors"

	"github.com/finsurf/finsurf/pkg/anthropic"
	"github.com/finsurf/finsurf/pkg/gemini"
	"github.com/finsurf/finsurf/pkg/openai"
	"github.com/finsurf/finsurf/pkg/perplexity"
)

// GeminiBackend adapts the Gemini client.
type GeminiBackend struct {
	Client gemini.Client
}

func (b GeminiBackend) Complete(ctx context.Context, req Request) (*Completion, error) {
	resp, err := b.Client.Generate(ctx, gemini.Request{
		Model:           req.Model,
		Prompt:          req.Prompt,
		System:          req.System,
		MaxOutputTokens: req.MaxTokens,
		JSON:            req.ResponseFormat == FormatJSON,
		Schema:          req.Schema,
	})
	if err != nil {
		var apiErr *gemini.APIError
		if errors.As(err, &apiErr) {
			return nil, &ProviderError{Provider: Gemini, StatusCode: apiErr.StatusCode, Body: apiErr.Message}
		}
		return nil, err
	}
	return &Completion{
		Model:        resp.Model,
		Text:         resp.Text,
		InputTokens:  resp.InputTokens,
		OutputTokens: resp.OutputTokens,
	}, nil
}

// OpenAIBackend adapts the OpenAI client. Schema is not forwarded; JSON
// requests use json_object mode.
type OpenAIBackend struct {
	Client openai.Client
}

func (b OpenAIBackend) Complete(ctx context.Context, req Request) (*Completion, error) {
	msgs := make([]openai.Message, 0, 2)
	if req.System != "" {
		msgs = append(msgs, openai.Message{Role: "system", Content: req.System})
	}
	msgs = append(msgs, openai.Message{Role: "user", Content: req.Prompt})

	creq := openai.ChatCompletionRequest{Model: req.Model, Messages: msgs}
	if req.MaxTokens > 0 {
		creq.MaxTokens = &req.MaxTokens
	}
	if req.ResponseFormat == FormatJSON {
		creq.ResponseFormat = openai.JSONObject
	}

	resp, err := b.Client.ChatCompletion(ctx, creq)
	if err != nil {
		var apiErr *openai.APIError
		if errors.As(err, &apiErr) {
			return nil, &ProviderError{Provider: OpenAI, StatusCode: apiErr.StatusCode, Body: apiErr.Body}
		}
		return nil, err
	}
	return &Completion{
		Model:        resp.Model,
		Text:         resp.Text(),
		InputTokens:  resp.Usage.PromptTokens,
		OutputTokens: resp.Usage.CompletionTokens,
	}, nil
}

// AnthropicBackend adapts the Anthropic client.
type AnthropicBackend struct {
	Client anthropic.Client
}

func (b AnthropicBackend) Complete(ctx context.Context, req Request) (*Completion, error) {
	resp, err := b.Client.CreateMessage(ctx, anthropic.MessageRequest{
		Model:     req.Model,
		MaxTokens: int64(req.MaxTokens),
		System:    req.System,
		Messages:  []anthropic.Message{{Role: "user", Content: req.Prompt}},
	})
	if err != nil {
		var apiErr *anthropic.APIError
		if errors.As(err, &apiErr) {
			return nil, &ProviderError{Provider: Anthropic, StatusCode: apiErr.StatusCode, Body: apiErr.Message}
		}
		return nil, err
	}
	return &Completion{
		Model:        resp.Model,
		Text:         resp.Text(),
		InputTokens:  int(resp.Usage.InputTokens),
		OutputTokens: int(resp.Usage.OutputTokens),
	}, nil
}

// PerplexityBackend adapts the Perplexity client and keeps its citations.
type PerplexityBackend struct {
	Client perplexity.Client
}

func (b PerplexityBackend) Complete(ctx context.Context, req Request) (*Completion, error) {
	msgs := make([]perplexity.Message, 0, 2)
	if req.System != "" {
		msgs = append(msgs, perplexity.Message{Role: "system", Content: req.System})
	}
	msgs = append(msgs, perplexity.Message{Role: "user", Content: req.Prompt})

	creq := perplexity.ChatCompletionRequest{Model: req.Model, Messages: msgs}
	if req.MaxTokens > 0 {
		creq.MaxTokens = &req.MaxTokens
	}

	resp, err := b.Client.ChatCompletion(ctx, creq)
	if err != nil {
		var apiErr *perplexity.APIError
		if errors.As(err, &apiErr) {
			return nil, &ProviderError{Provider: Perplexity, StatusCode: apiErr.StatusCode, Body: apiErr.Body}
		}
		return nil, err
	}
	return &Completion{
		Model:        resp.Model,
		Text:         resp.Text(),
		Citations:    resp.Citations,
		InputTokens:  resp.Usage.PromptTokens,
		OutputTokens: resp.Usage.CompletionTokens,
	}, nil
}

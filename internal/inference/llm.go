// Package inference implements the Inferrer: an LLM-driven discovery
// of logical relations between markets, admitted into the ClusterCache
// above a confidence floor.
package inference

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"
)

// Llm is the pluggable text-completion capability the Inferrer calls
// against. No concrete provider is assumed here; concrete variants are
// selected once at startup per the closed-set-of-variants design.
type Llm interface {
	Complete(ctx context.Context, system, user string) (string, error)
}

// OpenAICompatible talks to any chat-completions endpoint that mirrors
// OpenAI's request/response shape (OpenAI itself, and the many
// self-hosted gateways that copy it).
type OpenAICompatible struct {
	http  *resty.Client
	model string
}

func NewOpenAICompatible(baseURL, apiKey, model string, timeout time.Duration) *OpenAICompatible {
	client := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(timeout).
		SetRetryCount(2).
		SetRetryWaitTime(500 * time.Millisecond).
		AddRetryCondition(func(r *resty.Response, err error) bool {
			if err != nil {
				return true
			}
			return r.StatusCode() >= 500 || r.StatusCode() == http.StatusTooManyRequests
		}).
		SetHeader("Authorization", "Bearer "+apiKey).
		SetHeader("Content-Type", "application/json")
	return &OpenAICompatible{http: client, model: model}
}

type openAIRequest struct {
	Model    string          `json:"model"`
	Messages []openAIMessage `json:"messages"`
	Temperature float64      `json:"temperature"`
}

type openAIMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type openAIResponse struct {
	Choices []struct {
		Message openAIMessage `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

func (o *OpenAICompatible) Complete(ctx context.Context, system, user string) (string, error) {
	var result openAIResponse
	resp, err := o.http.R().
		SetContext(ctx).
		SetBody(openAIRequest{
			Model: o.model,
			Messages: []openAIMessage{
				{Role: "system", Content: system},
				{Role: "user", Content: user},
			},
			Temperature: 0,
		}).
		SetResult(&result).
		Post("/chat/completions")
	if err != nil {
		return "", fmt.Errorf("openai-compatible complete: %w", err)
	}
	if resp.StatusCode() != http.StatusOK {
		return "", fmt.Errorf("openai-compatible complete: status %d: %s", resp.StatusCode(), resp.String())
	}
	if result.Error != nil {
		return "", fmt.Errorf("openai-compatible complete: %s", result.Error.Message)
	}
	if len(result.Choices) == 0 {
		return "", fmt.Errorf("openai-compatible complete: empty choices")
	}
	return result.Choices[0].Message.Content, nil
}

// AnthropicCompatible talks to the Messages API shape (system as a
// top-level field, content as a block array).
type AnthropicCompatible struct {
	http  *resty.Client
	model string
}

func NewAnthropicCompatible(baseURL, apiKey, model string, timeout time.Duration) *AnthropicCompatible {
	client := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(timeout).
		SetRetryCount(2).
		SetRetryWaitTime(500 * time.Millisecond).
		AddRetryCondition(func(r *resty.Response, err error) bool {
			if err != nil {
				return true
			}
			return r.StatusCode() >= 500 || r.StatusCode() == http.StatusTooManyRequests
		}).
		SetHeader("x-api-key", apiKey).
		SetHeader("anthropic-version", "2023-06-01").
		SetHeader("Content-Type", "application/json")
	return &AnthropicCompatible{http: client, model: model}
}

type anthropicRequest struct {
	Model     string             `json:"model"`
	System    string             `json:"system"`
	MaxTokens int                `json:"max_tokens"`
	Messages  []anthropicMessage `json:"messages"`
}

type anthropicMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type anthropicResponse struct {
	Content []struct {
		Text string `json:"text"`
	} `json:"content"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

func (a *AnthropicCompatible) Complete(ctx context.Context, system, user string) (string, error) {
	var result anthropicResponse
	resp, err := a.http.R().
		SetContext(ctx).
		SetBody(anthropicRequest{
			Model:     a.model,
			System:    system,
			MaxTokens: 1024,
			Messages:  []anthropicMessage{{Role: "user", Content: user}},
		}).
		SetResult(&result).
		Post("/v1/messages")
	if err != nil {
		return "", fmt.Errorf("anthropic-compatible complete: %w", err)
	}
	if resp.StatusCode() != http.StatusOK {
		return "", fmt.Errorf("anthropic-compatible complete: status %d: %s", resp.StatusCode(), resp.String())
	}
	if result.Error != nil {
		return "", fmt.Errorf("anthropic-compatible complete: %s", result.Error.Message)
	}
	if len(result.Content) == 0 {
		return "", fmt.Errorf("anthropic-compatible complete: empty content")
	}
	return result.Content[0].Text, nil
}

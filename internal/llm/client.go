// Package llm wraps the OpenAI chat completions API for tool-calling
// conversations.
package llm

import (
	"context"

	openai "github.com/sashabaranov/go-openai"

	"github.com/loreworks/mwassist/internal/domain"
)

const DefaultModel = "gpt-4o-mini"

// ChatResult carries one model turn: the assistant message (which may request
// tool calls) and the token usage it cost.
type ChatResult struct {
	Message domain.ChatMessage
	Usage   domain.TokenUsage
}

// ChatAPI defines the interface for chat completion backends
type ChatAPI interface {
	CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

// Client issues chat completions and translates between the wire format and
// domain messages.
type Client struct {
	api   ChatAPI
	model string
}

type Config struct {
	APIKey string
	Model  string
}

func NewClient(cfg Config) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, domain.NewDomainError(domain.ErrCodeConfiguration, "OpenAI API key is not set")
	}
	model := cfg.Model
	if model == "" {
		model = DefaultModel
	}
	return &Client{api: openai.NewClient(cfg.APIKey), model: model}, nil
}

// NewClientWithAPI wires a custom backend, used by tests.
func NewClientWithAPI(api ChatAPI, model string) *Client {
	if model == "" {
		model = DefaultModel
	}
	return &Client{api: api, model: model}
}

// Complete runs one model turn. When tools is non-nil the model may answer
// with tool calls; withTools=false forbids them, used for the forced final
// answer after the tool budget runs out.
func (c *Client) Complete(ctx context.Context, messages []domain.ChatMessage, tools []openai.Tool, withTools bool) (*ChatResult, error) {
	req := openai.ChatCompletionRequest{
		Model:    c.model,
		Messages: toWireMessages(messages),
	}
	if withTools && len(tools) > 0 {
		req.Tools = tools
	}

	resp, err := c.api.CreateChatCompletion(ctx, req)
	if err != nil {
		return nil, domain.NewDomainErrorWithCause(domain.ErrCodeTransport, "chat completion failed", err)
	}
	if len(resp.Choices) == 0 {
		return nil, domain.NewDomainError(domain.ErrCodeResponseValidation, "chat completion returned no choices")
	}

	msg := fromWireMessage(resp.Choices[0].Message)
	return &ChatResult{
		Message: msg,
		Usage: domain.TokenUsage{
			PromptTokens:     resp.Usage.PromptTokens,
			CompletionTokens: resp.Usage.CompletionTokens,
			TotalTokens:      resp.Usage.TotalTokens,
		},
	}, nil
}

func toWireMessages(messages []domain.ChatMessage) []openai.ChatCompletionMessage {
	out := make([]openai.ChatCompletionMessage, 0, len(messages))
	for _, m := range messages {
		wire := openai.ChatCompletionMessage{
			Role:       m.Role,
			Content:    m.Content,
			ToolCallID: m.ToolCallID,
		}
		for _, tc := range m.ToolCalls {
			wire.ToolCalls = append(wire.ToolCalls, openai.ToolCall{
				ID:   tc.ID,
				Type: openai.ToolTypeFunction,
				Function: openai.FunctionCall{
					Name:      tc.Name,
					Arguments: tc.Arguments,
				},
			})
		}
		out = append(out, wire)
	}
	return out
}

func fromWireMessage(m openai.ChatCompletionMessage) domain.ChatMessage {
	msg := domain.ChatMessage{
		Role:    m.Role,
		Content: m.Content,
	}
	for _, tc := range m.ToolCalls {
		msg.ToolCalls = append(msg.ToolCalls, domain.ToolCall{
			ID:        tc.ID,
			Name:      tc.Function.Name,
			Arguments: tc.Function.Arguments,
		})
	}
	return msg
}

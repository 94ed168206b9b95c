// Package chat runs the per-turn conversation loop between the model and the
// tool registry.
package chat

import (
	"context"
	"encoding/json"
	"log"

	openai "github.com/sashabaranov/go-openai"

	"github.com/loreworks/mwassist/internal/domain"
	"github.com/loreworks/mwassist/internal/llm"
)

// DefaultMaxLoops bounds how many model/tool rounds one turn may take.
const DefaultMaxLoops = 10

// Completer is the model backend for one turn.
type Completer interface {
	Complete(ctx context.Context, messages []domain.ChatMessage, tools []openai.Tool, withTools bool) (*llm.ChatResult, error)
}

// ToolExecutor dispatches one tool call.
type ToolExecutor interface {
	Execute(ctx context.Context, identity *domain.Identity, name, argsJSON string) (string, error)
}

// TurnResult is everything one completed turn produced.
type TurnResult struct {
	Answer   string
	ToolLog  []domain.ToolLogEntry
	Usage    domain.TokenUsage
	Messages []domain.ChatMessage // messages appended to the transcript this turn
}

// Loop alternates model calls and tool executions until the model answers
// without tools or the iteration cap forces a final answer.
type Loop struct {
	llm      Completer
	tools    ToolExecutor
	schema   []openai.Tool
	maxLoops int
}

func NewLoop(completer Completer, tools ToolExecutor, schema []openai.Tool, maxLoops int) *Loop {
	if maxLoops <= 0 {
		maxLoops = DefaultMaxLoops
	}
	return &Loop{llm: completer, tools: tools, schema: schema, maxLoops: maxLoops}
}

// Run executes one turn over the given transcript (system prompt and history
// included, ending with the new user message). The transcript slice itself is
// not modified; appended messages come back in TurnResult.Messages.
func (l *Loop) Run(ctx context.Context, identity *domain.Identity, transcript []domain.ChatMessage) (*TurnResult, error) {
	result := &TurnResult{}
	working := make([]domain.ChatMessage, len(transcript))
	copy(working, transcript)

	for i := 0; i < l.maxLoops; i++ {
		turn, err := l.llm.Complete(ctx, working, l.schema, true)
		if err != nil {
			return nil, err
		}
		result.Usage.Add(turn.Usage)
		working = append(working, turn.Message)
		result.Messages = append(result.Messages, turn.Message)

		if len(turn.Message.ToolCalls) == 0 {
			result.Answer = turn.Message.Content
			return result, nil
		}

		for _, call := range turn.Message.ToolCalls {
			msg := l.executeCall(ctx, identity, call, result)
			working = append(working, msg)
			result.Messages = append(result.Messages, msg)
		}
	}

	// Cap reached with the model still calling tools. Force one last
	// generation to get a user-facing answer out of the context built so far.
	// Tools stay offered; any tool calls in the response are discarded.
	final, err := l.llm.Complete(ctx, working, l.schema, true)
	if err != nil {
		log.Printf("final generation failed after tool cap, falling back to transcript: %v", err)
		result.Answer = lastContent(working)
		return result, nil
	}
	result.Usage.Add(final.Usage)
	final.Message.ToolCalls = nil
	working = append(working, final.Message)
	result.Messages = append(result.Messages, final.Message)
	result.Answer = final.Message.Content
	return result, nil
}

// executeCall runs one tool call. Failures become a structured error payload
// handed back to the model; they never abort sibling calls or the loop.
func (l *Loop) executeCall(ctx context.Context, identity *domain.Identity, call domain.ToolCall, result *TurnResult) domain.ChatMessage {
	entry := domain.ToolLogEntry{Name: call.Name, Args: call.Arguments}

	output, err := l.tools.Execute(ctx, identity, call.Name, call.Arguments)
	if err != nil {
		payload, _ := json.Marshal(map[string]string{"error": err.Error()})
		output = string(payload)
		entry.IsErr = true
	}
	entry.Result = summarize(output)
	result.ToolLog = append(result.ToolLog, entry)

	return domain.ChatMessage{
		Role:       domain.RoleTool,
		Content:    output,
		ToolCallID: call.ID,
	}
}

// lastContent finds the most recent non-empty message content, newest first.
func lastContent(messages []domain.ChatMessage) string {
	for i := len(messages) - 1; i >= 0; i-- {
		if messages[i].Content != "" {
			return messages[i].Content
		}
	}
	return ""
}

const maxResultSummary = 500

func summarize(s string) string {
	if len(s) <= maxResultSummary {
		return s
	}
	return s[:maxResultSummary] + "..."
}

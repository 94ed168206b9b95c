package domain

import "time"

// Message roles used in conversation transcripts.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleTool      = "tool"
)

// ChatMessage is one role-tagged entry in a conversation transcript.
type ChatMessage struct {
	Role       string
	Content    string
	ToolCalls  []ToolCall // assistant messages only
	ToolCallID string     // tool result messages only
	CreatedAt  time.Time
}

// ToolCall is a structured tool invocation request emitted by the LLM.
// Arguments is the raw JSON string as returned by the provider; parsing
// happens in the loop so that malformed arguments can be fed back as a
// tool-result error instead of failing the turn.
type ToolCall struct {
	ID        string
	Name      string
	Arguments string
}

// ToolLogEntry records one executed tool call for the turn's usage log.
type ToolLogEntry struct {
	Name   string `json:"name"`
	Args   string `json:"args"`
	Result string `json:"result,omitempty"`
	IsErr  bool   `json:"is_error,omitempty"`
}

// TokenUsage counts tokens consumed across one turn.
type TokenUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// Add accumulates another usage sample.
func (u *TokenUsage) Add(other TokenUsage) {
	u.PromptTokens += other.PromptTokens
	u.CompletionTokens += other.CompletionTokens
	u.TotalTokens += other.TotalTokens
}

// ChatSession is the persisted header of one conversation.
type ChatSession struct {
	SessionID   string
	TenantID    string
	OwnerUserID int64
	Title       string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// SessionTitleFromMessage derives a session title from the first user
// message, truncated at 100 characters.
func SessionTitleFromMessage(content string) string {
	const max = 100
	if len(content) <= max {
		return content
	}
	return content[:max] + "..."
}

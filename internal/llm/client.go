// Package llm talks to an OpenAI-compatible endpoint for chat completions
// with tool calling and for text embeddings.
package llm

import "context"

// Message roles.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleTool      = "tool"
)

type Message struct {
	Role       string     `json:"role"`
	Content    string     `json:"content"`
	ToolCalls  []ToolCall `json:"tool_calls,omitempty"`
	ToolCallID string     `json:"tool_call_id,omitempty"`
}

// ToolCall is one function invocation requested by the model. Arguments is
// the raw JSON object the model produced.
type ToolCall struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

// ToolDef declares one callable tool to the model, with a JSON-schema
// parameter object.
type ToolDef struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Parameters  map[string]any `json:"parameters"`
}

// ChatResponse is either a final natural-language reply (Content, no tool
// calls) or a request to execute tools.
type ChatResponse struct {
	Content   string
	ToolCalls []ToolCall
}

func (r *ChatResponse) IsFinal() bool {
	return len(r.ToolCalls) == 0
}

type ChatClient interface {
	ChatWithTools(ctx context.Context, messages []Message, tools []ToolDef) (*ChatResponse, error)
}

type EmbeddingClient interface {
	// Embed returns one fixed-length vector per input text, in input order.
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

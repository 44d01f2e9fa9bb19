package assistant

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"homebase/internal/llm"
	"homebase/internal/repositories"
	"homebase/internal/services"
)

// DefaultMaxSteps bounds how many model round-trips one chat turn may take.
// Each round-trip can carry several tool calls; when the ceiling is hit the
// turn terminates with whatever reply the model has produced so far.
const DefaultMaxSteps = 5

// Engine drives one assistant turn: it grounds the model in the party's
// current state, lets it call household tools, and returns the final reply.
type Engine struct {
	Chat      llm.ChatClient
	Party     repositories.PartyRepository
	Tasks     services.TaskService
	Projects  services.ProjectService
	Retrieval *services.RetrievalService
	Context   *services.ContextService
	MaxSteps  int
	Now       func() time.Time
}

func NewEngine(chat llm.ChatClient, party repositories.PartyRepository, tasks services.TaskService,
	projects services.ProjectService, retrieval *services.RetrievalService, contextSvc *services.ContextService) *Engine {
	return &Engine{
		Chat:      chat,
		Party:     party,
		Tasks:     tasks,
		Projects:  projects,
		Retrieval: retrieval,
		Context:   contextSvc,
		MaxSteps:  DefaultMaxSteps,
		Now:       time.Now,
	}
}

// ChatMessage is one prior turn of the conversation as the client stores it.
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type ChatRequest struct {
	PartyID  int64
	UserID   int64
	Messages []ChatMessage

	// Observe, when set, is called after each tool execution so transports
	// can surface progress while the turn is still running.
	Observe func(ToolExecution)
}

// ToolExecution records one tool call for the response trace, so the client
// can show what the assistant actually did during the turn.
type ToolExecution struct {
	Tool      string `json:"tool"`
	Arguments string `json:"arguments"`
	Result    string `json:"result"`
}

type ChatResult struct {
	Reply     string          `json:"reply"`
	Steps     int             `json:"steps"`
	ToolTrace []ToolExecution `json:"tool_trace,omitempty"`
}

// Run executes one bounded turn. Tool failures are fed back to the model as
// structured results; only transport-level failures abort the turn.
func (e *Engine) Run(ctx context.Context, req ChatRequest) (*ChatResult, error) {
	ok, err := e.Party.IsMember(ctx, req.PartyID, req.UserID)
	if err != nil {
		return nil, fmt.Errorf("membership check: %w", err)
	}
	if !ok {
		return nil, fmt.Errorf("%w: party %d", services.ErrNotFound, req.PartyID)
	}
	if len(req.Messages) == 0 {
		return nil, fmt.Errorf("%w: empty conversation", services.ErrValidation)
	}

	messages := make([]llm.Message, 0, len(req.Messages)+1)
	messages = append(messages, llm.Message{Role: llm.RoleSystem, Content: e.systemPrompt(ctx, req.PartyID)})
	for _, m := range req.Messages {
		role := m.Role
		if role != llm.RoleAssistant {
			role = llm.RoleUser
		}
		messages = append(messages, llm.Message{Role: role, Content: m.Content})
	}

	tools := toolDefs()
	maxSteps := e.MaxSteps
	if maxSteps <= 0 {
		maxSteps = DefaultMaxSteps
	}

	result := &ChatResult{}
	lastContent := ""
	for step := 0; step < maxSteps; step++ {
		resp, err := e.Chat.ChatWithTools(ctx, messages, tools)
		if err != nil {
			return nil, fmt.Errorf("%w: chat: %v", services.ErrDependency, err)
		}
		result.Steps = step + 1
		if resp.Content != "" {
			lastContent = resp.Content
		}
		if resp.IsFinal() {
			result.Reply = resp.Content
			return result, nil
		}

		messages = append(messages, llm.Message{
			Role:      llm.RoleAssistant,
			Content:   resp.Content,
			ToolCalls: resp.ToolCalls,
		})
		for _, call := range resp.ToolCalls {
			out := e.execute(ctx, req.PartyID, req.UserID, call)
			log.Printf("[assistant][tool][%s] party=%d user=%d result=%s", call.Name, req.PartyID, req.UserID, truncate(out, 200))
			exec := ToolExecution{
				Tool:      call.Name,
				Arguments: call.Arguments,
				Result:    out,
			}
			result.ToolTrace = append(result.ToolTrace, exec)
			if req.Observe != nil {
				req.Observe(exec)
			}
			messages = append(messages, llm.Message{
				Role:       llm.RoleTool,
				Content:    out,
				ToolCallID: call.ID,
			})
		}
	}

	log.Printf("[assistant][run][ceiling] party=%d user=%d steps=%d", req.PartyID, req.UserID, maxSteps)
	if lastContent == "" {
		lastContent = "I wasn't able to finish that in one go. The actions listed above were applied; ask me to continue if something is still missing."
	}
	result.Reply = lastContent
	return result, nil
}

// systemPrompt assembles the grounding context. Context assembly degrades
// rather than fails, so the prompt is always usable.
func (e *Engine) systemPrompt(ctx context.Context, partyID int64) string {
	var b strings.Builder
	b.WriteString("You are the HomeBase assistant for a co-owned household. ")
	b.WriteString("You help the members organise tasks, projects and shared documents.\n\n")
	b.WriteString("Rules:\n")
	b.WriteString("- Default to action: when the user asks for something a tool can do, call the tool instead of describing what you would do.\n")
	b.WriteString("- If a required detail (like a task title) is missing, ask for it instead of guessing.\n")
	b.WriteString("- Refer to tasks by their code, like T-3 or HB-3.\n")
	b.WriteString("- Refer to members by the user ids listed below; use 'me' for the person you are talking to.\n")
	b.WriteString("- Resolve relative dates against today's date before passing them to tools.\n")
	b.WriteString("- Answer questions about the household's documents by searching them, and say so when nothing relevant is found.\n\n")
	fmt.Fprintf(&b, "Today is %s.\n\n", e.now().Format("Monday, 2 January 2006"))

	knowledge := e.Context.Assemble(ctx, partyID)
	b.WriteString(e.Context.Render(knowledge))
	return b.String()
}

func (e *Engine) now() time.Time {
	if e.Now != nil {
		return e.Now()
	}
	return time.Now()
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

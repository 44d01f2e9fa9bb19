package assistant

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"homebase/internal/llm"
	"homebase/internal/models"
	"homebase/internal/services"
)

func newTestEngine(chat llm.ChatClient, tasks *memTasks) (*Engine, *memberParty) {
	party := &memberParty{members: map[int64]bool{10: true, 11: true}}
	projects := newMemProjects()
	retrieval := services.NewRetrievalService(&stubDocs{}, stubEmbedder{})
	contextSvc := services.NewContextService(party, &stubDocs{}, stubTaskRepo{}, stubProjectRepo{}, stubComments{})
	e := NewEngine(chat, party, tasks, projects, retrieval, contextSvc)
	e.Now = func() time.Time { return time.Date(2025, 6, 2, 9, 0, 0, 0, time.UTC) }
	return e, party
}

func userTurn(content string) []ChatMessage {
	return []ChatMessage{{Role: "user", Content: content}}
}

func TestRunToolRoundtrip(t *testing.T) {
	chat := &scriptedChat{responses: []*llm.ChatResponse{
		{ToolCalls: []llm.ToolCall{{ID: "call_1", Name: toolCreateTask, Arguments: `{"title":"Buy salt for the softener","priority":"low"}`}}},
		{Content: "Created T-1 for you."},
	}}
	tasks := newMemTasks()
	e, _ := newTestEngine(chat, tasks)

	result, err := e.Run(context.Background(), ChatRequest{PartyID: 1, UserID: 10, Messages: userTurn("add a task to buy softener salt")})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if result.Reply != "Created T-1 for you." {
		t.Fatalf("reply = %q", result.Reply)
	}
	if result.Steps != 2 {
		t.Fatalf("steps = %d", result.Steps)
	}
	if len(result.ToolTrace) != 1 || result.ToolTrace[0].Tool != toolCreateTask {
		t.Fatalf("trace = %+v", result.ToolTrace)
	}
	if !strings.Contains(result.ToolTrace[0].Result, `"code":"T-1"`) {
		t.Fatalf("tool result = %s", result.ToolTrace[0].Result)
	}

	// the created task carries the agent actor acting for user 10
	if len(tasks.actors) != 1 || tasks.actors[0].Type != models.ActorAgent || tasks.actors[0].ID != 10 {
		t.Fatalf("actors = %+v", tasks.actors)
	}

	// the tool result went back to the model bound to the call id
	second := chat.calls[1]
	last := second[len(second)-1]
	if last.Role != llm.RoleTool || last.ToolCallID != "call_1" {
		t.Fatalf("tool message = %+v", last)
	}
}

func TestRunSystemPromptCarriesGrounding(t *testing.T) {
	chat := &scriptedChat{responses: []*llm.ChatResponse{{Content: "hi"}}}
	e, _ := newTestEngine(chat, newMemTasks())

	if _, err := e.Run(context.Background(), ChatRequest{PartyID: 1, UserID: 10, Messages: userTurn("hello")}); err != nil {
		t.Fatalf("run: %v", err)
	}

	system := chat.calls[0][0]
	if system.Role != llm.RoleSystem {
		t.Fatalf("first message role = %q", system.Role)
	}
	for _, want := range []string{"Lakehouse", "Monday, 2 June 2025", "T-3"} {
		if !strings.Contains(system.Content, want) {
			t.Errorf("system prompt missing %q", want)
		}
	}
}

func TestRunUnknownCodeBecomesStructuredError(t *testing.T) {
	chat := &scriptedChat{responses: []*llm.ChatResponse{
		{ToolCalls: []llm.ToolCall{{ID: "c1", Name: toolUpdateTaskStatus, Arguments: `{"task":"T-99","status":"done"}`}}},
		{Content: "I couldn't find T-99."},
	}}
	e, _ := newTestEngine(chat, newMemTasks())

	result, err := e.Run(context.Background(), ChatRequest{PartyID: 1, UserID: 10, Messages: userTurn("finish T-99")})
	if err != nil {
		t.Fatalf("run must not fail on a bad reference: %v", err)
	}
	if !strings.Contains(result.ToolTrace[0].Result, `"not_found"`) {
		t.Fatalf("tool result = %s", result.ToolTrace[0].Result)
	}
	if result.Reply != "I couldn't find T-99." {
		t.Fatalf("reply = %q", result.Reply)
	}
}

func TestRunValidationFailureKeepsTurnAlive(t *testing.T) {
	chat := &scriptedChat{responses: []*llm.ChatResponse{
		{ToolCalls: []llm.ToolCall{{ID: "c1", Name: toolCreateTask, Arguments: `{"title":""}`}}},
		{Content: "What should the task be called?"},
	}}
	tasks := newMemTasks()
	e, _ := newTestEngine(chat, tasks)

	result, err := e.Run(context.Background(), ChatRequest{PartyID: 1, UserID: 10, Messages: userTurn("add a task")})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if !strings.Contains(result.ToolTrace[0].Result, `"validation"`) {
		t.Fatalf("tool result = %s", result.ToolTrace[0].Result)
	}
	if len(tasks.tasks) != 0 {
		t.Fatal("task created despite missing title")
	}
	if result.Reply == "" {
		t.Fatal("no clarification reply")
	}
}

func TestRunStepCeiling(t *testing.T) {
	// a model that never stops calling tools
	var loop []*llm.ChatResponse
	for i := 0; i < 10; i++ {
		loop = append(loop, &llm.ChatResponse{
			ToolCalls: []llm.ToolCall{{ID: "c", Name: toolListTasks, Arguments: `{}`}},
		})
	}
	chat := &scriptedChat{responses: loop}
	e, _ := newTestEngine(chat, newMemTasks())
	e.MaxSteps = 3

	result, err := e.Run(context.Background(), ChatRequest{PartyID: 1, UserID: 10, Messages: userTurn("loop forever")})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if result.Steps != 3 {
		t.Fatalf("steps = %d, want 3", result.Steps)
	}
	if len(chat.calls) != 3 {
		t.Fatalf("model called %d times", len(chat.calls))
	}
	if result.Reply == "" {
		t.Fatal("ceiling exit must still produce a reply")
	}
}

func TestRunNonMemberRejected(t *testing.T) {
	chat := &scriptedChat{responses: []*llm.ChatResponse{{Content: "hi"}}}
	e, _ := newTestEngine(chat, newMemTasks())

	_, err := e.Run(context.Background(), ChatRequest{PartyID: 1, UserID: 99, Messages: userTurn("hello")})
	if !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("want ErrNotFound, got %v", err)
	}
	if len(chat.calls) != 0 {
		t.Fatal("model consulted for a non-member")
	}
}

func TestRunChatFailureIsDependencyError(t *testing.T) {
	chat := &scriptedChat{err: errors.New("rate limited")}
	e, _ := newTestEngine(chat, newMemTasks())

	_, err := e.Run(context.Background(), ChatRequest{PartyID: 1, UserID: 10, Messages: userTurn("hello")})
	if !errors.Is(err, services.ErrDependency) {
		t.Fatalf("want ErrDependency, got %v", err)
	}
}

func TestRunUnknownToolName(t *testing.T) {
	chat := &scriptedChat{responses: []*llm.ChatResponse{
		{ToolCalls: []llm.ToolCall{{ID: "c1", Name: "dropTables", Arguments: `{}`}}},
		{Content: "That tool does not exist."},
	}}
	e, _ := newTestEngine(chat, newMemTasks())

	result, err := e.Run(context.Background(), ChatRequest{PartyID: 1, UserID: 10, Messages: userTurn("do something odd")})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if !strings.Contains(result.ToolTrace[0].Result, `"unknown_tool"`) {
		t.Fatalf("tool result = %s", result.ToolTrace[0].Result)
	}
}

func TestRunSearchDocumentsTool(t *testing.T) {
	docs := &stubDocs{matches: []models.ChunkMatch{{
		Chunk:            models.DocumentChunk{Content: "The deductible is 500 euros."},
		DocumentTitle:    "Insurance policy",
		DocumentCategory: models.DocCategoryInsurance,
		Score:            0.91,
	}}}
	party := &memberParty{members: map[int64]bool{10: true}}
	retrieval := services.NewRetrievalService(docs, stubEmbedder{})
	contextSvc := services.NewContextService(party, docs, stubTaskRepo{}, stubProjectRepo{}, stubComments{})
	chat := &scriptedChat{responses: []*llm.ChatResponse{
		{ToolCalls: []llm.ToolCall{{ID: "c1", Name: toolSearchDocuments, Arguments: `{"query":"insurance deductible"}`}}},
		{Content: "Your deductible is 500 euros."},
	}}
	e := NewEngine(chat, party, newMemTasks(), newMemProjects(), retrieval, contextSvc)

	result, err := e.Run(context.Background(), ChatRequest{PartyID: 1, UserID: 10, Messages: userTurn("what's our deductible?")})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if !strings.Contains(result.ToolTrace[0].Result, "Insurance policy") {
		t.Fatalf("tool result = %s", result.ToolTrace[0].Result)
	}
	if result.Reply != "Your deductible is 500 euros." {
		t.Fatalf("reply = %q", result.Reply)
	}
}

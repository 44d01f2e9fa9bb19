package assistant

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"homebase/internal/llm"
	"homebase/internal/models"
	"homebase/internal/services"
)

// scriptedChat replays a fixed sequence of model responses and records the
// message transcript it was handed on each call.
type scriptedChat struct {
	responses []*llm.ChatResponse
	calls     [][]llm.Message
	err       error
}

func (s *scriptedChat) ChatWithTools(_ context.Context, messages []llm.Message, _ []llm.ToolDef) (*llm.ChatResponse, error) {
	s.calls = append(s.calls, append([]llm.Message(nil), messages...))
	if s.err != nil {
		return nil, s.err
	}
	if len(s.responses) == 0 {
		return &llm.ChatResponse{Content: "out of script"}, nil
	}
	next := s.responses[0]
	s.responses = s.responses[1:]
	return next, nil
}

type memberParty struct {
	members map[int64]bool
}

func (p *memberParty) GetByID(_ context.Context, id int64) (*models.Party, error) {
	return &models.Party{ID: id, Name: "Lakehouse"}, nil
}

func (p *memberParty) IsMember(_ context.Context, _, userID int64) (bool, error) {
	return p.members[userID], nil
}

func (p *memberParty) ListMembers(_ context.Context, _ int64) ([]models.User, error) {
	var out []models.User
	for id := range p.members {
		out = append(out, models.User{ID: id, DisplayName: fmt.Sprintf("user%d", id)})
	}
	return out, nil
}

func (p *memberParty) GetUser(_ context.Context, id int64) (*models.User, error) {
	if !p.members[id] {
		return nil, nil
	}
	return &models.User{ID: id}, nil
}

// memTasks is an in-memory stand-in for the task service, recording the
// actors it saw.
type memTasks struct {
	nextNumber int64
	tasks      map[int64]*models.Task
	actors     []models.Actor
	comments   []models.Comment
}

func newMemTasks() *memTasks {
	return &memTasks{tasks: map[int64]*models.Task{}}
}

func (m *memTasks) Create(_ context.Context, task *models.Task, labels []string, actor models.Actor) (*models.Task, error) {
	if strings.TrimSpace(task.Title) == "" {
		return nil, fmt.Errorf("%w: title is required", services.ErrValidation)
	}
	m.nextNumber++
	task.ID = m.nextNumber
	task.TaskNumber = m.nextNumber
	if task.Status == "" {
		task.Status = models.StatusTodo
	}
	if task.Priority == "" {
		task.Priority = models.PriorityMedium
	}
	task.LabelNames = labels
	m.tasks[task.ID] = task
	m.actors = append(m.actors, actor)
	return task, nil
}

func (m *memTasks) GetByID(_ context.Context, _, id int64) (*models.Task, error) {
	t, ok := m.tasks[id]
	if !ok {
		return nil, fmt.Errorf("%w: task %d", services.ErrNotFound, id)
	}
	return t, nil
}

func (m *memTasks) ResolveCode(_ context.Context, _ int64, code string) (*models.Task, error) {
	code = strings.TrimSpace(strings.ToUpper(code))
	for _, t := range m.tasks {
		if fmt.Sprintf("T-%d", t.TaskNumber) == code {
			return t, nil
		}
	}
	if strings.HasPrefix(code, "T-") {
		return nil, fmt.Errorf("%w: task %s", services.ErrNotFound, code)
	}
	return nil, fmt.Errorf("%w: unknown project code", services.ErrInvariant)
}

func (m *memTasks) List(_ context.Context, _ int64, _ models.TaskFilter) ([]models.Task, error) {
	var out []models.Task
	for _, t := range m.tasks {
		out = append(out, *t)
	}
	return out, nil
}

func (m *memTasks) Update(_ context.Context, _, id int64, update services.TaskUpdate, actor models.Actor) (*models.Task, error) {
	t, ok := m.tasks[id]
	if !ok {
		return nil, fmt.Errorf("%w: task %d", services.ErrNotFound, id)
	}
	if update.Title != nil {
		t.Title = *update.Title
	}
	if update.Priority != nil {
		t.Priority = *update.Priority
	}
	m.actors = append(m.actors, actor)
	return t, nil
}

func (m *memTasks) ChangeStatus(_ context.Context, _, id int64, to models.TaskStatus, actor models.Actor) (*models.Task, error) {
	t, ok := m.tasks[id]
	if !ok {
		return nil, fmt.Errorf("%w: task %d", services.ErrNotFound, id)
	}
	if !models.IsValidTaskStatus(to) {
		return nil, fmt.Errorf("%w: unknown status %q", services.ErrValidation, to)
	}
	t.Status = to
	m.actors = append(m.actors, actor)
	return t, nil
}

func (m *memTasks) Delete(_ context.Context, _, id int64) error {
	delete(m.tasks, id)
	return nil
}

func (m *memTasks) AddComment(_ context.Context, _, taskID int64, content string, actor models.Actor) (*models.Comment, error) {
	if _, ok := m.tasks[taskID]; !ok {
		return nil, fmt.Errorf("%w: task %d", services.ErrNotFound, taskID)
	}
	c := models.Comment{ID: int64(len(m.comments) + 1), TaskID: taskID, AuthorID: actor.ID, Content: content}
	m.comments = append(m.comments, c)
	m.actors = append(m.actors, actor)
	return &c, nil
}

func (m *memTasks) ListComments(_ context.Context, _, taskID int64) ([]models.Comment, error) {
	var out []models.Comment
	for _, c := range m.comments {
		if c.TaskID == taskID {
			out = append(out, c)
		}
	}
	return out, nil
}

func (m *memTasks) AttachLabel(_ context.Context, partyID, _ int64, name string, _ models.Actor) (*models.Label, error) {
	return &models.Label{ID: 1, PartyID: partyID, Name: name}, nil
}

func (m *memTasks) ListLabels(_ context.Context, partyID int64) ([]models.Label, error) {
	return []models.Label{{ID: 1, PartyID: partyID, Name: "urgent"}}, nil
}

func (m *memTasks) ListActivity(_ context.Context, _, _ int64, _ int) ([]models.ActivityEvent, error) {
	return nil, nil
}

type memProjects struct {
	nextID   int64
	projects map[int64]*models.Project
}

func newMemProjects() *memProjects {
	return &memProjects{projects: map[int64]*models.Project{}}
}

func (m *memProjects) Create(_ context.Context, p *models.Project) (*models.Project, error) {
	if strings.TrimSpace(p.Name) == "" {
		return nil, fmt.Errorf("%w: name is required", services.ErrValidation)
	}
	m.nextID++
	p.ID = m.nextID
	if p.Code == "" {
		p.Code = strings.ToUpper(p.Name[:2])
	}
	if p.Status == "" {
		p.Status = models.ProjectActive
	}
	m.projects[p.ID] = p
	return p, nil
}

func (m *memProjects) GetByID(_ context.Context, _, id int64) (*models.Project, error) {
	p, ok := m.projects[id]
	if !ok {
		return nil, fmt.Errorf("%w: project %d", services.ErrNotFound, id)
	}
	return p, nil
}

func (m *memProjects) List(_ context.Context, _ int64, _ *models.ProjectStatus) ([]models.Project, error) {
	var out []models.Project
	for _, p := range m.projects {
		out = append(out, *p)
	}
	return out, nil
}

func (m *memProjects) Update(_ context.Context, _, id int64, update services.ProjectUpdate) (*models.Project, error) {
	p, ok := m.projects[id]
	if !ok {
		return nil, fmt.Errorf("%w: project %d", services.ErrNotFound, id)
	}
	if update.Name != nil {
		p.Name = *update.Name
	}
	if update.Status != nil {
		p.Status = *update.Status
	}
	return p, nil
}

func (m *memProjects) Delete(_ context.Context, _, id int64) error {
	delete(m.projects, id)
	return nil
}

// stub repositories for the retrieval and context services

type stubDocs struct {
	matches []models.ChunkMatch
}

func (s *stubDocs) Create(_ context.Context, _ *models.Document) error { return nil }
func (s *stubDocs) GetByID(_ context.Context, _, _ int64) (*models.Document, error) {
	return nil, nil
}
func (s *stubDocs) List(_ context.Context, _ int64, _ models.DocumentFilter) ([]models.Document, error) {
	return nil, nil
}
func (s *stubDocs) UpdateStatus(_ context.Context, _ int64, _ models.DocumentStatus) error {
	return nil
}
func (s *stubDocs) SetFilePath(_ context.Context, _ int64, _ string) error { return nil }
func (s *stubDocs) SetContent(_ context.Context, _ int64, _ *string, _ map[string]string) error {
	return nil
}
func (s *stubDocs) Delete(_ context.Context, _, _ int64) error { return nil }
func (s *stubDocs) ReplaceChunks(_ context.Context, _ int64, _ []models.DocumentChunk) error {
	return nil
}
func (s *stubDocs) CountChunks(_ context.Context, _ int64) (int, error) { return 0, nil }
func (s *stubDocs) SearchChunks(_ context.Context, _ int64, _ []float32, _ int) ([]models.ChunkMatch, error) {
	return s.matches, nil
}

type stubTaskRepo struct{}

func (stubTaskRepo) Create(_ context.Context, _ *models.Task, _ []string, _ models.Actor) error {
	return errors.New("not supported")
}
func (stubTaskRepo) GetByID(_ context.Context, _, _ int64) (*models.Task, error) { return nil, nil }
func (stubTaskRepo) GetByNumber(_ context.Context, _, _ int64) (*models.Task, error) {
	return nil, nil
}
func (stubTaskRepo) List(_ context.Context, _ int64, _ models.TaskFilter) ([]models.Task, error) {
	return nil, nil
}
func (stubTaskRepo) Update(_ context.Context, _ *models.Task, _ models.Actor, _ string, _ map[string]string) error {
	return errors.New("not supported")
}
func (stubTaskRepo) Delete(_ context.Context, _, _ int64) error { return nil }
func (stubTaskRepo) ListActivity(_ context.Context, _ int64, _ int) ([]models.ActivityEvent, error) {
	return nil, nil
}

type stubProjectRepo struct{}

func (stubProjectRepo) Create(_ context.Context, _ *models.Project) error { return nil }
func (stubProjectRepo) GetByID(_ context.Context, _, _ int64) (*models.Project, error) {
	return nil, nil
}
func (stubProjectRepo) GetByCode(_ context.Context, _ int64, _ string) (*models.Project, error) {
	return nil, nil
}
func (stubProjectRepo) List(_ context.Context, _ int64, _ *models.ProjectStatus) ([]models.Project, error) {
	return nil, nil
}
func (stubProjectRepo) Update(_ context.Context, _ *models.Project) error { return nil }
func (stubProjectRepo) Delete(_ context.Context, _, _ int64) error        { return nil }

type stubComments struct{}

func (stubComments) Create(_ context.Context, _ *models.Comment, _ models.Actor) error { return nil }
func (stubComments) ListByTask(_ context.Context, _ int64) ([]models.Comment, error) {
	return nil, nil
}
func (stubComments) ListRecentByParty(_ context.Context, _ int64, _ int) ([]models.Comment, error) {
	return nil, nil
}

type stubEmbedder struct{}

func (stubEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = []float32{1, 0, 0}
	}
	return out, nil
}

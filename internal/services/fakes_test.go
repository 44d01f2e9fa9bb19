package services

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"homebase/internal/models"
	"homebase/internal/repositories"
)

// In-memory repository fakes. They implement the same interfaces the
// Postgres repositories do, including the counter and upsert semantics the
// services rely on.

type fakePartyRepo struct {
	mu      sync.Mutex
	parties map[int64]*models.Party
	members map[int64][]models.User
}

func newFakePartyRepo() *fakePartyRepo {
	return &fakePartyRepo{
		parties: map[int64]*models.Party{},
		members: map[int64][]models.User{},
	}
}

func (r *fakePartyRepo) addParty(id int64, name string, users ...models.User) {
	r.parties[id] = &models.Party{ID: id, Name: name}
	r.members[id] = users
}

func (r *fakePartyRepo) GetByID(_ context.Context, id int64) (*models.Party, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.parties[id], nil
}

func (r *fakePartyRepo) IsMember(_ context.Context, partyID, userID int64) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.members[partyID] {
		if u.ID == userID {
			return true, nil
		}
	}
	return false, nil
}

func (r *fakePartyRepo) ListMembers(_ context.Context, partyID int64) ([]models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.members[partyID], nil
}

func (r *fakePartyRepo) GetUser(_ context.Context, id int64) (*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, users := range r.members {
		for _, u := range users {
			if u.ID == id {
				copied := u
				return &copied, nil
			}
		}
	}
	return nil, nil
}

type fakeTaskRepo struct {
	mu         sync.Mutex
	nextID     int64
	nextNumber map[int64]int64 // per party, mirrors parties.next_task_number
	tasks      map[int64]*models.Task
	events     []models.ActivityEvent
	labels     *fakeLabelRepo
}

func newFakeTaskRepo(labels *fakeLabelRepo) *fakeTaskRepo {
	return &fakeTaskRepo{
		nextNumber: map[int64]int64{},
		tasks:      map[int64]*models.Task{},
		labels:     labels,
	}
}

func (r *fakeTaskRepo) Create(ctx context.Context, task *models.Task, labels []string, actor models.Actor) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	r.nextNumber[task.PartyID]++
	task.ID = r.nextID
	task.TaskNumber = r.nextNumber[task.PartyID]
	for _, name := range labels {
		label, err := r.labels.upsertLocked(task.PartyID, name)
		if err != nil {
			return err
		}
		task.LabelNames = append(task.LabelNames, label.Name)
	}
	copied := *task
	r.tasks[task.ID] = &copied
	r.events = append(r.events, models.ActivityEvent{
		TaskID: task.ID, ActorID: actor.ID, ActorType: actor.Type, Action: models.ActionCreated,
	})
	return nil
}

func (r *fakeTaskRepo) GetByID(_ context.Context, partyID, id int64) (*models.Task, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.tasks[id]
	if !ok || t.PartyID != partyID {
		return nil, nil
	}
	copied := *t
	return &copied, nil
}

func (r *fakeTaskRepo) GetByNumber(_ context.Context, partyID, number int64) (*models.Task, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, t := range r.tasks {
		if t.PartyID == partyID && t.TaskNumber == number {
			copied := *t
			return &copied, nil
		}
	}
	return nil, nil
}

func (r *fakeTaskRepo) List(_ context.Context, partyID int64, filter models.TaskFilter) ([]models.Task, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.Task
	for _, t := range r.tasks {
		if t.PartyID != partyID {
			continue
		}
		if filter.Status != nil && t.Status != *filter.Status {
			continue
		}
		if filter.AssignedTo != nil && (t.AssignedTo == nil || *t.AssignedTo != *filter.AssignedTo) {
			continue
		}
		if filter.ProjectID != nil && (t.ProjectID == nil || *t.ProjectID != *filter.ProjectID) {
			continue
		}
		if filter.ParentTaskID != nil && (t.ParentTaskID == nil || *t.ParentTaskID != *filter.ParentTaskID) {
			continue
		}
		out = append(out, *t)
	}
	return out, nil
}

func (r *fakeTaskRepo) Update(_ context.Context, task *models.Task, actor models.Actor, action string, detail map[string]string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.tasks[task.ID]; !ok {
		return fmt.Errorf("%w: task %d", repositories.ErrNotFound, task.ID)
	}
	copied := *task
	r.tasks[task.ID] = &copied
	r.events = append(r.events, models.ActivityEvent{
		TaskID: task.ID, ActorID: actor.ID, ActorType: actor.Type, Action: action, Detail: detail,
	})
	return nil
}

func (r *fakeTaskRepo) Delete(_ context.Context, partyID, id int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.tasks[id]
	if !ok || t.PartyID != partyID {
		return nil
	}
	delete(r.tasks, id)
	// subtasks cascade like the FK does
	for cid, c := range r.tasks {
		if c.ParentTaskID != nil && *c.ParentTaskID == id {
			delete(r.tasks, cid)
		}
	}
	return nil
}

func (r *fakeTaskRepo) ListActivity(_ context.Context, taskID int64, limit int) ([]models.ActivityEvent, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.ActivityEvent
	for _, e := range r.events {
		if e.TaskID == taskID {
			out = append(out, e)
		}
	}
	if len(out) > limit {
		out = out[len(out)-limit:]
	}
	return out, nil
}

// detachProject mirrors the ON DELETE SET NULL the schema applies when a
// project row goes away.
func (r *fakeTaskRepo) detachProject(projectID int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, t := range r.tasks {
		if t.ProjectID != nil && *t.ProjectID == projectID {
			t.ProjectID = nil
			t.ProjectCode = ""
		}
	}
}

type fakeLabelRepo struct {
	mu     sync.Mutex
	nextID int64
	byID   map[int64]*models.Label
	events []models.ActivityEvent
}

func newFakeLabelRepo() *fakeLabelRepo {
	return &fakeLabelRepo{byID: map[int64]*models.Label{}}
}

func (r *fakeLabelRepo) upsertLocked(partyID int64, name string) (*models.Label, error) {
	for _, l := range r.byID {
		if l.PartyID == partyID && strings.EqualFold(l.Name, name) {
			copied := *l
			return &copied, nil
		}
	}
	r.nextID++
	l := &models.Label{ID: r.nextID, PartyID: partyID, Name: name}
	r.byID[l.ID] = l
	copied := *l
	return &copied, nil
}

func (r *fakeLabelRepo) Upsert(_ context.Context, partyID int64, name string) (*models.Label, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.upsertLocked(partyID, name)
}

func (r *fakeLabelRepo) ListByParty(_ context.Context, partyID int64) ([]models.Label, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.Label
	for _, l := range r.byID {
		if l.PartyID == partyID {
			out = append(out, *l)
		}
	}
	return out, nil
}

func (r *fakeLabelRepo) Attach(_ context.Context, taskID, labelID int64, _ int64, actor models.Actor, name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, models.ActivityEvent{
		TaskID: taskID, ActorID: actor.ID, ActorType: actor.Type,
		Action: models.ActionLabeled, Detail: map[string]string{"label": name},
	})
	return nil
}

type fakeCommentRepo struct {
	mu       sync.Mutex
	nextID   int64
	comments []models.Comment
}

func (r *fakeCommentRepo) Create(_ context.Context, comment *models.Comment, _ models.Actor) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	comment.ID = r.nextID
	r.comments = append(r.comments, *comment)
	return nil
}

func (r *fakeCommentRepo) ListByTask(_ context.Context, taskID int64) ([]models.Comment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.Comment
	for _, c := range r.comments {
		if c.TaskID == taskID {
			out = append(out, c)
		}
	}
	return out, nil
}

func (r *fakeCommentRepo) ListRecentByParty(_ context.Context, _ int64, limit int) ([]models.Comment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := append([]models.Comment(nil), r.comments...)
	if len(out) > limit {
		out = out[len(out)-limit:]
	}
	return out, nil
}

type fakeProjectRepo struct {
	mu     sync.Mutex
	nextID int64
	byID   map[int64]*models.Project
	tasks  *fakeTaskRepo
}

func newFakeProjectRepo(tasks *fakeTaskRepo) *fakeProjectRepo {
	return &fakeProjectRepo{byID: map[int64]*models.Project{}, tasks: tasks}
}

func (r *fakeProjectRepo) Create(_ context.Context, project *models.Project) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	project.ID = r.nextID
	copied := *project
	r.byID[project.ID] = &copied
	return nil
}

func (r *fakeProjectRepo) GetByID(_ context.Context, partyID, id int64) (*models.Project, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.byID[id]
	if !ok || p.PartyID != partyID {
		return nil, nil
	}
	copied := *p
	return &copied, nil
}

func (r *fakeProjectRepo) GetByCode(_ context.Context, partyID int64, code string) (*models.Project, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, p := range r.byID {
		if p.PartyID == partyID && strings.EqualFold(p.Code, code) {
			copied := *p
			return &copied, nil
		}
	}
	return nil, nil
}

func (r *fakeProjectRepo) List(_ context.Context, partyID int64, status *models.ProjectStatus) ([]models.Project, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.Project
	for _, p := range r.byID {
		if p.PartyID != partyID {
			continue
		}
		if status != nil && p.Status != *status {
			continue
		}
		out = append(out, *p)
	}
	return out, nil
}

func (r *fakeProjectRepo) Update(_ context.Context, project *models.Project) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	copied := *project
	r.byID[project.ID] = &copied
	return nil
}

func (r *fakeProjectRepo) Delete(_ context.Context, partyID, id int64) error {
	r.mu.Lock()
	p, ok := r.byID[id]
	if !ok || p.PartyID != partyID {
		r.mu.Unlock()
		return nil
	}
	delete(r.byID, id)
	r.mu.Unlock()
	if r.tasks != nil {
		r.tasks.detachProject(id)
	}
	return nil
}

type fakeDocRepo struct {
	mu     sync.Mutex
	nextID int64
	docs   map[int64]*models.Document
	chunks map[int64][]models.DocumentChunk
}

func newFakeDocRepo() *fakeDocRepo {
	return &fakeDocRepo{docs: map[int64]*models.Document{}, chunks: map[int64][]models.DocumentChunk{}}
}

func (r *fakeDocRepo) Create(_ context.Context, doc *models.Document) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	doc.ID = r.nextID
	copied := *doc
	r.docs[doc.ID] = &copied
	return nil
}

func (r *fakeDocRepo) GetByID(_ context.Context, partyID, id int64) (*models.Document, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	d, ok := r.docs[id]
	if !ok || d.PartyID != partyID {
		return nil, nil
	}
	copied := *d
	return &copied, nil
}

func (r *fakeDocRepo) List(_ context.Context, partyID int64, filter models.DocumentFilter) ([]models.Document, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.Document
	for _, d := range r.docs {
		if d.PartyID != partyID {
			continue
		}
		if filter.Category != nil && d.Category != *filter.Category {
			continue
		}
		if filter.Status != nil && d.Status != *filter.Status {
			continue
		}
		out = append(out, *d)
	}
	return out, nil
}

func (r *fakeDocRepo) UpdateStatus(_ context.Context, id int64, status models.DocumentStatus) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if d, ok := r.docs[id]; ok {
		d.Status = status
	}
	return nil
}

func (r *fakeDocRepo) SetFilePath(_ context.Context, id int64, path string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if d, ok := r.docs[id]; ok {
		d.FilePath = &path
	}
	return nil
}

func (r *fakeDocRepo) SetContent(_ context.Context, id int64, text *string, metadata map[string]string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if d, ok := r.docs[id]; ok {
		d.TextContent = text
		d.Metadata = metadata
	}
	return nil
}

func (r *fakeDocRepo) Delete(_ context.Context, partyID, id int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if d, ok := r.docs[id]; ok && d.PartyID == partyID {
		delete(r.docs, id)
		delete(r.chunks, id)
	}
	return nil
}

func (r *fakeDocRepo) ReplaceChunks(_ context.Context, documentID int64, chunks []models.DocumentChunk) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.chunks[documentID] = append([]models.DocumentChunk(nil), chunks...)
	return nil
}

func (r *fakeDocRepo) CountChunks(_ context.Context, documentID int64) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.chunks[documentID]), nil
}

func (r *fakeDocRepo) SearchChunks(_ context.Context, partyID int64, _ []float32, topK int) ([]models.ChunkMatch, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.ChunkMatch
	for docID, chunks := range r.chunks {
		d, ok := r.docs[docID]
		if !ok || d.PartyID != partyID || d.Status != models.DocStatusReady {
			continue
		}
		for _, c := range chunks {
			out = append(out, models.ChunkMatch{Chunk: c, DocumentTitle: d.Title, DocumentCategory: d.Category, Score: 0.9})
			if len(out) == topK {
				return out, nil
			}
		}
	}
	return out, nil
}

// fakeEmbedder returns deterministic vectors; Err makes every call fail.
type fakeEmbedder struct {
	mu    sync.Mutex
	calls int
	Err   error
}

func (e *fakeEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.calls++
	if e.Err != nil {
		return nil, e.Err
	}
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = []float32{float32(len(texts[i])), 1, 0}
	}
	return out, nil
}

type fakeNotifier struct {
	mu   sync.Mutex
	sent []string // recipient emails
}

func (n *fakeNotifier) TaskAssigned(email, _ string, _ *models.Task) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, email)
	return nil
}

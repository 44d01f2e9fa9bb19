package services

import (
	"context"
	"fmt"
	"log"
	"strconv"
	"strings"
	"time"

	"homebase/internal/models"
	"homebase/internal/repositories"
)

// Notifier delivers out-of-band notices to co-owners. Implemented by the
// email service; nil-safe at the call sites.
type Notifier interface {
	TaskAssigned(email, displayName string, task *models.Task) error
}

// TaskUpdate is a partial update; nil fields are left untouched. Clear flags
// exist for the nullable fields where "absent" and "unchanged" differ.
type TaskUpdate struct {
	Title            *string
	Description      *string
	Status           *models.TaskStatus
	Priority         *models.TaskPriority
	AssignedTo       *int64
	ClearAssignee    bool
	DueDate          *time.Time
	ClearDueDate     bool
	StartDate        *time.Time
	EstimatedMinutes *int
	ProjectID        *int64
	ClearProject     bool
	SortOrder        *int
}

type TaskService interface {
	Create(ctx context.Context, task *models.Task, labels []string, actor models.Actor) (*models.Task, error)
	GetByID(ctx context.Context, partyID, id int64) (*models.Task, error)
	ResolveCode(ctx context.Context, partyID int64, code string) (*models.Task, error)
	List(ctx context.Context, partyID int64, filter models.TaskFilter) ([]models.Task, error)
	Update(ctx context.Context, partyID, id int64, update TaskUpdate, actor models.Actor) (*models.Task, error)
	ChangeStatus(ctx context.Context, partyID, id int64, to models.TaskStatus, actor models.Actor) (*models.Task, error)
	Delete(ctx context.Context, partyID, id int64) error
	AddComment(ctx context.Context, partyID, taskID int64, content string, actor models.Actor) (*models.Comment, error)
	ListComments(ctx context.Context, partyID, taskID int64) ([]models.Comment, error)
	AttachLabel(ctx context.Context, partyID, taskID int64, name string, actor models.Actor) (*models.Label, error)
	ListLabels(ctx context.Context, partyID int64) ([]models.Label, error)
	ListActivity(ctx context.Context, partyID, taskID int64, limit int) ([]models.ActivityEvent, error)
}

type taskService struct {
	repo     repositories.TaskRepository
	projects repositories.ProjectRepository
	labels   repositories.LabelRepository
	comments repositories.CommentRepository
	party    repositories.PartyRepository
	notify   Notifier
}

func NewTaskService(
	repo repositories.TaskRepository,
	projects repositories.ProjectRepository,
	labels repositories.LabelRepository,
	comments repositories.CommentRepository,
	party repositories.PartyRepository,
	notify Notifier,
) TaskService {
	return &taskService{
		repo:     repo,
		projects: projects,
		labels:   labels,
		comments: comments,
		party:    party,
		notify:   notify,
	}
}

func (s *taskService) Create(ctx context.Context, task *models.Task, labels []string, actor models.Actor) (*models.Task, error) {
	task.Title = strings.TrimSpace(task.Title)
	if task.Title == "" {
		return nil, fmt.Errorf("%w: title is required", ErrValidation)
	}
	if task.Status == "" {
		task.Status = models.StatusTodo
	}
	if task.Priority == "" {
		task.Priority = models.PriorityMedium
	}
	if !models.IsValidTaskStatus(task.Status) {
		return nil, fmt.Errorf("%w: unknown status %q", ErrValidation, task.Status)
	}
	if !models.IsValidTaskPriority(task.Priority) {
		return nil, fmt.Errorf("%w: unknown priority %q", ErrValidation, task.Priority)
	}
	if task.Status == models.StatusDone {
		return nil, fmt.Errorf("%w: a task cannot be created done", ErrValidation)
	}

	if task.ParentTaskID != nil {
		parent, err := s.repo.GetByID(ctx, task.PartyID, *task.ParentTaskID)
		if err != nil {
			return nil, err
		}
		if parent == nil {
			return nil, fmt.Errorf("%w: parent task %d", ErrNotFound, *task.ParentTaskID)
		}
	}
	if task.ProjectID != nil {
		project, err := s.projects.GetByID(ctx, task.PartyID, *task.ProjectID)
		if err != nil {
			return nil, err
		}
		if project == nil {
			return nil, fmt.Errorf("%w: project %d", ErrNotFound, *task.ProjectID)
		}
		task.ProjectCode = project.Code
	}
	if task.AssignedTo != nil {
		if err := s.requireMember(ctx, task.PartyID, *task.AssignedTo); err != nil {
			return nil, err
		}
	}

	if err := s.repo.Create(ctx, task, labels, actor); err != nil {
		return nil, err
	}
	log.Printf("[task][create][ok] party=%d task=%s actor=%d/%s", task.PartyID, task.DisplayCode(), actor.ID, actor.Type)

	if task.AssignedTo != nil && *task.AssignedTo != actor.ID {
		s.notifyAssignee(ctx, task)
	}
	return task, nil
}

func (s *taskService) GetByID(ctx context.Context, partyID, id int64) (*models.Task, error) {
	task, err := s.repo.GetByID(ctx, partyID, id)
	if err != nil {
		return nil, err
	}
	if task == nil {
		return nil, fmt.Errorf("%w: task %d", ErrNotFound, id)
	}
	return task, nil
}

// ResolveCode maps a human task reference ("T-3", "HB-3", "3") to the task
// within the party. A prefix other than T must name the project the task
// actually belongs to.
func (s *taskService) ResolveCode(ctx context.Context, partyID int64, code string) (*models.Task, error) {
	code = strings.TrimSpace(code)
	prefix, numStr := "", code
	if i := strings.LastIndex(code, "-"); i >= 0 {
		prefix, numStr = strings.ToUpper(code[:i]), code[i+1:]
	}
	number, err := strconv.ParseInt(numStr, 10, 64)
	if err != nil || number <= 0 {
		return nil, fmt.Errorf("%w: %q is not a task reference", ErrInvariant, code)
	}
	var wantProject string
	if prefix != "" && prefix != "T" {
		project, err := s.projects.GetByCode(ctx, partyID, prefix)
		if err != nil {
			return nil, err
		}
		if project == nil {
			return nil, fmt.Errorf("%w: unknown project code %q", ErrInvariant, prefix)
		}
		wantProject = project.Code
	}
	task, err := s.repo.GetByNumber(ctx, partyID, number)
	if err != nil {
		return nil, err
	}
	if task == nil {
		return nil, fmt.Errorf("%w: task %s", ErrNotFound, code)
	}
	if wantProject != "" && !strings.EqualFold(task.ProjectCode, wantProject) {
		return nil, fmt.Errorf("%w: task %d is not in project %s", ErrInvariant, number, wantProject)
	}
	return task, nil
}

func (s *taskService) List(ctx context.Context, partyID int64, filter models.TaskFilter) ([]models.Task, error) {
	return s.repo.List(ctx, partyID, filter)
}

func (s *taskService) Update(ctx context.Context, partyID, id int64, update TaskUpdate, actor models.Actor) (*models.Task, error) {
	task, err := s.GetByID(ctx, partyID, id)
	if err != nil {
		return nil, err
	}

	detail := map[string]string{}
	assigneeChanged := false

	if update.Title != nil {
		t := strings.TrimSpace(*update.Title)
		if t == "" {
			return nil, fmt.Errorf("%w: title cannot be empty", ErrValidation)
		}
		task.Title = t
		detail["title"] = t
	}
	if update.Description != nil {
		task.Description = *update.Description
	}
	if update.Priority != nil {
		if !models.IsValidTaskPriority(*update.Priority) {
			return nil, fmt.Errorf("%w: unknown priority %q", ErrValidation, *update.Priority)
		}
		task.Priority = *update.Priority
		detail["priority"] = string(*update.Priority)
	}
	if update.ClearAssignee {
		task.AssignedTo = nil
	} else if update.AssignedTo != nil {
		if err := s.requireMember(ctx, partyID, *update.AssignedTo); err != nil {
			return nil, err
		}
		assigneeChanged = task.AssignedTo == nil || *task.AssignedTo != *update.AssignedTo
		task.AssignedTo = update.AssignedTo
		detail["assigned_to"] = strconv.FormatInt(*update.AssignedTo, 10)
	}
	if update.ClearDueDate {
		task.DueDate = nil
	} else if update.DueDate != nil {
		task.DueDate = update.DueDate
	}
	if update.StartDate != nil {
		task.StartDate = update.StartDate
	}
	if update.EstimatedMinutes != nil {
		task.EstimatedMinutes = update.EstimatedMinutes
	}
	if update.ClearProject {
		task.ProjectID = nil
		task.ProjectCode = ""
	} else if update.ProjectID != nil {
		project, err := s.projects.GetByID(ctx, partyID, *update.ProjectID)
		if err != nil {
			return nil, err
		}
		if project == nil {
			return nil, fmt.Errorf("%w: project %d", ErrNotFound, *update.ProjectID)
		}
		task.ProjectID = update.ProjectID
		task.ProjectCode = project.Code
	}
	if update.SortOrder != nil {
		task.SortOrder = *update.SortOrder
	}
	if update.Status != nil && *update.Status != task.Status {
		if err := applyStatus(task, *update.Status, actor); err != nil {
			return nil, err
		}
		detail["status"] = string(*update.Status)
	}

	action := models.ActionUpdated
	if assigneeChanged && len(detail) == 1 {
		action = models.ActionAssigned
	}
	if err := s.repo.Update(ctx, task, actor, action, detail); err != nil {
		return nil, err
	}
	if assigneeChanged {
		s.notifyAssignee(ctx, task)
	}
	return task, nil
}

func (s *taskService) ChangeStatus(ctx context.Context, partyID, id int64, to models.TaskStatus, actor models.Actor) (*models.Task, error) {
	task, err := s.GetByID(ctx, partyID, id)
	if err != nil {
		return nil, err
	}
	from := task.Status
	if from == to {
		return task, nil
	}
	if err := applyStatus(task, to, actor); err != nil {
		return nil, err
	}
	detail := map[string]string{"from": string(from), "to": string(to)}
	if err := s.repo.Update(ctx, task, actor, models.ActionStatusChanged, detail); err != nil {
		return nil, err
	}
	log.Printf("[task][status][ok] party=%d task=%s %s->%s", partyID, task.DisplayCode(), from, to)
	return task, nil
}

// applyStatus enforces the completion invariant: done sets completedAt and
// completedBy together; leaving done clears both.
func applyStatus(task *models.Task, to models.TaskStatus, actor models.Actor) error {
	if !models.IsValidTaskStatus(to) {
		return fmt.Errorf("%w: unknown status %q", ErrValidation, to)
	}
	task.Status = to
	if to == models.StatusDone {
		now := time.Now().UTC()
		task.CompletedAt = &now
		actorID := actor.ID
		task.CompletedBy = &actorID
	} else {
		task.CompletedAt = nil
		task.CompletedBy = nil
	}
	return nil
}

func (s *taskService) Delete(ctx context.Context, partyID, id int64) error {
	if _, err := s.GetByID(ctx, partyID, id); err != nil {
		return err
	}
	return s.repo.Delete(ctx, partyID, id)
}

func (s *taskService) AddComment(ctx context.Context, partyID, taskID int64, content string, actor models.Actor) (*models.Comment, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, fmt.Errorf("%w: comment content is required", ErrValidation)
	}
	if _, err := s.GetByID(ctx, partyID, taskID); err != nil {
		return nil, err
	}
	comment := &models.Comment{TaskID: taskID, AuthorID: actor.ID, Content: content}
	if err := s.comments.Create(ctx, comment, actor); err != nil {
		return nil, err
	}
	return comment, nil
}

func (s *taskService) ListComments(ctx context.Context, partyID, taskID int64) ([]models.Comment, error) {
	if _, err := s.GetByID(ctx, partyID, taskID); err != nil {
		return nil, err
	}
	return s.comments.ListByTask(ctx, taskID)
}

func (s *taskService) AttachLabel(ctx context.Context, partyID, taskID int64, name string, actor models.Actor) (*models.Label, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("%w: label name is required", ErrValidation)
	}
	if _, err := s.GetByID(ctx, partyID, taskID); err != nil {
		return nil, err
	}
	label, err := s.labels.Upsert(ctx, partyID, name)
	if err != nil {
		return nil, err
	}
	if err := s.labels.Attach(ctx, taskID, label.ID, partyID, actor, label.Name); err != nil {
		return nil, err
	}
	return label, nil
}

func (s *taskService) ListLabels(ctx context.Context, partyID int64) ([]models.Label, error) {
	return s.labels.ListByParty(ctx, partyID)
}

func (s *taskService) ListActivity(ctx context.Context, partyID, taskID int64, limit int) ([]models.ActivityEvent, error) {
	if _, err := s.GetByID(ctx, partyID, taskID); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = 20
	}
	return s.repo.ListActivity(ctx, taskID, limit)
}

func (s *taskService) requireMember(ctx context.Context, partyID, userID int64) error {
	ok, err := s.party.IsMember(ctx, partyID, userID)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%w: user %d is not a member of this party", ErrValidation, userID)
	}
	return nil
}

func (s *taskService) notifyAssignee(ctx context.Context, task *models.Task) {
	if s.notify == nil || task.AssignedTo == nil {
		return
	}
	user, err := s.party.GetUser(ctx, *task.AssignedTo)
	if err != nil || user == nil {
		log.Printf("[task][notify][warn] assignee %d lookup failed: %v", *task.AssignedTo, err)
		return
	}
	if err := s.notify.TaskAssigned(user.Email, user.DisplayName, task); err != nil {
		log.Printf("[task][notify][warn] send to %s: %v", user.Email, err)
	}
}

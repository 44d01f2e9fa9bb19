package models

import (
	"fmt"
	"time"
)

// TaskStatus defines the possible statuses for a task.
type TaskStatus string

const (
	StatusTodo       TaskStatus = "todo"
	StatusInProgress TaskStatus = "in_progress"
	StatusDone       TaskStatus = "done"
)

type TaskPriority string

const (
	PriorityLow    TaskPriority = "low"
	PriorityMedium TaskPriority = "medium"
	PriorityHigh   TaskPriority = "high"
)

// Task represents a unit of work shared by a party's co-owners.
// TaskNumber is allocated once at creation from the party counter and is
// never reused or reassigned.
type Task struct {
	ID               int64        `json:"id"`
	PartyID          int64        `json:"party_id"`
	TaskNumber       int64        `json:"task_number"`
	ProjectID        *int64       `json:"project_id,omitempty"`
	ParentTaskID     *int64       `json:"parent_task_id,omitempty"`
	CreatedBy        int64        `json:"created_by"`
	AssignedTo       *int64       `json:"assigned_to,omitempty"`
	Title            string       `json:"title"`
	Description      string       `json:"description,omitempty"`
	Status           TaskStatus   `json:"status"`
	Priority         TaskPriority `json:"priority"`
	DueDate          *time.Time   `json:"due_date,omitempty"`
	StartDate        *time.Time   `json:"start_date,omitempty"`
	EstimatedMinutes *int         `json:"estimated_minutes,omitempty"`
	SortOrder        int          `json:"sort_order"`
	CompletedAt      *time.Time   `json:"completed_at,omitempty"`
	CompletedBy      *int64       `json:"completed_by,omitempty"`
	CreatedAt        time.Time    `json:"created_at"`
	UpdatedAt        time.Time    `json:"updated_at"`

	// Joined display fields, populated by list queries.
	ProjectCode  string   `json:"project_code,omitempty"`
	CommentCount int      `json:"comment_count,omitempty"`
	SubtaskCount int      `json:"subtask_count,omitempty"`
	LabelNames   []string `json:"labels,omitempty"`
}

// DisplayCode renders the human-facing task reference: "HB-12" when the task
// sits in a project with code HB, "T-12" otherwise.
func (t *Task) DisplayCode() string {
	if t.ProjectCode != "" {
		return fmt.Sprintf("%s-%d", t.ProjectCode, t.TaskNumber)
	}
	return fmt.Sprintf("T-%d", t.TaskNumber)
}

type TaskSort string

const (
	SortByCreated  TaskSort = "created"
	SortByDueDate  TaskSort = "due"
	SortByPriority TaskSort = "priority"
)

// TaskFilter defines the available parameters for listing tasks.
type TaskFilter struct {
	Status       *TaskStatus
	AssignedTo   *int64
	ProjectID    *int64
	ParentTaskID *int64
	LabelName    *string
	Sort         TaskSort
}

func IsValidTaskStatus(s TaskStatus) bool {
	switch s {
	case StatusTodo, StatusInProgress, StatusDone:
		return true
	}
	return false
}

func IsValidTaskPriority(p TaskPriority) bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh:
		return true
	}
	return false
}

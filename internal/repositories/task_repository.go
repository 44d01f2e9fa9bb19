package repositories

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/lib/pq"

	"homebase/internal/events"
	"homebase/internal/models"
)

type TaskRepository interface {
	// Create allocates the party-scoped task number, inserts the task,
	// attaches labels by name (upsert) and appends the created activity
	// event, all in one transaction.
	Create(ctx context.Context, task *models.Task, labels []string, actor models.Actor) error
	GetByID(ctx context.Context, partyID, id int64) (*models.Task, error)
	GetByNumber(ctx context.Context, partyID, number int64) (*models.Task, error)
	List(ctx context.Context, partyID int64, filter models.TaskFilter) ([]models.Task, error)
	Update(ctx context.Context, task *models.Task, actor models.Actor, action string, detail map[string]string) error
	Delete(ctx context.Context, partyID, id int64) error
	ListActivity(ctx context.Context, taskID int64, limit int) ([]models.ActivityEvent, error)
}

type taskRepository struct {
	db     *sql.DB
	events events.Writer
}

func NewTaskRepository(db *sql.DB, w events.Writer) TaskRepository {
	return &taskRepository{db: db, events: w}
}

const taskColumns = `
	t.id, t.party_id, t.task_number, t.project_id, t.parent_task_id,
	t.created_by, t.assigned_to, t.title, t.description, t.status, t.priority,
	t.due_date, t.start_date, t.estimated_minutes, t.sort_order,
	t.completed_at, t.completed_by, t.created_at, t.updated_at,
	COALESCE(p.code, '') AS project_code,
	(SELECT COUNT(*) FROM comments c WHERE c.task_id = t.id) AS comment_count,
	(SELECT COUNT(*) FROM tasks s WHERE s.parent_task_id = t.id) AS subtask_count,
	COALESCE(ARRAY(
		SELECT l.name FROM task_labels tl JOIN labels l ON l.id = tl.label_id
		WHERE tl.task_id = t.id ORDER BY l.name
	), '{}') AS label_names`

func (r *taskRepository) Create(ctx context.Context, task *models.Task, labels []string, actor models.Actor) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	// Atomic per-party allocation. Never read-then-write: the row update
	// serializes concurrent creators on the party row.
	err = tx.QueryRowContext(ctx,
		`UPDATE parties SET next_task_number = next_task_number + 1 WHERE id=$1 RETURNING next_task_number`,
		task.PartyID,
	).Scan(&task.TaskNumber)
	if err == sql.ErrNoRows {
		return fmt.Errorf("%w: party %d", ErrNotFound, task.PartyID)
	}
	if err != nil {
		return fmt.Errorf("allocate task number: %w", err)
	}

	const q = `
		INSERT INTO tasks (
			party_id, task_number, project_id, parent_task_id, created_by, assigned_to,
			title, description, status, priority, due_date, start_date,
			estimated_minutes, sort_order
		)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14)
		RETURNING id, created_at, updated_at`
	err = tx.QueryRowContext(ctx, q,
		task.PartyID, task.TaskNumber, task.ProjectID, task.ParentTaskID,
		task.CreatedBy, task.AssignedTo, task.Title, task.Description,
		task.Status, task.Priority, task.DueDate, task.StartDate,
		task.EstimatedMinutes, task.SortOrder,
	).Scan(&task.ID, &task.CreatedAt, &task.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert task: %w", err)
	}

	for _, name := range labels {
		labelID, err := upsertLabelTx(ctx, tx, task.PartyID, name)
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO task_labels (task_id, label_id) VALUES ($1,$2) ON CONFLICT DO NOTHING`,
			task.ID, labelID); err != nil {
			return fmt.Errorf("attach label %q: %w", name, err)
		}
		task.LabelNames = append(task.LabelNames, name)
	}

	if err := r.events.Append(ctx, tx, task.ID, actor.ID, actor.Type, models.ActionCreated,
		map[string]string{"title": task.Title}); err != nil {
		return fmt.Errorf("append activity: %w", err)
	}
	return tx.Commit()
}

func (r *taskRepository) GetByID(ctx context.Context, partyID, id int64) (*models.Task, error) {
	q := `SELECT ` + taskColumns + `
		FROM tasks t LEFT JOIN projects p ON p.id = t.project_id
		WHERE t.id=$1 AND t.party_id=$2`
	return scanTask(r.db.QueryRowContext(ctx, q, id, partyID))
}

func (r *taskRepository) GetByNumber(ctx context.Context, partyID, number int64) (*models.Task, error) {
	q := `SELECT ` + taskColumns + `
		FROM tasks t LEFT JOIN projects p ON p.id = t.project_id
		WHERE t.task_number=$1 AND t.party_id=$2`
	return scanTask(r.db.QueryRowContext(ctx, q, number, partyID))
}

func (r *taskRepository) List(ctx context.Context, partyID int64, filter models.TaskFilter) ([]models.Task, error) {
	base := `SELECT ` + taskColumns + `
		FROM tasks t LEFT JOIN projects p ON p.id = t.project_id
		WHERE t.party_id=$1`
	args := []interface{}{partyID}
	argID := 2
	conditions := []string{}

	if filter.Status != nil {
		conditions = append(conditions, fmt.Sprintf("t.status = $%d", argID))
		args = append(args, *filter.Status)
		argID++
	}
	if filter.AssignedTo != nil {
		conditions = append(conditions, fmt.Sprintf("t.assigned_to = $%d", argID))
		args = append(args, *filter.AssignedTo)
		argID++
	}
	if filter.ProjectID != nil {
		conditions = append(conditions, fmt.Sprintf("t.project_id = $%d", argID))
		args = append(args, *filter.ProjectID)
		argID++
	}
	if filter.ParentTaskID != nil {
		conditions = append(conditions, fmt.Sprintf("t.parent_task_id = $%d", argID))
		args = append(args, *filter.ParentTaskID)
		argID++
	}
	if filter.LabelName != nil {
		conditions = append(conditions, fmt.Sprintf(
			`EXISTS (SELECT 1 FROM task_labels tl JOIN labels l ON l.id = tl.label_id
			 WHERE tl.task_id = t.id AND lower(l.name) = lower($%d))`, argID))
		args = append(args, *filter.LabelName)
		argID++
	}
	if len(conditions) > 0 {
		base += " AND " + strings.Join(conditions, " AND ")
	}

	switch filter.Sort {
	case models.SortByDueDate:
		base += " ORDER BY t.due_date ASC NULLS LAST, t.task_number"
	case models.SortByPriority:
		base += ` ORDER BY CASE t.priority WHEN 'high' THEN 0 WHEN 'medium' THEN 1 ELSE 2 END, t.task_number`
	default:
		base += " ORDER BY t.created_at DESC"
	}

	rows, err := r.db.QueryContext(ctx, base, args...)
	if err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	defer rows.Close()

	var out []models.Task
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *t)
	}
	return out, rows.Err()
}

func (r *taskRepository) Update(ctx context.Context, task *models.Task, actor models.Actor, action string, detail map[string]string) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	const q = `
		UPDATE tasks SET
			project_id=$1, parent_task_id=$2, assigned_to=$3, title=$4, description=$5,
			status=$6, priority=$7, due_date=$8, start_date=$9, estimated_minutes=$10,
			sort_order=$11, completed_at=$12, completed_by=$13, updated_at=NOW()
		WHERE id=$14 AND party_id=$15`
	res, err := tx.ExecContext(ctx, q,
		task.ProjectID, task.ParentTaskID, task.AssignedTo, task.Title, task.Description,
		task.Status, task.Priority, task.DueDate, task.StartDate, task.EstimatedMinutes,
		task.SortOrder, task.CompletedAt, task.CompletedBy, task.ID, task.PartyID,
	)
	if err != nil {
		return fmt.Errorf("update task: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: task %d", ErrNotFound, task.ID)
	}

	if err := r.events.Append(ctx, tx, task.ID, actor.ID, actor.Type, action, detail); err != nil {
		return fmt.Errorf("append activity: %w", err)
	}
	return tx.Commit()
}

func (r *taskRepository) Delete(ctx context.Context, partyID, id int64) error {
	// comments, labels, subtasks and activity go via FK cascade
	if _, err := r.db.ExecContext(ctx,
		`DELETE FROM tasks WHERE id=$1 AND party_id=$2`, id, partyID); err != nil {
		return fmt.Errorf("delete task: %w", err)
	}
	return nil
}

func (r *taskRepository) ListActivity(ctx context.Context, taskID int64, limit int) ([]models.ActivityEvent, error) {
	const q = `
		SELECT id, task_id, actor_id, actor_type, action, detail, created_at
		FROM activity_events WHERE task_id=$1
		ORDER BY created_at DESC LIMIT $2`
	rows, err := r.db.QueryContext(ctx, q, taskID, limit)
	if err != nil {
		return nil, fmt.Errorf("list activity: %w", err)
	}
	defer rows.Close()

	var out []models.ActivityEvent
	for rows.Next() {
		var e models.ActivityEvent
		var detail []byte
		if err := rows.Scan(&e.ID, &e.TaskID, &e.ActorID, &e.ActorType, &e.Action, &detail, &e.CreatedAt); err != nil {
			return nil, err
		}
		_ = unmarshalDetail(detail, &e)
		out = append(out, e)
	}
	return out, rows.Err()
}

func unmarshalDetail(data []byte, e *models.ActivityEvent) error {
	if len(data) == 0 {
		return nil
	}
	return json.Unmarshal(data, &e.Detail)
}

func scanTask(row rowScanner) (*models.Task, error) {
	var t models.Task
	err := row.Scan(
		&t.ID, &t.PartyID, &t.TaskNumber, &t.ProjectID, &t.ParentTaskID,
		&t.CreatedBy, &t.AssignedTo, &t.Title, &t.Description, &t.Status, &t.Priority,
		&t.DueDate, &t.StartDate, &t.EstimatedMinutes, &t.SortOrder,
		&t.CompletedAt, &t.CompletedBy, &t.CreatedAt, &t.UpdatedAt,
		&t.ProjectCode, &t.CommentCount, &t.SubtaskCount,
		pq.Array(&t.LabelNames),
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scan task: %w", err)
	}
	return &t, nil
}

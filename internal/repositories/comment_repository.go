package repositories

import (
	"context"
	"database/sql"
	"fmt"

	"homebase/internal/events"
	"homebase/internal/models"
)

type CommentRepository interface {
	Create(ctx context.Context, comment *models.Comment, actor models.Actor) error
	ListByTask(ctx context.Context, taskID int64) ([]models.Comment, error)
	ListRecentByParty(ctx context.Context, partyID int64, limit int) ([]models.Comment, error)
}

type commentRepository struct {
	db     *sql.DB
	events events.Writer
}

func NewCommentRepository(db *sql.DB, w events.Writer) CommentRepository {
	return &commentRepository{db: db, events: w}
}

func (r *commentRepository) Create(ctx context.Context, comment *models.Comment, actor models.Actor) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	const q = `
		INSERT INTO comments (task_id, author_id, content)
		VALUES ($1,$2,$3)
		RETURNING id, created_at`
	if err := tx.QueryRowContext(ctx, q,
		comment.TaskID, comment.AuthorID, comment.Content,
	).Scan(&comment.ID, &comment.CreatedAt); err != nil {
		return fmt.Errorf("insert comment: %w", err)
	}

	if err := r.events.Append(ctx, tx, comment.TaskID, actor.ID, actor.Type, models.ActionCommented, nil); err != nil {
		return fmt.Errorf("append activity: %w", err)
	}
	return tx.Commit()
}

func (r *commentRepository) ListByTask(ctx context.Context, taskID int64) ([]models.Comment, error) {
	const q = `
		SELECT c.id, c.task_id, c.author_id, c.content, c.created_at, COALESCE(u.display_name, '')
		FROM comments c LEFT JOIN users u ON u.id = c.author_id
		WHERE c.task_id=$1 ORDER BY c.created_at`
	return r.queryComments(ctx, q, taskID)
}

func (r *commentRepository) ListRecentByParty(ctx context.Context, partyID int64, limit int) ([]models.Comment, error) {
	const q = `
		SELECT c.id, c.task_id, c.author_id, c.content, c.created_at, COALESCE(u.display_name, '')
		FROM comments c
		JOIN tasks t ON t.id = c.task_id
		LEFT JOIN users u ON u.id = c.author_id
		WHERE t.party_id=$1
		ORDER BY c.created_at DESC LIMIT $2`
	return r.queryComments(ctx, q, partyID, limit)
}

func (r *commentRepository) queryComments(ctx context.Context, q string, args ...interface{}) ([]models.Comment, error) {
	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("list comments: %w", err)
	}
	defer rows.Close()

	var out []models.Comment
	for rows.Next() {
		var c models.Comment
		if err := rows.Scan(&c.ID, &c.TaskID, &c.AuthorID, &c.Content, &c.CreatedAt, &c.AuthorName); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

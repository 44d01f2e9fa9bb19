package repositories

import (
	"context"
	"database/sql"
	"fmt"

	"homebase/internal/events"
	"homebase/internal/models"
)

type LabelRepository interface {
	// Upsert returns the existing label when the name already exists within
	// the party (case-insensitive), otherwise inserts it. Race-safe via the
	// unique index on (party_id, lower(name)).
	Upsert(ctx context.Context, partyID int64, name string) (*models.Label, error)
	ListByParty(ctx context.Context, partyID int64) ([]models.Label, error)
	Attach(ctx context.Context, taskID, labelID int64, partyID int64, actor models.Actor, name string) error
}

type labelRepository struct {
	db     *sql.DB
	events events.Writer
}

func NewLabelRepository(db *sql.DB, w events.Writer) LabelRepository {
	return &labelRepository{db: db, events: w}
}

func (r *labelRepository) Upsert(ctx context.Context, partyID int64, name string) (*models.Label, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	id, err := upsertLabelTx(ctx, tx, partyID, name)
	if err != nil {
		return nil, err
	}
	l := &models.Label{}
	err = tx.QueryRowContext(ctx,
		`SELECT id, party_id, name, created_at FROM labels WHERE id=$1`, id,
	).Scan(&l.ID, &l.PartyID, &l.Name, &l.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("read label: %w", err)
	}
	return l, tx.Commit()
}

func (r *labelRepository) ListByParty(ctx context.Context, partyID int64) ([]models.Label, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, party_id, name, created_at FROM labels WHERE party_id=$1 ORDER BY lower(name)`, partyID)
	if err != nil {
		return nil, fmt.Errorf("list labels: %w", err)
	}
	defer rows.Close()

	var out []models.Label
	for rows.Next() {
		var l models.Label
		if err := rows.Scan(&l.ID, &l.PartyID, &l.Name, &l.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, l)
	}
	return out, rows.Err()
}

func (r *labelRepository) Attach(ctx context.Context, taskID, labelID int64, partyID int64, actor models.Actor, name string) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO task_labels (task_id, label_id) VALUES ($1,$2) ON CONFLICT DO NOTHING`,
		taskID, labelID); err != nil {
		return fmt.Errorf("attach label: %w", err)
	}
	if err := r.events.Append(ctx, tx, taskID, actor.ID, actor.Type, models.ActionLabeled,
		map[string]string{"label": name}); err != nil {
		return fmt.Errorf("append activity: %w", err)
	}
	return tx.Commit()
}

// upsertLabelTx is the race-safe insert-or-reuse shared by label attach and
// task creation: insert, on conflict with the (party_id, lower(name)) index
// return the existing row.
func upsertLabelTx(ctx context.Context, tx *sql.Tx, partyID int64, name string) (int64, error) {
	const q = `
		INSERT INTO labels (party_id, name) VALUES ($1,$2)
		ON CONFLICT (party_id, lower(name)) DO UPDATE SET name = labels.name
		RETURNING id`
	var id int64
	if err := tx.QueryRowContext(ctx, q, partyID, name).Scan(&id); err != nil {
		return 0, fmt.Errorf("upsert label %q: %w", name, err)
	}
	return id, nil
}

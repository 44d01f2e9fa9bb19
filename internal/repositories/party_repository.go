package repositories

import (
	"context"
	"database/sql"
	"fmt"

	"homebase/internal/models"
)

type PartyRepository interface {
	GetByID(ctx context.Context, id int64) (*models.Party, error)
	IsMember(ctx context.Context, partyID, userID int64) (bool, error)
	ListMembers(ctx context.Context, partyID int64) ([]models.User, error)
	GetUser(ctx context.Context, id int64) (*models.User, error)
}

type partyRepository struct {
	db *sql.DB
}

func NewPartyRepository(db *sql.DB) PartyRepository {
	return &partyRepository{db: db}
}

func (r *partyRepository) GetByID(ctx context.Context, id int64) (*models.Party, error) {
	const q = `SELECT id, name, next_task_number, created_at FROM parties WHERE id=$1`
	p := &models.Party{}
	err := r.db.QueryRowContext(ctx, q, id).Scan(&p.ID, &p.Name, &p.NextTaskNumber, &p.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get party: %w", err)
	}
	return p, nil
}

func (r *partyRepository) IsMember(ctx context.Context, partyID, userID int64) (bool, error) {
	const q = `SELECT EXISTS(SELECT 1 FROM party_members WHERE party_id=$1 AND user_id=$2)`
	var ok bool
	if err := r.db.QueryRowContext(ctx, q, partyID, userID).Scan(&ok); err != nil {
		return false, fmt.Errorf("check membership: %w", err)
	}
	return ok, nil
}

func (r *partyRepository) ListMembers(ctx context.Context, partyID int64) ([]models.User, error) {
	const q = `
		SELECT u.id, u.email, u.display_name, u.created_at
		FROM party_members pm
		JOIN users u ON u.id = pm.user_id
		WHERE pm.party_id = $1
		ORDER BY pm.joined_at`
	rows, err := r.db.QueryContext(ctx, q, partyID)
	if err != nil {
		return nil, fmt.Errorf("list members: %w", err)
	}
	defer rows.Close()

	var out []models.User
	for rows.Next() {
		var u models.User
		if err := rows.Scan(&u.ID, &u.Email, &u.DisplayName, &u.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, u)
	}
	return out, rows.Err()
}

func (r *partyRepository) GetUser(ctx context.Context, id int64) (*models.User, error) {
	const q = `SELECT id, email, display_name, created_at FROM users WHERE id=$1`
	u := &models.User{}
	err := r.db.QueryRowContext(ctx, q, id).Scan(&u.ID, &u.Email, &u.DisplayName, &u.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	return u, nil
}

package repositories

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"homebase/internal/models"
)

type ProjectRepository interface {
	Create(ctx context.Context, project *models.Project) error
	GetByID(ctx context.Context, partyID, id int64) (*models.Project, error)
	GetByCode(ctx context.Context, partyID int64, code string) (*models.Project, error)
	List(ctx context.Context, partyID int64, status *models.ProjectStatus) ([]models.Project, error)
	Update(ctx context.Context, project *models.Project) error
	// Delete removes the project only; its tasks keep living with
	// project_id = NULL (FK ON DELETE SET NULL).
	Delete(ctx context.Context, partyID, id int64) error
}

type projectRepository struct {
	db *sql.DB
}

func NewProjectRepository(db *sql.DB) ProjectRepository {
	return &projectRepository{db: db}
}

func (r *projectRepository) Create(ctx context.Context, project *models.Project) error {
	const q = `
		INSERT INTO projects (party_id, name, description, color, icon, status, owner_id, code)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
		RETURNING id, created_at, updated_at`
	return r.db.QueryRowContext(ctx, q,
		project.PartyID, project.Name, project.Description, project.Color,
		project.Icon, project.Status, project.OwnerID, strings.ToUpper(project.Code),
	).Scan(&project.ID, &project.CreatedAt, &project.UpdatedAt)
}

func (r *projectRepository) GetByID(ctx context.Context, partyID, id int64) (*models.Project, error) {
	const q = projectSelect + ` WHERE id=$1 AND party_id=$2`
	return scanProject(r.db.QueryRowContext(ctx, q, id, partyID))
}

func (r *projectRepository) GetByCode(ctx context.Context, partyID int64, code string) (*models.Project, error) {
	const q = projectSelect + ` WHERE party_id=$1 AND code=$2`
	return scanProject(r.db.QueryRowContext(ctx, q, partyID, strings.ToUpper(code)))
}

func (r *projectRepository) List(ctx context.Context, partyID int64, status *models.ProjectStatus) ([]models.Project, error) {
	q := projectSelect + ` WHERE party_id=$1`
	args := []interface{}{partyID}
	if status != nil {
		q += ` AND status=$2`
		args = append(args, *status)
	}
	q += ` ORDER BY created_at`

	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("list projects: %w", err)
	}
	defer rows.Close()

	var out []models.Project
	for rows.Next() {
		p, err := scanProject(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *p)
	}
	return out, rows.Err()
}

func (r *projectRepository) Update(ctx context.Context, project *models.Project) error {
	const q = `
		UPDATE projects SET
			name=$1, description=$2, color=$3, icon=$4, status=$5, owner_id=$6, code=$7, updated_at=NOW()
		WHERE id=$8 AND party_id=$9`
	res, err := r.db.ExecContext(ctx, q,
		project.Name, project.Description, project.Color, project.Icon,
		project.Status, project.OwnerID, strings.ToUpper(project.Code),
		project.ID, project.PartyID,
	)
	if err != nil {
		return fmt.Errorf("update project: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: project %d", ErrNotFound, project.ID)
	}
	return nil
}

func (r *projectRepository) Delete(ctx context.Context, partyID, id int64) error {
	if _, err := r.db.ExecContext(ctx,
		`DELETE FROM projects WHERE id=$1 AND party_id=$2`, id, partyID); err != nil {
		return fmt.Errorf("delete project: %w", err)
	}
	return nil
}

const projectSelect = `
	SELECT id, party_id, name, description, color, icon, status, owner_id, code, created_at, updated_at
	FROM projects`

func scanProject(row rowScanner) (*models.Project, error) {
	var p models.Project
	err := row.Scan(
		&p.ID, &p.PartyID, &p.Name, &p.Description, &p.Color, &p.Icon,
		&p.Status, &p.OwnerID, &p.Code, &p.CreatedAt, &p.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scan project: %w", err)
	}
	return &p, nil
}

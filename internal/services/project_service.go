package services

import (
	"context"
	"fmt"
	"log"
	"strings"
	"unicode"

	"homebase/internal/models"
	"homebase/internal/repositories"
)

type ProjectUpdate struct {
	Name        *string
	Description *string
	Color       *string
	Icon        *string
	Status      *models.ProjectStatus
	OwnerID     *int64
}

type ProjectService interface {
	Create(ctx context.Context, project *models.Project) (*models.Project, error)
	GetByID(ctx context.Context, partyID, id int64) (*models.Project, error)
	List(ctx context.Context, partyID int64, status *models.ProjectStatus) ([]models.Project, error)
	Update(ctx context.Context, partyID, id int64, update ProjectUpdate) (*models.Project, error)
	// Delete removes the project; its tasks survive with projectId = null.
	Delete(ctx context.Context, partyID, id int64) error
}

type projectService struct {
	repo repositories.ProjectRepository
}

func NewProjectService(repo repositories.ProjectRepository) ProjectService {
	return &projectService{repo: repo}
}

func (s *projectService) Create(ctx context.Context, project *models.Project) (*models.Project, error) {
	project.Name = strings.TrimSpace(project.Name)
	if project.Name == "" {
		return nil, fmt.Errorf("%w: project name is required", ErrValidation)
	}
	if project.Status == "" {
		project.Status = models.ProjectActive
	}
	if project.Color == "" {
		project.Color = "#6b7280"
	}
	if project.Code == "" {
		project.Code = deriveCode(project.Name)
	}
	project.Code = strings.ToUpper(strings.TrimSpace(project.Code))

	if existing, err := s.repo.GetByCode(ctx, project.PartyID, project.Code); err != nil {
		return nil, err
	} else if existing != nil {
		return nil, fmt.Errorf("%w: project code %q already in use", ErrValidation, project.Code)
	}

	if err := s.repo.Create(ctx, project); err != nil {
		return nil, err
	}
	log.Printf("[project][create][ok] party=%d code=%s", project.PartyID, project.Code)
	return project, nil
}

func (s *projectService) GetByID(ctx context.Context, partyID, id int64) (*models.Project, error) {
	project, err := s.repo.GetByID(ctx, partyID, id)
	if err != nil {
		return nil, err
	}
	if project == nil {
		return nil, fmt.Errorf("%w: project %d", ErrNotFound, id)
	}
	return project, nil
}

func (s *projectService) List(ctx context.Context, partyID int64, status *models.ProjectStatus) ([]models.Project, error) {
	return s.repo.List(ctx, partyID, status)
}

func (s *projectService) Update(ctx context.Context, partyID, id int64, update ProjectUpdate) (*models.Project, error) {
	project, err := s.GetByID(ctx, partyID, id)
	if err != nil {
		return nil, err
	}
	if update.Name != nil {
		n := strings.TrimSpace(*update.Name)
		if n == "" {
			return nil, fmt.Errorf("%w: project name cannot be empty", ErrValidation)
		}
		project.Name = n
	}
	if update.Description != nil {
		project.Description = *update.Description
	}
	if update.Color != nil {
		project.Color = *update.Color
	}
	if update.Icon != nil {
		project.Icon = *update.Icon
	}
	if update.Status != nil {
		// archiving never touches the project's tasks
		switch *update.Status {
		case models.ProjectActive, models.ProjectArchived:
			project.Status = *update.Status
		default:
			return nil, fmt.Errorf("%w: unknown project status %q", ErrValidation, *update.Status)
		}
	}
	if update.OwnerID != nil {
		project.OwnerID = update.OwnerID
	}
	if err := s.repo.Update(ctx, project); err != nil {
		return nil, err
	}
	return project, nil
}

func (s *projectService) Delete(ctx context.Context, partyID, id int64) error {
	if _, err := s.GetByID(ctx, partyID, id); err != nil {
		return err
	}
	return s.repo.Delete(ctx, partyID, id)
}

// deriveCode builds a short uppercase prefix from the project name:
// initials for multi-word names, a truncation otherwise.
func deriveCode(name string) string {
	fields := strings.FieldsFunc(name, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	var b strings.Builder
	if len(fields) >= 2 {
		for _, f := range fields {
			b.WriteRune(unicode.ToUpper([]rune(f)[0]))
			if b.Len() >= 4 {
				break
			}
		}
	} else if len(fields) == 1 {
		runes := []rune(fields[0])
		if len(runes) > 4 {
			runes = runes[:4]
		}
		b.WriteString(strings.ToUpper(string(runes)))
	}
	if b.Len() == 0 {
		return "PRJ"
	}
	return b.String()
}

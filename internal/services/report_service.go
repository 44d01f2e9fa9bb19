package services

import (
	"context"
	"io"
	"time"

	"homebase/internal/models"
	"homebase/internal/pdf"
	"homebase/internal/repositories"
)

// ReportService renders the party's current task state as a downloadable PDF.
type ReportService struct {
	Tasks    repositories.TaskRepository
	Projects repositories.ProjectRepository
	Party    repositories.PartyRepository
	Gen      pdf.Generator
}

func NewReportService(
	tasks repositories.TaskRepository,
	projects repositories.ProjectRepository,
	party repositories.PartyRepository,
	gen pdf.Generator,
) *ReportService {
	return &ReportService{Tasks: tasks, Projects: projects, Party: party, Gen: gen}
}

func (s *ReportService) WriteTaskReport(ctx context.Context, w io.Writer, partyID int64, filter models.TaskFilter) error {
	party, err := s.Party.GetByID(ctx, partyID)
	if err != nil {
		return err
	}
	partyName := "unknown"
	if party != nil {
		partyName = party.Name
	}

	tasks, err := s.Tasks.List(ctx, partyID, filter)
	if err != nil {
		return err
	}
	projects, err := s.Projects.List(ctx, partyID, nil)
	if err != nil {
		return err
	}

	names := map[int64]string{}
	if members, err := s.Party.ListMembers(ctx, partyID); err == nil {
		for _, m := range members {
			names[m.ID] = m.DisplayName
		}
	}

	return s.Gen.TaskReport(w, pdf.TaskReportData{
		PartyName:   partyName,
		GeneratedAt: time.Now().UTC(),
		Projects:    projects,
		Tasks:       tasks,
		MemberNames: names,
	})
}

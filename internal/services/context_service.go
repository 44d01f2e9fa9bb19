package services

import (
	"context"
	"fmt"
	"log"
	"strings"

	"homebase/internal/models"
	"homebase/internal/repositories"
)

// ContextService aggregates a party's current state into the grounding block
// fed to the assistant. It degrades gracefully: a failing sub-query is logged
// and leaves its field empty instead of failing the whole assembly.
type ContextService struct {
	Party    repositories.PartyRepository
	Docs     repositories.DocumentRepository
	Tasks    repositories.TaskRepository
	Projects repositories.ProjectRepository
	Comments repositories.CommentRepository
}

const recentCommentWindow = 10

func NewContextService(
	party repositories.PartyRepository,
	docs repositories.DocumentRepository,
	tasks repositories.TaskRepository,
	projects repositories.ProjectRepository,
	comments repositories.CommentRepository,
) *ContextService {
	return &ContextService{Party: party, Docs: docs, Tasks: tasks, Projects: projects, Comments: comments}
}

func (s *ContextService) Assemble(ctx context.Context, partyID int64) *models.PartyKnowledge {
	k := &models.PartyKnowledge{PartyName: "unknown"}

	if party, err := s.Party.GetByID(ctx, partyID); err != nil {
		log.Printf("[context][warn] party %d: %v", partyID, err)
	} else if party != nil {
		k.PartyName = party.Name
	}

	if members, err := s.Party.ListMembers(ctx, partyID); err != nil {
		log.Printf("[context][warn] members party=%d: %v", partyID, err)
	} else {
		k.Members = members
	}

	ready := models.DocStatusReady
	if docs, err := s.Docs.List(ctx, partyID, models.DocumentFilter{Status: &ready}); err != nil {
		log.Printf("[context][warn] documents party=%d: %v", partyID, err)
	} else {
		k.Documents = docs
	}

	if tasks, err := s.Tasks.List(ctx, partyID, models.TaskFilter{}); err != nil {
		log.Printf("[context][warn] tasks party=%d: %v", partyID, err)
	} else {
		for _, t := range tasks {
			if t.Status != models.StatusDone {
				k.OpenTasks = append(k.OpenTasks, t)
			}
		}
	}

	if projects, err := s.Projects.List(ctx, partyID, nil); err != nil {
		log.Printf("[context][warn] projects party=%d: %v", partyID, err)
	} else {
		k.Projects = projects
	}

	if comments, err := s.Comments.ListRecentByParty(ctx, partyID, recentCommentWindow); err != nil {
		log.Printf("[context][warn] comments party=%d: %v", partyID, err)
	} else {
		k.RecentComments = comments
	}

	return k
}

// Render flattens the knowledge into the compact text block used as system
// prompt grounding.
func (s *ContextService) Render(k *models.PartyKnowledge) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Household: %s\n", k.PartyName)

	b.WriteString("Members:\n")
	if len(k.Members) == 0 {
		b.WriteString("  (unknown)\n")
	}
	for _, m := range k.Members {
		fmt.Fprintf(&b, "  - %s (user %d)\n", displayName(m), m.ID)
	}

	b.WriteString("Projects:\n")
	if len(k.Projects) == 0 {
		b.WriteString("  (none)\n")
	}
	for _, p := range k.Projects {
		fmt.Fprintf(&b, "  - [%s] %s (%s)\n", p.Code, p.Name, p.Status)
	}

	b.WriteString("Open tasks:\n")
	if len(k.OpenTasks) == 0 {
		b.WriteString("  (none)\n")
	}
	for _, t := range k.OpenTasks {
		line := fmt.Sprintf("  - %s %s [%s, %s]", t.DisplayCode(), t.Title, t.Status, t.Priority)
		if t.AssignedTo != nil {
			line += fmt.Sprintf(" assignee=%s", s.memberName(k, *t.AssignedTo))
		}
		if t.DueDate != nil {
			line += " due=" + t.DueDate.Format("2006-01-02")
		}
		if t.SubtaskCount > 0 {
			line += fmt.Sprintf(" subtasks=%d", t.SubtaskCount)
		}
		if t.CommentCount > 0 {
			line += fmt.Sprintf(" comments=%d", t.CommentCount)
		}
		b.WriteString(line + "\n")
	}

	b.WriteString("Documents:\n")
	if len(k.Documents) == 0 {
		b.WriteString("  (none)\n")
	}
	for _, d := range k.Documents {
		fmt.Fprintf(&b, "  - %s (%s)\n", d.Title, d.Category)
	}

	if len(k.RecentComments) > 0 {
		b.WriteString("Recent activity:\n")
		for _, c := range k.RecentComments {
			author := c.AuthorName
			if author == "" {
				author = "unknown"
			}
			fmt.Fprintf(&b, "  - %s: %s\n", author, c.Content)
		}
	}
	return b.String()
}

func (s *ContextService) memberName(k *models.PartyKnowledge, userID int64) string {
	for _, m := range k.Members {
		if m.ID == userID {
			return displayName(m)
		}
	}
	return "unknown"
}

func displayName(u models.User) string {
	if u.DisplayName != "" {
		return u.DisplayName
	}
	return u.Email
}

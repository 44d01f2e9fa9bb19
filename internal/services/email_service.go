package services

import (
	"fmt"
	"html"
	"log"

	"gopkg.in/gomail.v2"

	"homebase/internal/models"
)

type EmailService interface {
	Notifier
	DocumentReady(email, displayName string, doc *models.Document) error
}

type emailService struct {
	dialer *gomail.Dialer
	from   string
	dryRun bool
}

func NewEmailService(smtpHost string, smtpPort int, smtpUser, smtpPassword, fromEmail string, dryRun bool) EmailService {
	return &emailService{
		dialer: gomail.NewDialer(smtpHost, smtpPort, smtpUser, smtpPassword),
		from:   fromEmail,
		dryRun: dryRun,
	}
}

func (s *emailService) TaskAssigned(email, displayName string, task *models.Task) error {
	due := "no due date"
	if task.DueDate != nil {
		due = task.DueDate.Format("2006-01-02")
	}
	body := fmt.Sprintf(`
		<h3>A task was assigned to you</h3>
		<p><strong>%s</strong> — %s</p>
		<p>Priority: %s · Due: %s</p>
		<p>Open HomeBase to see the details.</p>
	`, task.DisplayCode(), html.EscapeString(task.Title), task.Priority, due)
	return s.send(email, "Task assigned: "+task.Title, body)
}

func (s *emailService) DocumentReady(email, displayName string, doc *models.Document) error {
	body := fmt.Sprintf(`
		<h3>A document is ready</h3>
		<p><strong>%s</strong> (%s) has been processed and is now searchable.</p>
	`, html.EscapeString(doc.Title), doc.Category)
	return s.send(email, "Document ready: "+doc.Title, body)
}

func (s *emailService) send(to, subject, body string) error {
	if s.dryRun || s.from == "" {
		log.Printf("[email][dry-run] to=%s subject=%q", to, subject)
		return nil
	}
	m := gomail.NewMessage()
	m.SetHeader("From", s.from)
	m.SetHeader("To", to)
	m.SetHeader("Subject", subject)
	m.SetBody("text/html", body)

	if err := s.dialer.DialAndSend(m); err != nil {
		return fmt.Errorf("send email to %s: %w", to, err)
	}
	return nil
}

package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"launchpad/internal/featureflags"
	"launchpad/internal/mailer"
	"launchpad/internal/middleware"
	"launchpad/internal/models"
	"launchpad/internal/observability"
	"launchpad/internal/repository"
	"launchpad/internal/validation"
)

// Mailer delivers one email.
type Mailer interface {
	Send(ctx context.Context, msg mailer.Message) error
}

type ContactInput struct {
	Name     string `json:"name" validate:"required,min=1,max=100"`
	Email    string `json:"email" validate:"required,email"`
	Subject  string `json:"subject" validate:"max=200"`
	Message  string `json:"message" validate:"required,min=10,max=5000"`
	RemoteIP string `json:"-"`
}

// ContactService persists contact form submissions and forwards them by email.
type ContactService struct {
	contacts repository.ContactRepository
	mailer   Mailer
	flags    *featureflags.Manager
}

// NewContactService accepts a nil mailer; messages are then stored only.
func NewContactService(contacts repository.ContactRepository, m Mailer, flags *featureflags.Manager) *ContactService {
	return &ContactService{contacts: contacts, mailer: m, flags: flags}
}

// Submit stores the message and tries to send it. A failed send is recorded on
// the message and does not fail the submission.
func (s *ContactService) Submit(ctx context.Context, in ContactInput) (*models.ContactMessage, error) {
	in.Name = strings.TrimSpace(in.Name)
	in.Email = strings.TrimSpace(in.Email)
	in.Subject = strings.TrimSpace(in.Subject)
	in.Message = strings.TrimSpace(in.Message)
	if err := validation.Struct(in); err != nil {
		return nil, models.NewValidationError(err.Error())
	}

	msg := &models.ContactMessage{
		Name:     in.Name,
		Email:    strings.ToLower(in.Email),
		Subject:  in.Subject,
		Message:  in.Message,
		Status:   models.ContactStatusReceived,
		RemoteIP: in.RemoteIP,
	}
	if err := s.contacts.Create(ctx, msg); err != nil {
		return nil, err
	}

	if s.mailer == nil || !s.flags.Enabled(featureflags.ContactEmail, 0) {
		middleware.Logger.InfoContext(ctx, "Contact message stored without email delivery", slog.Uint64("contact_id", uint64(msg.ID)))
		observability.ContactEmailsTotal.WithLabelValues("skipped").Inc()
		return msg, nil
	}

	sendErr := s.mailer.Send(ctx, contactEmail(msg))
	status, errMsg := models.ContactStatusSent, ""
	if sendErr != nil {
		status, errMsg = models.ContactStatusFailed, sendErr.Error()
		observability.LogAsyncOperationError(ctx, middleware.Logger, "contact_email", sendErr,
			slog.Uint64("contact_id", uint64(msg.ID)))
	}
	observability.ContactEmailsTotal.WithLabelValues(status).Inc()
	if err := s.contacts.UpdateStatus(ctx, msg.ID, status, errMsg); err != nil {
		return nil, err
	}
	msg.Status = status
	msg.Error = errMsg
	return msg, nil
}

func contactEmail(msg *models.ContactMessage) mailer.Message {
	subject := msg.Subject
	if subject == "" {
		subject = "New contact message"
	}
	return mailer.Message{
		ReplyTo: msg.Email,
		Subject: "[Launchpad] " + subject,
		Text:    fmt.Sprintf("From: %s <%s>\n\n%s\n", msg.Name, msg.Email, msg.Message),
	}
}

package service

import (
	"context"

	"hospital-management/backend/internal/models"
	"hospital-management/backend/internal/repository"
	"hospital-management/backend/pkg/logger"
)

// ContactNotifier pushes new contact-form submissions to the super-admin
// console group.
type ContactNotifier interface {
	NotifyContact(msg models.ContactMessage)
}

// ContactService persists contact-form submissions and fans them out to
// connected super-admins.
type ContactService struct {
	contacts repository.ContactRepository
	notifier ContactNotifier
	log      *logger.Logger
}

func NewContactService(contacts repository.ContactRepository, notifier ContactNotifier, log *logger.Logger) *ContactService {
	return &ContactService{contacts: contacts, notifier: notifier, log: log}
}

// Submit stores the submission and notifies the console. Notification is
// best effort; the stored record is the source of truth.
func (s *ContactService) Submit(ctx context.Context, msg *models.ContactMessage) error {
	if err := s.contacts.Create(ctx, msg); err != nil {
		return err
	}
	if s.notifier != nil {
		s.notifier.NotifyContact(*msg)
	}
	s.log.Info("contact form received", "contact_id", msg.ID, "subject", msg.Subject)
	return nil
}

// List returns all submissions, newest first.
func (s *ContactService) List(ctx context.Context) ([]models.ContactMessage, error) {
	return s.contacts.List(ctx)
}

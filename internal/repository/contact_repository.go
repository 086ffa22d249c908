package repository

import (
	"context"
	"sync"

	"gorm.io/gorm"

	"hospital-management/backend/internal/models"
)

// ContactRepository stores website contact-form submissions.
type ContactRepository interface {
	Create(ctx context.Context, msg *models.ContactMessage) error
	List(ctx context.Context) ([]models.ContactMessage, error)
}

type GormContactRepository struct {
	db *gorm.DB
}

func NewGormContactRepository(db *gorm.DB) *GormContactRepository {
	return &GormContactRepository{db: db}
}

func (r *GormContactRepository) Create(ctx context.Context, msg *models.ContactMessage) error {
	return r.db.WithContext(ctx).Create(msg).Error
}

func (r *GormContactRepository) List(ctx context.Context) ([]models.ContactMessage, error) {
	var messages []models.ContactMessage
	err := r.db.WithContext(ctx).Order("created_at desc").Find(&messages).Error
	return messages, err
}

// MemoryContactRepository is the in-memory variant used in tests.
type MemoryContactRepository struct {
	mu       sync.RWMutex
	messages []models.ContactMessage
	nextID   uint
}

func NewMemoryContactRepository() *MemoryContactRepository {
	return &MemoryContactRepository{nextID: 1}
}

func (r *MemoryContactRepository) Create(ctx context.Context, msg *models.ContactMessage) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	msg.ID = r.nextID
	r.nextID++
	r.messages = append(r.messages, *msg)
	return nil
}

func (r *MemoryContactRepository) List(ctx context.Context) ([]models.ContactMessage, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]models.ContactMessage, len(r.messages))
	copy(out, r.messages)
	return out, nil
}

package repository

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"hospital-management/backend/internal/models"

	"gorm.io/gorm"
)

// ErrSessionNotFound is returned when no chat session exists for the
// (hospital, session) pair.
var ErrSessionNotFound = errors.New("chat session not found")

// SessionRepository persists chat sessions. Save must replace the whole
// document; callers serialize writes per session above this layer.
type SessionRepository interface {
	Get(ctx context.Context, hospitalID uint, sessionID string) (*models.ChatSession, error)
	Create(ctx context.Context, session *models.ChatSession) error
	Save(ctx context.Context, session *models.ChatSession) error
	Delete(ctx context.Context, hospitalID uint, sessionID string) error
	ListByStatus(ctx context.Context, hospitalID uint, status string) ([]models.ChatSession, error)
}

type GormSessionRepository struct {
	db *gorm.DB
}

func NewGormSessionRepository(db *gorm.DB) *GormSessionRepository {
	return &GormSessionRepository{db: db}
}

func (r *GormSessionRepository) Get(ctx context.Context, hospitalID uint, sessionID string) (*models.ChatSession, error) {
	var session models.ChatSession
	err := r.db.WithContext(ctx).
		Where("hospital_id = ? AND session_id = ?", hospitalID, sessionID).
		First(&session).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrSessionNotFound
		}
		return nil, err
	}
	return &session, nil
}

func (r *GormSessionRepository) Create(ctx context.Context, session *models.ChatSession) error {
	return r.db.WithContext(ctx).Create(session).Error
}

func (r *GormSessionRepository) Save(ctx context.Context, session *models.ChatSession) error {
	return r.db.WithContext(ctx).Save(session).Error
}

func (r *GormSessionRepository) Delete(ctx context.Context, hospitalID uint, sessionID string) error {
	result := r.db.WithContext(ctx).
		Where("hospital_id = ? AND session_id = ?", hospitalID, sessionID).
		Delete(&models.ChatSession{})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrSessionNotFound
	}
	return nil
}

func (r *GormSessionRepository) ListByStatus(ctx context.Context, hospitalID uint, status string) ([]models.ChatSession, error) {
	var sessions []models.ChatSession
	err := r.db.WithContext(ctx).
		Where("hospital_id = ? AND status = ?", hospitalID, status).
		Order("last_activity ASC").
		Find(&sessions).Error
	return sessions, err
}

// MemorySessionRepository is an in-process implementation used in tests and
// single-node development setups.
type MemorySessionRepository struct {
	mu       sync.RWMutex
	sessions map[string]*models.ChatSession
	nextID   uint
}

func NewMemorySessionRepository() *MemorySessionRepository {
	return &MemorySessionRepository{sessions: make(map[string]*models.ChatSession)}
}

func sessionKey(hospitalID uint, sessionID string) string {
	return fmt.Sprintf("%d/%s", hospitalID, sessionID)
}

func (r *MemorySessionRepository) Get(_ context.Context, hospitalID uint, sessionID string) (*models.ChatSession, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	session, ok := r.sessions[sessionKey(hospitalID, sessionID)]
	if !ok {
		return nil, ErrSessionNotFound
	}
	copied := *session
	copied.Messages = append([]models.ChatMessage(nil), session.Messages...)
	return &copied, nil
}

func (r *MemorySessionRepository) Create(_ context.Context, session *models.ChatSession) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.nextID++
	session.ID = r.nextID
	stored := *session
	stored.Messages = append([]models.ChatMessage(nil), session.Messages...)
	r.sessions[sessionKey(session.HospitalID, session.SessionID)] = &stored
	return nil
}

func (r *MemorySessionRepository) Save(_ context.Context, session *models.ChatSession) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	stored := *session
	stored.Messages = append([]models.ChatMessage(nil), session.Messages...)
	r.sessions[sessionKey(session.HospitalID, session.SessionID)] = &stored
	return nil
}

func (r *MemorySessionRepository) Delete(_ context.Context, hospitalID uint, sessionID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := sessionKey(hospitalID, sessionID)
	if _, ok := r.sessions[key]; !ok {
		return ErrSessionNotFound
	}
	delete(r.sessions, key)
	return nil
}

func (r *MemorySessionRepository) ListByStatus(_ context.Context, hospitalID uint, status string) ([]models.ChatSession, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var sessions []models.ChatSession
	for _, session := range r.sessions {
		if session.HospitalID == hospitalID && session.Status == status {
			copied := *session
			copied.Messages = append([]models.ChatMessage(nil), session.Messages...)
			sessions = append(sessions, copied)
		}
	}
	return sessions, nil
}

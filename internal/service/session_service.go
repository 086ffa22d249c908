package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"hospital-management/backend/internal/models"
	"hospital-management/backend/internal/repository"
)

// SessionService is the single accessor for chat sessions. Every mutation
// goes through a per-session mutex so concurrent requests for the same
// session cannot interleave their read-modify-write of the message list.
type SessionService struct {
	repo        repository.SessionRepository
	maxMessages int

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewSessionService creates a session service retaining at most maxMessages
// messages per session.
func NewSessionService(repo repository.SessionRepository, maxMessages int) *SessionService {
	if maxMessages <= 0 {
		maxMessages = 50
	}
	return &SessionService{
		repo:        repo,
		maxMessages: maxMessages,
		locks:       make(map[string]*sync.Mutex),
	}
}

func (s *SessionService) lockFor(hospitalID uint, sessionID string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := fmt.Sprintf("%d/%s", hospitalID, sessionID)
	lock, ok := s.locks[key]
	if !ok {
		lock = &sync.Mutex{}
		s.locks[key] = lock
	}
	return lock
}

// GetOrCreate returns the session for (hospital, session id), creating it
// lazily in AI mode on first contact. Creation defaults live here and
// nowhere else.
func (s *SessionService) GetOrCreate(ctx context.Context, hospitalID uint, sessionID, userName, userEmail string) (*models.ChatSession, error) {
	lock := s.lockFor(hospitalID, sessionID)
	lock.Lock()
	defer lock.Unlock()

	session, err := s.repo.Get(ctx, hospitalID, sessionID)
	if err == nil {
		return session, nil
	}
	if err != repository.ErrSessionNotFound {
		return nil, err
	}

	session = &models.ChatSession{
		HospitalID:   hospitalID,
		SessionID:    sessionID,
		UserName:     userName,
		UserEmail:    userEmail,
		ChatType:     models.ChatTypeAI,
		Status:       models.ChatStatusActive,
		LastActivity: time.Now(),
	}
	if err := s.repo.Create(ctx, session); err != nil {
		return nil, err
	}
	return session, nil
}

// Get returns the session or repository.ErrSessionNotFound.
func (s *SessionService) Get(ctx context.Context, hospitalID uint, sessionID string) (*models.ChatSession, error) {
	return s.repo.Get(ctx, hospitalID, sessionID)
}

// Mutate applies fn to the session under the per-session lock and persists
// the result. The session is created first if absent.
func (s *SessionService) Mutate(ctx context.Context, hospitalID uint, sessionID string, fn func(*models.ChatSession) error) (*models.ChatSession, error) {
	lock := s.lockFor(hospitalID, sessionID)
	lock.Lock()
	defer lock.Unlock()

	session, err := s.repo.Get(ctx, hospitalID, sessionID)
	if err == repository.ErrSessionNotFound {
		session = &models.ChatSession{
			HospitalID:   hospitalID,
			SessionID:    sessionID,
			ChatType:     models.ChatTypeAI,
			Status:       models.ChatStatusActive,
			LastActivity: time.Now(),
		}
		if err := s.repo.Create(ctx, session); err != nil {
			return nil, err
		}
	} else if err != nil {
		return nil, err
	}

	if err := fn(session); err != nil {
		return nil, err
	}

	session.Truncate(s.maxMessages)
	if err := s.repo.Save(ctx, session); err != nil {
		return nil, err
	}
	return session, nil
}

// MutateExisting is like Mutate but fails with
// repository.ErrSessionNotFound instead of creating the session.
func (s *SessionService) MutateExisting(ctx context.Context, hospitalID uint, sessionID string, fn func(*models.ChatSession) error) (*models.ChatSession, error) {
	lock := s.lockFor(hospitalID, sessionID)
	lock.Lock()
	defer lock.Unlock()

	session, err := s.repo.Get(ctx, hospitalID, sessionID)
	if err != nil {
		return nil, err
	}

	if err := fn(session); err != nil {
		return nil, err
	}

	session.Truncate(s.maxMessages)
	if err := s.repo.Save(ctx, session); err != nil {
		return nil, err
	}
	return session, nil
}

// Append adds messages to the session under the per-session lock.
func (s *SessionService) Append(ctx context.Context, hospitalID uint, sessionID string, messages ...models.ChatMessage) (*models.ChatSession, error) {
	return s.Mutate(ctx, hospitalID, sessionID, func(session *models.ChatSession) error {
		for _, msg := range messages {
			session.Append(msg)
		}
		return nil
	})
}

// History returns the last limit messages of the session.
func (s *SessionService) History(ctx context.Context, hospitalID uint, sessionID string, limit int) ([]models.ChatMessage, error) {
	session, err := s.repo.Get(ctx, hospitalID, sessionID)
	if err == repository.ErrSessionNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return session.RecentMessages(limit), nil
}

// Clear deletes the session. This is the only delete path; sessions are
// otherwise retained indefinitely.
func (s *SessionService) Clear(ctx context.Context, hospitalID uint, sessionID string) error {
	lock := s.lockFor(hospitalID, sessionID)
	lock.Lock()
	defer lock.Unlock()

	err := s.repo.Delete(ctx, hospitalID, sessionID)
	if err == repository.ErrSessionNotFound {
		return nil
	}
	return err
}

// ListByStatus returns the hospital's sessions with the given status,
// oldest activity first.
func (s *SessionService) ListByStatus(ctx context.Context, hospitalID uint, status string) ([]models.ChatSession, error) {
	return s.repo.ListByStatus(ctx, hospitalID, status)
}

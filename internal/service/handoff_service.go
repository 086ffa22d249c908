package service

import (
	"context"
	"errors"
	"fmt"

	"hospital-management/backend/internal/models"
	"hospital-management/backend/pkg/logger"
)

var (
	// ErrNotWaiting is returned when an agent accepts a chat that is not
	// queued for a human.
	ErrNotWaiting = errors.New("chat is not waiting for an agent")
	// ErrChatClosed is returned on agent actions against a closed chat.
	ErrChatClosed = errors.New("chat is closed")
)

const (
	msgWaitingForAgent = "Please wait, we are connecting you to one of our agents."
	msgBackToAI        = "You are now chatting with our AI assistant again."
	msgChatClosed      = "This chat has been closed. Thank you for contacting us."
)

// HandoffService drives the AI-to-human hand-off state machine. All
// transitions run under the session service's per-session lock.
type HandoffService struct {
	sessions *SessionService
	notifier Notifier
	log      *logger.Logger
}

func NewHandoffService(sessions *SessionService, notifier Notifier, log *logger.Logger) *HandoffService {
	return &HandoffService{sessions: sessions, notifier: notifier, log: log}
}

// RequestHuman moves the session into the waiting queue. The transition
// is applied unconditionally, so a closed chat re-enters the queue and a
// chat already waiting stays waiting without a duplicate queue message.
func (s *HandoffService) RequestHuman(ctx context.Context, hospitalID uint, sessionID, userName, userEmail string) (*models.ChatSession, error) {
	if _, err := s.sessions.GetOrCreate(ctx, hospitalID, sessionID, userName, userEmail); err != nil {
		return nil, err
	}

	var queued models.ChatMessage
	var appended bool
	session, err := s.sessions.Mutate(ctx, hospitalID, sessionID, func(sess *models.ChatSession) error {
		alreadyWaiting := sess.ChatType == models.ChatTypeHuman && sess.Status == models.ChatStatusWaiting
		sess.ChatType = models.ChatTypeHuman
		sess.Status = models.ChatStatusWaiting
		sess.AssignedAgentID = nil
		if userName != "" {
			sess.UserName = userName
		}
		if userEmail != "" {
			sess.UserEmail = userEmail
		}
		if !alreadyWaiting {
			queued = models.NewChatMessage(models.RoleAdmin, msgWaitingForAgent)
			sess.Append(queued)
			appended = true
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if appended && s.notifier != nil {
		s.notifier.NotifyMessage(hospitalID, sessionID, queued)
	}
	s.log.Info("human support requested", "hospital_id", hospitalID, "session_id", sessionID)
	return session, nil
}

// Accept assigns the waiting chat to an agent and notifies the visitor.
func (s *HandoffService) Accept(ctx context.Context, hospitalID uint, sessionID string, agentID uint, agentName string) (*models.ChatSession, error) {
	var joined models.ChatMessage
	session, err := s.sessions.MutateExisting(ctx, hospitalID, sessionID, func(sess *models.ChatSession) error {
		if sess.Status == models.ChatStatusClosed {
			return ErrChatClosed
		}
		if !(sess.ChatType == models.ChatTypeHuman && sess.Status == models.ChatStatusWaiting) {
			return ErrNotWaiting
		}
		sess.Status = models.ChatStatusActive
		sess.AssignedAgentID = &agentID
		joined = models.NewChatMessage(models.RoleAdmin, fmt.Sprintf("%s has joined the chat.", agentName))
		sess.Append(joined)
		return nil
	})
	if err != nil {
		return nil, err
	}

	if s.notifier != nil {
		s.notifier.NotifyAgentJoined(hospitalID, sessionID, agentName)
		s.notifier.NotifyMessage(hospitalID, sessionID, joined)
	}
	s.log.Info("agent joined chat", "hospital_id", hospitalID, "session_id", sessionID, "agent_id", agentID)
	return session, nil
}

// AgentMessage appends an agent reply during a human conversation.
func (s *HandoffService) AgentMessage(ctx context.Context, hospitalID uint, sessionID, content string) (*models.ChatSession, error) {
	var msg models.ChatMessage
	session, err := s.sessions.MutateExisting(ctx, hospitalID, sessionID, func(sess *models.ChatSession) error {
		if sess.Status == models.ChatStatusClosed {
			return ErrChatClosed
		}
		msg = models.NewChatMessage(models.RoleAdmin, content)
		sess.Append(msg)
		return nil
	})
	if err != nil {
		return nil, err
	}

	if s.notifier != nil {
		s.notifier.NotifyMessage(hospitalID, sessionID, msg)
	}
	return session, nil
}

// UserMessage appends a visitor message while a human owns the chat.
func (s *HandoffService) UserMessage(ctx context.Context, hospitalID uint, sessionID, content string) (*models.ChatSession, error) {
	var msg models.ChatMessage
	session, err := s.sessions.MutateExisting(ctx, hospitalID, sessionID, func(sess *models.ChatSession) error {
		if sess.Status == models.ChatStatusClosed {
			return ErrChatClosed
		}
		msg = models.NewChatMessage(models.RoleUser, content)
		sess.Append(msg)
		return nil
	})
	if err != nil {
		return nil, err
	}

	if s.notifier != nil {
		s.notifier.NotifyMessage(hospitalID, sessionID, msg)
	}
	return session, nil
}

// SwitchToAI hands the conversation back to the assistant.
func (s *HandoffService) SwitchToAI(ctx context.Context, hospitalID uint, sessionID string) (*models.ChatSession, error) {
	var back models.ChatMessage
	session, err := s.sessions.MutateExisting(ctx, hospitalID, sessionID, func(sess *models.ChatSession) error {
		sess.ChatType = models.ChatTypeAI
		sess.Status = models.ChatStatusActive
		sess.AssignedAgentID = nil
		back = models.NewChatMessage(models.RoleAdmin, msgBackToAI)
		sess.Append(back)
		return nil
	})
	if err != nil {
		return nil, err
	}

	if s.notifier != nil {
		s.notifier.NotifyMessage(hospitalID, sessionID, back)
	}
	return session, nil
}

// Close ends the conversation. Closed chats stay readable but reject
// further agent activity until the visitor requests support again.
func (s *HandoffService) Close(ctx context.Context, hospitalID uint, sessionID string) (*models.ChatSession, error) {
	session, err := s.sessions.MutateExisting(ctx, hospitalID, sessionID, func(sess *models.ChatSession) error {
		if sess.Status == models.ChatStatusClosed {
			return ErrChatClosed
		}
		sess.Status = models.ChatStatusClosed
		sess.Append(models.NewChatMessage(models.RoleAdmin, msgChatClosed))
		return nil
	})
	if err != nil {
		return nil, err
	}

	if s.notifier != nil {
		s.notifier.NotifyClosed(hospitalID, sessionID)
	}
	s.log.Info("chat closed", "hospital_id", hospitalID, "session_id", sessionID)
	return session, nil
}

// Typing relays the agent typing indicator; nothing is persisted.
func (s *HandoffService) Typing(hospitalID uint, sessionID string, typing bool) {
	if s.notifier != nil {
		s.notifier.NotifyAgentTyping(hospitalID, sessionID, typing)
	}
}

// Waiting lists the hospital's chats queued for an agent.
func (s *HandoffService) Waiting(ctx context.Context, hospitalID uint) ([]models.ChatSession, error) {
	return s.sessions.ListByStatus(ctx, hospitalID, models.ChatStatusWaiting)
}

// Active lists the hospital's chats currently owned by agents.
func (s *HandoffService) Active(ctx context.Context, hospitalID uint) ([]models.ChatSession, error) {
	sessions, err := s.sessions.ListByStatus(ctx, hospitalID, models.ChatStatusActive)
	if err != nil {
		return nil, err
	}
	out := sessions[:0]
	for _, sess := range sessions {
		if sess.ChatType == models.ChatTypeHuman {
			out = append(out, sess)
		}
	}
	return out, nil
}

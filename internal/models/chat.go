package models

import (
	"time"
)

// Chat modes and lifecycle states for a visitor session.
const (
	ChatTypeAI    = "ai"
	ChatTypeHuman = "human"

	ChatStatusActive  = "active"
	ChatStatusWaiting = "waiting"
	ChatStatusClosed  = "closed"
)

// Message roles. User messages come from the visitor, assistant messages
// from the AI generator, admin messages from a human agent.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleAdmin     = "admin"
)

// ChatMessage is one entry in a session's message sequence. Read flags
// default to read-by-author, unread-by-the-other-party.
type ChatMessage struct {
	Role        string    `json:"role"`
	Content     string    `json:"content"`
	Timestamp   time.Time `json:"timestamp"`
	ReadByAdmin bool      `json:"readByAdmin"`
	ReadByUser  bool      `json:"readByUser"`
}

// NewChatMessage creates a message with read flags set per the role.
func NewChatMessage(role, content string) ChatMessage {
	return ChatMessage{
		Role:        role,
		Content:     content,
		Timestamp:   time.Now(),
		ReadByAdmin: role == RoleAdmin,
		ReadByUser:  role != RoleAdmin,
	}
}

// ChatSession is one visitor's conversation with a hospital, identified by
// (HospitalID, SessionID). The message sequence is stored as a JSON document
// column and is append-only except for front-truncation at the retention bound.
type ChatSession struct {
	ID              uint          `json:"id" gorm:"primaryKey"`
	HospitalID      uint          `json:"hospitalId" gorm:"uniqueIndex:idx_chat_hospital_session"`
	SessionID       string        `json:"sessionId" gorm:"uniqueIndex:idx_chat_hospital_session"`
	UserName        string        `json:"userName"`
	UserEmail       string        `json:"userEmail"`
	ChatType        string        `json:"chatType" gorm:"default:ai"`
	Status          string        `json:"status" gorm:"default:active"`
	AssignedAgentID *uint         `json:"assignedAgentId"`
	Messages        []ChatMessage `json:"messages" gorm:"serializer:json"`
	HospitalContext string        `json:"-" gorm:"type:text"`
	LastActivity    time.Time     `json:"lastActivity"`
	CreatedAt       time.Time     `json:"createdAt"`
	UpdatedAt       time.Time     `json:"updatedAt"`
}

// Append adds a message and bumps the activity timestamp.
func (s *ChatSession) Append(msg ChatMessage) {
	s.Messages = append(s.Messages, msg)
	s.LastActivity = time.Now()
}

// Truncate drops the oldest messages so at most max remain. Order of the
// surviving messages is preserved.
func (s *ChatSession) Truncate(max int) {
	if max > 0 && len(s.Messages) > max {
		s.Messages = s.Messages[len(s.Messages)-max:]
	}
}

// RecentMessages returns the last n messages in order.
func (s *ChatSession) RecentMessages(n int) []ChatMessage {
	if n <= 0 || len(s.Messages) <= n {
		return s.Messages
	}
	return s.Messages[len(s.Messages)-n:]
}

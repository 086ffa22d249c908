package service

import (
	"context"
	"errors"
	"time"

	"hospital-management/backend/internal/models"
	"hospital-management/backend/internal/repository"
)

// ChatGateway adapts the chat and hand-off services to the websocket
// hub's inbound events. Socket sends persist through the same services
// as the HTTP endpoints, so the store stays the durability boundary.
type ChatGateway struct {
	chat    *ChatService
	handoff *HandoffService
	timeout time.Duration
}

func NewChatGateway(chat *ChatService, handoff *HandoffService) *ChatGateway {
	return &ChatGateway{chat: chat, handoff: handoff, timeout: 45 * time.Second}
}

// VisitorMessage routes a socket-borne visitor message. Human-mode
// messages only persist and relay; AI-mode messages run the full reply
// pipeline.
func (g *ChatGateway) VisitorMessage(hospitalID uint, sessionID, userName, message, chatType string) error {
	ctx, cancel := context.WithTimeout(context.Background(), g.timeout)
	defer cancel()

	if chatType == models.ChatTypeHuman {
		_, err := g.handoff.UserMessage(ctx, hospitalID, sessionID, message)
		if errors.Is(err, repository.ErrSessionNotFound) {
			// Stale widget after a cleared session; recreate via the AI path.
			_, err = g.chat.HandleVisitorMessage(ctx, hospitalID, sessionID, userName, "", message)
		}
		return err
	}

	_, err := g.chat.HandleVisitorMessage(ctx, hospitalID, sessionID, userName, "", message)
	return err
}

// RequestHuman queues the session for an agent.
func (g *ChatGateway) RequestHuman(hospitalID uint, sessionID, userName, userEmail string) error {
	ctx, cancel := context.WithTimeout(context.Background(), g.timeout)
	defer cancel()

	_, err := g.handoff.RequestHuman(ctx, hospitalID, sessionID, userName, userEmail)
	return err
}

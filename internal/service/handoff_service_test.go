package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hospital-management/backend/internal/models"
	"hospital-management/backend/internal/repository"
)

func newHandoffFixture(t *testing.T) (*HandoffService, *SessionService, *recordingNotifier) {
	t.Helper()
	sessions := NewSessionService(repository.NewMemorySessionRepository(), 50)
	notifier := &recordingNotifier{}
	return NewHandoffService(sessions, notifier, testLogger()), sessions, notifier
}

func TestHandoffRoundTrip(t *testing.T) {
	svc, _, notifier := newHandoffFixture(t)
	ctx := context.Background()

	session, err := svc.RequestHuman(ctx, 1, "visitor-1", "Ana", "ana@example.com")
	require.NoError(t, err)
	assert.Equal(t, models.ChatTypeHuman, session.ChatType)
	assert.Equal(t, models.ChatStatusWaiting, session.Status)
	assert.Nil(t, session.AssignedAgentID)

	session, err = svc.Accept(ctx, 1, "visitor-1", 7, "Dr. Reyes")
	require.NoError(t, err)
	assert.Equal(t, models.ChatStatusActive, session.Status)
	require.NotNil(t, session.AssignedAgentID)
	assert.Equal(t, uint(7), *session.AssignedAgentID)
	assert.Equal(t, []string{"Dr. Reyes"}, notifier.joined)

	joinedCount := 0
	for _, msg := range session.Messages {
		if msg.Role == models.RoleAdmin && msg.Content == "Dr. Reyes has joined the chat." {
			joinedCount++
		}
	}
	assert.Equal(t, 1, joinedCount)

	session, err = svc.Close(ctx, 1, "visitor-1")
	require.NoError(t, err)
	assert.Equal(t, models.ChatStatusClosed, session.Status)
	assert.Equal(t, []string{"visitor-1"}, notifier.closed)

	// A fresh support request reopens a closed chat.
	session, err = svc.RequestHuman(ctx, 1, "visitor-1", "", "")
	require.NoError(t, err)
	assert.Equal(t, models.ChatStatusWaiting, session.Status)
	assert.Nil(t, session.AssignedAgentID)
}

func TestRequestHumanIsIdempotentWhileWaiting(t *testing.T) {
	svc, _, _ := newHandoffFixture(t)
	ctx := context.Background()

	first, err := svc.RequestHuman(ctx, 1, "visitor-1", "", "")
	require.NoError(t, err)
	second, err := svc.RequestHuman(ctx, 1, "visitor-1", "", "")
	require.NoError(t, err)

	assert.Equal(t, len(first.Messages), len(second.Messages))
}

func TestAcceptRequiresWaitingChat(t *testing.T) {
	svc, sessions, _ := newHandoffFixture(t)
	ctx := context.Background()

	_, err := sessions.GetOrCreate(ctx, 1, "visitor-1", "", "")
	require.NoError(t, err)

	_, err = svc.Accept(ctx, 1, "visitor-1", 7, "Dr. Reyes")
	assert.ErrorIs(t, err, ErrNotWaiting)
}

func TestAcceptUnknownSession(t *testing.T) {
	svc, _, _ := newHandoffFixture(t)

	_, err := svc.Accept(context.Background(), 1, "missing", 7, "Dr. Reyes")
	assert.ErrorIs(t, err, repository.ErrSessionNotFound)
}

func TestSwitchToAIClearsAgent(t *testing.T) {
	svc, _, _ := newHandoffFixture(t)
	ctx := context.Background()

	_, err := svc.RequestHuman(ctx, 1, "visitor-1", "", "")
	require.NoError(t, err)
	_, err = svc.Accept(ctx, 1, "visitor-1", 7, "Dr. Reyes")
	require.NoError(t, err)

	session, err := svc.SwitchToAI(ctx, 1, "visitor-1")
	require.NoError(t, err)
	assert.Equal(t, models.ChatTypeAI, session.ChatType)
	assert.Equal(t, models.ChatStatusActive, session.Status)
	assert.Nil(t, session.AssignedAgentID)
}

func TestAgentMessageRejectedWhenClosed(t *testing.T) {
	svc, _, _ := newHandoffFixture(t)
	ctx := context.Background()

	_, err := svc.RequestHuman(ctx, 1, "visitor-1", "", "")
	require.NoError(t, err)
	_, err = svc.Close(ctx, 1, "visitor-1")
	require.NoError(t, err)

	_, err = svc.AgentMessage(ctx, 1, "visitor-1", "hello?")
	assert.ErrorIs(t, err, ErrChatClosed)
}

func TestCloseTwiceFails(t *testing.T) {
	svc, _, _ := newHandoffFixture(t)
	ctx := context.Background()

	_, err := svc.RequestHuman(ctx, 1, "visitor-1", "", "")
	require.NoError(t, err)
	_, err = svc.Close(ctx, 1, "visitor-1")
	require.NoError(t, err)

	_, err = svc.Close(ctx, 1, "visitor-1")
	assert.ErrorIs(t, err, ErrChatClosed)
}

func TestMessagesMarkUnreadForOtherParty(t *testing.T) {
	svc, _, _ := newHandoffFixture(t)
	ctx := context.Background()

	_, err := svc.RequestHuman(ctx, 1, "visitor-1", "", "")
	require.NoError(t, err)
	_, err = svc.Accept(ctx, 1, "visitor-1", 7, "Dr. Reyes")
	require.NoError(t, err)

	session, err := svc.UserMessage(ctx, 1, "visitor-1", "a question")
	require.NoError(t, err)
	last := session.Messages[len(session.Messages)-1]
	assert.True(t, last.ReadByUser)
	assert.False(t, last.ReadByAdmin)

	session, err = svc.AgentMessage(ctx, 1, "visitor-1", "an answer")
	require.NoError(t, err)
	last = session.Messages[len(session.Messages)-1]
	assert.True(t, last.ReadByAdmin)
	assert.False(t, last.ReadByUser)
}

package service

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hospital-management/backend/internal/models"
	"hospital-management/backend/internal/repository"
)

func TestSessionRetentionBound(t *testing.T) {
	sessions := NewSessionService(repository.NewMemorySessionRepository(), 50)
	ctx := context.Background()

	for i := 0; i < 51; i++ {
		_, err := sessions.Append(ctx, 1, "visitor-1", models.NewChatMessage(models.RoleUser, fmt.Sprintf("m%d", i)))
		require.NoError(t, err)
	}

	session, err := sessions.Get(ctx, 1, "visitor-1")
	require.NoError(t, err)
	require.Len(t, session.Messages, 50)
	assert.Equal(t, "m1", session.Messages[0].Content)
	assert.Equal(t, "m50", session.Messages[49].Content)
}

func TestConcurrentAppendsLoseNothing(t *testing.T) {
	sessions := NewSessionService(repository.NewMemorySessionRepository(), 100)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 40; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := sessions.Append(ctx, 1, "visitor-1", models.NewChatMessage(models.RoleUser, fmt.Sprintf("m%d", i)))
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	session, err := sessions.Get(ctx, 1, "visitor-1")
	require.NoError(t, err)
	assert.Len(t, session.Messages, 40)
}

func TestGetOrCreateDefaults(t *testing.T) {
	sessions := NewSessionService(repository.NewMemorySessionRepository(), 50)

	session, err := sessions.GetOrCreate(context.Background(), 2, "visitor-9", "Ana", "ana@example.com")
	require.NoError(t, err)
	assert.Equal(t, models.ChatTypeAI, session.ChatType)
	assert.Equal(t, models.ChatStatusActive, session.Status)
	assert.Equal(t, "Ana", session.UserName)
}

func TestSessionsScopedByHospital(t *testing.T) {
	sessions := NewSessionService(repository.NewMemorySessionRepository(), 50)
	ctx := context.Background()

	_, err := sessions.Append(ctx, 1, "visitor-1", models.NewChatMessage(models.RoleUser, "for one"))
	require.NoError(t, err)

	_, err = sessions.Get(ctx, 2, "visitor-1")
	assert.ErrorIs(t, err, repository.ErrSessionNotFound)
}

func TestClearDeletesSession(t *testing.T) {
	sessions := NewSessionService(repository.NewMemorySessionRepository(), 50)
	ctx := context.Background()

	_, err := sessions.Append(ctx, 1, "visitor-1", models.NewChatMessage(models.RoleUser, "hello"))
	require.NoError(t, err)

	require.NoError(t, sessions.Clear(ctx, 1, "visitor-1"))
	_, err = sessions.Get(ctx, 1, "visitor-1")
	assert.ErrorIs(t, err, repository.ErrSessionNotFound)

	// Clearing an absent session is not an error.
	assert.NoError(t, sessions.Clear(ctx, 1, "visitor-1"))
}

func TestHistoryReturnsRecentMessages(t *testing.T) {
	sessions := NewSessionService(repository.NewMemorySessionRepository(), 50)
	ctx := context.Background()

	for i := 0; i < 40; i++ {
		_, err := sessions.Append(ctx, 1, "visitor-1", models.NewChatMessage(models.RoleUser, fmt.Sprintf("m%d", i)))
		require.NoError(t, err)
	}

	history, err := sessions.History(ctx, 1, "visitor-1", 30)
	require.NoError(t, err)
	require.Len(t, history, 30)
	assert.Equal(t, "m10", history[0].Content)

	none, err := sessions.History(ctx, 1, "unknown", 30)
	require.NoError(t, err)
	assert.Empty(t, none)
}

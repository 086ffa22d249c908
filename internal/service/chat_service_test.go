package service

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hospital-management/backend/ai"
	"hospital-management/backend/internal/models"
	"hospital-management/backend/internal/repository"
	"hospital-management/backend/pkg/guard"
	"hospital-management/backend/pkg/logger"
)

type fakeProvider struct {
	replies []string
	errs    []error
	calls   int
	history [][]ai.Turn
}

func (p *fakeProvider) Generate(_ context.Context, _ string, history []ai.Turn, _ string) (string, error) {
	i := p.calls
	p.calls++
	p.history = append(p.history, history)
	if i < len(p.errs) && p.errs[i] != nil {
		return "", p.errs[i]
	}
	if i < len(p.replies) {
		return p.replies[i], nil
	}
	return "default reply", nil
}

type stubLimiter struct {
	decision guard.Decision
	calls    int
}

func (l *stubLimiter) Check(_ context.Context, _ string) (guard.Decision, error) {
	l.calls++
	return l.decision, nil
}

type recordingNotifier struct {
	messages []models.ChatMessage
	joined   []string
	closed   []string
	typing   []bool
}

func (n *recordingNotifier) NotifyMessage(_ uint, _ string, msg models.ChatMessage) {
	n.messages = append(n.messages, msg)
}
func (n *recordingNotifier) NotifyAgentJoined(_ uint, _ string, agent string) {
	n.joined = append(n.joined, agent)
}
func (n *recordingNotifier) NotifyClosed(_ uint, sessionID string) {
	n.closed = append(n.closed, sessionID)
}
func (n *recordingNotifier) NotifyAgentTyping(_ uint, _ string, typing bool) {
	n.typing = append(n.typing, typing)
}

func testLogger() *logger.Logger {
	cfg := logger.DefaultConfig()
	cfg.Level = "error"
	return logger.New(cfg)
}

type chatFixture struct {
	svc      *ChatService
	sessions *SessionService
	provider *fakeProvider
	limiter  *stubLimiter
	cache    guard.ResponseCache
	notifier *recordingNotifier
	sleeps   []time.Duration
}

func newChatFixture(t *testing.T) *chatFixture {
	t.Helper()

	repo := repository.NewMemorySessionRepository()
	sessions := NewSessionService(repo, 50)

	directory := repository.NewMemoryHospitalDirectory()
	appointments := repository.NewMemoryAppointmentRepository()
	hospitals := NewHospitalService(directory, appointments)

	f := &chatFixture{
		sessions: sessions,
		provider: &fakeProvider{},
		limiter:  &stubLimiter{decision: guard.Decision{Allowed: true}},
		cache:    guard.NewMemoryResponseCache(10*time.Minute, 0),
		notifier: &recordingNotifier{},
	}

	f.svc = NewChatService(
		sessions, hospitals, f.provider, f.limiter, f.cache, f.notifier, nil,
		testLogger(),
		ChatConfig{HistoryWindow: 14, ContextRefreshEach: 10, MaxRetries: 2, InitialBackoff: time.Second},
	)
	f.svc.sleepFn = func(d time.Duration) { f.sleeps = append(f.sleeps, d) }
	return f
}

func TestHandleVisitorMessageAppendsBothTurns(t *testing.T) {
	f := newChatFixture(t)
	f.provider.replies = []string{"We are open 9 to 5."}

	reply, err := f.svc.HandleVisitorMessage(context.Background(), 1, "visitor-1", "Ana", "", "opening hours?")
	require.NoError(t, err)
	assert.Equal(t, "We are open 9 to 5.", reply.Reply)
	assert.False(t, reply.Cached)

	session, err := f.sessions.Get(context.Background(), 1, "visitor-1")
	require.NoError(t, err)
	require.Len(t, session.Messages, 2)
	assert.Equal(t, models.RoleUser, session.Messages[0].Role)
	assert.Equal(t, models.RoleAssistant, session.Messages[1].Role)
}

func TestCacheHitSkipsRateLimiterAndProvider(t *testing.T) {
	f := newChatFixture(t)
	f.limiter.decision = guard.Decision{Allowed: false, ResetSeconds: 120}

	require.NoError(t, f.cache.Set(context.Background(), 1, "opening hours?", "9 to 5"))

	reply, err := f.svc.HandleVisitorMessage(context.Background(), 1, "visitor-1", "", "", "  OPENING HOURS?  ")
	require.NoError(t, err)
	assert.True(t, reply.Cached)
	assert.Equal(t, "9 to 5", reply.Reply)
	assert.Zero(t, f.limiter.calls)
	assert.Zero(t, f.provider.calls)
}

func TestRateLimitDenialReturnsResetSeconds(t *testing.T) {
	f := newChatFixture(t)
	f.limiter.decision = guard.Decision{Allowed: false, ResetSeconds: 180}

	_, err := f.svc.HandleVisitorMessage(context.Background(), 1, "visitor-1", "", "", "hello")
	var rateErr *RateLimitError
	require.ErrorAs(t, err, &rateErr)
	assert.Equal(t, 180, rateErr.ResetSeconds)
	assert.Zero(t, f.provider.calls)
}

func TestSuccessfulReplyIsCached(t *testing.T) {
	f := newChatFixture(t)
	f.provider.replies = []string{"cached soon"}

	_, err := f.svc.HandleVisitorMessage(context.Background(), 1, "visitor-1", "", "", "question")
	require.NoError(t, err)

	reply, hit, err := f.cache.Get(context.Background(), 1, "question")
	require.NoError(t, err)
	assert.True(t, hit)
	assert.Equal(t, "cached soon", reply)
}

func TestRetrySucceedsOnThirdAttempt(t *testing.T) {
	f := newChatFixture(t)
	f.provider.errs = []error{ai.ErrRateLimited, ai.ErrRateLimited, nil}
	f.provider.replies = []string{"", "", "finally"}

	reply, err := f.svc.HandleVisitorMessage(context.Background(), 1, "visitor-1", "", "", "hello")
	require.NoError(t, err)
	assert.Equal(t, "finally", reply.Reply)
	assert.Equal(t, 3, f.provider.calls)
	assert.Equal(t, []time.Duration{time.Second, 2 * time.Second}, f.sleeps)
}

func TestRetryExhaustionSurfacesRateLimit(t *testing.T) {
	f := newChatFixture(t)
	f.provider.errs = []error{ai.ErrRateLimited, ai.ErrRateLimited, ai.ErrRateLimited}

	_, err := f.svc.HandleVisitorMessage(context.Background(), 1, "visitor-1", "", "", "hello")
	var rateErr *RateLimitError
	require.ErrorAs(t, err, &rateErr)
	assert.Equal(t, 3, f.provider.calls)
}

func TestNonRateLimitErrorDoesNotRetry(t *testing.T) {
	f := newChatFixture(t)
	boom := fmt.Errorf("upstream: %w", ai.ErrUnavailable)
	f.provider.errs = []error{boom}

	_, err := f.svc.HandleVisitorMessage(context.Background(), 1, "visitor-1", "", "", "hello")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ai.ErrUnavailable))
	assert.Equal(t, 1, f.provider.calls)
	assert.Empty(t, f.sleeps)
}

func TestHistoryStartsAtFirstUserTurn(t *testing.T) {
	messages := []models.ChatMessage{
		{Role: models.RoleAssistant, Content: "welcome"},
		{Role: models.RoleAdmin, Content: "agent note"},
		{Role: models.RoleUser, Content: "first question"},
		{Role: models.RoleAssistant, Content: "first answer"},
	}

	turns := buildHistory(messages, 14)
	require.Len(t, turns, 2)
	assert.Equal(t, ai.TurnRoleUser, turns[0].Role)
	assert.Equal(t, "first question", turns[0].Content)
	assert.Equal(t, ai.TurnRoleModel, turns[1].Role)
}

func TestHistoryEmptyWithoutUserTurn(t *testing.T) {
	messages := []models.ChatMessage{
		{Role: models.RoleAssistant, Content: "welcome"},
		{Role: models.RoleAdmin, Content: "note"},
	}
	assert.Empty(t, buildHistory(messages, 14))
}

func TestHistoryBoundedToWindow(t *testing.T) {
	var messages []models.ChatMessage
	for i := 0; i < 30; i++ {
		role := models.RoleUser
		if i%2 == 1 {
			role = models.RoleAssistant
		}
		messages = append(messages, models.ChatMessage{Role: role, Content: fmt.Sprintf("m%d", i)})
	}

	turns := buildHistory(messages, 14)
	require.Len(t, turns, 14)
	assert.Equal(t, ai.TurnRoleUser, turns[0].Role)
	assert.Equal(t, "m16", turns[0].Content)
}

func TestAdminRoleMapsToModelTurn(t *testing.T) {
	messages := []models.ChatMessage{
		{Role: models.RoleUser, Content: "hi"},
		{Role: models.RoleAdmin, Content: "agent reply"},
	}
	turns := buildHistory(messages, 14)
	require.Len(t, turns, 2)
	assert.Equal(t, ai.TurnRoleModel, turns[1].Role)
}

func TestProviderHistoryExcludesCurrentMessage(t *testing.T) {
	f := newChatFixture(t)
	f.provider.replies = []string{"a1", "a2"}

	ctx := context.Background()
	_, err := f.svc.HandleVisitorMessage(ctx, 1, "visitor-1", "", "", "first")
	require.NoError(t, err)
	_, err = f.svc.HandleVisitorMessage(ctx, 1, "visitor-1", "", "", "second")
	require.NoError(t, err)

	require.Len(t, f.provider.history, 2)
	assert.Empty(t, f.provider.history[0])
	require.Len(t, f.provider.history[1], 2)
	assert.Equal(t, "first", f.provider.history[1][0].Content)
	assert.Equal(t, "a1", f.provider.history[1][1].Content)
}

func TestHumanModeMessageSkipsProvider(t *testing.T) {
	f := newChatFixture(t)
	ctx := context.Background()

	_, err := f.sessions.GetOrCreate(ctx, 1, "visitor-1", "", "")
	require.NoError(t, err)
	_, err = f.sessions.Mutate(ctx, 1, "visitor-1", func(s *models.ChatSession) error {
		s.ChatType = models.ChatTypeHuman
		s.Status = models.ChatStatusActive
		return nil
	})
	require.NoError(t, err)

	reply, err := f.svc.HandleVisitorMessage(ctx, 1, "visitor-1", "", "", "is anyone there?")
	require.NoError(t, err)
	assert.True(t, reply.HumanMode)
	assert.Zero(t, f.provider.calls)
	require.Len(t, f.notifier.messages, 1)
	assert.Equal(t, models.RoleUser, f.notifier.messages[0].Role)
}

func TestClosedSessionStillAcceptsAIMessage(t *testing.T) {
	f := newChatFixture(t)
	f.provider.replies = []string{"still here"}
	ctx := context.Background()

	_, err := f.sessions.GetOrCreate(ctx, 1, "visitor-1", "", "")
	require.NoError(t, err)
	_, err = f.sessions.Mutate(ctx, 1, "visitor-1", func(s *models.ChatSession) error {
		s.Status = models.ChatStatusClosed
		return nil
	})
	require.NoError(t, err)

	reply, err := f.svc.HandleVisitorMessage(ctx, 1, "visitor-1", "", "", "hello again")
	require.NoError(t, err)
	assert.Equal(t, "still here", reply.Reply)
}

package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"hospital-management/backend/ai"
	"hospital-management/backend/internal/models"
	"hospital-management/backend/pkg/guard"
	"hospital-management/backend/pkg/logger"
	"hospital-management/backend/pkg/resilience"
)

// RateLimitError is returned when the visitor hit the fixed-window limit
// or the provider stayed rate limited after all retries.
type RateLimitError struct {
	ResetSeconds int
}

func (e *RateLimitError) Error() string {
	if e.ResetSeconds > 0 {
		return fmt.Sprintf("rate limit exceeded, retry in %ds", e.ResetSeconds)
	}
	return "rate limit exceeded"
}

// ChatReply is the outcome of a visitor message on the AI path.
type ChatReply struct {
	Reply     string
	Cached    bool
	HumanMode bool
	Session   *models.ChatSession
}

// Notifier pushes chat events to connected clients. The websocket hub
// implements it; tests plug in a recording fake.
type Notifier interface {
	NotifyMessage(hospitalID uint, sessionID string, message models.ChatMessage)
	NotifyAgentJoined(hospitalID uint, sessionID string, agentName string)
	NotifyClosed(hospitalID uint, sessionID string)
	NotifyAgentTyping(hospitalID uint, sessionID string, typing bool)
}

// ChatConfig carries the tunables of the reply pipeline.
type ChatConfig struct {
	HistoryWindow      int
	ContextRefreshEach int
	MaxRetries         int
	InitialBackoff     time.Duration
}

// ChatService implements the visitor-facing reply pipeline: response
// cache, fixed-window rate limit, context refresh, bounded history and
// the provider call with retry on rate limits.
type ChatService struct {
	sessions  *SessionService
	hospitals *HospitalService
	provider  ai.Provider
	limiter   guard.RateLimiter
	cache     guard.ResponseCache
	notifier  Notifier
	breaker   *resilience.CircuitBreaker
	log       *logger.Logger
	cfg       ChatConfig

	sleepFn func(time.Duration)
}

func NewChatService(
	sessions *SessionService,
	hospitals *HospitalService,
	provider ai.Provider,
	limiter guard.RateLimiter,
	cache guard.ResponseCache,
	notifier Notifier,
	breaker *resilience.CircuitBreaker,
	log *logger.Logger,
	cfg ChatConfig,
) *ChatService {
	if cfg.HistoryWindow <= 0 {
		cfg.HistoryWindow = 14
	}
	if cfg.ContextRefreshEach <= 0 {
		cfg.ContextRefreshEach = 10
	}
	if cfg.InitialBackoff <= 0 {
		cfg.InitialBackoff = time.Second
	}
	return &ChatService{
		sessions:  sessions,
		hospitals: hospitals,
		provider:  provider,
		limiter:   limiter,
		cache:     cache,
		notifier:  notifier,
		breaker:   breaker,
		log:       log,
		cfg:       cfg,
		sleepFn:   time.Sleep,
	}
}

// HandleVisitorMessage runs the full pipeline for one visitor message.
// The cache is consulted before the rate limiter so repeated questions
// never consume the visitor's budget.
func (s *ChatService) HandleVisitorMessage(ctx context.Context, hospitalID uint, visitorID, userName, userEmail, message string) (*ChatReply, error) {
	session, err := s.sessions.GetOrCreate(ctx, hospitalID, visitorID, userName, userEmail)
	if err != nil {
		return nil, err
	}

	// While a human agent owns the conversation the message is only
	// stored and relayed; the AI stays out of it.
	if session.ChatType == models.ChatTypeHuman && session.Status != models.ChatStatusClosed {
		userMsg := models.NewChatMessage(models.RoleUser, message)
		session, err = s.sessions.Append(ctx, hospitalID, visitorID, userMsg)
		if err != nil {
			return nil, err
		}
		s.notify(func(n Notifier) { n.NotifyMessage(hospitalID, visitorID, userMsg) })
		return &ChatReply{HumanMode: true, Session: session}, nil
	}

	if cached, ok, err := s.cache.Get(ctx, hospitalID, message); err == nil && ok {
		session, err = s.sessions.Append(ctx, hospitalID, visitorID,
			models.NewChatMessage(models.RoleUser, message),
			models.NewChatMessage(models.RoleAssistant, cached),
		)
		if err != nil {
			return nil, err
		}
		return &ChatReply{Reply: cached, Cached: true, Session: session}, nil
	} else if err != nil {
		s.log.Warn("response cache lookup failed", "error", err)
	}

	decision, err := s.limiter.Check(ctx, visitorID)
	if err != nil {
		return nil, err
	}
	if !decision.Allowed {
		return nil, &RateLimitError{ResetSeconds: decision.ResetSeconds}
	}

	var history []ai.Turn
	var contextInfo string
	session, err = s.sessions.Mutate(ctx, hospitalID, visitorID, func(sess *models.ChatSession) error {
		sess.Append(models.NewChatMessage(models.RoleUser, message))
		if sess.HospitalContext == "" || len(sess.Messages)%s.cfg.ContextRefreshEach == 0 {
			sess.HospitalContext = s.hospitals.BuildContext(ctx, hospitalID)
		}
		contextInfo = sess.HospitalContext
		history = buildHistory(sess.Messages[:len(sess.Messages)-1], s.cfg.HistoryWindow)
		return nil
	})
	if err != nil {
		return nil, err
	}

	reply, err := s.generateWithRetry(ctx, contextInfo, history, message)
	if err != nil {
		if errors.Is(err, ai.ErrRateLimited) {
			s.log.Warn("provider rate limited after retries", "hospital_id", hospitalID, "session_id", visitorID)
			return nil, &RateLimitError{}
		}
		s.log.LogError(err, "ai generation failed", "hospital_id", hospitalID, "session_id", visitorID)
		return nil, err
	}

	assistantMsg := models.NewChatMessage(models.RoleAssistant, reply)
	session, err = s.sessions.Append(ctx, hospitalID, visitorID, assistantMsg)
	if err != nil {
		return nil, err
	}

	if err := s.cache.Set(ctx, hospitalID, message, reply); err != nil {
		s.log.Warn("response cache store failed", "error", err)
	}
	s.notify(func(n Notifier) { n.NotifyMessage(hospitalID, visitorID, assistantMsg) })

	return &ChatReply{Reply: reply, Session: session}, nil
}

// generateWithRetry calls the provider, retrying only rate-limit
// failures with doubling backoff. Any other failure propagates at once.
func (s *ChatService) generateWithRetry(ctx context.Context, contextInfo string, history []ai.Turn, message string) (string, error) {
	backoff := s.cfg.InitialBackoff
	var lastErr error

	for attempt := 0; attempt <= s.cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			s.sleepFn(backoff)
			backoff *= 2
		}

		var reply string
		call := func() error {
			var err error
			reply, err = s.provider.Generate(ctx, contextInfo, history, message)
			return err
		}

		var err error
		if s.breaker != nil {
			err = s.breaker.Execute(call)
		} else {
			err = call()
		}
		if err == nil {
			return reply, nil
		}
		if !errors.Is(err, ai.ErrRateLimited) {
			return "", err
		}
		lastErr = err
	}
	return "", lastErr
}

// buildHistory maps stored messages to provider turns: the last window
// messages, trimmed so the slice starts with a user turn, with admin and
// assistant messages collapsed into the model role. An exchange with no
// user message yields no history at all.
func buildHistory(messages []models.ChatMessage, window int) []ai.Turn {
	if len(messages) > window {
		messages = messages[len(messages)-window:]
	}

	start := -1
	for i, msg := range messages {
		if msg.Role == models.RoleUser {
			start = i
			break
		}
	}
	if start < 0 {
		return nil
	}

	turns := make([]ai.Turn, 0, len(messages)-start)
	for _, msg := range messages[start:] {
		role := ai.TurnRoleModel
		if msg.Role == models.RoleUser {
			role = ai.TurnRoleUser
		}
		turns = append(turns, ai.Turn{Role: role, Content: msg.Content})
	}
	return turns
}

func (s *ChatService) notify(fn func(Notifier)) {
	if s.notifier != nil {
		fn(s.notifier)
	}
}

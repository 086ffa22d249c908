package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hospital-management/backend/ai"
	"hospital-management/backend/internal/models"
	"hospital-management/backend/internal/repository"
	"hospital-management/backend/internal/service"
	"hospital-management/backend/pkg/guard"
	"hospital-management/backend/pkg/logger"
)

type scriptedProvider struct {
	reply string
	err   error
}

func (p *scriptedProvider) Generate(_ context.Context, _ string, _ []ai.Turn, _ string) (string, error) {
	if p.err != nil {
		return "", p.err
	}
	return p.reply, nil
}

type allowAllLimiter struct{}

func (allowAllLimiter) Check(context.Context, string) (guard.Decision, error) {
	return guard.Decision{Allowed: true}, nil
}

type denyLimiter struct{ reset int }

func (l denyLimiter) Check(context.Context, string) (guard.Decision, error) {
	return guard.Decision{Allowed: false, ResetSeconds: l.reset}, nil
}

func testLogger() *logger.Logger {
	cfg := logger.DefaultConfig()
	cfg.Level = "error"
	return logger.New(cfg)
}

func newWidgetRouter(t *testing.T, provider ai.Provider, limiter guard.RateLimiter) (*gin.Engine, *service.SessionService) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	sessions := service.NewSessionService(repository.NewMemorySessionRepository(), 50)
	hospitals := service.NewHospitalService(repository.NewMemoryHospitalDirectory(), repository.NewMemoryAppointmentRepository())
	cache := guard.NewMemoryResponseCache(10*time.Minute, 0)
	log := testLogger()

	chat := service.NewChatService(sessions, hospitals, provider, limiter, cache, nil, nil, log, service.ChatConfig{
		HistoryWindow:      14,
		ContextRefreshEach: 10,
		MaxRetries:         0,
		InitialBackoff:     time.Millisecond,
	})
	handoff := service.NewHandoffService(sessions, nil, log)

	router := gin.New()
	NewChatbotHandler(chat, sessions, handoff, 30, log).RegisterRoutes(router)
	return router, sessions
}

func postJSON(router *gin.Engine, path string, body interface{}) *httptest.ResponseRecorder {
	data, _ := json.Marshal(body)
	req, _ := http.NewRequest(http.MethodPost, path, bytes.NewReader(data))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestMessageEndpointReturnsReply(t *testing.T) {
	router, _ := newWidgetRouter(t, &scriptedProvider{reply: "hello there"}, allowAllLimiter{})

	w := postJSON(router, "/chatbot/1/message", gin.H{"message": "hi", "userId": "visitor-1"})
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Success bool   `json:"success"`
		Message string `json:"message"`
		ChatID  string `json:"chatId"`
		Cached  bool   `json:"cached"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.True(t, resp.Success)
	assert.Equal(t, "hello there", resp.Message)
	assert.Equal(t, "visitor-1", resp.ChatID)
	assert.False(t, resp.Cached)
}

func TestMessageEndpointValidation(t *testing.T) {
	router, _ := newWidgetRouter(t, &scriptedProvider{reply: "x"}, allowAllLimiter{})

	w := postJSON(router, "/chatbot/1/message", gin.H{"userId": "visitor-1"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = postJSON(router, "/chatbot/1/message", gin.H{"message": "hi"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = postJSON(router, "/chatbot/abc/message", gin.H{"message": "hi", "userId": "v"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestMessageEndpointRateLimited(t *testing.T) {
	router, _ := newWidgetRouter(t, &scriptedProvider{reply: "x"}, denyLimiter{reset: 240})

	w := postJSON(router, "/chatbot/1/message", gin.H{"message": "hi", "userId": "visitor-1"})
	require.Equal(t, http.StatusTooManyRequests, w.Code)

	var resp struct {
		Error     string `json:"error"`
		ResetTime int    `json:"resetTime"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, 240, resp.ResetTime)
	assert.Contains(t, resp.Error, "240")
}

func TestMessageEndpointProviderFailure(t *testing.T) {
	router, _ := newWidgetRouter(t, &scriptedProvider{err: ai.ErrUnavailable}, allowAllLimiter{})

	w := postJSON(router, "/chatbot/1/message", gin.H{"message": "hi", "userId": "visitor-1"})
	require.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Contains(t, w.Body.String(), "Failed to process message")
}

func TestSecondIdenticalMessageIsCached(t *testing.T) {
	router, _ := newWidgetRouter(t, &scriptedProvider{reply: "the answer"}, allowAllLimiter{})

	w := postJSON(router, "/chatbot/1/message", gin.H{"message": "question?", "userId": "visitor-1"})
	require.Equal(t, http.StatusOK, w.Code)

	w = postJSON(router, "/chatbot/1/message", gin.H{"message": "  QUESTION?  ", "userId": "visitor-2"})
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Cached  bool   `json:"cached"`
		Message string `json:"message"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.True(t, resp.Cached)
	assert.Equal(t, "the answer", resp.Message)
}

func TestHistoryEndpoint(t *testing.T) {
	router, sessions := newWidgetRouter(t, &scriptedProvider{reply: "x"}, allowAllLimiter{})

	_, err := sessions.Append(context.Background(), 1, "visitor-1",
		models.NewChatMessage(models.RoleUser, "hi"),
		models.NewChatMessage(models.RoleAssistant, "hello"),
	)
	require.NoError(t, err)

	req, _ := http.NewRequest(http.MethodGet, "/chatbot/1/history?userId=visitor-1", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Success bool                 `json:"success"`
		History []models.ChatMessage `json:"history"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.True(t, resp.Success)
	require.Len(t, resp.History, 2)
	assert.Equal(t, models.RoleUser, resp.History[0].Role)
}

func TestHistoryEndpointEmptyForUnknownSession(t *testing.T) {
	router, _ := newWidgetRouter(t, &scriptedProvider{reply: "x"}, allowAllLimiter{})

	req, _ := http.NewRequest(http.MethodGet, "/chatbot/1/history?userId=nobody", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"history":[]`)
}

func TestClearEndpointDeletesSession(t *testing.T) {
	router, sessions := newWidgetRouter(t, &scriptedProvider{reply: "x"}, allowAllLimiter{})

	_, err := sessions.Append(context.Background(), 1, "visitor-1", models.NewChatMessage(models.RoleUser, "hi"))
	require.NoError(t, err)

	w := postJSON(router, "/chatbot/1/clear", gin.H{"userId": "visitor-1"})
	require.Equal(t, http.StatusOK, w.Code)

	_, err = sessions.Get(context.Background(), 1, "visitor-1")
	assert.ErrorIs(t, err, repository.ErrSessionNotFound)
}

func TestHandoffEndpoints(t *testing.T) {
	router, _ := newWidgetRouter(t, &scriptedProvider{reply: "x"}, allowAllLimiter{})

	w := postJSON(router, "/chatbot/1/request-human", gin.H{
		"sessionId": "visitor-1", "userName": "Ana", "userEmail": "ana@example.com",
	})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), models.ChatStatusWaiting)

	w = postJSON(router, "/chatbot/1/user-message", gin.H{"sessionId": "visitor-1", "message": "anyone?"})
	require.Equal(t, http.StatusOK, w.Code)

	w = postJSON(router, "/chatbot/1/switch-to-ai", gin.H{"sessionId": "visitor-1"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), models.ChatTypeAI)
}

func TestSwitchToAIUnknownSession(t *testing.T) {
	router, _ := newWidgetRouter(t, &scriptedProvider{reply: "x"}, allowAllLimiter{})

	w := postJSON(router, "/chatbot/1/switch-to-ai", gin.H{"sessionId": "ghost"})
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestSessionEndpoint(t *testing.T) {
	router, sessions := newWidgetRouter(t, &scriptedProvider{reply: "x"}, allowAllLimiter{})

	_, err := sessions.GetOrCreate(context.Background(), 1, "visitor-1", "Ana", "")
	require.NoError(t, err)

	req, _ := http.NewRequest(http.MethodGet, "/chatbot/1/session?sessionId=visitor-1", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Success  bool   `json:"success"`
		ChatType string `json:"chatType"`
		Status   string `json:"status"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, models.ChatTypeAI, resp.ChatType)
	assert.Equal(t, models.ChatStatusActive, resp.Status)

	req, _ = http.NewRequest(http.MethodGet, "/chatbot/1/session?sessionId=ghost", nil)
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

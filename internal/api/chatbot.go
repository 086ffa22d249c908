package api

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"hospital-management/backend/internal/models"
	"hospital-management/backend/internal/repository"
	"hospital-management/backend/internal/service"
	"hospital-management/backend/pkg/logger"
)

// ChatbotHandler exposes the visitor-facing widget endpoints, scoped by
// hospital in the path.
type ChatbotHandler struct {
	chat     *service.ChatService
	sessions *service.SessionService
	handoff  *service.HandoffService
	history  int
	logger   *logger.Logger
}

func NewChatbotHandler(chat *service.ChatService, sessions *service.SessionService, handoff *service.HandoffService, historyPageSize int, log *logger.Logger) *ChatbotHandler {
	if historyPageSize <= 0 {
		historyPageSize = 30
	}
	return &ChatbotHandler{
		chat:     chat,
		sessions: sessions,
		handoff:  handoff,
		history:  historyPageSize,
		logger:   log,
	}
}

// RegisterRoutes registers the widget routes.
func (h *ChatbotHandler) RegisterRoutes(router *gin.Engine) {
	chatbot := router.Group("/chatbot/:hospitalId")
	{
		chatbot.POST("/message", h.Message)
		chatbot.GET("/history", h.History)
		chatbot.POST("/clear", h.Clear)
		chatbot.POST("/request-human", h.RequestHuman)
		chatbot.POST("/switch-to-ai", h.SwitchToAI)
		chatbot.POST("/user-message", h.UserMessage)
		chatbot.GET("/session", h.Session)
	}
}

func hospitalParam(c *gin.Context) (uint, bool) {
	id, err := strconv.ParseUint(c.Param("hospitalId"), 10, 64)
	if err != nil || id == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid hospital ID"})
		return 0, false
	}
	return uint(id), true
}

// Message runs the AI reply pipeline for a visitor message.
func (h *ChatbotHandler) Message(c *gin.Context) {
	hospitalID, ok := hospitalParam(c)
	if !ok {
		return
	}

	var req struct {
		Message   string `json:"message"`
		UserID    string `json:"userId"`
		UserName  string `json:"userName"`
		UserEmail string `json:"userEmail"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request format"})
		return
	}
	if req.Message == "" || req.UserID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "message and userId are required"})
		return
	}

	reply, err := h.chat.HandleVisitorMessage(c.Request.Context(), hospitalID, req.UserID, req.UserName, req.UserEmail, req.Message)
	if err != nil {
		var rateErr *service.RateLimitError
		if errors.As(err, &rateErr) {
			body := gin.H{"error": "Too many requests. Please wait before sending another message."}
			if rateErr.ResetSeconds > 0 {
				body["resetTime"] = rateErr.ResetSeconds
				body["error"] = fmt.Sprintf("Too many requests. Please try again in %d seconds.", rateErr.ResetSeconds)
			}
			c.JSON(http.StatusTooManyRequests, body)
			return
		}
		h.logger.LogError(err, "chat message failed", "hospital_id", hospitalID, "session_id", req.UserID)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to process message"})
		return
	}

	if reply.HumanMode {
		c.JSON(http.StatusOK, gin.H{
			"success":   true,
			"humanMode": true,
			"chatId":    reply.Session.SessionID,
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": reply.Reply,
		"chatId":  reply.Session.SessionID,
		"cached":  reply.Cached,
	})
}

// History returns the visitor's recent messages.
func (h *ChatbotHandler) History(c *gin.Context) {
	hospitalID, ok := hospitalParam(c)
	if !ok {
		return
	}
	userID := c.Query("userId")
	if userID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "userId is required"})
		return
	}

	messages, err := h.sessions.History(c.Request.Context(), hospitalID, userID, h.history)
	if err != nil {
		h.logger.LogError(err, "history fetch failed", "hospital_id", hospitalID, "session_id", userID)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch history"})
		return
	}
	if messages == nil {
		messages = []models.ChatMessage{}
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "history": messages})
}

// Clear deletes the visitor's session.
func (h *ChatbotHandler) Clear(c *gin.Context) {
	hospitalID, ok := hospitalParam(c)
	if !ok {
		return
	}
	var req struct {
		UserID string `json:"userId"`
	}
	if err := c.ShouldBindJSON(&req); err != nil || req.UserID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "userId is required"})
		return
	}

	if err := h.sessions.Clear(c.Request.Context(), hospitalID, req.UserID); err != nil {
		h.logger.LogError(err, "session clear failed", "hospital_id", hospitalID, "session_id", req.UserID)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to clear chat"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

// RequestHuman queues the session for a hospital agent.
func (h *ChatbotHandler) RequestHuman(c *gin.Context) {
	hospitalID, ok := hospitalParam(c)
	if !ok {
		return
	}
	var req struct {
		SessionID string `json:"sessionId"`
		UserName  string `json:"userName"`
		UserEmail string `json:"userEmail"`
	}
	if err := c.ShouldBindJSON(&req); err != nil || req.SessionID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "sessionId is required"})
		return
	}

	session, err := h.handoff.RequestHuman(c.Request.Context(), hospitalID, req.SessionID, req.UserName, req.UserEmail)
	if err != nil {
		h.logger.LogError(err, "request human failed", "hospital_id", hospitalID, "session_id", req.SessionID)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to request human support"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"status":  session.Status,
	})
}

// SwitchToAI hands the session back to the assistant.
func (h *ChatbotHandler) SwitchToAI(c *gin.Context) {
	hospitalID, ok := hospitalParam(c)
	if !ok {
		return
	}
	var req struct {
		SessionID string `json:"sessionId"`
	}
	if err := c.ShouldBindJSON(&req); err != nil || req.SessionID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "sessionId is required"})
		return
	}

	session, err := h.handoff.SwitchToAI(c.Request.Context(), hospitalID, req.SessionID)
	if err != nil {
		if errors.Is(err, repository.ErrSessionNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Chat session not found"})
			return
		}
		h.logger.LogError(err, "switch to ai failed", "hospital_id", hospitalID, "session_id", req.SessionID)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to switch to AI"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "chatType": session.ChatType})
}

// UserMessage appends a visitor message during a human conversation.
func (h *ChatbotHandler) UserMessage(c *gin.Context) {
	hospitalID, ok := hospitalParam(c)
	if !ok {
		return
	}
	var req struct {
		SessionID string `json:"sessionId"`
		Message   string `json:"message"`
	}
	if err := c.ShouldBindJSON(&req); err != nil || req.SessionID == "" || req.Message == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "sessionId and message are required"})
		return
	}

	if _, err := h.handoff.UserMessage(c.Request.Context(), hospitalID, req.SessionID, req.Message); err != nil {
		switch {
		case errors.Is(err, repository.ErrSessionNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "Chat session not found"})
		case errors.Is(err, service.ErrChatClosed):
			c.JSON(http.StatusBadRequest, gin.H{"error": "This chat has been closed"})
		default:
			h.logger.LogError(err, "user message failed", "hospital_id", hospitalID, "session_id", req.SessionID)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to send message"})
		}
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

// Session returns the widget's reconnect snapshot: current mode, status
// and messages.
func (h *ChatbotHandler) Session(c *gin.Context) {
	hospitalID, ok := hospitalParam(c)
	if !ok {
		return
	}
	sessionID := c.Query("sessionId")
	if sessionID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "sessionId is required"})
		return
	}

	session, err := h.sessions.Get(c.Request.Context(), hospitalID, sessionID)
	if err != nil {
		if errors.Is(err, repository.ErrSessionNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Chat session not found"})
			return
		}
		h.logger.LogError(err, "session fetch failed", "hospital_id", hospitalID, "session_id", sessionID)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch session"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":  true,
		"chatType": session.ChatType,
		"status":   session.Status,
		"messages": session.Messages,
	})
}

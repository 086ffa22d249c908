package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"hospital-management/backend/internal/repository"
	"hospital-management/backend/internal/service"
	"hospital-management/backend/pkg/jwt"
	"hospital-management/backend/pkg/logger"
	"hospital-management/backend/pkg/middleware"
)

// AdminHandler exposes the agent console: the hand-off queue, replying
// in human chats, appointments overview and contact submissions.
type AdminHandler struct {
	handoff      *service.HandoffService
	users        *service.UserService
	appointments *service.AppointmentService
	contacts     *service.ContactService
	jwtService   *jwt.Service
	logger       *logger.Logger
}

func NewAdminHandler(
	handoff *service.HandoffService,
	users *service.UserService,
	appointments *service.AppointmentService,
	contacts *service.ContactService,
	jwtService *jwt.Service,
	log *logger.Logger,
) *AdminHandler {
	return &AdminHandler{
		handoff:      handoff,
		users:        users,
		appointments: appointments,
		contacts:     contacts,
		jwtService:   jwtService,
		logger:       log,
	}
}

// RegisterRoutes registers the console routes. Everything requires an
// agent JWT; contact listing additionally requires super-admin.
func (h *AdminHandler) RegisterRoutes(router *gin.Engine) {
	admin := router.Group("/api/admin")
	admin.Use(middleware.JWTAuthMiddleware(h.jwtService, h.logger))
	{
		admin.GET("/chats/waiting", h.WaitingChats)
		admin.GET("/chats/active", h.ActiveChats)
		admin.POST("/chats/:sessionId/accept", h.AcceptChat)
		admin.POST("/chats/:sessionId/reply", h.Reply)
		admin.POST("/chats/:sessionId/typing", h.Typing)
		admin.POST("/chats/:sessionId/close", h.CloseChat)
		admin.GET("/appointments", h.Appointments)

		admin.GET("/contacts", middleware.RequireRole(jwt.RoleSuperAdmin), h.Contacts)
	}
}

// agentClaims pulls the authenticated agent's claims and hospital. A
// super-admin without a hospital cannot act on hospital-scoped routes.
func (h *AdminHandler) agentClaims(c *gin.Context) (*jwt.JWTClaims, uint, bool) {
	raw, exists := c.Get("claims")
	if !exists {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Authentication required"})
		return nil, 0, false
	}
	claims, ok := raw.(*jwt.JWTClaims)
	if !ok {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Invalid claims"})
		return nil, 0, false
	}
	if claims.HospitalID == nil {
		c.JSON(http.StatusForbidden, gin.H{"error": "Account is not linked to a hospital"})
		return nil, 0, false
	}
	return claims, *claims.HospitalID, true
}

func (h *AdminHandler) WaitingChats(c *gin.Context) {
	_, hospitalID, ok := h.agentClaims(c)
	if !ok {
		return
	}
	chats, err := h.handoff.Waiting(c.Request.Context(), hospitalID)
	if err != nil {
		h.logger.LogError(err, "waiting chats fetch failed", "hospital_id", hospitalID)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch chats"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "chats": chats})
}

func (h *AdminHandler) ActiveChats(c *gin.Context) {
	_, hospitalID, ok := h.agentClaims(c)
	if !ok {
		return
	}
	chats, err := h.handoff.Active(c.Request.Context(), hospitalID)
	if err != nil {
		h.logger.LogError(err, "active chats fetch failed", "hospital_id", hospitalID)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch chats"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "chats": chats})
}

func (h *AdminHandler) AcceptChat(c *gin.Context) {
	claims, hospitalID, ok := h.agentClaims(c)
	if !ok {
		return
	}
	sessionID := c.Param("sessionId")

	agent, err := h.users.Get(c.Request.Context(), claims.UserID)
	if err != nil {
		h.logger.LogError(err, "agent lookup failed", "user_id", claims.UserID)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to accept chat"})
		return
	}

	session, err := h.handoff.Accept(c.Request.Context(), hospitalID, sessionID, agent.ID, agent.Name)
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrSessionNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "Chat session not found"})
		case errors.Is(err, service.ErrNotWaiting):
			c.JSON(http.StatusConflict, gin.H{"error": "Chat is not waiting for an agent"})
		case errors.Is(err, service.ErrChatClosed):
			c.JSON(http.StatusConflict, gin.H{"error": "Chat has been closed"})
		default:
			h.logger.LogError(err, "accept chat failed", "hospital_id", hospitalID, "session_id", sessionID)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to accept chat"})
		}
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "status": session.Status})
}

func (h *AdminHandler) Reply(c *gin.Context) {
	_, hospitalID, ok := h.agentClaims(c)
	if !ok {
		return
	}
	sessionID := c.Param("sessionId")

	var req struct {
		Message string `json:"message"`
	}
	if err := c.ShouldBindJSON(&req); err != nil || req.Message == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "message is required"})
		return
	}

	if _, err := h.handoff.AgentMessage(c.Request.Context(), hospitalID, sessionID, req.Message); err != nil {
		switch {
		case errors.Is(err, repository.ErrSessionNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "Chat session not found"})
		case errors.Is(err, service.ErrChatClosed):
			c.JSON(http.StatusConflict, gin.H{"error": "Chat has been closed"})
		default:
			h.logger.LogError(err, "agent reply failed", "hospital_id", hospitalID, "session_id", sessionID)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to send reply"})
		}
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

func (h *AdminHandler) Typing(c *gin.Context) {
	_, hospitalID, ok := h.agentClaims(c)
	if !ok {
		return
	}
	var req struct {
		IsTyping bool `json:"isTyping"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request format"})
		return
	}
	h.handoff.Typing(hospitalID, c.Param("sessionId"), req.IsTyping)
	c.JSON(http.StatusOK, gin.H{"success": true})
}

func (h *AdminHandler) CloseChat(c *gin.Context) {
	_, hospitalID, ok := h.agentClaims(c)
	if !ok {
		return
	}
	sessionID := c.Param("sessionId")

	if _, err := h.handoff.Close(c.Request.Context(), hospitalID, sessionID); err != nil {
		switch {
		case errors.Is(err, repository.ErrSessionNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "Chat session not found"})
		case errors.Is(err, service.ErrChatClosed):
			c.JSON(http.StatusConflict, gin.H{"error": "Chat is already closed"})
		default:
			h.logger.LogError(err, "close chat failed", "hospital_id", hospitalID, "session_id", sessionID)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to close chat"})
		}
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

func (h *AdminHandler) Appointments(c *gin.Context) {
	_, hospitalID, ok := h.agentClaims(c)
	if !ok {
		return
	}
	appointments, err := h.appointments.ListByHospital(c.Request.Context(), hospitalID)
	if err != nil {
		h.logger.LogError(err, "appointments fetch failed", "hospital_id", hospitalID)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch appointments"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "appointments": appointments})
}

func (h *AdminHandler) Contacts(c *gin.Context) {
	contacts, err := h.contacts.List(c.Request.Context())
	if err != nil {
		h.logger.LogError(err, "contacts fetch failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch contact messages"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "contacts": contacts})
}

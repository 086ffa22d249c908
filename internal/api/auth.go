package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"hospital-management/backend/internal/models"
	"hospital-management/backend/internal/service"
	"hospital-management/backend/pkg/jwt"
	"hospital-management/backend/pkg/logger"
	"hospital-management/backend/pkg/middleware"
)

// AuthHandler handles agent-console authentication.
type AuthHandler struct {
	users      *service.UserService
	jwtService *jwt.Service
	logger     *logger.Logger
}

func NewAuthHandler(users *service.UserService, jwtService *jwt.Service, log *logger.Logger) *AuthHandler {
	return &AuthHandler{users: users, jwtService: jwtService, logger: log}
}

// RegisterRoutes registers the auth routes. Account creation is a
// super-admin operation; login is open.
func (h *AuthHandler) RegisterRoutes(router *gin.Engine) {
	auth := router.Group("/api/auth")
	{
		auth.POST("/login", h.Login)
		auth.POST("/register",
			middleware.JWTAuthMiddleware(h.jwtService, h.logger),
			middleware.RequireRole(jwt.RoleSuperAdmin),
			h.Register)
		auth.GET("/me", middleware.JWTAuthMiddleware(h.jwtService, h.logger), h.Me)
	}
}

func (h *AuthHandler) Login(c *gin.Context) {
	var req models.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request format"})
		return
	}

	token, user, err := h.users.Login(c.Request.Context(), &req)
	if err != nil {
		if errors.Is(err, service.ErrInvalidCredentials) {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid email or password"})
			return
		}
		h.logger.LogError(err, "login failed", "email", req.Email)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to log in"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"token": token,
		"user":  user.ToResponse(),
	})
}

func (h *AuthHandler) Register(c *gin.Context) {
	var req models.CreateUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request format"})
		return
	}

	user, err := h.users.Register(c.Request.Context(), &req)
	if err != nil {
		if errors.Is(err, service.ErrEmailTaken) {
			c.JSON(http.StatusConflict, gin.H{"error": "An account with this email already exists"})
			return
		}
		h.logger.LogError(err, "account creation failed", "email", req.Email)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create account"})
		return
	}

	c.JSON(http.StatusCreated, gin.H{"user": user.ToResponse()})
}

func (h *AuthHandler) Me(c *gin.Context) {
	raw, exists := c.Get("claims")
	if !exists {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Authentication required"})
		return
	}
	claims := raw.(*jwt.JWTClaims)

	user, err := h.users.Get(c.Request.Context(), claims.UserID)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Account not found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"user": user.ToResponse()})
}

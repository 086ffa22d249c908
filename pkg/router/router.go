package router

import (
	"time"

	"github.com/gin-gonic/gin"

	"hospital-management/backend/internal/api"
	"hospital-management/backend/internal/ws"
	"hospital-management/backend/pkg/di"
	"hospital-management/backend/pkg/errors"
	"hospital-management/backend/pkg/logger"
	"hospital-management/backend/pkg/middleware"
	"hospital-management/backend/pkg/validator"
)

// Router is the main router for the application
type Router struct {
	Engine    *gin.Engine
	Container *di.Container
	Logger    *logger.Logger
}

// New creates a new router with the given container
func New(container *di.Container) *Router {
	logger.SetGlobal(container.Logger)

	if container.Config.Server.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	engine := gin.New()

	engine.Use(middleware.RequestIDMiddleware())
	engine.Use(logger.Middleware(container.Logger))
	engine.Use(errors.ErrorHandler())
	engine.Use(errors.RecoveryWithLogger())

	// Global per-IP limiter; the per-visitor fixed window on the AI path
	// is separate and much stricter.
	rateLimiter := middleware.NewRateLimiter(container.Logger)
	engine.Use(rateLimiter.Middleware())

	go container.Hub.Run()

	return &Router{
		Engine:    engine,
		Container: container,
		Logger:    container.Logger,
	}
}

// SetupRoutes registers all application routes
func (r *Router) SetupRoutes() {
	r.Engine.Use(corsMiddleware())

	chatbotHandler := api.NewChatbotHandler(
		r.Container.ChatService,
		r.Container.SessionService,
		r.Container.HandoffService,
		r.Container.Config.Chat.HistoryPageSize,
		r.Logger,
	)
	adminHandler := api.NewAdminHandler(
		r.Container.HandoffService,
		r.Container.UserService,
		r.Container.AppointmentService,
		r.Container.ContactService,
		r.Container.JWTService,
		r.Logger,
	)
	authHandler := api.NewAuthHandler(r.Container.UserService, r.Container.JWTService, r.Logger)
	publicHandler := api.NewPublicHandler(
		r.Container.HospitalService,
		r.Container.AppointmentService,
		r.Container.ContactService,
		r.Logger,
	)

	chatbotHandler.RegisterRoutes(r.Engine)
	adminHandler.RegisterRoutes(r.Engine)
	authHandler.RegisterRoutes(r.Engine)
	publicHandler.RegisterRoutes(r.Engine)

	// Widget and console sockets
	r.Engine.GET("/ws", func(c *gin.Context) {
		ws.ServeWs(r.Container.Hub, c)
	})
	r.Engine.GET("/ws/admin", func(c *gin.Context) {
		ws.ServeAgentWs(r.Container.Hub, r.Container.JWTService, c)
	})

	r.Engine.GET("/health", gin.WrapF(r.Container.Health.HTTPHandler()))
	r.Engine.GET("/healthz", r.healthCheckHandler())
}

// AddOpenAPIValidation enables request validation against the schema at
// the given path.
func (r *Router) AddOpenAPIValidation(schemaPath string) error {
	v, err := validator.NewOpenAPIValidator(schemaPath)
	if err != nil {
		return err
	}
	r.Engine.Use(v.Middleware())
	return nil
}

// healthCheckHandler returns a simple liveness handler
func (r *Router) healthCheckHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(200, gin.H{
			"status": "ok",
			"env":    r.Container.Config.Server.Env,
			"time":   time.Now().Format(time.RFC3339),
		})
	}
}

// corsMiddleware allows the widget to be embedded on hospital sites and
// keeps the WebSocket upgrade headers exposed
func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		origin := c.Request.Header.Get("Origin")
		if origin == "" {
			origin = "*"
		}

		c.Writer.Header().Set("Access-Control-Allow-Origin", origin)
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept, Accept-Encoding, X-CSRF-Token, Authorization, Origin, Upgrade, Connection, Cache-Control")
		c.Writer.Header().Set("Access-Control-Expose-Headers", "Upgrade, Connection")
		c.Writer.Header().Set("Access-Control-Max-Age", "86400")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}

		c.Next()
	}
}

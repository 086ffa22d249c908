package di

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"hospital-management/backend/ai"
	"hospital-management/backend/internal/repository"
	"hospital-management/backend/internal/service"
	"hospital-management/backend/internal/ws"
	"hospital-management/backend/pkg/config"
	"hospital-management/backend/pkg/guard"
	"hospital-management/backend/pkg/health"
	"hospital-management/backend/pkg/jwt"
	"hospital-management/backend/pkg/logger"
	"hospital-management/backend/pkg/resilience"
)

// Container holds all the dependencies for the application.
type Container struct {
	DB     *gorm.DB
	Logger *logger.Logger
	Config *config.Config

	JWTService *jwt.Service
	Redis      *redis.Client

	RateLimiter   guard.RateLimiter
	ResponseCache guard.ResponseCache
	Provider      ai.Provider

	Hub *ws.Hub

	SessionService     *service.SessionService
	HospitalService    *service.HospitalService
	ChatService        *service.ChatService
	HandoffService     *service.HandoffService
	UserService        *service.UserService
	AppointmentService *service.AppointmentService
	ContactService     *service.ContactService

	Health *health.Checker
}

// New wires the application graph. Guard state lives in Redis when it is
// configured so multiple instances enforce one shared limit; otherwise
// it is process-local, which under-enforces across instances.
func New(db *gorm.DB, cfg *config.Config, log *logger.Logger) (*Container, error) {
	c := &Container{
		DB:     db,
		Logger: log,
		Config: cfg,
	}

	c.JWTService = jwt.NewService(cfg.JWT.Secret, cfg.JWT.ExpiryHours)

	if cfg.Redis.Enabled {
		c.Redis = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		c.RateLimiter = guard.NewRedisRateLimiter(c.Redis, cfg.Guard.Window, cfg.Guard.Limit)
		c.ResponseCache = guard.NewRedisResponseCache(c.Redis, cfg.Guard.CacheTTL)
	} else {
		c.RateLimiter = guard.NewMemoryRateLimiter(cfg.Guard.Window, cfg.Guard.Limit)
		c.ResponseCache = guard.NewMemoryResponseCache(cfg.Guard.CacheTTL, cfg.Guard.CacheMaxLen)
	}

	c.Provider = ai.NewGeminiProvider(ai.GeminiConfig{
		Model:          cfg.AI.Model,
		Timeout:        cfg.AI.Timeout,
		MaxOutputChars: cfg.AI.MaxOutputChars,
		Temperature:    cfg.AI.Temperature,
	})

	sessionRepo := repository.NewGormSessionRepository(db)
	directory := repository.NewGormHospitalDirectory(db)
	appointmentRepo := repository.NewGormAppointmentRepository(db)
	contactRepo := repository.NewGormContactRepository(db)
	userRepo := repository.NewGormUserRepository(db)

	c.Hub = ws.NewHub(log)

	c.SessionService = service.NewSessionService(sessionRepo, cfg.Chat.MaxStoredMessages)
	c.HospitalService = service.NewHospitalService(directory, appointmentRepo)

	breaker := resilience.NewCircuitBreaker(resilience.DefaultCircuitBreakerConfig("ai-provider"), log)
	c.ChatService = service.NewChatService(
		c.SessionService,
		c.HospitalService,
		c.Provider,
		c.RateLimiter,
		c.ResponseCache,
		c.Hub,
		breaker,
		log,
		service.ChatConfig{
			HistoryWindow:      cfg.Chat.HistoryWindow,
			ContextRefreshEach: cfg.Chat.ContextRefreshEach,
			MaxRetries:         cfg.AI.MaxRetries,
			InitialBackoff:     cfg.AI.InitialBackoff,
		},
	)
	c.HandoffService = service.NewHandoffService(c.SessionService, c.Hub, log)
	c.UserService = service.NewUserService(userRepo, c.JWTService, log)
	c.AppointmentService = service.NewAppointmentService(directory, appointmentRepo, log)
	c.ContactService = service.NewContactService(contactRepo, c.Hub, log)

	c.Hub.SetGateway(service.NewChatGateway(c.ChatService, c.HandoffService))

	c.Health = health.NewChecker(log, 30*time.Second)
	c.Health.RegisterDatabaseCheck(func() error {
		sqlDB, err := db.DB()
		if err != nil {
			return err
		}
		return sqlDB.Ping()
	})
	if c.Redis != nil {
		c.Health.RegisterCheck("redis", func() (health.Status, string, error) {
			ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			if err := c.Redis.Ping(ctx).Err(); err != nil {
				return health.StatusDegraded, "Redis unreachable, guard state is stale", err
			}
			return health.StatusUp, "Redis connection is established", nil
		})
	}

	return c, nil
}

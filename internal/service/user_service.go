package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"hospital-management/backend/internal/models"
	"hospital-management/backend/internal/repository"
	"hospital-management/backend/pkg/jwt"
	"hospital-management/backend/pkg/logger"
)

// ErrInvalidCredentials is returned on a failed login. The same error
// covers unknown email and wrong password so the response does not leak
// which one it was.
var ErrInvalidCredentials = errors.New("invalid email or password")

// ErrEmailTaken is returned when registering an email that already has
// an account.
var ErrEmailTaken = errors.New("email is already registered")

// UserService manages agent and super-admin accounts.
type UserService struct {
	users      repository.UserRepository
	jwtService *jwt.Service
	log        *logger.Logger
}

func NewUserService(users repository.UserRepository, jwtService *jwt.Service, log *logger.Logger) *UserService {
	return &UserService{users: users, jwtService: jwtService, log: log}
}

// Register creates an agent account. Passwords are hashed by the model
// hook on create.
func (s *UserService) Register(ctx context.Context, req *models.CreateUserRequest) (*models.User, error) {
	email := strings.ToLower(strings.TrimSpace(req.Email))
	if _, err := s.users.GetByEmail(ctx, email); err == nil {
		return nil, ErrEmailTaken
	} else if !errors.Is(err, repository.ErrUserNotFound) {
		return nil, err
	}

	user := &models.User{
		Name:       req.Name,
		Email:      email,
		Password:   req.Password,
		Role:       req.Role,
		HospitalID: req.HospitalID,
	}
	if err := s.users.Create(ctx, user); err != nil {
		return nil, err
	}
	s.log.Info("account created", "user_id", user.ID, "role", user.Role)
	return user, nil
}

// Login verifies credentials and issues a JWT carrying the agent's role
// and hospital.
func (s *UserService) Login(ctx context.Context, req *models.LoginRequest) (string, *models.User, error) {
	user, err := s.users.GetByEmail(ctx, strings.ToLower(strings.TrimSpace(req.Email)))
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return "", nil, ErrInvalidCredentials
		}
		return "", nil, err
	}
	if !models.CheckPasswordHash(req.Password, user.Password) {
		return "", nil, ErrInvalidCredentials
	}

	token, err := s.jwtService.GenerateToken(user.ID, user.Email, jwt.Role(user.Role), user.HospitalID)
	if err != nil {
		return "", nil, err
	}
	user.LastLogin = time.Now()
	return token, user, nil
}

// Get returns the account by id.
func (s *UserService) Get(ctx context.Context, id uint) (*models.User, error) {
	return s.users.GetByID(ctx, id)
}

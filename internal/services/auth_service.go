package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"farmfresh-backend/internal/models"
	"farmfresh-backend/internal/repository"
	"farmfresh-backend/pkg/logging"
	"farmfresh-backend/pkg/metrics"
)

// AuthService handles user registration and login
type AuthService struct {
	repo     repository.UserRepository
	logger   *logging.StructuredLogger
	metrics  *metrics.Collector
	hashCost int
}

// NewAuthService creates a new auth service
func NewAuthService(repo repository.UserRepository, logger *logging.StructuredLogger, metricsCollector *metrics.Collector) *AuthService {
	return &AuthService{
		repo:     repo,
		logger:   logger,
		metrics:  metricsCollector,
		hashCost: bcrypt.DefaultCost,
	}
}

// SetHashCost overrides the bcrypt cost used for new passwords
func (s *AuthService) SetHashCost(cost int) {
	s.hashCost = cost
}

// Register creates a user with a bcrypt-hashed password
func (s *AuthService) Register(ctx context.Context, reg models.Registration) (*models.User, error) {
	email := strings.TrimSpace(reg.Email)
	if email == "" || reg.Password == "" {
		return nil, &models.ValidationError{Field: "email", Message: "Email and password are required"}
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(reg.Password), s.hashCost)
	if errors.Is(err, bcrypt.ErrPasswordTooLong) {
		return nil, &models.ValidationError{Field: "password", Message: "Password must be at most 72 bytes"}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	userType := reg.UserType
	if userType == "" {
		userType = models.DefaultUserType
	}

	user := &models.User{
		ID:           uuid.NewString(),
		FirstName:    reg.FirstName,
		LastName:     reg.LastName,
		Email:        email,
		PasswordHash: string(hash),
		UserType:     userType,
		Phone:        reg.Phone,
		Address:      reg.Address,
		FarmName:     reg.FarmName,
		FarmSize:     reg.FarmSize,
		SoilType:     reg.SoilType,
		CreatedAt:    time.Now().UTC(),
	}

	if err := s.repo.Create(ctx, user); err != nil {
		if errors.Is(err, models.ErrUserExists) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to register user: %w", err)
	}

	s.logger.Info(ctx, "[AUTH_REGISTER] User registered", logging.Fields{
		"user_id":   user.ID,
		"user_type": user.UserType,
	})
	return user, nil
}

// Login checks credentials. Unknown email and wrong password both return models.ErrInvalidCredentials.
func (s *AuthService) Login(ctx context.Context, email, password string) (*models.User, error) {
	user, err := s.repo.FindByEmail(ctx, email)
	if err != nil {
		var nf *models.NotFoundError
		if errors.As(err, &nf) {
			return nil, models.ErrInvalidCredentials
		}
		return nil, fmt.Errorf("failed to load user: %w", err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		s.logger.Debug(ctx, "[AUTH_LOGIN_FAILED] Password mismatch", logging.Fields{"user_id": user.ID})
		return nil, models.ErrInvalidCredentials
	}

	return user, nil
}

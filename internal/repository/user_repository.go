package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync"

	"farmfresh-backend/internal/models"
	"farmfresh-backend/pkg/database"
	"farmfresh-backend/pkg/logging"
	"farmfresh-backend/pkg/metrics"
)

// UserRepository provides data access for registered users
type UserRepository interface {
	// Create inserts a user; models.ErrUserExists if the email is taken
	Create(ctx context.Context, user *models.User) error
	// FindByEmail returns a *models.NotFoundError when no user matches
	FindByEmail(ctx context.Context, email string) (*models.User, error)
	HealthCheck(ctx context.Context) error
}

// normalizeEmail makes email lookups case-insensitive
func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// userRepository implements UserRepository on PostgreSQL
type userRepository struct {
	db      *database.PostgresDB
	logger  *logging.StructuredLogger
	metrics *metrics.Collector
}

// NewUserRepository creates a PostgreSQL-backed user repository
func NewUserRepository(db *database.PostgresDB, logger *logging.StructuredLogger, metricsCollector *metrics.Collector) UserRepository {
	return &userRepository{
		db:      db,
		logger:  logger,
		metrics: metricsCollector,
	}
}

// Create inserts a new user
func (r *userRepository) Create(ctx context.Context, user *models.User) error {
	query := `
		INSERT INTO users (
			id, first_name, last_name, email, password_hash, user_type,
			phone, address, farm_name, farm_size, soil_type, created_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		ON CONFLICT (email) DO NOTHING
	`

	user.Email = normalizeEmail(user.Email)
	result, err := r.db.ExecContext(ctx, "insert_user", query,
		user.ID,
		user.FirstName,
		user.LastName,
		user.Email,
		user.PasswordHash,
		user.UserType,
		user.Phone,
		user.Address,
		user.FarmName,
		user.FarmSize,
		user.SoilType,
		user.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create user: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read insert result: %w", err)
	}
	if affected == 0 {
		return models.ErrUserExists
	}

	r.logger.Debug(ctx, "[REPO_CREATE_USER] User created", logging.Fields{
		"user_id":   user.ID,
		"user_type": user.UserType,
	})

	return nil
}

// FindByEmail retrieves a user by email
func (r *userRepository) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	query := `
		SELECT id, first_name, last_name, email, password_hash, user_type,
		       phone, address, farm_name, farm_size, soil_type, created_at
		FROM users
		WHERE email = $1
	`

	var user models.User
	err := r.db.GetContext(ctx, "get_user_by_email", &user, query, normalizeEmail(email))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, &models.NotFoundError{Resource: "user", ID: email}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}

	return &user, nil
}

// HealthCheck performs a repository health check
func (r *userRepository) HealthCheck(ctx context.Context) error {
	return r.db.HealthCheck(ctx)
}

// MemoryUserRepository keeps users in process memory. Used when no database is configured.
type MemoryUserRepository struct {
	mu    sync.RWMutex
	users map[string]models.User
}

// NewMemoryUserRepository creates an empty in-memory repository
func NewMemoryUserRepository() *MemoryUserRepository {
	return &MemoryUserRepository{users: make(map[string]models.User)}
}

// Create stores a user unless the email is already registered
func (r *MemoryUserRepository) Create(_ context.Context, user *models.User) error {
	user.Email = normalizeEmail(user.Email)

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.users[user.Email]; exists {
		return models.ErrUserExists
	}
	r.users[user.Email] = *user
	return nil
}

// FindByEmail returns a copy of the stored user
func (r *MemoryUserRepository) FindByEmail(_ context.Context, email string) (*models.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	user, ok := r.users[normalizeEmail(email)]
	if !ok {
		return nil, &models.NotFoundError{Resource: "user", ID: email}
	}
	return &user, nil
}

// HealthCheck always succeeds
func (r *MemoryUserRepository) HealthCheck(context.Context) error {
	return nil
}

package iam

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"

	"github.com/brgyhealth/records-portal/pkg/database"
	"github.com/brgyhealth/records-portal/pkg/logger"
	"github.com/brgyhealth/records-portal/pkg/types"
)

// UserRepository defines the interface for user data operations
type UserRepository interface {
	Create(ctx context.Context, user *types.User) (*types.User, error)
	GetByID(ctx context.Context, userID string) (*types.User, error)
	GetByUsername(ctx context.Context, username string) (*types.User, error)
}

// Repository implements UserRepository against PostgreSQL
type Repository struct {
	db     *database.DB
	logger *logger.Logger
}

// NewRepository creates a new user repository
func NewRepository(db *database.DB, log *logger.Logger) *Repository {
	return &Repository{
		db:     db,
		logger: log,
	}
}

// Create creates a new user
func (r *Repository) Create(ctx context.Context, user *types.User) (*types.User, error) {
	user.ID = uuid.New().String()
	user.CreatedAt = time.Now()
	user.UpdatedAt = user.CreatedAt

	query := `
		INSERT INTO users (id, username, full_name, role, password_hash, is_active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

	_, err := r.db.ExecContext(ctx, query,
		user.ID,
		user.Username,
		user.FullName,
		user.Role,
		user.PasswordHash,
		user.IsActive,
		user.CreatedAt,
		user.UpdatedAt,
	)
	if err != nil {
		r.logger.WithError(err).Error("Failed to create user")
		return nil, types.NewPersistenceError(types.ErrCodeWriteFailed, "failed to create user", err)
	}

	r.logger.WithUserID(user.ID).Info("Created user")
	return user, nil
}

// GetByID retrieves a user by ID
func (r *Repository) GetByID(ctx context.Context, userID string) (*types.User, error) {
	return r.getUser(ctx, `WHERE id = $1`, userID)
}

// GetByUsername retrieves a user by username
func (r *Repository) GetByUsername(ctx context.Context, username string) (*types.User, error) {
	return r.getUser(ctx, `WHERE username = $1`, username)
}

func (r *Repository) getUser(ctx context.Context, where string, arg interface{}) (*types.User, error) {
	query := `
		SELECT id, username, full_name, role, password_hash, is_active, created_at, updated_at
		FROM users ` + where

	user := &types.User{}
	err := r.db.QueryRowContext(ctx, query, arg).Scan(
		&user.ID,
		&user.Username,
		&user.FullName,
		&user.Role,
		&user.PasswordHash,
		&user.IsActive,
		&user.CreatedAt,
		&user.UpdatedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, types.NewNotFoundError(types.ErrCodeNotFound, "user not found")
		}
		r.logger.WithError(err).Error("Failed to get user")
		return nil, types.NewPersistenceError(types.ErrCodeInternalError, "failed to get user", err)
	}

	return user, nil
}

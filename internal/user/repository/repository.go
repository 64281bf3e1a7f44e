package repository

import (
	"context"
	"errors"

	"task-tracker/backend/internal/user/domain"
)

// ErrUsernameTaken is returned by Create when the username already exists.
var ErrUsernameTaken = errors.New("username already exists")

// Repository defines persistence for users.
// Lookups return nil, nil when no user matches.
type Repository interface {
	GetByID(ctx context.Context, id string) (*domain.User, error)
	GetByUsername(ctx context.Context, username string) (*domain.User, error)
	Create(ctx context.Context, u *domain.User) error
}

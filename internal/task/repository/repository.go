package repository

import (
	"context"

	"task-tracker/backend/internal/task/domain"
)

// Repository defines persistence for tasks.
// GetByID returns nil, nil when no task matches. Update and Delete report whether a row was affected.
type Repository interface {
	Create(ctx context.Context, t *domain.Task) error
	GetByID(ctx context.Context, id string) (*domain.Task, error)
	ListByUser(ctx context.Context, userID string, filter domain.ListFilter) ([]*domain.Task, error)
	Update(ctx context.Context, t *domain.Task) (bool, error)
	Delete(ctx context.Context, id string) (bool, error)
}

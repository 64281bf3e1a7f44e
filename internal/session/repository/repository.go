package repository

import (
	"context"

	"task-tracker/backend/internal/session/domain"
)

// Store persists at most one session record per username with a fixed TTL.
//
// Put replaces any existing record (last writer wins). Get returns nil, nil when the record is
// absent or expired. Delete is idempotent. Errors are reserved for backend failures.
type Store interface {
	Put(ctx context.Context, username, accessToken, refreshToken string) error
	Get(ctx context.Context, username string) (*domain.Session, error)
	Delete(ctx context.Context, username string) error
	Ping(ctx context.Context) error
}

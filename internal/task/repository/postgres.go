package repository

import (
	"context"
	"database/sql"
	"errors"

	"task-tracker/backend/internal/task/domain"
)

const (
	selectTaskColumns = `SELECT id, user_id, title, description, status, created_at, updated_at FROM tasks`
	getTaskByID       = selectTaskColumns + ` WHERE id = $1`
	listTasksByUser   = selectTaskColumns + ` WHERE user_id = $1 AND ($2::text IS NULL OR status = $2::text) ORDER BY created_at, id`
	insertTask        = `INSERT INTO tasks (id, user_id, title, description, status, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7)`
	updateTask = `UPDATE tasks SET title = $2, description = $3, status = $4, updated_at = $5 WHERE id = $1`
	deleteTask = `DELETE FROM tasks WHERE id = $1`
)

type PostgresRepository struct {
	db *sql.DB
}

// NewPostgresRepository returns a task repository that uses the given db for persistence.
func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Create persists the task. ID and timestamps must already be set.
func (r *PostgresRepository) Create(ctx context.Context, t *domain.Task) error {
	_, err := r.db.ExecContext(ctx, insertTask,
		t.ID, t.UserID, t.Title, t.Description, string(t.Status), t.CreatedAt, t.UpdatedAt)
	return err
}

// GetByID returns the task for id, or nil if not found.
func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*domain.Task, error) {
	t, err := scanTask(r.db.QueryRowContext(ctx, getTaskByID, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return t, nil
}

// ListByUser returns the user's tasks oldest first, optionally filtered by status.
func (r *PostgresRepository) ListByUser(ctx context.Context, userID string, filter domain.ListFilter) ([]*domain.Task, error) {
	var status sql.NullString
	if filter.Status != nil {
		status = sql.NullString{String: string(*filter.Status), Valid: true}
	}
	rows, err := r.db.QueryContext(ctx, listTasksByUser, userID, status)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*domain.Task
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// Update overwrites the mutable fields of the task with t.ID.
func (r *PostgresRepository) Update(ctx context.Context, t *domain.Task) (bool, error) {
	res, err := r.db.ExecContext(ctx, updateTask, t.ID, t.Title, t.Description, string(t.Status), t.UpdatedAt)
	if err != nil {
		return false, err
	}
	return affected(res)
}

// Delete removes the task with id.
func (r *PostgresRepository) Delete(ctx context.Context, id string) (bool, error) {
	res, err := r.db.ExecContext(ctx, deleteTask, id)
	if err != nil {
		return false, err
	}
	return affected(res)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTask(row rowScanner) (*domain.Task, error) {
	var t domain.Task
	var status string
	if err := row.Scan(&t.ID, &t.UserID, &t.Title, &t.Description, &status, &t.CreatedAt, &t.UpdatedAt); err != nil {
		return nil, err
	}
	t.Status = domain.Status(status)
	return &t, nil
}

func affected(res sql.Result) (bool, error) {
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

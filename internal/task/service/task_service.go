package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"task-tracker/backend/internal/logging"
	"task-tracker/backend/internal/policy/engine"
	"task-tracker/backend/internal/task/domain"
	"task-tracker/backend/internal/task/repository"
)

var (
	// ErrTaskNotFound is returned when the task does not exist or the caller may not see it.
	ErrTaskNotFound = errors.New("task not found")
	ErrInvalidTask  = errors.New("invalid task")
	ErrForbidden    = errors.New("task access denied")
)

// CreateInput is the payload for a new task. Empty Status defaults to in_progress.
type CreateInput struct {
	Title       string
	Description string
	Status      domain.Status
}

// TaskService implements per-user task CRUD guarded by the access policy.
type TaskService struct {
	repo   repository.Repository
	policy engine.Evaluator
	log    logging.Logger
	now    func() time.Time
}

// NewTaskService returns a TaskService. A nil logger discards output.
func NewTaskService(repo repository.Repository, policy engine.Evaluator, log logging.Logger) *TaskService {
	if log == nil {
		log = logging.Nop()
	}
	return &TaskService{
		repo:   repo,
		policy: policy,
		log:    log.With("module", "task"),
		now:    time.Now,
	}
}

// Create stores a new task owned by userID.
func (s *TaskService) Create(ctx context.Context, userID string, in CreateInput) (*domain.Task, error) {
	if in.Status == "" {
		in.Status = domain.StatusInProgress
	}
	now := s.now().UTC()
	t := &domain.Task{
		ID:          uuid.New().String(),
		UserID:      userID,
		Title:       strings.TrimSpace(in.Title),
		Description: in.Description,
		Status:      in.Status,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := t.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidTask, err)
	}
	if err := s.authorize(ctx, engine.ActionCreate, userID, t); err != nil {
		if errors.Is(err, ErrTaskNotFound) {
			return nil, ErrForbidden
		}
		return nil, err
	}
	if err := s.repo.Create(ctx, t); err != nil {
		return nil, fmt.Errorf("create task: %w", err)
	}
	s.log.Debug(ctx, "task created", "task_id", t.ID, "user_id", userID)
	return t, nil
}

// List returns the user's tasks, optionally filtered by status.
func (s *TaskService) List(ctx context.Context, userID string, filter domain.ListFilter) ([]*domain.Task, error) {
	tasks, err := s.repo.ListByUser(ctx, userID, filter)
	if err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	out := tasks[:0]
	for _, t := range tasks {
		if err := s.authorize(ctx, engine.ActionRead, userID, t); err != nil {
			if errors.Is(err, ErrTaskNotFound) {
				continue
			}
			return nil, err
		}
		out = append(out, t)
	}
	if out == nil {
		out = []*domain.Task{}
	}
	return out, nil
}

// Get returns one task if the caller may read it.
func (s *TaskService) Get(ctx context.Context, userID, id string) (*domain.Task, error) {
	return s.load(ctx, engine.ActionRead, userID, id)
}

// Update applies patch to the task. An empty patch returns the task unchanged.
func (s *TaskService) Update(ctx context.Context, userID, id string, patch domain.Patch) (*domain.Task, error) {
	if err := patch.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidTask, err)
	}
	t, err := s.load(ctx, engine.ActionUpdate, userID, id)
	if err != nil {
		return nil, err
	}
	if patch.IsEmpty() {
		return t, nil
	}
	patch.Apply(t, s.now().UTC())
	ok, err := s.repo.Update(ctx, t)
	if err != nil {
		return nil, fmt.Errorf("update task: %w", err)
	}
	if !ok {
		return nil, ErrTaskNotFound
	}
	return t, nil
}

// Delete removes the task.
func (s *TaskService) Delete(ctx context.Context, userID, id string) error {
	if _, err := s.load(ctx, engine.ActionDelete, userID, id); err != nil {
		return err
	}
	ok, err := s.repo.Delete(ctx, id)
	if err != nil {
		return fmt.Errorf("delete task: %w", err)
	}
	if !ok {
		return ErrTaskNotFound
	}
	s.log.Debug(ctx, "task deleted", "task_id", id, "user_id", userID)
	return nil
}

func (s *TaskService) load(ctx context.Context, action, userID, id string) (*domain.Task, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, ErrTaskNotFound
	}
	t, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get task: %w", err)
	}
	if t == nil {
		return nil, ErrTaskNotFound
	}
	if err := s.authorize(ctx, action, userID, t); err != nil {
		return nil, err
	}
	return t, nil
}

// authorize returns ErrTaskNotFound on a policy denial so other users' tasks stay invisible.
func (s *TaskService) authorize(ctx context.Context, action, userID string, t *domain.Task) error {
	req := engine.AccessRequest{Action: action, UserID: userID, TaskStatus: string(t.Status)}
	if action != engine.ActionCreate {
		req.TaskOwnerID = t.UserID
	}
	allowed, err := s.policy.Allow(ctx, req)
	if err != nil {
		s.log.Error(ctx, "task policy evaluation failed", "action", action, "error", err)
		return fmt.Errorf("task policy: %w", err)
	}
	if !allowed {
		return ErrTaskNotFound
	}
	return nil
}

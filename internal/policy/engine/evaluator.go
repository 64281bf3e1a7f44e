package engine

import "context"

// Task actions checked by the policy.
const (
	ActionCreate = "create"
	ActionRead   = "read"
	ActionUpdate = "update"
	ActionDelete = "delete"
)

// AccessRequest is the input to a task access decision. TaskOwnerID is empty for create.
type AccessRequest struct {
	Action      string
	UserID      string
	TaskOwnerID string
	TaskStatus  string
}

// Evaluator decides whether a user may act on a task.
type Evaluator interface {
	Allow(ctx context.Context, req AccessRequest) (bool, error)
}

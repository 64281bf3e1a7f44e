package domain

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// MaxTitleLength bounds titles; it matches the tasks.title column.
const MaxTitleLength = 200

// Status is the progress state of a task.
type Status string

const (
	StatusInProgress Status = "in_progress"
	StatusCompleted  Status = "completed"
)

// ParseStatus returns the Status for s. Empty input is an error.
func ParseStatus(s string) (Status, error) {
	switch st := Status(strings.TrimSpace(s)); st {
	case StatusInProgress, StatusCompleted:
		return st, nil
	default:
		return "", fmt.Errorf("unknown status %q", s)
	}
}

// Task is a to-do item owned by a single user.
type Task struct {
	ID          string
	UserID      string
	Title       string
	Description string
	Status      Status
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Validate validates the task for persistence. Returns an error describing the first validation failure.
func (t *Task) Validate() error {
	if t.UserID == "" {
		return errors.New("user id is required")
	}
	if err := validateTitle(t.Title); err != nil {
		return err
	}
	if _, err := ParseStatus(string(t.Status)); err != nil {
		return err
	}
	return nil
}

func validateTitle(title string) error {
	if strings.TrimSpace(title) == "" {
		return errors.New("title is required")
	}
	if len(title) > MaxTitleLength {
		return errors.New("title is too long")
	}
	return nil
}

// Patch is a partial update; nil fields are left unchanged.
type Patch struct {
	Title       *string
	Description *string
	Status      *Status
}

// IsEmpty reports whether the patch changes nothing.
func (p Patch) IsEmpty() bool {
	return p.Title == nil && p.Description == nil && p.Status == nil
}

// Validate checks the fields that are set.
func (p Patch) Validate() error {
	if p.Title != nil {
		if err := validateTitle(*p.Title); err != nil {
			return err
		}
	}
	if p.Status != nil {
		if _, err := ParseStatus(string(*p.Status)); err != nil {
			return err
		}
	}
	return nil
}

// Apply copies the set fields onto t and stamps UpdatedAt.
func (p Patch) Apply(t *Task, now time.Time) {
	if p.Title != nil {
		t.Title = strings.TrimSpace(*p.Title)
	}
	if p.Description != nil {
		t.Description = *p.Description
	}
	if p.Status != nil {
		t.Status = *p.Status
	}
	t.UpdatedAt = now
}

// ListFilter narrows ListByUser. A nil Status returns every task.
type ListFilter struct {
	Status *Status
}

package domain

import (
	"errors"
	"strings"
	"time"
)

// MaxUsernameLength bounds usernames; it matches the users.username column.
const MaxUsernameLength = 64

// User is a registered account. It is immutable after registration.
type User struct {
	ID           string
	Username     string
	PasswordHash string
	CreatedAt    time.Time
}

// Validate validates the user for persistence. Returns an error describing the first validation failure.
func (u *User) Validate() error {
	if strings.TrimSpace(u.Username) == "" {
		return errors.New("username is required")
	}
	if len(u.Username) > MaxUsernameLength {
		return errors.New("username is too long")
	}
	if u.PasswordHash == "" {
		return errors.New("password hash is required")
	}
	return nil
}

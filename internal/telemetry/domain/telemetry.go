package domain

import "time"

// Event types emitted by the auth layer.
const (
	EventRegister     = "auth.register"
	EventLogin        = "auth.login"
	EventLogout       = "auth.logout"
	EventRefresh      = "auth.refresh"
	EventAuthenticate = "auth.authenticate"
)

// Outcomes recorded on an Event.
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
)

// Event is one auth or API occurrence worth exporting. Username is empty when the caller could
// not be identified.
type Event struct {
	Type      string
	Username  string
	Outcome   string
	Reason    string // short code for failures, e.g. "token_mismatch"
	Source    string // "http", "grpc" or "service"
	ClientIP  string
	Metadata  []byte // optional JSON
	CreatedAt time.Time
}

// Package audit records auth outcomes as structured log lines and telemetry events.
package audit

import (
	"context"
	"time"

	"task-tracker/backend/internal/logging"
	"task-tracker/backend/internal/telemetry"
	"task-tracker/backend/internal/telemetry/domain"
)

// AuditLogger records one auth outcome. reason is empty on success and a short code
// (e.g. "token_mismatch") on failure. LogEvent is best-effort and never fails the caller.
type AuditLogger interface {
	LogEvent(ctx context.Context, eventType, username, reason string)
}

// Logger implements AuditLogger over a structured logger and an optional event emitter.
type Logger struct {
	log     logging.Logger
	emitter telemetry.EventEmitter
	now     func() time.Time
}

// NewLogger returns a Logger. emitter may be nil; then only log lines are written.
func NewLogger(log logging.Logger, emitter telemetry.EventEmitter) *Logger {
	if log == nil {
		log = logging.Nop()
	}
	return &Logger{log: log.With("module", "audit"), emitter: emitter, now: time.Now}
}

// LogEvent writes the audit line and emits the event asynchronously.
func (l *Logger) LogEvent(ctx context.Context, eventType, username, reason string) {
	info := RequestInfoFrom(ctx)
	ev := &domain.Event{
		Type:      eventType,
		Username:  username,
		Outcome:   domain.OutcomeSuccess,
		Reason:    reason,
		Source:    info.Source,
		ClientIP:  info.ClientIP,
		CreatedAt: l.now().UTC(),
	}
	args := []any{"event", eventType, "username", username, "source", info.Source, "client_ip", info.ClientIP}
	if reason != "" {
		ev.Outcome = domain.OutcomeFailure
		l.log.Warn(ctx, "auth event", append(args, "outcome", ev.Outcome, "reason", reason)...)
	} else {
		l.log.Info(ctx, "auth event", append(args, "outcome", ev.Outcome)...)
	}
	telemetry.EmitAsync(l.emitter, ctx, ev)
}

// Nop is an AuditLogger that discards events.
type Nop struct{}

func (Nop) LogEvent(context.Context, string, string, string) {}

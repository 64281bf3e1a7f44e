// Package health runs readiness checks against the database, the session store and the task policy.
package health

import (
	"context"
	"time"
)

// Pinger is implemented by *sql.DB for readiness checks.
type Pinger interface {
	PingContext(ctx context.Context) error
}

// StorePinger is implemented by the session stores.
type StorePinger interface {
	Ping(ctx context.Context) error
}

// PolicyChecker is implemented by the OPA evaluator.
type PolicyChecker interface {
	HealthCheck(ctx context.Context) error
}

// Status values reported by Check.
const (
	StatusOK       = "ok"
	StatusDegraded = "degraded"
)

// checkTimeout bounds each dependency probe.
const checkTimeout = 2 * time.Second

// Report is the result of a readiness check. Checks maps dependency name to "ok" or the error text.
type Report struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks"`
}

// Healthy reports whether every dependency passed.
func (r Report) Healthy() bool {
	return r.Status == StatusOK
}

// Checker probes the configured dependencies. Nil dependencies are skipped.
type Checker struct {
	db     Pinger
	store  StorePinger
	policy PolicyChecker
}

// NewChecker returns a Checker. Any argument may be nil.
func NewChecker(db Pinger, store StorePinger, policy PolicyChecker) *Checker {
	return &Checker{db: db, store: store, policy: policy}
}

// Check runs every probe and returns the combined report.
func (c *Checker) Check(ctx context.Context) Report {
	r := Report{Status: StatusOK, Checks: map[string]string{}}
	if c == nil {
		return r
	}
	if c.db != nil {
		r.add("database", probe(ctx, c.db.PingContext))
	}
	if c.store != nil {
		r.add("session_store", probe(ctx, c.store.Ping))
	}
	if c.policy != nil {
		r.add("policy", probe(ctx, c.policy.HealthCheck))
	}
	return r
}

func (r *Report) add(name string, err error) {
	if err != nil {
		r.Checks[name] = err.Error()
		r.Status = StatusDegraded
		return
	}
	r.Checks[name] = StatusOK
}

func probe(ctx context.Context, fn func(context.Context) error) error {
	ctx, cancel := context.WithTimeout(ctx, checkTimeout)
	defer cancel()
	return fn(ctx)
}

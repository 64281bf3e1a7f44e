package engine

import (
	"context"
	"fmt"
	"os"

	"github.com/open-policy-agent/opa/v1/ast"
	"github.com/open-policy-agent/opa/v1/rego"
)

const allowQuery = "data.tasktracker.task_access.allow"

// DefaultRegoPolicy lets any identified user create tasks and lets owners read, update and delete
// their own. A replacement module must declare the same package and an allow rule.
const DefaultRegoPolicy = `package tasktracker.task_access

default allow := false

allow if {
	input.action == "create"
	input.user.id != ""
}

allow if {
	input.action in {"read", "update", "delete"}
	input.user.id != ""
	input.task.owner_id == input.user.id
}
`

// OPAEvaluator evaluates task access with an in-process OPA Rego policy prepared once at startup.
type OPAEvaluator struct {
	query rego.PreparedEvalQuery
}

// NewOPAEvaluator compiles module (DefaultRegoPolicy when empty) and prepares the allow query.
func NewOPAEvaluator(ctx context.Context, module string) (*OPAEvaluator, error) {
	if module == "" {
		module = DefaultRegoPolicy
	}
	compiler, err := ast.CompileModules(map[string]string{"task_access.rego": module})
	if err != nil {
		return nil, fmt.Errorf("compile task policy: %w", err)
	}
	q, err := rego.New(
		rego.Query(allowQuery),
		rego.Compiler(compiler),
	).PrepareForEval(ctx)
	if err != nil {
		return nil, fmt.Errorf("prepare task policy: %w", err)
	}
	return &OPAEvaluator{query: q}, nil
}

// LoadPolicyFile returns the Rego module at path, or "" when path is empty.
func LoadPolicyFile(path string) (string, error) {
	if path == "" {
		return "", nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read task policy: %w", err)
	}
	return string(b), nil
}

// Allow evaluates the policy for req. An undefined result is a denial.
func (e *OPAEvaluator) Allow(ctx context.Context, req AccessRequest) (bool, error) {
	rs, err := e.query.Eval(ctx, rego.EvalInput(buildInput(req)))
	if err != nil {
		return false, fmt.Errorf("eval task policy: %w", err)
	}
	if len(rs) == 0 || len(rs[0].Expressions) == 0 {
		return false, nil
	}
	allowed, ok := rs[0].Expressions[0].Value.(bool)
	if !ok {
		return false, fmt.Errorf("task policy returned %T, want bool", rs[0].Expressions[0].Value)
	}
	return allowed, nil
}

// HealthCheck verifies the prepared policy evaluates to a decision. Returns nil on success.
func (e *OPAEvaluator) HealthCheck(ctx context.Context) error {
	rs, err := e.query.Eval(ctx, rego.EvalInput(buildInput(AccessRequest{Action: ActionRead, UserID: "probe", TaskOwnerID: "probe"})))
	if err != nil {
		return fmt.Errorf("eval task policy: %w", err)
	}
	if len(rs) == 0 || len(rs[0].Expressions) == 0 {
		return fmt.Errorf("policy query returned no result")
	}
	return nil
}

func buildInput(req AccessRequest) map[string]interface{} {
	return map[string]interface{}{
		"action": req.Action,
		"user": map[string]interface{}{
			"id": req.UserID,
		},
		"task": map[string]interface{}{
			"owner_id": req.TaskOwnerID,
			"status":   req.TaskStatus,
		},
	}
}

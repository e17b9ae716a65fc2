package guard

import (
	"context"

	"go.uber.org/zap"
)

// ToolFunc is a capability implemented as an ordinary function, with no
// subprocess indirection. Blocking and suspending bodies share this shape;
// the wrapper forwards the context and performs no suspension of its own.
type ToolFunc func(ctx context.Context, kwargs map[string]any) (any, error)

// Enforcer applies the decision engine to in-process tools. Unlike the
// subprocess hook, violations are returned as errors: in-process callers
// handle them directly.
type Enforcer struct {
	checker *Checker
}

// NewEnforcer builds an enforcer over the given policy and rule sets.
func NewEnforcer(policy *Policy, rules []*RuleSet, logger *zap.Logger) *Enforcer {
	return &Enforcer{checker: NewChecker(policy, rules, logger)}
}

// Check decides whether a call is allowed; returns a *Violation on denial.
func (e *Enforcer) Check(toolName string, args []any, kwargs map[string]any) error {
	return e.checker.Check(toolName, args, kwargs)
}

// Wrap guards fn with a check under the given tool name. Use the override
// name when the function's registered tool name differs from its identifier.
func (e *Enforcer) Wrap(toolName string, fn ToolFunc) ToolFunc {
	return func(ctx context.Context, kwargs map[string]any) (any, error) {
		if err := e.checker.Check(toolName, nil, kwargs); err != nil {
			return nil, err
		}
		return fn(ctx, kwargs)
	}
}

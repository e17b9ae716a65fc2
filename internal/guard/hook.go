package guard

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// Content is one item of a tool result.
type Content struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// ToolResult is the uniform result shape returned across the tool-server
// call boundary.
type ToolResult []Content

// ToolCallFunc forwards a call to the underlying tool server.
type ToolCallFunc func(ctx context.Context, name string, args map[string]any) (ToolResult, error)

// Hook intercepts a tool call before it reaches the server. Hooks compose:
// a lifecycle-tracking hook wraps the guardrail hook, which wraps the
// innermost real call.
type Hook func(ctx context.Context, call ToolCallFunc, name string, args map[string]any) (ToolResult, error)

// HookConfig configures a guardrail interception hook.
type HookConfig struct {
	Policy *Policy
	Rules  []*RuleSet
	Logger *zap.Logger

	// OnDecision, when set, observes every decision: v is nil for allowed
	// calls and carries the violation for blocked ones. elapsed covers the
	// check plus, for allowed calls, the forwarded call itself. Used by the
	// manager to feed the audit trail.
	OnDecision func(toolName string, args map[string]any, v *Violation, elapsed time.Duration)
}

// NewHook builds the guardrail interception hook. The hook never propagates
// a violation as an error across the server boundary: denied calls produce a
// well-formed "[BLOCKED]" text result so the calling agent can adapt.
// Allowed calls are forwarded and their result returned unmodified.
func NewHook(cfg HookConfig) Hook {
	checker := NewChecker(cfg.Policy, cfg.Rules, cfg.Logger)

	return func(ctx context.Context, call ToolCallFunc, name string, args map[string]any) (ToolResult, error) {
		start := time.Now()
		err := checker.Check(name, nil, args)
		if err != nil {
			var v *Violation
			if !errors.As(err, &v) {
				v = &Violation{ToolName: name, Type: ViolationBlockedTool, Message: err.Error()}
			}
			if cfg.OnDecision != nil {
				cfg.OnDecision(name, args, v, time.Since(start))
			}
			return BlockedResult(v, checker.Policy()), nil
		}
		result, callErr := call(ctx, name, args)
		if cfg.OnDecision != nil {
			cfg.OnDecision(name, args, nil, time.Since(start))
		}
		return result, callErr
	}
}

// BlockedResult converts a violation into the synthetic result returned to
// the agent, with a contextual hint keyed by violation type.
func BlockedResult(v *Violation, p *Policy) ToolResult {
	msg := "[BLOCKED] " + v.Message
	switch v.Type {
	case ViolationWriteOperation:
		msg += fmt.Sprintf("\n\nHINT: writes are only allowed inside safe zones: %v. "+
			"Use paths like 'data/filename.txt' instead.", p.SafeZonePaths)
	case ViolationSensitiveFile:
		msg += "\n\nHINT: this file contains sensitive data and cannot be accessed."
	}
	return ToolResult{{Type: "text", Text: msg}}
}

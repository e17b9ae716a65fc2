package guard

import (
	"fmt"
	"strings"

	"go.uber.org/zap"
)

// Checker is the guardrail decision engine. It aggregates the policy with
// every registered rule set and makes a pass/fail decision per call. Check
// performs no suspension and is safe to treat as synchronous; the checker
// itself is read-only after construction.
type Checker struct {
	policy *Policy
	rules  []*RuleSet
	logger *zap.Logger
}

// NewChecker builds a decision engine over the given policy and rule sets.
// A nil policy selects DefaultPolicy; a nil logger disables logging.
func NewChecker(policy *Policy, rules []*RuleSet, logger *zap.Logger) *Checker {
	if policy == nil {
		policy = DefaultPolicy()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Checker{policy: policy, rules: rules, logger: logger}
}

// Policy returns the active policy.
func (c *Checker) Policy() *Policy {
	return c.policy
}

// Check decides whether a tool call is allowed. It returns nil to allow,
// or a *Violation describing the first matching denial. Checks run in a
// fixed order: whitelist, blocked tools (with safe-zone override),
// sensitive files, principal isolation, then registered custom checks.
func (c *Checker) Check(toolName string, args []any, kwargs map[string]any) error {
	nameLower := strings.ToLower(toolName)
	baseLower := BaseToolName(nameLower, c.policy.prefixMaxLen())

	// Whitelist mode: exact match only, no prefix stripping.
	if c.policy.AllowedTools != nil {
		allowed := lowerSet(c.policy.AllowedTools)
		if _, ok := allowed[nameLower]; !ok {
			return c.deny(toolName, ViolationNotAllowed,
				fmt.Sprintf("tool %q is not in the allowed tools list", toolName))
		}
	}

	blocked := c.blockedTools()
	_, hitName := blocked[nameLower]
	_, hitBase := blocked[baseLower]
	if hitName || hitBase {
		inSafeZone := false
		if c.policy.ReadOnly && len(c.policy.SafeZonePaths) > 0 {
			paths := ExtractPaths(args, kwargs)
			inSafeZone = len(paths) > 0 && c.allInSafeZone(paths)
		}
		if !inSafeZone {
			if c.policy.ReadOnly {
				return c.deny(toolName, ViolationWriteOperation,
					fmt.Sprintf("tool %q is blocked (read-only mode)", toolName))
			}
			return c.deny(toolName, ViolationBlockedTool,
				fmt.Sprintf("tool %q is blocked", toolName))
		}
	}

	if c.policy.BlockSensitiveFiles {
		for _, path := range ExtractPaths(args, kwargs) {
			if c.IsSensitivePath(path) {
				return c.deny(toolName, ViolationSensitiveFile,
					fmt.Sprintf("access to sensitive file blocked: %s", path))
			}
		}
	}

	if err := c.checkPrincipalIsolation(toolName, baseLower, kwargs); err != nil {
		return err
	}

	for _, rs := range c.rules {
		if rs == nil || rs.CustomCheck == nil {
			continue
		}
		if err := rs.CustomCheck(toolName, args, kwargs, c.policy); err != nil {
			if v, ok := err.(*Violation); ok {
				return c.deny(v.ToolName, v.Type, v.Message)
			}
			return err
		}
	}

	return nil
}

// IsSensitivePath reports whether a path matches the aggregated sensitive
// patterns. Safe patterns are checked first and override sensitive matches,
// so specific files (e.g. data/commands.db) can be allowed even when a broad
// pattern (*.db) would block them.
func (c *Checker) IsSensitivePath(path string) bool {
	if path == "" {
		return false
	}
	normalized := normalizePath(path)
	filename := baseName(normalized)

	for pattern := range c.safePatterns() {
		if globMatch(pattern, filename) || globMatch(pattern, normalized) {
			return false
		}
	}

	for pattern := range c.sensitiveFilePatterns() {
		if globMatch(pattern, filename) || globMatch(pattern, normalized) {
			return true
		}
		if !strings.Contains(pattern, "*") && strings.Contains(normalized, pattern) {
			return true
		}
	}

	for pattern := range c.sensitivePathPatterns() {
		if globMatch(pattern, normalized) {
			return true
		}
	}

	return false
}

// InSafeZone reports whether a path lies inside one of the policy's safe
// zones, matching both relative prefixes (data/out.txt) and zone segments
// embedded in absolute paths (/srv/agent/data/out.txt).
func (c *Checker) InSafeZone(path string) bool {
	if path == "" || len(c.policy.SafeZonePaths) == 0 {
		return false
	}
	normalized := normalizePath(path)
	for _, zone := range c.policy.SafeZonePaths {
		z := strings.TrimRight(normalizePath(zone), "/") + "/"
		if strings.HasPrefix(normalized, z) || normalized == strings.TrimRight(z, "/") {
			return true
		}
		if strings.Contains("/"+normalized+"/", "/"+z) {
			return true
		}
	}
	return false
}

func (c *Checker) allInSafeZone(paths []string) bool {
	for _, p := range paths {
		if !c.InSafeZone(p) {
			return false
		}
	}
	return true
}

// blockedTools is the union of the policy's blocked set with every
// registered write-tool set when the policy is read-only.
func (c *Checker) blockedTools() map[string]struct{} {
	out := lowerSet(c.policy.BlockedTools)
	if c.policy.ReadOnly {
		for _, rs := range c.rules {
			if rs == nil {
				continue
			}
			addLower(out, rs.WriteTools)
		}
	}
	return out
}

func (c *Checker) sensitiveFilePatterns() map[string]struct{} {
	out := lowerSet(c.policy.SensitivePatterns)
	for _, rs := range c.rules {
		if rs == nil {
			continue
		}
		addLower(out, rs.SensitiveFilePatterns)
	}
	return out
}

func (c *Checker) sensitivePathPatterns() map[string]struct{} {
	out := make(map[string]struct{})
	for _, rs := range c.rules {
		if rs == nil {
			continue
		}
		addLower(out, rs.SensitivePathPatterns)
	}
	return out
}

func (c *Checker) safePatterns() map[string]struct{} {
	out := lowerSet(c.policy.SafePatterns)
	for _, rs := range c.rules {
		if rs == nil {
			continue
		}
		addLower(out, rs.SafeFilePatterns)
	}
	return out
}

func (c *Checker) deny(toolName string, vt ViolationType, msg string) *Violation {
	if c.policy.LogBlocked {
		c.logger.Warn("guardrail blocked tool call",
			zap.String("tool", toolName),
			zap.String("violation_type", string(vt)),
			zap.String("reason", msg),
		)
	}
	return &Violation{ToolName: toolName, Type: vt, Message: msg}
}

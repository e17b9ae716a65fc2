package guard

// CustomCheck is an additional guardrail check contributed by a tool server.
// It receives the raw call and the active policy and returns a *Violation
// (or any error) to deny the call, nil to allow it.
type CustomCheck func(toolName string, args []any, kwargs map[string]any, p *Policy) error

// RuleSet holds the guardrail rules one tool server contributes.
// The decision engine evaluates every call against the union of all
// registered rule sets plus the policy-local additions.
type RuleSet struct {
	// WriteTools are tool names that mutate external state. Under a
	// read-only policy they are blocked outside safe zones.
	WriteTools []string

	// ReadOnlyTools are tool names the server declares as always safe.
	// Informational; kept for operator tooling and future tightening.
	ReadOnlyTools []string

	// SensitiveFilePatterns match filenames or full paths (glob style;
	// patterns without a '*' also match as literal substrings).
	SensitiveFilePatterns []string

	// SensitivePathPatterns match full paths only.
	SensitivePathPatterns []string

	// SafeFilePatterns override sensitive matches for the same path.
	SafeFilePatterns []string

	// CustomCheck runs after all built-in checks, in registration order.
	CustomCheck CustomCheck
}

package guard

// defaultPrefixMaxLen is the longest leading segment (before the first
// underscore) that is treated as a server prefix when computing a base tool
// name. Longer segments are assumed to be part of the tool name itself.
const defaultPrefixMaxLen = 10

// Policy is the per-run security posture applied by the decision engine.
// Construct one per agent run and treat it as immutable for the run's
// duration; concurrent runs each get their own Policy.
type Policy struct {
	// ReadOnly blocks all registered write/modify/delete tools,
	// except for calls whose paths all land inside a safe zone.
	ReadOnly bool

	// BlockSensitiveFiles denies access to paths matching sensitive patterns.
	BlockSensitiveFiles bool

	// SensitivePatterns are policy-local sensitive file patterns,
	// merged with the patterns contributed by registered server rule sets.
	SensitivePatterns []string

	// SafePatterns override sensitive matches for the same path.
	SafePatterns []string

	// BlockedTools are additional tool names to deny regardless of mode.
	BlockedTools []string

	// AllowedTools switches the engine to whitelist mode when non-nil:
	// only exact (case-insensitive) members are permitted.
	AllowedTools []string

	// SafeZonePaths are path prefixes where writes are allowed even when
	// ReadOnly is set.
	SafeZonePaths []string

	// PrincipalID identifies the end user the run executes for. Empty means
	// no principal context; principal-scoped tools are then denied.
	PrincipalID string

	// LogBlocked emits a warning log line for every denied call.
	LogBlocked bool

	// PrefixMaxLen overrides the prefix-stripping threshold used when
	// normalizing prefixed tool names. Zero selects the default (10).
	PrefixMaxLen int
}

// DefaultPolicy returns the recommended security posture: read-only,
// sensitive files blocked, writes permitted only under data/.
func DefaultPolicy() *Policy {
	return &Policy{
		ReadOnly:            true,
		BlockSensitiveFiles: true,
		LogBlocked:          true,
		SafeZonePaths:       []string{"data/"},
	}
}

// AllowedScopeEntity returns the identifier prefix owned by the current
// principal, or "" when no principal is set.
func (p *Policy) AllowedScopeEntity() string {
	if p.PrincipalID == "" {
		return ""
	}
	return "scope_" + p.PrincipalID
}

func (p *Policy) prefixMaxLen() int {
	if p.PrefixMaxLen > 0 {
		return p.PrefixMaxLen
	}
	return defaultPrefixMaxLen
}

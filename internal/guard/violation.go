package guard

// ViolationType classifies why a tool call was denied.
type ViolationType string

const (
	// ViolationNotAllowed means the tool missed the whitelist (allowed_tools set).
	ViolationNotAllowed ViolationType = "not_allowed"
	// ViolationWriteOperation means a mutating tool was blocked under a read-only policy.
	ViolationWriteOperation ViolationType = "write_operation"
	// ViolationBlockedTool means the tool was explicitly denied outside read-only mode.
	ViolationBlockedTool ViolationType = "blocked_tool"
	// ViolationSensitiveFile means an argument path matched a sensitive pattern.
	ViolationSensitiveFile ViolationType = "sensitive_file"
	// ViolationMemoryIsolation means a principal-scoped identifier belongs to another principal.
	ViolationMemoryIsolation ViolationType = "memory_isolation"
	// ViolationMemoryNoContext means a principal-scoped tool was invoked with no principal set.
	ViolationMemoryNoContext ViolationType = "memory_no_context"
	// ViolationInvalidArguments means tool arguments failed a registered schema check.
	ViolationInvalidArguments ViolationType = "invalid_arguments"
)

// Violation is the typed outcome of a denied tool call.
// It implements error so custom checks and the enforcer can return it directly.
type Violation struct {
	ToolName string
	Type     ViolationType
	Message  string
}

func (v *Violation) Error() string {
	return v.Message
}

// Package audit persists one event per guardrail decision so blocked and
// allowed calls can be investigated after the run.
package audit

import (
	"time"

	"go.uber.org/zap"
)

// Decision values recorded on events.
const (
	DecisionAllowed = "allowed"
	DecisionBlocked = "blocked"
)

// Event is a single guardrail decision to be persisted.
type Event struct {
	EventID       string
	RunID         string
	Timestamp     time.Time
	Server        string
	ToolName      string
	ArgumentsJSON string
	Decision      string // "allowed" or "blocked"
	ViolationType string // empty for allowed calls
	Reason        string
	PrincipalID   string
	LatencyMs     float32
}

// Writer is the interface for persisting guardrail decisions.
// Write() must NEVER block the caller.
type Writer interface {
	Write(event *Event)
	Close()
}

// LogWriter is a fallback Writer for local development.
type LogWriter struct {
	logger *zap.Logger
}

// NewLogWriter creates a LogWriter that outputs events to the given logger.
func NewLogWriter(logger *zap.Logger) *LogWriter {
	return &LogWriter{logger: logger}
}

func (w *LogWriter) Write(event *Event) {
	w.logger.Info("guard_event",
		zap.String("event_id", event.EventID),
		zap.String("run_id", event.RunID),
		zap.String("server", event.Server),
		zap.String("tool_name", event.ToolName),
		zap.String("decision", event.Decision),
		zap.String("violation_type", event.ViolationType),
		zap.String("reason", event.Reason),
		zap.String("principal_id", event.PrincipalID),
		zap.Float32("latency_ms", event.LatencyMs),
	)
}

func (w *LogWriter) Close() {}

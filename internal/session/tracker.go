// Package session tracks the lifecycle of stateful tool servers so the run
// manager can tear them down deterministically: sessions that were opened get
// closed, and output files the server wrote get reclaimed.
package session

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/warden-ai/warden/internal/guard"
	"github.com/warden-ai/warden/internal/registry"
)

// State is the observed lifecycle state of a server session.
type State int

const (
	// Idle means no session-opening tool has been called yet.
	Idle State = iota
	// Opened means a session-opening tool was called and no close followed.
	Opened
	// Closed means the session was closed, by the agent or by cleanup.
	Closed
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Opened:
		return "opened"
	case Closed:
		return "closed"
	}
	return "unknown"
}

const defaultMaxAge = time.Hour

// Config declares which tool calls drive a server's lifecycle.
type Config struct {
	// OpenTools are the tool names whose invocation marks the session open.
	OpenTools []string
	// CloseTool is the tool that closes the session. Cleanup invokes it by
	// this exact name when the session is still open.
	CloseTool string
	// OutputParams are the keyword-argument names whose string values are
	// files the server writes; they are tracked for reclamation.
	OutputParams []string
	// TempPatterns are glob patterns for stale files the server leaves in
	// TempDir, reclaimed by age during cleanup.
	TempPatterns []string
	// TempDir defaults to the OS temp directory.
	TempDir string
	// MaxAge is the age past which a matching temp file is considered
	// abandoned. Defaults to one hour.
	MaxAge time.Duration
	// StripPrefixes are tool-name prefixes removed before matching against
	// OpenTools and CloseTool, so "pw_browser_navigate" matches
	// "browser_navigate".
	StripPrefixes []string

	Logger *zap.Logger
}

// Tracker observes tool calls for one server within one run and knows how to
// undo their side effects. Cleanup is idempotent: the second and later calls
// report Skipped without touching anything.
type Tracker struct {
	cfg Config

	mu          sync.Mutex
	state       State
	outputs     []string
	outputSet   map[string]struct{}
	cleanupDone bool
}

// NewTracker builds a tracker from cfg, applying defaults.
func NewTracker(cfg Config) *Tracker {
	if cfg.TempDir == "" {
		cfg.TempDir = os.TempDir()
	}
	if cfg.MaxAge <= 0 {
		cfg.MaxAge = defaultMaxAge
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	return &Tracker{cfg: cfg, outputSet: make(map[string]struct{})}
}

// State returns the current lifecycle state.
func (t *Tracker) State() State {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

// OutputFiles returns the tracked output file paths, in first-seen order.
func (t *Tracker) OutputFiles() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]string, len(t.outputs))
	copy(out, t.outputs)
	return out
}

// TrackCall records the lifecycle effect of one tool call. It never blocks
// or rejects: tracking is pure observation.
func (t *Tracker) TrackCall(toolName string, kwargs map[string]any) {
	base := t.matchName(toolName)

	t.mu.Lock()
	defer t.mu.Unlock()

	for _, open := range t.cfg.OpenTools {
		if base == open {
			t.state = Opened
			t.cleanupDone = false
			break
		}
	}
	if t.cfg.CloseTool != "" && base == t.cfg.CloseTool {
		t.state = Closed
	}

	for _, param := range t.cfg.OutputParams {
		value, ok := kwargs[param].(string)
		if !ok || value == "" {
			continue
		}
		if !filepath.IsAbs(value) {
			value = filepath.Join(t.cfg.TempDir, value)
		}
		if _, seen := t.outputSet[value]; !seen {
			t.outputSet[value] = struct{}{}
			t.outputs = append(t.outputs, value)
		}
	}
}

// NewHook wraps next with call tracking. Tracking runs before next, so a
// blocked call is still observed; the lifecycle must reflect what the agent
// attempted, not only what succeeded.
func (t *Tracker) NewHook(next guard.Hook) guard.Hook {
	return func(ctx context.Context, call guard.ToolCallFunc, name string, args map[string]any) (guard.ToolResult, error) {
		t.TrackCall(name, args)
		return next(ctx, call, name, args)
	}
}

// NeedsCleanup reports whether there is pending teardown work: an open
// session or tracked files, and no completed cleanup.
func (t *Tracker) NeedsCleanup() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.cleanupDone {
		return false
	}
	return t.state == Opened || len(t.outputs) > 0
}

// Cleanup closes an open session through call (when provided) and reclaims
// tracked and stale files. Repeat calls after a completed cleanup are
// skipped. A session that cannot be closed — no call function, or the close
// call failed — is left open: NeedsCleanup keeps reporting it so a later
// sweep with a live server can still close it.
func (t *Tracker) Cleanup(ctx context.Context, call guard.ToolCallFunc) (registry.CleanupResult, error) {
	t.mu.Lock()
	if t.cleanupDone {
		t.mu.Unlock()
		return registry.CleanupResult{Skipped: true}, nil
	}
	open := t.state == Opened
	t.mu.Unlock()

	var result registry.CleanupResult
	closed := !open
	if open {
		switch {
		case call == nil || t.cfg.CloseTool == "":
			t.cfg.Logger.Warn("no call function available, leaving session open",
				zap.String("tool", t.cfg.CloseTool),
			)
		default:
			if _, err := call(ctx, t.cfg.CloseTool, nil); err != nil {
				t.cfg.Logger.Warn("session close failed during cleanup",
					zap.String("tool", t.cfg.CloseTool),
					zap.Error(err),
				)
			} else {
				closed = true
				result.SessionClosed = true
			}
		}
	}

	t.mu.Lock()
	if closed {
		if open {
			t.state = Closed
		}
		t.cleanupDone = true
	}
	t.mu.Unlock()

	result.FilesDeleted = t.reclaimFiles()
	return result, nil
}

// CleanupFiles reclaims tracked output files and stale temp files without
// touching the session. Safe to call at any time; returns the count deleted.
func (t *Tracker) CleanupFiles() int {
	return t.reclaimFiles()
}

// Reset clears all tracked state so the tracker can serve a new run.
func (t *Tracker) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.state = Idle
	t.outputs = nil
	t.outputSet = make(map[string]struct{})
	t.cleanupDone = false
}

func (t *Tracker) reclaimFiles() int {
	t.mu.Lock()
	tracked := t.outputs
	t.outputs = nil
	t.outputSet = make(map[string]struct{})
	t.mu.Unlock()

	deleted := 0
	for _, path := range tracked {
		if removeIfExists(path) {
			deleted++
		}
	}
	deleted += t.reclaimStaleTempFiles()

	if deleted > 0 {
		t.cfg.Logger.Info("reclaimed session files", zap.Int("count", deleted))
	}
	return deleted
}

// reclaimStaleTempFiles removes temp-dir files matching the configured
// patterns whose modification time is older than MaxAge. Age guards against
// deleting files that a concurrent run is still producing.
func (t *Tracker) reclaimStaleTempFiles() int {
	deleted := 0
	cutoff := time.Now().Add(-t.cfg.MaxAge)
	for _, pattern := range t.cfg.TempPatterns {
		matches, err := filepath.Glob(filepath.Join(t.cfg.TempDir, pattern))
		if err != nil {
			continue
		}
		for _, path := range matches {
			info, err := os.Stat(path)
			if err != nil || info.IsDir() || info.ModTime().After(cutoff) {
				continue
			}
			if removeIfExists(path) {
				deleted++
			}
		}
	}
	return deleted
}

func (t *Tracker) matchName(toolName string) string {
	name := strings.ToLower(toolName)
	for _, prefix := range t.cfg.StripPrefixes {
		if rest, ok := strings.CutPrefix(name, strings.ToLower(prefix)); ok {
			return rest
		}
	}
	return name
}

func removeIfExists(path string) bool {
	if err := os.Remove(path); err != nil {
		return false
	}
	return true
}

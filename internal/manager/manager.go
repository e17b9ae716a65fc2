// Package manager assembles tool servers for one agent run: it loads
// descriptors from every configured source, launches available servers with
// the composed hook chain installed, and tears everything down afterwards.
package manager

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/warden-ai/warden/internal/audit"
	"github.com/warden-ai/warden/internal/guard"
	"github.com/warden-ai/warden/internal/registry"
)

// Server is the manager's view of a connected tool server. Satisfied by
// *StdioServer; stubbed in tests.
type Server interface {
	Key() string
	Tools() []string
	CallTool(ctx context.Context, name string, args map[string]any) (guard.ToolResult, error)
	Close() error
}

// DescriptorSource is an external descriptor store the manager overlays on
// top of discovery. Satisfied by *registry.PostgresSource.
type DescriptorSource interface {
	// LoadAll returns every descriptor in the source, keyed by server key.
	LoadAll(ctx context.Context) (map[string]*registry.Descriptor, error)
	// GetServer resolves one key; nil means the source has no row for it.
	GetServer(ctx context.Context, key string) (*registry.Descriptor, error)
}

// Options configures a Manager for one run.
type Options struct {
	// Registry supplies descriptors; nil selects the process-wide registry.
	Registry *registry.Registry
	// Providers are passed to the registry's discovery pass.
	Providers []registry.Provider
	// ConfigPath optionally overlays descriptors from a JSON file.
	// File entries win over builtin registrations on key collision.
	ConfigPath string
	// Source optionally overlays descriptors from an external store
	// (Postgres in production). Store entries win over everything else at
	// startup, and Connect falls back to a keyed lookup for servers that
	// were added to the store after the run began.
	Source DescriptorSource

	Policy *guard.Policy
	Logger *zap.Logger
	// Audit receives one event per guardrail decision. Optional.
	Audit audit.Writer
}

// Manager owns the tool servers of a single agent run. Not safe for
// concurrent use: the run's control flow is single-threaded and calls are
// sequential.
type Manager struct {
	runID  string
	policy *guard.Policy
	logger *zap.Logger
	writer audit.Writer
	source DescriptorSource

	descriptors map[string]*registry.Descriptor
	rules       []*guard.RuleSet
	servers     map[string]Server

	// connect is swapped in tests to avoid launching subprocesses.
	connect func(ctx context.Context, key string, desc *registry.Descriptor, hook guard.Hook, logger *zap.Logger) (Server, error)
}

// New builds a manager, loading descriptors from discovery, then the JSON
// config, then Postgres. Later sources win per key. A failing optional
// source logs a warning and is skipped; the run proceeds with what loaded.
func New(ctx context.Context, opts Options) (*Manager, error) {
	reg := opts.Registry
	if reg == nil {
		reg = registry.Default()
	}
	policy := opts.Policy
	if policy == nil {
		policy = guard.DefaultPolicy()
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	descriptors := reg.Discover(opts.Providers...)

	if opts.ConfigPath != "" {
		fromFile, err := registry.LoadJSON(opts.ConfigPath)
		if err != nil {
			return nil, fmt.Errorf("manager: %w", err)
		}
		descriptors = registry.Merge(descriptors, fromFile)
	}

	if opts.Source != nil {
		fromStore, err := opts.Source.LoadAll(ctx)
		if err != nil {
			logger.Warn("descriptor store unavailable, continuing without overlay", zap.Error(err))
		} else {
			descriptors = registry.Merge(descriptors, fromStore)
		}
	}

	m := &Manager{
		runID:       uuid.NewString(),
		policy:      policy,
		logger:      logger,
		writer:      opts.Audit,
		source:      opts.Source,
		descriptors: descriptors,
		rules:       aggregateRules(descriptors),
		servers:     make(map[string]Server),
	}
	m.connect = func(ctx context.Context, key string, desc *registry.Descriptor, hook guard.Hook, logger *zap.Logger) (Server, error) {
		return startStdioServer(ctx, key, desc, hook, logger)
	}
	return m, nil
}

// aggregateRules collects every rule set contributed by a descriptor, in
// stable key order. The decision engine sees the union regardless of which
// servers actually connect.
func aggregateRules(descriptors map[string]*registry.Descriptor) []*guard.RuleSet {
	keys := make([]string, 0, len(descriptors))
	for key, d := range descriptors {
		if d.Rules != nil {
			keys = append(keys, key)
		}
	}
	sort.Strings(keys)

	out := make([]*guard.RuleSet, 0, len(keys))
	for _, key := range keys {
		out = append(out, descriptors[key].Rules)
	}
	return out
}

// RunID returns the run identifier stamped onto audit events.
func (m *Manager) RunID() string {
	return m.runID
}

// Descriptors returns the merged descriptor map this run operates on.
func (m *Manager) Descriptors() map[string]*registry.Descriptor {
	out := make(map[string]*registry.Descriptor, len(m.descriptors))
	for key, d := range m.descriptors {
		out[key] = d
	}
	return out
}

// Connect launches the server registered under key. Unknown keys and
// unavailable servers are errors; connecting twice returns the live handle.
// Keys missing from the startup overlay are resolved against the external
// store, so a server added there mid-run is reachable without a restart.
func (m *Manager) Connect(ctx context.Context, key string) (Server, error) {
	if s, ok := m.servers[key]; ok {
		return s, nil
	}
	desc, ok := m.descriptors[key]
	if !ok && m.source != nil {
		d, err := m.source.GetServer(ctx, key)
		if err != nil {
			return nil, fmt.Errorf("manager: resolve server %q: %w", key, err)
		}
		if d != nil {
			m.descriptors[key] = d
			if d.Rules != nil {
				m.rules = append(m.rules, d.Rules)
			}
			desc, ok = d, true
		}
	}
	if !ok {
		return nil, fmt.Errorf("manager: unknown server %q", key)
	}
	if !desc.Available() {
		return nil, fmt.Errorf("manager: server %q unavailable (missing env: %v)", key, desc.MissingEnv())
	}

	s, err := m.connect(ctx, key, desc, m.buildHook(key, desc), m.logger)
	if err != nil {
		return nil, err
	}
	m.servers[key] = s
	m.logger.Info("tool server connected",
		zap.String("server", key),
		zap.String("run_id", m.runID),
	)
	return s, nil
}

// ConnectAll connects every available server, best-effort: failures are
// logged and skipped so one bad server cannot sink the run.
func (m *Manager) ConnectAll(ctx context.Context) map[string]Server {
	keys := make([]string, 0, len(m.descriptors))
	for key := range m.descriptors {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	for _, key := range keys {
		desc := m.descriptors[key]
		if !desc.Available() {
			m.logger.Info("skipping unavailable server",
				zap.String("server", key),
				zap.Strings("missing_env", desc.MissingEnv()),
			)
			continue
		}
		if _, err := m.Connect(ctx, key); err != nil {
			m.logger.Warn("tool server failed to connect",
				zap.String("server", key),
				zap.Error(err),
			)
		}
	}
	return m.Servers()
}

// Servers returns the connected servers by key.
func (m *Manager) Servers() map[string]Server {
	out := make(map[string]Server, len(m.servers))
	for key, s := range m.servers {
		out[key] = s
	}
	return out
}

// DisconnectAll closes every connected server and drops the handles.
// It does not run cleanup hooks; call CleanupAll first.
func (m *Manager) DisconnectAll() {
	for key, s := range m.servers {
		if err := s.Close(); err != nil {
			m.logger.Debug("server close", zap.String("server", key), zap.Error(err))
		}
		delete(m.servers, key)
	}
}

// NeedsCleanup reports whether any server has pending teardown work.
func (m *Manager) NeedsCleanup() bool {
	for _, desc := range m.descriptors {
		if desc.Cleanup != nil && desc.Cleanup.NeedsCleanup != nil && desc.Cleanup.NeedsCleanup() {
			return true
		}
	}
	return false
}

// CleanupAll runs every server's cleanup hook. Connected servers get a call
// function so open sessions can be closed over the wire; errors are captured
// per server and never abort the sweep.
func (m *Manager) CleanupAll(ctx context.Context) map[string]registry.CleanupResult {
	results := make(map[string]registry.CleanupResult)
	for key, desc := range m.descriptors {
		if desc.Cleanup == nil || desc.Cleanup.Cleanup == nil {
			continue
		}

		var call guard.ToolCallFunc
		if s, ok := m.servers[key]; ok {
			call = s.CallTool
		}

		result, err := desc.Cleanup.Cleanup(ctx, call)
		if err != nil {
			m.logger.Warn("server cleanup failed",
				zap.String("server", key),
				zap.Error(err),
			)
			result.Err = err
		}
		results[key] = result
	}
	return results
}

// CleanupFilesSync reclaims tracked files across all servers without
// touching live sessions. Returns the total count deleted.
func (m *Manager) CleanupFilesSync() int {
	total := 0
	for _, desc := range m.descriptors {
		if desc.Cleanup != nil && desc.Cleanup.CleanupFilesSync != nil {
			total += desc.Cleanup.CleanupFilesSync()
		}
	}
	return total
}

// ResetTrackers resets every server's tracker state for a fresh run.
func (m *Manager) ResetTrackers() {
	for _, desc := range m.descriptors {
		if desc.Cleanup != nil && desc.Cleanup.Reset != nil {
			desc.Cleanup.Reset()
		}
	}
}

// buildHook composes the hook chain for one server. The guardrail hook is
// innermost above the real call; the server's tracking hook (when present)
// wraps it, so lifecycle state reflects even blocked attempts.
func (m *Manager) buildHook(key string, desc *registry.Descriptor) guard.Hook {
	hook := guard.NewHook(guard.HookConfig{
		Policy:     m.policy,
		Rules:      m.rules,
		Logger:     m.logger,
		OnDecision: m.decisionRecorder(key),
	})
	if desc.Cleanup != nil && desc.Cleanup.CreateHook != nil {
		hook = desc.Cleanup.CreateHook(hook)
	}
	return hook
}

// decisionRecorder feeds the audit trail. A nil writer disables recording.
func (m *Manager) decisionRecorder(serverKey string) func(string, map[string]any, *guard.Violation, time.Duration) {
	if m.writer == nil {
		return nil
	}
	return func(toolName string, args map[string]any, v *guard.Violation, elapsed time.Duration) {
		event := &audit.Event{
			EventID:     uuid.NewString(),
			RunID:       m.runID,
			Timestamp:   time.Now().UTC(),
			Server:      serverKey,
			ToolName:    toolName,
			Decision:    audit.DecisionAllowed,
			PrincipalID: m.policy.PrincipalID,
			LatencyMs:   float32(elapsed.Seconds() * 1000),
		}
		if raw, err := json.Marshal(args); err == nil {
			event.ArgumentsJSON = string(raw)
		}
		if v != nil {
			event.Decision = audit.DecisionBlocked
			event.ViolationType = string(v.Type)
			event.Reason = v.Message
		}
		m.writer.Write(event)
	}
}

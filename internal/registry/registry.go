package registry

import (
	"context"
	"errors"
	"os"
	"sort"
	"strings"
	"sync"

	"github.com/warden-ai/warden/internal/guard"
)

// Descriptor is the registration record for one tool server: how to launch
// it, whether it can run in this environment, and which guardrail rules and
// cleanup hooks it contributes.
type Descriptor struct {
	Name        string
	Description string
	Command     string
	Args        []string
	Env         map[string]string
	Enabled     bool
	RequiredEnv []string

	// ToolPrefix is prepended (with an underscore) to every tool name the
	// server exposes, to avoid collisions between servers.
	ToolPrefix string

	Rules   *guard.RuleSet
	Cleanup *CleanupHooks
}

// Available reports whether the server can run: it is enabled and every
// required environment variable is set in the process environment.
func (d *Descriptor) Available() bool {
	return d.Enabled && len(d.MissingEnv()) == 0
}

// MissingEnv lists the required environment variables that are not set.
func (d *Descriptor) MissingEnv() []string {
	var missing []string
	for _, key := range d.RequiredEnv {
		if os.Getenv(key) == "" {
			missing = append(missing, key)
		}
	}
	return missing
}

// CleanupResult reports what a server's cleanup actually did. Err carries a
// per-server failure so one broken server cannot hide behind the others in a
// cleanup sweep.
type CleanupResult struct {
	SessionClosed bool
	FilesDeleted  int
	Skipped       bool
	Err           error
}

// CleanupHooks are the optional lifecycle hooks a server registers alongside
// its descriptor. The manager discovers them through the registry; absence
// means the server needs no special lifecycle handling.
type CleanupHooks struct {
	// CreateHook wraps an existing interception hook with a tracking layer.
	// Tracking observes first, then the wrapped hook decides, then the real
	// call runs.
	CreateHook func(existing guard.Hook) guard.Hook

	// NeedsCleanup reports whether the server has pending teardown work.
	NeedsCleanup func() bool

	// Cleanup performs teardown, closing live sessions through the supplied
	// call function when one is given.
	Cleanup func(ctx context.Context, call guard.ToolCallFunc) (CleanupResult, error)

	// CleanupFilesSync reclaims tracked files only; returns the count deleted.
	CleanupFilesSync func() int

	// Reset clears tracker state so the hooks can serve a new run.
	Reset func()
}

// ErrEmptyKey is returned when a descriptor is registered under an empty or
// whitespace-only key.
var ErrEmptyKey = errors.New("registry: server key must not be empty")

// Provider registers one or more descriptors into a registry. Discovery is
// an explicit pass over a known provider list, so tests can reset and re-run
// it deterministically.
type Provider func(*Registry)

// Registry collects tool-server descriptors from independent registration
// sites. It is populated once by discovery at startup and treated as
// read-only afterwards; Reset exists for tests.
type Registry struct {
	mu         sync.Mutex
	servers    map[string]*Descriptor
	discovered bool
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{servers: make(map[string]*Descriptor)}
}

var std = NewRegistry()

// Default returns the process-wide registry that builtin providers
// register into.
func Default() *Registry {
	return std
}

// Register stores a descriptor under key. Last write wins: re-registering a
// key silently replaces the previous descriptor. The key must contain at
// least one non-space character.
func (r *Registry) Register(key string, d *Descriptor) (*Descriptor, error) {
	if strings.TrimSpace(key) == "" {
		return nil, ErrEmptyKey
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.servers[key] = d
	return d, nil
}

// Discover runs the given providers once and returns the accumulated
// descriptors. Later calls return the cached result without re-running
// providers, until Reset.
func (r *Registry) Discover(providers ...Provider) map[string]*Descriptor {
	r.mu.Lock()
	ran := r.discovered
	r.discovered = true
	r.mu.Unlock()

	if !ran {
		for _, provide := range providers {
			provide(r)
		}
	}
	return r.All()
}

// All returns a copy of the registered descriptor map.
func (r *Registry) All() map[string]*Descriptor {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make(map[string]*Descriptor, len(r.servers))
	for key, d := range r.servers {
		out[key] = d
	}
	return out
}

// Get returns the descriptor registered under key, or nil.
func (r *Registry) Get(key string) *Descriptor {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.servers[key]
}

// RuleSets returns the rule sets of every descriptor that contributes one,
// in stable key order, for aggregation by the decision engine.
func (r *Registry) RuleSets() []*guard.RuleSet {
	r.mu.Lock()
	defer r.mu.Unlock()

	keys := make([]string, 0, len(r.servers))
	for key, d := range r.servers {
		if d.Rules != nil {
			keys = append(keys, key)
		}
	}
	sort.Strings(keys)

	out := make([]*guard.RuleSet, 0, len(keys))
	for _, key := range keys {
		out = append(out, r.servers[key].Rules)
	}
	return out
}

// Reset clears all registrations and the discovery cache. Test-only; never
// call concurrently with live runs.
func (r *Registry) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.servers = make(map[string]*Descriptor)
	r.discovered = false
}

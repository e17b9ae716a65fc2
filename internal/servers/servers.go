// Package servers holds the builtin tool-server registrations. Each server
// lives in its own file and is self-contained: removing the file removes the
// server, its guardrail rules, and its cleanup hooks.
package servers

import "github.com/warden-ai/warden/internal/registry"

// All returns the builtin providers in registration order. The manager (and
// tests) pass these to Registry.Discover; registration is an explicit pass,
// not an import side effect.
func All() []registry.Provider {
	return []registry.Provider{
		Filesystem,
		Memory,
		Browser,
		GitHub,
	}
}

// Discover registers every builtin provider into the process-wide registry
// and returns the resulting descriptors.
func Discover() map[string]*registry.Descriptor {
	return registry.Default().Discover(All()...)
}

package servers

import (
	"testing"

	"github.com/warden-ai/warden/internal/guard"
	"github.com/warden-ai/warden/internal/registry"
)

func discover(t *testing.T) *registry.Registry {
	t.Helper()
	r := registry.NewRegistry()
	r.Discover(All()...)
	return r
}

func TestBuiltinServersRegistered(t *testing.T) {
	r := discover(t)
	all := r.All()

	for _, key := range []string{"filesystem", "memory", "browser", "github"} {
		if _, ok := all[key]; !ok {
			t.Fatalf("builtin server %q not registered", key)
		}
	}
}

func TestGitHubRequiresToken(t *testing.T) {
	t.Setenv("GITHUB_TOKEN", "")
	r := registry.NewRegistry()
	r.Discover(GitHub)

	d := r.Get("github")
	if d.Available() {
		t.Fatal("github should be unavailable without GITHUB_TOKEN")
	}
	if d.ToolPrefix != "gh" {
		t.Fatalf("ToolPrefix = %q", d.ToolPrefix)
	}
}

func TestMemoryPrefix(t *testing.T) {
	r := discover(t)
	if got := r.Get("memory").ToolPrefix; got != "mem" {
		t.Fatalf("memory prefix = %q", got)
	}
}

func TestAggregatedRulesBlockFilesystemWrites(t *testing.T) {
	r := discover(t)
	c := guard.NewChecker(guard.DefaultPolicy(), r.RuleSets(), nil)

	if err := c.Check("write_file", nil, map[string]any{"path": "src/main.go"}); err == nil {
		t.Fatal("expected write_file to be blocked by filesystem rules")
	}
	if err := c.Check("write_file", nil, map[string]any{"path": "data/out.txt"}); err != nil {
		t.Fatalf("safe-zone write blocked: %v", err)
	}
}

func TestAggregatedRulesBlockSensitiveDefaults(t *testing.T) {
	r := discover(t)
	c := guard.NewChecker(guard.DefaultPolicy(), r.RuleSets(), nil)

	blocked := []string{
		".env",
		"keys/server.pem",
		"/home/dev/.ssh/id_rsa",
		"/opt/app/secrets/db.yaml",
		"backup.sqlite",
	}
	for _, path := range blocked {
		if err := c.Check("read_file", nil, map[string]any{"path": path}); err == nil {
			t.Fatalf("expected %q to be blocked", path)
		}
	}

	// Safe overrides for documentation stand-ins.
	if err := c.Check("read_file", nil, map[string]any{"path": ".env.example"}); err != nil {
		t.Fatalf(".env.example blocked: %v", err)
	}
}

func TestBrowserCleanupHooksWired(t *testing.T) {
	r := discover(t)
	d := r.Get("browser")

	if d.Cleanup == nil {
		t.Fatal("browser has no cleanup hooks")
	}
	if d.Cleanup.CreateHook == nil || d.Cleanup.Cleanup == nil || d.Cleanup.Reset == nil {
		t.Fatal("browser cleanup hooks incomplete")
	}
	if d.Cleanup.NeedsCleanup() {
		t.Fatal("fresh browser tracker should not need cleanup")
	}
	if d.Rules == nil || d.Rules.CustomCheck == nil {
		t.Fatal("browser schema check not wired")
	}
}

func TestBrowserSchemaCheckRejectsBadNavigate(t *testing.T) {
	r := discover(t)
	c := guard.NewChecker(guard.DefaultPolicy(), r.RuleSets(), nil)

	if err := c.Check("browser_navigate", nil, map[string]any{"url": ""}); err == nil {
		t.Fatal("expected empty url to fail schema validation")
	}
	if err := c.Check("browser_navigate", nil, map[string]any{"url": "https://example.com"}); err != nil {
		t.Fatalf("valid navigate blocked: %v", err)
	}
}

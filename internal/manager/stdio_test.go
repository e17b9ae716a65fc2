package manager

import (
	"strings"
	"testing"

	"github.com/warden-ai/warden/internal/registry"
)

func TestMergedEnvDescriptorWins(t *testing.T) {
	t.Setenv("WARDEN_TEST_VAR", "from-process")

	env := mergedEnv(map[string]string{"WARDEN_TEST_VAR": "from-descriptor", "EXTRA": "1"})

	// Descriptor entries are appended after the process environment, so
	// they win for exec-style lookup (last assignment takes effect).
	last := ""
	sawExtra := false
	for _, kv := range env {
		if strings.HasPrefix(kv, "WARDEN_TEST_VAR=") {
			last = kv
		}
		if kv == "EXTRA=1" {
			sawExtra = true
		}
	}
	if last != "WARDEN_TEST_VAR=from-descriptor" {
		t.Fatalf("last assignment = %q", last)
	}
	if !sawExtra {
		t.Fatal("descriptor-only var missing")
	}
}

func TestToolNamePrefixing(t *testing.T) {
	s := &StdioServer{desc: &registry.Descriptor{ToolPrefix: "gh"}}

	if got := s.prefixed("create_issue"); got != "gh_create_issue" {
		t.Fatalf("prefixed = %q", got)
	}
	if got := s.unprefixed("gh_create_issue"); got != "create_issue" {
		t.Fatalf("unprefixed = %q", got)
	}
	// Unprefixed names pass through untouched.
	if got := s.unprefixed("create_issue"); got != "create_issue" {
		t.Fatalf("unprefixed passthrough = %q", got)
	}

	bare := &StdioServer{desc: &registry.Descriptor{}}
	if got := bare.prefixed("read_file"); got != "read_file" {
		t.Fatalf("no-prefix server changed name: %q", got)
	}
}

package guard

import (
	"sort"
	"testing"
)

func TestBaseToolName(t *testing.T) {
	cases := []struct {
		name string
		want string
	}{
		{"gh_create_issue", "create_issue"},
		{"mem_read_graph", "read_graph"},
		{"sentry_update_issue", "update_issue"},
		{"browser_navigate", "navigate"},
		{"read_file", "file"},
		{"readfile", "readfile"},
		// 13-rune leading segment: beyond the threshold, not a prefix.
		{"orchestration_update_issue", "orchestration_update_issue"},
		{"trailing_", "trailing_"},
	}
	for _, tc := range cases {
		if got := BaseToolName(tc.name, 0); got != tc.want {
			t.Fatalf("BaseToolName(%q) = %q, want %q", tc.name, got, tc.want)
		}
	}
}

func TestBaseToolNameCustomThreshold(t *testing.T) {
	if got := BaseToolName("orchestration_update_issue", 20); got != "update_issue" {
		t.Fatalf("got %q", got)
	}
	if got := BaseToolName("gh_create_issue", 1); got != "gh_create_issue" {
		t.Fatalf("got %q", got)
	}
}

func TestExtractPathsFromKwargs(t *testing.T) {
	paths := ExtractPaths(nil, map[string]any{
		"path":        "a.txt",
		"file_path":   "b.txt",
		"destination": "c/d.txt",
		"paths":       []string{"e.txt", "f.txt"},
		"content":     "not/a/path/param",
		"count":       3,
	})

	sort.Strings(paths)
	want := []string{"a.txt", "b.txt", "c/d.txt", "e.txt", "f.txt"}
	if len(paths) != len(want) {
		t.Fatalf("paths = %v, want %v", paths, want)
	}
	for i := range want {
		if paths[i] != want[i] {
			t.Fatalf("paths = %v, want %v", paths, want)
		}
	}
}

func TestExtractPathsFromPositionalArgs(t *testing.T) {
	paths := ExtractPaths([]any{"src/main.go", "plainword", 42, []any{"docs/x.md"}}, nil)

	if len(paths) != 2 || paths[0] != "src/main.go" || paths[1] != "docs/x.md" {
		t.Fatalf("paths = %v", paths)
	}
}

func TestExtractPathsMixedListValues(t *testing.T) {
	paths := ExtractPaths(nil, map[string]any{
		"paths": []any{"a.txt", 1, nil, "b.txt"},
	})
	if len(paths) != 2 {
		t.Fatalf("paths = %v", paths)
	}
}

func TestGlobMatch(t *testing.T) {
	cases := []struct {
		pattern string
		name    string
		want    bool
	}{
		{"*.db", "users.db", true},
		{"*.db", "users.dbx", false},
		{".env*", ".env.production", true},
		{"*/.ssh/*", "/home/user/.ssh/config", true},
		{"*/.ssh/*", "home/.sshx/config", false},
		{"id_rsa*", "id_rsa.pub", true},
		{"?.txt", "a.txt", true},
		{"?.txt", "ab.txt", false},
		// '*' crosses path separators.
		{"*secret*", "deep/dir/secret/file", true},
	}
	for _, tc := range cases {
		if got := globMatch(tc.pattern, tc.name); got != tc.want {
			t.Fatalf("globMatch(%q, %q) = %v, want %v", tc.pattern, tc.name, got, tc.want)
		}
	}
}

func TestNormalizePath(t *testing.T) {
	if got := normalizePath(`C:\Users\Dev\.ENV`); got != "c:/users/dev/.env" {
		t.Fatalf("got %q", got)
	}
}

package registry

import (
	"os"
	"path/filepath"
	"testing"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "servers.json")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadJSON(t *testing.T) {
	t.Setenv("SLACK_TOKEN", "xoxb-123")
	t.Setenv("SLACK_HOME", "/opt/slack")

	path := writeConfig(t, `{
		"servers": {
			"slack-bot": {
				"command": "npx",
				"args": ["-y", "@example/slack-server", "${SLACK_HOME}/bin"],
				"env": {"SLACK_TOKEN": "${SLACK_TOKEN}"},
				"description": "Team chat bridge",
				"toolPrefix": "slack"
			},
			"off": {
				"command": "true",
				"enabled": false
			}
		}
	}`)

	descs, err := LoadJSON(path)
	if err != nil {
		t.Fatalf("LoadJSON: %v", err)
	}
	if len(descs) != 2 {
		t.Fatalf("got %d descriptors", len(descs))
	}

	slack := descs["slack-bot"]
	if slack.Name != "Slack Bot" {
		t.Fatalf("Name = %q", slack.Name)
	}
	if slack.Description != "Team chat bridge" {
		t.Fatalf("Description = %q", slack.Description)
	}
	if slack.Env["SLACK_TOKEN"] != "xoxb-123" {
		t.Fatalf("env not expanded: %q", slack.Env["SLACK_TOKEN"])
	}
	if got := slack.Args[2]; got != "/opt/slack/bin" {
		t.Fatalf("args not expanded: %q", got)
	}
	if len(slack.RequiredEnv) != 1 || slack.RequiredEnv[0] != "SLACK_TOKEN" {
		t.Fatalf("RequiredEnv = %v", slack.RequiredEnv)
	}
	if slack.ToolPrefix != "slack" {
		t.Fatalf("ToolPrefix = %q", slack.ToolPrefix)
	}
	if !slack.Enabled {
		t.Fatal("slack-bot should be enabled")
	}

	if descs["off"].Enabled {
		t.Fatal("server with enabled:false must not be enabled")
	}
	if descs["off"].Description == "" {
		t.Fatal("missing description should get a default")
	}
}

func TestLoadJSONEnabledDefaultsTrue(t *testing.T) {
	path := writeConfig(t, `{"servers": {"plain": {"command": "true"}}}`)

	descs, err := LoadJSON(path)
	if err != nil {
		t.Fatalf("LoadJSON: %v", err)
	}
	if !descs["plain"].Enabled {
		t.Fatal("servers without an enabled key default to enabled")
	}
}

func TestLoadJSONRejectsMalformed(t *testing.T) {
	path := writeConfig(t, `{"servers": [`)
	if _, err := LoadJSON(path); err == nil {
		t.Fatal("expected parse error")
	}
}

func TestLoadJSONMissingFile(t *testing.T) {
	if _, err := LoadJSON(filepath.Join(t.TempDir(), "absent.json")); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestMergeOverridePrecedence(t *testing.T) {
	base := map[string]*Descriptor{
		"alpha": {Name: "Builtin Alpha"},
		"beta":  {Name: "Builtin Beta"},
	}
	override := map[string]*Descriptor{
		"alpha": {Name: "File Alpha"},
		"gamma": {Name: "File Gamma"},
	}

	merged := Merge(base, override)
	if len(merged) != 3 {
		t.Fatalf("merged has %d entries", len(merged))
	}
	if merged["alpha"].Name != "File Alpha" {
		t.Fatalf("override did not win: %q", merged["alpha"].Name)
	}
	if merged["beta"].Name != "Builtin Beta" {
		t.Fatal("base entry lost")
	}
}

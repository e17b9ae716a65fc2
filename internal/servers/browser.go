package servers

import (
	"context"

	"github.com/warden-ai/warden/internal/guard"
	"github.com/warden-ai/warden/internal/registry"
	"github.com/warden-ai/warden/internal/session"
)

// Browser tool names that indicate a live browser session.
var browserOpenTools = []string{
	"browser_navigate",
	"browser_navigate_back",
	"browser_click",
	"browser_type",
	"browser_fill_form",
	"browser_take_screenshot",
	"browser_snapshot",
	"browser_hover",
	"browser_drag",
	"browser_select_option",
	"browser_press_key",
	"browser_evaluate",
	"browser_wait_for",
	"browser_handle_dialog",
	"browser_file_upload",
	"browser_tabs",
	"browser_network_requests",
	"browser_console_messages",
	"browser_run_code",
	"browser_resize",
}

const browserCloseTool = "browser_close"

// Screenshot files the server drops in the temp dir; reclaimed during
// cleanup once they are stale.
var screenshotPatterns = []string{
	"screenshot_*.png",
	"playwright_screenshot_*.png",
	"browser_screenshot_*.png",
}

var browserWriteTools = []string{
	"browser_file_upload",
	"browser_run_code",
	"browser_evaluate",
}

// browserSchemas validates the arguments of the tools that take paths or
// URLs, so malformed calls are rejected before they reach the subprocess.
var browserSchemas = map[string]map[string]any{
	"browser_navigate": {
		"type":                 "object",
		"required":             []any{"url"},
		"additionalProperties": true,
		"properties": map[string]any{
			"url": map[string]any{"type": "string", "minLength": 1},
		},
	},
	"browser_take_screenshot": {
		"type":                 "object",
		"additionalProperties": true,
		"properties": map[string]any{
			"path":     map[string]any{"type": "string"},
			"fullPage": map[string]any{"type": "boolean"},
		},
	},
}

// Browser registers the headless browser automation server, with a session
// tracker wired through the cleanup hooks so an abandoned browser gets
// closed and stray screenshots get reclaimed after the run.
func Browser(r *registry.Registry) {
	tracker := session.NewTracker(session.Config{
		OpenTools:     browserOpenTools,
		CloseTool:     browserCloseTool,
		OutputParams:  []string{"path"},
		TempPatterns:  screenshotPatterns,
		StripPrefixes: []string{"playwright_", "pw_"},
	})

	rules := &guard.RuleSet{WriteTools: browserWriteTools}
	if check, err := guard.NewSchemaCheck(browserSchemas); err == nil {
		rules.CustomCheck = check
	}

	r.Register("browser", &registry.Descriptor{
		Name:        "Browser",
		Description: "Browser automation for web testing, scraping, and interactions",
		Command:     "npx",
		Args:        []string{"-y", "@playwright/mcp@latest", "--headless", "--viewport-size=1920x1080"},
		Enabled:     true,
		Rules:       rules,
		Cleanup: &registry.CleanupHooks{
			CreateHook:   tracker.NewHook,
			NeedsCleanup: tracker.NeedsCleanup,
			Cleanup: func(ctx context.Context, call guard.ToolCallFunc) (registry.CleanupResult, error) {
				return tracker.Cleanup(ctx, call)
			},
			CleanupFilesSync: tracker.CleanupFiles,
			Reset:            tracker.Reset,
		},
	})
}

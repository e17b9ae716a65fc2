package guard

import (
	"context"
	"strings"
	"testing"
	"time"
)

func echoCall(ctx context.Context, name string, args map[string]any) (ToolResult, error) {
	return ToolResult{{Type: "text", Text: "ok:" + name}}, nil
}

func TestHookForwardsAllowedCalls(t *testing.T) {
	hook := NewHook(HookConfig{Policy: DefaultPolicy(), Rules: testRules()})

	result, err := hook(context.Background(), echoCall, "read_file", map[string]any{"path": "README.md"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(result) != 1 || result[0].Text != "ok:read_file" {
		t.Fatalf("unexpected result: %+v", result)
	}
}

func TestHookBlocksWithoutError(t *testing.T) {
	forwarded := false
	call := func(ctx context.Context, name string, args map[string]any) (ToolResult, error) {
		forwarded = true
		return nil, nil
	}
	hook := NewHook(HookConfig{Policy: DefaultPolicy(), Rules: testRules()})

	result, err := hook(context.Background(), call, "write_file", map[string]any{"path": "src/main.go"})
	if err != nil {
		t.Fatalf("a blocked call must not surface an error, got %v", err)
	}
	if forwarded {
		t.Fatal("blocked call reached the server")
	}
	if len(result) != 1 || result[0].Type != "text" {
		t.Fatalf("unexpected result shape: %+v", result)
	}
	if !strings.HasPrefix(result[0].Text, "[BLOCKED]") {
		t.Fatalf("expected [BLOCKED] marker, got %q", result[0].Text)
	}
	if !strings.Contains(result[0].Text, "data/") {
		t.Fatalf("expected safe-zone hint, got %q", result[0].Text)
	}
}

func TestHookSensitiveFileHint(t *testing.T) {
	hook := NewHook(HookConfig{Policy: DefaultPolicy(), Rules: testRules()})

	result, err := hook(context.Background(), echoCall, "read_file", map[string]any{"path": ".env"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(result[0].Text, "sensitive") {
		t.Fatalf("expected sensitive hint, got %q", result[0].Text)
	}
}

func TestHookReportsDecisions(t *testing.T) {
	var decisions []string
	hook := NewHook(HookConfig{
		Policy: DefaultPolicy(),
		Rules:  testRules(),
		OnDecision: func(toolName string, args map[string]any, v *Violation, elapsed time.Duration) {
			if elapsed < 0 {
				t.Errorf("negative elapsed for %s", toolName)
			}
			if v == nil {
				decisions = append(decisions, toolName+":allowed")
			} else {
				decisions = append(decisions, toolName+":"+string(v.Type))
			}
		},
	})

	hook(context.Background(), echoCall, "read_file", map[string]any{"path": "README.md"})
	hook(context.Background(), echoCall, "write_file", map[string]any{"path": "src/main.go"})

	want := []string{"read_file:allowed", "write_file:write_operation"}
	if len(decisions) != len(want) {
		t.Fatalf("decisions = %v, want %v", decisions, want)
	}
	for i := range want {
		if decisions[i] != want[i] {
			t.Fatalf("decision[%d] = %q, want %q", i, decisions[i], want[i])
		}
	}
}

func TestHookMeasuresForwardedCallLatency(t *testing.T) {
	var elapsed time.Duration
	hook := NewHook(HookConfig{
		Policy: DefaultPolicy(),
		Rules:  testRules(),
		OnDecision: func(_ string, _ map[string]any, _ *Violation, e time.Duration) {
			elapsed = e
		},
	})

	slow := func(ctx context.Context, name string, args map[string]any) (ToolResult, error) {
		time.Sleep(5 * time.Millisecond)
		return ToolResult{{Type: "text", Text: "ok"}}, nil
	}
	if _, err := hook(context.Background(), slow, "read_file", map[string]any{"path": "README.md"}); err != nil {
		t.Fatalf("hook: %v", err)
	}
	if elapsed < 5*time.Millisecond {
		t.Fatalf("elapsed = %v, expected the forwarded call to be included", elapsed)
	}
}

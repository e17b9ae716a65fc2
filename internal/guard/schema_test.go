package guard

import (
	"errors"
	"testing"
)

func navigateSchemas() map[string]map[string]any {
	return map[string]map[string]any{
		"browser_navigate": {
			"type":     "object",
			"required": []any{"url"},
			"properties": map[string]any{
				"url": map[string]any{"type": "string", "minLength": 1},
			},
		},
	}
}

func TestSchemaCheckValidArguments(t *testing.T) {
	check, err := NewSchemaCheck(navigateSchemas())
	if err != nil {
		t.Fatalf("NewSchemaCheck: %v", err)
	}

	p := DefaultPolicy()
	if err := check("browser_navigate", nil, map[string]any{"url": "https://example.com"}, p); err != nil {
		t.Fatalf("expected valid arguments to pass, got %v", err)
	}
}

func TestSchemaCheckInvalidArguments(t *testing.T) {
	check, err := NewSchemaCheck(navigateSchemas())
	if err != nil {
		t.Fatalf("NewSchemaCheck: %v", err)
	}

	p := DefaultPolicy()
	err = check("browser_navigate", nil, map[string]any{"url": 42}, p)
	var v *Violation
	if !errors.As(err, &v) {
		t.Fatalf("expected *Violation, got %v", err)
	}
	if v.Type != ViolationInvalidArguments {
		t.Fatalf("violation type = %s", v.Type)
	}

	if err := check("browser_navigate", nil, map[string]any{}, p); err == nil {
		t.Fatal("expected missing required url to fail")
	}
}

func TestSchemaCheckMatchesPrefixedNames(t *testing.T) {
	check, err := NewSchemaCheck(navigateSchemas())
	if err != nil {
		t.Fatalf("NewSchemaCheck: %v", err)
	}

	p := DefaultPolicy()
	if err := check("pw_browser_navigate", nil, map[string]any{"url": 42}, p); err == nil {
		t.Fatal("expected prefixed name to resolve to the same schema")
	}
}

func TestSchemaCheckIgnoresUnknownTools(t *testing.T) {
	check, err := NewSchemaCheck(navigateSchemas())
	if err != nil {
		t.Fatalf("NewSchemaCheck: %v", err)
	}

	p := DefaultPolicy()
	if err := check("read_file", nil, map[string]any{"path": 42}, p); err != nil {
		t.Fatalf("tools without schemas must pass, got %v", err)
	}
}

func TestSchemaCheckRejectsBadSchema(t *testing.T) {
	_, err := NewSchemaCheck(map[string]map[string]any{
		"bad": {"type": 17},
	})
	if err == nil {
		t.Fatal("expected compile error for malformed schema")
	}
}

package guard

import "testing"

func principalChecker(principal string) *Checker {
	policy := DefaultPolicy()
	policy.ReadOnly = false
	policy.PrincipalID = principal
	return NewChecker(policy, nil, nil)
}

func TestIsolatedWriteWithinOwnScope(t *testing.T) {
	c := principalChecker("U123")

	err := c.Check("create_entities", nil, map[string]any{
		"entities": []any{
			map[string]any{"name": "scope_U123_preferences"},
			map[string]any{"name": "scope_U123_history"},
		},
	})
	if err != nil {
		t.Fatalf("expected own-scope write to pass, got %v", err)
	}
}

func TestIsolatedWriteAcrossScopes(t *testing.T) {
	c := principalChecker("U123")

	err := c.Check("create_entities", nil, map[string]any{
		"entities": []any{
			map[string]any{"name": "scope_U123_preferences"},
			map[string]any{"name": "scope_U456_preferences"},
		},
	})
	v := assertViolation(t, err, ViolationMemoryIsolation)
	if v.ToolName != "create_entities" {
		t.Fatalf("violation tool = %q", v.ToolName)
	}
}

func TestIsolationCoversAllReferenceShapes(t *testing.T) {
	c := principalChecker("U123")

	cases := []struct {
		tool   string
		kwargs map[string]any
	}{
		{"add_observations", map[string]any{
			"observations": []any{map[string]any{"entityName": "scope_U456_notes"}},
		}},
		{"delete_entities", map[string]any{
			"deletions": []any{map[string]any{"entityName": "scope_U456_notes"}},
		}},
		{"create_relations", map[string]any{
			"relations": []any{map[string]any{"from": "scope_U123_a", "to": "scope_U456_b"}},
		}},
		{"open_nodes", map[string]any{
			"names": []any{"scope_U456_notes"},
		}},
		{"delete_observations", map[string]any{
			"entityNames": []string{"scope_U456_notes"},
		}},
	}
	for _, tc := range cases {
		err := c.Check(tc.tool, nil, tc.kwargs)
		assertViolation(t, err, ViolationMemoryIsolation)
	}
}

func TestIsolationAppliesToPrefixedNames(t *testing.T) {
	c := principalChecker("U123")

	err := c.Check("mem_create_entities", nil, map[string]any{
		"entities": []any{map[string]any{"name": "scope_U456_x"}},
	})
	assertViolation(t, err, ViolationMemoryIsolation)
}

func TestIsolatedToolsRequirePrincipal(t *testing.T) {
	c := principalChecker("")

	for _, tool := range []string{"create_entities", "read_graph", "open_nodes"} {
		err := c.Check(tool, nil, map[string]any{})
		assertViolation(t, err, ViolationMemoryNoContext)
	}
}

func TestSearchNodesIsUnrestricted(t *testing.T) {
	// search_nodes never targets entities by identifier; it passes with or
	// without a principal.
	for _, principal := range []string{"", "U123"} {
		c := principalChecker(principal)
		if err := c.Check("search_nodes", nil, map[string]any{"query": "preferences"}); err != nil {
			t.Fatalf("principal %q: expected search_nodes to pass, got %v", principal, err)
		}
	}
}

func TestReadGraphAllowedWithPrincipal(t *testing.T) {
	c := principalChecker("U123")
	if err := c.Check("read_graph", nil, map[string]any{}); err != nil {
		t.Fatalf("expected read_graph to pass with principal, got %v", err)
	}
}

func TestNonGraphToolsSkipIsolation(t *testing.T) {
	c := principalChecker("")
	if err := c.Check("read_file", nil, map[string]any{"path": "README.md"}); err != nil {
		t.Fatalf("expected non-graph tool to pass, got %v", err)
	}
}

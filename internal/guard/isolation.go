package guard

import "fmt"

// Principal isolation tiers. Tool names (base names, after prefix stripping)
// are classified into three tiers: isolated-write tools create or mutate
// principal-scoped state, isolated-read-all tools can read every principal's
// state, and unrestricted-read tools search without targeting entities.
var (
	isolatedWriteTools = map[string]struct{}{
		"create_entities":     {},
		"create_relations":    {},
		"add_observations":    {},
		"delete_entities":     {},
		"delete_observations": {},
		"delete_relations":    {},
	}

	isolatedReadAllTools = map[string]struct{}{
		"read_graph": {},
		"open_nodes": {},
	}

	unrestrictedReadTools = map[string]struct{}{
		"search_nodes": {},
	}
)

// checkPrincipalIsolation enforces that principal-scoped tools only touch
// identifiers carrying the current principal's scope prefix. Isolated tiers
// with no principal set are denied outright; unrestricted-read tools always
// pass.
func (c *Checker) checkPrincipalIsolation(toolName, baseName string, kwargs map[string]any) error {
	if _, ok := unrestrictedReadTools[baseName]; ok {
		return nil
	}
	_, isoWrite := isolatedWriteTools[baseName]
	_, isoRead := isolatedReadAllTools[baseName]
	if !isoWrite && !isoRead {
		return nil
	}

	allowed := c.policy.AllowedScopeEntity()
	if allowed == "" {
		return c.deny(toolName, ViolationMemoryNoContext,
			fmt.Sprintf("tool %q requires a principal context and none is set", toolName))
	}

	for _, ref := range extractEntityRefs(kwargs) {
		if !hasScopePrefix(ref, allowed) {
			return c.deny(toolName, ViolationMemoryIsolation,
				fmt.Sprintf("entity %q is outside the scope of principal %q", ref, c.policy.PrincipalID))
		}
	}

	return nil
}

func hasScopePrefix(ref, allowed string) bool {
	return len(ref) >= len(allowed) && ref[:len(allowed)] == allowed
}

// extractEntityRefs collects every entity or relation identifier referenced
// by a call's keyword arguments, across the shapes the knowledge-graph tools
// use: entities[].name, observations[].entityName, deletions[].entityName,
// relations[].from/.to, entityNames[] and names[].
func extractEntityRefs(kwargs map[string]any) []string {
	var refs []string
	add := func(v any) {
		if s, ok := v.(string); ok && s != "" {
			refs = append(refs, s)
		}
	}

	for key, value := range kwargs {
		switch key {
		case "entities", "observations", "deletions", "relations":
			for _, item := range anySlice(value) {
				m, ok := item.(map[string]any)
				if !ok {
					continue
				}
				switch key {
				case "entities":
					add(m["name"])
				case "observations", "deletions":
					add(m["entityName"])
				case "relations":
					add(m["from"])
					add(m["to"])
				}
			}
		case "entityNames", "names":
			refs = append(refs, stringValues(value)...)
		}
	}

	return refs
}

func anySlice(value any) []any {
	switch v := value.(type) {
	case []any:
		return v
	case []map[string]any:
		out := make([]any, len(v))
		for i, m := range v {
			out[i] = m
		}
		return out
	}
	return nil
}

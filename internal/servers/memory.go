package servers

import (
	"github.com/warden-ai/warden/internal/guard"
	"github.com/warden-ai/warden/internal/registry"
)

// Knowledge-graph tool classification. Principal isolation for these tools
// is enforced by the decision engine itself; the rule set only classifies
// writes for read-only mode.
var (
	memoryWriteTools = []string{
		"create_entities",
		"create_relations",
		"add_observations",
		"delete_entities",
		"delete_observations",
		"delete_relations",
	}

	memoryReadTools = []string{
		"read_graph",
		"search_nodes",
		"open_nodes",
	}
)

// Memory registers the knowledge-graph memory server.
func Memory(r *registry.Registry) {
	r.Register("memory", &registry.Descriptor{
		Name:        "Memory",
		Description: "Persistent knowledge graph of entities, relations and observations",
		Command:     "npx",
		Args:        []string{"-y", "@modelcontextprotocol/server-memory"},
		Enabled:     true,
		ToolPrefix:  "mem",
		Rules: &guard.RuleSet{
			WriteTools:    memoryWriteTools,
			ReadOnlyTools: memoryReadTools,
		},
	})
}

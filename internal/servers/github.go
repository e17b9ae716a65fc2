package servers

import (
	"os"

	"github.com/warden-ai/warden/internal/guard"
	"github.com/warden-ai/warden/internal/registry"
)

var (
	githubWriteTools = []string{
		"create_issue",
		"update_issue",
		"add_issue_comment",
		"create_pull_request",
		"merge_pull_request",
		"create_or_update_file",
		"push_files",
		"create_branch",
		"create_repository",
		"fork_repository",
	}

	githubReadTools = []string{
		"get_issue",
		"list_issues",
		"search_issues",
		"get_pull_request",
		"list_pull_requests",
		"get_file_contents",
		"list_commits",
		"search_code",
		"search_repositories",
	}
)

// GitHub registers the GitHub tool server. It is unavailable until
// GITHUB_TOKEN is set in the environment.
func GitHub(r *registry.Registry) {
	r.Register("github", &registry.Descriptor{
		Name:        "GitHub",
		Description: "Issues, pull requests and repository operations",
		Command:     "npx",
		Args:        []string{"-y", "@modelcontextprotocol/server-github"},
		Env:         map[string]string{"GITHUB_TOKEN": os.Getenv("GITHUB_TOKEN")},
		Enabled:     true,
		RequiredEnv: []string{"GITHUB_TOKEN"},
		ToolPrefix:  "gh",
		Rules: &guard.RuleSet{
			WriteTools:    githubWriteTools,
			ReadOnlyTools: githubReadTools,
		},
	})
}

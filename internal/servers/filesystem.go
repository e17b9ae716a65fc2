package servers

import (
	"github.com/warden-ai/warden/internal/guard"
	"github.com/warden-ai/warden/internal/registry"
)

// Filesystem tool classification. Write tools are blocked in read-only mode
// unless every path they touch is inside a safe zone.
var (
	filesystemWriteTools = []string{
		"write_file",
		"edit_file",
		"create_directory",
		"move_file",
		"delete_file",
	}

	filesystemReadTools = []string{
		"read_file",
		"read_text_file",
		"read_multiple_files",
		"list_directory",
		"directory_tree",
		"search_files",
		"get_file_info",
		"list_allowed_directories",
	}
)

// Default sensitive patterns: credentials, keys and private stores the agent
// must never read, matched against both the filename and the full path.
var (
	filesystemSensitiveFiles = []string{
		".env*",
		"*.pem",
		"*.key",
		"id_rsa*",
		"id_ed25519*",
		"id_ecdsa*",
		"*secret*",
		"*password*",
		"*credential*",
		"*api_key*",
		"*.db",
		"*.sqlite",
		"*.p12",
		"token*",
	}

	filesystemSensitivePaths = []string{
		"*/.aws/*",
		"*/.ssh/*",
		"*/.gnupg/*",
		"*/secrets/*",
	}

	// Safe overrides: documentation stand-ins are never sensitive even when
	// a broad pattern would match them.
	filesystemSafeFiles = []string{
		"*.example",
		"*.sample",
		"*.template",
	}
)

// Filesystem registers the filesystem tool server.
func Filesystem(r *registry.Registry) {
	r.Register("filesystem", &registry.Descriptor{
		Name:        "Filesystem",
		Description: "Read and write files within the workspace",
		Command:     "npx",
		Args:        []string{"-y", "@modelcontextprotocol/server-filesystem", "."},
		Enabled:     true,
		Rules: &guard.RuleSet{
			WriteTools:            filesystemWriteTools,
			ReadOnlyTools:         filesystemReadTools,
			SensitiveFilePatterns: filesystemSensitiveFiles,
			SensitivePathPatterns: filesystemSensitivePaths,
			SafeFilePatterns:      filesystemSafeFiles,
		},
	})
}

package models

// Checkpoint metadata keys.
const (
	MetaWorkspaceID   = "workspace_id"
	MetaWorkspacePath = "workspace_path"
	MetaScope         = "scope"
	MetaFileCount     = "file_count"
	MetaTotalBytes    = "total_bytes"
	MetaSkipped       = "skipped"
	MetaGitBranch     = "git_branch"
)

// Checkpoint scopes.
const (
	ScopeOpen      = "open"
	ScopeWorkspace = "workspace"
)

// Checkpoint is a named, timestamped snapshot of file contents.
// Files maps workspace-relative paths to content.
type Checkpoint struct {
	ID          string            `json:"id"`
	Name        string            `json:"name"`
	Description *string           `json:"description"`
	Timestamp   string            `json:"timestamp"` // RFC 3339 UTC
	Files       map[string]string `json:"files"`
	Metadata    map[string]string `json:"metadata"`
}

// CheckpointSummary is a checkpoint without file contents.
type CheckpointSummary struct {
	ID          string            `json:"id"`
	Name        string            `json:"name"`
	Description *string           `json:"description"`
	Timestamp   string            `json:"timestamp"`
	FileCount   int               `json:"file_count"`
	Metadata    map[string]string `json:"metadata"`
}

// Summary drops the file contents of c.
func (c *Checkpoint) Summary() CheckpointSummary {
	return CheckpointSummary{
		ID:          c.ID,
		Name:        c.Name,
		Description: c.Description,
		Timestamp:   c.Timestamp,
		FileCount:   len(c.Files),
		Metadata:    c.Metadata,
	}
}

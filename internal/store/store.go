package store

import (
	"context"

	"github.com/joescharf/marie/internal/models"
)

// SettingsStore persists the user settings.
type SettingsStore interface {
	// LoadSettings returns nil, nil when nothing has been saved yet.
	LoadSettings(ctx context.Context) (*models.AppSettings, error)
	SaveSettings(ctx context.Context, s models.AppSettings) error
}

// WorkspaceStore remembers opened workspaces so ids stay stable per path.
type WorkspaceStore interface {
	TouchWorkspace(ctx context.Context, path, name string) (*models.WorkspaceRecord, error)
	GetWorkspaceByPath(ctx context.Context, path string) (*models.WorkspaceRecord, error)
	ListRecentWorkspaces(ctx context.Context, limit int) ([]*models.WorkspaceRecord, error)
}

// CheckpointStore persists checkpoints and their file contents.
type CheckpointStore interface {
	SaveCheckpoint(ctx context.Context, cp *models.Checkpoint) error
	GetCheckpoint(ctx context.Context, id string) (*models.Checkpoint, error)
	// ListCheckpoints returns summaries newest first. An empty
	// workspacePath lists every checkpoint.
	ListCheckpoints(ctx context.Context, workspacePath string) ([]models.CheckpointSummary, error)
	DeleteCheckpoint(ctx context.Context, id string) error
}

// Store defines the persistence interface for marie.
type Store interface {
	SettingsStore
	WorkspaceStore
	CheckpointStore

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}

// Package checkpoint captures and restores snapshots of workspace files.
package checkpoint

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/joescharf/marie/internal/apperr"
	"github.com/joescharf/marie/internal/fileio"
	"github.com/joescharf/marie/internal/git"
	"github.com/joescharf/marie/internal/models"
	"github.com/joescharf/marie/internal/state"
	"github.com/joescharf/marie/internal/store"
	"github.com/joescharf/marie/internal/workspace"
)

// AutoRestoreName names the checkpoint taken before a restore.
const AutoRestoreName = "Auto: before restore"

const (
	DefaultMaxFiles    = 2000
	DefaultMaxFileSize = 1 << 20
)

// Options configure a Service.
type Options struct {
	MaxFiles    int
	MaxFileSize int64
	AtomicWrite bool
	Logger      *zap.Logger
}

// Service creates, lists and restores checkpoints of the open workspace.
type Service struct {
	store       store.CheckpointStore
	state       *state.AppState
	git         git.Client
	maxFiles    int
	maxFileSize int64
	atomic      bool
	logger      *zap.Logger
}

// New returns a Service. A nil git client leaves git_branch out of metadata.
func New(st store.CheckpointStore, app *state.AppState, g git.Client, o Options) *Service {
	if o.MaxFiles <= 0 {
		o.MaxFiles = DefaultMaxFiles
	}
	if o.MaxFileSize <= 0 {
		o.MaxFileSize = DefaultMaxFileSize
	}
	if o.Logger == nil {
		o.Logger = zap.NewNop()
	}
	return &Service{
		store:       st,
		state:       app,
		git:         g,
		maxFiles:    o.MaxFiles,
		maxFileSize: o.MaxFileSize,
		atomic:      o.AtomicWrite,
		logger:      o.Logger,
	}
}

// Create snapshots the open workspace. Without a workspace an empty
// checkpoint is still recorded.
func (s *Service) Create(ctx context.Context, name string, description *string) (*models.Checkpoint, error) {
	if strings.TrimSpace(name) == "" {
		return nil, apperr.Invalid("name", "must not be empty")
	}

	ws := s.state.Workspace()
	if ws == nil {
		cp := &models.Checkpoint{
			Name:        name,
			Description: description,
			Files:       map[string]string{},
			Metadata:    map[string]string{},
		}
		if err := s.store.SaveCheckpoint(ctx, cp); err != nil {
			return nil, err
		}
		return cp, nil
	}

	unlock := s.state.Lock(ws.Path)
	defer unlock()
	return s.create(ctx, ws, name, description)
}

// create runs with the workspace lock held.
func (s *Service) create(ctx context.Context, ws *models.Workspace, name string, description *string) (*models.Checkpoint, error) {
	files, meta, err := s.capture(ctx, ws)
	if err != nil {
		return nil, err
	}
	cp := &models.Checkpoint{
		Name:        name,
		Description: description,
		Timestamp:   time.Now().UTC().Format(time.RFC3339),
		Files:       files,
		Metadata:    meta,
	}
	if err := s.store.SaveCheckpoint(ctx, cp); err != nil {
		return nil, err
	}
	s.logger.Info("checkpoint created",
		zap.String("id", cp.ID),
		zap.String("name", cp.Name),
		zap.Int("files", len(cp.Files)),
		zap.String("workspace", ws.Path))
	return cp, nil
}

// capture reads the open files when any are open, otherwise every file of
// the workspace. Oversized, missing and non-text files are skipped.
func (s *Service) capture(ctx context.Context, ws *models.Workspace) (map[string]string, map[string]string, error) {
	scope := models.ScopeWorkspace
	var targets []models.FileInfo
	if len(ws.OpenFiles) > 0 {
		scope = models.ScopeOpen
		for _, id := range ws.OpenFiles {
			if f, ok := ws.File(id); ok {
				targets = append(targets, *f)
			}
		}
	} else {
		for _, f := range ws.Files {
			if f.FileType == models.FileTypeFile {
				targets = append(targets, f)
			}
		}
	}

	files := make(map[string]string, len(targets))
	var total int64
	skipped := 0
	for _, f := range targets {
		if err := ctx.Err(); err != nil {
			return nil, nil, err
		}
		if len(files) >= s.maxFiles {
			skipped++
			continue
		}
		info, err := os.Stat(f.Path)
		if err != nil || info.IsDir() || info.Size() > s.maxFileSize {
			skipped++
			continue
		}
		data, err := os.ReadFile(f.Path)
		if err != nil {
			s.logger.Debug("checkpoint skip unreadable", zap.String("path", f.Path), zap.Error(err))
			skipped++
			continue
		}
		if fileio.CheckText(data) != nil {
			skipped++
			continue
		}
		files[f.RelPath] = string(data)
		total += int64(len(data))
	}

	meta := map[string]string{
		models.MetaWorkspaceID:   ws.ID,
		models.MetaWorkspacePath: ws.Path,
		models.MetaScope:         scope,
		models.MetaFileCount:     strconv.Itoa(len(files)),
		models.MetaTotalBytes:    strconv.FormatInt(total, 10),
		models.MetaSkipped:       strconv.Itoa(skipped),
	}
	if s.git != nil && s.git.IsRepo(ctx, ws.Path) {
		if branch, err := s.git.CurrentBranch(ctx, ws.Path); err == nil && branch != "" {
			meta[models.MetaGitBranch] = branch
		}
	}
	return files, meta, nil
}

// List returns summaries newest first. An empty workspacePath lists the
// checkpoints of the open workspace, or all of them when none is open.
func (s *Service) List(ctx context.Context, workspacePath string) ([]models.CheckpointSummary, error) {
	if workspacePath == "" {
		if ws := s.state.Workspace(); ws != nil {
			workspacePath = ws.Path
		}
	}
	return s.store.ListCheckpoints(ctx, workspacePath)
}

// Get returns a checkpoint with its file contents.
func (s *Service) Get(ctx context.Context, id string) (*models.Checkpoint, error) {
	if strings.TrimSpace(id) == "" {
		return nil, apperr.Invalid("id", "must not be empty")
	}
	return s.store.GetCheckpoint(ctx, id)
}

// Delete removes a checkpoint. Content no other checkpoint references is
// released by the store.
func (s *Service) Delete(ctx context.Context, id string) error {
	if strings.TrimSpace(id) == "" {
		return apperr.Invalid("id", "must not be empty")
	}
	return s.store.DeleteCheckpoint(ctx, id)
}

// Restore writes the files of checkpoint id back into the open workspace.
// When auto-create is enabled in settings, the current state is
// checkpointed first.
func (s *Service) Restore(ctx context.Context, id string) (*models.CheckpointSummary, error) {
	cp, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	sum := cp.Summary()
	if len(cp.Files) == 0 {
		return &sum, nil
	}

	ws := s.state.Workspace()
	if ws == nil {
		return nil, state.ErrNoWorkspace()
	}
	if owner := cp.Metadata[models.MetaWorkspacePath]; owner != "" && owner != ws.Path {
		return nil, apperr.Invalid("checkpoint", fmt.Sprintf("belongs to workspace %s, not %s", owner, ws.Path))
	}

	unlock := s.state.Lock(ws.Path)
	defer unlock()

	if s.state.Settings().CheckpointAutoCreate {
		desc := "Before restoring " + cp.Name
		if _, err := s.create(ctx, ws, AutoRestoreName, &desc); err != nil {
			return nil, fmt.Errorf("auto checkpoint: %w", err)
		}
	}

	for rel, content := range cp.Files {
		path := filepath.Join(ws.Path, filepath.FromSlash(rel))
		if !workspace.Contains(ws.Path, path) {
			return nil, apperr.Invalid("checkpoint", "file outside workspace: "+rel)
		}
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return nil, apperr.IO("write", path, err)
		}
		if err := fileio.WriteText(path, content, s.atomic); err != nil {
			return nil, err
		}
		s.state.MarkSaved(path, content, int64(len(content)), time.Now().UTC().Format(time.RFC3339))
	}

	s.logger.Info("checkpoint restored",
		zap.String("id", cp.ID),
		zap.String("name", cp.Name),
		zap.Int("files", len(cp.Files)),
		zap.String("workspace", ws.Path))
	return &sum, nil
}

package commands

import (
	"context"
	"errors"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"github.com/joescharf/marie/internal/apperr"
	"github.com/joescharf/marie/internal/fileio"
	"github.com/joescharf/marie/internal/models"
	"github.com/joescharf/marie/internal/state"
	"github.com/joescharf/marie/internal/watch"
	"github.com/joescharf/marie/internal/workspace"
)

type pathArgs struct {
	Path string `json:"path"`
}

type idArgs struct {
	ID string `json:"id"`
}

type limitArgs struct {
	Limit int `json:"limit"`
}

type openFileArgs struct {
	ID   string `json:"id"`
	Path string `json:"path"`
}

type setModifiedArgs struct {
	ID       string `json:"id"`
	Modified bool   `json:"modified"`
}

func (d *Dispatcher) registerWorkspace() {
	d.register(&Command{
		Name:        "open_workspace",
		Description: "Open a folder as the workspace, replacing any open one",
		Params: []Param{
			{Name: "path", Type: "string", Description: "Folder to open", Required: true},
		},
		handler: typed(func(ctx context.Context, a pathArgs) (*models.Workspace, error) {
			return d.openWorkspace(ctx, a.Path)
		}),
	})

	d.register(&Command{
		Name:        "close_workspace",
		Description: "Close the open workspace",
		handler: typed(func(ctx context.Context, _ noArgs) (any, error) {
			d.stopWatcher()
			if prev := d.deps.State.ClearWorkspace(); prev != nil {
				d.publish(models.EventWorkspaceClosed, map[string]string{"id": prev.ID, "path": prev.Path})
			}
			return nil, nil
		}),
	})

	d.register(&Command{
		Name:        "get_workspace",
		Description: "Return the open workspace or null",
		handler: typed(func(ctx context.Context, _ noArgs) (*models.Workspace, error) {
			return d.deps.State.Workspace(), nil
		}),
	})

	d.register(&Command{
		Name:        "refresh_workspace",
		Description: "Rescan the open workspace",
		handler: typed(func(ctx context.Context, _ noArgs) (*models.Workspace, error) {
			return d.refresh(ctx, "")
		}),
	})

	d.register(&Command{
		Name:        "list_recent_workspaces",
		Description: "List recently opened workspaces, newest first",
		Params: []Param{
			{Name: "limit", Type: "number", Description: "Maximum entries (default 10)"},
		},
		handler: typed(func(ctx context.Context, a limitArgs) ([]*models.WorkspaceRecord, error) {
			list, err := d.deps.Store.ListRecentWorkspaces(ctx, a.Limit)
			if list == nil && err == nil {
				list = []*models.WorkspaceRecord{}
			}
			return list, err
		}),
	})

	d.register(&Command{
		Name:        "open_file",
		Description: "Load a workspace file and make it the active file",
		Params: []Param{
			{Name: "id", Type: "string", Description: "File id"},
			{Name: "path", Type: "string", Description: "Absolute path, used when id is empty"},
		},
		handler: typed(func(ctx context.Context, a openFileArgs) (*models.FileInfo, error) {
			ws, err := d.requireWorkspace()
			if err != nil {
				return nil, err
			}
			var f *models.FileInfo
			var ok bool
			switch {
			case a.ID != "":
				f, ok = ws.File(a.ID)
				if !ok {
					return nil, apperr.NotFound("file", a.ID)
				}
			case a.Path != "":
				abs, err := filepath.Abs(a.Path)
				if err != nil {
					return nil, apperr.Invalid("path", err.Error())
				}
				f, ok = ws.FileByPath(abs)
				if !ok {
					return nil, apperr.NotFound("file", a.Path)
				}
			default:
				return nil, apperr.Invalid("id", "id or path is required")
			}
			if f.FileType == models.FileTypeDirectory {
				return nil, apperr.Invalid("id", f.RelPath+" is a directory")
			}
			content, err := fileio.ReadText(f.Path)
			if err != nil {
				return nil, err
			}
			opened, err := d.deps.State.OpenFile(f.ID, &content)
			if err != nil {
				return nil, err
			}
			d.publish(models.EventFileOpened, map[string]string{"id": opened.ID, "path": opened.Path})
			return opened, nil
		}),
	})

	d.register(&Command{
		Name:        "close_file",
		Description: "Close an open file",
		Params:      []Param{{Name: "id", Type: "string", Description: "File id", Required: true}},
		handler: typed(func(ctx context.Context, a idArgs) (*models.Workspace, error) {
			ws, err := d.deps.State.CloseFile(a.ID)
			if err != nil {
				return nil, err
			}
			d.publish(models.EventFileClosed, map[string]string{"id": a.ID})
			return ws, nil
		}),
	})

	d.register(&Command{
		Name:        "set_active_file",
		Description: "Make an open file the active one",
		Params:      []Param{{Name: "id", Type: "string", Description: "File id", Required: true}},
		handler: typed(func(ctx context.Context, a idArgs) (*models.Workspace, error) {
			return d.deps.State.SetActiveFile(a.ID)
		}),
	})

	d.register(&Command{
		Name:        "set_file_modified",
		Description: "Flag an open file as having unsaved changes",
		Params: []Param{
			{Name: "id", Type: "string", Description: "File id", Required: true},
			{Name: "modified", Type: "boolean", Description: "Unsaved changes present", Required: true},
		},
		handler: typed(func(ctx context.Context, a setModifiedArgs) (*models.Workspace, error) {
			ws, err := d.deps.State.SetFileModified(a.ID, a.Modified)
			if err != nil {
				return nil, err
			}
			d.publish(models.EventFileModified, map[string]any{"id": a.ID, "modified": a.Modified})
			return ws, nil
		}),
	})
}

func (d *Dispatcher) openWorkspace(ctx context.Context, path string) (*models.Workspace, error) {
	ws, err := d.deps.Scanner.Open(ctx, path)
	if err != nil {
		return nil, err
	}
	rec, err := d.deps.Store.TouchWorkspace(ctx, ws.Path, ws.Name)
	if err != nil {
		return nil, err
	}
	ws.ID = rec.ID

	d.stopWatcher()
	if _, err := d.deps.State.SetWorkspace(ws); err != nil {
		return nil, err
	}
	d.startWatcher(ctx, ws.Path)

	current := d.deps.State.Workspace()
	d.publish(models.EventWorkspaceChanged, map[string]any{"id": current.ID, "path": current.Path, "files": len(current.Files)})
	return current, nil
}

// refresh rescans the open workspace. A non-empty root limits the rescan to
// that workspace so a late watcher callback cannot touch a newer one.
func (d *Dispatcher) refresh(ctx context.Context, root string) (*models.Workspace, error) {
	ws, err := d.requireWorkspace()
	if err != nil {
		return nil, err
	}
	if root != "" && ws.Path != root {
		return ws, nil
	}
	files, err := d.deps.Scanner.Scan(ctx, ws.Path)
	if err != nil {
		return nil, err
	}
	next, err := d.deps.State.ReplaceFiles(ws.Path, files)
	if errors.Is(err, state.ErrWorkspaceChanged) {
		d.deps.Logger.Debug("discarding stale rescan", zap.String("path", ws.Path))
		return next, nil
	}
	if err != nil {
		return nil, err
	}
	d.publish(models.EventWorkspaceChanged, map[string]any{"id": next.ID, "path": next.Path, "files": len(next.Files)})
	return next, nil
}

// refreshIfInside rescans after a file operation under the workspace.
func (d *Dispatcher) refreshIfInside(ctx context.Context, paths ...string) {
	ws := d.deps.State.Workspace()
	if ws == nil {
		return
	}
	for _, p := range paths {
		if inside(ws.Path, p) {
			if _, err := d.refresh(ctx, ws.Path); err != nil {
				d.deps.Logger.Warn("workspace rescan failed", zap.String("path", ws.Path), zap.Error(err))
			}
			return
		}
	}
}

// startWatcher replaces any running watcher with one on root. Creation
// happens under watchMu so concurrent opens cannot leave a watcher behind.
// Each open calls it after installing its workspace, so the last open to
// get the lock ends up owning the watcher.
func (d *Dispatcher) startWatcher(ctx context.Context, root string) {
	d.watchMu.Lock()
	defer d.watchMu.Unlock()

	if ws := d.deps.State.Workspace(); ws == nil || ws.Path != root {
		// A later open owns the watcher.
		return
	}
	if d.watcher != nil {
		d.watcher.Stop()
		d.watcher = nil
	}
	if !d.deps.WatchEnabled {
		return
	}
	w, err := watch.Start(ctx, root, watch.Options{
		Debounce: d.deps.WatchDebounce,
		Ignored:  d.deps.Scanner.Ignored,
		MaxDepth: d.deps.Scanner.MaxDepth,
		MaxDirs:  d.deps.Scanner.MaxFiles,
		Logger:   d.deps.Logger,
		OnChange: func() {
			ctx, cancel := context.WithTimeout(context.Background(), d.deps.Timeout)
			defer cancel()
			if _, err := d.refresh(ctx, root); err != nil {
				d.deps.Logger.Debug("watch rescan failed", zap.String("root", root), zap.Error(err))
			}
		},
	})
	if err != nil {
		d.deps.Logger.Warn("file watcher unavailable", zap.String("root", root), zap.Error(err))
		return
	}
	d.watcher = w
}

func (d *Dispatcher) stopWatcher() {
	d.watchMu.Lock()
	w := d.watcher
	d.watcher = nil
	d.watchMu.Unlock()
	if w != nil {
		w.Stop()
	}
}

// watching returns the running watcher, if any.
func (d *Dispatcher) watching() *watch.Watcher {
	d.watchMu.Lock()
	defer d.watchMu.Unlock()
	return d.watcher
}

func inside(root, path string) bool {
	abs, err := filepath.Abs(path)
	if err != nil {
		return false
	}
	return workspace.Contains(root, abs)
}

func nowRFC3339() string { return time.Now().UTC().Format(time.RFC3339) }

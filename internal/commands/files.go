package commands

import (
	"context"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"github.com/joescharf/marie/internal/fileio"
	"github.com/joescharf/marie/internal/models"
)

type writeFileArgs struct {
	Path    string `json:"path"`
	Content string `json:"content"`
}

type renameArgs struct {
	OldPath string `json:"old_path"`
	NewPath string `json:"new_path"`
}

func (d *Dispatcher) registerFiles() {
	d.register(&Command{
		Name:        "read_file",
		Description: "Read a whole file as text",
		Params:      []Param{{Name: "path", Type: "string", Description: "File path", Required: true}},
		handler: typed(func(ctx context.Context, a pathArgs) (string, error) {
			return fileio.ReadText(a.Path)
		}),
	})

	d.register(&Command{
		Name:        "write_file",
		Description: "Overwrite a file with text content",
		Params: []Param{
			{Name: "path", Type: "string", Description: "File path", Required: true},
			{Name: "content", Type: "string", Description: "New content", Required: true},
		},
		handler: typed(func(ctx context.Context, a writeFileArgs) (any, error) {
			return nil, d.writeFile(ctx, a.Path, a.Content)
		}),
	})

	d.register(&Command{
		Name:        "delete_file",
		Description: "Delete a file or empty directory",
		Params:      []Param{{Name: "path", Type: "string", Description: "Path to delete", Required: true}},
		handler: typed(func(ctx context.Context, a pathArgs) (any, error) {
			if err := fileio.Delete(a.Path); err != nil {
				return nil, err
			}
			d.refreshIfInside(ctx, a.Path)
			return nil, nil
		}),
	})

	d.register(&Command{
		Name:        "rename_file",
		Description: "Rename or move a file",
		Params: []Param{
			{Name: "old_path", Type: "string", Description: "Current path", Required: true},
			{Name: "new_path", Type: "string", Description: "New path", Required: true},
		},
		handler: typed(func(ctx context.Context, a renameArgs) (any, error) {
			if err := fileio.Rename(a.OldPath, a.NewPath); err != nil {
				return nil, err
			}
			d.refreshIfInside(ctx, a.OldPath, a.NewPath)
			return nil, nil
		}),
	})

	d.register(&Command{
		Name:        "list_dir",
		Description: "List the entries of a directory",
		Params:      []Param{{Name: "path", Type: "string", Description: "Directory path", Required: true}},
		handler: typed(func(ctx context.Context, a pathArgs) ([]models.FileInfo, error) {
			root := ""
			if ws := d.deps.State.Workspace(); ws != nil && inside(ws.Path, a.Path) {
				root = ws.Path
			}
			dir := a.Path
			if abs, err := filepath.Abs(dir); err == nil {
				dir = abs
			}
			return fileio.ListDir(root, dir)
		}),
	})
}

// writeFile saves content. Writes under the open workspace hold its lock,
// clear the file's modified flag and, when enabled, auto-commit the file.
func (d *Dispatcher) writeFile(ctx context.Context, path, content string) error {
	ws := d.deps.State.Workspace()
	if ws == nil || !inside(ws.Path, path) {
		return fileio.WriteText(path, content, d.deps.AtomicWrite)
	}

	abs, _ := filepath.Abs(path)
	unlock := d.deps.State.Lock(ws.Path)
	if err := fileio.WriteText(abs, content, d.deps.AtomicWrite); err != nil {
		unlock()
		return err
	}
	modified := nowRFC3339()
	if info, err := os.Stat(abs); err == nil {
		modified = info.ModTime().UTC().Format(time.RFC3339)
	}
	known := d.deps.State.MarkSaved(abs, content, int64(len(content)), modified)
	unlock()

	d.publish(models.EventFileSaved, map[string]string{"path": abs})
	if !known {
		d.refreshIfInside(ctx, abs)
	}
	if d.deps.State.Settings().GitAutoCommit {
		d.autoCommit(ctx, ws.Path, abs)
	}
	return nil
}

// autoCommit commits one saved file. Failures are logged only; the write
// already succeeded.
func (d *Dispatcher) autoCommit(ctx context.Context, root, path string) {
	if !d.deps.Git.IsRepo(ctx, root) {
		return
	}
	rel, err := filepath.Rel(root, path)
	if err != nil {
		return
	}
	rel = filepath.ToSlash(rel)
	if err := d.deps.Git.Commit(ctx, root, "Auto-commit: update "+rel, []string{rel}); err != nil {
		d.deps.Logger.Warn("auto-commit failed", zap.String("path", rel), zap.Error(err))
	}
}

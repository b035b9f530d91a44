// Package workspace scans project folders into the file records held by the
// shared state.
package workspace

import (
	"context"
	"encoding/hex"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/charlievieth/fastwalk"
	"github.com/zeebo/blake3"
	"go.uber.org/zap"

	"github.com/joescharf/marie/internal/apperr"
	"github.com/joescharf/marie/internal/models"
)

// DefaultIgnore lists the doublestar patterns skipped when none are configured.
var DefaultIgnore = []string{
	"**/.git",
	"**/node_modules",
	"**/target",
	"**/dist",
	"**/build",
	"**/.DS_Store",
	"**/__pycache__",
	"**/.venv",
	"**/.idea",
}

// UnknownName is used for paths without a final component, such as "/".
const UnknownName = "Unknown"

var errLimit = errors.New("file limit reached")

// Scanner walks a workspace directory.
type Scanner struct {
	Ignore   []string // doublestar patterns matched against slash relative paths
	MaxFiles int      // 0 means unlimited
	MaxDepth int      // 0 means unlimited
	Logger   *zap.Logger
}

// NewScanner returns a Scanner with the default ignore list.
func NewScanner() *Scanner {
	return &Scanner{Ignore: DefaultIgnore, Logger: zap.NewNop()}
}

// Name derives the workspace name from the final path component.
func Name(path string) string {
	clean := filepath.Clean(path)
	base := filepath.Base(clean)
	if base == "" || base == "." || base == string(filepath.Separator) || strings.HasSuffix(base, ":"+string(filepath.Separator)) {
		return UnknownName
	}
	return base
}

// Resolve returns the absolute form of path after checking it is a
// readable directory.
func Resolve(path string) (string, error) {
	if strings.TrimSpace(path) == "" {
		return "", apperr.Invalid("path", "must not be empty")
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", apperr.Invalid("path", err.Error())
	}
	info, err := os.Stat(abs)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return "", apperr.NotFound("workspace", abs)
	case err != nil:
		return "", apperr.IO("open", abs, err)
	case !info.IsDir():
		return "", apperr.Invalid("path", "not a directory: "+abs)
	}
	return abs, nil
}

// FileID returns the stable id of a workspace-relative path.
func FileID(relPath string) string {
	sum := blake3.Sum256([]byte(filepath.ToSlash(relPath)))
	return "f_" + hex.EncodeToString(sum[:8])
}

// Describe builds the record for one entry of a workspace rooted at root.
func Describe(root, path string, info fs.FileInfo) models.FileInfo {
	rel, err := filepath.Rel(root, path)
	if err != nil {
		rel = filepath.Base(path)
	}
	rel = filepath.ToSlash(rel)
	f := models.FileInfo{
		ID:       FileID(rel),
		Name:     info.Name(),
		Path:     path,
		RelPath:  rel,
		FileType: models.FileTypeFile,
	}
	mod := info.ModTime().UTC().Format(time.RFC3339)
	f.Modified = &mod
	if info.IsDir() {
		f.FileType = models.FileTypeDirectory
		return f
	}
	size := info.Size()
	f.Size = &size
	f.Language = LanguageFor(info.Name())
	return f
}

// Ignored reports whether the slash relative path matches an ignore pattern.
func (s *Scanner) Ignored(rel string) bool {
	for _, p := range s.Ignore {
		if ok, _ := doublestar.Match(p, rel); ok {
			return true
		}
	}
	return false
}

// Scan walks root in parallel and returns its entries sorted by relative
// path. Unreadable entries are skipped. When MaxFiles is reached the walk
// stops and the partial listing is returned.
func (s *Scanner) Scan(ctx context.Context, root string) ([]models.FileInfo, error) {
	log := s.Logger
	if log == nil {
		log = zap.NewNop()
	}

	var (
		mu    sync.Mutex
		files []models.FileInfo
	)
	conf := fastwalk.Config{Follow: false}
	err := fastwalk.Walk(&conf, root, func(path string, d os.DirEntry, err error) error {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		if err != nil {
			if path == root {
				return err
			}
			log.Debug("skip unreadable entry", zap.String("path", path), zap.Error(err))
			return nil
		}

		rel, relErr := filepath.Rel(root, path)
		if relErr != nil || rel == "." {
			return nil
		}
		rel = filepath.ToSlash(rel)

		if s.Ignored(rel) {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}

		depth := strings.Count(rel, "/") + 1
		if s.MaxDepth > 0 && depth > s.MaxDepth {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}

		info, err := d.Info()
		if err != nil {
			return nil
		}

		mu.Lock()
		defer mu.Unlock()
		if s.MaxFiles > 0 && len(files) >= s.MaxFiles {
			return errLimit
		}
		files = append(files, Describe(root, path, info))
		return nil
	})

	switch {
	case errors.Is(err, errLimit):
		log.Warn("workspace file limit reached", zap.String("root", root), zap.Int("max_files", s.MaxFiles))
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return nil, err
	case err != nil:
		return nil, apperr.IO("list", root, err)
	}

	sort.Slice(files, func(i, j int) bool {
		return files[i].RelPath < files[j].RelPath
	})
	if files == nil {
		files = []models.FileInfo{}
	}
	return files, nil
}

// Open resolves path, scans it and returns a workspace without an id.
func (s *Scanner) Open(ctx context.Context, path string) (*models.Workspace, error) {
	abs, err := Resolve(path)
	if err != nil {
		return nil, err
	}
	files, err := s.Scan(ctx, abs)
	if err != nil {
		return nil, err
	}
	return &models.Workspace{
		Name:      Name(abs),
		Path:      abs,
		Files:     files,
		OpenFiles: []string{},
	}, nil
}

// Contains reports whether path lies inside root.
func Contains(root, path string) bool {
	rel, err := filepath.Rel(root, path)
	if err != nil {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)) && !filepath.IsAbs(rel)
}

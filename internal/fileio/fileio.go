// Package fileio implements the whole-file text operations behind the file
// commands. Every failure is an apperr.IoError naming the operation and path.
package fileio

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/gabriel-vasile/mimetype"
	"github.com/saintfish/chardet"

	"github.com/joescharf/marie/internal/apperr"
	"github.com/joescharf/marie/internal/models"
	"github.com/joescharf/marie/internal/workspace"
)

// ErrNotText is the cause reported for content that is not UTF-8 text.
var ErrNotText = errors.New("content is not UTF-8 text")

// ReadText reads the whole file at path as UTF-8 text.
func ReadText(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", apperr.IO("read", path, unwrapPathError(err))
	}
	if err := CheckText(data); err != nil {
		return "", apperr.IO("read", path, err)
	}
	return string(data), nil
}

// CheckText returns nil when data is valid UTF-8. Otherwise the error
// names the sniffed MIME type and, for text-like data, the detected charset.
func CheckText(data []byte) error {
	if utf8.Valid(data) {
		return nil
	}
	mtype := mimetype.Detect(data)
	charset := DetectCharset(data)
	return fmt.Errorf("%w (detected %s, charset %s)", ErrNotText, mtype.String(), charset)
}

// DetectCharset returns the most likely charset of data in lower case.
func DetectCharset(data []byte) string {
	detector := chardet.NewTextDetector()
	result, err := detector.DetectBest(data)
	if err != nil || result == nil {
		return "unknown"
	}
	return strings.ToLower(result.Charset)
}

// WriteText overwrites path with content. With atomic set, content is
// written to a temp file in the same directory, synced and renamed over
// path so readers never observe a partial file.
func WriteText(path, content string, atomic bool) error {
	if !atomic {
		if err := os.WriteFile(path, []byte(content), fileMode(path)); err != nil {
			return apperr.IO("write", path, unwrapPathError(err))
		}
		return nil
	}
	if err := writeAtomic(path, []byte(content)); err != nil {
		return apperr.IO("write", path, err)
	}
	return nil
}

func writeAtomic(path string, data []byte) error {
	mode := fileMode(path)
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".marie-*")
	if err != nil {
		return unwrapPathError(err)
	}
	tmpName := tmp.Name()
	cleanup := func() { _ = os.Remove(tmpName) }

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		cleanup()
		return err
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		cleanup()
		return err
	}
	if err := tmp.Close(); err != nil {
		cleanup()
		return err
	}
	if err := os.Chmod(tmpName, mode); err != nil {
		cleanup()
		return err
	}
	if err := os.Rename(tmpName, path); err != nil {
		cleanup()
		return unwrapPathError(err)
	}
	return nil
}

// fileMode keeps the permissions of an existing file.
func fileMode(path string) fs.FileMode {
	if info, err := os.Stat(path); err == nil {
		return info.Mode().Perm()
	}
	return 0644
}

// Delete removes the file or empty directory at path.
func Delete(path string) error {
	if err := os.Remove(path); err != nil {
		return apperr.IO("delete", path, unwrapPathError(err))
	}
	return nil
}

// Rename moves oldPath to newPath. An existing newPath is an error.
func Rename(oldPath, newPath string) error {
	if _, err := os.Lstat(newPath); err == nil {
		return apperr.IO("rename", oldPath, fmt.Errorf("destination exists: %s", newPath))
	}
	if err := os.Rename(oldPath, newPath); err != nil {
		return apperr.IO("rename", oldPath, unwrapPathError(err))
	}
	return nil
}

// ListDir returns the direct entries of dir, directories first then by name.
// Entries are described relative to root, or to dir when root is empty.
func ListDir(root, dir string) ([]models.FileInfo, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, apperr.IO("list", dir, unwrapPathError(err))
	}
	if root == "" {
		root = dir
	}
	out := make([]models.FileInfo, 0, len(entries))
	for _, e := range entries {
		info, err := e.Info()
		if err != nil {
			continue
		}
		out = append(out, workspace.Describe(root, filepath.Join(dir, e.Name()), info))
	}
	sort.SliceStable(out, func(i, j int) bool {
		di := out[i].FileType == models.FileTypeDirectory
		dj := out[j].FileType == models.FileTypeDirectory
		if di != dj {
			return di
		}
		return out[i].Name < out[j].Name
	})
	return out, nil
}

// unwrapPathError drops the *fs.PathError wrapper so the boundary message
// does not repeat the path.
func unwrapPathError(err error) error {
	var pe *fs.PathError
	if errors.As(err, &pe) {
		return pe.Err
	}
	var le *os.LinkError
	if errors.As(err, &le) {
		return le.Err
	}
	return err
}

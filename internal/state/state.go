// Package state holds the process-wide application state: the open
// workspace and the user settings. All access goes through AppState
// methods, which keep the workspace invariants intact.
package state

import (
	"errors"
	"fmt"
	"slices"
	"sync"

	"github.com/joescharf/marie/internal/apperr"
	"github.com/joescharf/marie/internal/models"
)

// AppState owns the optional open workspace and the current settings.
type AppState struct {
	mu        sync.RWMutex
	workspace *models.Workspace
	settings  models.AppSettings

	locks pathLocks
}

// New returns a state with no open workspace.
func New(settings models.AppSettings) *AppState {
	return &AppState{settings: settings}
}

// Settings returns a copy of the current settings.
func (s *AppState) Settings() models.AppSettings {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.settings
}

// SetSettings replaces the current settings.
func (s *AppState) SetSettings(settings models.AppSettings) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.settings = settings
}

// Workspace returns a copy of the open workspace, or nil.
func (s *AppState) Workspace() *models.Workspace {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.workspace.Clone()
}

// HasWorkspace reports whether a workspace is open.
func (s *AppState) HasWorkspace() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.workspace != nil
}

// SetWorkspace replaces the open workspace. Only one workspace is open at
// a time; the previous one, if any, is returned.
func (s *AppState) SetWorkspace(ws *models.Workspace) (*models.Workspace, error) {
	if ws == nil {
		return nil, apperr.Invalid("workspace", "must not be nil")
	}
	c := ws.Clone()
	if c.OpenFiles == nil {
		c.OpenFiles = []string{}
	}
	if c.Files == nil {
		c.Files = []models.FileInfo{}
	}
	if err := checkInvariants(c); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	prev := s.workspace
	s.workspace = c
	return prev, nil
}

// ClearWorkspace closes the open workspace and returns it (nil if none).
func (s *AppState) ClearWorkspace() *models.Workspace {
	s.mu.Lock()
	defer s.mu.Unlock()
	prev := s.workspace
	s.workspace = nil
	return prev
}

// OpenFile marks the file open and active. A file that is already open
// moves to the end of the open list. content, when non-nil, is attached
// to the file record.
func (s *AppState) OpenFile(id string, content *string) (*models.FileInfo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	f, err := s.fileLocked(id)
	if err != nil {
		return nil, err
	}
	if f.FileType == models.FileTypeDirectory {
		return nil, apperr.Invalid("id", fmt.Sprintf("%s is a directory", f.RelPath))
	}

	ws := s.workspace
	ws.OpenFiles = slices.DeleteFunc(ws.OpenFiles, func(o string) bool { return o == id })
	ws.OpenFiles = append(ws.OpenFiles, id)
	active := id
	ws.ActiveFile = &active

	f.IsOpen = true
	if content != nil {
		v := *content
		f.Content = &v
	}
	out := *f
	return &out, nil
}

// CloseFile removes the file from the open list. Closing the active file
// activates the most recently opened remaining file, or clears the active
// file when none remain.
func (s *AppState) CloseFile(id string) (*models.Workspace, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	f, err := s.fileLocked(id)
	if err != nil {
		return nil, err
	}
	f.IsOpen = false
	f.IsModified = false
	f.Content = nil

	ws := s.workspace
	ws.OpenFiles = slices.DeleteFunc(ws.OpenFiles, func(o string) bool { return o == id })
	if ws.ActiveFile != nil && *ws.ActiveFile == id {
		ws.ActiveFile = nil
		if n := len(ws.OpenFiles); n > 0 {
			next := ws.OpenFiles[n-1]
			ws.ActiveFile = &next
		}
	}
	return ws.Clone(), nil
}

// SetActiveFile makes an open file the active one.
func (s *AppState) SetActiveFile(id string) (*models.Workspace, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.fileLocked(id); err != nil {
		return nil, err
	}
	ws := s.workspace
	if !slices.Contains(ws.OpenFiles, id) {
		return nil, apperr.Invalid("id", fmt.Sprintf("file %s is not open", id))
	}
	active := id
	ws.ActiveFile = &active
	return ws.Clone(), nil
}

// SetFileModified records whether an open file has unsaved edits.
func (s *AppState) SetFileModified(id string, modified bool) (*models.Workspace, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	f, err := s.fileLocked(id)
	if err != nil {
		return nil, err
	}
	if modified && !f.IsOpen {
		return nil, apperr.Invalid("id", fmt.Sprintf("file %s is not open", id))
	}
	f.IsModified = modified
	return s.workspace.Clone(), nil
}

// MarkSaved updates the record of the workspace file at path after its
// content was written. It reports whether path belongs to the workspace.
func (s *AppState) MarkSaved(path string, content string, size int64, modified string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.workspace == nil {
		return false
	}
	f, ok := s.workspace.FileByPath(path)
	if !ok {
		return false
	}
	f.IsModified = false
	f.Size = &size
	f.Modified = &modified
	if f.IsOpen {
		f.Content = &content
	}
	return true
}

// ReplaceFiles swaps in a fresh file listing for the workspace rooted at
// root. It returns ErrWorkspaceChanged, leaving the state alone, when a
// different workspace was opened while the listing was built.
// Open, modified and content state carry over for ids present in both
// listings. Ids that vanished are dropped from the open list, and the
// active file is reassigned the same way CloseFile does.
func (s *AppState) ReplaceFiles(root string, files []models.FileInfo) (*models.Workspace, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ws := s.workspace
	if ws == nil {
		return nil, errNoWorkspace
	}
	if ws.Path != root {
		return ws.Clone(), ErrWorkspaceChanged
	}

	old := make(map[string]models.FileInfo, len(ws.Files))
	for _, f := range ws.Files {
		old[f.ID] = f
	}
	next := make([]models.FileInfo, len(files))
	present := make(map[string]bool, len(files))
	for i, f := range files {
		if prev, ok := old[f.ID]; ok {
			f.IsOpen = prev.IsOpen
			f.IsModified = prev.IsModified
			if f.Content == nil {
				f.Content = prev.Content
			}
		}
		next[i] = f
		present[f.ID] = true
	}
	ws.Files = next
	ws.OpenFiles = slices.DeleteFunc(ws.OpenFiles, func(id string) bool { return !present[id] })
	if ws.ActiveFile != nil && !present[*ws.ActiveFile] {
		ws.ActiveFile = nil
		if n := len(ws.OpenFiles); n > 0 {
			last := ws.OpenFiles[n-1]
			ws.ActiveFile = &last
		}
	}
	return ws.Clone(), nil
}

// Lock serializes work on one workspace path. The returned func releases it.
func (s *AppState) Lock(path string) func() {
	return s.locks.lock(path)
}

var errNoWorkspace = apperr.Invalid("workspace", "no workspace is open")

// ErrWorkspaceChanged reports a rescan that finished after its workspace
// was replaced.
var ErrWorkspaceChanged = errors.New("workspace changed during rescan")

// ErrNoWorkspace reports that a command requires an open workspace.
func ErrNoWorkspace() error { return errNoWorkspace }

func (s *AppState) fileLocked(id string) (*models.FileInfo, error) {
	if s.workspace == nil {
		return nil, errNoWorkspace
	}
	if id == "" {
		return nil, apperr.Invalid("id", "must not be empty")
	}
	f, ok := s.workspace.File(id)
	if !ok {
		return nil, apperr.NotFound("file", id)
	}
	return f, nil
}

// checkInvariants verifies that open files are known and unique and that
// the active file is open.
func checkInvariants(ws *models.Workspace) error {
	known := make(map[string]bool, len(ws.Files))
	for _, f := range ws.Files {
		known[f.ID] = true
	}
	seen := make(map[string]bool, len(ws.OpenFiles))
	for _, id := range ws.OpenFiles {
		if !known[id] {
			return apperr.Invalid("open_files", fmt.Sprintf("unknown file id %s", id))
		}
		if seen[id] {
			return apperr.Invalid("open_files", fmt.Sprintf("duplicate file id %s", id))
		}
		seen[id] = true
	}
	if ws.ActiveFile != nil && !seen[*ws.ActiveFile] {
		return apperr.Invalid("active_file", fmt.Sprintf("file %s is not open", *ws.ActiveFile))
	}
	return nil
}

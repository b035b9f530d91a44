package models

import "time"

// File types reported in FileInfo.FileType.
const (
	FileTypeFile      = "file"
	FileTypeDirectory = "directory"
)

// FileInfo describes one entry of a workspace.
type FileInfo struct {
	ID         string  `json:"id"`
	Name       string  `json:"name"`
	Path       string  `json:"path"`
	RelPath    string  `json:"rel_path"`
	FileType   string  `json:"file_type"`
	Language   string  `json:"language,omitempty"`
	Size       *int64  `json:"size,omitempty"`
	Modified   *string `json:"modified,omitempty"` // RFC 3339
	IsOpen     bool    `json:"is_open"`
	IsModified bool    `json:"is_modified"`
	Content    *string `json:"content,omitempty"`
}

// Workspace is an opened project folder with its open/active file bookkeeping.
type Workspace struct {
	ID         string     `json:"id"`
	Name       string     `json:"name"`
	Path       string     `json:"path"`
	Files      []FileInfo `json:"files"`
	OpenFiles  []string   `json:"open_files"`
	ActiveFile *string    `json:"active_file"`
}

// Clone returns a deep copy of w.
func (w *Workspace) Clone() *Workspace {
	if w == nil {
		return nil
	}
	c := *w
	c.Files = make([]FileInfo, len(w.Files))
	for i, f := range w.Files {
		c.Files[i] = f.clone()
	}
	c.OpenFiles = append([]string{}, w.OpenFiles...)
	if w.ActiveFile != nil {
		id := *w.ActiveFile
		c.ActiveFile = &id
	}
	return &c
}

// File returns the file with the given id.
func (w *Workspace) File(id string) (*FileInfo, bool) {
	for i := range w.Files {
		if w.Files[i].ID == id {
			return &w.Files[i], true
		}
	}
	return nil, false
}

// FileByPath returns the file with the given absolute path.
func (w *Workspace) FileByPath(path string) (*FileInfo, bool) {
	for i := range w.Files {
		if w.Files[i].Path == path {
			return &w.Files[i], true
		}
	}
	return nil, false
}

func (f FileInfo) clone() FileInfo {
	c := f
	if f.Size != nil {
		v := *f.Size
		c.Size = &v
	}
	if f.Modified != nil {
		v := *f.Modified
		c.Modified = &v
	}
	if f.Content != nil {
		v := *f.Content
		c.Content = &v
	}
	return c
}

// WorkspaceRecord is a workspace remembered by the store.
type WorkspaceRecord struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	Path         string    `json:"path"`
	LastOpenedAt time.Time `json:"last_opened_at"`
	CreatedAt    time.Time `json:"created_at"`
}

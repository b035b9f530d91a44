package daemon

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// Record is what a running server leaves in its PID file.
type Record struct {
	PID       int       `json:"pid"`
	Addr      string    `json:"addr"`
	StartedAt time.Time `json:"started_at"`
}

// URL returns the base URL of the recorded server.
func (r Record) URL() string {
	return "http://" + r.Addr
}

// PIDFile manages a PID file for daemon process tracking.
type PIDFile struct {
	Path string
}

// NewPIDFile creates a PIDFile manager for the given path.
func NewPIDFile(path string) *PIDFile {
	return &PIDFile{Path: path}
}

// Write records the current process listening on addr.
func (p *PIDFile) Write(addr string) error {
	return p.WriteRecord(Record{PID: os.Getpid(), Addr: addr, StartedAt: time.Now().UTC()})
}

// WriteRecord writes rec to the file, creating its directory.
func (p *PIDFile) WriteRecord(rec Record) error {
	if err := os.MkdirAll(filepath.Dir(p.Path), 0o755); err != nil {
		return fmt.Errorf("create PID file directory: %w", err)
	}
	data, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	return os.WriteFile(p.Path, append(data, '\n'), 0o644)
}

// Read reads the record from the file. A file holding only a PID number
// is accepted as well.
func (p *PIDFile) Read() (Record, error) {
	data, err := os.ReadFile(p.Path)
	if err != nil {
		return Record{}, err
	}
	text := strings.TrimSpace(string(data))
	if pid, err := strconv.Atoi(text); err == nil {
		return Record{PID: pid}, nil
	}
	var rec Record
	if err := json.Unmarshal([]byte(text), &rec); err != nil || rec.PID <= 0 {
		return Record{}, fmt.Errorf("invalid PID file content: %q", text)
	}
	return rec, nil
}

// Acquire writes a record for the current process unless another live
// process already holds the file. A stale file is replaced.
func (p *PIDFile) Acquire(addr string) error {
	if rec, running := p.IsRunning(); running && rec.PID != os.Getpid() {
		return fmt.Errorf("server already running (PID %d, %s)", rec.PID, rec.URL())
	}
	return p.Write(addr)
}

// Remove deletes the PID file. A missing file is not an error.
func (p *PIDFile) Remove() error {
	err := os.Remove(p.Path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return err
}

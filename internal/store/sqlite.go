package store

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/joescharf/marie/internal/apperr"
	"github.com/joescharf/marie/internal/models"

	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// SQLiteStore implements Store using modernc.org/sqlite (pure Go, no CGO).
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (or creates) a SQLite database at the given path.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	// Ensure parent directory exists
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// SQLite only supports one concurrent writer. A single connection
	// serializes all access and avoids "database is locked" under
	// concurrent commands.
	db.SetMaxOpenConns(1)

	// Enable WAL mode for concurrent reads
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("enable WAL mode: %w", err)
	}

	// Set busy timeout so concurrent writes wait instead of failing immediately
	if _, err := db.Exec("PRAGMA busy_timeout=5000"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("set busy timeout: %w", err)
	}

	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("enable foreign keys: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

// NewID generates a new ULID string. ULIDs sort by creation time.
func NewID() string {
	return ulid.Make().String()
}

// Migrate runs all embedded SQL migration files in order.
func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS schema_migrations (
		filename TEXT PRIMARY KEY,
		applied_at DATETIME NOT NULL DEFAULT (datetime('now'))
	)`)
	if err != nil {
		return fmt.Errorf("create migrations table: %w", err)
	}

	entries, err := migrationsFS.ReadDir("migrations")
	if err != nil {
		return fmt.Errorf("read migrations dir: %w", err)
	}

	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Name() < entries[j].Name()
	})

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}

		name := entry.Name()

		var count int
		err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM schema_migrations WHERE filename = ?", name).Scan(&count)
		if err != nil {
			return fmt.Errorf("check migration %s: %w", name, err)
		}
		if count > 0 {
			continue
		}

		data, err := migrationsFS.ReadFile("migrations/" + name)
		if err != nil {
			return fmt.Errorf("read migration %s: %w", name, err)
		}

		if _, err := s.db.ExecContext(ctx, string(data)); err != nil {
			return fmt.Errorf("apply migration %s: %w", name, err)
		}

		if _, err := s.db.ExecContext(ctx, "INSERT INTO schema_migrations (filename) VALUES (?)", name); err != nil {
			return fmt.Errorf("record migration %s: %w", name, err)
		}
	}

	return nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// --- Settings ---

func (s *SQLiteStore) LoadSettings(ctx context.Context) (*models.AppSettings, error) {
	var data string
	err := s.db.QueryRowContext(ctx, "SELECT data FROM settings WHERE id = 1").Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, apperr.Persistence("load settings", err)
	}

	// Start from defaults so fields added after the row was written get
	// sensible values.
	settings := models.DefaultSettings()
	if err := json.Unmarshal([]byte(data), &settings); err != nil {
		return nil, apperr.Persistence("decode settings", err)
	}
	return &settings, nil
}

func (s *SQLiteStore) SaveSettings(ctx context.Context, settings models.AppSettings) error {
	data, err := json.Marshal(settings)
	if err != nil {
		return apperr.Persistence("encode settings", err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO settings (id, data, updated_at) VALUES (1, ?, ?)
		ON CONFLICT(id) DO UPDATE SET data = excluded.data, updated_at = excluded.updated_at`,
		string(data), time.Now().UTC(),
	)
	if err != nil {
		return apperr.Persistence("save settings", err)
	}
	return nil
}

// --- Workspaces ---

func (s *SQLiteStore) TouchWorkspace(ctx context.Context, path, name string) (*models.WorkspaceRecord, error) {
	now := time.Now().UTC()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO workspaces (id, name, path, last_opened_at, created_at) VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(path) DO UPDATE SET name = excluded.name, last_opened_at = excluded.last_opened_at`,
		NewID(), name, path, now, now,
	)
	if err != nil {
		return nil, apperr.Persistence("record workspace", err)
	}
	return s.GetWorkspaceByPath(ctx, path)
}

func (s *SQLiteStore) GetWorkspaceByPath(ctx context.Context, path string) (*models.WorkspaceRecord, error) {
	w := &models.WorkspaceRecord{}
	err := s.db.QueryRowContext(ctx,
		`SELECT id, name, path, last_opened_at, created_at FROM workspaces WHERE path = ?`, path,
	).Scan(&w.ID, &w.Name, &w.Path, &w.LastOpenedAt, &w.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.NotFound("workspace", path)
	}
	if err != nil {
		return nil, apperr.Persistence("get workspace", err)
	}
	return w, nil
}

func (s *SQLiteStore) ListRecentWorkspaces(ctx context.Context, limit int) ([]*models.WorkspaceRecord, error) {
	if limit <= 0 {
		limit = 10
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, name, path, last_opened_at, created_at FROM workspaces
		ORDER BY last_opened_at DESC, id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, apperr.Persistence("list workspaces", err)
	}
	defer func() { _ = rows.Close() }()

	var out []*models.WorkspaceRecord
	for rows.Next() {
		w := &models.WorkspaceRecord{}
		if err := rows.Scan(&w.ID, &w.Name, &w.Path, &w.LastOpenedAt, &w.CreatedAt); err != nil {
			return nil, apperr.Persistence("scan workspace", err)
		}
		out = append(out, w)
	}
	if err := rows.Err(); err != nil {
		return nil, apperr.Persistence("list workspaces", err)
	}
	return out, nil
}

// --- Checkpoints ---

func (s *SQLiteStore) SaveCheckpoint(ctx context.Context, cp *models.Checkpoint) error {
	if cp.ID == "" {
		cp.ID = NewID()
	}
	if cp.Timestamp == "" {
		cp.Timestamp = time.Now().UTC().Format(time.RFC3339)
	}
	if cp.Files == nil {
		cp.Files = map[string]string{}
	}
	if cp.Metadata == nil {
		cp.Metadata = map[string]string{}
	}

	meta, err := json.Marshal(cp.Metadata)
	if err != nil {
		return apperr.Persistence("encode checkpoint metadata", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return apperr.Persistence("begin tx", err)
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO checkpoints (id, name, description, workspace_path, created_at, metadata)
		VALUES (?, ?, ?, ?, ?, ?)`,
		cp.ID, cp.Name, cp.Description, cp.Metadata[models.MetaWorkspacePath], cp.Timestamp, string(meta),
	)
	if err != nil {
		return apperr.Persistence("create checkpoint", err)
	}

	// Sorted for deterministic insert order.
	paths := make([]string, 0, len(cp.Files))
	for p := range cp.Files {
		paths = append(paths, p)
	}
	sort.Strings(paths)

	for _, p := range paths {
		content := []byte(cp.Files[p])
		hash := HashContent(content)
		payload, compression := encodeBlob(content)

		if _, err := tx.ExecContext(ctx,
			`INSERT OR IGNORE INTO blobs (hash, size, compression, data) VALUES (?, ?, ?, ?)`,
			hash, len(content), compression, payload,
		); err != nil {
			return apperr.Persistence("store blob", err)
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO checkpoint_files (checkpoint_id, path, blob_hash, size) VALUES (?, ?, ?, ?)`,
			cp.ID, p, hash, len(content),
		); err != nil {
			return apperr.Persistence("store checkpoint file", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return apperr.Persistence("commit tx", err)
	}
	return nil
}

func (s *SQLiteStore) GetCheckpoint(ctx context.Context, id string) (*models.Checkpoint, error) {
	cp := &models.Checkpoint{}
	var desc sql.NullString
	var meta string
	err := s.db.QueryRowContext(ctx,
		`SELECT id, name, description, created_at, metadata FROM checkpoints WHERE id = ?`, id,
	).Scan(&cp.ID, &cp.Name, &desc, &cp.Timestamp, &meta)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.NotFound("checkpoint", id)
	}
	if err != nil {
		return nil, apperr.Persistence("get checkpoint", err)
	}
	if desc.Valid {
		cp.Description = &desc.String
	}
	cp.Metadata = map[string]string{}
	if err := json.Unmarshal([]byte(meta), &cp.Metadata); err != nil {
		return nil, apperr.Persistence("decode checkpoint metadata", err)
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT cf.path, cf.size, b.compression, b.data
		FROM checkpoint_files cf JOIN blobs b ON b.hash = cf.blob_hash
		WHERE cf.checkpoint_id = ? ORDER BY cf.path`, id)
	if err != nil {
		return nil, apperr.Persistence("get checkpoint files", err)
	}
	defer func() { _ = rows.Close() }()

	cp.Files = map[string]string{}
	for rows.Next() {
		var (
			path, compression string
			size              int
			payload           []byte
		)
		if err := rows.Scan(&path, &size, &compression, &payload); err != nil {
			return nil, apperr.Persistence("scan checkpoint file", err)
		}
		content, err := decodeBlob(payload, compression, size)
		if err != nil {
			return nil, apperr.Persistence("decode checkpoint file "+path, err)
		}
		cp.Files[path] = string(content)
	}
	if err := rows.Err(); err != nil {
		return nil, apperr.Persistence("get checkpoint files", err)
	}
	return cp, nil
}

func (s *SQLiteStore) ListCheckpoints(ctx context.Context, workspacePath string) ([]models.CheckpointSummary, error) {
	query := `SELECT c.id, c.name, c.description, c.created_at, c.metadata,
		(SELECT COUNT(*) FROM checkpoint_files cf WHERE cf.checkpoint_id = c.id)
		FROM checkpoints c`
	var args []any
	if workspacePath != "" {
		query += " WHERE c.workspace_path = ?"
		args = append(args, workspacePath)
	}
	query += " ORDER BY c.created_at DESC, c.id DESC"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, apperr.Persistence("list checkpoints", err)
	}
	defer func() { _ = rows.Close() }()

	out := []models.CheckpointSummary{}
	for rows.Next() {
		var (
			sum  models.CheckpointSummary
			desc sql.NullString
			meta string
		)
		if err := rows.Scan(&sum.ID, &sum.Name, &desc, &sum.Timestamp, &meta, &sum.FileCount); err != nil {
			return nil, apperr.Persistence("scan checkpoint", err)
		}
		if desc.Valid {
			sum.Description = &desc.String
		}
		sum.Metadata = map[string]string{}
		if err := json.Unmarshal([]byte(meta), &sum.Metadata); err != nil {
			return nil, apperr.Persistence("decode checkpoint metadata", err)
		}
		out = append(out, sum)
	}
	if err := rows.Err(); err != nil {
		return nil, apperr.Persistence("list checkpoints", err)
	}
	return out, nil
}

func (s *SQLiteStore) DeleteCheckpoint(ctx context.Context, id string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return apperr.Persistence("begin tx", err)
	}
	defer func() { _ = tx.Rollback() }()

	result, err := tx.ExecContext(ctx, "DELETE FROM checkpoints WHERE id = ?", id)
	if err != nil {
		return apperr.Persistence("delete checkpoint", err)
	}
	n, _ := result.RowsAffected()
	if n == 0 {
		return apperr.NotFound("checkpoint", id)
	}

	// Drop blobs no remaining checkpoint references.
	if _, err := tx.ExecContext(ctx,
		`DELETE FROM blobs WHERE hash NOT IN (SELECT DISTINCT blob_hash FROM checkpoint_files)`,
	); err != nil {
		return apperr.Persistence("collect blobs", err)
	}

	if err := tx.Commit(); err != nil {
		return apperr.Persistence("commit tx", err)
	}
	return nil
}

// blobCount reports the number of stored blobs.
func (s *SQLiteStore) blobCount(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM blobs").Scan(&n)
	return n, err
}

package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joescharf/marie/internal/apperr"
	"github.com/joescharf/marie/internal/git"
	"github.com/joescharf/marie/internal/models"
	"github.com/joescharf/marie/internal/state"
	"github.com/joescharf/marie/internal/store"
	"github.com/joescharf/marie/internal/workspace"
)

type testEnv struct {
	d      *Dispatcher
	state  *state.AppState
	store  *store.SQLiteStore
	git    *git.StaticClient
	dbPath string
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")
	return newTestEnvAt(t, dbPath)
}

func newTestEnvAt(t *testing.T, dbPath string) *testEnv {
	t.Helper()
	st, err := store.NewSQLiteStore(dbPath)
	require.NoError(t, err)
	require.NoError(t, st.Migrate(context.Background()))
	t.Cleanup(func() { st.Close() })

	settings, err := LoadSettings(context.Background(), st)
	require.NoError(t, err)

	app := state.New(settings)
	g := git.NewStatic()
	d := New(Deps{State: app, Store: st, Git: g, AtomicWrite: true})
	t.Cleanup(d.Close)
	return &testEnv{d: d, state: app, store: st, git: g, dbPath: dbPath}
}

func (e *testEnv) invoke(t *testing.T, name string, args any) (any, error) {
	t.Helper()
	var raw json.RawMessage
	if args != nil {
		data, err := json.Marshal(args)
		require.NoError(t, err)
		raw = data
	}
	return e.d.Invoke(context.Background(), name, raw)
}

func (e *testEnv) mustInvoke(t *testing.T, name string, args any) any {
	t.Helper()
	out, err := e.invoke(t, name, args)
	require.NoError(t, err, name)
	return out
}

func makeProject(t *testing.T, files map[string]string) string {
	t.Helper()
	root := filepath.Join(t.TempDir(), "project")
	for rel, content := range files {
		p := filepath.Join(root, filepath.FromSlash(rel))
		require.NoError(t, os.MkdirAll(filepath.Dir(p), 0755))
		require.NoError(t, os.WriteFile(p, []byte(content), 0644))
	}
	require.NoError(t, os.MkdirAll(root, 0755))
	return root
}

func TestCommands_Registered(t *testing.T) {
	e := newTestEnv(t)
	want := []string{
		"ai_generate", "ai_models", "ai_reset_status", "ai_status",
		"close_file", "close_workspace", "create_checkpoint", "delete_checkpoint", "delete_file",
		"get_checkpoint", "get_git_status", "get_settings", "get_workspace",
		"git_add", "git_branches", "git_checkout", "git_commit", "git_init",
		"list_checkpoints", "list_dir", "list_recent_workspaces",
		"open_file", "open_workspace", "read_file", "refresh_workspace", "rename_file",
		"restore_checkpoint", "set_active_file", "set_file_modified", "set_settings", "write_file",
	}
	assert.Equal(t, want, e.d.Names())
}

func TestInvoke_UnknownAndMalformed(t *testing.T) {
	e := newTestEnv(t)

	_, err := e.d.Invoke(context.Background(), "launch_rockets", nil)
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))
	assert.Equal(t, "command", apperr.Details(err)["field"])

	_, err = e.d.Invoke(context.Background(), "read_file", json.RawMessage(`{"path": 5}`))
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))
	assert.Equal(t, "args", apperr.Details(err)["field"])
}

// --- Settings ---

func TestGetSettings_Defaults(t *testing.T) {
	e := newTestEnv(t)
	out := e.mustInvoke(t, "get_settings", nil)
	assert.Equal(t, models.DefaultSettings(), out)
}

func TestSetSettings_PersistsAcrossRestart(t *testing.T) {
	e := newTestEnv(t)
	s := models.DefaultSettings()
	s.Theme = models.ThemeLight
	s.FontSize = 18

	out := e.mustInvoke(t, "set_settings", map[string]any{"settings": s})
	assert.Nil(t, out)

	got := e.mustInvoke(t, "get_settings", nil).(models.AppSettings)
	assert.Equal(t, models.ThemeLight, got.Theme)
	assert.Equal(t, 18, got.FontSize)

	fresh := newTestEnvAt(t, e.dbPath)
	again := fresh.mustInvoke(t, "get_settings", nil).(models.AppSettings)
	assert.Equal(t, s, again)
}

func TestSetSettings_Validation(t *testing.T) {
	e := newTestEnv(t)
	s := models.DefaultSettings()
	s.Theme = "neon"

	_, err := e.invoke(t, "set_settings", map[string]any{"settings": s})
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))
	assert.Equal(t, "theme", apperr.Details(err)["field"])

	// Nothing changed
	got := e.mustInvoke(t, "get_settings", nil).(models.AppSettings)
	assert.Equal(t, models.ThemeDark, got.Theme)

	_, err = e.invoke(t, "set_settings", map[string]any{})
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))
}

// --- Workspace ---

func TestOpenWorkspace(t *testing.T) {
	e := newTestEnv(t)
	root := makeProject(t, map[string]string{"main.go": "package main\n", "pkg/a.go": "package pkg\n"})

	ws := e.mustInvoke(t, "open_workspace", map[string]string{"path": root}).(*models.Workspace)
	assert.Equal(t, "project", ws.Name)
	assert.Equal(t, root, ws.Path)
	assert.NotEmpty(t, ws.ID)
	assert.Len(t, ws.Files, 3)
	assert.Empty(t, ws.OpenFiles)

	again := e.mustInvoke(t, "open_workspace", map[string]string{"path": root}).(*models.Workspace)
	assert.Equal(t, ws.ID, again.ID, "id is stable per path")

	recent := e.mustInvoke(t, "list_recent_workspaces", nil).([]*models.WorkspaceRecord)
	require.Len(t, recent, 1)
	assert.Equal(t, root, recent[0].Path)

	got := e.mustInvoke(t, "get_workspace", nil).(*models.Workspace)
	assert.Equal(t, ws.ID, got.ID)
}

func TestOpenWorkspace_Errors(t *testing.T) {
	e := newTestEnv(t)
	root := makeProject(t, map[string]string{"file.txt": "x"})

	_, err := e.invoke(t, "open_workspace", map[string]string{"path": filepath.Join(root, "missing")})
	assert.Equal(t, apperr.KindNotFound, apperr.KindOf(err))

	_, err = e.invoke(t, "open_workspace", map[string]string{"path": filepath.Join(root, "file.txt")})
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))
	assert.Equal(t, "path", apperr.Details(err)["field"])
}

func TestCloseWorkspace(t *testing.T) {
	e := newTestEnv(t)
	_, err := e.invoke(t, "close_workspace", nil)
	require.NoError(t, err, "closing with nothing open is fine")

	root := makeProject(t, map[string]string{"a.txt": "a"})
	e.mustInvoke(t, "open_workspace", map[string]string{"path": root})
	e.mustInvoke(t, "close_workspace", nil)
	assert.Nil(t, e.mustInvoke(t, "get_workspace", nil).(*models.Workspace))
}

func TestFileLifecycle_ActiveReassigned(t *testing.T) {
	e := newTestEnv(t)
	root := makeProject(t, map[string]string{"a.txt": "a", "b.txt": "b", "c.txt": "c"})
	e.mustInvoke(t, "open_workspace", map[string]string{"path": root})

	a := workspace.FileID("a.txt")
	b := workspace.FileID("b.txt")
	c := workspace.FileID("c.txt")

	f := e.mustInvoke(t, "open_file", map[string]string{"id": a}).(*models.FileInfo)
	require.NotNil(t, f.Content)
	assert.Equal(t, "a", *f.Content)
	e.mustInvoke(t, "open_file", map[string]string{"path": filepath.Join(root, "b.txt")})
	e.mustInvoke(t, "open_file", map[string]string{"id": c})

	ws := e.mustInvoke(t, "set_active_file", map[string]string{"id": b}).(*models.Workspace)
	assert.Equal(t, b, *ws.ActiveFile)

	ws = e.mustInvoke(t, "close_file", map[string]string{"id": b}).(*models.Workspace)
	require.NotNil(t, ws.ActiveFile)
	assert.Equal(t, c, *ws.ActiveFile)

	e.mustInvoke(t, "close_file", map[string]string{"id": c})
	ws = e.mustInvoke(t, "close_file", map[string]string{"id": a}).(*models.Workspace)
	assert.Nil(t, ws.ActiveFile)
	assert.Empty(t, ws.OpenFiles)

	_, err := e.invoke(t, "open_file", map[string]string{"id": "f_nope"})
	assert.Equal(t, apperr.KindNotFound, apperr.KindOf(err))
	_, err = e.invoke(t, "set_active_file", map[string]string{"id": a})
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err), "not open")
}

func TestSetFileModified_ClearedOnWrite(t *testing.T) {
	e := newTestEnv(t)
	root := makeProject(t, map[string]string{"a.txt": "a"})
	e.mustInvoke(t, "open_workspace", map[string]string{"path": root})
	id := workspace.FileID("a.txt")

	e.mustInvoke(t, "open_file", map[string]string{"id": id})
	ws := e.mustInvoke(t, "set_file_modified", map[string]any{"id": id, "modified": true}).(*models.Workspace)
	f, _ := ws.File(id)
	assert.True(t, f.IsModified)

	e.mustInvoke(t, "write_file", map[string]string{"path": filepath.Join(root, "a.txt"), "content": "saved"})
	ws = e.mustInvoke(t, "get_workspace", nil).(*models.Workspace)
	f, _ = ws.File(id)
	assert.False(t, f.IsModified)
	require.NotNil(t, f.Content)
	assert.Equal(t, "saved", *f.Content)
}

// --- Files ---

func TestWriteThenRead(t *testing.T) {
	e := newTestEnv(t)
	p := filepath.Join(t.TempDir(), "hello.txt")

	assert.Nil(t, e.mustInvoke(t, "write_file", map[string]string{"path": p, "content": "hello"}))
	assert.Equal(t, "hello", e.mustInvoke(t, "read_file", map[string]string{"path": p}))
}

func TestReadFile_Missing(t *testing.T) {
	e := newTestEnv(t)
	p := filepath.Join(t.TempDir(), "nope.txt")

	_, err := e.invoke(t, "read_file", map[string]string{"path": p})
	require.Error(t, err)
	assert.Equal(t, apperr.KindIO, apperr.KindOf(err))
	assert.Contains(t, err.Error(), "Failed to read file "+p)
}

func TestWriteFile_NewFileAppearsInWorkspace(t *testing.T) {
	e := newTestEnv(t)
	root := makeProject(t, map[string]string{"a.txt": "a"})
	e.mustInvoke(t, "open_workspace", map[string]string{"path": root})

	e.mustInvoke(t, "write_file", map[string]string{"path": filepath.Join(root, "new.go"), "content": "package x"})
	ws := e.mustInvoke(t, "get_workspace", nil).(*models.Workspace)
	_, ok := ws.File(workspace.FileID("new.go"))
	assert.True(t, ok)
}

func TestWriteFile_AutoCommit(t *testing.T) {
	e := newTestEnv(t)
	root := makeProject(t, map[string]string{"a.txt": "a"})
	e.mustInvoke(t, "open_workspace", map[string]string{"path": root})

	e.mustInvoke(t, "write_file", map[string]string{"path": filepath.Join(root, "a.txt"), "content": "b"})
	assert.Empty(t, e.git.CommitMessages(), "off by default")

	s := models.DefaultSettings()
	s.GitAutoCommit = true
	e.mustInvoke(t, "set_settings", map[string]any{"settings": s})

	e.mustInvoke(t, "write_file", map[string]string{"path": filepath.Join(root, "a.txt"), "content": "c"})
	assert.Equal(t, []string{"Auto-commit: update a.txt"}, e.git.CommitMessages())

	e.git.SetRepo(false)
	e.mustInvoke(t, "write_file", map[string]string{"path": filepath.Join(root, "a.txt"), "content": "d"})
	assert.Len(t, e.git.CommitMessages(), 1, "no commit outside a repository")
}

func TestDeleteRenameListDir(t *testing.T) {
	e := newTestEnv(t)
	root := makeProject(t, map[string]string{"a.txt": "a", "sub/b.txt": "b"})
	e.mustInvoke(t, "open_workspace", map[string]string{"path": root})

	e.mustInvoke(t, "rename_file", map[string]string{
		"old_path": filepath.Join(root, "a.txt"),
		"new_path": filepath.Join(root, "renamed.txt"),
	})
	ws := e.mustInvoke(t, "get_workspace", nil).(*models.Workspace)
	_, ok := ws.File(workspace.FileID("renamed.txt"))
	assert.True(t, ok)
	_, ok = ws.File(workspace.FileID("a.txt"))
	assert.False(t, ok)

	e.mustInvoke(t, "delete_file", map[string]string{"path": filepath.Join(root, "renamed.txt")})
	list := e.mustInvoke(t, "list_dir", map[string]string{"path": root}).([]models.FileInfo)
	require.Len(t, list, 1)
	assert.Equal(t, "sub", list[0].Name)
	assert.Equal(t, workspace.FileID("sub"), list[0].ID)

	_, err := e.invoke(t, "delete_file", map[string]string{"path": filepath.Join(root, "renamed.txt")})
	assert.Equal(t, apperr.KindIO, apperr.KindOf(err))
}

// --- Checkpoints ---

func TestCreateCheckpoint_DistinctIDs(t *testing.T) {
	e := newTestEnv(t)

	a := e.mustInvoke(t, "create_checkpoint", map[string]any{"name": "v1"}).(*models.Checkpoint)
	b := e.mustInvoke(t, "create_checkpoint", map[string]any{"name": "v1"}).(*models.Checkpoint)
	assert.Equal(t, "v1", a.Name)
	assert.Nil(t, a.Description)
	assert.NotEmpty(t, a.ID)
	assert.NotEqual(t, a.ID, b.ID)

	_, err := e.invoke(t, "create_checkpoint", map[string]any{"name": ""})
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))
}

func TestCheckpoint_RestoreRoundTrip(t *testing.T) {
	e := newTestEnv(t)
	root := makeProject(t, map[string]string{"main.go": "v1"})
	e.mustInvoke(t, "open_workspace", map[string]string{"path": root})
	main := filepath.Join(root, "main.go")

	cp := e.mustInvoke(t, "create_checkpoint", map[string]any{"name": "v1", "description": "first"}).(*models.Checkpoint)
	require.NotNil(t, cp.Description)
	assert.Equal(t, "first", *cp.Description)

	e.mustInvoke(t, "write_file", map[string]string{"path": main, "content": "v2"})
	sum := e.mustInvoke(t, "restore_checkpoint", map[string]string{"id": cp.ID}).(*models.CheckpointSummary)
	assert.Equal(t, cp.ID, sum.ID)
	assert.Equal(t, "v1", e.mustInvoke(t, "read_file", map[string]string{"path": main}))

	list := e.mustInvoke(t, "list_checkpoints", nil).([]models.CheckpointSummary)
	assert.Len(t, list, 2, "restore took an automatic checkpoint")

	full := e.mustInvoke(t, "get_checkpoint", map[string]string{"id": cp.ID}).(*models.Checkpoint)
	assert.Equal(t, "v1", full.Files["main.go"])

	e.mustInvoke(t, "delete_checkpoint", map[string]string{"id": cp.ID})
	_, err := e.invoke(t, "get_checkpoint", map[string]string{"id": cp.ID})
	assert.Equal(t, apperr.KindNotFound, apperr.KindOf(err))
}

// --- Git ---

func TestGetGitStatus_Static(t *testing.T) {
	e := newTestEnv(t)

	_, err := e.invoke(t, "get_git_status", nil)
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err), "no workspace open")

	root := makeProject(t, map[string]string{"a.txt": "a"})
	e.mustInvoke(t, "open_workspace", map[string]string{"path": root})

	st := e.mustInvoke(t, "get_git_status", nil).(*models.GitStatus)
	assert.Equal(t, "main", st.Branch)
	assert.True(t, st.IsClean)
	assert.Empty(t, st.ModifiedFiles)
	assert.Empty(t, st.StagedFiles)
	assert.Empty(t, st.UntrackedFiles)
	assert.Zero(t, st.Ahead)
	assert.Zero(t, st.Behind)
}

func TestGitCommands(t *testing.T) {
	e := newTestEnv(t)
	root := makeProject(t, map[string]string{"a.txt": "a"})
	e.mustInvoke(t, "open_workspace", map[string]string{"path": root})

	e.mustInvoke(t, "git_init", nil)
	e.mustInvoke(t, "git_add", map[string]any{"files": []string{"a.txt"}})
	e.mustInvoke(t, "git_commit", map[string]any{"message": "first"})
	assert.Equal(t, []string{"first"}, e.git.CommitMessages())
	assert.Equal(t, []string{"main"}, e.mustInvoke(t, "git_branches", nil))

	_, err := e.invoke(t, "git_commit", map[string]any{"message": ""})
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))
	_, err = e.invoke(t, "git_checkout", map[string]any{"branch": "nope"})
	assert.Error(t, err)
}

// --- AI ---

func TestAIGenerate_Mock(t *testing.T) {
	e := newTestEnv(t)
	s := models.DefaultSettings()
	s.AIProvider = models.ProviderMock
	s.AIModel = "mock"
	e.mustInvoke(t, "set_settings", map[string]any{"settings": s})

	out := e.mustInvoke(t, "ai_generate", map[string]any{"prompt": "write a test"})
	assert.Equal(t, "Mock AI response for: write a test", out)

	_, err := e.invoke(t, "ai_generate", map[string]any{"prompt": ""})
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))
}

func TestAIGenerate_UnconfiguredProvider(t *testing.T) {
	e := newTestEnv(t)
	// Default provider is openai, which this dispatcher has not registered.
	_, err := e.invoke(t, "ai_generate", map[string]any{"prompt": "hi"})
	assert.Equal(t, apperr.KindExternalTool, apperr.KindOf(err))
}

func TestAIGenerate_ProjectContext(t *testing.T) {
	e := newTestEnv(t)
	root := makeProject(t, map[string]string{"go.mod": "module x\n"})
	e.mustInvoke(t, "open_workspace", map[string]string{"path": root})

	c := e.d.withProject(map[string]any{"file": "main.go"})
	project, ok := c["project"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "project", project["name"])
	assert.Equal(t, "go", project["language"])
	assert.Equal(t, "main.go", c["file"])

	given := e.d.withProject(map[string]any{"project": "mine"})
	assert.Equal(t, "mine", given["project"])
}

func TestAIStatus(t *testing.T) {
	e := newTestEnv(t)
	s := models.DefaultSettings()
	s.AIProvider = models.ProviderMock
	s.AIModel = "mock"
	e.mustInvoke(t, "set_settings", map[string]any{"settings": s})

	assert.Empty(t, e.mustInvoke(t, "ai_status", nil))

	e.mustInvoke(t, "ai_generate", map[string]any{"prompt": "one"})
	e.mustInvoke(t, "ai_generate", map[string]any{"prompt": "two"})
	status := e.mustInvoke(t, "ai_status", nil).([]models.AIModelStatus)
	require.Len(t, status, 1)
	assert.Equal(t, models.ProviderMock, status[0].Provider)
	assert.Equal(t, 2, status[0].TotalRequests)
	assert.Equal(t, models.ModelAvailable, status[0].Status)

	e.mustInvoke(t, "ai_reset_status", nil)
	assert.Empty(t, e.mustInvoke(t, "ai_status", nil))
}

func TestAIModels(t *testing.T) {
	e := newTestEnv(t)
	list := e.mustInvoke(t, "ai_models", nil).([]models.AIModel)
	assert.NotEmpty(t, list)
}

// --- Events ---

func TestEvents_Published(t *testing.T) {
	e := newTestEnv(t)
	ch, cancel := e.d.Bus().Subscribe()
	defer cancel()

	root := makeProject(t, map[string]string{"a.txt": "a"})
	e.mustInvoke(t, "open_workspace", map[string]string{"path": root})

	select {
	case ev := <-ch:
		assert.Equal(t, models.EventWorkspaceChanged, ev.Type)
	case <-time.After(time.Second):
		t.Fatal("no event published")
	}
}

func TestRefresh_ConcurrentOpenKeepsFilesInWorkspace(t *testing.T) {
	env := newTestEnv(t)
	big := map[string]string{}
	for i := 0; i < 300; i++ {
		big[fmt.Sprintf("d%d/f%d.txt", i%30, i)] = "x"
	}
	bigRoot := makeProject(t, big)
	smallRoot := makeProject(t, map[string]string{"only.txt": "y"})

	for i := 0; i < 10; i++ {
		env.mustInvoke(t, "open_workspace", map[string]string{"path": bigRoot})

		var wg sync.WaitGroup
		wg.Add(2)
		go func() {
			defer wg.Done()
			_, _ = env.invoke(t, "refresh_workspace", nil)
		}()
		go func() {
			defer wg.Done()
			_, _ = env.invoke(t, "open_workspace", map[string]string{"path": smallRoot})
		}()
		wg.Wait()

		ws := env.state.Workspace()
		require.NotNil(t, ws)
		assert.Equal(t, smallRoot, ws.Path)
		for _, f := range ws.Files {
			assert.True(t, workspace.Contains(ws.Path, f.Path), "%s outside %s", f.Path, ws.Path)
		}
	}
}

func newWatchingEnv(t *testing.T, scanner *workspace.Scanner) *testEnv {
	t.Helper()
	env := newTestEnv(t)
	d := New(Deps{
		State:         env.state,
		Store:         env.store,
		Git:           env.git,
		Scanner:       scanner,
		WatchEnabled:  true,
		WatchDebounce: 20 * time.Millisecond,
	})
	t.Cleanup(d.Close)
	env.d = d
	return env
}

func TestOpenWorkspace_WatcherBounded(t *testing.T) {
	files := map[string]string{}
	for i := 0; i < 50; i++ {
		files[fmt.Sprintf("d%02d/sub/f.txt", i)] = "x"
	}
	root := makeProject(t, files)

	scanner := workspace.NewScanner()
	scanner.MaxDepth = 2
	scanner.MaxFiles = 10
	env := newWatchingEnv(t, scanner)

	env.mustInvoke(t, "open_workspace", map[string]string{"path": root})
	w := env.d.watching()
	require.NotNil(t, w)
	assert.LessOrEqual(t, w.Watched(), 10)

	scanner.MaxDepth = 1
	scanner.MaxFiles = 0
	env.mustInvoke(t, "open_workspace", map[string]string{"path": root})
	assert.Equal(t, 1, env.d.watching().Watched(), "depth 1 lists only top-level entries")
}

func TestOpenWorkspace_ConcurrentOpensKeepOneWatcher(t *testing.T) {
	env := newWatchingEnv(t, workspace.NewScanner())
	a := makeProject(t, map[string]string{"a.txt": "a"})
	b := makeProject(t, map[string]string{"b.txt": "b"})

	for i := 0; i < 10; i++ {
		var wg sync.WaitGroup
		for _, root := range []string{a, b} {
			wg.Add(1)
			go func(root string) {
				defer wg.Done()
				_, _ = env.invoke(t, "open_workspace", map[string]string{"path": root})
			}(root)
		}
		wg.Wait()

		ws := env.state.Workspace()
		require.NotNil(t, ws)
		if w := env.d.watching(); w != nil {
			assert.Equal(t, ws.Path, w.Root())
		}
	}

	env.mustInvoke(t, "close_workspace", nil)
	assert.Nil(t, env.d.watching())
}

func TestOpenFile_UnresolvablePath(t *testing.T) {
	env := newTestEnv(t)
	root := makeProject(t, map[string]string{"a.txt": "a"})
	env.mustInvoke(t, "open_workspace", map[string]string{"path": root})

	gone := t.TempDir()
	t.Chdir(gone)
	t.Setenv("PWD", gone)
	require.NoError(t, os.Remove(gone))

	_, err := env.invoke(t, "open_file", map[string]string{"path": "a.txt"})
	require.Error(t, err)
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))
	assert.Equal(t, "path", apperr.Details(err)["field"])
}

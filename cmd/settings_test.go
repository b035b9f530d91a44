package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joescharf/marie/internal/apperr"
	"github.com/joescharf/marie/internal/models"
)

func testCmd() *cobra.Command {
	c := &cobra.Command{}
	c.SetContext(context.Background())
	return c
}

func TestApplySetting(t *testing.T) {
	base := models.DefaultSettings()

	tests := []struct {
		key   string
		value string
		check func(t *testing.T, s models.AppSettings)
	}{
		{"theme", "light", func(t *testing.T, s models.AppSettings) { assert.Equal(t, "light", s.Theme) }},
		{"font_size", "16", func(t *testing.T, s models.AppSettings) { assert.Equal(t, 16, s.FontSize) }},
		{"git_auto_commit", "true", func(t *testing.T, s models.AppSettings) { assert.True(t, s.GitAutoCommit) }},
		{"font_family", "Fira Code", func(t *testing.T, s models.AppSettings) { assert.Equal(t, "Fira Code", s.FontFamily) }},
		{"layout.terminal.visible", "false", func(t *testing.T, s models.AppSettings) { assert.False(t, s.Layout.Terminal.Visible) }},
		{"layout.terminal.width", "120", func(t *testing.T, s models.AppSettings) { assert.Equal(t, 120, s.Layout.Terminal.Width) }},
	}
	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			got, err := applySetting(base, tt.key, tt.value)
			require.NoError(t, err)
			tt.check(t, got)
		})
	}
}

func TestApplySetting_Errors(t *testing.T) {
	base := models.DefaultSettings()

	_, err := applySetting(base, "colour", "red")
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))
	assert.Contains(t, err.Error(), "unknown setting")

	_, err = applySetting(base, "layout.dock.width", "1")
	assert.Contains(t, err.Error(), "unknown setting")

	_, err = applySetting(base, "font_size", "big")
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))
	assert.Contains(t, err.Error(), "bad value")
}

func TestSettingsSetAndShow(t *testing.T) {
	_, out := testEnv(t)
	cmd := testCmd()

	require.NoError(t, settingsSetRun(cmd, "theme", "light"))
	out.Reset()

	require.NoError(t, settingsShowRun(cmd))
	var got models.AppSettings
	require.NoError(t, json.Unmarshal(out.Bytes(), &got))
	assert.Equal(t, "light", got.Theme)

	// Range checks come from set_settings.
	err := settingsSetRun(cmd, "font_size", "500")
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))

	require.NoError(t, settingsResetRun(cmd))
	s, err := currentSettings(cmd)
	require.NoError(t, err)
	assert.Equal(t, models.DefaultSettings(), s)
}

func TestSettings_DryRun(t *testing.T) {
	testEnv(t)
	cmd := testCmd()
	dryRun = true
	ui.DryRun = true

	require.NoError(t, settingsSetRun(cmd, "theme", "light"))
	s, err := currentSettings(cmd)
	require.NoError(t, err)
	assert.Equal(t, "dark", s.Theme)
}

func TestInvokeArgs(t *testing.T) {
	args, err := invokeArgs("", nil)
	require.NoError(t, err)
	assert.Nil(t, args)

	args, err = invokeArgs(`{"path":"/tmp"}`, nil)
	require.NoError(t, err)
	assert.JSONEq(t, `{"path":"/tmp"}`, string(args))

	args, err = invokeArgs("-", strings.NewReader(`{"name":"v1"}`+"\n"))
	require.NoError(t, err)
	assert.JSONEq(t, `{"name":"v1"}`, string(args))

	_, err = invokeArgs("{oops", nil)
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))
}

func TestInvokeRun(t *testing.T) {
	_, out := testEnv(t)
	cmd := testCmd()
	p := filepath.Join(t.TempDir(), "hello.txt")

	args, _ := json.Marshal(map[string]string{"path": p, "content": "hello"})
	require.NoError(t, invokeRun(cmd, "write_file", string(args), nil))
	assert.Equal(t, "null\n", out.String())

	out.Reset()
	args, _ = json.Marshal(map[string]string{"path": p})
	require.NoError(t, invokeRun(cmd, "read_file", string(args), nil))
	assert.Equal(t, "hello\n", out.String())

	errOut := ui.ErrOut.(*bytes.Buffer)
	err := invokeRun(cmd, "read_file", `{"path":"`+filepath.Join(t.TempDir(), "nope")+`"}`, nil)
	require.Error(t, err)
	assert.Contains(t, errOut.String(), "Failed to read file")
}

func TestInvokeListRun(t *testing.T) {
	_, out := testEnv(t)

	require.NoError(t, invokeListRun(testCmd()))
	assert.Contains(t, out.String(), "open_workspace")
	assert.Contains(t, out.String(), "description?")
}

func TestCheckpointCommands(t *testing.T) {
	_, out := testEnv(t)
	cmd := testCmd()

	root := filepath.Join(t.TempDir(), "proj")
	require.NoError(t, os.MkdirAll(root, 0755))
	main := filepath.Join(root, "main.go")
	require.NoError(t, os.WriteFile(main, []byte("package main\n"), 0644))

	checkpointWorkspace = root
	checkpointDescription = "first"
	t.Cleanup(func() {
		checkpointWorkspace = ""
		checkpointDescription = ""
	})
	require.NoError(t, checkpointCreateRun(cmd, "v1"))
	assert.Contains(t, out.String(), "Created checkpoint")

	s, err := getStore(cmd.Context())
	require.NoError(t, err)
	list, err := s.ListCheckpoints(cmd.Context(), root)
	require.NoError(t, err)
	require.Len(t, list, 1)
	id := list[0].ID

	out.Reset()
	require.NoError(t, checkpointListRun(cmd))
	assert.Contains(t, out.String(), id)

	out.Reset()
	require.NoError(t, checkpointShowRun(cmd, id))
	assert.Contains(t, out.String(), "main.go")
	assert.Contains(t, out.String(), "first")

	require.NoError(t, os.WriteFile(main, []byte("changed\n"), 0644))
	checkpointWorkspace = ""
	require.NoError(t, checkpointRestoreRun(cmd, id))
	data, err := os.ReadFile(main)
	require.NoError(t, err)
	assert.Equal(t, "package main\n", string(data))

	require.NoError(t, checkpointDeleteRun(cmd, id))
	err = checkpointShowRun(cmd, id)
	assert.Equal(t, apperr.KindNotFound, apperr.KindOf(err))
}

func TestGitStatusRun_Static(t *testing.T) {
	_, out := testEnv(t)
	gitStatusJSON = true
	t.Cleanup(func() { gitStatusJSON = false })

	require.NoError(t, gitStatusRun(testCmd(), t.TempDir()))
	var st models.GitStatus
	require.NoError(t, json.Unmarshal(out.Bytes(), &st))
	assert.Equal(t, "main", st.Branch)
	assert.True(t, st.IsClean)
}

package cmd

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joescharf/marie/internal/output"
)

// testEnv sets up isolated config dir, viper, and output for testing.
// It returns the config dir and the buffer receiving stdout.
func testEnv(t *testing.T) (string, *bytes.Buffer) {
	t.Helper()
	dir := t.TempDir()

	// Override configDirFunc for tests
	origFunc := configDirFunc
	configDirFunc = func() (string, error) { return dir, nil }
	t.Cleanup(func() { configDirFunc = origFunc })

	// Reset viper
	viper.Reset()
	setDefaults(dir)
	viper.Set("git.enabled", false)
	viper.Set("watch.enabled", false)

	// Initialize output
	out := &bytes.Buffer{}
	ui = &output.UI{Out: out, ErrOut: &bytes.Buffer{}}

	dryRun = false
	configForce = false
	closeDeps()
	logger = nil
	t.Cleanup(closeDeps)

	return dir, out
}

func TestConfigInit_CreatesFile(t *testing.T) {
	dir, _ := testEnv(t)

	err := configInitRun()
	require.NoError(t, err)

	cfgPath := filepath.Join(dir, "config.yaml")
	data, err := os.ReadFile(cfgPath)
	require.NoError(t, err, "config file should exist")
	assert.Contains(t, string(data), "marie configuration")
	assert.Contains(t, string(data), "port: 7420")
	assert.Contains(t, string(data), `#   - "**/.git"`)
}

func TestConfigInit_TemplateIsValidYAML(t *testing.T) {
	dir, _ := testEnv(t)
	require.NoError(t, configInitRun())

	values := readConfigFileValues(filepath.Join(dir, "config.yaml"))
	assert.True(t, values["serve.port"])
	assert.True(t, values["watch.debounce"])
	assert.True(t, values["ai.rate_limit"])
	assert.False(t, values["workspace.ignore"], "ignore list is commented out")
}

func TestConfigInit_RefusesOverwrite(t *testing.T) {
	dir, _ := testEnv(t)

	// Create existing file
	cfgPath := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte("existing"), 0644))

	configForce = false
	err := configInitRun()
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "already exists")
}

func TestConfigInit_ForceOverwrite(t *testing.T) {
	dir, _ := testEnv(t)

	// Create existing file
	cfgPath := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte("existing"), 0644))

	configForce = true
	err := configInitRun()
	require.NoError(t, err)

	data, err := os.ReadFile(cfgPath)
	require.NoError(t, err)
	assert.Contains(t, string(data), "marie configuration")
}

func TestConfigInit_DryRun(t *testing.T) {
	dir, _ := testEnv(t)
	dryRun = true
	ui.DryRun = true
	defer func() { dryRun = false }()

	err := configInitRun()
	require.NoError(t, err)

	// File should NOT have been created
	cfgPath := filepath.Join(dir, "config.yaml")
	_, err = os.Stat(cfgPath)
	assert.True(t, os.IsNotExist(err), "config file should not exist in dry-run mode")
}

func TestConfigShow_NoFile(t *testing.T) {
	_, out := testEnv(t)

	err := configShowRun()
	require.NoError(t, err)
	assert.Contains(t, out.String(), "(none)")
	assert.Contains(t, out.String(), "serve.port")
	assert.Contains(t, out.String(), "(default)")
}

func TestConfigShow_WithFile(t *testing.T) {
	_, out := testEnv(t)

	// Create config first
	require.NoError(t, configInitRun())
	out.Reset()

	err := configShowRun()
	require.NoError(t, err)
	assert.Contains(t, out.String(), "(file)")
}

func TestConfigShow_MasksKeys(t *testing.T) {
	_, out := testEnv(t)
	viper.Set("anthropic.api_key", "sk-ant-secret-1234")

	require.NoError(t, configShowRun())
	assert.NotContains(t, out.String(), "sk-ant-secret")
	assert.Contains(t, out.String(), "****1234")
}

func TestConfigEdit_NoEditor(t *testing.T) {
	testEnv(t)
	t.Setenv("EDITOR", "")
	t.Setenv("VISUAL", "")

	err := configEditRun()
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "$EDITOR is not set")
}

func TestConfigEdit_NoConfigFile(t *testing.T) {
	testEnv(t)
	t.Setenv("EDITOR", "echo") // harmless command

	err := configEditRun()
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
}

func TestEnvVarFor(t *testing.T) {
	assert.Equal(t, "MARIE_SERVE_PORT", envVarFor("serve.port"))
	assert.Equal(t, "MARIE_DB_PATH", envVarFor("db_path"))
}

func TestDetectSource(t *testing.T) {
	fileValues := map[string]bool{"key_a": true}

	// From env
	t.Setenv("MARIE_TEST_KEY", "val")
	assert.Contains(t, detectSource("test_key", "MARIE_TEST_KEY", fileValues), "env")

	// From file
	assert.Contains(t, detectSource("key_a", "MARIE_KEY_A_NONEXISTENT", fileValues), "file")

	// Default
	assert.Contains(t, detectSource("key_b", "MARIE_KEY_B_NONEXISTENT", fileValues), "default")
}

func TestFlattenKeys(t *testing.T) {
	input := map[string]any{
		"top": "val",
		"nested": map[string]any{
			"a": "1",
			"b": "2",
		},
	}

	result := make(map[string]bool)
	flattenKeys("", input, result)

	assert.True(t, result["top"])
	assert.True(t, result["nested.a"])
	assert.True(t, result["nested.b"])
	assert.False(t, result["nested"])
}

func TestMaskSecret(t *testing.T) {
	assert.Equal(t, `""`, maskSecret(""))
	assert.Equal(t, "****", maskSecret("abc"))
	assert.Equal(t, "****wxyz", maskSecret("abcdwxyz"))
}

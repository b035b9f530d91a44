package cmd

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joescharf/marie/internal/daemon"
)

func TestPidFile_Path(t *testing.T) {
	dir, _ := testEnv(t)

	pf := pidFile()
	assert.Equal(t, filepath.Join(dir, "marie-serve.pid"), pf.Path)
}

func TestServeLogPath(t *testing.T) {
	dir, _ := testEnv(t)

	assert.Equal(t, filepath.Join(dir, "marie-serve.log"), serveLogPath())
}

func TestListenAddr(t *testing.T) {
	testEnv(t)
	assert.Equal(t, "127.0.0.1:7420", listenAddr())

	viper.Set("serve.addr", "::1")
	viper.Set("serve.port", 9000)
	assert.Equal(t, "[::1]:9000", listenAddr())
}

func TestServeStatusRun_NotRunning(t *testing.T) {
	_, out := testEnv(t)

	// No PID file exists, so status should show "not running" without error.
	err := serveStatusRun()
	assert.NoError(t, err)
	assert.Contains(t, out.String(), "not running")
}

func TestServeStatusRun_Running(t *testing.T) {
	_, out := testEnv(t)
	require.NoError(t, pidFile().Write("127.0.0.1:7420"))

	require.NoError(t, serveStatusRun())
	assert.Contains(t, out.String(), "http://127.0.0.1:7420")
}

func TestServeStatusRun_RemovesStale(t *testing.T) {
	testEnv(t)
	pf := pidFile()
	require.NoError(t, pf.WriteRecord(daemon.Record{PID: 999999}))

	require.NoError(t, serveStatusRun())
	_, err := pf.Read()
	assert.Error(t, err, "stale PID file removed")
}

func TestServeStopRun_NotRunning(t *testing.T) {
	testEnv(t)

	// No PID file exists, so stop should return an error.
	err := serveStopRun()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not running")
}

func TestServeStartRun_AlreadyRunning(t *testing.T) {
	testEnv(t)

	// Write a PID file for the current process (which is alive).
	pf := pidFile()
	require.NoError(t, pf.Write("127.0.0.1:7420"))
	t.Cleanup(func() { _ = pf.Remove() })

	err := serveStartRun()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already running")
}

func TestHTTPHandler(t *testing.T) {
	testEnv(t)

	h, err := newHTTPHandler(context.Background())
	require.NoError(t, err)

	req := httptest.NewRequest("GET", "/api/v1/health", nil)
	req.Host = "127.0.0.1:7420"
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)

	req = httptest.NewRequest("POST", "/api/v1/commands/get_settings", strings.NewReader(""))
	req.Host = "127.0.0.1:7420"
	req.Header.Set("Content-Type", "application/json")
	w = httptest.NewRecorder()
	h.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
	var env map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env))
	assert.Equal(t, true, env["success"])

	req = httptest.NewRequest("GET", "/", nil)
	req.Host = "127.0.0.1:7420"
	w = httptest.NewRecorder()
	h.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "marie")
}

func TestHTTPHandler_ForeignOrigin(t *testing.T) {
	testEnv(t)
	viper.Set("serve.allowed_origins", []string{"http://localhost:5173"})

	h, err := newHTTPHandler(context.Background())
	require.NoError(t, err)

	for _, path := range []string{"/mcp", "/api/v1/commands/get_settings"} {
		req := httptest.NewRequest("POST", path, strings.NewReader("{}"))
		req.Host = "127.0.0.1:7420"
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Origin", "https://evil.example")
		w := httptest.NewRecorder()
		h.ServeHTTP(w, req)
		assert.Equal(t, http.StatusForbidden, w.Code, path)
	}

	req := httptest.NewRequest("POST", "/api/v1/commands/get_settings", strings.NewReader("{}"))
	req.Host = "127.0.0.1:7420"
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Origin", "http://localhost:5173")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "http://localhost:5173", w.Header().Get("Access-Control-Allow-Origin"))
}

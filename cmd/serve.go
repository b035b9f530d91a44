package cmd

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/exec"
	"os/signal"
	"path/filepath"
	"strconv"
	"time"

	mcpserver "github.com/mark3labs/mcp-go/server"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/joescharf/marie/internal/api"
	"github.com/joescharf/marie/internal/daemon"
	"github.com/joescharf/marie/internal/mcp"
	webui "github.com/joescharf/marie/internal/ui"
)

const (
	shutdownTimeout = 5 * time.Second
	startWait       = 3 * time.Second
	stopWait        = 5 * time.Second
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API and embedded web UI",
	Long: `Start an HTTP server exposing every command at POST /api/v1/commands/{name},
an event stream at /api/v1/events and the embedded web UI.
By default it listens on 127.0.0.1:7420. Use --addr and --port to change it.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return serveRun(cmd.Context())
	},
}

var serveStartCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the server in the background",
	RunE: func(cmd *cobra.Command, args []string) error {
		return serveStartRun()
	},
}

var serveStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show whether the background server is running",
	RunE: func(cmd *cobra.Command, args []string) error {
		return serveStatusRun()
	},
}

var serveStopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Stop the background server",
	RunE: func(cmd *cobra.Command, args []string) error {
		return serveStopRun()
	},
}

func init() {
	serveCmd.AddCommand(serveStartCmd)
	serveCmd.AddCommand(serveStatusCmd)
	serveCmd.AddCommand(serveStopCmd)
	rootCmd.AddCommand(serveCmd)

	serveCmd.PersistentFlags().String("addr", "127.0.0.1", "address to listen on")
	serveCmd.PersistentFlags().IntP("port", "p", 7420, "port to listen on")
	_ = viper.BindPFlag("serve.addr", serveCmd.PersistentFlags().Lookup("addr"))
	_ = viper.BindPFlag("serve.port", serveCmd.PersistentFlags().Lookup("port"))
}

func pidFile() *daemon.PIDFile {
	return daemon.NewPIDFile(filepath.Join(viper.GetString("state_dir"), "marie-serve.pid"))
}

func serveLogPath() string {
	return filepath.Join(viper.GetString("state_dir"), "marie-serve.log")
}

func listenAddr() string {
	return net.JoinHostPort(viper.GetString("serve.addr"), strconv.Itoa(viper.GetInt("serve.port")))
}

// newHTTPHandler wires the API, the embedded UI and the MCP streamable
// HTTP transport into one handler.
func newHTTPHandler(ctx context.Context) (http.Handler, error) {
	d, err := getDispatcher(ctx, true)
	if err != nil {
		return nil, err
	}
	uiHandler, err := webui.Handler()
	if err != nil {
		return nil, fmt.Errorf("failed to initialize UI handler: %w", err)
	}

	apiSrv := api.NewServer(d, api.Options{
		Version:        buildVersion,
		Logger:         getLogger(),
		UI:             uiHandler,
		AllowedOrigins: viper.GetStringSlice("serve.allowed_origins"),
		AllowedHosts:   viper.GetStringSlice("serve.allowed_hosts"),
	})

	mux := http.NewServeMux()
	mcpSrv := mcp.NewServer(d, buildVersion, getLogger()).MCPServer()
	mux.Handle("/mcp", apiSrv.Protect(mcpserver.NewStreamableHTTPServer(mcpSrv)))
	mux.Handle("/", apiSrv.Router())
	return mux, nil
}

func serveRun(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	addr := listenAddr()

	pf := pidFile()
	if err := pf.Acquire(addr); err != nil {
		return err
	}
	defer func() { _ = pf.Remove() }()

	handler, err := newHTTPHandler(ctx)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(ctx, shutdownSignals()...)
	defer stop()

	srv := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	ui.Success("Serving marie at http://%s", addr)
	getLogger().Info("server started", zap.String("addr", addr), zap.Int("pid", os.Getpid()))

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("listen %s: %w", addr, err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	getLogger().Info("server stopping", zap.String("addr", addr))
	return srv.Shutdown(shutdownCtx)
}

// serveStartRun re-executes the binary as a detached `serve` process that
// logs to serveLogPath and waits until it has written its PID file.
func serveStartRun() error {
	pf := pidFile()
	if rec, running := pf.IsRunning(); running {
		return fmt.Errorf("server already running (PID %d, %s)", rec.PID, rec.URL())
	}

	exe, err := os.Executable()
	if err != nil {
		return fmt.Errorf("find executable: %w", err)
	}

	if dryRun {
		ui.DryRunMsg("Would start %s serve on %s", exe, listenAddr())
		return nil
	}

	if err := os.MkdirAll(viper.GetString("state_dir"), 0755); err != nil {
		return fmt.Errorf("create state directory: %w", err)
	}
	logFile, err := os.OpenFile(serveLogPath(), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return fmt.Errorf("open log file: %w", err)
	}
	defer logFile.Close()

	args := []string{"serve",
		"--addr", viper.GetString("serve.addr"),
		"--port", strconv.Itoa(viper.GetInt("serve.port")),
	}
	if cfgFile, _ := rootCmd.PersistentFlags().GetString("config"); cfgFile != "" {
		args = append(args, "--config", cfgFile)
	}

	child := exec.Command(exe, args...)
	child.Stdout = logFile
	child.Stderr = logFile
	setDaemonAttrs(child)
	if err := child.Start(); err != nil {
		return fmt.Errorf("start server: %w", err)
	}
	_ = child.Process.Release()

	deadline := time.Now().Add(startWait)
	for time.Now().Before(deadline) {
		if rec, running := pf.IsRunning(); running {
			ui.Success("Server started (PID %d) at %s", rec.PID, rec.URL())
			ui.VerboseLog("Logs: %s", serveLogPath())
			return nil
		}
		time.Sleep(100 * time.Millisecond)
	}
	return fmt.Errorf("server did not start within %s, see %s", startWait, serveLogPath())
}

func serveStatusRun() error {
	pf := pidFile()
	rec, running := pf.IsRunning()
	if !running {
		if rec.PID != 0 {
			ui.Warning("Removing stale PID file for PID %d", rec.PID)
			_ = pf.Remove()
		}
		ui.Info("Server is not running")
		return nil
	}
	ui.Success("Server running (PID %d) at %s", rec.PID, rec.URL())
	if !rec.StartedAt.IsZero() {
		ui.Info("Started %s", rec.StartedAt.Local().Format(time.RFC1123))
	}
	return nil
}

func serveStopRun() error {
	pf := pidFile()
	rec, running := pf.IsRunning()
	if !running {
		return fmt.Errorf("server is not running")
	}

	if dryRun {
		ui.DryRunMsg("Would stop server (PID %d)", rec.PID)
		return nil
	}

	if err := pf.Signal(sigTERM()); err != nil {
		return fmt.Errorf("signal PID %d: %w", rec.PID, err)
	}

	deadline := time.Now().Add(stopWait)
	for time.Now().Before(deadline) {
		if _, running := pf.IsRunning(); !running {
			_ = pf.Remove()
			ui.Success("Server stopped (PID %d)", rec.PID)
			return nil
		}
		time.Sleep(100 * time.Millisecond)
	}

	ui.Warning("Server did not stop within %s, killing PID %d", stopWait, rec.PID)
	if err := pf.Signal(sigKILL()); err != nil {
		return fmt.Errorf("kill PID %d: %w", rec.PID, err)
	}
	_ = pf.Remove()
	return nil
}

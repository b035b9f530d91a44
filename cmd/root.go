package cmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/joescharf/marie/internal/ai"
	"github.com/joescharf/marie/internal/checkpoint"
	"github.com/joescharf/marie/internal/commands"
	"github.com/joescharf/marie/internal/git"
	"github.com/joescharf/marie/internal/logging"
	"github.com/joescharf/marie/internal/output"
	"github.com/joescharf/marie/internal/state"
	"github.com/joescharf/marie/internal/store"
	"github.com/joescharf/marie/internal/workspace"
)

// Package-level shared dependencies, initialized in cobra.OnInitialize.
var (
	ui         *output.UI
	dataStore  *store.SQLiteStore
	logger     *zap.Logger
	dispatcher *commands.Dispatcher

	verbose bool
	dryRun  bool
)

var rootCmd = &cobra.Command{
	Use:   "marie",
	Short: "Editor backend - workspaces, files, checkpoints, git and AI",
	Long: `marie is the backend of an AI-assisted code editor.
It opens project folders, reads and writes files, keeps named checkpoints
of file contents, reports git status and forwards prompts to AI providers.
The same command set is served over HTTP (marie serve), MCP (marie mcp)
and the command line (marie invoke).`,
	SilenceUsage:      true,
	SilenceErrors:     true,
	DisableAutoGenTag: true,
}

// Execute is the main entry point called from main.go.
func Execute(version, commit, date string) {
	buildVersion = version
	buildCommit = commit
	buildDate = date

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig, initDeps)
	cobra.OnFinalize(closeDeps)

	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Verbose output")
	rootCmd.PersistentFlags().BoolVarP(&dryRun, "dry-run", "n", false, "Show what would happen without making changes")
	rootCmd.PersistentFlags().String("config", "", "Config file (default ~/.config/marie/config.yaml)")
}

func initConfig() {
	// If --config is explicitly set, use that file
	if cfgFile, _ := rootCmd.PersistentFlags().GetString("config"); cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		dir, err := configDirFunc()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: cannot find home directory: %v\n", err)
			os.Exit(1)
		}
		viper.AddConfigPath(dir)
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
	}

	viper.SetEnvPrefix("MARIE")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	dir, _ := configDirFunc()
	setDefaults(dir)

	// Read config file if it exists (optional)
	_ = viper.ReadInConfig()
}

// setDefaults registers the default of every config key.
func setDefaults(configDir string) {
	viper.SetDefault("state_dir", configDir)
	viper.SetDefault("db_path", filepath.Join(configDir, "marie.db"))
	viper.SetDefault("serve.addr", "127.0.0.1")
	viper.SetDefault("serve.port", 7420)
	viper.SetDefault("serve.allowed_origins", []string{})
	viper.SetDefault("serve.allowed_hosts", []string{})
	viper.SetDefault("log.level", "info")
	viper.SetDefault("log.format", "console")
	viper.SetDefault("commands.timeout", commands.DefaultTimeout.String())
	viper.SetDefault("files.atomic_write", true)
	viper.SetDefault("workspace.ignore", workspace.DefaultIgnore)
	viper.SetDefault("workspace.max_files", 20000)
	viper.SetDefault("workspace.max_depth", 0)
	viper.SetDefault("watch.enabled", true)
	viper.SetDefault("watch.debounce", "500ms")
	viper.SetDefault("checkpoint.max_files", 2000)
	viper.SetDefault("checkpoint.max_file_size", 1<<20)
	viper.SetDefault("git.enabled", true)
	viper.SetDefault("ai.timeout", "60s")
	viper.SetDefault("ai.max_retries", 2)
	viper.SetDefault("ai.rate_limit", 2.0)
	viper.SetDefault("ai.fallback.provider", "")
	viper.SetDefault("ai.fallback.model", "")
	viper.SetDefault("anthropic.api_key", "")
	viper.SetDefault("openai.api_key", "")
	viper.SetDefault("openai.base_url", ai.DefaultOpenAIBaseURL)
	viper.SetDefault("local.base_url", ai.DefaultLocalBaseURL)
}

func initDeps() {
	ui = output.New()
	ui.Verbose = verbose
	ui.DryRun = dryRun

	// Store, logger and dispatcher are built lazily, only when commands
	// actually need them. This allows config/version to run without a db.
}

// closeDeps releases whatever the command opened.
func closeDeps() {
	if dispatcher != nil {
		dispatcher.Close()
		dispatcher = nil
	}
	if dataStore != nil {
		_ = dataStore.Close()
		dataStore = nil
	}
	if logger != nil {
		_ = logger.Sync()
	}
}

// getStore returns the shared store, initializing it on first call.
func getStore(ctx context.Context) (*store.SQLiteStore, error) {
	if dataStore != nil {
		return dataStore, nil
	}

	dbPath := viper.GetString("db_path")
	s, err := store.NewSQLiteStore(dbPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if err := s.Migrate(ctx); err != nil {
		_ = s.Close()
		return nil, fmt.Errorf("migrate database: %w", err)
	}

	dataStore = s
	return dataStore, nil
}

// getLogger returns the shared logger. --verbose forces debug level.
func getLogger() *zap.Logger {
	if logger != nil {
		return logger
	}
	level := viper.GetString("log.level")
	if verbose {
		level = "debug"
	}
	l, err := logging.New(logging.Config{Level: level, Format: viper.GetString("log.format")})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Warning: %v, logging disabled\n", err)
		l = zap.NewNop()
	}
	logger = l
	return logger
}

// gitClient returns the real git client, or the static one when git is
// disabled in config.
func gitClient() git.Client {
	if !viper.GetBool("git.enabled") {
		return git.NewStatic()
	}
	return git.NewClient()
}

// apiKey reads a config key and falls back to the provider's usual
// environment variable.
func apiKey(key, env string) string {
	if v := viper.GetString(key); v != "" {
		return v
	}
	return os.Getenv(env)
}

func aiRouter(l *zap.Logger) *ai.Router {
	timeout := viper.GetDuration("ai.timeout")
	retries := viper.GetInt("ai.max_retries")

	anthropic := ai.NewAnthropic(ai.AnthropicOptions{
		APIKey:     apiKey("anthropic.api_key", "ANTHROPIC_API_KEY"),
		Timeout:    timeout,
		MaxRetries: retries,
	})
	openai := ai.NewOpenAI(ai.ChatOptions{
		BaseURL:    viper.GetString("openai.base_url"),
		APIKey:     apiKey("openai.api_key", "OPENAI_API_KEY"),
		Timeout:    timeout,
		MaxRetries: retries,
	})
	local := ai.NewLocal(ai.ChatOptions{
		BaseURL:    viper.GetString("local.base_url"),
		Timeout:    timeout,
		MaxRetries: retries,
	})

	return ai.NewRouter(ai.RouterOptions{
		RateLimit: viper.GetFloat64("ai.rate_limit"),
		Timeout:   timeout,
		Fallback: ai.Fallback{
			Provider: viper.GetString("ai.fallback.provider"),
			Model:    viper.GetString("ai.fallback.model"),
		},
		Logger: l,
	}, anthropic, openai, local)
}

// getDispatcher builds the command dispatcher over the store, with the
// stored settings loaded into a fresh application state.
func getDispatcher(ctx context.Context, watch bool) (*commands.Dispatcher, error) {
	if dispatcher != nil {
		return dispatcher, nil
	}
	s, err := getStore(ctx)
	if err != nil {
		return nil, err
	}
	settings, err := commands.LoadSettings(ctx, s)
	if err != nil {
		return nil, err
	}
	l := getLogger()

	scanner := workspace.NewScanner()
	scanner.Ignore = viper.GetStringSlice("workspace.ignore")
	scanner.MaxFiles = viper.GetInt("workspace.max_files")
	scanner.MaxDepth = viper.GetInt("workspace.max_depth")
	scanner.Logger = l

	app := state.New(settings)
	g := gitClient()
	atomic := viper.GetBool("files.atomic_write")

	dispatcher = commands.New(commands.Deps{
		State:   app,
		Store:   s,
		Git:     g,
		AI:      aiRouter(l),
		Scanner: scanner,
		Logger:  l,
		Checkpoints: checkpoint.New(s, app, g, checkpoint.Options{
			MaxFiles:    viper.GetInt("checkpoint.max_files"),
			MaxFileSize: viper.GetInt64("checkpoint.max_file_size"),
			AtomicWrite: atomic,
			Logger:      l,
		}),
		Timeout:       viper.GetDuration("commands.timeout"),
		AITimeout:     viper.GetDuration("ai.timeout"),
		AtomicWrite:   atomic,
		WatchEnabled:  watch && viper.GetBool("watch.enabled"),
		WatchDebounce: viper.GetDuration("watch.debounce"),
	})
	return dispatcher, nil
}

package cmd

import (
	"bytes"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"text/template"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

var configForce bool

// configDirFunc returns the config directory path, replaceable in tests.
var configDirFunc = defaultConfigDir

func defaultConfigDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", "marie"), nil
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show or manage configuration",
	Long: `Show or manage marie configuration.

Running bare 'marie config' is the same as 'marie config show'.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return configShowRun()
	},
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Create config file with commented defaults",
	RunE: func(cmd *cobra.Command, args []string) error {
		return configInitRun()
	},
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show effective configuration with sources",
	RunE: func(cmd *cobra.Command, args []string) error {
		return configShowRun()
	},
}

var configEditCmd = &cobra.Command{
	Use:   "edit",
	Short: "Open config file in $EDITOR",
	RunE: func(cmd *cobra.Command, args []string) error {
		return configEditRun()
	},
}

func init() {
	configInitCmd.Flags().BoolVar(&configForce, "force", false, "Overwrite existing config file")
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configEditCmd)
	rootCmd.AddCommand(configCmd)
}

// configTemplate is the template for generating config.yaml with comments.
const configTemplate = `# marie configuration
# See: marie config show (for effective values and sources)

# State/data directory (default: ~/.config/marie)
# state_dir: {{ .StateDir }}

# SQLite database path (default: ~/.config/marie/marie.db)
# db_path: {{ .DBPath }}

# HTTP server (marie serve)
serve:
  addr: "{{ .ServeAddr }}"
  port: {{ .ServePort }}
  # Browser origins allowed to call the API besides the server's own
  # allowed_origins: ["http://localhost:5173"]
  # Host header names accepted besides loopback
  # allowed_hosts: []

log:
  # debug, info, warn, error
  level: "{{ .LogLevel }}"
  # console or json
  format: "{{ .LogFormat }}"

commands:
  # Deadline for a single command
  timeout: "{{ .CommandsTimeout }}"

files:
  # Write through a temp file and rename
  atomic_write: {{ .AtomicWrite }}

workspace:
  # Maximum entries listed per workspace (0 = unlimited)
  max_files: {{ .WorkspaceMaxFiles }}
  # Maximum directory depth (0 = unlimited)
  max_depth: {{ .WorkspaceMaxDepth }}
  # Ignore patterns (doublestar syntax)
  # ignore:
{{- range .WorkspaceIgnore }}
  #   - "{{ . }}"
{{- end }}

watch:
  # Rescan the open workspace when files change on disk
  enabled: {{ .WatchEnabled }}
  debounce: "{{ .WatchDebounce }}"

checkpoint:
  # Whole-workspace captures stop after this many files
  max_files: {{ .CheckpointMaxFiles }}
  # Larger files are skipped (bytes)
  max_file_size: {{ .CheckpointMaxFileSize }}

git:
  # When false, git commands use a fixed clean status on "main"
  enabled: {{ .GitEnabled }}

ai:
  timeout: "{{ .AITimeout }}"
  max_retries: {{ .AIMaxRetries }}
  # Requests per second across providers (0 = unlimited)
  rate_limit: {{ .AIRateLimit }}
  # Tried once when the selected provider fails with a network or API error
  # fallback:
  #   provider: "local"
  #   model: "llama3"

# API keys fall back to ANTHROPIC_API_KEY / OPENAI_API_KEY
anthropic:
  api_key: ""
openai:
  api_key: ""
  base_url: "{{ .OpenAIBaseURL }}"
local:
  base_url: "{{ .LocalBaseURL }}"
`

type configTemplateData struct {
	StateDir              string
	DBPath                string
	ServeAddr             string
	ServePort             int
	LogLevel              string
	LogFormat             string
	CommandsTimeout       string
	AtomicWrite           bool
	WorkspaceMaxFiles     int
	WorkspaceMaxDepth     int
	WorkspaceIgnore       []string
	WatchEnabled          bool
	WatchDebounce         string
	CheckpointMaxFiles    int
	CheckpointMaxFileSize int64
	GitEnabled            bool
	AITimeout             string
	AIMaxRetries          int
	AIRateLimit           float64
	OpenAIBaseURL         string
	LocalBaseURL          string
}

func configFilePath() (string, error) {
	dir, err := configDirFunc()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.yaml"), nil
}

func configInitRun() error {
	cfgPath, err := configFilePath()
	if err != nil {
		return err
	}

	// Check if file already exists
	if _, err := os.Stat(cfgPath); err == nil {
		if !configForce {
			return fmt.Errorf("config file already exists: %s (use --force to overwrite)", cfgPath)
		}
		ui.Warning("Overwriting existing config file")
	}

	// Build template data from current viper values
	data := configTemplateData{
		StateDir:              viper.GetString("state_dir"),
		DBPath:                viper.GetString("db_path"),
		ServeAddr:             viper.GetString("serve.addr"),
		ServePort:             viper.GetInt("serve.port"),
		LogLevel:              viper.GetString("log.level"),
		LogFormat:             viper.GetString("log.format"),
		CommandsTimeout:       viper.GetDuration("commands.timeout").String(),
		AtomicWrite:           viper.GetBool("files.atomic_write"),
		WorkspaceMaxFiles:     viper.GetInt("workspace.max_files"),
		WorkspaceMaxDepth:     viper.GetInt("workspace.max_depth"),
		WorkspaceIgnore:       viper.GetStringSlice("workspace.ignore"),
		WatchEnabled:          viper.GetBool("watch.enabled"),
		WatchDebounce:         viper.GetDuration("watch.debounce").String(),
		CheckpointMaxFiles:    viper.GetInt("checkpoint.max_files"),
		CheckpointMaxFileSize: viper.GetInt64("checkpoint.max_file_size"),
		GitEnabled:            viper.GetBool("git.enabled"),
		AITimeout:             viper.GetDuration("ai.timeout").String(),
		AIMaxRetries:          viper.GetInt("ai.max_retries"),
		AIRateLimit:           viper.GetFloat64("ai.rate_limit"),
		OpenAIBaseURL:         viper.GetString("openai.base_url"),
		LocalBaseURL:          viper.GetString("local.base_url"),
	}

	tmpl, err := template.New("config").Parse(configTemplate)
	if err != nil {
		return fmt.Errorf("template parse error: %w", err)
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return fmt.Errorf("template execute error: %w", err)
	}

	if dryRun {
		ui.DryRunMsg("Would create config file: %s", cfgPath)
		fmt.Fprintln(ui.Out)
		fmt.Fprint(ui.Out, buf.String())
		return nil
	}

	// Create config directory
	dir := filepath.Dir(cfgPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	if err := os.WriteFile(cfgPath, buf.Bytes(), 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	ui.Success("Config file created: %s", cfgPath)
	fmt.Fprintln(ui.Out)
	fmt.Fprint(ui.Out, buf.String())
	return nil
}

// configKeys lists the keys shown by config show, in display order.
var configKeys = []string{
	"state_dir",
	"db_path",
	"serve.addr",
	"serve.port",
	"serve.allowed_origins",
	"serve.allowed_hosts",
	"log.level",
	"log.format",
	"commands.timeout",
	"files.atomic_write",
	"workspace.ignore",
	"workspace.max_files",
	"workspace.max_depth",
	"watch.enabled",
	"watch.debounce",
	"checkpoint.max_files",
	"checkpoint.max_file_size",
	"git.enabled",
	"ai.timeout",
	"ai.max_retries",
	"ai.rate_limit",
	"ai.fallback.provider",
	"ai.fallback.model",
	"anthropic.api_key",
	"openai.api_key",
	"openai.base_url",
	"local.base_url",
}

// envVarFor returns the environment variable that overrides key.
func envVarFor(key string) string {
	return "MARIE_" + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
}

func configShowRun() error {
	cfgPath, err := configFilePath()
	if err != nil {
		return err
	}

	// Check if config file exists
	if _, err := os.Stat(cfgPath); err == nil {
		ui.Info("Config file: %s", cfgPath)
	} else {
		ui.Info("Config file: (none)")
	}
	fmt.Fprintln(ui.Out)

	// Read config file values to determine file source
	fileValues := readConfigFileValues(cfgPath)

	for _, k := range configKeys {
		val := viper.Get(k)
		if strings.HasSuffix(k, "api_key") {
			val = maskSecret(viper.GetString(k))
		}
		source := detectSource(k, envVarFor(k), fileValues)
		fmt.Fprintf(ui.Out, "  %-26s %v  %s\n", k, val, source)
	}

	return nil
}

// maskSecret keeps the last four characters of a key.
func maskSecret(s string) string {
	if s == "" {
		return `""`
	}
	if len(s) <= 4 {
		return "****"
	}
	return "****" + s[len(s)-4:]
}

// readConfigFileValues reads the raw YAML file and returns a flat map of keys present in it.
func readConfigFileValues(path string) map[string]bool {
	result := make(map[string]bool)

	data, err := os.ReadFile(path)
	if err != nil {
		return result
	}

	var parsed map[string]any
	if err := yaml.Unmarshal(data, &parsed); err != nil {
		return result
	}

	// Flatten nested keys with dot notation
	flattenKeys("", parsed, result)
	return result
}

// flattenKeys recursively flattens a nested map to dot-notation keys.
func flattenKeys(prefix string, m map[string]any, result map[string]bool) {
	for key, val := range m {
		fullKey := key
		if prefix != "" {
			fullKey = prefix + "." + key
		}
		if nested, ok := val.(map[string]any); ok {
			flattenKeys(fullKey, nested, result)
		} else {
			result[fullKey] = true
		}
	}
}

// detectSource determines where a config value is coming from.
func detectSource(key, envVar string, fileValues map[string]bool) string {
	if _, ok := os.LookupEnv(envVar); ok {
		return fmt.Sprintf("(env: %s)", envVar)
	}
	if fileValues[key] {
		return "(file)"
	}
	return "(default)"
}

func configEditRun() error {
	editor := os.Getenv("EDITOR")
	if editor == "" {
		editor = os.Getenv("VISUAL")
	}
	if editor == "" {
		return fmt.Errorf("$EDITOR is not set (e.g. export EDITOR=vim)")
	}

	cfgPath, err := configFilePath()
	if err != nil {
		return err
	}

	if _, err := os.Stat(cfgPath); os.IsNotExist(err) {
		return fmt.Errorf("config file not found: %s (run 'marie config init' first)", cfgPath)
	}

	if dryRun {
		ui.DryRunMsg("Would open %s in %s", cfgPath, editor)
		return nil
	}

	editCmd := exec.Command(editor, cfgPath)
	editCmd.Stdin = os.Stdin
	editCmd.Stdout = os.Stdout
	editCmd.Stderr = os.Stderr
	return editCmd.Run()
}

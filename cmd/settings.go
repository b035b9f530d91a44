package cmd

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/joescharf/marie/internal/apperr"
	"github.com/joescharf/marie/internal/models"
)

var settingsCmd = &cobra.Command{
	Use:   "settings",
	Short: "Show or change editor settings",
	Long: `Show or change the persisted editor settings.

Running bare 'marie settings' is the same as 'marie settings show'.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return settingsShowRun(cmd)
	},
}

var settingsShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the current settings as JSON",
	RunE: func(cmd *cobra.Command, args []string) error {
		return settingsShowRun(cmd)
	},
}

var settingsSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Change one setting",
	Long: `Change one setting. Nested keys use dots and values are parsed as JSON
when possible, otherwise taken as a string:

  marie settings set theme light
  marie settings set font_size 16
  marie settings set layout.terminal.visible false`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return settingsSetRun(cmd, args[0], args[1])
	},
}

var settingsResetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Restore the default settings",
	RunE: func(cmd *cobra.Command, args []string) error {
		return settingsResetRun(cmd)
	},
}

func init() {
	settingsCmd.AddCommand(settingsShowCmd)
	settingsCmd.AddCommand(settingsSetCmd)
	settingsCmd.AddCommand(settingsResetCmd)
	rootCmd.AddCommand(settingsCmd)
}

func currentSettings(cmd *cobra.Command) (models.AppSettings, error) {
	d, err := getDispatcher(cmd.Context(), false)
	if err != nil {
		return models.AppSettings{}, err
	}
	out, err := d.Invoke(cmd.Context(), "get_settings", nil)
	if err != nil {
		return models.AppSettings{}, err
	}
	return out.(models.AppSettings), nil
}

func saveSettings(cmd *cobra.Command, s models.AppSettings) error {
	d, err := getDispatcher(cmd.Context(), false)
	if err != nil {
		return err
	}
	args, err := json.Marshal(map[string]any{"settings": s})
	if err != nil {
		return err
	}
	_, err = d.Invoke(cmd.Context(), "set_settings", args)
	return err
}

func settingsShowRun(cmd *cobra.Command) error {
	s, err := currentSettings(cmd)
	if err != nil {
		return err
	}
	return ui.JSON(s)
}

func settingsSetRun(cmd *cobra.Command, key, value string) error {
	s, err := currentSettings(cmd)
	if err != nil {
		return err
	}
	next, err := applySetting(s, key, value)
	if err != nil {
		return err
	}
	if dryRun {
		ui.DryRunMsg("Would set %s = %s", key, value)
		return nil
	}
	if err := saveSettings(cmd, next); err != nil {
		return err
	}
	ui.Success("Set %s = %s", key, value)
	return nil
}

func settingsResetRun(cmd *cobra.Command) error {
	if dryRun {
		ui.DryRunMsg("Would reset settings to defaults")
		return nil
	}
	if err := saveSettings(cmd, models.DefaultSettings()); err != nil {
		return err
	}
	ui.Success("Settings reset to defaults")
	return nil
}

// applySetting returns s with the dotted key set to value. Unknown keys and
// values of the wrong type are validation errors; range checks are left to
// set_settings.
func applySetting(s models.AppSettings, key, value string) (models.AppSettings, error) {
	data, err := json.Marshal(s)
	if err != nil {
		return s, err
	}
	var tree map[string]any
	if err := json.Unmarshal(data, &tree); err != nil {
		return s, err
	}

	parts := strings.Split(key, ".")
	node := tree
	for _, p := range parts[:len(parts)-1] {
		next, ok := node[p].(map[string]any)
		if !ok {
			return s, apperr.Invalid(key, "unknown setting")
		}
		node = next
	}

	var v any
	if err := json.Unmarshal([]byte(value), &v); err != nil {
		v = value
	}
	node[parts[len(parts)-1]] = v

	data, err = json.Marshal(tree)
	if err != nil {
		return s, err
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	var out models.AppSettings
	if err := dec.Decode(&out); err != nil {
		if strings.Contains(err.Error(), "unknown field") {
			return s, apperr.Invalid(key, "unknown setting")
		}
		return s, apperr.Invalid(key, fmt.Sprintf("bad value %q", value))
	}
	return out, nil
}

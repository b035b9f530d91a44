package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/joescharf/marie/internal/apperr"
)

var invokeList bool

var invokeCmd = &cobra.Command{
	Use:   "invoke <command> [json-args]",
	Short: "Run one command and print its result as JSON",
	Long: `Run one marie command in-process and print its result.

Arguments are a JSON object, given inline or as "-" to read stdin:

  marie invoke read_file '{"path":"/tmp/notes.md"}'
  echo '{"name":"v1"}' | marie invoke create_checkpoint -

Use --list to show the available commands.`,
	Args: func(cmd *cobra.Command, args []string) error {
		if invokeList {
			return cobra.NoArgs(cmd, args)
		}
		return cobra.RangeArgs(1, 2)(cmd, args)
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		if invokeList {
			return invokeListRun(cmd)
		}
		var raw string
		if len(args) > 1 {
			raw = args[1]
		}
		return invokeRun(cmd, args[0], raw, os.Stdin)
	},
}

func init() {
	invokeCmd.Flags().BoolVarP(&invokeList, "list", "l", false, "List available commands")
	rootCmd.AddCommand(invokeCmd)
}

// invokeArgs turns the command line argument into JSON args.
func invokeArgs(raw string, stdin io.Reader) (json.RawMessage, error) {
	if raw == "-" {
		data, err := io.ReadAll(stdin)
		if err != nil {
			return nil, fmt.Errorf("read stdin: %w", err)
		}
		raw = string(data)
	}
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	if !json.Valid([]byte(raw)) {
		return nil, apperr.Invalid("args", "not valid JSON")
	}
	return json.RawMessage(raw), nil
}

func invokeRun(cmd *cobra.Command, name, raw string, stdin io.Reader) error {
	args, err := invokeArgs(raw, stdin)
	if err != nil {
		return err
	}
	d, err := getDispatcher(cmd.Context(), false)
	if err != nil {
		return err
	}
	result, err := d.Invoke(cmd.Context(), name, args)
	if err != nil {
		ui.Failure(err)
		return fmt.Errorf("%s failed", name)
	}
	return ui.JSON(result)
}

func invokeListRun(cmd *cobra.Command) error {
	d, err := getDispatcher(cmd.Context(), false)
	if err != nil {
		return err
	}
	table := ui.Table([]string{"Command", "Args", "Description"})
	for _, c := range d.Commands() {
		var params []string
		for _, p := range c.Params {
			name := p.Name
			if !p.Required {
				name += "?"
			}
			params = append(params, name)
		}
		_ = table.Append([]string{c.Name, strings.Join(params, ", "), c.Description})
	}
	return table.Render()
}

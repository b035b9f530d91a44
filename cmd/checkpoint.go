package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/joescharf/marie/internal/commands"
	"github.com/joescharf/marie/internal/models"
	"github.com/joescharf/marie/internal/output"
)

var (
	checkpointWorkspace   string
	checkpointDescription string
)

var checkpointCmd = &cobra.Command{
	Use:     "checkpoint",
	Aliases: []string{"cp"},
	Short:   "Manage checkpoints of workspace files",
}

var checkpointListCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls"},
	Short:   "List checkpoints, newest first",
	Long:    "List checkpoints of --workspace, or of every workspace when it is not set.",
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return checkpointListRun(cmd)
	},
}

var checkpointCreateCmd = &cobra.Command{
	Use:   "create <name>",
	Short: "Snapshot the files of a workspace",
	Long:  "Snapshot every text file of --workspace (default: the current directory).",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return checkpointCreateRun(cmd, args[0])
	},
}

var checkpointShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Show a checkpoint and its files",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return checkpointShowRun(cmd, args[0])
	},
}

var checkpointRestoreCmd = &cobra.Command{
	Use:   "restore <id>",
	Short: "Write checkpoint files back to disk",
	Long:  "Restore into --workspace, or into the workspace the checkpoint was taken from.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return checkpointRestoreRun(cmd, args[0])
	},
}

var checkpointDeleteCmd = &cobra.Command{
	Use:     "delete <id>",
	Aliases: []string{"rm"},
	Short:   "Delete a checkpoint",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return checkpointDeleteRun(cmd, args[0])
	},
}

func init() {
	checkpointCmd.PersistentFlags().StringVarP(&checkpointWorkspace, "workspace", "w", "", "Workspace folder")
	checkpointCreateCmd.Flags().StringVarP(&checkpointDescription, "description", "d", "", "Checkpoint description")

	checkpointCmd.AddCommand(checkpointListCmd)
	checkpointCmd.AddCommand(checkpointCreateCmd)
	checkpointCmd.AddCommand(checkpointShowCmd)
	checkpointCmd.AddCommand(checkpointRestoreCmd)
	checkpointCmd.AddCommand(checkpointDeleteCmd)
	rootCmd.AddCommand(checkpointCmd)
}

// invokeJSON marshals args and runs one command.
func invokeJSON(cmd *cobra.Command, d *commands.Dispatcher, name string, args any) (any, error) {
	var raw json.RawMessage
	if args != nil {
		data, err := json.Marshal(args)
		if err != nil {
			return nil, err
		}
		raw = data
	}
	return d.Invoke(cmd.Context(), name, raw)
}

// openWorkspaceFlag opens path, or the current directory when it is empty.
func openWorkspaceFlag(cmd *cobra.Command, d *commands.Dispatcher, path string) (*models.Workspace, error) {
	if path == "" {
		wd, err := os.Getwd()
		if err != nil {
			return nil, err
		}
		path = wd
	}
	out, err := invokeJSON(cmd, d, "open_workspace", map[string]string{"path": path})
	if err != nil {
		return nil, err
	}
	return out.(*models.Workspace), nil
}

func checkpointListRun(cmd *cobra.Command) error {
	d, err := getDispatcher(cmd.Context(), false)
	if err != nil {
		return err
	}
	var wsPath string
	if checkpointWorkspace != "" {
		if wsPath, err = filepath.Abs(checkpointWorkspace); err != nil {
			return err
		}
	}
	out, err := invokeJSON(cmd, d, "list_checkpoints", map[string]string{"workspace_path": wsPath})
	if err != nil {
		return err
	}
	list := out.([]models.CheckpointSummary)
	if len(list) == 0 {
		ui.Info("No checkpoints")
		return nil
	}

	table := ui.Table([]string{"ID", "Name", "Files", "Created", "Workspace"})
	for _, c := range list {
		_ = table.Append([]string{
			c.ID,
			c.Name,
			strconv.Itoa(c.FileCount),
			c.Timestamp,
			c.Metadata[models.MetaWorkspacePath],
		})
	}
	return table.Render()
}

func checkpointCreateRun(cmd *cobra.Command, name string) error {
	d, err := getDispatcher(cmd.Context(), false)
	if err != nil {
		return err
	}
	ws, err := openWorkspaceFlag(cmd, d, checkpointWorkspace)
	if err != nil {
		return err
	}

	if dryRun {
		ui.DryRunMsg("Would create checkpoint %q of %s", name, ws.Path)
		return nil
	}

	args := map[string]any{"name": name}
	if checkpointDescription != "" {
		args["description"] = checkpointDescription
	}
	out, err := invokeJSON(cmd, d, "create_checkpoint", args)
	if err != nil {
		return err
	}
	cp := out.(*models.Checkpoint)
	ui.Success("Created checkpoint %s (%s, %d files)", output.Cyan(cp.Name), cp.ID, len(cp.Files))
	if skipped := cp.Metadata[models.MetaSkipped]; skipped != "" && skipped != "0" {
		ui.Warning("Skipped %s files (binary, too large or unreadable)", skipped)
	}
	return nil
}

func checkpointShowRun(cmd *cobra.Command, id string) error {
	d, err := getDispatcher(cmd.Context(), false)
	if err != nil {
		return err
	}
	out, err := invokeJSON(cmd, d, "get_checkpoint", map[string]string{"id": id})
	if err != nil {
		return err
	}
	cp := out.(*models.Checkpoint)

	fmt.Fprintf(ui.Out, "ID:          %s\n", cp.ID)
	fmt.Fprintf(ui.Out, "Name:        %s\n", output.Cyan(cp.Name))
	if cp.Description != nil {
		fmt.Fprintf(ui.Out, "Description: %s\n", *cp.Description)
	}
	fmt.Fprintf(ui.Out, "Created:     %s\n", cp.Timestamp)
	keys := make([]string, 0, len(cp.Metadata))
	for k := range cp.Metadata {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(ui.Out, "  %-16s %s\n", k, cp.Metadata[k])
	}
	fmt.Fprintln(ui.Out)

	paths := make([]string, 0, len(cp.Files))
	for p := range cp.Files {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	table := ui.Table([]string{"File", "Bytes"})
	for _, p := range paths {
		_ = table.Append([]string{p, strconv.Itoa(len(cp.Files[p]))})
	}
	return table.Render()
}

func checkpointRestoreRun(cmd *cobra.Command, id string) error {
	d, err := getDispatcher(cmd.Context(), false)
	if err != nil {
		return err
	}
	target := checkpointWorkspace
	if target == "" {
		out, err := invokeJSON(cmd, d, "get_checkpoint", map[string]string{"id": id})
		if err != nil {
			return err
		}
		target = out.(*models.Checkpoint).Metadata[models.MetaWorkspacePath]
	}
	ws, err := openWorkspaceFlag(cmd, d, target)
	if err != nil {
		return err
	}

	if dryRun {
		ui.DryRunMsg("Would restore checkpoint %s into %s", id, ws.Path)
		return nil
	}

	out, err := invokeJSON(cmd, d, "restore_checkpoint", map[string]string{"id": id})
	if err != nil {
		return err
	}
	sum := out.(*models.CheckpointSummary)
	ui.Success("Restored %d files from %s into %s", sum.FileCount, output.Cyan(sum.Name), ws.Path)
	return nil
}

func checkpointDeleteRun(cmd *cobra.Command, id string) error {
	d, err := getDispatcher(cmd.Context(), false)
	if err != nil {
		return err
	}
	if dryRun {
		ui.DryRunMsg("Would delete checkpoint %s", id)
		return nil
	}
	if _, err := invokeJSON(cmd, d, "delete_checkpoint", map[string]string{"id": id}); err != nil {
		return err
	}
	ui.Success("Deleted checkpoint %s", id)
	return nil
}

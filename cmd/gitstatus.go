package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/joescharf/marie/internal/models"
	"github.com/joescharf/marie/internal/output"
)

var gitStatusJSON bool

var gitStatusCmd = &cobra.Command{
	Use:   "git-status [path]",
	Short: "Show the git status of a folder",
	Long:  "Show branch, ahead/behind counts and changed files of the repository at path (default: the current directory).",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path := "."
		if len(args) == 1 {
			path = args[0]
		}
		return gitStatusRun(cmd, path)
	},
}

func init() {
	gitStatusCmd.Flags().BoolVar(&gitStatusJSON, "json", false, "Print the status as JSON")
	rootCmd.AddCommand(gitStatusCmd)
}

func gitStatusRun(cmd *cobra.Command, path string) error {
	abs, err := filepath.Abs(path)
	if err != nil {
		return err
	}
	if _, err := os.Stat(abs); err != nil {
		return fmt.Errorf("%s: %w", abs, err)
	}

	st, err := gitClient().Status(cmd.Context(), abs)
	if err != nil {
		return err
	}
	if gitStatusJSON {
		return ui.JSON(st)
	}
	printGitStatus(st)
	return nil
}

func printGitStatus(st *models.GitStatus) {
	fmt.Fprintf(ui.Out, "On branch %s  %s", output.Cyan(st.Branch), output.CleanColor(st.IsClean))
	if st.Ahead > 0 || st.Behind > 0 {
		fmt.Fprintf(ui.Out, "  (ahead %d, behind %d)", st.Ahead, st.Behind)
	}
	fmt.Fprintln(ui.Out)

	sections := []struct {
		title string
		files []string
		color func(string) string
	}{
		{"Staged", st.StagedFiles, output.Green},
		{"Modified", st.ModifiedFiles, output.Yellow},
		{"Untracked", st.UntrackedFiles, output.Red},
	}
	for _, s := range sections {
		if len(s.files) == 0 {
			continue
		}
		fmt.Fprintf(ui.Out, "\n%s:\n", s.title)
		for _, f := range s.files {
			fmt.Fprintf(ui.Out, "  %s\n", s.color(f))
		}
	}
}

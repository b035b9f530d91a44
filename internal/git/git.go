package git

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"

	"github.com/joescharf/marie/internal/apperr"
	"github.com/joescharf/marie/internal/models"
)

// ErrNotRepo is the cause reported when a workspace is not inside a repository.
var ErrNotRepo = errors.New("not a git repository")

// Client defines the version control operations the editor needs.
// All methods take the workspace path since the open workspace can change.
// Errors are apperr.ExternalToolError values with tool "git".
type Client interface {
	IsRepo(ctx context.Context, path string) bool
	RepoRoot(ctx context.Context, path string) (string, error)
	CurrentBranch(ctx context.Context, path string) (string, error)
	Status(ctx context.Context, path string) (*models.GitStatus, error)
	Init(ctx context.Context, path string) error
	Add(ctx context.Context, path string, files []string) error
	Commit(ctx context.Context, path, message string, files []string) error
	Branches(ctx context.Context, path string) ([]string, error)
	Checkout(ctx context.Context, path, branch string) error
}

// RealClient implements Client using real git commands.
type RealClient struct{}

// NewClient returns a new RealClient.
func NewClient() *RealClient {
	return &RealClient{}
}

func gitRaw(ctx context.Context, path string, args ...string) (string, error) {
	fullArgs := append([]string{"-C", path}, args...)
	cmd := exec.CommandContext(ctx, "git", fullArgs...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	out, err := cmd.Output()
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return "", apperr.Tool("git", apperr.ClassTool, fmt.Errorf("git %s: %w", strings.Join(args, " "), ctxErr))
		}
		msg := strings.TrimSpace(stderr.String())
		if strings.Contains(msg, "not a git repository") {
			return "", apperr.Tool("git", apperr.ClassTool, ErrNotRepo)
		}
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			if msg == "" {
				msg = exitErr.Error()
			}
			return "", apperr.Tool("git", apperr.ClassTool, fmt.Errorf("git %s: %s", strings.Join(args, " "), msg))
		}
		return "", apperr.Tool("git", apperr.ClassTool, fmt.Errorf("git %s: %w", strings.Join(args, " "), err))
	}
	return string(out), nil
}

func gitCmd(ctx context.Context, path string, args ...string) (string, error) {
	out, err := gitRaw(ctx, path, args...)
	return strings.TrimSpace(out), err
}

func (c *RealClient) IsRepo(ctx context.Context, path string) bool {
	out, err := gitCmd(ctx, path, "rev-parse", "--is-inside-work-tree")
	return err == nil && out == "true"
}

func (c *RealClient) RepoRoot(ctx context.Context, path string) (string, error) {
	return gitCmd(ctx, path, "rev-parse", "--show-toplevel")
}

func (c *RealClient) CurrentBranch(ctx context.Context, path string) (string, error) {
	// symbolic-ref works before the first commit, unlike rev-parse.
	out, err := gitCmd(ctx, path, "symbolic-ref", "--short", "-q", "HEAD")
	if err != nil {
		if !c.IsRepo(ctx, path) {
			return "", apperr.Tool("git", apperr.ClassTool, ErrNotRepo)
		}
		return DetachedHead, nil
	}
	return out, nil
}

func (c *RealClient) Status(ctx context.Context, path string) (*models.GitStatus, error) {
	out, err := gitRaw(ctx, path, "status", "--porcelain=v2", "--branch", "-z")
	if err != nil {
		return nil, err
	}
	return ParseStatusPorcelainV2(out), nil
}

func (c *RealClient) Init(ctx context.Context, path string) error {
	_, err := gitCmd(ctx, path, "init")
	return err
}

func (c *RealClient) Add(ctx context.Context, path string, files []string) error {
	if len(files) == 0 {
		return apperr.Invalid("files", "must not be empty")
	}
	args := append([]string{"add", "--"}, files...)
	_, err := gitCmd(ctx, path, args...)
	return err
}

// Commit records the staged changes. With files, only those paths are
// staged and committed.
func (c *RealClient) Commit(ctx context.Context, path, message string, files []string) error {
	if strings.TrimSpace(message) == "" {
		return apperr.Invalid("message", "must not be empty")
	}
	if len(files) > 0 {
		if err := c.Add(ctx, path, files); err != nil {
			return err
		}
		args := append([]string{"commit", "-m", message, "--"}, files...)
		_, err := gitCmd(ctx, path, args...)
		return err
	}
	_, err := gitCmd(ctx, path, "commit", "-m", message)
	return err
}

func (c *RealClient) Branches(ctx context.Context, path string) ([]string, error) {
	out, err := gitCmd(ctx, path, "branch", "--format=%(refname:short)")
	if err != nil {
		return nil, err
	}
	branches := []string{}
	for _, line := range strings.Split(out, "\n") {
		if line != "" {
			branches = append(branches, line)
		}
	}
	return branches, nil
}

func (c *RealClient) Checkout(ctx context.Context, path, branch string) error {
	if err := checkBranchName(branch); err != nil {
		return err
	}
	_, err := gitCmd(ctx, path, "checkout", branch, "--")
	return err
}

// checkBranchName rejects names git would parse as options.
func checkBranchName(branch string) error {
	switch {
	case strings.TrimSpace(branch) == "":
		return apperr.Invalid("branch", "must not be empty")
	case strings.HasPrefix(branch, "-"):
		return apperr.Invalid("branch", "must not start with '-'")
	}
	return nil
}

package git

import (
	"context"
	"strings"
	"sync"

	"github.com/joescharf/marie/internal/apperr"
	"github.com/joescharf/marie/internal/models"
)

// StaticClient reports a fixed status without touching the filesystem.
// It is used when git integration is disabled and as a test double.
// Mutating calls are recorded.
type StaticClient struct {
	mu       sync.Mutex
	branch   string
	repo     bool
	commits  []string
	added    []string
	branches []string
}

// NewStatic returns a StaticClient on branch "main" with a clean tree.
func NewStatic() *StaticClient {
	return &StaticClient{branch: "main", repo: true, branches: []string{"main"}}
}

// SetRepo controls what IsRepo reports.
func (c *StaticClient) SetRepo(repo bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.repo = repo
}

func (c *StaticClient) IsRepo(ctx context.Context, path string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.repo
}

func (c *StaticClient) RepoRoot(ctx context.Context, path string) (string, error) {
	return path, nil
}

func (c *StaticClient) CurrentBranch(ctx context.Context, path string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.branch, nil
}

func (c *StaticClient) Status(ctx context.Context, path string) (*models.GitStatus, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return models.CleanStatus(c.branch), nil
}

func (c *StaticClient) Init(ctx context.Context, path string) error {
	c.SetRepo(true)
	return nil
}

func (c *StaticClient) Add(ctx context.Context, path string, files []string) error {
	if len(files) == 0 {
		return apperr.Invalid("files", "must not be empty")
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.added = append(c.added, files...)
	return nil
}

func (c *StaticClient) Commit(ctx context.Context, path, message string, files []string) error {
	if strings.TrimSpace(message) == "" {
		return apperr.Invalid("message", "must not be empty")
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.added = append(c.added, files...)
	c.commits = append(c.commits, message)
	return nil
}

func (c *StaticClient) Branches(ctx context.Context, path string) ([]string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string{}, c.branches...), nil
}

func (c *StaticClient) Checkout(ctx context.Context, path, branch string) error {
	if err := checkBranchName(branch); err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, b := range c.branches {
		if b == branch {
			c.branch = branch
			return nil
		}
	}
	return apperr.NotFound("branch", branch)
}

// CommitMessages returns the recorded commit messages.
func (c *StaticClient) CommitMessages() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string{}, c.commits...)
}

// AddedFiles returns the recorded staged paths.
func (c *StaticClient) AddedFiles() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string{}, c.added...)
}

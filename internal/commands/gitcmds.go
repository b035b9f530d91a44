package commands

import (
	"context"

	"github.com/joescharf/marie/internal/models"
)

type filesArgs struct {
	Files []string `json:"files"`
}

type commitArgs struct {
	Message string   `json:"message"`
	Files   []string `json:"files"`
}

type checkoutArgs struct {
	Branch string `json:"branch"`
}

func (d *Dispatcher) registerGit() {
	d.register(&Command{
		Name:        "get_git_status",
		Description: "Return the git status of the open workspace",
		handler: typed(func(ctx context.Context, _ noArgs) (*models.GitStatus, error) {
			ws, err := d.requireWorkspace()
			if err != nil {
				return nil, err
			}
			return d.deps.Git.Status(ctx, ws.Path)
		}),
	})

	d.register(&Command{
		Name:        "git_init",
		Description: "Initialize a git repository in the open workspace",
		handler: typed(func(ctx context.Context, _ noArgs) (any, error) {
			ws, err := d.requireWorkspace()
			if err != nil {
				return nil, err
			}
			if err := d.deps.Git.Init(ctx, ws.Path); err != nil {
				return nil, err
			}
			d.refreshIfInside(ctx, ws.Path)
			return nil, nil
		}),
	})

	d.register(&Command{
		Name:        "git_add",
		Description: "Stage files in the open workspace",
		Params: []Param{
			{Name: "files", Type: "array", Description: "Workspace-relative paths", Required: true},
		},
		handler: typed(func(ctx context.Context, a filesArgs) (any, error) {
			ws, err := d.requireWorkspace()
			if err != nil {
				return nil, err
			}
			return nil, d.deps.Git.Add(ctx, ws.Path, a.Files)
		}),
	})

	d.register(&Command{
		Name:        "git_commit",
		Description: "Commit staged changes, or only the given files",
		Params: []Param{
			{Name: "message", Type: "string", Description: "Commit message", Required: true},
			{Name: "files", Type: "array", Description: "Workspace-relative paths to commit"},
		},
		handler: typed(func(ctx context.Context, a commitArgs) (any, error) {
			ws, err := d.requireWorkspace()
			if err != nil {
				return nil, err
			}
			return nil, d.deps.Git.Commit(ctx, ws.Path, a.Message, a.Files)
		}),
	})

	d.register(&Command{
		Name:        "git_branches",
		Description: "List local branches",
		handler: typed(func(ctx context.Context, _ noArgs) ([]string, error) {
			ws, err := d.requireWorkspace()
			if err != nil {
				return nil, err
			}
			return d.deps.Git.Branches(ctx, ws.Path)
		}),
	})

	d.register(&Command{
		Name:        "git_checkout",
		Description: "Switch the open workspace to another branch",
		Params:      []Param{{Name: "branch", Type: "string", Description: "Branch name", Required: true}},
		handler: typed(func(ctx context.Context, a checkoutArgs) (any, error) {
			ws, err := d.requireWorkspace()
			if err != nil {
				return nil, err
			}
			if err := d.deps.Git.Checkout(ctx, ws.Path, a.Branch); err != nil {
				return nil, err
			}
			d.refreshIfInside(ctx, ws.Path)
			return nil, nil
		}),
	})
}

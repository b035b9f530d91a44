package commands

import (
	"context"

	"github.com/joescharf/marie/internal/models"
)

type createCheckpointArgs struct {
	Name        string  `json:"name"`
	Description *string `json:"description"`
}

type listCheckpointsArgs struct {
	WorkspacePath string `json:"workspace_path"`
}

func (d *Dispatcher) registerCheckpoints() {
	d.register(&Command{
		Name:        "create_checkpoint",
		Description: "Snapshot the open files, or the whole workspace when none are open",
		Params: []Param{
			{Name: "name", Type: "string", Description: "Checkpoint name", Required: true},
			{Name: "description", Type: "string", Description: "Optional description"},
		},
		handler: typed(func(ctx context.Context, a createCheckpointArgs) (*models.Checkpoint, error) {
			cp, err := d.deps.Checkpoints.Create(ctx, a.Name, a.Description)
			if err != nil {
				return nil, err
			}
			d.publish(models.EventCheckpointCreated, cp.Summary())
			return cp, nil
		}),
	})

	d.register(&Command{
		Name:        "list_checkpoints",
		Description: "List checkpoints newest first",
		Params: []Param{
			{Name: "workspace_path", Type: "string", Description: "Workspace to list (default: the open one, or all)"},
		},
		handler: typed(func(ctx context.Context, a listCheckpointsArgs) ([]models.CheckpointSummary, error) {
			return d.deps.Checkpoints.List(ctx, a.WorkspacePath)
		}),
	})

	d.register(&Command{
		Name:        "get_checkpoint",
		Description: "Return a checkpoint with its file contents",
		Params:      []Param{{Name: "id", Type: "string", Description: "Checkpoint id", Required: true}},
		handler: typed(func(ctx context.Context, a idArgs) (*models.Checkpoint, error) {
			return d.deps.Checkpoints.Get(ctx, a.ID)
		}),
	})

	d.register(&Command{
		Name:        "restore_checkpoint",
		Description: "Write the files of a checkpoint back into the workspace",
		Params:      []Param{{Name: "id", Type: "string", Description: "Checkpoint id", Required: true}},
		handler: typed(func(ctx context.Context, a idArgs) (*models.CheckpointSummary, error) {
			sum, err := d.deps.Checkpoints.Restore(ctx, a.ID)
			if err != nil {
				return nil, err
			}
			if sum.FileCount > 0 {
				if ws := d.deps.State.Workspace(); ws != nil {
					d.refreshIfInside(ctx, ws.Path)
				}
			}
			d.publish(models.EventCheckpointRestore, sum)
			return sum, nil
		}),
	})

	d.register(&Command{
		Name:        "delete_checkpoint",
		Description: "Delete a checkpoint",
		Params:      []Param{{Name: "id", Type: "string", Description: "Checkpoint id", Required: true}},
		handler: typed(func(ctx context.Context, a idArgs) (any, error) {
			return nil, d.deps.Checkpoints.Delete(ctx, a.ID)
		}),
	})
}

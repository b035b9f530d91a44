package commands

import (
	"context"

	"github.com/joescharf/marie/internal/apperr"
	"github.com/joescharf/marie/internal/models"
)

type setSettingsArgs struct {
	Settings *models.AppSettings `json:"settings"`
}

func (d *Dispatcher) registerSettings() {
	d.register(&Command{
		Name:        "get_settings",
		Description: "Return the current user settings",
		handler: typed(func(ctx context.Context, _ noArgs) (models.AppSettings, error) {
			return d.deps.State.Settings(), nil
		}),
	})

	d.register(&Command{
		Name:        "set_settings",
		Description: "Replace the user settings wholesale",
		Params: []Param{
			{Name: "settings", Type: "object", Description: "Complete settings record", Required: true},
		},
		handler: typed(func(ctx context.Context, a setSettingsArgs) (any, error) {
			if a.Settings == nil {
				return nil, apperr.Invalid("settings", "is required")
			}
			s := *a.Settings
			if err := s.Validate(); err != nil {
				return nil, err
			}
			if err := d.deps.Store.SaveSettings(ctx, s); err != nil {
				return nil, err
			}
			d.deps.State.SetSettings(s)
			d.publish(models.EventSettingsChanged, s)
			return nil, nil
		}),
	})
}

package commands

import (
	"context"
	"strings"

	"github.com/joescharf/marie/internal/ai"
	"github.com/joescharf/marie/internal/models"
	"github.com/joescharf/marie/internal/workspace"
)

type generateArgs struct {
	Prompt  string         `json:"prompt"`
	Context map[string]any `json:"context"`
}

func (d *Dispatcher) registerAI() {
	d.register(&Command{
		Name:        "ai_generate",
		Description: "Send a prompt to the configured AI provider and return its text",
		Params: []Param{
			{Name: "prompt", Type: "string", Description: "Prompt text", Required: true},
			{Name: "context", Type: "object", Description: "Optional context: project, file, selection"},
		},
		Timeout: d.deps.AITimeout,
		handler: typed(func(ctx context.Context, a generateArgs) (string, error) {
			settings := d.deps.State.Settings()
			req := ai.Request{Prompt: a.Prompt, Context: d.withProject(a.Context)}
			resp, err := d.deps.AI.Generate(ctx, settings.AIProvider, settings.AIModel, req)
			if err != nil {
				return "", err
			}
			return resp.Response, nil
		}),
	})

	d.register(&Command{
		Name:        "ai_models",
		Description: "List the models offered per provider",
		handler: typed(func(ctx context.Context, _ noArgs) ([]models.AIModel, error) {
			return ai.Catalog(), nil
		}),
	})

	d.register(&Command{
		Name:        "ai_status",
		Description: "Report request counts, latency and health per provider and model",
		handler: typed(func(ctx context.Context, _ noArgs) ([]models.AIModelStatus, error) {
			return d.deps.AI.Status(), nil
		}),
	})

	d.register(&Command{
		Name:        "ai_reset_status",
		Description: "Clear the AI request statistics",
		handler: typed(func(ctx context.Context, _ noArgs) (any, error) {
			d.deps.AI.ResetStatus()
			return nil, nil
		}),
	})
}

// withProject fills the project context from the open workspace when the
// caller did not provide one.
func (d *Dispatcher) withProject(c map[string]any) map[string]any {
	if _, ok := c["project"]; ok {
		return c
	}
	ws := d.deps.State.Workspace()
	if ws == nil {
		return c
	}
	out := make(map[string]any, len(c)+1)
	for k, v := range c {
		out[k] = v
	}
	var top []string
	for _, f := range ws.Files {
		if !strings.Contains(f.RelPath, "/") {
			top = append(top, f.RelPath)
		}
	}
	project := map[string]any{"name": ws.Name, "path": ws.Path}
	if lang := workspace.DetectProjectLanguage(top); lang != "" {
		project["language"] = lang
	}
	out["project"] = project
	return out
}

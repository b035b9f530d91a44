// Package ai forwards editor prompts to a configured model provider.
package ai

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

// Request is a prompt with optional editor context. The known context keys
// are "project", "file" and "selection".
type Request struct {
	Prompt  string         `json:"prompt"`
	Context map[string]any `json:"context,omitempty"`
	Model   string         `json:"-"`
}

// Provider generates text from a prompt.
type Provider interface {
	Name() string
	Generate(ctx context.Context, req Request) (string, error)
}

const systemPrompt = `You are the coding assistant of a desktop code editor. Answer the user's request directly.
When returning code, return only the code unless an explanation is asked for.
Use the context sections (project, file, selection) when they are present.`

var knownContextKeys = []string{"project", "file", "selection"}

// buildPrompt constructs the system and user prompts for a generation request.
func buildPrompt(req Request) (system string, user string) {
	system = systemPrompt

	var sb strings.Builder
	for _, key := range knownContextKeys {
		v, ok := req.Context[key]
		if !ok || v == nil {
			continue
		}
		sb.WriteString(strings.ToUpper(key[:1]) + key[1:])
		sb.WriteString(":\n")
		sb.WriteString(contextValue(v))
		sb.WriteString("\n\n")
	}

	var extra []string
	for k := range req.Context {
		if !isKnownKey(k) {
			extra = append(extra, k)
		}
	}
	if len(extra) > 0 {
		sort.Strings(extra)
		rest := make(map[string]any, len(extra))
		for _, k := range extra {
			rest[k] = req.Context[k]
		}
		data, err := json.MarshalIndent(rest, "", "  ")
		if err == nil {
			sb.WriteString("Additional context:\n")
			sb.Write(data)
			sb.WriteString("\n\n")
		}
	}

	sb.WriteString(req.Prompt)
	user = sb.String()
	return
}

func isKnownKey(k string) bool {
	for _, known := range knownContextKeys {
		if k == known {
			return true
		}
	}
	return false
}

func contextValue(v any) string {
	switch t := v.(type) {
	case string:
		return t
	default:
		data, err := json.MarshalIndent(t, "", "  ")
		if err != nil {
			return fmt.Sprint(t)
		}
		return string(data)
	}
}

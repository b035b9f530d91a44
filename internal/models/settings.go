package models

import (
	"fmt"
	"strings"

	"github.com/joescharf/marie/internal/apperr"
)

// Theme values accepted by AppSettings.Theme.
const (
	ThemeLight  = "light"
	ThemeDark   = "dark"
	ThemeSystem = "system"
)

// AI provider names accepted by AppSettings.AIProvider.
const (
	ProviderOpenAI    = "openai"
	ProviderAnthropic = "anthropic"
	ProviderLocal     = "local"
	ProviderMock      = "mock"
)

// PanelSize describes a resizable editor panel.
type PanelSize struct {
	Width   int  `json:"width,omitempty"`
	Height  int  `json:"height,omitempty"`
	Visible bool `json:"visible"`
}

// PanelLayout holds the sizes of the sidebar, composer and terminal panels.
type PanelLayout struct {
	Sidebar  PanelSize `json:"sidebar"`
	Composer PanelSize `json:"composer"`
	Terminal PanelSize `json:"terminal"`
}

// AppSettings holds user preferences. It is replaced wholesale on update.
type AppSettings struct {
	Theme                string      `json:"theme"`
	FontSize             int         `json:"font_size"`
	FontFamily           string      `json:"font_family"`
	AutoSave             bool        `json:"auto_save"`
	AutoSaveDelay        int         `json:"auto_save_delay"` // milliseconds
	AIProvider           string      `json:"ai_provider"`
	AIModel              string      `json:"ai_model"`
	GitAutoCommit        bool        `json:"git_auto_commit"`
	CheckpointAutoCreate bool        `json:"checkpoint_auto_create"`
	Layout               PanelLayout `json:"layout"`
}

// DefaultSettings returns the settings used when none have been saved.
func DefaultSettings() AppSettings {
	return AppSettings{
		Theme:                ThemeDark,
		FontSize:             14,
		FontFamily:           "JetBrains Mono",
		AutoSave:             true,
		AutoSaveDelay:        1000,
		AIProvider:           ProviderOpenAI,
		AIModel:              "gpt-4",
		GitAutoCommit:        false,
		CheckpointAutoCreate: true,
		Layout: PanelLayout{
			Sidebar:  PanelSize{Width: 250, Visible: true},
			Composer: PanelSize{Width: 350, Visible: true},
			Terminal: PanelSize{Height: 200, Visible: true},
		},
	}
}

// Validate checks s field by field and returns the first violation as an
// apperr.ValidationError.
func (s AppSettings) Validate() error {
	switch s.Theme {
	case ThemeLight, ThemeDark, ThemeSystem:
	default:
		return apperr.Invalid("theme", fmt.Sprintf("must be one of light, dark, system (got %q)", s.Theme))
	}
	if s.FontSize < 6 || s.FontSize > 72 {
		return apperr.Invalid("font_size", fmt.Sprintf("must be between 6 and 72 (got %d)", s.FontSize))
	}
	if strings.TrimSpace(s.FontFamily) == "" {
		return apperr.Invalid("font_family", "must not be empty")
	}
	if s.AutoSaveDelay < 0 || s.AutoSaveDelay > 600000 {
		return apperr.Invalid("auto_save_delay", fmt.Sprintf("must be between 0 and 600000 ms (got %d)", s.AutoSaveDelay))
	}
	switch s.AIProvider {
	case ProviderOpenAI, ProviderAnthropic, ProviderLocal, ProviderMock:
	default:
		return apperr.Invalid("ai_provider", fmt.Sprintf("unknown provider %q", s.AIProvider))
	}
	if strings.TrimSpace(s.AIModel) == "" {
		return apperr.Invalid("ai_model", "must not be empty")
	}
	panels := []struct {
		name string
		size PanelSize
	}{
		{"layout.sidebar", s.Layout.Sidebar},
		{"layout.composer", s.Layout.Composer},
		{"layout.terminal", s.Layout.Terminal},
	}
	for _, p := range panels {
		if p.size.Width < 0 || p.size.Height < 0 {
			return apperr.Invalid(p.name, "sizes must not be negative")
		}
	}
	return nil
}

package workspace

import (
	"path/filepath"
	"strings"
)

// Whole-name matches win over extensions.
var languageByName = map[string]string{
	"Dockerfile":         "dockerfile",
	"docker-compose.yml": "yaml",
	"package.json":       "json",
	"tsconfig.json":      "json",
	"webpack.config.js":  "javascript",
	"vite.config.ts":     "typescript",
	"Makefile":           "makefile",
	".gitignore":         "gitignore",
	".dockerignore":      "dockerignore",
	".env":               "env",
}

var languageByExt = map[string]string{
	// Programming languages
	".js":    "javascript",
	".jsx":   "javascript",
	".ts":    "typescript",
	".tsx":   "typescript",
	".py":    "python",
	".java":  "java",
	".cpp":   "cpp",
	".c":     "c",
	".cs":    "csharp",
	".go":    "go",
	".rs":    "rust",
	".php":   "php",
	".rb":    "ruby",
	".swift": "swift",
	".kt":    "kotlin",
	".scala": "scala",
	".r":     "r",
	".m":     "matlab",
	".pl":    "perl",
	".lua":   "lua",
	".sh":    "shell",
	".bash":  "shell",
	".zsh":   "shell",
	".fish":  "shell",
	".ps1":   "powershell",
	".bat":   "batch",
	".cmd":   "batch",

	// Web
	".html":   "html",
	".htm":    "html",
	".css":    "css",
	".scss":   "scss",
	".sass":   "sass",
	".less":   "less",
	".vue":    "vue",
	".svelte": "svelte",
	".astro":  "astro",

	// Data formats
	".json": "json",
	".xml":  "xml",
	".yaml": "yaml",
	".yml":  "yaml",
	".toml": "toml",
	".ini":  "ini",
	".cfg":  "ini",
	".conf": "ini",
	".env":  "env",

	// Documentation
	".md":  "markdown",
	".txt": "text",
	".rtf": "rtf",
}

// LanguageFor returns the editor language id for a file name, or "" when
// the name is not recognized.
func LanguageFor(name string) string {
	base := filepath.Base(name)
	if lang, ok := languageByName[base]; ok {
		return lang
	}
	return languageByExt[strings.ToLower(filepath.Ext(base))]
}

// DetectProjectLanguage attempts to detect the primary language of a
// workspace from its marker files.
func DetectProjectLanguage(files []string) string {
	markers := []struct {
		name, lang string
	}{
		{"go.mod", "go"},
		{"Cargo.toml", "rust"},
		{"package.json", "javascript"},
		{"pyproject.toml", "python"},
		{"requirements.txt", "python"},
	}
	present := make(map[string]bool, len(files))
	for _, f := range files {
		present[f] = true
	}
	for _, m := range markers {
		if present[m.name] {
			return m.lang
		}
	}
	return ""
}

package models

// GitStatus summarizes the working tree of a repository.
type GitStatus struct {
	Branch         string   `json:"branch"`
	IsClean        bool     `json:"is_clean"`
	ModifiedFiles  []string `json:"modified_files"`
	StagedFiles    []string `json:"staged_files"`
	UntrackedFiles []string `json:"untracked_files"`
	Ahead          int      `json:"ahead"`
	Behind         int      `json:"behind"`
}

// CleanStatus returns a clean status on the given branch.
func CleanStatus(branch string) *GitStatus {
	return &GitStatus{
		Branch:         branch,
		IsClean:        true,
		ModifiedFiles:  []string{},
		StagedFiles:    []string{},
		UntrackedFiles: []string{},
	}
}

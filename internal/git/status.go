package git

import (
	"strconv"
	"strings"

	"github.com/joescharf/marie/internal/models"
)

// DetachedHead is the branch reported for a detached HEAD.
const DetachedHead = "(detached)"

// ParseStatusPorcelainV2 parses the NUL separated output of
// `git status --porcelain=v2 --branch -z`.
func ParseStatusPorcelainV2(output string) *models.GitStatus {
	st := models.CleanStatus("")

	records := strings.Split(output, "\x00")
	for i := 0; i < len(records); i++ {
		rec := records[i]
		if rec == "" {
			continue
		}
		switch rec[0] {
		case '#':
			parseBranchHeader(st, rec)
		case '1':
			// 1 XY sub mH mI mW hH hI path
			fields := strings.SplitN(rec, " ", 9)
			if len(fields) == 9 {
				addChange(st, fields[1], fields[8])
			}
		case '2':
			// 2 XY sub mH mI mW hH hI Xscore path, followed by the original path
			fields := strings.SplitN(rec, " ", 10)
			if len(fields) == 10 {
				addChange(st, fields[1], fields[9])
			}
			i++
		case 'u':
			// u XY sub m1 m2 m3 mW h1 h2 h3 path
			fields := strings.SplitN(rec, " ", 11)
			if len(fields) == 11 {
				st.ModifiedFiles = append(st.ModifiedFiles, fields[10])
			}
		case '?':
			st.UntrackedFiles = append(st.UntrackedFiles, strings.TrimPrefix(rec, "? "))
		}
	}

	st.IsClean = len(st.ModifiedFiles) == 0 && len(st.StagedFiles) == 0 && len(st.UntrackedFiles) == 0
	return st
}

func parseBranchHeader(st *models.GitStatus, line string) {
	switch {
	case strings.HasPrefix(line, "# branch.head "):
		head := strings.TrimPrefix(line, "# branch.head ")
		if head == "(detached)" {
			head = DetachedHead
		}
		st.Branch = head
	case strings.HasPrefix(line, "# branch.ab "):
		for _, part := range strings.Fields(strings.TrimPrefix(line, "# branch.ab ")) {
			n, err := strconv.Atoi(part[1:])
			if err != nil {
				continue
			}
			switch part[0] {
			case '+':
				st.Ahead = n
			case '-':
				st.Behind = n
			}
		}
	}
}

func addChange(st *models.GitStatus, xy, path string) {
	if len(xy) != 2 {
		return
	}
	if xy[0] != '.' {
		st.StagedFiles = append(st.StagedFiles, path)
	}
	if xy[1] != '.' {
		st.ModifiedFiles = append(st.ModifiedFiles, path)
	}
}

package report

import (
	"strings"

	"github.com/aymanbagabas/go-udiff"
)

// Diff returns a unified diff between the problems of two reports, one line
// per load error or issue. A nil report counts as having no problems. The
// result is empty when both runs found the same problems.
func Diff(prev, next *Report) string {
	before := joinLines(prev)
	after := joinLines(next)
	if before == after {
		return ""
	}
	return udiff.Unified("previous", "current", before, after)
}

func joinLines(r *Report) string {
	if r == nil {
		return ""
	}
	lines := r.problemLines()
	if len(lines) == 0 {
		return ""
	}
	return strings.Join(lines, "\n") + "\n"
}

package validate

import (
	"path"
	"strings"

	"github.com/gobwas/glob"
	"github.com/pkg/errors"

	"github.com/jingkaihe/corpuscheck/pkg/corpus"
)

// CompileIgnore compiles link ignore patterns. Patterns use "/" as the
// separator, so "*" stays within one directory and "**" crosses directories.
func CompileIgnore(patterns []string) ([]glob.Glob, error) {
	globs := make([]glob.Glob, 0, len(patterns))
	for _, p := range patterns {
		g, err := glob.Compile(p, '/')
		if err != nil {
			return nil, errors.Wrapf(err, "invalid link ignore pattern '%s'", p)
		}
		globs = append(globs, g)
	}
	return globs, nil
}

// ResolveLink resolves target relative to the directory of the document at
// from. A target starting with "/" is resolved against the corpus root. The
// result may start with "../" when the target escapes the root.
func ResolveLink(from, target string) string {
	if strings.HasPrefix(target, "/") {
		return path.Clean(strings.TrimLeft(target, "/"))
	}
	return path.Clean(path.Join(path.Dir(from), target))
}

// Links reports every outbound link that does not resolve to a record in
// records. Links whose written or resolved target matches an ignore pattern
// are skipped. Issues keep the link order within each document.
func Links(records []*corpus.DocumentRecord, ignore ...glob.Glob) []Issue {
	known := make(map[string]bool, len(records))
	for _, r := range records {
		known[r.Path] = true
	}

	var issues []Issue
	for _, r := range records {
		for _, target := range r.OutboundLinks {
			resolved := ResolveLink(r.Path, target)
			if known[resolved] || ignored(ignore, target, resolved) {
				continue
			}
			issues = append(issues, brokenLink(r.Path, target, resolved))
		}
	}

	SortIssues(issues)
	return issues
}

func ignored(globs []glob.Glob, candidates ...string) bool {
	for _, g := range globs {
		for _, c := range candidates {
			if g.Match(c) {
				return true
			}
		}
	}
	return false
}

// Package validate checks a loaded corpus for integrity problems: missing
// required frontmatter fields, links that do not resolve to a loaded
// document, reference cycles and duplicated skill or agent names.
//
// Every rule is a pure function of the record slice it is given. Rules do no
// I/O and return issues in a deterministic order, so running a rule twice on
// the same snapshot yields identical output.
package validate

import (
	"fmt"
	"sort"
	"strings"
)

// IssueKind identifies the rule that produced an issue
type IssueKind string

const (
	// MissingRequiredField means a skill or agent lacks a required frontmatter field
	MissingRequiredField IssueKind = "MissingRequiredField"
	// BrokenLink means an outbound link does not resolve to a loaded document
	BrokenLink IssueKind = "BrokenLink"
	// CyclicReference means following links leads back to the starting document
	CyclicReference IssueKind = "CyclicReference"
	// DuplicateName means two documents of the same kind share a name
	DuplicateName IssueKind = "DuplicateName"
)

// Issue is a single validation finding
type Issue struct {
	Kind    IssueKind `json:"kind" yaml:"kind"`
	Path    string    `json:"path" yaml:"path"`
	Field   string    `json:"field,omitempty" yaml:"field,omitempty"`
	Target  string    `json:"target,omitempty" yaml:"target,omitempty"`
	Cycle   []string  `json:"cycle,omitempty" yaml:"cycle,omitempty"`
	Message string    `json:"message" yaml:"message"`
}

func (i Issue) String() string {
	return fmt.Sprintf("%s: %s: %s", i.Kind, i.Path, i.Message)
}

func missingField(path, field, message string) Issue {
	return Issue{
		Kind:    MissingRequiredField,
		Path:    path,
		Field:   field,
		Message: message,
	}
}

func brokenLink(from, target, resolved string) Issue {
	msg := fmt.Sprintf("link '%s' does not resolve to a document", target)
	if resolved != target {
		msg = fmt.Sprintf("link '%s' resolves to '%s' which is not a document", target, resolved)
	}
	return Issue{
		Kind:    BrokenLink,
		Path:    from,
		Target:  target,
		Message: msg,
	}
}

func cyclicReference(cycle []string) Issue {
	return Issue{
		Kind:    CyclicReference,
		Path:    cycle[0],
		Target:  cycle[1],
		Cycle:   cycle,
		Message: "reference cycle: " + strings.Join(cycle, " -> "),
	}
}

func duplicateName(path, name, first string) Issue {
	return Issue{
		Kind:    DuplicateName,
		Path:    path,
		Field:   "name",
		Target:  first,
		Message: fmt.Sprintf("name '%s' is already used by %s", name, first),
	}
}

// SortIssues orders issues by path then kind. The sort is stable, so issues
// of one kind for one document keep their discovery order, which for broken
// links is the order the links appear in the document.
func SortIssues(issues []Issue) {
	sort.SliceStable(issues, func(a, b int) bool {
		x, y := issues[a], issues[b]
		if x.Path != y.Path {
			return x.Path < y.Path
		}
		return x.Kind < y.Kind
	})
}

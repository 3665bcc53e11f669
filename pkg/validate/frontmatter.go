package validate

import (
	"strings"

	"github.com/jingkaihe/corpuscheck/pkg/corpus"
)

var (
	skillRequired = []string{"name", "description"}
	agentRequired = []string{"name", "description", "model"}
)

// Frontmatter checks required frontmatter fields. Skills need a name and a
// description; agents additionally need a model and a non-empty tools list.
// Reference documents are exempt.
func Frontmatter(records []*corpus.DocumentRecord) []Issue {
	var issues []Issue

	for _, r := range records {
		switch r.Kind {
		case corpus.KindSkill:
			issues = append(issues, requireScalars(r, skillRequired)...)
		case corpus.KindAgent:
			issues = append(issues, requireScalars(r, agentRequired)...)
			if issue, ok := checkTools(r); !ok {
				issues = append(issues, issue)
			}
		}
	}

	SortIssues(issues)
	return issues
}

func requireScalars(r *corpus.DocumentRecord, fields []string) []Issue {
	var issues []Issue
	for _, field := range fields {
		v := r.Frontmatter.Get(field)
		switch {
		case v.IsMissing():
			issues = append(issues, missingField(r.Path, field, "required field '"+field+"' is missing"))
		case v.Kind() == corpus.FieldList:
			issues = append(issues, missingField(r.Path, field, "required field '"+field+"' must be a string, not a list"))
		case v.IsEmpty():
			issues = append(issues, missingField(r.Path, field, "required field '"+field+"' is empty"))
		}
	}
	return issues
}

// checkTools accepts a YAML list, or a comma-separated string as agent
// definitions commonly use, as long as it names at least one tool
func checkTools(r *corpus.DocumentRecord) (Issue, bool) {
	v := r.Frontmatter.Get("tools")

	switch v.Kind() {
	case corpus.FieldList:
		if v.IsEmpty() {
			return missingField(r.Path, "tools", "required field 'tools' must list at least one tool"), false
		}
	case corpus.FieldScalar:
		if len(splitToolList(v.String())) == 0 {
			return missingField(r.Path, "tools", "required field 'tools' must list at least one tool"), false
		}
	default:
		return missingField(r.Path, "tools", "required field 'tools' is missing"), false
	}

	return Issue{}, true
}

func splitToolList(s string) []string {
	var tools []string
	for _, item := range strings.Split(s, ",") {
		if trimmed := strings.TrimSpace(item); trimmed != "" {
			tools = append(tools, trimmed)
		}
	}
	return tools
}

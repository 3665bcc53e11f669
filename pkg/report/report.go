// Package report aggregates a loaded corpus and its validation issues into a
// single report and renders it as a table, JSON or YAML.
package report

import (
	"strings"

	"github.com/pkg/errors"

	"github.com/jingkaihe/corpuscheck/pkg/corpus"
	"github.com/jingkaihe/corpuscheck/pkg/presenter"
	"github.com/jingkaihe/corpuscheck/pkg/validate"
)

// Format selects how a report is rendered
type Format string

// Output formats
const (
	FormatTable Format = "table"
	FormatJSON  Format = "json"
	FormatYAML  Format = "yaml"
)

// Formats lists every supported output format
var Formats = []Format{FormatTable, FormatJSON, FormatYAML}

// ParseFormat converts a string into a Format
func ParseFormat(s string) (Format, error) {
	f := Format(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range Formats {
		if f == known {
			return f, nil
		}
	}
	return "", errors.Errorf("unknown output format '%s', expected one of table, json, yaml", s)
}

// Counts holds the number of documents per kind
type Counts struct {
	Skill     int `json:"skill" yaml:"skill"`
	Agent     int `json:"agent" yaml:"agent"`
	Reference int `json:"reference" yaml:"reference"`
}

// Report is the outcome of loading and validating a corpus. It carries no
// timestamps, so the same corpus always renders to the same bytes.
type Report struct {
	Root           string             `json:"root" yaml:"root" jsonschema:"description=Corpus root directory as given on the command line"`
	TotalDocuments int                `json:"total_documents" yaml:"total_documents" jsonschema:"minimum=0"`
	Counts         Counts             `json:"counts" yaml:"counts"`
	LoadErrors     []corpus.LoadError `json:"load_errors" yaml:"load_errors"`
	Issues         []validate.Issue   `json:"issues" yaml:"issues"`
}

// New builds a report from a corpus snapshot and the issues found in it
func New(c *corpus.Corpus, issues []validate.Issue) *Report {
	counts := c.CountByKind()

	loadErrors := append([]corpus.LoadError{}, c.Errors...)
	sorted := append([]validate.Issue{}, issues...)
	validate.SortIssues(sorted)

	return &Report{
		Root:           c.Root,
		TotalDocuments: c.Len(),
		Counts: Counts{
			Skill:     counts[corpus.KindSkill],
			Agent:     counts[corpus.KindAgent],
			Reference: counts[corpus.KindReference],
		},
		LoadErrors: loadErrors,
		Issues:     sorted,
	}
}

// HasProblems reports whether any load error or issue was recorded
func (r *Report) HasProblems() bool {
	return len(r.LoadErrors) > 0 || len(r.Issues) > 0
}

// ExitCode returns 0 for a clean corpus and 1 when problems were found
func (r *Report) ExitCode() int {
	if r.HasProblems() {
		return 1
	}
	return 0
}

// Summary converts the report into the presenter's summary line
func (r *Report) Summary() presenter.Summary {
	return presenter.Summary{
		Documents:  r.TotalDocuments,
		Skills:     r.Counts.Skill,
		Agents:     r.Counts.Agent,
		References: r.Counts.Reference,
		LoadErrors: len(r.LoadErrors),
		Issues:     len(r.Issues),
	}
}

// problemLines renders every load error and issue as one line each, load
// errors first
func (r *Report) problemLines() []string {
	lines := make([]string, 0, len(r.LoadErrors)+len(r.Issues))
	for _, e := range r.LoadErrors {
		lines = append(lines, e.Error())
	}
	for _, i := range r.Issues {
		lines = append(lines, i.String())
	}
	return lines
}

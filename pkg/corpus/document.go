// Package corpus loads a tree of Markdown skill, agent and reference documents
// into an immutable snapshot. Each file is split into optional YAML frontmatter
// and a body, classified by the shape of its frontmatter, and scanned for
// relative links to other Markdown files.
package corpus

import (
	"path"
	"sort"
	"strings"
)

// Kind classifies a document by the shape of its frontmatter
type Kind string

const (
	// KindSkill is a document with name and description frontmatter
	KindSkill Kind = "skill"
	// KindAgent is a document with tools and model frontmatter
	KindAgent Kind = "agent"
	// KindReference is any other document, typically without frontmatter
	KindReference Kind = "reference"
)

// Kinds lists every document kind in display order
var Kinds = []Kind{KindSkill, KindAgent, KindReference}

// ParseKind converts a string into a Kind
func ParseKind(s string) (Kind, bool) {
	switch Kind(strings.ToLower(strings.TrimSpace(s))) {
	case KindSkill:
		return KindSkill, true
	case KindAgent:
		return KindAgent, true
	case KindReference:
		return KindReference, true
	default:
		return "", false
	}
}

// DocumentRecord is a single parsed Markdown file
type DocumentRecord struct {
	Path          string      // Slash-separated path relative to the corpus root
	Kind          Kind        // Classification derived from the frontmatter
	Frontmatter   Frontmatter // Parsed frontmatter, empty when absent or malformed
	Body          string      // Markdown after the frontmatter block
	OutboundLinks []string    // Relative .md link targets in document order
}

// Name returns the frontmatter name, or an empty string
func (d *DocumentRecord) Name() string {
	return d.Frontmatter.Get("name").String()
}

// Description returns the frontmatter description, or an empty string
func (d *DocumentRecord) Description() string {
	return d.Frontmatter.Get("description").String()
}

// Dir returns the slash-separated directory of the document relative to the root
func (d *DocumentRecord) Dir() string {
	return path.Dir(d.Path)
}

// Classify determines the document kind from frontmatter keys.
// Agent wins over Skill when both shapes are present.
func Classify(fm Frontmatter) Kind {
	switch {
	case fm.Has("tools") && fm.Has("model"):
		return KindAgent
	case fm.Has("name") && fm.Has("description"):
		return KindSkill
	default:
		return KindReference
	}
}

// LoadErrorKind identifies the class of a per-file loading problem
type LoadErrorKind string

const (
	// MalformedFrontmatter means a frontmatter block was present but could not be parsed
	MalformedFrontmatter LoadErrorKind = "MalformedFrontmatter"
	// Timeout means reading the file exceeded the configured wait
	Timeout LoadErrorKind = "Timeout"
	// ReadFailed means the file or directory could not be read
	ReadFailed LoadErrorKind = "ReadFailed"
)

// LoadError is a per-file problem recorded while loading the corpus
type LoadError struct {
	Kind    LoadErrorKind `json:"kind" yaml:"kind"`
	Path    string        `json:"path" yaml:"path"`
	Message string        `json:"message" yaml:"message"`
}

func (e LoadError) Error() string {
	if e.Message == "" {
		return string(e.Kind) + ": " + e.Path
	}
	return string(e.Kind) + ": " + e.Path + ": " + e.Message
}

// Corpus is an immutable snapshot of loaded documents and load errors.
// Records are sorted by path and errors by path then kind.
type Corpus struct {
	Root    string
	Records []*DocumentRecord
	Errors  []LoadError

	index map[string]*DocumentRecord
}

// NewCorpus builds a snapshot from records and errors, sorting both
func NewCorpus(root string, records []*DocumentRecord, loadErrors []LoadError) *Corpus {
	recs := append([]*DocumentRecord(nil), records...)
	sort.SliceStable(recs, func(i, j int) bool {
		return recs[i].Path < recs[j].Path
	})

	errs := append([]LoadError(nil), loadErrors...)
	sort.SliceStable(errs, func(i, j int) bool {
		if errs[i].Path != errs[j].Path {
			return errs[i].Path < errs[j].Path
		}
		return errs[i].Kind < errs[j].Kind
	})

	index := make(map[string]*DocumentRecord, len(recs))
	for _, r := range recs {
		index[r.Path] = r
	}

	return &Corpus{
		Root:    root,
		Records: recs,
		Errors:  errs,
		index:   index,
	}
}

// Lookup returns the record stored at the given slash-separated path
func (c *Corpus) Lookup(p string) (*DocumentRecord, bool) {
	r, ok := c.index[p]
	return r, ok
}

// Len returns the number of loaded records
func (c *Corpus) Len() int {
	return len(c.Records)
}

// CountByKind returns the number of records per kind. Every kind is present.
func (c *Corpus) CountByKind() map[Kind]int {
	counts := make(map[Kind]int, len(Kinds))
	for _, k := range Kinds {
		counts[k] = 0
	}
	for _, r := range c.Records {
		counts[r.Kind]++
	}
	return counts
}

// Filter returns the records of the given kinds, in path order.
// With no kinds, every record is returned.
func (c *Corpus) Filter(kinds ...Kind) []*DocumentRecord {
	if len(kinds) == 0 {
		return c.Records
	}

	want := make(map[Kind]bool, len(kinds))
	for _, k := range kinds {
		want[k] = true
	}

	var out []*DocumentRecord
	for _, r := range c.Records {
		if want[r.Kind] {
			out = append(out, r)
		}
	}
	return out
}

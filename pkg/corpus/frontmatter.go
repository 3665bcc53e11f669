package corpus

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/pkg/errors"
	"github.com/yuin/goldmark"
	meta "github.com/yuin/goldmark-meta"
	"github.com/yuin/goldmark/parser"
	yamlv2 "gopkg.in/yaml.v2"
)

const frontmatterDelimiter = "---"

// FieldKind tags the shape of a frontmatter value
type FieldKind int

const (
	// FieldMissing means the key is absent
	FieldMissing FieldKind = iota
	// FieldScalar is a single string value
	FieldScalar
	// FieldList is a list of strings
	FieldList
)

func (k FieldKind) String() string {
	switch k {
	case FieldScalar:
		return "scalar"
	case FieldList:
		return "list"
	default:
		return "missing"
	}
}

// FieldValue is a frontmatter value: a scalar, a list of strings, or missing.
// The zero value is Missing.
type FieldValue struct {
	kind   FieldKind
	scalar string
	items  []string
}

// Scalar creates a scalar value
func Scalar(s string) FieldValue {
	return FieldValue{kind: FieldScalar, scalar: s}
}

// List creates a list value
func List(items ...string) FieldValue {
	return FieldValue{kind: FieldList, items: append([]string{}, items...)}
}

// Missing returns the value of an absent key
func Missing() FieldValue {
	return FieldValue{}
}

// Kind returns the tag of the value
func (v FieldValue) Kind() FieldKind {
	return v.kind
}

// IsMissing reports whether the key was absent
func (v FieldValue) IsMissing() bool {
	return v.kind == FieldMissing
}

// String returns the scalar text, or the list items joined by ", "
func (v FieldValue) String() string {
	switch v.kind {
	case FieldScalar:
		return v.scalar
	case FieldList:
		return strings.Join(v.items, ", ")
	default:
		return ""
	}
}

// Items returns a copy of the list items. A scalar is returned as a
// one-element list, a missing value as nil.
func (v FieldValue) Items() []string {
	switch v.kind {
	case FieldList:
		return append([]string{}, v.items...)
	case FieldScalar:
		return []string{v.scalar}
	default:
		return nil
	}
}

// IsEmpty reports whether the value carries no content: missing, a blank
// scalar, or a list with no non-blank item.
func (v FieldValue) IsEmpty() bool {
	switch v.kind {
	case FieldScalar:
		return strings.TrimSpace(v.scalar) == ""
	case FieldList:
		for _, item := range v.items {
			if strings.TrimSpace(item) != "" {
				return false
			}
		}
		return true
	default:
		return true
	}
}

// MarshalJSON renders scalars as strings, lists as arrays and missing values as null
func (v FieldValue) MarshalJSON() ([]byte, error) {
	switch v.kind {
	case FieldScalar:
		return json.Marshal(v.scalar)
	case FieldList:
		return json.Marshal(v.Items())
	default:
		return []byte("null"), nil
	}
}

// MarshalYAML mirrors MarshalJSON for YAML reports
func (v FieldValue) MarshalYAML() (interface{}, error) {
	switch v.kind {
	case FieldScalar:
		return v.scalar, nil
	case FieldList:
		return v.Items(), nil
	default:
		return nil, nil
	}
}

// Frontmatter maps frontmatter keys to their values
type Frontmatter map[string]FieldValue

// Get returns the value for key, or Missing when absent
func (f Frontmatter) Get(key string) FieldValue {
	if v, ok := f[key]; ok {
		return v
	}
	return Missing()
}

// Has reports whether key is present, whatever its value
func (f Frontmatter) Has(key string) bool {
	_, ok := f[key]
	return ok
}

// Keys returns the frontmatter keys in sorted order
func (f Frontmatter) Keys() []string {
	keys := make([]string, 0, len(f))
	for k := range f {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// FrontmatterState describes what SplitFrontmatter found at the top of a document
type FrontmatterState int

const (
	// FrontmatterAbsent means the document does not start with a delimiter line
	FrontmatterAbsent FrontmatterState = iota
	// FrontmatterClosed means an opening and closing delimiter were found
	FrontmatterClosed
	// FrontmatterUnclosed means the opening delimiter has no matching close
	FrontmatterUnclosed
)

// SplitFrontmatter separates a leading frontmatter block from the body.
// The block is only recognised when the very first line is "---". When the
// closing delimiter is missing the whole content is returned as the body.
func SplitFrontmatter(content string) (block, body string, state FrontmatterState) {
	s := strings.TrimPrefix(content, "\ufeff")

	first, rest, found := strings.Cut(s, "\n")
	if !isDelimiter(first) {
		return "", content, FrontmatterAbsent
	}
	if !found {
		return "", content, FrontmatterUnclosed
	}

	var lines []string
	for {
		line, next, more := strings.Cut(rest, "\n")
		if isDelimiter(line) {
			return strings.Join(lines, "\n"), next, FrontmatterClosed
		}
		lines = append(lines, strings.TrimSuffix(line, "\r"))
		if !more {
			return "", content, FrontmatterUnclosed
		}
		rest = next
	}
}

func isDelimiter(line string) bool {
	return strings.TrimRight(line, " \t\r") == frontmatterDelimiter
}

// ParseFrontmatter parses a frontmatter block (without its delimiters) as YAML
// through goldmark-meta and converts the values into FieldValues.
//
// goldmark-meta ends its block at any dash-only line, even an indented one
// inside a block scalar. Such blocks are decoded with yaml.v2 directly, which
// is the decoder goldmark-meta wraps, so values keep the same shapes.
func ParseFrontmatter(block string) (Frontmatter, error) {
	if strings.TrimSpace(block) == "" {
		return Frontmatter{}, nil
	}

	var metaData map[string]interface{}
	var err error
	if hasSeparatorLine(block) {
		metaData, err = decodeYAML(block)
	} else {
		metaData, err = decodeMeta(block)
	}
	if err != nil {
		return Frontmatter{}, err
	}

	fm := make(Frontmatter, len(metaData))
	for key, value := range metaData {
		fm[key] = toFieldValue(value)
	}
	return fm, nil
}

func decodeMeta(block string) (map[string]interface{}, error) {
	md := goldmark.New(
		goldmark.WithExtensions(meta.Meta),
	)

	source := []byte(frontmatterDelimiter + "\n" + block + "\n" + frontmatterDelimiter + "\n")
	var buf bytes.Buffer
	pctx := parser.NewContext()

	if err := md.Convert(source, &buf, parser.WithContext(pctx)); err != nil {
		return nil, errors.Wrap(err, "failed to parse markdown")
	}

	metaData, err := meta.TryGet(pctx)
	if err != nil {
		return nil, errors.Wrap(err, "invalid frontmatter yaml")
	}
	return metaData, nil
}

func decodeYAML(block string) (map[string]interface{}, error) {
	metaData := map[string]interface{}{}
	if err := yamlv2.Unmarshal([]byte(block), &metaData); err != nil {
		return nil, errors.Wrap(err, "invalid frontmatter yaml")
	}
	return metaData, nil
}

// hasSeparatorLine reports whether a line of block would be taken by
// goldmark-meta as the end of the metadata
func hasSeparatorLine(block string) bool {
	for _, line := range strings.Split(block, "\n") {
		trimmed := strings.TrimSpace(line)
		if trimmed != "" && strings.Trim(trimmed, "-") == "" {
			return true
		}
	}
	return false
}

// toFieldValue handles the shapes yaml.v2 decodes into interface{}
func toFieldValue(value interface{}) FieldValue {
	switch v := value.(type) {
	case nil:
		return Scalar("")
	case string:
		return Scalar(v)
	case []interface{}:
		items := make([]string, 0, len(v))
		for _, item := range v {
			items = append(items, scalarString(item))
		}
		return List(items...)
	case bool, int, int64, uint64, float64:
		return Scalar(fmt.Sprint(v))
	default:
		return Scalar(renderYAML(v))
	}
}

func scalarString(value interface{}) string {
	switch v := value.(type) {
	case nil:
		return ""
	case string:
		return v
	case bool, int, int64, uint64, float64:
		return fmt.Sprint(v)
	default:
		return renderYAML(v)
	}
}

func renderYAML(value interface{}) string {
	out, err := yamlv2.Marshal(value)
	if err != nil {
		return fmt.Sprint(value)
	}
	return strings.TrimSpace(string(out))
}

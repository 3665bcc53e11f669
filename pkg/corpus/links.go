package corpus

import (
	"net/url"
	"regexp"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/text"
)

const markdownExt = ".md"

var schemePattern = regexp.MustCompile(`^[A-Za-z][A-Za-z0-9+.\-]*:`)

// ExtractLinks returns the relative Markdown link targets of body in document
// order. Link destinations are read from the goldmark AST, so images and text
// inside code spans or fenced blocks are not treated as links. Fragments and
// query strings are dropped and the remaining path is percent-decoded.
//
// A target counts when its path ends in ".md" once the fragment and query are
// removed, so "a.md#setup" and "a.md?plain=1" are both links to "a.md". The
// suffix is case-sensitive, matching the default "**/*.md" include pattern.
func ExtractLinks(body []byte) []string {
	md := goldmark.New(
		goldmark.WithExtensions(extension.GFM),
	)
	doc := md.Parser().Parse(text.NewReader(body))

	var links []string
	_ = ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		link, ok := n.(*ast.Link)
		if !ok {
			return ast.WalkContinue, nil
		}
		if target, ok := markdownTarget(string(link.Destination)); ok {
			links = append(links, target)
		}
		return ast.WalkContinue, nil
	})

	return links
}

// markdownTarget reports whether dest is a relative link to a Markdown file
// and returns its path component
func markdownTarget(dest string) (string, bool) {
	dest = strings.TrimSpace(dest)
	if dest == "" || strings.HasPrefix(dest, "//") || schemePattern.MatchString(dest) {
		return "", false
	}

	if i := strings.IndexAny(dest, "#?"); i >= 0 {
		dest = dest[:i]
	}
	if unescaped, err := url.PathUnescape(dest); err == nil {
		dest = unescaped
	}

	if !strings.HasSuffix(dest, markdownExt) {
		return "", false
	}
	return dest, true
}

package corpus

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"syscall"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func writeTree(t *testing.T, root string, files map[string]string) {
	t.Helper()
	for rel, content := range files {
		full := filepath.Join(root, filepath.FromSlash(rel))
		require.NoError(t, os.MkdirAll(filepath.Dir(full), 0o755))
		require.NoError(t, os.WriteFile(full, []byte(content), 0o644))
	}
}

func paths(records []*DocumentRecord) []string {
	out := make([]string, 0, len(records))
	for _, r := range records {
		out = append(out, r.Path)
	}
	return out
}

func sampleTree(t *testing.T) string {
	t.Helper()
	root := t.TempDir()
	writeTree(t, root, map[string]string{
		"skills/pdf/SKILL.md": `---
name: pdf
description: Work with PDF files
---

# PDF

See [forms](forms.md) and [the reviewer](../../agents/reviewer.md).
`,
		"skills/pdf/forms.md": "# Forms\n",
		"agents/reviewer.md": `---
name: reviewer
description: Reviews changes
model: large
tools: [read, grep]
---

You review code.
`,
		"README.md":                  "# Corpus\n",
		"notes.txt":                  "not markdown",
		".git/HEAD.md":               "# ignored\n",
		"node_modules/pkg/README.md": "# ignored\n",
	})
	return root
}

func TestLoadCorpus(t *testing.T) {
	root := sampleTree(t)

	c, err := LoadCorpus(context.Background(), root)
	require.NoError(t, err)

	assert.Equal(t, root, c.Root)
	assert.Empty(t, c.Errors)
	assert.Equal(t, []string{
		"README.md",
		"agents/reviewer.md",
		"skills/pdf/SKILL.md",
		"skills/pdf/forms.md",
	}, paths(c.Records))
	assert.Equal(t, map[Kind]int{KindSkill: 1, KindAgent: 1, KindReference: 2}, c.CountByKind())

	skill, ok := c.Lookup("skills/pdf/SKILL.md")
	require.True(t, ok)
	assert.Equal(t, []string{"forms.md", "../../agents/reviewer.md"}, skill.OutboundLinks)

	agent, ok := c.Lookup("agents/reviewer.md")
	require.True(t, ok)
	assert.Equal(t, List("read", "grep"), agent.Frontmatter.Get("tools"))
}

func TestLoadCorpusIsDeterministic(t *testing.T) {
	root := sampleTree(t)

	first, err := LoadCorpus(context.Background(), root, WithWorkers(4))
	require.NoError(t, err)
	second, err := LoadCorpus(context.Background(), root, WithWorkers(1))
	require.NoError(t, err)

	assert.Equal(t, first.Records, second.Records)
	assert.Equal(t, first.Errors, second.Errors)
}

func TestLoadCorpusEmptyDirectory(t *testing.T) {
	c, err := LoadCorpus(context.Background(), t.TempDir())
	require.NoError(t, err)

	assert.Equal(t, 0, c.Len())
	assert.Empty(t, c.Errors)
	assert.Equal(t, map[Kind]int{KindSkill: 0, KindAgent: 0, KindReference: 0}, c.CountByKind())
}

func TestLoadCorpusInvalidRoot(t *testing.T) {
	t.Run("missing", func(t *testing.T) {
		_, err := LoadCorpus(context.Background(), filepath.Join(t.TempDir(), "nope"))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "failed to access corpus root")
	})

	t.Run("file", func(t *testing.T) {
		root := t.TempDir()
		file := filepath.Join(root, "a.md")
		require.NoError(t, os.WriteFile(file, []byte("# A\n"), 0o644))

		_, err := LoadCorpus(context.Background(), file)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "is not a directory")
	})
}

func TestLoadCorpusMalformedFrontmatter(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, map[string]string{
		"broken.md": "---\nname: broken\n\nNo closing delimiter. See [a](a.md).\n",
		"a.md":      "# A\n",
	})

	c, err := LoadCorpus(context.Background(), root)
	require.NoError(t, err)

	require.Len(t, c.Errors, 1)
	assert.Equal(t, MalformedFrontmatter, c.Errors[0].Kind)
	assert.Equal(t, "broken.md", c.Errors[0].Path)

	broken, ok := c.Lookup("broken.md")
	require.True(t, ok)
	assert.Equal(t, KindReference, broken.Kind)
	assert.Equal(t, []string{"a.md"}, broken.OutboundLinks)
}

func TestLoadCorpusIncludeExclude(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, map[string]string{
		"skills/a/SKILL.md":        "# A\n",
		"skills/drafts/b/SKILL.md": "# B\n",
		"docs/guide.md":            "# Guide\n",
	})

	c, err := LoadCorpus(context.Background(), root,
		WithInclude("skills/**/*.md"),
		WithExclude("**/drafts/**"),
	)
	require.NoError(t, err)

	assert.Equal(t, []string{"skills/a/SKILL.md"}, paths(c.Records))
}

func TestLoadCorpusTimeout(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, map[string]string{
		"fast.md": "# Fast\n",
		"slow.md": "# Slow\n",
	})

	release := make(chan struct{})
	readFile := func(p string) ([]byte, error) {
		if strings.HasSuffix(p, "slow.md") {
			<-release
		}
		return os.ReadFile(p)
	}

	c, err := LoadCorpus(context.Background(), root,
		WithReadFunc(readFile),
		WithReadTimeout(50*time.Millisecond),
	)
	require.NoError(t, err)

	assert.Equal(t, []string{"fast.md"}, paths(c.Records))
	require.Len(t, c.Errors, 1)
	assert.Equal(t, Timeout, c.Errors[0].Kind)
	assert.Equal(t, "slow.md", c.Errors[0].Path)

	close(release)
	goleak.VerifyNone(t)
}

func TestLoadCorpusReadFailures(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, map[string]string{
		"bad.md":   "# Bad\n",
		"flaky.md": "# Flaky\n",
		"good.md":  "# Good\n",
	})

	var flakyCalls atomic.Int32
	readFile := func(p string) ([]byte, error) {
		switch filepath.Base(p) {
		case "bad.md":
			return nil, errors.New("permission denied")
		case "flaky.md":
			if flakyCalls.Add(1) == 1 {
				return nil, &os.PathError{Op: "read", Path: p, Err: syscall.EINTR}
			}
		}
		return os.ReadFile(p)
	}

	c, err := LoadCorpus(context.Background(), root, WithReadFunc(readFile))
	require.NoError(t, err)

	assert.Equal(t, []string{"flaky.md", "good.md"}, paths(c.Records))
	assert.Equal(t, int32(2), flakyCalls.Load())
	require.Len(t, c.Errors, 1)
	assert.Equal(t, ReadFailed, c.Errors[0].Kind)
	assert.Equal(t, "bad.md", c.Errors[0].Path)
	assert.Contains(t, c.Errors[0].Message, "permission denied")
}

func TestLoadCorpusCancelled(t *testing.T) {
	root := sampleTree(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := LoadCorpus(ctx, root)
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.Canceled))
}

func TestNewLoaderOptions(t *testing.T) {
	tests := []struct {
		name string
		opt  Option
	}{
		{"zero workers", WithWorkers(0)},
		{"zero retries", WithReadRetries(0)},
		{"negative timeout", WithReadTimeout(-time.Second)},
		{"no include patterns", WithInclude()},
		{"absolute include", WithInclude("/etc/**/*.md")},
		{"invalid exclude", WithExclude("skills/[a-")},
		{"nil read func", WithReadFunc(nil)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewLoader(tt.opt)
			assert.Error(t, err)
		})
	}

	l, err := NewLoader(WithWorkers(2), WithReadRetries(5), WithReadTimeout(0))
	require.NoError(t, err)
	assert.Equal(t, 2, l.workers)
	assert.Equal(t, uint(5), l.readRetries)
	assert.Equal(t, time.Duration(0), l.readTimeout)
	assert.Equal(t, DefaultInclude, l.include)
	assert.Equal(t, DefaultExclude, l.exclude)
}

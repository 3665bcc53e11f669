package validate

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jingkaihe/corpuscheck/pkg/corpus"
)

func TestFrontmatter(t *testing.T) {
	tests := []struct {
		name     string
		content  string
		kind     corpus.Kind
		expected []string
	}{
		{
			name:    "complete skill",
			content: "---\nname: pdf\ndescription: Work with PDF files\n---\n# PDF\n",
			kind:    corpus.KindSkill,
		},
		{
			name:     "skill with empty description",
			content:  "---\nname: pdf\ndescription:\n---\n",
			kind:     corpus.KindSkill,
			expected: []string{"description"},
		},
		{
			name:     "skill name given as a list",
			content:  "---\nname:\n  - pdf\n  - docs\ndescription: Work with PDF files\n---\n",
			kind:     corpus.KindSkill,
			expected: []string{"name"},
		},
		{
			name:    "complete agent with tool list",
			content: "---\nname: reviewer\ndescription: Reviews code\nmodel: large\ntools:\n  - read\n  - grep\n---\n",
			kind:    corpus.KindAgent,
		},
		{
			name:    "agent with a folded description containing dashes",
			content: "---\nname: reviewer\ndescription: >-\n  Reviews code.\n  ---\n  Use for PRs.\nmodel: large\ntools: [read]\n---\n",
			kind:    corpus.KindAgent,
		},
		{
			name:    "agent with comma separated tools",
			content: "---\nname: reviewer\ndescription: Reviews code\nmodel: large\ntools: read, grep\n---\n",
			kind:    corpus.KindAgent,
		},
		{
			name:     "agent with empty tool list",
			content:  "---\nname: reviewer\ndescription: Reviews code\nmodel: large\ntools: []\n---\n",
			kind:     corpus.KindAgent,
			expected: []string{"tools"},
		},
		{
			name:     "agent with blank tools string",
			content:  "---\nname: reviewer\ndescription: Reviews code\nmodel: large\ntools: \" , \"\n---\n",
			kind:     corpus.KindAgent,
			expected: []string{"tools"},
		},
		{
			name:     "agent missing name and description",
			content:  "---\nmodel: large\ntools: [read]\n---\n",
			kind:     corpus.KindAgent,
			expected: []string{"name", "description"},
		},
		{
			name:    "reference document",
			content: "# Notes\n\nNo frontmatter here.\n",
			kind:    corpus.KindReference,
		},
		{
			name:    "reference with unrelated frontmatter",
			content: "---\ntitle: Notes\n---\n# Notes\n",
			kind:    corpus.KindReference,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			record := parseDoc(t, "doc.md", tt.content)
			require.Equal(t, tt.kind, record.Kind)

			issues := Frontmatter([]*corpus.DocumentRecord{record})

			var fields []string
			for _, issue := range issues {
				assert.Equal(t, MissingRequiredField, issue.Kind)
				assert.Equal(t, "doc.md", issue.Path)
				assert.NotEmpty(t, issue.Message)
				fields = append(fields, issue.Field)
			}
			assert.Equal(t, tt.expected, fields)
		})
	}
}

func TestFrontmatterOrdersByPath(t *testing.T) {
	records := []*corpus.DocumentRecord{
		parseDoc(t, "z.md", "---\nname: z\ndescription:\n---\n"),
		parseDoc(t, "a.md", "---\nname: a\ndescription: \"\"\n---\n"),
	}

	issues := Frontmatter(records)

	require.Len(t, issues, 2)
	assert.Equal(t, "a.md", issues[0].Path)
	assert.Equal(t, "z.md", issues[1].Path)
}

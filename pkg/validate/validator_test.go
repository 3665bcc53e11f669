package validate

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jingkaihe/corpuscheck/pkg/corpus"
)

func sampleCorpus(t *testing.T) *corpus.Corpus {
	t.Helper()
	return corpus.NewCorpus("testdata", []*corpus.DocumentRecord{
		parseDoc(t, "skills/pdf/SKILL.md", "---\nname: pdf\ndescription: PDF work\n---\nSee [ref](reference.md) and [forms](forms.md).\n"),
		parseDoc(t, "skills/pdf/reference.md", "Back to [skill](SKILL.md).\n"),
		parseDoc(t, "skills/other/SKILL.md", "---\nname: pdf\ndescription: Another PDF skill\n---\n"),
		parseDoc(t, "agents/reviewer.md", "---\nname: reviewer\ndescription: Reviews\nmodel: large\ntools: []\n---\n"),
	}, nil)
}

func TestValidatorDefaults(t *testing.T) {
	v, err := NewValidator()
	require.NoError(t, err)

	issues := v.Run(context.Background(), sampleCorpus(t))

	require.Len(t, issues, 2)
	assert.Equal(t, MissingRequiredField, issues[0].Kind)
	assert.Equal(t, "agents/reviewer.md", issues[0].Path)
	assert.Equal(t, "tools", issues[0].Field)
	assert.Equal(t, BrokenLink, issues[1].Kind)
	assert.Equal(t, "skills/pdf/SKILL.md", issues[1].Path)
	assert.Equal(t, "forms.md", issues[1].Target)
}

func TestValidatorOptionalChecks(t *testing.T) {
	v, err := NewValidator(
		WithCycleCheck(true),
		WithDuplicateNameCheck(true),
		WithLinkIgnore("**/forms.md"),
	)
	require.NoError(t, err)

	issues := v.Run(context.Background(), sampleCorpus(t))

	assert.Equal(t, []IssueKind{MissingRequiredField, CyclicReference, DuplicateName}, kinds(issues))
	assert.Equal(t, "skills/pdf/SKILL.md", issues[1].Path)
	assert.Equal(t, "skills/pdf/SKILL.md", issues[2].Path)
	assert.Equal(t, "skills/other/SKILL.md", issues[2].Target)
}

func TestValidatorIsIdempotent(t *testing.T) {
	v, err := NewValidator(WithCycleCheck(true), WithDuplicateNameCheck(true))
	require.NoError(t, err)

	c := sampleCorpus(t)
	first := v.Run(context.Background(), c)
	second := v.Run(context.Background(), c)

	assert.Equal(t, first, second)
}

func TestValidatorEmptyCorpus(t *testing.T) {
	v, err := NewValidator(WithCycleCheck(true), WithDuplicateNameCheck(true))
	require.NoError(t, err)

	assert.Empty(t, v.Run(context.Background(), corpus.NewCorpus("empty", nil, nil)))
}

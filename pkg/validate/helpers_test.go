package validate

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/jingkaihe/corpuscheck/pkg/corpus"
)

func parseDoc(t *testing.T, path, content string) *corpus.DocumentRecord {
	t.Helper()
	record, loadErr := corpus.ParseDocument(path, []byte(content))
	require.Nil(t, loadErr, "unexpected load error for %s", path)
	return record
}

func reference(t *testing.T, path, body string) *corpus.DocumentRecord {
	t.Helper()
	return parseDoc(t, path, body)
}

func kinds(issues []Issue) []IssueKind {
	out := make([]IssueKind, 0, len(issues))
	for _, i := range issues {
		out = append(out, i.Kind)
	}
	return out
}

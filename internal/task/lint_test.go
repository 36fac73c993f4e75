package task

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLinter_WellFormedTask_OK(t *testing.T) {
	l, err := NewLinter()
	require.NoError(t, err)

	res := l.Lint([]byte(`{"id":"1","subject":"x","status":"pending","blockedBy":["2"]}`), "s", "/f.json")

	assert.True(t, res.OK())
	assert.Empty(t, res.Issues)
}

func TestLinter_CoercedFields_Reported(t *testing.T) {
	// Given: a task the aggregator accepts only after coercion
	l, err := NewLinter()
	require.NoError(t, err)

	// When: linted
	res := l.Lint([]byte(`{"id":"1","subject":"x","status":"done","blockedBy":[true]}`), "s", "/f.json")

	// Then: it is accepted but the schema issues are listed
	assert.False(t, res.Rejected)
	assert.False(t, res.OK())
	paths := make([]string, 0, len(res.Issues))
	for _, issue := range res.Issues {
		paths = append(paths, issue.Path)
	}
	assert.Contains(t, paths, "status")
	assert.Contains(t, paths, "blockedBy[0]")
}

func TestLinter_MissingID_Rejected(t *testing.T) {
	l, err := NewLinter()
	require.NoError(t, err)

	res := l.Lint([]byte(`{"subject":"x","status":"pending"}`), "s", "/f.json")

	assert.True(t, res.Rejected)
	assert.Equal(t, "missing id", res.Reason)
	assert.NotEmpty(t, res.Issues)
}

func TestLinter_InvalidJSON_Rejected(t *testing.T) {
	l, err := NewLinter()
	require.NoError(t, err)

	res := l.Lint([]byte(`{"id":`), "s", "/f.json")

	assert.True(t, res.Rejected)
	assert.Equal(t, "unparsable", res.Reason)
	require.Len(t, res.Issues, 1)
}

func TestLinter_LintRoot(t *testing.T) {
	root := t.TempDir()
	writeTask(t, root, "s1", "1.json", `{"id":"1","subject":"x","status":"pending"}`)
	writeTask(t, root, "s2", "1.json", `{"subject":"x"}`)
	l, err := NewLinter()
	require.NoError(t, err)

	results, err := l.LintRoot(context.Background(), nil, root)

	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.True(t, results[0].OK())
	assert.Equal(t, "s2", results[1].SessionID)
	assert.True(t, results[1].Rejected)
}

func TestPointerToPath(t *testing.T) {
	assert.Equal(t, "", pointerToPath(""))
	assert.Equal(t, "status", pointerToPath("/status"))
	assert.Equal(t, "blockedBy[1]", pointerToPath("/blockedBy/1"))
	assert.Equal(t, "metadata.a/b", pointerToPath("#/metadata/a~1b"))
}

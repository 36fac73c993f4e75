package output

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriter_StatusLines(t *testing.T) {
	tests := []struct {
		name  string
		write func(w *Writer)
		want  string
	}{
		{"status", func(w *Writer) { w.Status("🔍", "Scanning tasks...") }, "🔍 Scanning tasks...\n"},
		{"no icon", func(w *Writer) { w.Status("", "indented") }, "   indented\n"},
		{"success", func(w *Writer) { w.Successf("Copied %s", "plan.md") }, "✅ Copied plan.md\n"},
		{"warning", func(w *Writer) { w.Warningf("%d files skipped", 2) }, "⚠️  2 files skipped\n"},
		{"error", func(w *Writer) { w.Errorf("daemon %s", "down") }, "❌ daemon down\n"},
		{"statusf", func(w *Writer) { w.Statusf("•", "%d tasks", 3) }, "• 3 tasks\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf := &bytes.Buffer{}
			tt.write(New(buf))
			assert.Equal(t, tt.want, buf.String())
		})
	}
}

func TestWriter_Code_IndentsLines(t *testing.T) {
	buf := &bytes.Buffer{}

	New(buf).Code("line1\nline2")

	assert.Equal(t, "\n  line1\n  line2\n\n", buf.String())
}

func TestWriter_Table(t *testing.T) {
	// Given: a writer and two rows
	buf := &bytes.Buffer{}
	w := New(buf)

	// When: printing a table
	w.Table([]string{"SESSION", "ID", "STATUS"}, [][]string{
		{"s1", "1", "completed"},
		{"s2", "10", "pending"},
	})

	// Then: headers and cells are on separate lines
	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	require.GreaterOrEqual(t, len(lines), 3)
	assert.Contains(t, lines[0], "SESSION")
	assert.Contains(t, buf.String(), "completed")
	assert.Contains(t, lines[len(lines)-1], "pending")
}

func TestWriter_JSON(t *testing.T) {
	buf := &bytes.Buffer{}

	require.NoError(t, New(buf).JSON(map[string]int{"tasks": 2}))

	var got map[string]int
	require.NoError(t, json.Unmarshal(buf.Bytes(), &got))
	assert.Equal(t, 2, got["tasks"])
	assert.Contains(t, buf.String(), "\n  \"tasks\"")
}

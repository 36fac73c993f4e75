// Package plan aggregates the Markdown plans of a flat directory into a live
// snapshot ordered by modification time.
package plan

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
)

// FileSuffix selects plan files.
const FileSuffix = ".md"

// titlePattern matches a level-1 heading on any line.
var titlePattern = regexp.MustCompile(`(?m)^#\s+(.+)$`)

// Plan is one Markdown planning document.
type Plan struct {
	// ID is the filename without extension.
	ID      string `json:"id"`
	Title   string `json:"title"`
	Content string `json:"content"`
	// FilePath is the absolute path of the source file.
	FilePath string `json:"filePath"`
	// ModifiedAt is the modification time in Unix milliseconds.
	ModifiedAt int64 `json:"modifiedAt"`
}

// ExtractTitle returns the trimmed text of the first "# Heading" line in
// content, or fallback if there is none.
func ExtractTitle(content, fallback string) string {
	m := titlePattern.FindStringSubmatch(content)
	if m == nil {
		return fallback
	}
	if title := strings.TrimSpace(m[1]); title != "" {
		return title
	}
	return fallback
}

// ParsePlan reads the plan at path.
func ParsePlan(path string) (Plan, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Plan{}, fmt.Errorf("read plan: %w", err)
	}
	info, err := os.Stat(path)
	if err != nil {
		return Plan{}, fmt.Errorf("stat plan: %w", err)
	}

	id := strings.TrimSuffix(filepath.Base(path), FileSuffix)
	content := string(data)
	return Plan{
		ID:         id,
		Title:      ExtractTitle(content, id),
		Content:    content,
		FilePath:   path,
		ModifiedAt: info.ModTime().UnixMilli(),
	}, nil
}

// Matches reports whether query occurs in the plan's title or content,
// ignoring case.
func (p Plan) Matches(query string) bool {
	q := strings.ToLower(query)
	return strings.Contains(strings.ToLower(p.Title), q) ||
		strings.Contains(strings.ToLower(p.Content), q)
}

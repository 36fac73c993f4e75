// Package workspace lists workspace folders up to a bounded depth for use as
// copy destinations.
package workspace

import (
	"log/slog"
	"path/filepath"

	"github.com/Chili6666/iclaude-workbench/internal/scanner"
)

// DefaultMaxDepth is the number of levels listed below each root.
const DefaultMaxDepth = 2

// Folder is one listed directory.
type Folder struct {
	Path string `json:"path"`
	// Name is the display name: the root's base name, then parent/child.
	Name string `json:"name"`
}

// Lister walks workspace roots.
type Lister struct {
	scanner *scanner.Scanner
	logger  *slog.Logger
}

// NewLister creates a Lister sharing sc's ignore policy.
func NewLister(sc *scanner.Scanner, logger *slog.Logger) *Lister {
	if logger == nil {
		logger = slog.Default()
	}
	if sc == nil {
		sc = scanner.New(nil, logger)
	}
	return &Lister{scanner: sc, logger: logger}
}

// List emits each root followed by its subdirectories up to maxDepth levels
// below it, depth first in name order. maxDepth <= 0 means DefaultMaxDepth.
// Unreadable directories contribute no children.
func (l *Lister) List(roots []string, maxDepth int) []Folder {
	if maxDepth <= 0 {
		maxDepth = DefaultMaxDepth
	}

	folders := []Folder{}
	seen := make(map[string]bool, len(roots))
	for _, root := range roots {
		abs, err := filepath.Abs(root)
		if err != nil {
			l.logger.Debug("skipping workspace root",
				slog.String("root", root),
				slog.String("error", err.Error()))
			continue
		}
		if seen[abs] {
			continue
		}
		seen[abs] = true

		name := filepath.Base(abs)
		folders = append(folders, Folder{Path: abs, Name: name})
		folders = l.walk(folders, abs, name, 1, maxDepth)
	}
	return folders
}

func (l *Lister) walk(out []Folder, dir, name string, depth, maxDepth int) []Folder {
	if depth > maxDepth {
		return out
	}
	for _, sub := range l.scanner.Dirs(dir) {
		childName := name + "/" + sub.Name
		out = append(out, Folder{Path: sub.Path, Name: childName})
		out = l.walk(out, sub.Path, childName, depth+1, maxDepth)
	}
	return out
}

// Package scanner lists the immediate entries of a directory, splitting them
// into suffix-filtered files and subdirectories and dropping ignored names.
package scanner

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"
)

// matchCacheSize bounds the number of cached ignore decisions.
const matchCacheSize = 4096

// defaultExcludeDirs are never listed, at any depth. Dot-prefixed names
// (including .git) are excluded separately.
var defaultExcludeDirs = []string{
	"node_modules",
	"dist",
	"out",
	"build",
}

// Entry is one listed file or directory.
type Entry struct {
	Name string
	Path string
}

// Listing is the result of listing one directory.
type Listing struct {
	Files []Entry
	Dirs  []Entry
}

// Policy decides which entry names are ignored.
type Policy struct {
	patterns []string
	cache    *lru.Cache[string, bool]
}

// NewPolicy creates an ignore policy. Extra patterns use filepath.Match
// syntax and are matched against the entry name alone, so a pattern
// containing a separator never matches.
func NewPolicy(patterns ...string) (*Policy, error) {
	for _, p := range patterns {
		if _, err := filepath.Match(p, ""); err != nil {
			return nil, fmt.Errorf("invalid ignore pattern %q: %w", p, err)
		}
	}
	cache, err := lru.New[string, bool](matchCacheSize)
	if err != nil {
		return nil, fmt.Errorf("failed to create ignore cache: %w", err)
	}
	return &Policy{patterns: patterns, cache: cache}, nil
}

// DefaultPolicy returns the policy with no extra patterns.
func DefaultPolicy() *Policy {
	p, _ := NewPolicy()
	return p
}

// Ignored reports whether an entry named name is excluded.
func (p *Policy) Ignored(name string) bool {
	if strings.HasPrefix(name, ".") {
		return true
	}
	for _, d := range defaultExcludeDirs {
		if name == d {
			return true
		}
	}
	if len(p.patterns) == 0 {
		return false
	}

	if v, ok := p.cache.Get(name); ok {
		return v
	}
	ignored := false
	for _, pattern := range p.patterns {
		if ok, _ := filepath.Match(pattern, name); ok {
			ignored = true
			break
		}
	}
	p.cache.Add(name, ignored)
	return ignored
}

// Patterns returns the extra patterns.
func (p *Policy) Patterns() []string {
	return append([]string(nil), p.patterns...)
}

// Scanner lists directories under an ignore policy.
type Scanner struct {
	policy *Policy
	logger *slog.Logger
}

// New creates a Scanner. A nil policy means DefaultPolicy, a nil logger
// slog.Default().
func New(policy *Policy, logger *slog.Logger) *Scanner {
	if policy == nil {
		policy = DefaultPolicy()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Scanner{policy: policy, logger: logger}
}

// Policy returns the scanner's ignore policy.
func (s *Scanner) Policy() *Policy {
	return s.policy
}

// List returns the non-ignored files ending in suffix and the non-ignored
// subdirectories of dir, in name order. An empty suffix matches every file.
// A directory that cannot be read yields an empty listing.
func (s *Scanner) List(dir, suffix string) Listing {
	var out Listing

	entries, err := os.ReadDir(dir)
	if err != nil {
		s.logger.Debug("directory unavailable",
			slog.String("path", dir),
			slog.String("error", err.Error()))
		return out
	}

	for _, e := range entries {
		name := e.Name()
		if s.policy.Ignored(name) {
			continue
		}
		entry := Entry{Name: name, Path: filepath.Join(dir, name)}

		isDir := e.IsDir()
		if e.Type()&os.ModeSymlink != 0 {
			info, err := os.Stat(entry.Path)
			if err != nil {
				continue // Dangling link
			}
			isDir = info.IsDir()
		}

		switch {
		case isDir:
			out.Dirs = append(out.Dirs, entry)
		case strings.HasSuffix(name, suffix):
			out.Files = append(out.Files, entry)
		}
	}
	return out
}

// Dirs returns only the subdirectories of dir.
func (s *Scanner) Dirs(dir string) []Entry {
	return s.List(dir, "").Dirs
}

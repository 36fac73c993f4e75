package task

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/Chili6666/iclaude-workbench/internal/scanner"
)

const schemaURL = "task.schema.json"

// taskSchema describes a well-formed task file. The aggregator tolerates
// anything ParseTask accepts; the schema flags what it had to coerce.
const taskSchema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "required": ["id", "subject", "status"],
  "properties": {
    "id":          {"type": ["string", "integer"], "minLength": 1},
    "subject":     {"type": "string", "minLength": 1},
    "description": {"type": "string"},
    "status":      {"enum": ["pending", "in_progress", "completed"]},
    "owner":       {"type": "string"},
    "activeForm":  {"type": "string"},
    "blockedBy":   {"type": "array", "items": {"type": ["string", "integer"]}},
    "blocks":      {"type": "array", "items": {"type": ["string", "integer"]}},
    "metadata":    {"type": "object"}
  }
}`

// Issue is one schema violation.
type Issue struct {
	Path    string `json:"path"`
	Message string `json:"message"`
}

// LintResult reports on one task file. Rejected is set when the aggregator
// would skip the file.
type LintResult struct {
	File      string  `json:"file"`
	SessionID string  `json:"sessionId"`
	Rejected  bool    `json:"rejected"`
	Reason    string  `json:"reason,omitempty"`
	Issues    []Issue `json:"issues,omitempty"`
}

// OK reports whether the file is accepted without coercion.
func (r LintResult) OK() bool {
	return !r.Rejected && len(r.Issues) == 0
}

// Linter validates task files against the task schema.
type Linter struct {
	schema *jsonschema.Schema
}

// NewLinter compiles the task schema.
func NewLinter() (*Linter, error) {
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource(schemaURL, strings.NewReader(taskSchema)); err != nil {
		return nil, fmt.Errorf("add task schema: %w", err)
	}
	schema, err := compiler.Compile(schemaURL)
	if err != nil {
		return nil, fmt.Errorf("compile task schema: %w", err)
	}
	return &Linter{schema: schema}, nil
}

// Lint checks one document.
func (l *Linter) Lint(data []byte, sessionID, path string) LintResult {
	res := LintResult{File: path, SessionID: sessionID}

	if _, err := ParseTask(data, sessionID, path); err != nil {
		res.Rejected = true
		res.Reason = err.Error()
	}

	var doc any
	if err := json.Unmarshal(data, &doc); err != nil {
		res.Issues = append(res.Issues, Issue{Message: err.Error()})
		return res
	}
	if err := l.schema.Validate(doc); err != nil {
		var ve *jsonschema.ValidationError
		if !errors.As(err, &ve) {
			res.Issues = append(res.Issues, Issue{Message: err.Error()})
			return res
		}
		res.Issues = collectIssues(res.Issues, ve)
	}
	return res
}

// LintFile reads and checks one file.
func (l *Linter) LintFile(path, sessionID string) LintResult {
	data, err := os.ReadFile(path)
	if err != nil {
		return LintResult{
			File:      path,
			SessionID: sessionID,
			Rejected:  true,
			Reason:    "unreadable",
			Issues:    []Issue{{Message: err.Error()}},
		}
	}
	return l.Lint(data, sessionID, path)
}

// LintRoot checks every task file under a tasks root in scan order.
func (l *Linter) LintRoot(ctx context.Context, sc *scanner.Scanner, root string) ([]LintResult, error) {
	if sc == nil {
		sc = scanner.New(nil, nil)
	}
	var results []LintResult
	for _, session := range sc.Dirs(root) {
		for _, file := range sc.List(session.Path, FileSuffix).Files {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			results = append(results, l.LintFile(file.Path, session.Name))
		}
	}
	return results, nil
}

func collectIssues(issues []Issue, err *jsonschema.ValidationError) []Issue {
	if len(err.Causes) == 0 {
		return append(issues, Issue{
			Path:    pointerToPath(err.InstanceLocation),
			Message: err.Message,
		})
	}
	for _, cause := range err.Causes {
		issues = collectIssues(issues, cause)
	}
	return issues
}

// pointerToPath turns "/blockedBy/1" into "blockedBy[1]".
func pointerToPath(ptr string) string {
	ptr = strings.TrimPrefix(ptr, "#")
	var b strings.Builder
	for _, part := range strings.Split(ptr, "/") {
		if part == "" {
			continue
		}
		part = strings.ReplaceAll(part, "~1", "/")
		part = strings.ReplaceAll(part, "~0", "~")
		if idx, err := strconv.Atoi(part); err == nil {
			fmt.Fprintf(&b, "[%d]", idx)
			continue
		}
		if b.Len() > 0 {
			b.WriteByte('.')
		}
		b.WriteString(part)
	}
	return b.String()
}

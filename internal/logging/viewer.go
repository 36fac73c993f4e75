package logging

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/tidwall/gjson"
)

// LogEntry is one parsed JSON log line.
type LogEntry struct {
	Time   time.Time
	Level  string
	Msg    string
	Source string
	Attrs  map[string]string
	Raw    string
	// IsValid is false when the line was not a JSON object.
	IsValid bool
}

// ViewerConfig configures the log viewer.
type ViewerConfig struct {
	Level      string
	Pattern    *regexp.Regexp
	NoColor    bool
	ShowSource bool
}

// Viewer tails, filters and formats workbench log files.
type Viewer struct {
	config ViewerConfig
	out    io.Writer
}

var (
	levelStyles = map[string]lipgloss.Style{
		"DEBUG": lipgloss.NewStyle().Foreground(lipgloss.Color("8")),
		"INFO":  lipgloss.NewStyle().Foreground(lipgloss.Color("2")),
		"WARN":  lipgloss.NewStyle().Foreground(lipgloss.Color("3")),
		"ERROR": lipgloss.NewStyle().Foreground(lipgloss.Color("1")).Bold(true),
	}
	sourceStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("6"))
)

// NewViewer creates a viewer writing to out.
func NewViewer(cfg ViewerConfig, out io.Writer) *Viewer {
	return &Viewer{config: cfg, out: out}
}

// Tail returns the matching entries among the last n lines of the given
// files, merged by timestamp.
func (v *Viewer) Tail(paths []string, n int) ([]LogEntry, error) {
	var all []LogEntry
	var firstErr error

	for _, path := range paths {
		lines, err := lastLines(path, n)
		if err != nil {
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		source := sourceFromPath(path)
		for _, line := range lines {
			entry := v.parseLine(line, source)
			if v.matchesFilter(entry) {
				all = append(all, entry)
			}
		}
	}

	if len(all) == 0 && firstErr != nil {
		return nil, firstErr
	}

	sort.SliceStable(all, func(i, j int) bool {
		return all[i].Time.Before(all[j].Time)
	})
	if len(all) > n {
		all = all[len(all)-n:]
	}
	return all, nil
}

// Follow streams entries appended to the given files after the call until
// ctx is done.
func (v *Viewer) Follow(ctx context.Context, paths []string, entries chan<- LogEntry) error {
	type tail struct {
		file   *os.File
		reader *bufio.Reader
		source string
	}

	var tails []tail
	defer func() {
		for _, t := range tails {
			_ = t.file.Close()
		}
	}()

	for _, path := range paths {
		f, err := os.Open(path)
		if err != nil {
			return fmt.Errorf("failed to open log file: %w", err)
		}
		if _, err := f.Seek(0, io.SeekEnd); err != nil {
			_ = f.Close()
			return fmt.Errorf("failed to seek to end: %w", err)
		}
		tails = append(tails, tail{file: f, reader: bufio.NewReader(f), source: sourceFromPath(path)})
	}

	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}

		for _, t := range tails {
			for {
				line, err := t.reader.ReadString('\n')
				if err != nil {
					break
				}
				line = strings.TrimSuffix(line, "\n")
				if line == "" {
					continue
				}
				entry := v.parseLine(line, t.source)
				if !v.matchesFilter(entry) {
					continue
				}
				select {
				case entries <- entry:
				case <-ctx.Done():
					return nil
				}
			}
		}
	}
}

// FormatEntry renders entry as one line.
func (v *Viewer) FormatEntry(entry LogEntry) string {
	if !entry.IsValid {
		return entry.Raw
	}

	var sb strings.Builder
	sb.WriteString(entry.Time.Format("15:04:05.000"))
	sb.WriteByte(' ')
	sb.WriteString(v.formatLevel(entry.Level))
	sb.WriteByte(' ')
	if v.config.ShowSource && entry.Source != "" {
		sb.WriteString(v.style(sourceStyle, "["+entry.Source+"]"))
		sb.WriteByte(' ')
	}
	sb.WriteString(entry.Msg)

	keys := make([]string, 0, len(entry.Attrs))
	for k := range entry.Attrs {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		sb.WriteString(fmt.Sprintf(" %s=%s", k, entry.Attrs[k]))
	}
	return sb.String()
}

// Print writes every entry on its own line.
func (v *Viewer) Print(entries []LogEntry) {
	for _, entry := range entries {
		_, _ = fmt.Fprintln(v.out, v.FormatEntry(entry))
	}
}

func (v *Viewer) parseLine(line, source string) LogEntry {
	entry := LogEntry{Raw: line, Source: source}

	if !gjson.Valid(line) {
		return entry
	}
	doc := gjson.Parse(line)
	if !doc.IsObject() {
		return entry
	}

	entry.IsValid = true
	if t, err := time.Parse(time.RFC3339Nano, doc.Get("time").String()); err == nil {
		entry.Time = t
	}
	entry.Level = doc.Get("level").String()
	entry.Msg = doc.Get("msg").String()

	entry.Attrs = make(map[string]string)
	doc.ForEach(func(key, value gjson.Result) bool {
		switch key.String() {
		case "time", "level", "msg":
		default:
			entry.Attrs[key.String()] = value.String()
		}
		return true
	})
	return entry
}

func (v *Viewer) matchesFilter(entry LogEntry) bool {
	if v.config.Level != "" && entry.IsValid {
		if LevelFromString(entry.Level) < LevelFromString(v.config.Level) {
			return false
		}
	}
	if v.config.Pattern != nil && !v.config.Pattern.MatchString(entry.Raw) {
		return false
	}
	return true
}

func (v *Viewer) formatLevel(level string) string {
	label := strings.ToUpper(level)
	if label == "WARNING" {
		label = "WARN"
	}
	if len(label) > 5 {
		label = label[:5]
	}
	padded := fmt.Sprintf("%-5s", label)

	style, ok := levelStyles[label]
	if !ok {
		return padded
	}
	return v.style(style, padded)
}

func (v *Viewer) style(s lipgloss.Style, text string) string {
	if v.config.NoColor {
		return text
	}
	return s.Render(text)
}

func sourceFromPath(path string) string {
	base := filepath.Base(path)
	switch {
	case strings.HasPrefix(base, "mcp"):
		return string(LogSourceMCP)
	case strings.HasPrefix(base, "server"):
		return string(LogSourceServer)
	default:
		return "unknown"
	}
}

// lastLines reads the final n lines of path.
func lastLines(path string, n int) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open log file: %w", err)
	}
	defer func() { _ = f.Close() }()

	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 64*1024), 1024*1024)

	ring := make([]string, 0, n)
	for sc.Scan() {
		if n <= 0 {
			continue
		}
		if len(ring) == n {
			ring = append(ring[1:], sc.Text())
		} else {
			ring = append(ring, sc.Text())
		}
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("failed to read log file: %w", err)
	}
	return ring, nil
}

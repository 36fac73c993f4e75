package task

import (
	"errors"
	"math"
	"strconv"
	"strings"

	"github.com/tidwall/gjson"
)

// DefaultSubject is used when a task file has no usable subject.
const DefaultSubject = "Untitled Task"

// Parse failure reasons.
var (
	ErrUnparsable = errors.New("unparsable")
	ErrMissingID  = errors.New("missing id")
)

// ParseTask decodes one task file. Only a malformed document or a missing id
// rejects the record; every other field falls back to its default.
func ParseTask(data []byte, sessionID, filePath string) (Task, error) {
	if !gjson.ValidBytes(data) {
		return Task{}, ErrUnparsable
	}
	root := gjson.ParseBytes(data)
	if !root.IsObject() {
		return Task{}, ErrUnparsable
	}
	doc := lastWins(root)

	id := doc.Get("id")
	if !truthy(id) {
		return Task{}, ErrMissingID
	}

	t := Task{
		ID:          text(id),
		Subject:     DefaultSubject,
		Description: optional(doc.Get("description")),
		Status:      StatusPending,
		Owner:       optional(doc.Get("owner")),
		ActiveForm:  optional(doc.Get("activeForm")),
		BlockedBy:   stringList(doc.Get("blockedBy")),
		Blocks:      stringList(doc.Get("blocks")),
		SessionID:   sessionID,
		FilePath:    filePath,
	}
	if subject := doc.Get("subject"); truthy(subject) {
		t.Subject = text(subject)
	}
	if status := doc.Get("status"); status.Type == gjson.String {
		t.Status = ParseStatus(status.Str)
	}
	if meta := doc.Get("metadata"); meta.IsObject() {
		if m, ok := meta.Value().(map[string]any); ok {
			t.Metadata = m
		}
	}
	return t, nil
}

// fields holds the top-level members of an object. A repeated key keeps its
// last value.
type fields map[string]gjson.Result

func lastWins(obj gjson.Result) fields {
	f := make(fields)
	obj.ForEach(func(key, value gjson.Result) bool {
		f[key.Str] = value
		return true
	})
	return f
}

// Get returns the member named key, or a Result that does not exist.
func (f fields) Get(key string) gjson.Result {
	return f[key]
}

// truthy mirrors loose truthiness: absent, null, false, 0 and "" are false.
func truthy(r gjson.Result) bool {
	if !r.Exists() {
		return false
	}
	switch r.Type {
	case gjson.Null, gjson.False:
		return false
	case gjson.Number:
		return r.Num != 0
	case gjson.String:
		return r.Str != ""
	default:
		return true
	}
}

// text renders any JSON value as a string.
func text(r gjson.Result) string {
	switch r.Type {
	case gjson.String:
		return r.Str
	case gjson.Number:
		return formatNumber(r.Num)
	case gjson.Null:
		return "null"
	case gjson.True:
		return "true"
	case gjson.False:
		return "false"
	default:
		return r.Raw
	}
}

func optional(r gjson.Result) string {
	if !truthy(r) {
		return ""
	}
	return text(r)
}

func stringList(r gjson.Result) []string {
	if !r.IsArray() {
		return nil
	}
	items := r.Array()
	out := make([]string, 0, len(items))
	for _, item := range items {
		out = append(out, text(item))
	}
	return out
}

// formatNumber renders n the way a JavaScript String(n) does: plain digits
// inside [1e-6, 1e21), exponent form outside it.
func formatNumber(n float64) string {
	if n == 0 {
		return "0"
	}
	if abs := math.Abs(n); abs >= 1e-6 && abs < 1e21 {
		return strconv.FormatFloat(n, 'f', -1, 64)
	}
	mant, exp, _ := strings.Cut(strconv.FormatFloat(n, 'e', -1, 64), "e")
	sign := exp[:1]
	digits := strings.TrimLeft(exp[1:], "0")
	return mant + "e" + sign + digits
}

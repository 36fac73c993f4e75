package task

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseTask_FullRecord(t *testing.T) {
	// Given: a complete task document
	data := []byte(`{
		"id": "3",
		"subject": "Write parser",
		"description": "Handle every field",
		"status": "in_progress",
		"owner": "agent-1",
		"activeForm": "Writing parser",
		"blockedBy": ["1", "2"],
		"blocks": ["4"],
		"metadata": {"priority": "high", "estimate": 3}
	}`)

	// When: parsed
	got, err := ParseTask(data, "sess-a", "/tasks/sess-a/3.json")

	// Then: every field is carried over
	require.NoError(t, err)
	assert.Equal(t, Task{
		ID:          "3",
		Subject:     "Write parser",
		Description: "Handle every field",
		Status:      StatusInProgress,
		Owner:       "agent-1",
		ActiveForm:  "Writing parser",
		BlockedBy:   []string{"1", "2"},
		Blocks:      []string{"4"},
		Metadata:    map[string]any{"priority": "high", "estimate": float64(3)},
		SessionID:   "sess-a",
		FilePath:    "/tasks/sess-a/3.json",
	}, got)
	assert.Equal(t, Key{SessionID: "sess-a", ID: "3"}, got.Key())
}

func TestParseTask_Rejections(t *testing.T) {
	tests := []struct {
		name string
		data string
		want error
	}{
		{name: "invalid json", data: `{"id": "1",`, want: ErrUnparsable},
		{name: "truncated write", data: `{"id": "1", "subject": "hal`, want: ErrUnparsable},
		{name: "empty file", data: ``, want: ErrUnparsable},
		{name: "array document", data: `[{"id": "1"}]`, want: ErrUnparsable},
		{name: "null document", data: `null`, want: ErrUnparsable},
		{name: "no id", data: `{"subject": "x"}`, want: ErrMissingID},
		{name: "empty id", data: `{"id": ""}`, want: ErrMissingID},
		{name: "null id", data: `{"id": null}`, want: ErrMissingID},
		{name: "zero id", data: `{"id": 0}`, want: ErrMissingID},
		{name: "false id", data: `{"id": false}`, want: ErrMissingID},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseTask([]byte(tt.data), "s", "/f.json")
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestParseTask_StatusCoercion(t *testing.T) {
	tests := []struct {
		name string
		data string
		want Status
	}{
		{name: "pending", data: `{"id":"1","status":"pending"}`, want: StatusPending},
		{name: "in progress", data: `{"id":"1","status":"in_progress"}`, want: StatusInProgress},
		{name: "completed", data: `{"id":"1","status":"completed"}`, want: StatusCompleted},
		{name: "unknown value", data: `{"id":"1","status":"done"}`, want: StatusPending},
		{name: "wrong case", data: `{"id":"1","status":"Completed"}`, want: StatusPending},
		{name: "missing", data: `{"id":"1"}`, want: StatusPending},
		{name: "null", data: `{"id":"1","status":null}`, want: StatusPending},
		{name: "number", data: `{"id":"1","status":2}`, want: StatusPending},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseTask([]byte(tt.data), "s", "/f.json")
			require.NoError(t, err)
			assert.Equal(t, tt.want, got.Status)
		})
	}
}

func TestParseTask_FieldCoercion(t *testing.T) {
	// Given: optional fields with the wrong types
	data := []byte(`{
		"id": 7,
		"subject": "",
		"description": 12,
		"owner": false,
		"activeForm": null,
		"blockedBy": [1, "2", null, true],
		"blocks": "4",
		"metadata": ["not", "an", "object"]
	}`)

	// When: parsed
	got, err := ParseTask(data, "s", "/f.json")

	// Then: each field falls back independently
	require.NoError(t, err)
	assert.Equal(t, "7", got.ID)
	assert.Equal(t, DefaultSubject, got.Subject)
	assert.Equal(t, "12", got.Description)
	assert.Empty(t, got.Owner)
	assert.Empty(t, got.ActiveForm)
	assert.Equal(t, []string{"1", "2", "null", "true"}, got.BlockedBy)
	assert.Nil(t, got.Blocks)
	assert.Nil(t, got.Metadata)
}

func TestParseTask_NumericIDFormatting(t *testing.T) {
	got, err := ParseTask([]byte(`{"id": 1.0, "blocks": [2.5, 1e3]}`), "s", "/f.json")

	require.NoError(t, err)
	assert.Equal(t, "1", got.ID)
	assert.Equal(t, []string{"2.5", "1000"}, got.Blocks)
}

func TestParseTask_DuplicateKeysKeepLast(t *testing.T) {
	// Given: a document that repeats keys
	data := []byte(`{"id":"1","subject":"first","id":"2","subject":"second","metadata":{"k":1,"k":2}}`)

	// When: parsed
	got, err := ParseTask(data, "s", "/f.json")

	// Then: the last occurrence of each key wins
	require.NoError(t, err)
	assert.Equal(t, "2", got.ID)
	assert.Equal(t, "second", got.Subject)
	assert.Equal(t, map[string]any{"k": float64(2)}, got.Metadata)
}

func TestFormatNumber(t *testing.T) {
	tests := []struct {
		in   float64
		want string
	}{
		{0, "0"},
		{math.Copysign(0, -1), "0"},
		{42, "42"},
		{-2.5, "-2.5"},
		{1e20, "100000000000000000000"},
		{1e21, "1e+21"},
		{-1.5e300, "-1.5e+300"},
		{0.000001, "0.000001"},
		{1.5e-7, "1.5e-7"},
	}
	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			assert.Equal(t, tt.want, formatNumber(tt.in))
		})
	}
}

func TestParseTask_UnknownFieldsIgnored(t *testing.T) {
	got, err := ParseTask([]byte(`{"id":"1","subject":"x","extra":{"deep":true}}`), "s", "/f.json")

	require.NoError(t, err)
	assert.Equal(t, "x", got.Subject)
}

func TestParseStatus(t *testing.T) {
	assert.Equal(t, StatusCompleted, ParseStatus("completed"))
	assert.Equal(t, StatusPending, ParseStatus(""))
	assert.Equal(t, StatusPending, ParseStatus("blocked"))
}

package mcp

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	werrors "github.com/Chili6666/iclaude-workbench/internal/errors"
)

func TestMapError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		code int
	}{
		{"not found", werrors.New(werrors.ErrCodeNotFound, "plan not found", nil), ErrCodeNotFound},
		{"validation", werrors.ValidationError("planId is required", nil), ErrCodeInvalidParams},
		{"unknown command", werrors.New(werrors.ErrCodeUnknownCommand, "nope", nil), ErrCodeInvalidParams},
		{"daemon down", fmt.Errorf("call: %w", werrors.New(werrors.ErrCodeDaemonUnavailable, "daemon is not running", nil)), ErrCodeUnavailable},
		{"copy failed", werrors.New(werrors.ErrCodeCopyFailed, "copy failed", nil), ErrCodeInternalError},
		{"deadline", context.DeadlineExceeded, ErrCodeTimeout},
		{"canceled", context.Canceled, ErrCodeTimeout},
		{"plain", errors.New("boom"), ErrCodeInternalError},
		{"already mapped", NewInvalidParamsError("bad"), ErrCodeInvalidParams},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.code, MapError(tt.err).Code)
		})
	}
	assert.Nil(t, MapError(nil))
}

func TestMapError_IncludesSuggestion(t *testing.T) {
	err := werrors.New(werrors.ErrCodeDaemonUnavailable, "daemon is not running", nil).
		WithSuggestion("Run 'workbench daemon start'")

	assert.Equal(t, "daemon is not running Run 'workbench daemon start'", MapError(err).Message)
}

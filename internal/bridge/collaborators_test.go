package bridge

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	werrors "github.com/Chili6666/iclaude-workbench/internal/errors"
)

func TestFileCopier_CopiesIntoFolder(t *testing.T) {
	// Given: a plan and an empty project folder
	src := filepath.Join(t.TempDir(), "plan.md")
	require.NoError(t, os.WriteFile(src, []byte("# Plan"), 0o600))
	dstDir := t.TempDir()

	// When: copying
	written, err := (&FileCopier{}).Copy(context.Background(), src, dstDir)

	// Then: the file lands under its own name with normal permissions
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dstDir, "plan.md"), written)
	data, err := os.ReadFile(written)
	require.NoError(t, err)
	assert.Equal(t, "# Plan", string(data))
	info, err := os.Stat(written)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o644), info.Mode().Perm())

	entries, err := os.ReadDir(dstDir)
	require.NoError(t, err)
	assert.Len(t, entries, 1, "no temp files left behind")
}

func TestFileCopier_ExistingTarget(t *testing.T) {
	src := filepath.Join(t.TempDir(), "plan.md")
	require.NoError(t, os.WriteFile(src, []byte("new"), 0o644))
	dstDir := t.TempDir()
	dst := filepath.Join(dstDir, "plan.md")
	require.NoError(t, os.WriteFile(dst, []byte("old"), 0o644))

	t.Run("refused without confirm", func(t *testing.T) {
		_, err := (&FileCopier{}).Copy(context.Background(), src, dstDir)
		assert.Equal(t, werrors.ErrCodeFileExists, werrors.CodeOf(err))
		data, _ := os.ReadFile(dst)
		assert.Equal(t, "old", string(data))
	})

	t.Run("declined", func(t *testing.T) {
		c := &FileCopier{Confirm: func(context.Context, string) bool { return false }}
		_, err := c.Copy(context.Background(), src, dstDir)
		assert.Equal(t, werrors.ErrCodeFileExists, werrors.CodeOf(err))
	})

	t.Run("confirmed", func(t *testing.T) {
		var asked string
		c := &FileCopier{Confirm: func(_ context.Context, p string) bool { asked = p; return true }}
		_, err := c.Copy(context.Background(), src, dstDir)
		require.NoError(t, err)
		assert.Equal(t, dst, asked)
		data, _ := os.ReadFile(dst)
		assert.Equal(t, "new", string(data))
	})
}

func TestFileCopier_Errors(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "plan.md")
	require.NoError(t, os.WriteFile(src, []byte("x"), 0o644))
	c := &FileCopier{Confirm: func(context.Context, string) bool { return true }}
	ctx := context.Background()

	_, err := c.Copy(ctx, filepath.Join(dir, "missing.md"), t.TempDir())
	assert.Equal(t, werrors.ErrCodeFileNotFound, werrors.CodeOf(err))

	_, err = c.Copy(ctx, dir, t.TempDir())
	assert.Equal(t, werrors.ErrCodeInvalidPath, werrors.CodeOf(err))

	_, err = c.Copy(ctx, src, filepath.Join(dir, "nope"))
	assert.Equal(t, werrors.ErrCodeInvalidPath, werrors.CodeOf(err))

	_, err = c.Copy(ctx, src, dir)
	assert.Equal(t, werrors.ErrCodeFileExists, werrors.CodeOf(err), "copy onto itself")

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	_, err = c.Copy(cancelled, src, t.TempDir())
	assert.ErrorIs(t, err, context.Canceled)
}

func TestEditorOpener_CommandPrecedence(t *testing.T) {
	t.Setenv("VISUAL", "")
	t.Setenv("EDITOR", "nano -w")

	assert.Equal(t, []string{"code", "--wait"}, (&EditorOpener{Command: "code --wait"}).commandLine())
	assert.Equal(t, []string{"nano", "-w"}, (&EditorOpener{}).commandLine())

	t.Setenv("VISUAL", "gvim")
	assert.Equal(t, []string{"gvim"}, (&EditorOpener{}).commandLine())
}

func TestEditorOpener_Open(t *testing.T) {
	path := filepath.Join(t.TempDir(), "plan.md")
	require.NoError(t, os.WriteFile(path, []byte("# Plan"), 0o644))
	ctx := context.Background()

	assert.NoError(t, (&EditorOpener{Command: "true"}).Open(ctx, path))

	err := (&EditorOpener{Command: "workbench-no-such-editor"}).Open(ctx, path)
	assert.Equal(t, werrors.ErrCodeOpenFailed, werrors.CodeOf(err))

	err = (&EditorOpener{Command: "true"}).Open(ctx, filepath.Join(t.TempDir(), "gone.md"))
	assert.Equal(t, werrors.ErrCodeFileNotFound, werrors.CodeOf(err))

	err = (&EditorOpener{Command: "true"}).Open(ctx, t.TempDir())
	assert.Equal(t, werrors.ErrCodeInvalidPath, werrors.CodeOf(err))
}

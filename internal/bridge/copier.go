package bridge

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	werrors "github.com/Chili6666/iclaude-workbench/internal/errors"
)

// FileCopier copies plan files into project folders.
type FileCopier struct {
	// Confirm is asked before overwriting an existing file. A nil Confirm
	// refuses every overwrite.
	Confirm func(ctx context.Context, dst string) bool
}

// Copy writes src to dstDir/<base of src>. The write goes through a temp
// file in dstDir and a rename, so readers never see a partial file.
func (c *FileCopier) Copy(ctx context.Context, src, dstDir string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	srcInfo, err := os.Stat(src)
	if err != nil {
		return "", werrors.New(werrors.ErrCodeFileNotFound, "source not found: "+src, err)
	}
	if !srcInfo.Mode().IsRegular() {
		return "", werrors.New(werrors.ErrCodeInvalidPath, "source is not a regular file: "+src, nil)
	}

	dirInfo, err := os.Stat(dstDir)
	if err != nil || !dirInfo.IsDir() {
		return "", werrors.New(werrors.ErrCodeInvalidPath, "target folder does not exist: "+dstDir, err)
	}

	dst := filepath.Join(dstDir, filepath.Base(src))

	if dstInfo, err := os.Stat(dst); err == nil {
		if os.SameFile(srcInfo, dstInfo) {
			return "", werrors.New(werrors.ErrCodeFileExists, "source and target are the same file: "+dst, nil)
		}
		if c.Confirm == nil || !c.Confirm(ctx, dst) {
			return "", werrors.New(werrors.ErrCodeFileExists, filepath.Base(dst)+" already exists in "+dstDir, nil).
				WithDetail("target", dst).
				WithSuggestion("Remove the existing file or confirm the overwrite")
		}
	}

	if err := copyFile(src, dst); err != nil {
		return "", werrors.New(werrors.ErrCodeCopyFailed, "failed to copy "+filepath.Base(src), err).
			WithDetail("target", dst)
	}
	return dst, nil
}

func copyFile(src, dst string) (err error) {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer func() { _ = in.Close() }()

	tmp, err := os.CreateTemp(filepath.Dir(dst), "."+filepath.Base(dst)+".*")
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = os.Remove(tmp.Name())
		}
	}()

	if _, err = io.Copy(tmp, in); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("write: %w", err)
	}
	if err = tmp.Chmod(0o644); err != nil {
		_ = tmp.Close()
		return err
	}
	if err = tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), dst)
}

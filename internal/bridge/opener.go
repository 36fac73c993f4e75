package bridge

import (
	"context"
	"log/slog"
	"os"
	"os/exec"
	"runtime"
	"strings"

	werrors "github.com/Chili6666/iclaude-workbench/internal/errors"
)

// EditorOpener opens files with an external command.
//
// The command is Command if set, else $VISUAL, else $EDITOR, else the
// platform opener (open, xdg-open, or start). The command line is split on
// whitespace and the file path is appended as the last argument.
type EditorOpener struct {
	Command string
	Logger  *slog.Logger
}

// Open starts the editor on path without waiting for it to exit.
func (o *EditorOpener) Open(_ context.Context, path string) error {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return werrors.New(werrors.ErrCodeFileNotFound, "file not found: "+path, err)
		}
		return werrors.New(werrors.ErrCodeFilePermission, "cannot access "+path, err)
	}
	if info.IsDir() {
		return werrors.New(werrors.ErrCodeInvalidPath, "not a file: "+path, nil)
	}

	argv := o.commandLine()
	if len(argv) == 0 {
		return werrors.New(werrors.ErrCodeOpenFailed, "no editor configured", nil).
			WithSuggestion("Set editor.command, $VISUAL or $EDITOR")
	}

	// The editor outlives the request, so it is not bound to ctx.
	cmd := exec.Command(argv[0], append(argv[1:], path)...)
	if err := cmd.Start(); err != nil {
		return werrors.New(werrors.ErrCodeOpenFailed, "failed to start "+argv[0], err).
			WithDetail("path", path)
	}

	logger := o.Logger
	if logger == nil {
		logger = slog.Default()
	}
	go func() {
		if err := cmd.Wait(); err != nil {
			logger.Debug("editor exited", slog.String("command", argv[0]), slog.String("error", err.Error()))
		}
	}()
	return nil
}

func (o *EditorOpener) commandLine() []string {
	for _, c := range []string{o.Command, os.Getenv("VISUAL"), os.Getenv("EDITOR")} {
		if f := strings.Fields(c); len(f) > 0 {
			return f
		}
	}
	switch runtime.GOOS {
	case "darwin":
		return []string{"open"}
	case "windows":
		return []string{"cmd", "/c", "start", ""}
	default:
		return []string{"xdg-open"}
	}
}

// Package output places assistant replies on the system clipboard.
package output

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/exec"
	"strings"
	"time"

	"github.com/ItsAbhinavM/Bob/internal/logging"
)

// DefaultTimeout bounds one clipboard command.
const DefaultTimeout = 2 * time.Second

// ErrNothingToCopy is returned for blank text.
var ErrNothingToCopy = errors.New("nothing to copy")

// Clipboard pipes text into a clipboard command such as wl-copy.
type Clipboard struct {
	argv    []string
	timeout time.Duration
	logger  *slog.Logger
}

// NewClipboard builds a clipboard writer for argv.
func NewClipboard(argv []string, logger *slog.Logger) *Clipboard {
	return &Clipboard{
		argv:    append([]string(nil), argv...),
		timeout: DefaultTimeout,
		logger:  logging.OrDiscard(logger),
	}
}

// Copy writes text to the clipboard. Surrounding whitespace is trimmed.
func (c *Clipboard) Copy(ctx context.Context, text string) error {
	text = strings.TrimSpace(text)
	if text == "" {
		return ErrNothingToCopy
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()
	if err := runCommandWithInput(ctx, c.argv, text); err != nil {
		return fmt.Errorf("set clipboard: %w", err)
	}
	c.logger.Info("reply copied to clipboard", "chars", len(text))
	return nil
}

// runCommandWithInput executes argv and optionally writes input to stdin.
func runCommandWithInput(ctx context.Context, argv []string, input string) error {
	if len(argv) == 0 {
		return fmt.Errorf("command argv cannot be empty")
	}

	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return fmt.Errorf("open stdin for %s: %w", argv[0], err)
	}

	if err := cmd.Start(); err != nil {
		_ = stdin.Close()
		return fmt.Errorf("start command %s: %w", argv[0], err)
	}

	if input != "" {
		if _, err := stdin.Write([]byte(input)); err != nil {
			_ = stdin.Close()
			_ = cmd.Wait()
			return fmt.Errorf("write stdin for %s: %w", argv[0], err)
		}
	}
	_ = stdin.Close()

	if err := cmd.Wait(); err != nil {
		return fmt.Errorf("wait for %s: %w", argv[0], err)
	}
	return nil
}

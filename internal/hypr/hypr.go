// Package hypr drives Hyprland's built-in notification overlay through hyprctl.
package hypr

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"strings"
)

// Icons understood by `hyprctl notify`.
const (
	IconWarning = 0
	IconInfo    = 1
	IconHint    = 2
	IconError   = 3
	IconConfuse = 4
	IconOK      = 5
)

// DefaultColor is used when a notification names no color.
const DefaultColor = "rgb(89b4fa)"

// Notification is one overlay message.
type Notification struct {
	Icon      int
	TimeoutMS int
	Color     string
	Text      string
}

// Notify shows n in the compositor overlay.
func Notify(ctx context.Context, n Notification) error {
	text := strings.TrimSpace(n.Text)
	if text == "" {
		return errors.New("notification text must not be empty")
	}
	color := strings.TrimSpace(n.Color)
	if color == "" {
		color = DefaultColor
	}
	return runHyprctl(
		ctx,
		"--quiet",
		"dispatch",
		"notify",
		strconv.Itoa(n.Icon),
		strconv.Itoa(n.TimeoutMS),
		color,
		text,
	)
}

// DismissNotify dismisses active Hyprland notifications.
func DismissNotify(ctx context.Context) error {
	return runHyprctl(ctx, "--quiet", "dispatch", "dismissnotify")
}

// SessionActive reports whether this process runs inside a Hyprland session.
func SessionActive() bool {
	return strings.TrimSpace(os.Getenv("HYPRLAND_INSTANCE_SIGNATURE")) != ""
}

func runHyprctl(ctx context.Context, args ...string) error {
	cmd := exec.CommandContext(ctx, "hyprctl", args...)
	out, err := cmd.CombinedOutput()
	if err != nil {
		trimmed := strings.TrimSpace(string(out))
		if trimmed == "" {
			return fmt.Errorf("hyprctl %v failed: %w", args, err)
		}
		return fmt.Errorf("hyprctl %v failed: %w (%s)", args, err, trimmed)
	}
	return nil
}

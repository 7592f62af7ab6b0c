package ipc

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"os"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/ItsAbhinavM/Bob/internal/logging"
)

// SocketEnv overrides the session socket path.
const SocketEnv = "BOB_SOCKET"

var ErrAlreadyRunning = errors.New("bob session already running")

// RuntimeSocketPath is $BOB_SOCKET, or bob.sock under $XDG_RUNTIME_DIR.
func RuntimeSocketPath() (string, error) {
	if path := strings.TrimSpace(os.Getenv(SocketEnv)); path != "" {
		return path, nil
	}
	runtimeDir := strings.TrimSpace(os.Getenv("XDG_RUNTIME_DIR"))
	if runtimeDir == "" {
		return "", errors.New("XDG_RUNTIME_DIR is not set")
	}
	return filepath.Join(runtimeDir, "bob.sock"), nil
}

// Owner is the session socket held by the running talk process.
type Owner struct {
	*net.UnixListener
	path string
	info os.FileInfo
}

// Path is the socket path the owner listens on.
func (o *Owner) Path() string {
	return o.path
}

// Release closes the listener and unlinks the socket, unless another
// process has since replaced it.
func (o *Owner) Release() error {
	err := o.UnixListener.Close()
	if errors.Is(err, net.ErrClosed) {
		err = nil
	}
	current, statErr := os.Lstat(o.path)
	if statErr != nil || !os.SameFile(current, o.info) {
		return err
	}
	if removeErr := os.Remove(o.path); removeErr != nil && !errors.Is(removeErr, os.ErrNotExist) {
		return errors.Join(err, fmt.Errorf("remove socket %s: %w", o.path, removeErr))
	}
	return err
}

// Acquire claims path for a new session. A live owner yields
// ErrAlreadyRunning; a stale socket left by a crashed session is removed and
// the claim retried with a growing pause. A socket whose owner does not
// answer in time is left alone.
func Acquire(ctx context.Context, path string, probeTimeout time.Duration, retries int, logger *slog.Logger) (*Owner, error) {
	logger = logging.OrDiscard(logger)
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("ensure runtime socket dir: %w", err)
	}

	for attempt := 0; attempt <= retries; attempt++ {
		owner, err := listenOwner(path)
		if err == nil {
			return owner, nil
		}
		if !errors.Is(err, syscall.EADDRINUSE) {
			return nil, fmt.Errorf("listen unix %s: %w", path, err)
		}

		alive, probeErr := Probe(ctx, path, probeTimeout)
		if alive {
			return nil, ErrAlreadyRunning
		}
		if probeErr != nil {
			return nil, fmt.Errorf("probe existing socket %s: %w", path, probeErr)
		}

		if removeErr := os.Remove(path); removeErr != nil && !errors.Is(removeErr, os.ErrNotExist) {
			return nil, fmt.Errorf("remove stale socket %s: %w", path, removeErr)
		}
		logger.Warn("removed stale session socket", "path", path, "attempt", attempt+1)

		if attempt < retries {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(time.Duration(25*(attempt+1)) * time.Millisecond):
			}
		}
	}

	return nil, fmt.Errorf("failed to acquire socket %s after %d retries", path, retries)
}

func listenOwner(path string) (*Owner, error) {
	listener, err := net.ListenUnix("unix", &net.UnixAddr{Name: path, Net: "unix"})
	if err != nil {
		return nil, err
	}
	// Release decides about unlinking; Close alone must not remove a
	// socket that a newer session took over.
	listener.SetUnlinkOnClose(false)
	_ = os.Chmod(path, 0o600)

	info, err := os.Lstat(path)
	if err != nil {
		_ = listener.Close()
		return nil, fmt.Errorf("stat socket %s: %w", path, err)
	}
	return &Owner{UnixListener: listener, path: path, info: info}, nil
}

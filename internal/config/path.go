package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
)

const appName = "bob"

// ResolvePath applies CLI/XDG/home fallback rules for config.jsonc location.
func ResolvePath(explicit string) (string, error) {
	if strings.TrimSpace(explicit) != "" {
		return explicit, nil
	}

	if xdg := strings.TrimSpace(os.Getenv("XDG_CONFIG_HOME")); xdg != "" {
		return filepath.Join(xdg, appName, "config.jsonc"), nil
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "", errors.New("unable to resolve user home for config fallback")
	}

	return filepath.Join(home, ".config", appName, "config.jsonc"), nil
}

// StateDir returns $XDG_STATE_HOME/bob, falling back to ~/.local/state/bob.
func StateDir() (string, error) {
	if xdg := strings.TrimSpace(os.Getenv("XDG_STATE_HOME")); xdg != "" {
		return filepath.Join(xdg, appName), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", errors.New("unable to resolve user home for state directory")
	}
	return filepath.Join(home, ".local", "state", appName), nil
}

// HistoryPaths resolves the history file and export directory, defaulting
// both into the state directory.
func HistoryPaths(cfg HistoryConfig) (string, string, error) {
	path := expandUserPath(cfg.Path)
	exportDir := expandUserPath(cfg.ExportDir)
	if path != "" && exportDir != "" {
		return path, exportDir, nil
	}

	stateDir, err := StateDir()
	if err != nil {
		return "", "", err
	}
	if path == "" {
		path = filepath.Join(stateDir, "history.json")
	}
	if exportDir == "" {
		exportDir = filepath.Join(stateDir, "exports")
	}
	return path, exportDir, nil
}

func expandUserPath(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw != "~" && !strings.HasPrefix(raw, "~/") {
		return raw
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return raw
	}
	return filepath.Join(home, strings.TrimPrefix(strings.TrimPrefix(raw, "~"), "/"))
}

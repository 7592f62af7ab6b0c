package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
)

// BaseURLEnv overrides backend.base_url when set.
const BaseURLEnv = "BOB_API_URL"

// Loaded captures resolved config path, parsed values, and non-fatal warnings.
type Loaded struct {
	Path     string
	Config   Config
	Warnings []Warning
	Exists   bool
}

// Load resolves, reads, parses, and validates the runtime configuration.
func Load(explicitPath string) (Loaded, error) {
	resolvedPath, err := ResolvePath(explicitPath)
	if err != nil {
		return Loaded{}, err
	}

	loaded := Loaded{Path: resolvedPath, Config: Default()}
	content, err := os.ReadFile(resolvedPath)
	switch {
	case errors.Is(err, os.ErrNotExist):
		loaded.Warnings = []Warning{{
			Message: fmt.Sprintf("config file %q not found; using defaults", resolvedPath),
		}}
	case err != nil:
		return Loaded{}, fmt.Errorf("read config %q: %w", resolvedPath, err)
	default:
		cfg, warnings, err := Parse(string(content), loaded.Config)
		if err != nil {
			return Loaded{}, fmt.Errorf("parse config %q: %w", resolvedPath, err)
		}
		loaded.Config = cfg
		loaded.Warnings = warnings
		loaded.Exists = true
	}

	if err := applyEnvironment(&loaded.Config); err != nil {
		return Loaded{}, err
	}
	return loaded, nil
}

// applyEnvironment layers environment overrides over the parsed config.
func applyEnvironment(cfg *Config) error {
	raw := strings.TrimSpace(os.Getenv(BaseURLEnv))
	if raw == "" {
		return nil
	}
	if err := validateBaseURL(raw); err != nil {
		return fmt.Errorf("%s: %w", BaseURLEnv, err)
	}
	cfg.Backend.BaseURL = strings.TrimRight(raw, "/")
	return nil
}

// Package doctor runs readiness diagnostics for config, tools, audio, Riva,
// and the assistant backend.
package doctor

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/ItsAbhinavM/Bob/internal/audio"
	"github.com/ItsAbhinavM/Bob/internal/backend"
	"github.com/ItsAbhinavM/Bob/internal/config"
	"github.com/ItsAbhinavM/Bob/internal/riva"
)

const probeTimeout = 2 * time.Second

// Check is one doctor assertion result.
type Check struct {
	Name    string
	Pass    bool
	Message string
}

// Report is the full doctor output contract.
type Report struct {
	Checks []Check
}

// OK returns true when all checks pass.
func (r Report) OK() bool {
	for _, check := range r.Checks {
		if !check.Pass {
			return false
		}
	}
	return true
}

// String renders the report as user-facing text output.
func (r Report) String() string {
	var b strings.Builder
	for _, check := range r.Checks {
		status := "OK"
		if !check.Pass {
			status = "FAIL"
		}
		b.WriteString(fmt.Sprintf("[%s] %s: %s\n", status, check.Name, check.Message))
	}
	return strings.TrimSuffix(b.String(), "\n")
}

// Run executes environment/config/runtime checks for a loaded config.
func Run(ctx context.Context, cfg config.Loaded) Report {
	checks := []Check{}

	message := fmt.Sprintf("loaded %q", cfg.Path)
	if !cfg.Exists {
		message = fmt.Sprintf("using defaults (%q not found)", cfg.Path)
	}
	checks = append(checks, Check{Name: "config", Pass: true, Message: message})

	checks = append(checks, checkCommand(cfg.Config.Clipboard.Argv, "clipboard_cmd"))
	if cfg.Config.Indicator.Enable {
		checks = append(checks, checkIndicator(cfg.Config.Indicator)...)
	}

	checks = append(checks, checkAudioSelection(ctx, cfg.Config))
	checks = append(checks, checkRivaReady(ctx, cfg.Config))
	checks = append(checks, checkRivaGRPC(ctx, cfg.Config))
	checks = append(checks, checkBackend(ctx, cfg.Config))

	return Report{Checks: checks}
}

// checkEnv validates an environment variable through a caller-supplied predicate.
func checkEnv(name string, predicate func(string) bool, okMsg, failMsg string) Check {
	value := os.Getenv(name)
	if predicate(value) {
		return Check{Name: name, Pass: true, Message: okMsg}
	}
	return Check{Name: name, Pass: false, Message: failMsg}
}

// checkCommand validates that argv contains a runnable command.
func checkCommand(argv []string, name string) Check {
	if len(argv) == 0 {
		return Check{Name: name, Pass: false, Message: "command is empty"}
	}
	return checkBinary(argv[0], fmt.Sprintf("%s command is available", name))
}

// checkBinary validates that a binary exists in PATH.
func checkBinary(bin string, okMsg string) Check {
	path, err := exec.LookPath(bin)
	if err != nil {
		return Check{Name: bin, Pass: false, Message: fmt.Sprintf("binary not found in PATH: %s", bin)}
	}
	return Check{Name: bin, Pass: true, Message: fmt.Sprintf("found at %s (%s)", path, okMsg)}
}

func nonBlank(v string) bool { return strings.TrimSpace(v) != "" }

// checkIndicator verifies the session the configured notification backend talks to.
func checkIndicator(cfg config.IndicatorConfig) []Check {
	if strings.EqualFold(strings.TrimSpace(cfg.Backend), "desktop") {
		return []Check{checkEnv("DBUS_SESSION_BUS_ADDRESS", nonBlank,
			"session bus available for desktop notifications", "DBUS_SESSION_BUS_ADDRESS is empty")}
	}
	return []Check{
		checkEnv("HYPRLAND_INSTANCE_SIGNATURE", nonBlank, "Hyprland session detected", "HYPRLAND_INSTANCE_SIGNATURE is empty"),
		checkBinary("hyprctl", "indicator notifications use hyprctl"),
	}
}

// checkAudioSelection runs live device selection to surface selection/fallback issues.
func checkAudioSelection(ctx context.Context, cfg config.Config) Check {
	selection, err := audio.SelectDevice(ctx, cfg.Audio.Input, cfg.Audio.Fallback)
	if err != nil {
		return Check{Name: "audio.device", Pass: false, Message: err.Error()}
	}
	message := fmt.Sprintf("selected %q", selection.Device.ID)
	if selection.Warning != "" {
		message = message + " (" + selection.Warning + ")"
	}
	return Check{Name: "audio.device", Pass: true, Message: message}
}

// checkRivaReady probes the configured Riva HTTP ready endpoint.
func checkRivaReady(ctx context.Context, cfg config.Config) Check {
	base := strings.TrimSpace(cfg.Riva.HTTP)
	if base == "" {
		return Check{Name: "riva.ready", Pass: false, Message: "riva.http is empty"}
	}
	if !strings.HasPrefix(base, "http://") && !strings.HasPrefix(base, "https://") {
		base = "http://" + base
	}

	url := strings.TrimRight(base, "/") + cfg.Riva.HealthPath
	ctx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return Check{Name: "riva.ready", Pass: false, Message: fmt.Sprintf("build request: %v", err)}
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return Check{Name: "riva.ready", Pass: false, Message: fmt.Sprintf("request failed: %v", err)}
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 256))
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return Check{Name: "riva.ready", Pass: false, Message: fmt.Sprintf("HTTP %d from %s", resp.StatusCode, url)}
	}

	bodyText := strings.ToLower(strings.TrimSpace(string(body)))
	if bodyText != "" && !strings.Contains(bodyText, "ready") {
		return Check{Name: "riva.ready", Pass: true, Message: fmt.Sprintf("HTTP %d from %s", resp.StatusCode, url)}
	}

	return Check{Name: "riva.ready", Pass: true, Message: fmt.Sprintf("ready at %s", url)}
}

// checkRivaGRPC confirms the speech endpoint accepts connections.
func checkRivaGRPC(ctx context.Context, cfg config.Config) Check {
	endpoint := strings.TrimSpace(cfg.Riva.GRPC)
	if endpoint == "" {
		return Check{Name: "riva.grpc", Pass: false, Message: "riva.grpc is empty; voice input and output are disabled"}
	}
	if err := riva.Probe(ctx, endpoint, probeTimeout); err != nil {
		return Check{Name: "riva.grpc", Pass: false, Message: err.Error()}
	}
	return Check{Name: "riva.grpc", Pass: true, Message: fmt.Sprintf("connected to %s", endpoint)}
}

// checkBackend calls the assistant backend health endpoint.
func checkBackend(ctx context.Context, cfg config.Config) Check {
	client := backend.New(cfg.Backend.BaseURL, backend.WithTimeout(probeTimeout))
	health, err := client.Health(ctx)
	if err != nil {
		return Check{Name: "backend", Pass: false, Message: err.Error()}
	}
	status := strings.TrimSpace(health.Status)
	if status == "" {
		status = "reachable"
	}
	return Check{Name: "backend", Pass: true, Message: fmt.Sprintf("%s at %s", status, client.BaseURL())}
}

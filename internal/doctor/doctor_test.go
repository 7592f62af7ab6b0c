package doctor

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/ItsAbhinavM/Bob/internal/config"
	"github.com/stretchr/testify/require"
)

func TestReportOKAndString(t *testing.T) {
	report := Report{Checks: []Check{
		{Name: "one", Pass: true, Message: "good"},
		{Name: "two", Pass: false, Message: "bad"},
	}}

	require.False(t, report.OK())
	text := report.String()
	require.Contains(t, text, "[OK] one: good")
	require.Contains(t, text, "[FAIL] two: bad")
}

func TestReportOKAllPassing(t *testing.T) {
	report := Report{Checks: []Check{{Name: "one", Pass: true}, {Name: "two", Pass: true}}}
	require.True(t, report.OK())
}

func TestCheckEnv(t *testing.T) {
	t.Setenv("TEST_DOCTOR_ENV", "wayland")

	check := checkEnv(
		"TEST_DOCTOR_ENV",
		func(v string) bool { return strings.EqualFold(v, "wayland") },
		"looks good",
		"unexpected",
	)

	require.True(t, check.Pass)
	require.Equal(t, "looks good", check.Message)
}

func TestCheckCommandEmpty(t *testing.T) {
	check := checkCommand(nil, "clipboard_cmd")
	require.False(t, check.Pass)
	require.Contains(t, check.Message, "command is empty")
}

func TestCheckBinaryFound(t *testing.T) {
	check := checkBinary("sh", "shell available")
	require.True(t, check.Pass)
	require.Contains(t, check.Message, "shell available")
}

func TestCheckBinaryMissing(t *testing.T) {
	check := checkBinary("definitely-not-a-real-binary", "unused")
	require.False(t, check.Pass)
	require.Contains(t, check.Message, "binary not found")
}

func TestCheckCommandUsesBinaryFromPath(t *testing.T) {
	dir := t.TempDir()
	scriptPath := filepath.Join(dir, "fake-bin")
	require.NoError(t, os.WriteFile(scriptPath, []byte("#!/usr/bin/env bash\nexit 0\n"), 0o755))
	t.Setenv("PATH", dir+":"+os.Getenv("PATH"))

	check := checkCommand([]string{"fake-bin", "--arg"}, "clipboard_cmd")
	require.True(t, check.Pass)
	require.Contains(t, check.Message, "clipboard_cmd command is available")
}

func TestCheckIndicatorBackends(t *testing.T) {
	t.Setenv("PATH", t.TempDir())
	t.Setenv("HYPRLAND_INSTANCE_SIGNATURE", "")
	t.Setenv("DBUS_SESSION_BUS_ADDRESS", "unix:path=/run/user/1000/bus")

	hypr := checkIndicator(config.IndicatorConfig{Backend: "hypr"})
	require.Len(t, hypr, 2)
	require.False(t, hypr[0].Pass)
	require.Equal(t, "hyprctl", hypr[1].Name)
	require.False(t, hypr[1].Pass)

	desktop := checkIndicator(config.IndicatorConfig{Backend: "desktop"})
	require.Len(t, desktop, 1)
	require.True(t, desktop[0].Pass)
	require.Equal(t, "DBUS_SESSION_BUS_ADDRESS", desktop[0].Name)
}

func TestCheckRivaReadySuccess(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/v1/health/ready", r.URL.Path)
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ready"))
	}))
	t.Cleanup(server.Close)

	cfg := config.Default()
	cfg.Riva.HTTP = strings.TrimPrefix(server.URL, "http://")
	cfg.Riva.HealthPath = "/v1/health/ready"

	check := checkRivaReady(context.Background(), cfg)
	require.True(t, check.Pass)
	require.Contains(t, check.Message, "ready at")
}

func TestCheckRivaReadyFailureStatusCode(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	t.Cleanup(server.Close)

	cfg := config.Default()
	cfg.Riva.HTTP = server.URL
	cfg.Riva.HealthPath = "/v1/health/ready"

	check := checkRivaReady(context.Background(), cfg)
	require.False(t, check.Pass)
	require.Contains(t, check.Message, "HTTP 503")
}

func TestCheckRivaReadyPassesOnHTTP200NonReadyBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("warming-up"))
	}))
	t.Cleanup(server.Close)

	cfg := config.Default()
	cfg.Riva.HTTP = strings.TrimPrefix(server.URL, "http://")
	cfg.Riva.HealthPath = "/v1/health/ready"

	check := checkRivaReady(context.Background(), cfg)
	require.True(t, check.Pass)
	require.Contains(t, check.Message, "HTTP 200")
}

func TestCheckRivaReadyEmptyBaseURL(t *testing.T) {
	cfg := config.Default()
	cfg.Riva.HTTP = ""

	check := checkRivaReady(context.Background(), cfg)
	require.False(t, check.Pass)
	require.Contains(t, check.Message, "riva.http is empty")
}

func TestCheckRivaGRPCEmptyEndpoint(t *testing.T) {
	cfg := config.Default()
	cfg.Riva.GRPC = ""

	check := checkRivaGRPC(context.Background(), cfg)
	require.False(t, check.Pass)
	require.Contains(t, check.Message, "voice input and output are disabled")
}

func TestCheckBackendHealth(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/health", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"healthy","service":"bob"}`))
	}))
	t.Cleanup(server.Close)

	cfg := config.Default()
	cfg.Backend.BaseURL = server.URL

	check := checkBackend(context.Background(), cfg)
	require.True(t, check.Pass)
	require.Equal(t, "healthy at "+server.URL, check.Message)
}

func TestCheckBackendFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	t.Cleanup(server.Close)

	cfg := config.Default()
	cfg.Backend.BaseURL = server.URL

	check := checkBackend(context.Background(), cfg)
	require.False(t, check.Pass)
	require.Equal(t, "backend", check.Name)
}

func TestCheckAudioSelectionFailureWithInvalidPulseServer(t *testing.T) {
	t.Setenv("PULSE_SERVER", "unix:/tmp/definitely-missing-pulse-server")

	check := checkAudioSelection(context.Background(), config.Default())
	require.False(t, check.Pass)
	require.Contains(t, check.Name, "audio.device")
}

func TestRunReportsEveryConcern(t *testing.T) {
	t.Setenv("PULSE_SERVER", "unix:/tmp/definitely-missing-pulse-server")
	t.Setenv("HYPRLAND_INSTANCE_SIGNATURE", "abc123")

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"status":"healthy"}`))
	}))
	t.Cleanup(server.Close)

	cfg := config.Default()
	cfg.Backend.BaseURL = server.URL
	cfg.Riva.HTTP = ""
	cfg.Riva.GRPC = ""
	cfg.Indicator.Enable = true
	cfg.Indicator.Backend = "hypr"

	report := Run(context.Background(), config.Loaded{Path: "/tmp/config.jsonc", Config: cfg})
	require.False(t, report.OK())

	names := make([]string, 0, len(report.Checks))
	for _, check := range report.Checks {
		names = append(names, check.Name)
	}
	require.Contains(t, names, "config")
	require.Contains(t, names, "HYPRLAND_INSTANCE_SIGNATURE")
	require.Contains(t, names, "hyprctl")
	require.Contains(t, names, "audio.device")
	require.Contains(t, names, "riva.ready")
	require.Contains(t, names, "riva.grpc")
	require.Contains(t, names, "backend")
	require.Contains(t, report.Checks[0].Message, "using defaults")
}

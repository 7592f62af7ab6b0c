// Package app dispatches parsed bob commands: the talk session owner, the
// thin clients that forward to it, and the one-shot backend commands.
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/ItsAbhinavM/Bob/internal/cli"
	"github.com/ItsAbhinavM/Bob/internal/config"
	"github.com/ItsAbhinavM/Bob/internal/doctor"
	"github.com/ItsAbhinavM/Bob/internal/ipc"
	"github.com/ItsAbhinavM/Bob/internal/logging"
	"github.com/ItsAbhinavM/Bob/internal/version"
)

const forwardTimeout = 220 * time.Millisecond

// errNoSession is reported by commands that only make sense against `bob talk`.
var errNoSession = errors.New("no active bob session")

type Runner struct {
	Stdout io.Writer
	Stderr io.Writer
	Logger *slog.Logger
}

func Execute(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	r := Runner{Stdout: stdout, Stderr: stderr}
	return r.Execute(ctx, args)
}

func (r Runner) Execute(ctx context.Context, args []string) int {
	parsed, err := cli.Parse(args)
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n\n", err)
		fmt.Fprint(r.Stderr, cli.HelpText("bob"))
		return 2
	}

	if parsed.ShowHelp {
		fmt.Fprint(r.Stdout, cli.HelpText("bob"))
		return 0
	}

	if parsed.Command == cli.CommandVersion {
		fmt.Fprintln(r.Stdout, version.String())
		return 0
	}

	logRuntime, err := logging.New()
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: setup logging: %v\n", err)
		return 1
	}
	defer func() { _ = logRuntime.Close() }()

	logger := r.Logger
	if logger == nil {
		logger = logRuntime.Logger
	}

	cfgLoaded, err := config.Load(parsed.ConfigPath)
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		logger.Error("load config failed", "error", err.Error())
		return 1
	}
	for _, w := range cfgLoaded.Warnings {
		msg := w.Message
		if w.Line > 0 {
			msg = fmt.Sprintf("line %d: %s", w.Line, w.Message)
		}
		fmt.Fprintf(r.Stderr, "warning: %s\n", msg)
		logger.Warn("config warning", "line", w.Line, "message", w.Message)
	}

	logger.Info("command start",
		"command", parsed.Command,
		"config", cfgLoaded.Path,
		"log", logRuntime.Path,
	)

	cfg := cfgLoaded.Config
	switch parsed.Command {
	case cli.CommandTalk:
		return r.commandTalk(ctx, cfg, parsed.NoListen, logger)
	case cli.CommandStatus:
		return r.commandStatus(ctx)
	case cli.CommandListen, cli.CommandStop, cli.CommandHush, cli.CommandQuit:
		return r.forwardOrFail(ctx, ipc.Request{Command: string(parsed.Command)})
	case cli.CommandSay:
		return r.commandSay(ctx, cfg, parsed.Text(), logger)
	case cli.CommandHistory:
		return r.commandHistory(ctx, cfg, logger)
	case cli.CommandReset:
		return r.commandReset(ctx, cfg, logger)
	case cli.CommandCopy:
		return r.commandCopy(ctx, cfg, logger)
	case cli.CommandTasks:
		action, operands := parsed.TaskCommand()
		return r.commandTasks(ctx, cfg, action, operands, logger)
	case cli.CommandWeather:
		return r.commandWeather(ctx, cfg, parsed.Text(), logger)
	case cli.CommandVoices:
		return r.commandVoices(ctx, cfg)
	case cli.CommandDevices:
		return r.commandDevices(ctx)
	case cli.CommandDoctor:
		report := doctor.Run(ctx, cfgLoaded)
		fmt.Fprintln(r.Stdout, report.String())
		if report.OK() {
			return 0
		}
		return 1
	default:
		fmt.Fprintf(r.Stderr, "error: unsupported command %q\n", parsed.Command)
		return 2
	}
}

func (r Runner) commandStatus(ctx context.Context) int {
	socketPath, err := ipc.RuntimeSocketPath()
	if err != nil {
		fmt.Fprintln(r.Stdout, "idle")
		return 0
	}

	resp, handled, err := tryForward(ctx, socketPath, ipc.Request{Command: ipc.CommandStatus}, forwardTimeout)
	if handled {
		if err != nil {
			fmt.Fprintf(r.Stderr, "error: %v\n", err)
			return 1
		}
		if resp.State == "" {
			resp.State = "idle"
		}
		fmt.Fprintln(r.Stdout, resp.State)
		if resp.Transcript != "" {
			fmt.Fprintf(r.Stdout, "transcript: %s\n", resp.Transcript)
		}
		if resp.Error != "" {
			fmt.Fprintf(r.Stdout, "error: %s\n", resp.Error)
		}
		return 0
	}

	fmt.Fprintln(r.Stdout, "idle")
	return 0
}

func (r Runner) forwardOrFail(ctx context.Context, req ipc.Request) int {
	socketPath, err := ipc.RuntimeSocketPath()
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return 1
	}

	resp, handled, err := tryForward(ctx, socketPath, req, forwardTimeout)
	if !handled {
		fmt.Fprintf(r.Stderr, "error: %v\n", errNoSession)
		return 1
	}
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return 1
	}
	if resp.Message != "" {
		fmt.Fprintln(r.Stdout, resp.Message)
	}
	return 0
}

// forward sends req to a running session. handled is false when no session
// is listening on the socket, so callers can fall back to offline mode.
func forward(ctx context.Context, req ipc.Request, timeout time.Duration) (ipc.Response, bool, error) {
	socketPath, err := ipc.RuntimeSocketPath()
	if err != nil {
		return ipc.Response{}, false, nil
	}
	return tryForward(ctx, socketPath, req, timeout)
}

func tryForward(ctx context.Context, socketPath string, req ipc.Request, timeout time.Duration) (ipc.Response, bool, error) {
	resp, err := ipc.Send(ctx, socketPath, req, timeout)
	if err == nil {
		if resp.OK {
			return resp, true, nil
		}
		return resp, true, errors.New(resp.Error)
	}

	if errors.Is(err, ipc.ErrNoOwner) {
		return ipc.Response{}, false, nil
	}
	return ipc.Response{}, true, fmt.Errorf("forward command %q: %w", req.Command, err)
}

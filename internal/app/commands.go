package app

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/ItsAbhinavM/Bob/internal/audio"
	"github.com/ItsAbhinavM/Bob/internal/backend"
	"github.com/ItsAbhinavM/Bob/internal/cli"
	"github.com/ItsAbhinavM/Bob/internal/config"
	"github.com/ItsAbhinavM/Bob/internal/pipeline"
)

const voicesTimeout = 5 * time.Second

func (r Runner) commandTasks(ctx context.Context, cfg config.Config, action cli.TaskAction, operands []string, logger *slog.Logger) int {
	client := backend.New(cfg.Backend.BaseURL, backend.WithTimeout(cfg.Backend.Timeout()), backend.WithLogger(logger))

	switch action {
	case cli.TaskList:
		filter := backend.TaskFilter{}
		if len(operands) == 1 {
			filter.Status = backend.TaskStatus(strings.ToLower(operands[0]))
			if !filter.Status.Valid() {
				fmt.Fprintf(r.Stderr, "error: unknown task status %q\n", operands[0])
				return 2
			}
		}
		tasks, err := client.ListTasks(ctx, filter)
		if err != nil {
			fmt.Fprintf(r.Stderr, "error: %v\n", err)
			return 1
		}
		if len(tasks) == 0 {
			fmt.Fprintln(r.Stdout, "no tasks")
			return 0
		}
		for _, task := range tasks {
			fmt.Fprintln(r.Stdout, formatTask(task))
		}
		return 0

	case cli.TaskAdd:
		task, err := client.CreateTask(ctx, backend.TaskCreate{Title: strings.Join(operands, " ")})
		if err != nil {
			fmt.Fprintf(r.Stderr, "error: %v\n", err)
			return 1
		}
		fmt.Fprintf(r.Stdout, "added %s\n", formatTask(task))
		return 0

	case cli.TaskDone, cli.TaskRemove:
		id, err := strconv.Atoi(operands[0])
		if err != nil || id <= 0 {
			fmt.Fprintf(r.Stderr, "error: invalid task id %q\n", operands[0])
			return 2
		}
		if action == cli.TaskRemove {
			if err := client.DeleteTask(ctx, id); err != nil {
				fmt.Fprintf(r.Stderr, "error: %v\n", describeTaskError(id, err))
				return 1
			}
			fmt.Fprintf(r.Stdout, "deleted task #%d\n", id)
			return 0
		}
		task, err := client.CompleteTask(ctx, id)
		if err != nil {
			fmt.Fprintf(r.Stderr, "error: %v\n", describeTaskError(id, err))
			return 1
		}
		fmt.Fprintf(r.Stdout, "completed %s\n", formatTask(task))
		return 0

	default:
		fmt.Fprintf(r.Stderr, "error: unknown tasks action %q\n", action)
		return 2
	}
}

func describeTaskError(id int, err error) error {
	if backend.IsNotFound(err) {
		return fmt.Errorf("task #%d not found", id)
	}
	return err
}

func formatTask(task backend.Task) string {
	line := fmt.Sprintf("#%d [%s] %s (%s)", task.ID, task.Status, task.Title, task.Priority)
	if len(task.Tags) > 0 {
		line += " " + strings.Join(task.Tags, ",")
	}
	return line
}

func (r Runner) commandWeather(ctx context.Context, cfg config.Config, location string, logger *slog.Logger) int {
	client := backend.New(cfg.Backend.BaseURL, backend.WithTimeout(cfg.Backend.Timeout()), backend.WithLogger(logger))
	weather, err := client.Weather(ctx, location)
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return 1
	}
	fmt.Fprintln(r.Stdout, weather.Summary())
	return 0
}

func (r Runner) commandVoices(ctx context.Context, cfg config.Config) int {
	synth := pipeline.NewSynthesizer(cfg)
	defer func() { _ = synth.Close() }()

	ctx, cancel := context.WithTimeout(ctx, voicesTimeout)
	defer cancel()
	voices, err := synth.LoadVoices(ctx)
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return 1
	}
	if len(voices) == 0 {
		fmt.Fprintln(r.Stdout, "no voices available")
		return 1
	}
	for _, voice := range voices {
		mark := " "
		if voice.Name == cfg.Speech.Voice {
			mark = "*"
		}
		fmt.Fprintf(r.Stdout, "%s %s (%s)\n", mark, voice.Name, voice.Locale)
	}
	return 0
}

func (r Runner) commandDevices(ctx context.Context) int {
	devices, err := audio.ListDevices(ctx)
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return 1
	}
	if len(devices) == 0 {
		fmt.Fprintln(r.Stdout, "no audio devices found")
		return 1
	}

	for _, device := range devices {
		defaultMark := " "
		if device.Default {
			defaultMark = "*"
		}
		availability := "yes"
		if !device.Available {
			availability = "no"
		}
		muted := "no"
		if device.Muted {
			muted = "yes"
		}
		fmt.Fprintf(
			r.Stdout,
			"%s id=%s | description=%q | state=%s | available=%s | muted=%s\n",
			defaultMark,
			device.ID,
			device.Description,
			device.State,
			availability,
			muted,
		)
	}

	return 0
}

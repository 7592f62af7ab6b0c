package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/ItsAbhinavM/Bob/internal/audio"
	"github.com/ItsAbhinavM/Bob/internal/backend"
	"github.com/ItsAbhinavM/Bob/internal/capture"
	"github.com/ItsAbhinavM/Bob/internal/config"
	"github.com/ItsAbhinavM/Bob/internal/conversation"
	"github.com/ItsAbhinavM/Bob/internal/indicator"
	"github.com/ItsAbhinavM/Bob/internal/ipc"
	"github.com/ItsAbhinavM/Bob/internal/pipeline"
	"github.com/ItsAbhinavM/Bob/internal/session"
	"github.com/ItsAbhinavM/Bob/internal/speech"
	"github.com/ItsAbhinavM/Bob/internal/voice"
)

func (r Runner) commandTalk(ctx context.Context, cfg config.Config, noListen bool, logger *slog.Logger) int {
	socketPath, err := ipc.RuntimeSocketPath()
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return 1
	}

	owner, err := ipc.Acquire(ctx, socketPath, 180*time.Millisecond, 8, logger)
	if err != nil {
		if errors.Is(err, ipc.ErrAlreadyRunning) {
			fmt.Fprintf(r.Stderr, "error: %v; use `bob listen` to talk to it\n", err)
			return 1
		}
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return 1
	}
	defer func() {
		if err := owner.Release(); err != nil {
			logger.Warn("release session socket", "error", err.Error())
		}
	}()

	stack, err := buildTalkStack(cfg, !noListen, newConsole(r.Stdout), logger)
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return 1
	}
	defer stack.close()

	serverCtx, serverCancel := context.WithCancel(ctx)
	defer serverCancel()

	serverErrCh := make(chan error, 1)
	go func() {
		server := &ipc.Server{Handler: stack.runtime, Logger: logger}
		serverErrCh <- server.Serve(serverCtx, owner)
	}()

	runErr := stack.runtime.Run(ctx)
	serverCancel()
	if serverErr := <-serverErrCh; serverErr != nil {
		fmt.Fprintf(r.Stderr, "error: ipc server failed: %v\n", serverErr)
		return 1
	}
	if runErr != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", runErr)
		return 1
	}
	return 0
}

// talkStack is the wired voice session and the resources it must release.
type talkStack struct {
	runtime *session.Runtime
	closers []func()
}

func (s *talkStack) close() {
	for i := len(s.closers) - 1; i >= 0; i-- {
		s.closers[i]()
	}
}

func buildTalkStack(cfg config.Config, listen bool, out *console, logger *slog.Logger) (*talkStack, error) {
	stack := &talkStack{}
	var background []func(context.Context)

	mic := capture.NewAdapter(pipeline.NewRecognizer(cfg, logger), cfg.Session.BusyRetry(), logger)
	stack.closers = append(stack.closers, mic.Close)

	var speaker voice.Speaker
	synth := pipeline.NewSynthesizer(cfg)
	if cfg.Speech.Enable && synth.Supported() {
		locale := cfg.Speech.LanguageCode
		if locale == "" {
			locale = speech.HostLocale()
		}
		catalog := speech.NewCatalog(speech.Voice{Name: cfg.Speech.FallbackVoice, Locale: locale}, logger)
		player := speech.NewPlayer(synth, pipeline.NewSink(audio.ApplicationName), catalog, speech.Options{
			MaxSegmentChars: cfg.Speech.MaxSegmentChars,
			CharsPerSecond:  cfg.Speech.CharsPerSecond,
			WatchdogMargin:  cfg.Speech.WatchdogMargin(),
			Locale:          locale,
			PreferredVoice:  cfg.Speech.Voice,
		}, logger)
		speaker = player
		stack.closers = append(stack.closers, func() { _ = synth.Close() }, player.Close)
		background = append(background, func(ctx context.Context) {
			_ = catalog.Load(ctx, synth.LoadVoices)
		})
	} else {
		logger.Info("speech output disabled")
	}

	controller := voice.NewController(mic, speaker, logger)

	store, err := historyStore(cfg)
	if err != nil {
		stack.close()
		return nil, err
	}
	client := backend.New(cfg.Backend.BaseURL, backend.WithLogger(logger))
	orchestrator, err := conversation.New(client, controller, store, cfg.Backend.Timeout(), logger)
	if err != nil {
		stack.close()
		return nil, fmt.Errorf("load conversation history: %w", err)
	}

	presenter := indicator.NewPresenter(
		cfg.Indicator,
		indicator.NewNotifier(cfg.Indicator.Backend, cfg.Indicator.DesktopAppName),
		audio.NewSpeaker(audio.ApplicationName+"-cues"),
		logger,
	)
	background = append(background, presenter.Run)

	stack.runtime = session.New(controller, orchestrator, session.Options{
		ListenOnStart:  listen && cfg.Session.ListenOnStart,
		SubmitDebounce: cfg.Session.SubmitDebounce(),
		Observers:      []func(voice.Snapshot){presenter.Observe, out.Observe},
		Background:     background,
	}, logger)
	return stack, nil
}

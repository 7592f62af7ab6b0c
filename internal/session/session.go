// Package session runs the live voice conversation owned by `bob talk` and
// serves the commands forwarded to it over IPC.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/ItsAbhinavM/Bob/internal/conversation"
	"github.com/ItsAbhinavM/Bob/internal/ipc"
	"github.com/ItsAbhinavM/Bob/internal/logging"
	"github.com/ItsAbhinavM/Bob/internal/voice"
)

// DefaultShutdownGrace bounds how long quitting waits for an in-flight reply.
const DefaultShutdownGrace = 2 * time.Second

// ErrNotRunning is returned by commands that need Run to be active.
var ErrNotRunning = errors.New("session is not running")

// Options tunes one runtime.
type Options struct {
	ListenOnStart  bool
	SubmitDebounce time.Duration
	ShutdownGrace  time.Duration
	// Observers receive every controller snapshot. They must not block or
	// call back into the controller.
	Observers []func(voice.Snapshot)
	// Background tasks run for the lifetime of Run, for example the
	// indicator presenter or the voice catalog load.
	Background []func(context.Context)
}

// Runtime composes the voice controller and the conversation orchestrator.
type Runtime struct {
	logger       *slog.Logger
	controller   *voice.Controller
	conversation *conversation.Orchestrator
	opts         Options

	quit     chan struct{}
	quitOnce sync.Once

	mu        sync.Mutex
	submitCtx context.Context
	closing   bool
}

// New builds a runtime. Run must be called before Handle accepts commands.
func New(controller *voice.Controller, orchestrator *conversation.Orchestrator, opts Options, logger *slog.Logger) *Runtime {
	if opts.ShutdownGrace <= 0 {
		opts.ShutdownGrace = DefaultShutdownGrace
	}
	return &Runtime{
		logger:       logging.OrDiscard(logger),
		controller:   controller,
		conversation: orchestrator,
		opts:         opts,
		quit:         make(chan struct{}),
	}
}

// Run blocks until ctx ends or a quit command arrives. On return the
// microphone and speaker are released and no submission is in flight.
func (r *Runtime) Run(ctx context.Context) error {
	voiceCtx, cancelVoice := context.WithCancel(ctx)
	defer cancelVoice()
	submitCtx, cancelSubmit := context.WithCancel(context.WithoutCancel(ctx))
	defer cancelSubmit()

	r.mu.Lock()
	if r.submitCtx != nil {
		r.mu.Unlock()
		return errors.New("session already running")
	}
	r.submitCtx = submitCtx
	r.mu.Unlock()

	finalizer := conversation.NewFinalizer(submitCtx, r.controller, r.conversation.Submit, r.opts.SubmitDebounce, r.logger)
	observers := append([]func(voice.Snapshot){finalizer.Observe}, r.opts.Observers...)
	unsubscribe := r.controller.Subscribe(func(s voice.Snapshot) {
		for _, observe := range observers {
			observe(s)
		}
	})
	defer unsubscribe()

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		r.controller.Run(voiceCtx)
	}()
	for _, task := range r.opts.Background {
		wg.Add(1)
		go func(task func(context.Context)) {
			defer wg.Done()
			task(voiceCtx)
		}(task)
	}

	r.logger.Info("session started", "listen_on_start", r.opts.ListenOnStart)
	if r.opts.ListenOnStart {
		if err := r.controller.StartListening(voiceCtx); err != nil {
			r.logger.Warn("initial listen failed", "error", err.Error())
		}
	}

	select {
	case <-ctx.Done():
	case <-r.quit:
	}

	r.mu.Lock()
	r.closing = true
	r.mu.Unlock()
	finalizer.Stop()
	r.controller.StopListening()

	if !r.waitSubmission(r.opts.ShutdownGrace) {
		r.logger.Warn("abandoning in-flight submission")
		cancelSubmit()
		r.conversation.Wait()
	}

	cancelVoice()
	wg.Wait()
	r.logger.Info("session stopped")
	return nil
}

func (r *Runtime) waitSubmission(grace time.Duration) bool {
	done := make(chan struct{})
	go func() {
		r.conversation.Wait()
		close(done)
	}()
	timer := time.NewTimer(grace)
	defer timer.Stop()
	select {
	case <-done:
		return true
	case <-timer.C:
		return false
	}
}

// Quit ends Run; it is idempotent.
func (r *Runtime) Quit() {
	r.quitOnce.Do(func() { close(r.quit) })
}

// Handle serves one IPC command.
func (r *Runtime) Handle(_ context.Context, req ipc.Request) ipc.Response {
	r.mu.Lock()
	submitCtx, closing := r.submitCtx, r.closing
	r.mu.Unlock()
	if submitCtx == nil || closing {
		return r.fail(ErrNotRunning)
	}

	switch req.Command {
	case ipc.CommandStatus:
		return r.status()
	case ipc.CommandListen:
		if err := r.controller.StartListening(submitCtx); err != nil {
			return r.fail(err)
		}
		return r.ok("listening")
	case ipc.CommandStop:
		r.controller.StopListening()
		return r.ok("listening stopped")
	case ipc.CommandHush:
		r.controller.StopSpeaking()
		return r.ok("speech stopped")
	case ipc.CommandSay:
		return r.say(submitCtx, req.Text)
	case ipc.CommandHistory:
		return r.history()
	case ipc.CommandReset:
		path, err := r.conversation.Reset()
		if err != nil {
			return r.fail(err)
		}
		if path == "" {
			return r.ok("history cleared")
		}
		return r.ok("history exported to " + path)
	case ipc.CommandQuit:
		r.Quit()
		return r.ok("quitting")
	default:
		return r.fail(fmt.Errorf("unknown command: %s", req.Command))
	}
}

func (r *Runtime) status() ipc.Response {
	snapshot := r.controller.Snapshot()
	resp := ipc.Response{
		OK:         true,
		State:      string(snapshot.State),
		Transcript: snapshot.Transcript.Text,
		Message:    snapshot.Caption,
		Error:      snapshot.Error,
	}
	if data, err := json.Marshal(snapshot); err == nil {
		resp.Data = data
	}
	return resp
}

// say submits typed text and answers with the reply once it is being spoken.
func (r *Runtime) say(ctx context.Context, text string) ipc.Response {
	text = strings.TrimSpace(text)
	if text == "" {
		return r.fail(errors.New("say requires text"))
	}
	if err := r.conversation.Submit(ctx, text); err != nil {
		return r.fail(err)
	}
	reply, _ := r.conversation.LastReply()
	return r.ok(reply.Text)
}

func (r *Runtime) history() ipc.Response {
	turns := r.conversation.History()
	data, err := json.Marshal(turns)
	if err != nil {
		return r.fail(fmt.Errorf("encode history: %w", err))
	}
	resp := r.ok(fmt.Sprintf("%d turns", len(turns)))
	resp.Data = data
	return resp
}

func (r *Runtime) ok(message string) ipc.Response {
	return ipc.Response{OK: true, State: string(r.controller.State()), Message: message}
}

func (r *Runtime) fail(err error) ipc.Response {
	return ipc.Response{OK: false, State: string(r.controller.State()), Error: describeError(err)}
}

// describeError turns controller and orchestrator sentinels into CLI text.
func describeError(err error) string {
	switch {
	case errors.Is(err, voice.ErrBusy):
		return "cannot listen while thinking or speaking"
	case errors.Is(err, voice.ErrUnsupported):
		return "speech recognition is not supported on this host"
	case errors.Is(err, conversation.ErrSubmissionInFlight):
		return "still answering the previous message"
	default:
		return err.Error()
	}
}

package conversation

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/bep/debounce"

	"github.com/ItsAbhinavM/Bob/internal/fsm"
	"github.com/ItsAbhinavM/Bob/internal/logging"
	"github.com/ItsAbhinavM/Bob/internal/voice"
)

// DefaultSubmitDebounce is how long a finished transcript rests before it is
// submitted.
const DefaultSubmitDebounce = 800 * time.Millisecond

// TranscriptSource hands over the buffered transcript exactly once.
type TranscriptSource interface {
	TakeTranscript() string
}

// SubmitFunc submits finalized text.
type SubmitFunc func(ctx context.Context, text string) error

// Finalizer watches controller snapshots and submits the transcript once
// the recognition session has ended and the debounce delay passed without a
// new listening session. The delay is a fixed pause, not voice-activity
// detection.
type Finalizer struct {
	ctx      context.Context
	logger   *slog.Logger
	source   TranscriptSource
	submit   SubmitFunc
	debounce func(func())

	mu        sync.Mutex
	listening bool
	stopped   bool
}

// NewFinalizer builds a finalizer whose submissions run under ctx.
func NewFinalizer(ctx context.Context, source TranscriptSource, submit SubmitFunc, delay time.Duration, logger *slog.Logger) *Finalizer {
	if delay <= 0 {
		delay = DefaultSubmitDebounce
	}
	return &Finalizer{
		ctx:      ctx,
		logger:   logging.OrDiscard(logger),
		source:   source,
		submit:   submit,
		debounce: debounce.New(delay),
	}
}

// Observe feeds one snapshot; wire it with voice.Controller.Subscribe.
func (f *Finalizer) Observe(s voice.Snapshot) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.stopped {
		return
	}

	if s.Listening {
		if !f.listening {
			f.listening = true
			f.debounce(func() {})
		}
		return
	}
	if !f.listening {
		return
	}
	if s.State != fsm.StateIdle {
		f.listening = false
		return
	}
	if s.Capturing {
		// Stopped by hand; the recognizer is still flushing its last results.
		return
	}
	f.listening = false

	if strings.TrimSpace(s.Transcript.Text) == "" {
		return
	}
	f.debounce(f.fire)
}

// Stop disarms any pending submission.
func (f *Finalizer) Stop() {
	f.mu.Lock()
	f.stopped = true
	f.mu.Unlock()
	f.debounce(func() {})
}

func (f *Finalizer) fire() {
	f.mu.Lock()
	stopped := f.stopped || f.listening
	f.mu.Unlock()
	if stopped || f.ctx.Err() != nil {
		return
	}

	text := f.source.TakeTranscript()
	if text == "" {
		return
	}
	f.logger.Debug("transcript finalized", "chars", len(text))
	if err := f.submit(f.ctx, text); err != nil {
		if errors.Is(err, ErrSubmissionInFlight) {
			f.logger.Warn("transcript dropped, submission in flight", "chars", len(text))
			return
		}
		f.logger.Error("submit transcript", "error", err.Error())
	}
}

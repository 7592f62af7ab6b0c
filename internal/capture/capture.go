// Package capture adapts a streaming speech recognizer into a
// single-subscriber event stream with busy-session recovery.
package capture

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/ItsAbhinavM/Bob/internal/logging"
)

var (
	// ErrUnsupportedCapability means the host has no usable recognizer.
	ErrUnsupportedCapability = errors.New("speech recognition is not supported on this host")
	// ErrRecognitionBusy is logged when a start finds a session still active.
	ErrRecognitionBusy = errors.New("speech recognition session already active")
	// ErrNoSpeech ends a session that heard nothing recognizable.
	ErrNoSpeech = errors.New("no speech detected")
	// ErrAudioCapture marks microphone/stream failures.
	ErrAudioCapture = errors.New("audio capture failed")
	// ErrNetwork marks recognizer transport failures.
	ErrNetwork = errors.New("recognition service unreachable")
	// ErrClosed is returned by Start after Close.
	ErrClosed = errors.New("speech capture closed")
)

// DefaultBusyRetry is how long a restart waits after stopping a stale session.
const DefaultBusyRetry = 100 * time.Millisecond

// Result is one recognition update from the host recognizer. Text is the
// whole utterance so far, not a delta.
type Result struct {
	Text       string
	Final      bool
	Confidence float32
}

// Session is one active recognition run holding the microphone.
type Session interface {
	// Results is closed when the session ends.
	Results() <-chan Result
	// Stop asks the session to finish; pending results still arrive.
	Stop() error
	// Wait blocks until the session ended and returns its terminal error.
	Wait() error
}

// Recognizer is the host speech-recognition capability.
type Recognizer interface {
	Supported() bool
	Start(ctx context.Context) (Session, error)
}

// Adapter owns at most one recognition session and republishes its lifecycle as events.
type Adapter struct {
	logger     *slog.Logger
	recognizer Recognizer
	retryDelay time.Duration

	events  chan Event
	closing chan struct{}

	mu     sync.Mutex
	active *run
	nextID uint64
	closed bool
}

type run struct {
	id      uint64
	session Session
	cancel  context.CancelFunc
	done    chan struct{}

	mu         sync.Mutex
	superseded bool
}

func (r *run) isSuperseded() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.superseded
}

func (r *run) supersede() {
	r.mu.Lock()
	r.superseded = true
	r.mu.Unlock()
}

// NewAdapter wraps recognizer. A nil recognizer yields an adapter that only
// reports ErrUnsupportedCapability.
func NewAdapter(recognizer Recognizer, retryDelay time.Duration, logger *slog.Logger) *Adapter {
	if retryDelay <= 0 {
		retryDelay = DefaultBusyRetry
	}
	return &Adapter{
		logger:     logging.OrDiscard(logger),
		recognizer: recognizer,
		retryDelay: retryDelay,
		events:     make(chan Event, 64),
		closing:    make(chan struct{}),
	}
}

// Events is the adapter's single-subscriber event stream.
func (a *Adapter) Events() <-chan Event {
	return a.events
}

// Supported reports whether a recognizer is wired and usable.
func (a *Adapter) Supported() bool {
	return a.recognizer != nil && a.recognizer.Supported()
}

// Active reports whether a session currently holds the microphone.
func (a *Adapter) Active() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.active != nil
}

// Start begins a recognition session. A still-active session is stopped,
// given the retry delay to release the microphone, and replaced.
func (a *Adapter) Start(ctx context.Context) error {
	if !a.Supported() {
		return ErrUnsupportedCapability
	}

	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		return ErrClosed
	}
	stale := a.active
	a.active = nil
	a.mu.Unlock()

	if stale != nil {
		a.logger.Warn("restarting speech recognition", "error", ErrRecognitionBusy.Error(), "session_id", stale.id)
		stale.supersede()
		_ = stale.session.Stop()
		stale.cancel()

		timer := time.NewTimer(a.retryDelay)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-timer.C:
		}
		select {
		case <-stale.done:
		default:
			a.logger.Warn("stale recognition session still releasing", "session_id", stale.id)
		}
	}

	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	session, err := a.recognizer.Start(runCtx)
	if err != nil {
		cancel()
		if errors.Is(err, ErrUnsupportedCapability) {
			return err
		}
		return fmt.Errorf("start recognition: %w", err)
	}

	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		_ = session.Stop()
		cancel()
		return ErrClosed
	}
	a.nextID++
	r := &run{id: a.nextID, session: session, cancel: cancel, done: make(chan struct{})}
	a.active = r
	a.mu.Unlock()

	go a.pump(r)
	return nil
}

// Stop ends the active session. It is a no-op when nothing is running.
func (a *Adapter) Stop() error {
	a.mu.Lock()
	r := a.active
	a.mu.Unlock()
	if r == nil {
		return nil
	}
	return r.session.Stop()
}

// Close stops any session and waits for it to release the microphone.
func (a *Adapter) Close() {
	a.mu.Lock()
	r := a.active
	if !a.closed {
		a.closed = true
		close(a.closing)
	}
	a.mu.Unlock()
	if r == nil {
		return
	}
	_ = r.session.Stop()
	select {
	case <-r.done:
	case <-time.After(2 * time.Second):
		r.cancel()
		<-r.done
	}
}

// pump republishes one session's lifecycle: started, results, an optional
// error, then ended.
func (a *Adapter) pump(r *run) {
	defer close(r.done)
	defer r.cancel()

	a.emit(r, Event{Kind: EventStarted})
	for result := range r.session.Results() {
		a.emit(r, Event{
			Kind:       EventResult,
			Transcript: result.Text,
			Final:      result.Final,
			Confidence: result.Confidence,
		})
	}

	if err := r.session.Wait(); err != nil {
		reason := Classify(err)
		if reason != ReasonAborted || !r.isSuperseded() {
			a.logger.Info("speech recognition error", "session_id", r.id, "reason", string(reason), "error", err.Error())
		}
		a.emit(r, Event{Kind: EventError, Reason: reason, Err: err})
	}

	a.mu.Lock()
	if a.active == r {
		a.active = nil
	}
	a.mu.Unlock()

	a.emit(r, Event{Kind: EventEnded})
}

// emit delivers ev unless the run was superseded by a restart or the
// adapter is closing and nobody reads anymore.
func (a *Adapter) emit(r *run, ev Event) {
	if r.isSuperseded() {
		return
	}
	ev.Session = r.id
	select {
	case a.events <- ev:
	case <-a.closing:
	}
}

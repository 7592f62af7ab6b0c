// Package voice owns the voice session state: who holds the microphone or
// speaker, the live transcript, the caption being spoken and the last error.
package voice

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/ItsAbhinavM/Bob/internal/capture"
	"github.com/ItsAbhinavM/Bob/internal/fsm"
	"github.com/ItsAbhinavM/Bob/internal/logging"
	"github.com/ItsAbhinavM/Bob/internal/speech"
)

var (
	// ErrUnsupported is returned once speech recognition is known to be unavailable.
	ErrUnsupported = errors.New("speech recognition is not supported")
	// ErrBusy is returned when listening is requested while processing or speaking.
	ErrBusy = errors.New("cannot listen while processing or speaking")
	// ErrEmptyText is returned by Speak for blank text.
	ErrEmptyText = speech.ErrEmptyText
)

// Capture is the controller-facing subset of the speech capture adapter.
type Capture interface {
	Events() <-chan capture.Event
	Supported() bool
	Start(ctx context.Context) error
	Stop() error
}

// Speaker is the controller-facing subset of the speech output adapter.
type Speaker interface {
	Events() <-chan speech.Event
	Supported() bool
	Speak(text string) (uint64, error)
	Cancel()
}

// Transcript is the live recognition text of the current listening session.
type Transcript struct {
	Text       string  `json:"text"`
	Final      bool    `json:"final"`
	Confidence float32 `json:"confidence,omitempty"`
}

// Snapshot is the observable controller state handed to subscribers.
// Capturing stays true after listening stops until the recognition session
// ended, while its last results are still being flushed.
type Snapshot struct {
	State      fsm.State  `json:"state"`
	Listening  bool       `json:"listening"`
	Capturing  bool       `json:"capturing,omitempty"`
	Speaking   bool       `json:"speaking"`
	Processing bool       `json:"processing"`
	Transcript Transcript `json:"transcript"`
	Caption    string     `json:"caption,omitempty"`
	Error      string     `json:"error,omitempty"`
	Supported  bool       `json:"supported"`
}

type noopCapture struct{}

func (noopCapture) Events() <-chan capture.Event { return nil }
func (noopCapture) Supported() bool              { return false }
func (noopCapture) Start(context.Context) error  { return capture.ErrUnsupportedCapability }
func (noopCapture) Stop() error                  { return nil }

type noopSpeaker struct{}

func (noopSpeaker) Events() <-chan speech.Event { return nil }
func (noopSpeaker) Supported() bool             { return false }
func (noopSpeaker) Speak(string) (uint64, error) {
	return 0, speech.ErrUnsupported
}
func (noopSpeaker) Cancel() {}

// Controller applies adapter events and user operations to the session
// state machine. Listening and speaking never overlap.
type Controller struct {
	logger  *slog.Logger
	capture Capture
	speaker Speaker

	mu         sync.RWMutex
	state      fsm.State
	transcript Transcript
	caption    string
	errText    string
	supported  bool

	// wantListen is set between StartListening and the adapter's started
	// event; a started event without it is stale and gets stopped.
	wantListen bool
	// listenSession is the capture session whose results feed transcript.
	// It is kept until the next StartListening so flushed results land.
	listenSession uint64
	capturing     bool
	// utterance is the speech id in flight, zero when nothing is pending.
	utterance uint64

	pubMu   sync.Mutex
	subs    map[int]func(Snapshot)
	nextSub int
}

// NewController wires the adapters. Nil adapters behave as unavailable.
func NewController(c Capture, s Speaker, logger *slog.Logger) *Controller {
	if c == nil {
		c = noopCapture{}
	}
	if s == nil {
		s = noopSpeaker{}
	}
	return &Controller{
		logger:    logging.OrDiscard(logger),
		capture:   c,
		speaker:   s,
		state:     fsm.StateIdle,
		supported: c.Supported(),
		subs:      make(map[int]func(Snapshot)),
	}
}

// State returns the current state.
func (c *Controller) State() fsm.State {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state
}

// Snapshot returns a copy of the observable state.
func (c *Controller) Snapshot() Snapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.snapshotLocked()
}

func (c *Controller) snapshotLocked() Snapshot {
	return Snapshot{
		State:      c.state,
		Listening:  c.state == fsm.StateListening,
		Capturing:  c.capturing,
		Speaking:   c.state == fsm.StateSpeaking,
		Processing: c.state == fsm.StateProcessing,
		Transcript: c.transcript,
		Caption:    c.caption,
		Error:      c.errText,
		Supported:  c.supported,
	}
}

// Subscribe registers fn for every state change and returns its
// unsubscribe func. fn runs on the publishing goroutine and must not call
// back into the controller synchronously.
func (c *Controller) Subscribe(fn func(Snapshot)) func() {
	c.pubMu.Lock()
	id := c.nextSub
	c.nextSub++
	c.subs[id] = fn
	c.pubMu.Unlock()

	return func() {
		c.pubMu.Lock()
		delete(c.subs, id)
		c.pubMu.Unlock()
	}
}

func (c *Controller) publish() {
	c.pubMu.Lock()
	defer c.pubMu.Unlock()
	snap := c.Snapshot()
	for _, fn := range c.subs {
		fn(snap)
	}
}

// StartListening opens a recognition session. The state turns listening
// once the adapter reports the session started.
func (c *Controller) StartListening(ctx context.Context) error {
	c.mu.Lock()
	if !c.supported {
		c.mu.Unlock()
		return ErrUnsupported
	}
	if fsm.Busy(c.state) || c.utterance != 0 {
		c.mu.Unlock()
		return ErrBusy
	}
	if c.state == fsm.StateListening || c.wantListen {
		c.mu.Unlock()
		return nil
	}
	c.wantListen = true
	c.listenSession = 0
	c.capturing = false
	c.transcript = Transcript{}
	c.errText = ""
	c.mu.Unlock()
	c.publish()

	err := c.capture.Start(ctx)
	if err == nil {
		return nil
	}

	c.mu.Lock()
	c.wantListen = false
	if errors.Is(err, capture.ErrUnsupportedCapability) {
		c.supported = false
		c.errText = "Speech recognition is not supported on this system"
		err = fmt.Errorf("%w: %w", ErrUnsupported, err)
	} else {
		c.errText = "Speech recognition error: " + string(capture.Classify(err))
	}
	c.mu.Unlock()
	c.logger.Error("start listening failed", "error", err.Error())
	c.publish()
	return err
}

// StopListening ends any listening session and leaves the controller idle.
// Late results of the stopped session still update the transcript until the
// adapter reports it ended.
func (c *Controller) StopListening() {
	c.mu.Lock()
	changed := c.stopListeningLocked()
	c.mu.Unlock()

	_ = c.capture.Stop()
	if changed {
		c.publish()
	}
}

func (c *Controller) stopListeningLocked() bool {
	c.wantListen = false
	if c.state != fsm.StateListening {
		return false
	}
	c.apply(fsm.EventEnd)
	return true
}

// StopSpeaking cancels speech and leaves the controller idle.
func (c *Controller) StopSpeaking() {
	c.mu.Lock()
	changed := c.stopSpeakingLocked()
	c.mu.Unlock()

	if changed {
		c.publish()
	}
}

func (c *Controller) stopSpeakingLocked() bool {
	pending := c.utterance != 0
	c.speaker.Cancel()
	c.utterance = 0
	c.caption = ""
	if c.state == fsm.StateSpeaking {
		c.apply(fsm.EventReset)
		return true
	}
	return pending
}

// BeginProcessing interrupts listening and speaking and marks a backend
// request as in flight.
func (c *Controller) BeginProcessing() error {
	c.mu.Lock()
	wasListening := c.stopListeningLocked()
	c.stopSpeakingLocked()
	if c.state == fsm.StateProcessing {
		c.mu.Unlock()
		return ErrBusy
	}
	c.apply(fsm.EventProcess)
	c.errText = ""
	c.mu.Unlock()

	if wasListening {
		_ = c.capture.Stop()
	}
	c.publish()
	return nil
}

// EndProcessing clears the processing state.
func (c *Controller) EndProcessing() {
	c.mu.Lock()
	if c.state != fsm.StateProcessing {
		c.mu.Unlock()
		return
	}
	c.apply(fsm.EventSettle)
	c.mu.Unlock()
	c.publish()
}

// Speak stops listening and hands text to the speech output. The state turns
// speaking once the first segment starts.
func (c *Controller) Speak(text string) error {
	if strings.TrimSpace(text) == "" {
		return ErrEmptyText
	}

	c.mu.Lock()
	wasListening := c.stopListeningLocked()
	id, err := c.speaker.Speak(text)
	if err != nil {
		c.mu.Unlock()
		if wasListening {
			_ = c.capture.Stop()
			c.publish()
		}
		c.logger.Warn("speech output unavailable", "error", err.Error())
		return err
	}
	c.utterance = id
	c.mu.Unlock()

	if wasListening {
		_ = c.capture.Stop()
		c.publish()
	}
	return nil
}

// SetError publishes a user-visible error message.
func (c *Controller) SetError(message string) {
	c.mu.Lock()
	c.errText = message
	c.mu.Unlock()
	c.publish()
}

// TakeTranscript returns the buffered transcript text and clears it.
func (c *Controller) TakeTranscript() string {
	c.mu.Lock()
	text := strings.TrimSpace(c.transcript.Text)
	c.transcript = Transcript{}
	c.mu.Unlock()

	if text != "" {
		c.publish()
	}
	return text
}

// Run consumes adapter events until ctx ends, then releases the microphone
// and cancels speech.
func (c *Controller) Run(ctx context.Context) {
	captureEvents := c.capture.Events()
	speechEvents := c.speaker.Events()

	defer c.shutdown()
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-captureEvents:
			if !ok {
				captureEvents = nil
				continue
			}
			c.handleCapture(ev)
		case ev, ok := <-speechEvents:
			if !ok {
				speechEvents = nil
				continue
			}
			c.handleSpeech(ev)
		}
	}
}

func (c *Controller) shutdown() {
	c.mu.Lock()
	c.wantListen = false
	c.capturing = false
	c.utterance = 0
	c.caption = ""
	c.apply(fsm.EventReset)
	c.mu.Unlock()

	_ = c.capture.Stop()
	c.speaker.Cancel()
	c.publish()
}

func (c *Controller) handleCapture(ev capture.Event) {
	c.mu.Lock()
	changed := false
	stopStale := false

	switch ev.Kind {
	case capture.EventStarted:
		if !c.wantListen || c.state != fsm.StateIdle || c.utterance != 0 {
			stopStale = true
			break
		}
		c.wantListen = false
		c.listenSession = ev.Session
		c.capturing = true
		c.apply(fsm.EventListen)
		changed = true

	case capture.EventResult:
		if ev.Session != c.listenSession || c.listenSession == 0 {
			break
		}
		c.transcript = Transcript{Text: ev.Transcript, Final: ev.Final, Confidence: ev.Confidence}
		changed = true

	case capture.EventError:
		if ev.Session == c.listenSession && !ev.Reason.Benign() {
			c.errText = "Speech recognition error: " + string(ev.Reason)
			changed = true
		}
		if ev.Session == c.listenSession && c.state == fsm.StateListening {
			c.apply(fsm.EventEnd)
			changed = true
		}

	case capture.EventEnded:
		if ev.Session != c.listenSession {
			break
		}
		if c.capturing {
			c.capturing = false
			changed = true
		}
		if c.state == fsm.StateListening {
			c.apply(fsm.EventEnd)
			changed = true
		}
	}
	c.mu.Unlock()

	if stopStale {
		c.logger.Debug("stopping stale recognition session", "session_id", ev.Session)
		_ = c.capture.Stop()
	}
	if changed {
		c.publish()
	}
}

func (c *Controller) handleSpeech(ev speech.Event) {
	c.mu.Lock()
	if ev.Utterance == 0 || ev.Utterance != c.utterance {
		c.mu.Unlock()
		return
	}

	changed := false
	switch ev.Kind {
	case speech.EventSegmentStarted:
		if c.state != fsm.StateSpeaking {
			if c.state == fsm.StateListening {
				c.apply(fsm.EventEnd)
			}
			c.apply(fsm.EventSpeak)
		}
		c.caption = ev.Segment.Text
		changed = true

	case speech.EventSegmentEnded:
		if ev.Forced {
			c.logger.Warn("speech segment force-advanced", "utterance", ev.Utterance, "segment_index", ev.Segment.Index)
		}

	case speech.EventSegmentError:
		c.errText = "Speech playback error"
		changed = true

	case speech.EventFinished:
		c.utterance = 0
		c.caption = ""
		if c.state == fsm.StateSpeaking {
			c.apply(fsm.EventFinish)
		}
		if ev.Err != nil {
			c.errText = "Speech playback error"
		}
		changed = true
	}
	c.mu.Unlock()

	if changed {
		c.publish()
	}
}

// apply runs one transition; callers hold c.mu. Invalid transitions are
// logged and leave the state unchanged.
func (c *Controller) apply(event fsm.Event) {
	next, err := fsm.Transition(c.state, event)
	if err != nil {
		c.logger.Debug("ignored state transition", "error", err.Error())
		return
	}
	c.state = next
}

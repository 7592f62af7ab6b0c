package speech

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/ItsAbhinavM/Bob/internal/logging"
)

var (
	// ErrEmptyText is returned when Speak is given blank text.
	ErrEmptyText = errors.New("nothing to speak")
	// ErrUnsupported is returned when no synthesizer or sink is configured.
	ErrUnsupported = errors.New("speech output unavailable")
	// ErrSynthesis wraps synthesizer failures.
	ErrSynthesis = errors.New("speech synthesis failed")
	// ErrPlayback wraps sink failures.
	ErrPlayback = errors.New("speech playback failed")
)

// Audio is mono 16-bit PCM.
type Audio struct {
	PCM        []int16
	SampleRate int
}

// Duration is the playback length of the samples.
func (a Audio) Duration() time.Duration {
	if a.SampleRate <= 0 {
		return 0
	}
	return time.Duration(len(a.PCM)) * time.Second / time.Duration(a.SampleRate)
}

// Synthesizer renders text with a voice.
type Synthesizer interface {
	Synthesize(ctx context.Context, text string, voice Voice) (Audio, error)
}

// Sink plays audio and returns when playback finished or ctx is cancelled.
type Sink interface {
	Play(ctx context.Context, audio Audio) error
}

// Options tune segmenting, voice choice and the per-segment watchdog.
type Options struct {
	MaxSegmentChars  int
	CharsPerSecond   float64
	WatchdogMargin   time.Duration
	SynthesisTimeout time.Duration
	Locale           string
	PreferredVoice   string
}

func (o Options) withDefaults() Options {
	if o.MaxSegmentChars <= 0 {
		o.MaxSegmentChars = DefaultMaxSegmentChars
	}
	if o.CharsPerSecond <= 0 {
		o.CharsPerSecond = DefaultCharsPerSecond
	}
	if o.WatchdogMargin <= 0 {
		o.WatchdogMargin = DefaultWatchdogMargin
	}
	if o.SynthesisTimeout <= 0 {
		o.SynthesisTimeout = DefaultSynthesisTimeout
	}
	return o
}

// Player speaks one utterance at a time. Segments of an utterance play
// strictly in order; a new Speak cancels whatever is still playing.
type Player struct {
	logger  *slog.Logger
	synth   Synthesizer
	sink    Sink
	catalog *Catalog
	opts    Options

	events  chan Event
	closing chan struct{}

	mu      sync.Mutex
	gen     uint64
	current uint64
	cancel  context.CancelFunc
	done    chan struct{}
	closed  bool
}

// NewPlayer wires a synthesizer and sink. A nil catalog behaves as an
// already-ready catalog with no voices.
func NewPlayer(synth Synthesizer, sink Sink, catalog *Catalog, opts Options, logger *slog.Logger) *Player {
	logger = logging.OrDiscard(logger)
	if catalog == nil {
		catalog = NewCatalog(Voice{}, logger)
		catalog.markReady()
	}
	return &Player{
		logger:  logger,
		synth:   synth,
		sink:    sink,
		catalog: catalog,
		opts:    opts.withDefaults(),
		events:  make(chan Event, 64),
		closing: make(chan struct{}),
	}
}

// Events delivers playback progress. Events of cancelled utterances are
// dropped.
func (p *Player) Events() <-chan Event {
	return p.events
}

// Supported reports whether speech output can work at all.
func (p *Player) Supported() bool {
	return p != nil && p.synth != nil && p.sink != nil
}

// Speaking reports whether an utterance is in progress.
func (p *Player) Speaking() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.current != 0
}

// Speak cancels any current utterance and starts speaking text. The returned
// id tags every event of this utterance.
func (p *Player) Speak(text string) (uint64, error) {
	if strings.TrimSpace(text) == "" {
		return 0, ErrEmptyText
	}
	if !p.Supported() {
		return 0, ErrUnsupported
	}

	segments := Split(text, p.opts.MaxSegmentChars, p.opts.CharsPerSecond)

	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return 0, ErrUnsupported
	}
	p.cancelLocked()
	p.gen++
	id := p.gen
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	p.current = id
	p.cancel = cancel
	p.done = done
	p.mu.Unlock()

	p.logger.Debug("speech utterance queued", "utterance", id, "segments", len(segments), "chars", len(text))
	go p.run(ctx, id, segments, done)
	return id, nil
}

// Cancel stops playback and discards queued segments. Safe to call when idle.
func (p *Player) Cancel() {
	p.mu.Lock()
	id := p.current
	p.cancelLocked()
	p.mu.Unlock()
	if id != 0 {
		p.logger.Debug("speech cancelled", "utterance", id)
	}
}

// Close cancels playback and waits for the playback goroutine to exit.
func (p *Player) Close() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	done := p.done
	p.cancelLocked()
	close(p.closing)
	p.mu.Unlock()

	if done != nil {
		<-done
	}
}

func (p *Player) cancelLocked() {
	if p.cancel != nil {
		p.cancel()
	}
	p.cancel = nil
	p.current = 0
}

func (p *Player) run(ctx context.Context, id uint64, segments []Segment, done chan struct{}) {
	defer close(done)

	select {
	case <-p.catalog.Ready():
	case <-ctx.Done():
		return
	}

	for _, seg := range segments {
		if ctx.Err() != nil {
			return
		}
		err := p.playSegment(ctx, id, seg)
		if ctx.Err() != nil {
			return
		}
		if err != nil {
			p.logger.Error("speech segment failed", "utterance", id, "segment", seg.Index, "error", err.Error())
			p.emit(id, Event{Kind: EventSegmentError, Utterance: id, Segment: seg, Err: err})
			p.finish(id, Event{Kind: EventFinished, Utterance: id, Err: err})
			return
		}
	}
	p.finish(id, Event{Kind: EventFinished, Utterance: id})
}

// playSegment synthesizes and plays one segment. Synthesis is bounded by its
// own timeout; playback runs under a watchdog of the segment's estimated
// duration plus margin, armed once audio is ready. When the watchdog fires
// the segment is abandoned and playback moves on.
func (p *Player) playSegment(ctx context.Context, id uint64, seg Segment) error {
	segCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	voice, _ := p.catalog.Select(p.opts.Locale, p.opts.PreferredVoice)
	started := make(chan struct{})
	result := make(chan error, 1)

	go func() {
		synthCtx, cancelSynth := context.WithTimeout(segCtx, p.opts.SynthesisTimeout)
		audio, err := p.synth.Synthesize(synthCtx, seg.Text, voice)
		cancelSynth()
		if err != nil {
			result <- fmt.Errorf("%w: %w", ErrSynthesis, err)
			return
		}
		close(started)
		if err := p.sink.Play(segCtx, audio); err != nil {
			result <- fmt.Errorf("%w: %w", ErrPlayback, err)
			return
		}
		result <- nil
	}()

	limit := seg.Estimate + p.opts.WatchdogMargin
	var watchdog *time.Timer
	var watchdogC <-chan time.Time
	defer func() {
		if watchdog != nil {
			watchdog.Stop()
		}
	}()

	announced := false
	announce := func() {
		if announced {
			return
		}
		announced = true
		p.emit(id, Event{Kind: EventSegmentStarted, Utterance: id, Segment: seg})
	}

	startedCh := (<-chan struct{})(started)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-startedCh:
			startedCh = nil
			watchdog = time.NewTimer(limit)
			watchdogC = watchdog.C
			announce()
		case err := <-result:
			if err != nil {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				return err
			}
			announce()
			p.emit(id, Event{Kind: EventSegmentEnded, Utterance: id, Segment: seg})
			return nil
		case <-watchdogC:
			cancel()
			p.logger.Warn("speech segment watchdog fired", "utterance", id, "segment", seg.Index, "limit_ms", limit.Milliseconds())
			announce()
			p.emit(id, Event{Kind: EventSegmentEnded, Utterance: id, Segment: seg, Forced: true})
			return nil
		}
	}
}

func (p *Player) finish(id uint64, ev Event) {
	p.mu.Lock()
	current := p.current == id
	if current {
		p.cancelLocked()
	}
	p.mu.Unlock()
	if current {
		p.deliver(ev)
	}
}

func (p *Player) emit(id uint64, ev Event) {
	p.mu.Lock()
	current := p.current == id
	p.mu.Unlock()
	if !current {
		return
	}
	p.deliver(ev)
}

func (p *Player) deliver(ev Event) {
	select {
	case p.events <- ev:
	case <-p.closing:
	}
}

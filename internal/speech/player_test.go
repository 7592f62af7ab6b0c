package speech

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type fakeSynth struct {
	mu     sync.Mutex
	texts  []string
	voices []Voice
	failOn string
	delay  time.Duration
	hang   bool
}

func (f *fakeSynth) Synthesize(ctx context.Context, text string, voice Voice) (Audio, error) {
	f.mu.Lock()
	f.texts = append(f.texts, text)
	f.voices = append(f.voices, voice)
	delay, hang := f.delay, f.hang
	f.mu.Unlock()

	if hang {
		<-ctx.Done()
		return Audio{}, ctx.Err()
	}
	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return Audio{}, ctx.Err()
		}
	}
	if f.failOn != "" && text == f.failOn {
		return Audio{}, errors.New("server unavailable")
	}
	return Audio{PCM: make([]int16, len(text)), SampleRate: 22050}, nil
}

func (f *fakeSynth) calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.texts...)
}

type fakeSink struct {
	delay   time.Duration
	block   bool
	active  atomic.Int32
	overlap atomic.Bool
	played  atomic.Int32
	cancels atomic.Int32
}

func (f *fakeSink) Play(ctx context.Context, _ Audio) error {
	if f.active.Add(1) > 1 {
		f.overlap.Store(true)
	}
	defer f.active.Add(-1)

	if f.block {
		<-ctx.Done()
		f.cancels.Add(1)
		return ctx.Err()
	}
	select {
	case <-time.After(f.delay):
		f.played.Add(1)
		return nil
	case <-ctx.Done():
		f.cancels.Add(1)
		return ctx.Err()
	}
}

func readyCatalog(voices ...Voice) *Catalog {
	c := NewCatalog(Voice{}, nil)
	c.SetVoices(voices)
	return c
}

func collectUntilFinished(t *testing.T, p *Player) []Event {
	t.Helper()
	var events []Event
	timeout := time.After(3 * time.Second)
	for {
		select {
		case ev := <-p.Events():
			events = append(events, ev)
			if ev.Kind == EventFinished {
				return events
			}
		case <-timeout:
			t.Fatalf("timed out waiting for finished, got %+v", events)
		}
	}
}

func kinds(events []Event) []EventKind {
	out := make([]EventKind, 0, len(events))
	for _, ev := range events {
		out = append(out, ev.Kind)
	}
	return out
}

func TestPlayerPlaysSegmentsSequentially(t *testing.T) {
	synth := &fakeSynth{}
	sink := &fakeSink{delay: 10 * time.Millisecond}
	p := NewPlayer(synth, sink, readyCatalog(), Options{MaxSegmentChars: 20}, nil)
	defer p.Close()

	id, err := p.Speak("One two. Three four. Five six. Seven.")
	require.NoError(t, err)
	require.True(t, p.Speaking())

	events := collectUntilFinished(t, p)
	require.Equal(t, []EventKind{
		EventSegmentStarted, EventSegmentEnded,
		EventSegmentStarted, EventSegmentEnded,
		EventFinished,
	}, kinds(events))
	for _, ev := range events {
		require.Equal(t, id, ev.Utterance)
		require.False(t, ev.Forced)
	}
	require.Equal(t, []string{"One two. Three four.", "Five six. Seven."}, synth.calls())
	require.False(t, sink.overlap.Load())
	require.EqualValues(t, 2, sink.played.Load())
	require.False(t, p.Speaking())
}

func TestPlayerWaitsForVoicesAndPrefersLocale(t *testing.T) {
	synth := &fakeSynth{}
	catalog := NewCatalog(Voice{}, nil)
	p := NewPlayer(synth, &fakeSink{}, catalog, Options{Locale: "de_DE.UTF-8"}, nil)
	defer p.Close()

	_, err := p.Speak("Hallo.")
	require.NoError(t, err)

	time.Sleep(30 * time.Millisecond)
	require.Empty(t, synth.calls())

	catalog.SetVoices([]Voice{{Name: "English", Locale: "en-US"}, {Name: "Deutsch", Locale: "de-DE"}})
	collectUntilFinished(t, p)

	synth.mu.Lock()
	defer synth.mu.Unlock()
	require.Equal(t, []Voice{{Name: "Deutsch", Locale: "de-DE"}}, synth.voices)
}

func TestPlayerWatchdogForcesAdvance(t *testing.T) {
	sink := &fakeSink{block: true}
	p := NewPlayer(&fakeSynth{}, sink, readyCatalog(), Options{
		MaxSegmentChars: 10,
		CharsPerSecond:  1e9,
		WatchdogMargin:  20 * time.Millisecond,
	}, nil)
	defer p.Close()

	_, err := p.Speak("First one. Second one.")
	require.NoError(t, err)

	events := collectUntilFinished(t, p)
	require.Equal(t, []EventKind{
		EventSegmentStarted, EventSegmentEnded,
		EventSegmentStarted, EventSegmentEnded,
		EventFinished,
	}, kinds(events))
	require.True(t, events[1].Forced)
	require.True(t, events[3].Forced)
	require.NoError(t, events[4].Err)
	require.Eventually(t, func() bool { return sink.cancels.Load() == 2 }, time.Second, 5*time.Millisecond)
}

func TestPlayerWatchdogStartsAfterSynthesis(t *testing.T) {
	synth := &fakeSynth{delay: 80 * time.Millisecond}
	sink := &fakeSink{delay: 10 * time.Millisecond}
	p := NewPlayer(synth, sink, readyCatalog(), Options{
		CharsPerSecond: 1e9,
		WatchdogMargin: 40 * time.Millisecond,
	}, nil)
	defer p.Close()

	_, err := p.Speak("Slow to render.")
	require.NoError(t, err)

	events := collectUntilFinished(t, p)
	require.Equal(t, []EventKind{EventSegmentStarted, EventSegmentEnded, EventFinished}, kinds(events))
	require.False(t, events[1].Forced)
	require.EqualValues(t, 1, sink.played.Load())
}

func TestPlayerSynthesisTimeoutFailsSegment(t *testing.T) {
	synth := &fakeSynth{hang: true}
	p := NewPlayer(synth, &fakeSink{}, readyCatalog(), Options{
		MaxSegmentChars:  12,
		SynthesisTimeout: 20 * time.Millisecond,
	}, nil)
	defer p.Close()

	_, err := p.Speak("First one. Second one.")
	require.NoError(t, err)

	events := collectUntilFinished(t, p)
	require.Equal(t, []EventKind{EventSegmentError, EventFinished}, kinds(events))
	require.ErrorIs(t, events[1].Err, ErrSynthesis)
	require.ErrorIs(t, events[1].Err, context.DeadlineExceeded)
	require.Equal(t, []string{"First one."}, synth.calls())
}

func TestPlayerCancelStopsEverything(t *testing.T) {
	synth := &fakeSynth{}
	sink := &fakeSink{block: true}
	p := NewPlayer(synth, sink, readyCatalog(), Options{MaxSegmentChars: 10, WatchdogMargin: time.Minute}, nil)
	defer p.Close()

	_, err := p.Speak("First one. Second one. Third one.")
	require.NoError(t, err)

	select {
	case ev := <-p.Events():
		require.Equal(t, EventSegmentStarted, ev.Kind)
	case <-time.After(time.Second):
		t.Fatal("segment never started")
	}

	p.Cancel()
	require.False(t, p.Speaking())
	require.Eventually(t, func() bool { return sink.cancels.Load() == 1 }, time.Second, 5*time.Millisecond)

	select {
	case ev := <-p.Events():
		t.Fatalf("unexpected event after cancel: %+v", ev)
	case <-time.After(50 * time.Millisecond):
	}
	require.Equal(t, []string{"First one."}, synth.calls())

	p.Cancel()
}

func TestPlayerSegmentErrorAbortsUtterance(t *testing.T) {
	synth := &fakeSynth{failOn: "Second one."}
	p := NewPlayer(synth, &fakeSink{}, readyCatalog(), Options{MaxSegmentChars: 12}, nil)
	defer p.Close()

	_, err := p.Speak("First one. Second one. Third one.")
	require.NoError(t, err)

	events := collectUntilFinished(t, p)
	require.Equal(t, []EventKind{
		EventSegmentStarted, EventSegmentEnded,
		EventSegmentError, EventFinished,
	}, kinds(events))
	require.ErrorIs(t, events[2].Err, ErrSynthesis)
	require.ErrorIs(t, events[3].Err, ErrSynthesis)
	require.Equal(t, []string{"First one.", "Second one."}, synth.calls())
}

func TestPlayerNewUtteranceSupersedesOld(t *testing.T) {
	sink := &fakeSink{block: true}
	p := NewPlayer(&fakeSynth{}, sink, readyCatalog(), Options{WatchdogMargin: 30 * time.Millisecond, CharsPerSecond: 1e9}, nil)
	defer p.Close()

	first, err := p.Speak("Old reply.")
	require.NoError(t, err)
	second, err := p.Speak("New reply.")
	require.NoError(t, err)
	require.NotEqual(t, first, second)

	events := collectUntilFinished(t, p)
	last := events[len(events)-1]
	require.Equal(t, second, last.Utterance)
	require.NoError(t, last.Err)
	require.Contains(t, kinds(events), EventSegmentEnded)
}

func TestPlayerRejectsBlankAndUnsupported(t *testing.T) {
	p := NewPlayer(&fakeSynth{}, &fakeSink{}, nil, Options{}, nil)
	defer p.Close()
	_, err := p.Speak("   ")
	require.ErrorIs(t, err, ErrEmptyText)

	missing := NewPlayer(nil, nil, nil, Options{}, nil)
	require.False(t, missing.Supported())
	_, err = missing.Speak("hello")
	require.ErrorIs(t, err, ErrUnsupported)
}

func TestAudioDuration(t *testing.T) {
	require.Equal(t, time.Second, Audio{PCM: make([]int16, 16000), SampleRate: 16000}.Duration())
	require.Equal(t, time.Duration(0), Audio{PCM: make([]int16, 10)}.Duration())
}

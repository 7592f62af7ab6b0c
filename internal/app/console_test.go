package app

import (
	"bytes"
	"testing"

	"github.com/ItsAbhinavM/Bob/internal/fsm"
	"github.com/ItsAbhinavM/Bob/internal/voice"
	"github.com/stretchr/testify/require"
)

func TestConsolePrintsSettledTurnsWhenNotATerminal(t *testing.T) {
	var out bytes.Buffer
	c := newConsole(&out)
	require.False(t, c.live)

	listening := voice.Snapshot{State: fsm.StateListening, Listening: true}
	c.Observe(listening)
	listening.Transcript = voice.Transcript{Text: "what's the"}
	c.Observe(listening)
	require.Empty(t, out.String())

	listening.Transcript = voice.Transcript{Text: "what's the weather", Final: true}
	c.Observe(listening)
	c.Observe(voice.Snapshot{State: fsm.StateIdle, Transcript: listening.Transcript})
	c.Observe(voice.Snapshot{State: fsm.StateProcessing, Processing: true})
	c.Observe(voice.Snapshot{State: fsm.StateSpeaking, Speaking: true, Caption: "It is sunny."})
	c.Observe(voice.Snapshot{State: fsm.StateSpeaking, Speaking: true, Caption: "Enjoy your day."})
	c.Observe(voice.Snapshot{State: fsm.StateIdle, Error: "Speech playback error"})

	require.Equal(t, "you: what's the weather\n"+
		"bob: It is sunny.\n"+
		"bob: Enjoy your day.\n"+
		"error: Speech playback error\n", out.String())
}

func TestConsoleSettlesInterimTranscriptWhenListeningStops(t *testing.T) {
	var out bytes.Buffer
	c := newConsole(&out)

	c.Observe(voice.Snapshot{State: fsm.StateListening, Listening: true, Transcript: voice.Transcript{Text: "remind me"}})
	c.Observe(voice.Snapshot{State: fsm.StateIdle, Transcript: voice.Transcript{Text: "remind me"}})
	c.Observe(voice.Snapshot{State: fsm.StateIdle})
	c.Observe(voice.Snapshot{State: fsm.StateListening, Listening: true, Transcript: voice.Transcript{Text: "remind me", Final: true}})

	require.Equal(t, "you: remind me\nyou: remind me\n", out.String())
}

func TestConsoleRedrawsLiveTranscriptOnTerminal(t *testing.T) {
	var out bytes.Buffer
	c := &console{out: &out, live: true}

	c.Observe(voice.Snapshot{State: fsm.StateListening, Listening: true, Transcript: voice.Transcript{Text: "add"}})
	c.Observe(voice.Snapshot{State: fsm.StateListening, Listening: true, Transcript: voice.Transcript{Text: "add milk"}})
	c.Observe(voice.Snapshot{State: fsm.StateIdle, Transcript: voice.Transcript{Text: "add milk"}})

	require.Equal(t, "\r\033[Kyou: add\r\033[Kyou: add milk\n", out.String())
}

func TestConsoleWaitsForFlushedResultAfterStop(t *testing.T) {
	var out bytes.Buffer
	c := newConsole(&out)

	c.Observe(voice.Snapshot{State: fsm.StateListening, Listening: true, Capturing: true, Transcript: voice.Transcript{Text: "what time"}})
	c.Observe(voice.Snapshot{State: fsm.StateIdle, Capturing: true, Transcript: voice.Transcript{Text: "what time"}})
	require.Empty(t, out.String())

	final := voice.Transcript{Text: "what time is it in Tokyo", Final: true}
	c.Observe(voice.Snapshot{State: fsm.StateIdle, Capturing: true, Transcript: final})
	c.Observe(voice.Snapshot{State: fsm.StateIdle, Transcript: final})

	require.Equal(t, "you: what time is it in Tokyo\n", out.String())
}

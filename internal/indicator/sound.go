package indicator

import (
	"context"
	"time"

	"github.com/ItsAbhinavM/Bob/internal/audio"
)

type cueKind int

const (
	cueStart cueKind = iota + 1
	cueStop
	cueDone
	cueError
)

const (
	cueSampleRate = 16000
	cueVolume     = 0.18
)

var cueTones = map[cueKind][]audio.Tone{
	cueStart: {
		{FrequencyHz: 880, Duration: 70 * time.Millisecond, Volume: cueVolume},
		{FrequencyHz: 1175, Duration: 70 * time.Millisecond, Volume: cueVolume},
	},
	cueStop: {
		{FrequencyHz: 620, Duration: 120 * time.Millisecond, Volume: cueVolume},
	},
	cueDone: {
		{FrequencyHz: 740, Duration: 65 * time.Millisecond, Volume: cueVolume},
		{FrequencyHz: 988, Duration: 90 * time.Millisecond, Volume: cueVolume},
	},
	cueError: {
		{FrequencyHz: 480, Duration: 75 * time.Millisecond, Volume: cueVolume},
		{FrequencyHz: 360, Duration: 90 * time.Millisecond, Volume: cueVolume},
	},
}

// CuePlayer plays short mono clips. audio.Speaker satisfies it.
type CuePlayer interface {
	Play(ctx context.Context, samples []int16, sampleRate int) error
}

func cueSamples(kind cueKind) []int16 {
	return audio.ToneSequence(cueSampleRate, cueTones[kind]...)
}

func (k cueKind) String() string {
	switch k {
	case cueStart:
		return "start"
	case cueStop:
		return "stop"
	case cueDone:
		return "done"
	case cueError:
		return "error"
	default:
		return "unknown"
	}
}

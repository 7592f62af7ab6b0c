package audio

import (
	"math"
	"time"
)

// Tone is one sine beep of a cue.
type Tone struct {
	FrequencyHz float64
	Duration    time.Duration
	Volume      float64
}

// toneGap separates consecutive tones of a sequence.
const toneGap = 22 * time.Millisecond

// ToneSequence renders tones back to back with a short silence between them.
func ToneSequence(sampleRate int, tones ...Tone) []int16 {
	if len(tones) == 0 || sampleRate <= 0 {
		return nil
	}
	gap := samplesFor(toneGap, sampleRate)

	var pcm []int16
	for i, tone := range tones {
		pcm = append(pcm, renderTone(tone, sampleRate)...)
		if i < len(tones)-1 && gap > 0 {
			pcm = append(pcm, make([]int16, gap)...)
		}
	}
	return pcm
}

// renderTone shapes a sine with a short linear attack and release so the cue
// does not click.
func renderTone(tone Tone, sampleRate int) []int16 {
	n := samplesFor(tone.Duration, sampleRate)
	if n <= 0 || tone.FrequencyHz <= 0 || tone.Volume <= 0 {
		return nil
	}

	ramp := min(n/10, sampleRate/200) // at most 5ms
	ramp = max(ramp, 1)

	pcm := make([]int16, n)
	for i := range pcm {
		envelope := 1.0
		if i < ramp {
			envelope = float64(i) / float64(ramp)
		}
		if tail := n - i - 1; tail < ramp {
			envelope = math.Min(envelope, float64(tail)/float64(ramp))
		}
		t := float64(i) / float64(sampleRate)
		sample := math.Sin(2 * math.Pi * tone.FrequencyHz * t)
		pcm[i] = int16(math.Round(sample * tone.Volume * envelope * 32767))
	}
	return pcm
}

func samplesFor(d time.Duration, sampleRate int) int {
	if d <= 0 || sampleRate <= 0 {
		return 0
	}
	return int(math.Round(d.Seconds() * float64(sampleRate)))
}

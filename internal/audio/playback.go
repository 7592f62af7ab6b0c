package audio

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/jfreymuth/pulse"
)

// Speaker plays mono PCM through the default Pulse sink. Calls to Play are
// serialized so two clips never overlap at the device.
type Speaker struct {
	mediaName string
	mu        sync.Mutex
}

// NewSpeaker labels its streams with mediaName in the Pulse mixer.
func NewSpeaker(mediaName string) *Speaker {
	if mediaName == "" {
		mediaName = ApplicationName
	}
	return &Speaker{mediaName: mediaName}
}

// Play blocks until samples finished playing. Cancelling ctx stops feeding
// audio; what the server already buffered drains within the stream latency.
func (s *Speaker) Play(ctx context.Context, samples []int16, sampleRate int) error {
	if len(samples) == 0 {
		return nil
	}
	if sampleRate <= 0 {
		return errors.New("playback sample rate must be positive")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return err
	}

	client, err := newClient("audio-speakers")
	if err != nil {
		return err
	}
	defer client.Close()

	stream, err := client.NewPlayback(
		pulse.Int16Reader(pcmReader(ctx, samples)),
		pulse.PlaybackMono,
		pulse.PlaybackSampleRate(sampleRate),
		pulse.PlaybackLatency(0.05),
		pulse.PlaybackMediaName(s.mediaName),
	)
	if err != nil {
		return fmt.Errorf("create pulse playback stream: %w", err)
	}
	defer stream.Close()

	stream.Start()
	stream.Drain()
	if err := stream.Error(); err != nil {
		return fmt.Errorf("play stream: %w", err)
	}
	return ctx.Err()
}

// pcmReader feeds samples to Pulse and ends early once ctx is cancelled.
func pcmReader(ctx context.Context, samples []int16) func([]int16) (int, error) {
	cursor := 0
	return func(buf []int16) (int, error) {
		if ctx.Err() != nil || cursor >= len(samples) {
			return 0, pulse.EndOfData
		}
		n := copy(buf, samples[cursor:])
		cursor += n
		if cursor >= len(samples) {
			return n, pulse.EndOfData
		}
		return n, nil
	}
}

package pipeline

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/ItsAbhinavM/Bob/internal/audio"
	"github.com/ItsAbhinavM/Bob/internal/config"
	"github.com/ItsAbhinavM/Bob/internal/riva"
	"github.com/ItsAbhinavM/Bob/internal/speech"
)

type synthClient interface {
	Synthesize(ctx context.Context, text string, voiceName string, languageCode string) ([]int16, error)
	Voices(ctx context.Context) ([]riva.Voice, error)
	SampleRateHz() int
	Close() error
}

// Synthesizer renders speech segments through Riva. The connection is dialed
// on first use and redialed after a failed dial, so the assistant can start
// before the speech server is up.
type Synthesizer struct {
	cfg  riva.SynthConfig
	dial func(ctx context.Context, cfg riva.SynthConfig) (synthClient, error)

	mu     sync.Mutex
	client synthClient
}

// NewSynthesizer addresses the synthesis service from runtime config.
func NewSynthesizer(cfg config.Config) *Synthesizer {
	return &Synthesizer{
		cfg: riva.SynthConfig{
			Endpoint:     cfg.Riva.GRPC,
			LanguageCode: cfg.Speech.LanguageCode,
			SampleRateHz: cfg.Speech.SampleRateHz,
			DialTimeout:  riva.DefaultDialTimeout,
		},
		dial: func(ctx context.Context, cfg riva.SynthConfig) (synthClient, error) {
			return riva.DialSynthesizer(ctx, cfg)
		},
	}
}

// Supported reports whether a synthesis endpoint is configured.
func (s *Synthesizer) Supported() bool {
	return strings.TrimSpace(s.cfg.Endpoint) != ""
}

// Synthesize implements speech.Synthesizer.
func (s *Synthesizer) Synthesize(ctx context.Context, text string, voice speech.Voice) (speech.Audio, error) {
	client, err := s.connect(ctx)
	if err != nil {
		return speech.Audio{}, err
	}
	pcm, err := client.Synthesize(ctx, text, voice.Name, voice.Locale)
	if err != nil {
		if riva.IsUnavailable(err) {
			s.reset(client)
		}
		return speech.Audio{}, err
	}
	return speech.Audio{PCM: pcm, SampleRate: client.SampleRateHz()}, nil
}

// LoadVoices is a speech.VoiceLoader over the service's synthesis config.
func (s *Synthesizer) LoadVoices(ctx context.Context) ([]speech.Voice, error) {
	client, err := s.connect(ctx)
	if err != nil {
		return nil, err
	}
	voices, err := client.Voices(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]speech.Voice, 0, len(voices))
	for _, voice := range voices {
		out = append(out, speech.Voice{Name: voice.Name, Locale: voice.LanguageCode})
	}
	return out, nil
}

// Close drops the connection if one was made.
func (s *Synthesizer) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.client == nil {
		return nil
	}
	err := s.client.Close()
	s.client = nil
	return err
}

func (s *Synthesizer) connect(ctx context.Context) (synthClient, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.client != nil {
		return s.client, nil
	}
	client, err := s.dial(ctx, s.cfg)
	if err != nil {
		return nil, fmt.Errorf("connect synthesizer: %w", err)
	}
	s.client = client
	return client, nil
}

// reset drops client so the next call redials.
func (s *Synthesizer) reset(client synthClient) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.client == client {
		_ = s.client.Close()
		s.client = nil
	}
}

type pcmPlayer interface {
	Play(ctx context.Context, samples []int16, sampleRate int) error
}

// Sink plays synthesized segments on the default output device.
type Sink struct {
	player pcmPlayer
}

// NewSink wraps a Pulse speaker labelled mediaName.
func NewSink(mediaName string) *Sink {
	return &Sink{player: audio.NewSpeaker(mediaName)}
}

// Play implements speech.Sink.
func (s *Sink) Play(ctx context.Context, clip speech.Audio) error {
	return s.player.Play(ctx, clip.PCM, clip.SampleRate)
}

// Package pipeline wires Pulse capture and playback to the Riva recognition
// and synthesis services behind the capture and speech adapter interfaces.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/ItsAbhinavM/Bob/internal/audio"
	"github.com/ItsAbhinavM/Bob/internal/capture"
	"github.com/ItsAbhinavM/Bob/internal/config"
	"github.com/ItsAbhinavM/Bob/internal/logging"
	"github.com/ItsAbhinavM/Bob/internal/riva"
)

// flushTimeout bounds how long a stopping session waits for Riva's last results.
const flushTimeout = 20 * time.Second

type asrStream interface {
	Updates() <-chan riva.Update
	SendAudio(chunk []byte) error
	CloseAndCollect(ctx context.Context) ([]string, time.Duration, error)
	Cancel() error
}

type pcmSource interface {
	Chunks() <-chan []byte
	Stop() error
	BytesCaptured() int64
	RawPCM() []byte
}

// Recognizer starts one microphone -> Riva streaming session per listen.
type Recognizer struct {
	cfg    config.Config
	logger *slog.Logger

	selectDevice func(ctx context.Context, input string, fallback string) (audio.Selection, error)
	dialStream   func(ctx context.Context, cfg riva.StreamConfig) (asrStream, error)
	startCapture func(ctx context.Context, device audio.Device, opts audio.CaptureOptions) (pcmSource, error)
}

// NewRecognizer builds a recognizer from runtime config.
func NewRecognizer(cfg config.Config, logger *slog.Logger) *Recognizer {
	return &Recognizer{
		cfg:          cfg,
		logger:       logging.OrDiscard(logger),
		selectDevice: audio.SelectDevice,
		dialStream: func(ctx context.Context, cfg riva.StreamConfig) (asrStream, error) {
			return riva.DialStream(ctx, cfg)
		},
		startCapture: func(ctx context.Context, device audio.Device, opts audio.CaptureOptions) (pcmSource, error) {
			return audio.StartCapture(ctx, device, opts)
		},
	}
}

// Supported reports whether a recognition endpoint is configured at all.
// Reachability is only known once a session starts.
func (r *Recognizer) Supported() bool {
	return strings.TrimSpace(r.cfg.Riva.GRPC) != ""
}

// Start selects the input device, opens the Riva stream and begins capture.
// ctx bounds the whole session.
func (r *Recognizer) Start(ctx context.Context) (capture.Session, error) {
	if !r.Supported() {
		return nil, capture.ErrUnsupportedCapability
	}

	selection, err := r.selectDevice(ctx, r.cfg.Audio.Input, r.cfg.Audio.Fallback)
	if err != nil {
		return nil, fmt.Errorf("%w: select input device: %w", capture.ErrAudioCapture, err)
	}
	if selection.Warning != "" {
		r.logger.Warn(selection.Warning)
	}

	phrases, _, err := config.BuildSpeechPhrases(r.cfg)
	if err != nil {
		return nil, fmt.Errorf("build speech contexts: %w", err)
	}

	var grpcDump *os.File
	if r.cfg.Debug.EnableGRPCDump {
		grpcDump, err = createDebugFile("grpc", "json")
		if err != nil {
			return nil, err
		}
	}

	streamCfg := riva.StreamConfig{
		Endpoint:             r.cfg.Riva.GRPC,
		LanguageCode:         r.cfg.ASR.LanguageCode,
		Model:                r.cfg.ASR.Model,
		AutomaticPunctuation: r.cfg.ASR.AutomaticPunctuation,
		SpeechPhrases:        toRivaPhrases(phrases),
		DialTimeout:          riva.DefaultDialTimeout,
	}
	if grpcDump != nil {
		streamCfg.DebugResponseSinkJSON = grpcDump
	}

	stream, err := r.dialStream(ctx, streamCfg)
	if err != nil {
		closeQuietly(grpcDump)
		return nil, fmt.Errorf("%w: %w", capture.ErrNetwork, err)
	}

	pcm, err := r.startCapture(ctx, selection.Device, audio.CaptureOptions{KeepRawPCM: r.cfg.Debug.EnableAudioDump})
	if err != nil {
		_ = stream.Cancel()
		closeQuietly(grpcDump)
		return nil, fmt.Errorf("%w: %w", capture.ErrAudioCapture, err)
	}

	s := newSession(stream, pcm, sessionOptions{
		continuous: r.cfg.ASR.Continuous,
		noSpeech:   r.cfg.ASR.NoSpeechTimeout(),
		audioDump:  r.cfg.Debug.EnableAudioDump,
		grpcDump:   grpcDump,
		logger:     r.logger,
	})
	r.logger.Debug("recognition session started", "audio_device", describeDevice(selection.Device))
	go s.run(ctx)
	return s, nil
}

func toRivaPhrases(phrases []config.SpeechPhrase) []riva.SpeechPhrase {
	out := make([]riva.SpeechPhrase, 0, len(phrases))
	for _, phrase := range phrases {
		out = append(out, riva.SpeechPhrase{Phrase: phrase.Phrase, Boost: phrase.Boost})
	}
	return out
}

// describeDevice formats device metadata for logs.
func describeDevice(device audio.Device) string {
	description := strings.TrimSpace(device.Description)
	id := strings.TrimSpace(device.ID)
	if description == "" {
		return id
	}
	if id == "" {
		return description
	}
	return fmt.Sprintf("%s (%s)", description, id)
}

func closeQuietly(file *os.File) {
	if file != nil {
		_ = file.Close()
	}
}

package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/ItsAbhinavM/Bob/internal/audio"
	"github.com/ItsAbhinavM/Bob/internal/capture"
)

type sessionOptions struct {
	continuous bool
	noSpeech   time.Duration
	audioDump  bool
	grpcDump   *os.File
	logger     *slog.Logger
}

// session is one capture.Session: audio flows to Riva until the utterance
// ends, Stop is called, nothing is heard in time, or ctx ends.
type session struct {
	opts   sessionOptions
	stream asrStream
	pcm    pcmSource

	results  chan capture.Result
	stopCh   chan struct{}
	stopOnce sync.Once
	done     chan struct{}
	err      error

	lastText string
}

func newSession(stream asrStream, pcm pcmSource, opts sessionOptions) *session {
	return &session{
		opts:    opts,
		stream:  stream,
		pcm:     pcm,
		results: make(chan capture.Result, 32),
		stopCh:  make(chan struct{}),
		done:    make(chan struct{}),
	}
}

func (s *session) Results() <-chan capture.Result {
	return s.results
}

// Stop ends capture; results Riva still holds are flushed before Results closes.
func (s *session) Stop() error {
	s.stopOnce.Do(func() { close(s.stopCh) })
	return nil
}

func (s *session) Wait() error {
	<-s.done
	return s.err
}

func (s *session) run(ctx context.Context) {
	defer close(s.done)
	defer close(s.results)
	defer s.writeDebugArtifacts()

	sendErrCh := make(chan error, 1)
	go s.sendLoop(sendErrCh)

	var noSpeech <-chan time.Time
	if s.opts.noSpeech > 0 {
		timer := time.NewTimer(s.opts.noSpeech)
		defer timer.Stop()
		noSpeech = timer.C
	}

	updates := s.stream.Updates()
	for {
		select {
		case update, ok := <-updates:
			if !ok {
				s.err = s.finish(ctx, sendErrCh)
				return
			}
			s.publish(update.Text, update.Final, update.Confidence)
			if update.Final && !s.opts.continuous {
				s.err = s.finish(ctx, sendErrCh)
				return
			}
		case <-noSpeech:
			if s.lastText == "" {
				s.abort()
				s.err = capture.ErrNoSpeech
				return
			}
		case err := <-sendErrCh:
			// A nil here means capture ended on its own.
			if err != nil {
				s.abort()
				s.err = fmt.Errorf("%w: send audio stream: %w", capture.ErrNetwork, err)
				return
			}
			_ = s.pcm.Stop()
			s.err = s.flush(ctx)
			return
		case <-s.stopCh:
			s.err = s.finish(ctx, sendErrCh)
			return
		case <-ctx.Done():
			s.abort()
			s.err = ctx.Err()
			return
		}
	}
}

// finish stops the microphone and waits for the last chunk to be sent.
func (s *session) finish(ctx context.Context, sendErrCh <-chan error) error {
	_ = s.pcm.Stop()
	if err := <-sendErrCh; err != nil {
		_ = s.stream.Cancel()
		return fmt.Errorf("%w: send audio stream: %w", capture.ErrNetwork, err)
	}
	return s.flush(ctx)
}

// flush closes the send side and lets Riva deliver its last results, which
// keep flowing to Results meanwhile.
func (s *session) flush(ctx context.Context) error {
	type collected struct {
		segments []string
		latency  time.Duration
		err      error
	}
	flushCtx, cancel := context.WithTimeout(ctx, flushTimeout)
	defer cancel()
	resultCh := make(chan collected, 1)
	go func() {
		segments, latency, err := s.stream.CloseAndCollect(flushCtx)
		resultCh <- collected{segments: segments, latency: latency, err: err}
	}()

	for update := range s.stream.Updates() {
		s.publish(update.Text, update.Final, update.Confidence)
	}
	res := <-resultCh
	if res.err != nil {
		if errors.Is(res.err, context.Canceled) && ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("%w: collect final transcript: %w", capture.ErrNetwork, res.err)
	}
	s.opts.logger.Debug("recognition flushed", "grpc_latency_ms", res.latency.Milliseconds(), "bytes_captured", s.pcm.BytesCaptured())

	final := strings.Join(res.segments, " ")
	if final != "" && final != s.lastText {
		s.publish(final, true, 0)
	}
	if s.lastText == "" {
		return capture.ErrNoSpeech
	}
	return nil
}

func (s *session) abort() {
	_ = s.pcm.Stop()
	_ = s.stream.Cancel()
}

func (s *session) publish(text string, final bool, confidence float32) {
	text = strings.TrimSpace(text)
	if text == "" {
		return
	}
	s.lastText = text
	s.results <- capture.Result{Text: text, Final: final, Confidence: confidence}
}

// sendLoop forwards capture chunks to Riva and reports the first send failure
// or nil once capture closed.
func (s *session) sendLoop(errCh chan<- error) {
	for chunk := range s.pcm.Chunks() {
		if len(chunk) == 0 {
			continue
		}
		if err := s.stream.SendAudio(chunk); err != nil {
			_ = s.pcm.Stop()
			errCh <- err
			return
		}
	}
	errCh <- nil
}

func (s *session) writeDebugArtifacts() {
	closeQuietly(s.opts.grpcDump)
	if !s.opts.audioDump {
		return
	}
	writeDebugAudio(s.pcm.RawPCM(), s.opts.logger)
}

// writeDebugAudio stores captured PCM as a WAV file next to the gRPC dumps.
func writeDebugAudio(rawPCM []byte, logger *slog.Logger) {
	if len(rawPCM) == 0 {
		return
	}
	file, err := createDebugFile("audio", "wav")
	if err != nil {
		logger.Warn("unable to create debug audio dump", "error", err.Error())
		return
	}
	defer file.Close()

	if err := audio.WritePCM16WAV(file, rawPCM, audio.CaptureSampleRate, 1); err != nil {
		logger.Warn("unable to write debug audio dump", "error", err.Error())
	}
}

// Package riva talks to an NVIDIA Riva server: streaming recognition for
// the microphone and unary synthesis for spoken replies.
package riva

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/reflect/protoreflect"
	"google.golang.org/protobuf/types/dynamicpb"
)

// SampleRateHz is the capture rate streamed to the recognizer.
const SampleRateHz = 16000

// SpeechPhrase is one vocabulary boost phrase in request-ready form.
type SpeechPhrase struct {
	Phrase string
	Boost  float32
}

// StreamConfig controls stream initialization and recognition behavior.
type StreamConfig struct {
	Endpoint              string
	LanguageCode          string
	Model                 string
	AutomaticPunctuation  bool
	SpeechPhrases         []SpeechPhrase
	DialTimeout           time.Duration
	DebugResponseSinkJSON io.Writer
}

// Update is the transcript after one recognition response: committed
// segments plus the latest interim hypothesis.
type Update struct {
	Text       string
	Final      bool
	Confidence float32
}

// Stream wraps one active Riva StreamingRecognize RPC lifecycle.
type Stream struct {
	conn   *grpc.ClientConn
	stream grpc.ClientStream
	cancel context.CancelFunc
	done   <-chan struct{}

	updates  chan Update
	recvDone chan struct{}

	mu                   sync.Mutex
	segments             []string // committed transcript segments
	lastInterim          string
	lastInterimStability float32
	recvErr              error
	closedSend           bool
	debugSinkJSON        io.Writer
}

var streamingRecognizeDesc = &grpc.StreamDesc{
	StreamName:    "StreamingRecognize",
	ClientStreams: true,
	ServerStreams: true,
}

// DialStream establishes a stream, sends config, and starts the receive loop.
func DialStream(ctx context.Context, cfg StreamConfig) (*Stream, error) {
	if strings.TrimSpace(cfg.LanguageCode) == "" {
		cfg.LanguageCode = "en-US"
	}
	if cfg.DialTimeout <= 0 {
		cfg.DialTimeout = DefaultDialTimeout
	}

	conn, err := dial(ctx, cfg.Endpoint, cfg.DialTimeout)
	if err != nil {
		return nil, err
	}

	streamCtx, cancel := context.WithCancel(ctx)
	stream, err := openWithTimeout(ctx, cfg.DialTimeout, func() (grpc.ClientStream, error) {
		return conn.NewStream(streamCtx, streamingRecognizeDesc, methodStreamingRecognize)
	})
	if err != nil {
		cancel()
		_ = conn.Close()
		return nil, fmt.Errorf("open streaming recognizer: %w", err)
	}

	req := streamingConfigRequest(cfg)
	if err := runWithTimeout(ctx, cfg.DialTimeout, func() error { return stream.SendMsg(req) }); err != nil {
		cancel()
		_ = conn.Close()
		return nil, fmt.Errorf("send initial streaming config: %w", err)
	}

	s := &Stream{
		conn:          conn,
		stream:        stream,
		cancel:        cancel,
		done:          streamCtx.Done(),
		updates:       make(chan Update, 32),
		recvDone:      make(chan struct{}),
		debugSinkJSON: cfg.DebugResponseSinkJSON,
	}
	go s.recvLoop()
	return s, nil
}

func streamingConfigRequest(cfg StreamConfig) *dynamicpb.Message {
	recognition := newMessage(msgRecognitionConfig)
	setInt32(recognition, "encoding", encodingLinearPCM)
	setInt32(recognition, "sample_rate_hertz", SampleRateHz)
	setString(recognition, "language_code", cfg.LanguageCode)
	setInt32(recognition, "max_alternatives", 1)
	setInt32(recognition, "audio_channel_count", 1)
	setBool(recognition, "enable_automatic_punctuation", cfg.AutomaticPunctuation)
	setBool(recognition, "verbatim_transcripts", true)
	if model := strings.TrimSpace(cfg.Model); model != "" {
		setString(recognition, "model", model)
	}

	for _, phrase := range cfg.SpeechPhrases {
		phraseText := strings.TrimSpace(phrase.Phrase)
		if phraseText == "" {
			continue
		}
		sc := newMessage(msgSpeechContext)
		appendString(sc, "phrases", phraseText)
		setFloat(sc, "boost", phrase.Boost)
		appendMessage(recognition, "speech_contexts", sc)
	}

	streaming := newMessage(msgStreamingRecognitionConfig)
	setMessage(streaming, "config", recognition)
	setBool(streaming, "interim_results", true)

	req := newMessage(msgStreamingRecognizeRequest)
	setMessage(req, "streaming_config", streaming)
	return req
}

// Updates delivers one transcript update per recognition response. It is
// closed when the server ends the stream.
func (s *Stream) Updates() <-chan Update {
	return s.updates
}

// SendAudio sends one chunk of PCM audio over the active stream.
func (s *Stream) SendAudio(chunk []byte) error {
	if len(chunk) == 0 {
		return nil
	}

	s.mu.Lock()
	closed := s.closedSend
	recvErr := s.recvErr
	s.mu.Unlock()

	if closed {
		return errors.New("stream already closed for sending")
	}
	if recvErr != nil {
		return fmt.Errorf("stream receive loop failed: %w", recvErr)
	}

	req := newMessage(msgStreamingRecognizeRequest)
	setBytes(req, "audio_content", chunk)
	return s.stream.SendMsg(req)
}

// CloseAndCollect closes send-side audio, waits for the server to flush its
// last results and returns the merged transcript segments.
func (s *Stream) CloseAndCollect(ctx context.Context) ([]string, time.Duration, error) {
	closedAt := time.Now()
	s.closeSend()

	select {
	case <-s.recvDone:
	case <-ctx.Done():
		_ = s.Cancel()
		return nil, 0, ctx.Err()
	}
	latency := time.Since(closedAt)

	s.mu.Lock()
	defer s.mu.Unlock()
	defer func() {
		s.cancel()
		_ = s.conn.Close()
	}()

	if s.recvErr != nil {
		return nil, latency, s.recvErr
	}
	return collectSegments(s.segments, s.lastInterim), latency, nil
}

// Cancel aborts stream processing and closes the underlying grpc connection.
func (s *Stream) Cancel() error {
	s.closeSend()
	s.cancel()
	return s.conn.Close()
}

func (s *Stream) closeSend() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.closedSend {
		s.closedSend = true
		_ = s.stream.CloseSend()
	}
}

// Transcript joins the committed segments and the pending interim.
func (s *Stream) Transcript() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return strings.Join(collectSegments(s.segments, s.lastInterim), " ")
}

// recvLoop continuously receives recognition responses until stream close/error.
func (s *Stream) recvLoop() {
	defer close(s.recvDone)
	defer close(s.updates)

	for {
		resp := newMessage(msgStreamingRecognizeResponse)
		err := s.stream.RecvMsg(resp)
		if err == nil {
			if update, ok := s.recordResponse(resp); ok {
				select {
				case s.updates <- update:
				case <-s.done:
				}
			}
			continue
		}
		if errors.Is(err, io.EOF) {
			return
		}

		s.mu.Lock()
		if !s.closedSend || status.Code(err) != codes.Canceled {
			s.recvErr = err
		}
		s.mu.Unlock()
		return
	}
}

// recordResponse merges final/interim segments into stream state and reports
// the resulting transcript when the response carried any text.
func (s *Stream) recordResponse(resp protoreflect.Message) (Update, bool) {
	if sink := s.debugSinkJSON; sink != nil {
		b, err := protojson.Marshal(resp.Interface())
		if err == nil {
			_, _ = sink.Write(append(b, '\n'))
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	update := Update{}
	changed := false
	for _, result := range getList(resp, "results") {
		alternatives := getList(result, "alternatives")
		if len(alternatives) == 0 {
			continue
		}
		transcript := cleanSegment(getString(alternatives[0], "transcript"))
		if transcript == "" {
			continue
		}
		changed = true

		if getBool(result, "is_final") {
			s.segments = appendSegment(s.segments, transcript)
			s.lastInterim = ""
			s.lastInterimStability = 0
			update.Final = true
			update.Confidence = getFloat(alternatives[0], "confidence")
			continue
		}

		if shouldCommitPriorInterim(s.lastInterim, s.lastInterimStability, transcript) {
			s.segments = appendSegment(s.segments, s.lastInterim)
		}
		s.lastInterim = transcript
		s.lastInterimStability = getFloat(result, "stability")
	}
	if !changed {
		return Update{}, false
	}

	update.Text = strings.Join(collectSegments(s.segments, s.lastInterim), " ")
	if s.lastInterim != "" {
		update.Final = false
	}
	return update, true
}

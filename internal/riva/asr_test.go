package riva

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/dynamicpb"
)

func TestCollectSegmentsAppendsTrailingInterim(t *testing.T) {
	got := collectSegments([]string{"hello there"}, "how are you")
	require.Equal(t, []string{"hello there", "how are you"}, got)
}

func TestCollectSegmentsFallsBackToInterim(t *testing.T) {
	got := collectSegments(nil, "  tentative words  ")
	require.Equal(t, []string{"tentative words"}, got)
}

func TestCollectSegmentsMergesTrailingInterimWithCommittedSegments(t *testing.T) {
	got := collectSegments([]string{"hello world"}, "hello world and beyond")
	require.Equal(t, []string{"hello world and beyond"}, got)

	got = collectSegments([]string{"hello world"}, "hello")
	require.Equal(t, []string{"hello world"}, got)
}

func TestRecordResponseTracksInterimThenFinal(t *testing.T) {
	s := &Stream{}

	update, ok := s.recordResponse(asrResponse(false, 0.1, "what's the wea"))
	require.True(t, ok)
	require.Equal(t, Update{Text: "what's the wea"}, update)
	require.Equal(t, "what's the wea", s.lastInterim)
	require.Empty(t, s.segments)

	update, ok = s.recordResponse(asrResponse(true, 0, "what's the weather"))
	require.True(t, ok)
	require.Equal(t, Update{Text: "what's the weather", Final: true, Confidence: 0.8}, update)
	require.Empty(t, s.lastInterim)
	require.Equal(t, []string{"what's the weather"}, s.segments)
}

func TestRecordResponseIgnoresEmptyResults(t *testing.T) {
	s := &Stream{}
	_, ok := s.recordResponse(newMessage(msgStreamingRecognizeResponse))
	require.False(t, ok)

	_, ok = s.recordResponse(asrResponse(false, 0.1, "   "))
	require.False(t, ok)
}

func TestRecordResponseReplacesUnstableDivergentInterim(t *testing.T) {
	s := &Stream{}
	s.recordResponse(asrResponse(false, 0.1, "first phrase"))
	update, _ := s.recordResponse(asrResponse(false, 0.1, "second phrase"))

	require.Empty(t, s.segments)
	require.Equal(t, "second phrase", update.Text)
}

func TestRecordResponseCommitsStableDivergentInterim(t *testing.T) {
	s := &Stream{}
	s.recordResponse(asrResponse(false, 0.9, "add milk to my list"))
	update, _ := s.recordResponse(asrResponse(false, 0.1, "and call mom"))

	require.Equal(t, []string{"add milk to my list"}, s.segments)
	require.Equal(t, "add milk to my list and call mom", update.Text)
	require.False(t, update.Final)
}

func TestRecordResponseFinalAfterCommittedSegmentsIsStillLive(t *testing.T) {
	s := &Stream{}
	s.recordResponse(asrResponse(true, 0, "hello world"))
	update, _ := s.recordResponse(asrResponse(false, 0.1, "second"))
	require.Equal(t, Update{Text: "hello world second"}, update)
}

func TestRecordResponseWritesDebugJSON(t *testing.T) {
	var debug bytes.Buffer
	s := &Stream{debugSinkJSON: &debug}
	s.recordResponse(asrResponse(true, 0, "hello"))
	require.Contains(t, debug.String(), `"isFinal":true`)
	require.Contains(t, debug.String(), `"transcript":"hello"`)
}

func TestAppendSegmentDedupAndPrefixMerge(t *testing.T) {
	segments := appendSegment(nil, "hello")
	segments = appendSegment(segments, "hello")
	require.Equal(t, []string{"hello"}, segments)

	segments = appendSegment(segments, "hello world")
	require.Equal(t, []string{"hello world"}, segments)

	segments = appendSegment(segments, "hello")
	require.Equal(t, []string{"hello world"}, segments)

	segments = appendSegment(segments, "  new   thought ")
	require.Equal(t, []string{"hello world", "new thought"}, segments)
}

func TestInterimHelpers(t *testing.T) {
	require.True(t, isInterimContinuation("", "anything"))
	require.True(t, isInterimContinuation("hello", "hello world"))
	require.True(t, isInterimContinuation("set a timer for ten", "set a timer for five minutes"))
	require.False(t, isInterimContinuation("first phrase", "second phrase"))

	require.Equal(t, 2, commonPrefixWords([]string{"Set", "a", "b"}, []string{"set", "a", "c"}))

	require.False(t, shouldCommitPriorInterim("", 1, "next"))
	require.False(t, shouldCommitPriorInterim("hello", 1, "hello there"))
	require.False(t, shouldCommitPriorInterim("first phrase", 0.2, "second phrase"))
	require.True(t, shouldCommitPriorInterim("first phrase", 0.9, "second phrase"))
}

func TestDialStreamEndToEndWithDebugSinkAndSpeechContexts(t *testing.T) {
	server := &testRivaServer{
		responses: []*dynamicpb.Message{
			asrResponse(false, 0.1, "hello wor"),
			asrResponse(true, 0, "hello world"),
			asrResponse(false, 0.1, "second phrase"),
		},
	}
	endpoint, shutdown := startTestRivaServer(t, server)
	defer shutdown()

	var debug bytes.Buffer

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	stream, err := DialStream(ctx, StreamConfig{
		Endpoint:             endpoint,
		LanguageCode:         "en-US",
		Model:                "parakeet",
		AutomaticPunctuation: true,
		SpeechPhrases: []SpeechPhrase{
			{Phrase: "  Bob  ", Boost: 12},
			{Phrase: "", Boost: 20},
		},
		DialTimeout:           2 * time.Second,
		DebugResponseSinkJSON: &debug,
	})
	require.NoError(t, err)

	require.NoError(t, stream.SendAudio([]byte{1, 2, 3, 4}))
	require.NoError(t, stream.SendAudio(nil))

	segments, latency, err := stream.CloseAndCollect(ctx)
	require.NoError(t, err)
	require.Equal(t, []string{"hello world", "second phrase"}, segments)
	require.GreaterOrEqual(t, latency, time.Duration(0))
	require.Equal(t, "hello world second phrase", stream.Transcript())

	var updates []Update
	for update := range stream.Updates() {
		updates = append(updates, update)
	}
	require.Equal(t, []Update{
		{Text: "hello wor"},
		{Text: "hello world", Final: true, Confidence: 0.8},
		{Text: "hello world second phrase"},
	}, updates)

	cfg := server.config()
	require.NotNil(t, cfg)
	require.Equal(t, int32(encodingLinearPCM), getInt32(cfg, "encoding"))
	require.Equal(t, int32(SampleRateHz), getInt32(cfg, "sample_rate_hertz"))
	require.Equal(t, int32(1), getInt32(cfg, "audio_channel_count"))
	require.Equal(t, "en-US", getString(cfg, "language_code"))
	require.Equal(t, "parakeet", getString(cfg, "model"))
	require.True(t, getBool(cfg, "enable_automatic_punctuation"))
	contexts := getList(cfg, "speech_contexts")
	require.Len(t, contexts, 1)
	require.Equal(t, []string{"Bob"}, getStrings(contexts[0], "phrases"))
	require.Equal(t, float32(12), getFloat(contexts[0], "boost"))

	server.mu.Lock()
	require.Equal(t, 1, server.audioChunks)
	server.mu.Unlock()

	require.Contains(t, debug.String(), "results")
}

func TestDialStreamEmptyEndpoint(t *testing.T) {
	_, err := DialStream(context.Background(), StreamConfig{Endpoint: "   "})
	require.Error(t, err)
	require.Contains(t, err.Error(), "endpoint is empty")
}

func TestDialStreamReadinessTimeout(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	_, err := DialStream(ctx, StreamConfig{
		Endpoint:    "127.0.0.1:1",
		DialTimeout: 100 * time.Millisecond,
	})
	require.Error(t, err)
	require.Contains(t, err.Error(), "readiness")
	require.True(t, IsUnavailable(err))
}

func TestRunWithTimeoutTimesOut(t *testing.T) {
	err := runWithTimeout(context.Background(), 20*time.Millisecond, func() error {
		time.Sleep(120 * time.Millisecond)
		return nil
	})
	require.Error(t, err)
	require.Contains(t, err.Error(), "timed out")
}

func TestOpenWithTimeoutTimesOut(t *testing.T) {
	_, err := openWithTimeout(context.Background(), 20*time.Millisecond, func() (int, error) {
		time.Sleep(120 * time.Millisecond)
		return 1, nil
	})
	require.Error(t, err)
	require.Contains(t, err.Error(), "timed out")
}

func TestRunWithTimeoutReturnsCallError(t *testing.T) {
	want := errors.New("boom")
	err := runWithTimeout(context.Background(), time.Second, func() error {
		return want
	})
	require.ErrorIs(t, err, want)
}

func TestCloseAndCollectReturnsServerStreamError(t *testing.T) {
	server := &testRivaServer{streamErr: status.Error(codes.Internal, "boom")}
	endpoint, shutdown := startTestRivaServer(t, server)
	defer shutdown()

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	stream, err := DialStream(ctx, StreamConfig{Endpoint: endpoint, DialTimeout: time.Second})
	require.NoError(t, err)
	require.NoError(t, stream.SendAudio([]byte{1, 2}))

	_, _, err = stream.CloseAndCollect(ctx)
	require.Error(t, err)
	require.Contains(t, err.Error(), "boom")
	require.False(t, IsUnavailable(err))
}

func TestSendAudioAfterCloseReturnsError(t *testing.T) {
	server := &testRivaServer{}
	endpoint, shutdown := startTestRivaServer(t, server)
	defer shutdown()

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	stream, err := DialStream(ctx, StreamConfig{Endpoint: endpoint, DialTimeout: time.Second})
	require.NoError(t, err)

	_, _, err = stream.CloseAndCollect(ctx)
	require.NoError(t, err)

	err = stream.SendAudio([]byte{9, 9, 9})
	require.Error(t, err)
	require.Contains(t, err.Error(), "closed")
}

func TestCancelEndsUpdates(t *testing.T) {
	server := &testRivaServer{}
	endpoint, shutdown := startTestRivaServer(t, server)
	defer shutdown()

	stream, err := DialStream(context.Background(), StreamConfig{Endpoint: endpoint, DialTimeout: time.Second})
	require.NoError(t, err)
	require.NoError(t, stream.Cancel())

	select {
	case _, ok := <-stream.Updates():
		require.False(t, ok)
	case <-time.After(2 * time.Second):
		t.Fatal("updates not closed after cancel")
	}
}

func TestIsUnavailable(t *testing.T) {
	require.False(t, IsUnavailable(nil))
	require.True(t, IsUnavailable(status.Error(codes.Unavailable, "connection refused")))
	require.True(t, IsUnavailable(fmt.Errorf("wrapped: %w", context.DeadlineExceeded)))
	require.False(t, IsUnavailable(status.Error(codes.InvalidArgument, "bad config")))
}

package audio

import (
	"bytes"
	"context"
	"encoding/binary"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestWriterFuncDelegatesWrite(t *testing.T) {
	called := false
	writer := writerFunc(func(b []byte) (int, error) {
		called = true
		require.Equal(t, []byte{1, 2, 3}, b)
		return len(b), nil
	})

	n, err := writer.Write([]byte{1, 2, 3})
	require.NoError(t, err)
	require.Equal(t, 3, n)
	require.True(t, called)
}

func TestCaptureOnPCMChunkingAndStopFlushesPending(t *testing.T) {
	capture := newCapture(Device{}, CaptureOptions{KeepRawPCM: true})

	input := make([]byte, chunkSizeBytes+111)
	for i := range input {
		input[i] = byte(i % 255)
	}

	n, err := capture.onPCM(input)
	require.NoError(t, err)
	require.Equal(t, len(input), n)
	require.Equal(t, int64(len(input)), capture.BytesCaptured())
	require.Equal(t, input, capture.RawPCM())

	firstChunk := <-capture.Chunks()
	require.Equal(t, input[:chunkSizeBytes], firstChunk)

	require.NoError(t, capture.Stop())
	require.NoError(t, capture.Stop())

	remaining, ok := <-capture.Chunks()
	require.True(t, ok)
	require.Len(t, remaining, 111)

	_, ok = <-capture.Chunks()
	require.False(t, ok)
}

func TestCaptureDropsRawPCMUnlessRequested(t *testing.T) {
	capture := newCapture(Device{}, CaptureOptions{})
	_, err := capture.onPCM(make([]byte, 10))
	require.NoError(t, err)
	require.Empty(t, capture.RawPCM())
	require.EqualValues(t, 10, capture.BytesCaptured())
}

func TestCaptureOnPCMReturnsEOFWhenStopped(t *testing.T) {
	capture := newCapture(Device{}, CaptureOptions{})
	require.NoError(t, capture.Stop())

	n, err := capture.onPCM([]byte{1, 2, 3})
	require.Equal(t, 0, n)
	require.ErrorIs(t, err, io.EOF)
	require.Equal(t, int64(0), capture.BytesCaptured())
}

func TestCaptureDeviceAndCloseAlias(t *testing.T) {
	capture := newCapture(Device{ID: "mic-1", Description: "Mic"}, CaptureOptions{})
	require.Equal(t, "mic-1", capture.Device().ID)

	capture.Close()
	_, ok := <-capture.Chunks()
	require.False(t, ok)
}

func TestStartCaptureFailsWhenPulseUnavailable(t *testing.T) {
	t.Setenv("PULSE_SERVER", "unix:/tmp/definitely-missing-pulse-server")
	_, err := StartCapture(context.Background(), Device{ID: "mic"}, CaptureOptions{})
	require.Error(t, err)
}

func TestPCMReaderStopsAtEndAndOnCancel(t *testing.T) {
	read := pcmReader(context.Background(), []int16{1, 2, 3})
	buf := make([]int16, 2)

	n, err := read(buf)
	require.NoError(t, err)
	require.Equal(t, 2, n)

	n, err = read(buf)
	require.Error(t, err)
	require.Equal(t, 1, n)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	n, err = pcmReader(ctx, []int16{1, 2, 3})(buf)
	require.Error(t, err)
	require.Zero(t, n)
}

func TestSpeakerPlayEdgeCases(t *testing.T) {
	speaker := NewSpeaker("")
	require.NoError(t, speaker.Play(context.Background(), nil, 22050))
	require.Error(t, speaker.Play(context.Background(), []int16{1}, 0))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.ErrorIs(t, speaker.Play(ctx, []int16{1}, 22050), context.Canceled)
}

func TestSpeakerPlayFailsWhenPulseUnavailable(t *testing.T) {
	t.Setenv("PULSE_SERVER", "unix:/tmp/definitely-missing-pulse-server")
	err := NewSpeaker("test").Play(context.Background(), []int16{1, 2}, 22050)
	require.Error(t, err)
}

func TestToneSequence(t *testing.T) {
	pcm := ToneSequence(16000,
		Tone{FrequencyHz: 880, Duration: 70 * time.Millisecond, Volume: 0.2},
		Tone{FrequencyHz: 1175, Duration: 70 * time.Millisecond, Volume: 0.2},
	)
	require.Len(t, pcm, 2*samplesFor(70*time.Millisecond, 16000)+samplesFor(toneGap, 16000))
	require.Zero(t, pcm[0], "attack starts from silence")

	require.Empty(t, ToneSequence(16000))
	require.Empty(t, ToneSequence(0, Tone{FrequencyHz: 440, Duration: time.Second, Volume: 1}))
	require.Empty(t, renderTone(Tone{FrequencyHz: 0, Duration: time.Second, Volume: 1}, 16000))
	require.Empty(t, renderTone(Tone{FrequencyHz: 440, Duration: time.Second, Volume: 0}, 16000))
}

func TestWritePCM16WAVHeader(t *testing.T) {
	var buf bytes.Buffer
	pcm := []byte{1, 0, 2, 0}
	require.NoError(t, WritePCM16WAV(&buf, pcm, 16000, 0))

	out := buf.Bytes()
	require.Len(t, out, 48)
	require.Equal(t, "RIFF", string(out[0:4]))
	require.Equal(t, uint32(40), binary.LittleEndian.Uint32(out[4:8]))
	require.Equal(t, "WAVE", string(out[8:12]))
	require.Equal(t, uint16(1), binary.LittleEndian.Uint16(out[22:24]))
	require.Equal(t, uint32(16000), binary.LittleEndian.Uint32(out[24:28]))
	require.Equal(t, uint32(32000), binary.LittleEndian.Uint32(out[28:32]))
	require.Equal(t, "data", string(out[36:40]))
	require.Equal(t, pcm, out[44:])
}

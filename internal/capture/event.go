package capture

import (
	"context"
	"errors"
)

type EventKind string

const (
	EventStarted EventKind = "started"
	EventResult  EventKind = "result"
	EventError   EventKind = "error"
	EventEnded   EventKind = "ended"
)

// Reason classifies a recognition error.
type Reason string

const (
	ReasonNone         Reason = ""
	ReasonNoSpeech     Reason = "no-speech"
	ReasonAudioCapture Reason = "audio-capture"
	ReasonNetwork      Reason = "network"
	ReasonAborted      Reason = "aborted"
	ReasonRecognition  Reason = "recognition"
)

// Benign reports whether the reason should stay invisible to the user. Only
// silence qualifies; an aborted session surfaces like any other failure.
func (r Reason) Benign() bool {
	return r == ReasonNone || r == ReasonNoSpeech
}

// Event is one item of the adapter's stream.
type Event struct {
	Kind       EventKind
	Session    uint64
	Transcript string
	Final      bool
	Confidence float32
	Reason     Reason
	Err        error
}

// Classify maps a recognizer error onto a Reason.
func Classify(err error) Reason {
	switch {
	case err == nil:
		return ReasonNone
	case errors.Is(err, ErrNoSpeech):
		return ReasonNoSpeech
	case errors.Is(err, context.Canceled):
		return ReasonAborted
	case errors.Is(err, ErrAudioCapture):
		return ReasonAudioCapture
	case errors.Is(err, ErrNetwork), errors.Is(err, context.DeadlineExceeded):
		return ReasonNetwork
	default:
		return ReasonRecognition
	}
}

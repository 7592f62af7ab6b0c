package speech

// EventKind names a playback notification.
type EventKind string

const (
	EventSegmentStarted EventKind = "segment-started"
	EventSegmentEnded   EventKind = "segment-ended"
	EventSegmentError   EventKind = "segment-error"
	EventFinished       EventKind = "finished"
)

// Event reports playback progress for one utterance.
type Event struct {
	Kind      EventKind
	Utterance uint64
	Segment   Segment
	// Forced is set on segment-ended when the watchdog gave up waiting.
	Forced bool
	Err    error
}

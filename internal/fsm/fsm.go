// Package fsm defines the voice session state machine.
package fsm

import "fmt"

type State string

type Event string

const (
	StateIdle       State = "idle"
	StateListening  State = "listening"
	StateProcessing State = "processing"
	StateSpeaking   State = "speaking"
)

const (
	EventListen  Event = "listen"
	EventEnd     Event = "end"
	EventProcess Event = "process"
	EventSettle  Event = "settle"
	EventSpeak   Event = "speak"
	EventFinish  Event = "finish"
	EventReset   Event = "reset"
)

// Transition returns the state reached from current on event. Listening and
// speaking are only reachable from idle (speaking also from processing), so
// the two never overlap.
func Transition(current State, event Event) (State, error) {
	if event == EventReset {
		switch current {
		case StateIdle, StateListening, StateProcessing, StateSpeaking:
			return StateIdle, nil
		default:
			return current, fmt.Errorf("unknown state %q", current)
		}
	}

	switch current {
	case StateIdle:
		switch event {
		case EventListen:
			return StateListening, nil
		case EventProcess:
			return StateProcessing, nil
		case EventSpeak:
			return StateSpeaking, nil
		default:
			return current, invalidTransition(current, event)
		}
	case StateListening:
		switch event {
		case EventEnd:
			return StateIdle, nil
		default:
			return current, invalidTransition(current, event)
		}
	case StateProcessing:
		switch event {
		case EventSpeak:
			return StateSpeaking, nil
		case EventSettle:
			return StateIdle, nil
		default:
			return current, invalidTransition(current, event)
		}
	case StateSpeaking:
		switch event {
		case EventFinish:
			return StateIdle, nil
		default:
			return current, invalidTransition(current, event)
		}
	default:
		return current, fmt.Errorf("unknown state %q", current)
	}
}

// Busy reports whether a new listening session must be refused in state s.
func Busy(s State) bool {
	return s == StateProcessing || s == StateSpeaking
}

func invalidTransition(state State, event Event) error {
	return fmt.Errorf("invalid transition: %s --(%s)--> ?", state, event)
}

// Package conversation submits user messages to the assistant backend and
// keeps the durable turn history.
package conversation

import (
	"time"

	"github.com/google/uuid"
)

// Role identifies who produced a turn.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Turn is one immutable history entry.
type Turn struct {
	ID        string    `json:"id"`
	Role      Role      `json:"role"`
	Text      string    `json:"text"`
	Timestamp time.Time `json:"timestamp"`
}

// Log is the persisted conversation: the sticky backend conversation id
// and every turn in order.
type Log struct {
	ConversationID string `json:"conversation_id,omitempty"`
	Turns          []Turn `json:"turns"`
}

func newTurn(role Role, text string, now time.Time) Turn {
	return Turn{
		ID:        uuid.NewString(),
		Role:      role,
		Text:      text,
		Timestamp: now.UTC(),
	}
}

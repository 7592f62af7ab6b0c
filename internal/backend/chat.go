package backend

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
)

// ChatRequest is one user message. An empty ConversationID asks the backend to start one.
type ChatRequest struct {
	Message        string `json:"message"`
	ConversationID string `json:"conversation_id,omitempty"`
}

// ChatResponse is the assistant reply plus the conversation it belongs to.
type ChatResponse struct {
	Response       string          `json:"response"`
	ConversationID string          `json:"conversation_id"`
	ActionTaken    string          `json:"action_taken,omitempty"`
	Data           json.RawMessage `json:"data,omitempty"`
}

// Chat sends a message to the assistant.
func (c *Client) Chat(ctx context.Context, req ChatRequest) (ChatResponse, error) {
	if strings.TrimSpace(req.Message) == "" {
		return ChatResponse{}, fmt.Errorf("%w: empty chat message", ErrRequestFailed)
	}

	var out ChatResponse
	if err := c.do(ctx, http.MethodPost, "/api/chat/", nil, req, &out); err != nil {
		return ChatResponse{}, err
	}
	return out, nil
}

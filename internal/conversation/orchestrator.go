package conversation

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ItsAbhinavM/Bob/internal/backend"
	"github.com/ItsAbhinavM/Bob/internal/logging"
)

// FallbackReply is spoken and recorded when the backend cannot answer.
const FallbackReply = "I encountered an error. Please try again."

// DefaultTimeout bounds one backend chat request.
const DefaultTimeout = 30 * time.Second

// ErrSubmissionInFlight is returned when Submit is called while another
// submission has not finished.
var ErrSubmissionInFlight = errors.New("a message is already being processed")

// Backend is the chat subset of the backend client.
type Backend interface {
	Chat(ctx context.Context, req backend.ChatRequest) (backend.ChatResponse, error)
}

// Voice is the controller surface the orchestrator drives.
type Voice interface {
	BeginProcessing() error
	EndProcessing()
	Speak(text string) error
}

type silentVoice struct{}

func (silentVoice) BeginProcessing() error { return nil }
func (silentVoice) EndProcessing()         {}
func (silentVoice) Speak(string) error     { return nil }

// Orchestrator turns user text into backend requests, records both sides of
// the exchange and speaks the reply. At most one submission runs at a time.
type Orchestrator struct {
	logger  *slog.Logger
	backend Backend
	voice   Voice
	store   Store
	timeout time.Duration
	now     func() time.Time

	inFlight atomic.Bool
	wg       sync.WaitGroup

	mu             sync.RWMutex
	turns          []Turn
	conversationID string
}

// New loads the stored history. A nil voice runs text-only; a nil store keeps
// history in memory.
func New(b Backend, v Voice, store Store, timeout time.Duration, logger *slog.Logger) (*Orchestrator, error) {
	if v == nil {
		v = silentVoice{}
	}
	if store == nil {
		store = &MemoryStore{}
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	log, err := store.Load()
	if err != nil {
		return nil, err
	}

	return &Orchestrator{
		logger:         logging.OrDiscard(logger),
		backend:        b,
		voice:          v,
		store:          store,
		timeout:        timeout,
		now:            time.Now,
		turns:          log.Turns,
		conversationID: log.ConversationID,
	}, nil
}

// Submit sends text to the assistant. Blank text is ignored. Backend
// failures are answered with FallbackReply and are not returned.
func (o *Orchestrator) Submit(ctx context.Context, text string) error {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}
	if !o.inFlight.CompareAndSwap(false, true) {
		return ErrSubmissionInFlight
	}
	o.wg.Add(1)
	defer o.wg.Done()
	defer o.inFlight.Store(false)

	conversationID := o.appendTurn(RoleUser, text)

	if err := o.voice.BeginProcessing(); err != nil {
		o.logger.Warn("begin processing", "error", err.Error())
	}
	reply := o.ask(ctx, text, conversationID)

	o.appendTurn(RoleAssistant, reply)
	// Speech is queued before processing ends so listening cannot slip in
	// between the reply and its playback.
	if err := o.voice.Speak(reply); err != nil {
		o.logger.Warn("reply not spoken", "error", err.Error())
	}
	o.voice.EndProcessing()
	return nil
}

func (o *Orchestrator) ask(ctx context.Context, text string, conversationID string) string {
	if o.backend == nil {
		o.logger.Error("chat request failed", "error", "no backend configured")
		return FallbackReply
	}

	reqCtx, cancel := context.WithTimeout(ctx, o.timeout)
	defer cancel()

	started := time.Now()
	resp, err := o.backend.Chat(reqCtx, backend.ChatRequest{Message: text, ConversationID: conversationID})
	if err != nil {
		o.logger.Error("chat request failed", "error", err.Error(), "elapsed_ms", time.Since(started).Milliseconds())
		return FallbackReply
	}
	o.logger.Info("chat reply received",
		"conversation_id", resp.ConversationID,
		"action_taken", resp.ActionTaken,
		"elapsed_ms", time.Since(started).Milliseconds(),
	)

	if resp.ConversationID != "" {
		o.mu.Lock()
		if o.conversationID == "" {
			o.conversationID = resp.ConversationID
		}
		o.mu.Unlock()
	}

	reply := strings.TrimSpace(resp.Response)
	if reply == "" {
		o.logger.Warn("chat reply was empty")
		return FallbackReply
	}
	return reply
}

// appendTurn records a turn, persists the log and returns the current
// conversation id. Persistence failures are logged; memory stays the source
// of truth for this process.
func (o *Orchestrator) appendTurn(role Role, text string) string {
	o.mu.Lock()
	o.turns = append(o.turns, newTurn(role, text, o.now()))
	snapshot := o.logLocked()
	err := o.store.Save(snapshot)
	o.mu.Unlock()

	if err != nil {
		o.logger.Error("persist history", "error", err.Error())
	}
	return snapshot.ConversationID
}

func (o *Orchestrator) logLocked() Log {
	return Log{
		ConversationID: o.conversationID,
		Turns:          append([]Turn(nil), o.turns...),
	}
}

// History returns a copy of every turn.
func (o *Orchestrator) History() []Turn {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return append([]Turn(nil), o.turns...)
}

// ConversationID is the backend conversation in use, empty before the first reply.
func (o *Orchestrator) ConversationID() string {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.conversationID
}

// LastReply returns the most recent assistant turn.
func (o *Orchestrator) LastReply() (Turn, bool) {
	o.mu.RLock()
	defer o.mu.RUnlock()
	for i := len(o.turns) - 1; i >= 0; i-- {
		if o.turns[i].Role == RoleAssistant {
			return o.turns[i], true
		}
	}
	return Turn{}, false
}

// Busy reports whether a submission is in flight.
func (o *Orchestrator) Busy() bool {
	return o.inFlight.Load()
}

// Reset exports a non-empty history, then clears it and the conversation id.
// It returns the export path, empty when there was nothing to export.
func (o *Orchestrator) Reset() (string, error) {
	if o.inFlight.Load() {
		return "", ErrSubmissionInFlight
	}

	o.mu.Lock()
	defer o.mu.Unlock()

	var exported string
	if len(o.turns) > 0 {
		path, err := o.store.Export(o.logLocked())
		if err != nil {
			return "", err
		}
		exported = path
	}
	if err := o.store.Clear(); err != nil {
		return exported, err
	}

	o.turns = nil
	o.conversationID = ""
	o.logger.Info("conversation reset", "export", exported)
	return exported, nil
}

// Wait blocks until the in-flight submission, if any, has finished.
func (o *Orchestrator) Wait() {
	o.wg.Wait()
}

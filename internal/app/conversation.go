package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/ItsAbhinavM/Bob/internal/backend"
	"github.com/ItsAbhinavM/Bob/internal/config"
	"github.com/ItsAbhinavM/Bob/internal/conversation"
	"github.com/ItsAbhinavM/Bob/internal/ipc"
	"github.com/ItsAbhinavM/Bob/internal/output"
)

// sayGrace is added to the backend timeout when waiting on a forwarded say.
const sayGrace = 2 * time.Second

var errNothingToCopy = errors.New("no assistant reply to copy")

func historyStore(cfg config.Config) (*conversation.FileStore, error) {
	path, exportDir, err := config.HistoryPaths(cfg.History)
	if err != nil {
		return nil, fmt.Errorf("resolve history paths: %w", err)
	}
	return conversation.NewFileStore(path, exportDir), nil
}

// offlineConversation is a text-only orchestrator over the same durable
// history the talk session uses.
func offlineConversation(cfg config.Config, logger *slog.Logger) (*conversation.Orchestrator, error) {
	store, err := historyStore(cfg)
	if err != nil {
		return nil, err
	}
	client := backend.New(cfg.Backend.BaseURL, backend.WithLogger(logger))
	return conversation.New(client, nil, store, cfg.Backend.Timeout(), logger)
}

func (r Runner) commandSay(ctx context.Context, cfg config.Config, text string, logger *slog.Logger) int {
	resp, handled, err := forward(ctx, ipc.Request{Command: ipc.CommandSay, Text: text}, cfg.Backend.Timeout()+sayGrace)
	if handled {
		if err != nil {
			fmt.Fprintf(r.Stderr, "error: %v\n", err)
			return 1
		}
		fmt.Fprintln(r.Stdout, resp.Message)
		return 0
	}

	logger.Info("no session running; answering in text-only mode")
	orch, err := offlineConversation(cfg, logger)
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return 1
	}
	if err := orch.Submit(ctx, text); err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return 1
	}
	if reply, ok := orch.LastReply(); ok {
		fmt.Fprintln(r.Stdout, reply.Text)
	}
	return 0
}

func (r Runner) commandHistory(ctx context.Context, cfg config.Config, logger *slog.Logger) int {
	turns, err := loadTurns(ctx, cfg, logger)
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return 1
	}
	if len(turns) == 0 {
		fmt.Fprintln(r.Stdout, "no conversation history")
		return 0
	}
	for _, turn := range turns {
		fmt.Fprintln(r.Stdout, formatTurn(turn))
	}
	return 0
}

func (r Runner) commandReset(ctx context.Context, cfg config.Config, logger *slog.Logger) int {
	resp, handled, err := forward(ctx, ipc.Request{Command: ipc.CommandReset}, forwardTimeout)
	if handled {
		if err != nil {
			fmt.Fprintf(r.Stderr, "error: %v\n", err)
			return 1
		}
		fmt.Fprintln(r.Stdout, resp.Message)
		return 0
	}

	orch, err := offlineConversation(cfg, logger)
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return 1
	}
	path, err := orch.Reset()
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return 1
	}
	if path == "" {
		fmt.Fprintln(r.Stdout, "history cleared")
		return 0
	}
	fmt.Fprintf(r.Stdout, "history exported to %s\n", path)
	return 0
}

func (r Runner) commandCopy(ctx context.Context, cfg config.Config, logger *slog.Logger) int {
	turns, err := loadTurns(ctx, cfg, logger)
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return 1
	}
	reply, ok := lastReply(turns)
	if !ok {
		fmt.Fprintf(r.Stderr, "error: %v\n", errNothingToCopy)
		return 1
	}
	if err := output.NewClipboard(cfg.Clipboard.Argv, logger).Copy(ctx, reply.Text); err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return 1
	}
	fmt.Fprintln(r.Stdout, "copied last reply to clipboard")
	return 0
}

// loadTurns asks the running session for its history and reads the durable
// store when none runs.
func loadTurns(ctx context.Context, cfg config.Config, logger *slog.Logger) ([]conversation.Turn, error) {
	resp, handled, err := forward(ctx, ipc.Request{Command: ipc.CommandHistory}, forwardTimeout)
	if handled {
		if err != nil {
			return nil, err
		}
		var turns []conversation.Turn
		if len(resp.Data) > 0 {
			if err := json.Unmarshal(resp.Data, &turns); err != nil {
				return nil, fmt.Errorf("decode session history: %w", err)
			}
		}
		return turns, nil
	}

	store, err := historyStore(cfg)
	if err != nil {
		return nil, err
	}
	log, err := store.Load()
	if err != nil {
		return nil, err
	}
	logger.Debug("history read from store", "path", store.Path(), "turns", len(log.Turns))
	return log.Turns, nil
}

func lastReply(turns []conversation.Turn) (conversation.Turn, bool) {
	for i := len(turns) - 1; i >= 0; i-- {
		if turns[i].Role == conversation.RoleAssistant {
			return turns[i], true
		}
	}
	return conversation.Turn{}, false
}

func formatTurn(turn conversation.Turn) string {
	speaker := "you"
	if turn.Role == conversation.RoleAssistant {
		speaker = "bob"
	}
	return fmt.Sprintf("%s %s: %s", turn.Timestamp.Local().Format("2006-01-02 15:04"), speaker, turn.Text)
}

// Package indicator renders voice-session state as desktop notifications and
// audio cues.
package indicator

import (
	"context"
	"log/slog"
	"time"

	"github.com/ItsAbhinavM/Bob/internal/config"
	"github.com/ItsAbhinavM/Bob/internal/fsm"
	"github.com/ItsAbhinavM/Bob/internal/logging"
	"github.com/ItsAbhinavM/Bob/internal/voice"
)

const (
	persistentTimeoutMS = 300000
	defaultErrorMS      = 1200
	dispatchTimeout     = 400 * time.Millisecond
)

// Presenter follows controller snapshots and mirrors them on a Notifier.
// Observe never blocks, so it can be used directly as a controller subscriber.
type Presenter struct {
	logger   *slog.Logger
	notifier Notifier
	cues     CuePlayer
	msgs     messages
	errorMS  int

	updates chan voice.Snapshot
}

// NewPresenter wires cfg's enable switches: notices need cfg.Enable and a
// notifier, cues need cfg.SoundEnable and a player.
func NewPresenter(cfg config.IndicatorConfig, notifier Notifier, cues CuePlayer, logger *slog.Logger) *Presenter {
	if !cfg.Enable {
		notifier = nil
	}
	if !cfg.SoundEnable {
		cues = nil
	}
	errorMS := cfg.ErrorTimeoutMS
	if errorMS <= 0 {
		errorMS = defaultErrorMS
	}
	return &Presenter{
		logger:   logging.OrDiscard(logger),
		notifier: notifier,
		cues:     cues,
		msgs:     indicatorMessagesFromEnv().withOverrides(cfg),
		errorMS:  errorMS,
		updates:  make(chan voice.Snapshot, 32),
	}
}

// Observe queues a snapshot for rendering.
func (p *Presenter) Observe(s voice.Snapshot) {
	select {
	case p.updates <- s:
	default:
		p.logger.Debug("indicator update dropped", "state", string(s.State))
	}
}

// Run renders queued snapshots until ctx ends, then clears the surface.
func (p *Presenter) Run(ctx context.Context) {
	prev := voice.Snapshot{State: fsm.StateIdle, Supported: true}
	defer func() {
		cleanupCtx, cancel := context.WithTimeout(context.Background(), 800*time.Millisecond)
		defer cancel()
		p.apply(cleanupCtx, action{dismiss: true})
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case next := <-p.updates:
			for _, a := range plan(prev, next, p.msgs, p.errorMS) {
				p.apply(ctx, a)
			}
			prev = next
		}
	}
}

func (p *Presenter) apply(ctx context.Context, a action) {
	if a.cue != 0 && p.cues != nil {
		samples := cueSamples(a.cue)
		go func() {
			if err := p.cues.Play(ctx, samples, cueSampleRate); err != nil {
				p.logger.Debug("indicator audio cue failed", "cue", a.cue.String(), "error", err.Error())
			}
		}()
	}
	if p.notifier == nil {
		return
	}

	runCtx, cancel := context.WithTimeout(ctx, dispatchTimeout)
	defer cancel()
	var err error
	switch {
	case a.notice != nil:
		err = p.notifier.Notify(runCtx, *a.notice)
	case a.dismiss:
		err = p.notifier.Dismiss(runCtx)
	}
	if err != nil {
		p.logger.Debug("indicator dispatch failed", "error", err.Error())
	}
}

type action struct {
	notice  *Notice
	dismiss bool
	cue     cueKind
}

// plan maps one snapshot transition to indicator output. An error, or
// recognition becoming unavailable, always wins. Otherwise a new state or
// spoken caption shows a notice and settling back to idle dismisses it.
func plan(prev, next voice.Snapshot, msgs messages, errorMS int) []action {
	if next.Error != "" && next.Error != prev.Error {
		return []action{{notice: &Notice{Level: LevelError, Text: next.Error, TimeoutMS: errorMS}, cue: cueError}}
	}
	if prev.Supported && !next.Supported {
		return []action{{notice: &Notice{Level: LevelError, Text: msgs.errorText, TimeoutMS: errorMS}, cue: cueError}}
	}

	var out []action
	switch {
	case next.Listening && !prev.Listening:
		out = append(out, action{notice: &Notice{Level: LevelInfo, Text: msgs.listening, TimeoutMS: persistentTimeoutMS}, cue: cueStart})
	case prev.Listening && !next.Listening:
		out = append(out, action{cue: cueStop})
	}

	switch {
	case next.Processing && !prev.Processing:
		out = append(out, action{notice: &Notice{Level: LevelActive, Text: msgs.processing, TimeoutMS: persistentTimeoutMS}})
	case next.Speaking && next.Caption != "" && next.Caption != prev.Caption:
		out = append(out, action{notice: &Notice{Level: LevelActive, Text: next.Caption, TimeoutMS: persistentTimeoutMS}})
	}

	if next.State == fsm.StateIdle && prev.State != fsm.StateIdle && next.Error == "" {
		out = append(out, action{dismiss: true})
	}
	return out
}

package speech

import (
	"context"
	"log/slog"
	"os"
	"strings"
	"sync"

	"github.com/samber/lo"

	"github.com/ItsAbhinavM/Bob/internal/logging"
)

// Voice is one synthesis voice offered by the speech server.
type Voice struct {
	Name   string
	Locale string
}

// VoiceLoader fetches the available voices.
type VoiceLoader func(ctx context.Context) ([]Voice, error)

// Catalog holds the voice list and signals when it is ready. Playback waits
// on Ready so the first reply is not spoken with an arbitrary voice.
type Catalog struct {
	logger   *slog.Logger
	fallback Voice

	mu     sync.RWMutex
	voices []Voice

	ready     chan struct{}
	readyOnce sync.Once
}

// NewCatalog creates an empty, not-yet-ready catalog. fallback is used when
// no loaded voice matches a request.
func NewCatalog(fallback Voice, logger *slog.Logger) *Catalog {
	return &Catalog{
		logger:   logging.OrDiscard(logger),
		fallback: fallback,
		ready:    make(chan struct{}),
	}
}

// Ready is closed once voices have been loaded or loading gave up.
func (c *Catalog) Ready() <-chan struct{} {
	return c.ready
}

// Load runs loader and marks the catalog ready regardless of the outcome.
func (c *Catalog) Load(ctx context.Context, loader VoiceLoader) error {
	defer c.markReady()
	if loader == nil {
		return nil
	}

	voices, err := loader(ctx)
	if err != nil {
		c.logger.Warn("voice list unavailable", "error", err.Error())
		return err
	}
	c.SetVoices(voices)
	c.logger.Debug("voice list loaded", "count", len(voices))
	return nil
}

// SetVoices replaces the voice list and marks the catalog ready.
func (c *Catalog) SetVoices(voices []Voice) {
	c.mu.Lock()
	c.voices = lo.Filter(voices, func(v Voice, _ int) bool {
		return strings.TrimSpace(v.Name) != ""
	})
	c.mu.Unlock()
	c.markReady()
}

// Voices returns a copy of the loaded voices.
func (c *Catalog) Voices() []Voice {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]Voice(nil), c.voices...)
}

// Select picks a voice for locale. Exact locale matches win over
// language-only matches; within the winning group preferred is chosen when
// present, otherwise the first voice. Without any locale match the preferred
// voice, then the fallback voice, is used. ok is false when nothing matched
// and the server default should apply.
func (c *Catalog) Select(locale string, preferred string) (Voice, bool) {
	c.mu.RLock()
	voices := c.voices
	c.mu.RUnlock()

	want := NormalizeLocale(locale)
	exact := lo.Filter(voices, func(v Voice, _ int) bool {
		return want != "" && NormalizeLocale(v.Locale) == want
	})
	lang := lo.Filter(voices, func(v Voice, _ int) bool {
		return want != "" && language(v.Locale) == language(want)
	})

	for _, group := range [][]Voice{exact, lang} {
		if len(group) == 0 {
			continue
		}
		if v, ok := findByName(group, preferred); ok {
			return v, true
		}
		return group[0], true
	}

	if v, ok := findByName(voices, preferred); ok {
		return v, true
	}
	if c.fallback.Name != "" {
		return c.fallback, true
	}
	return Voice{Locale: want}, false
}

func (c *Catalog) markReady() {
	c.readyOnce.Do(func() { close(c.ready) })
}

func findByName(voices []Voice, name string) (Voice, bool) {
	name = strings.TrimSpace(name)
	if name == "" {
		return Voice{}, false
	}
	return lo.Find(voices, func(v Voice) bool {
		return strings.EqualFold(v.Name, name)
	})
}

// NormalizeLocale turns "en_US.UTF-8" style values into "en-US".
func NormalizeLocale(raw string) string {
	raw = strings.TrimSpace(raw)
	if i := strings.IndexAny(raw, ".@"); i >= 0 {
		raw = raw[:i]
	}
	if raw == "" || raw == "C" || raw == "POSIX" {
		return ""
	}
	parts := strings.Split(strings.ReplaceAll(raw, "_", "-"), "-")
	parts[0] = strings.ToLower(parts[0])
	if len(parts) > 1 {
		parts[1] = strings.ToUpper(parts[1])
	}
	return strings.Join(parts, "-")
}

// HostLocale reports the user's locale from LC_ALL, LC_MESSAGES or LANG.
func HostLocale() string {
	for _, key := range []string{"LC_ALL", "LC_MESSAGES", "LANG"} {
		if locale := NormalizeLocale(os.Getenv(key)); locale != "" {
			return locale
		}
	}
	return ""
}

func language(locale string) string {
	locale = NormalizeLocale(locale)
	if i := strings.IndexByte(locale, '-'); i >= 0 {
		return locale[:i]
	}
	return locale
}

package indicator

import (
	"os"
	"strings"

	"github.com/ItsAbhinavM/Bob/internal/config"
)

type locale string

const (
	localeEnglish locale = "en"
)

type messages struct {
	listening  string
	processing string
	errorText  string
}

func indicatorMessagesFromEnv() messages {
	return indicatorMessages(resolveLocale(os.Getenv("LANG")))
}

func resolveLocale(raw string) locale {
	raw = strings.ToLower(strings.TrimSpace(raw))
	if strings.HasPrefix(raw, "en") {
		return localeEnglish
	}
	return localeEnglish
}

func indicatorMessages(tag locale) messages {
	switch tag {
	case localeEnglish:
		fallthrough
	default:
		return messages{
			listening:  "Listening…",
			processing: "Thinking…",
			errorText:  "Speech recognition is unavailable",
		}
	}
}

// withOverrides applies the configured texts over the locale defaults.
func (m messages) withOverrides(cfg config.IndicatorConfig) messages {
	if text := strings.TrimSpace(cfg.TextListening); text != "" {
		m.listening = text
	}
	if text := strings.TrimSpace(cfg.TextProcessing); text != "" {
		m.processing = text
	}
	if text := strings.TrimSpace(cfg.TextError); text != "" {
		m.errorText = text
	}
	return m
}

package config

import (
	"fmt"
	"net/url"
	"sort"
	"strings"
)

// Validate enforces config invariants and returns non-fatal warnings.
func Validate(cfg Config) ([]Warning, error) {
	warnings := make([]Warning, 0)

	if err := validateBaseURL(cfg.Backend.BaseURL); err != nil {
		return nil, err
	}
	if cfg.Backend.TimeoutMS <= 0 {
		return nil, fmt.Errorf("backend.timeout_ms must be > 0")
	}
	if strings.TrimSpace(cfg.Riva.GRPC) == "" {
		return nil, fmt.Errorf("riva.grpc must not be empty")
	}
	if strings.TrimSpace(cfg.Riva.HTTP) == "" {
		return nil, fmt.Errorf("riva.http must not be empty")
	}
	if !strings.HasPrefix(strings.TrimSpace(cfg.Riva.HealthPath), "/") {
		return nil, fmt.Errorf("riva.health_path must start with '/'")
	}
	if strings.TrimSpace(cfg.ASR.LanguageCode) == "" {
		return nil, fmt.Errorf("asr.language_code must not be empty")
	}
	if cfg.ASR.NoSpeechTimeoutMS < 0 {
		return nil, fmt.Errorf("asr.no_speech_timeout_ms must be >= 0")
	}
	if cfg.Speech.SampleRateHz <= 0 {
		return nil, fmt.Errorf("speech.sample_rate_hz must be > 0")
	}
	if cfg.Speech.MaxSegmentChars <= 0 {
		return nil, fmt.Errorf("speech.max_segment_chars must be > 0")
	}
	if cfg.Speech.CharsPerSecond <= 0 {
		return nil, fmt.Errorf("speech.chars_per_second must be > 0")
	}
	if cfg.Speech.WatchdogMarginMS < 0 {
		return nil, fmt.Errorf("speech.watchdog_margin_ms must be >= 0")
	}
	if cfg.Speech.MaxSegmentChars < 40 {
		warnings = append(warnings, Warning{Message: fmt.Sprintf("speech.max_segment_chars=%d is very small; replies will be spoken in many short segments", cfg.Speech.MaxSegmentChars)})
	}
	if cfg.Session.SubmitDebounceMS < 0 {
		return nil, fmt.Errorf("session.submit_debounce_ms must be >= 0")
	}
	if cfg.Session.BusyRetryMS < 0 {
		return nil, fmt.Errorf("session.busy_retry_ms must be >= 0")
	}
	backend := strings.ToLower(strings.TrimSpace(cfg.Indicator.Backend))
	if backend != "hypr" && backend != "desktop" {
		return nil, fmt.Errorf("indicator.backend must be one of: hypr, desktop")
	}
	if backend == "desktop" && strings.TrimSpace(cfg.Indicator.DesktopAppName) == "" {
		return nil, fmt.Errorf("indicator.desktop_app_name must not be empty when indicator.backend=desktop")
	}
	if cfg.Indicator.ErrorTimeoutMS < 0 {
		return nil, fmt.Errorf("indicator.error_timeout_ms must be >= 0")
	}
	if cfg.Vocab.MaxPhrases <= 0 {
		return nil, fmt.Errorf("vocab.max_phrases must be > 0")
	}
	if len(cfg.Clipboard.Argv) == 0 {
		return nil, fmt.Errorf("clipboard_cmd must not be empty")
	}

	_, vocabWarnings, err := BuildSpeechPhrases(cfg)
	if err != nil {
		return nil, err
	}
	warnings = append(warnings, vocabWarnings...)

	return warnings, nil
}

func validateBaseURL(raw string) error {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return fmt.Errorf("backend.base_url must not be empty")
	}
	parsed, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("backend.base_url is invalid: %w", err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return fmt.Errorf("backend.base_url must use http or https")
	}
	if parsed.Host == "" {
		return fmt.Errorf("backend.base_url must include a host")
	}
	return nil
}

// BuildSpeechPhrases merges enabled vocab sets into deterministic ASR phrase payloads.
func BuildSpeechPhrases(cfg Config) ([]SpeechPhrase, []Warning, error) {
	enabledSets := cfg.Vocab.GlobalSets
	if len(enabledSets) == 0 {
		return nil, nil, nil
	}

	type candidate struct {
		boost float64
		from  string
	}

	warnings := make([]Warning, 0)
	selected := make(map[string]candidate)

	for _, name := range enabledSets {
		set, ok := cfg.Vocab.Sets[name]
		if !ok {
			return nil, nil, fmt.Errorf("vocab.global references unknown set %q", name)
		}
		for _, phrase := range set.Phrases {
			phrase = strings.TrimSpace(phrase)
			if phrase == "" {
				continue
			}
			if existing, exists := selected[phrase]; exists {
				if set.Boost > existing.boost {
					warnings = append(warnings, Warning{Message: fmt.Sprintf("phrase %q present in %q and %q; using higher boost %.2f", phrase, existing.from, name, set.Boost)})
					selected[phrase] = candidate{boost: set.Boost, from: name}
				}
				continue
			}
			selected[phrase] = candidate{boost: set.Boost, from: name}
		}
	}

	if len(selected) > cfg.Vocab.MaxPhrases {
		return nil, nil, fmt.Errorf("vocabulary phrase count %d exceeds vocab.max_phrases=%d", len(selected), cfg.Vocab.MaxPhrases)
	}

	phrases := make([]SpeechPhrase, 0, len(selected))
	for phrase, c := range selected {
		phrases = append(phrases, SpeechPhrase{Phrase: phrase, Boost: float32(c.boost)})
	}

	sort.Slice(phrases, func(i, j int) bool {
		if phrases[i].Phrase == phrases[j].Phrase {
			return phrases[i].Boost < phrases[j].Boost
		}
		return phrases[i].Phrase < phrases[j].Phrase
	})

	return phrases, warnings, nil
}

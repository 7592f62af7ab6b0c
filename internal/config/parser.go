package config

import (
	"encoding/json"
	"fmt"
	"strings"
)

type fileConfig struct {
	Backend   *fileBackend   `json:"backend"`
	Riva      *fileRiva      `json:"riva"`
	Audio     *fileAudio     `json:"audio"`
	ASR       *fileASR       `json:"asr"`
	Speech    *fileSpeech    `json:"speech"`
	Session   *fileSession   `json:"session"`
	History   *fileHistory   `json:"history"`
	Indicator *fileIndicator `json:"indicator"`

	ClipboardCmd *string    `json:"clipboard_cmd"`
	Vocab        *fileVocab `json:"vocab"`
	Debug        *fileDebug `json:"debug"`
}

type fileBackend struct {
	BaseURL   *string `json:"base_url"`
	TimeoutMS *int    `json:"timeout_ms"`
}

type fileRiva struct {
	GRPC       *string `json:"grpc"`
	HTTP       *string `json:"http"`
	HealthPath *string `json:"health_path"`
}

type fileAudio struct {
	Input    *string `json:"input"`
	Fallback *string `json:"fallback"`
}

type fileASR struct {
	AutomaticPunctuation *bool   `json:"automatic_punctuation"`
	LanguageCode         *string `json:"language_code"`
	Model                *string `json:"model"`
	Continuous           *bool   `json:"continuous"`
	NoSpeechTimeoutMS    *int    `json:"no_speech_timeout_ms"`
}

type fileSpeech struct {
	Enable           *bool    `json:"enable"`
	LanguageCode     *string  `json:"language_code"`
	Voice            *string  `json:"voice"`
	FallbackVoice    *string  `json:"fallback_voice"`
	SampleRateHz     *int     `json:"sample_rate_hz"`
	MaxSegmentChars  *int     `json:"max_segment_chars"`
	CharsPerSecond   *float64 `json:"chars_per_second"`
	WatchdogMarginMS *int     `json:"watchdog_margin_ms"`
}

type fileSession struct {
	SubmitDebounceMS *int  `json:"submit_debounce_ms"`
	BusyRetryMS      *int  `json:"busy_retry_ms"`
	ListenOnStart    *bool `json:"listen_on_start"`
}

type fileHistory struct {
	Path      *string `json:"path"`
	ExportDir *string `json:"export_dir"`
}

type fileIndicator struct {
	Enable         *bool   `json:"enable"`
	Backend        *string `json:"backend"`
	DesktopAppName *string `json:"desktop_app_name"`
	SoundEnable    *bool   `json:"sound_enable"`
	TextListening  *string `json:"text_listening"`
	TextProcessing *string `json:"text_processing"`
	TextError      *string `json:"text_error"`
	ErrorTimeoutMS *int    `json:"error_timeout_ms"`
}

type fileVocab struct {
	Global     *stringList             `json:"global"`
	MaxPhrases *int                    `json:"max_phrases"`
	Sets       map[string]fileVocabSet `json:"sets"`
}

type fileVocabSet struct {
	Boost   *float64 `json:"boost"`
	Phrases []string `json:"phrases"`
}

type fileDebug struct {
	AudioDump *bool `json:"audio_dump"`
	GRPCDump  *bool `json:"grpc_dump"`
}

// stringList accepts either a JSON array or a comma-delimited string.
type stringList []string

func (l *stringList) UnmarshalJSON(data []byte) error {
	var list []string
	if err := json.Unmarshal(data, &list); err == nil {
		*l = list
		return nil
	}

	var single string
	if err := json.Unmarshal(data, &single); err != nil {
		return fmt.Errorf("expected string array or comma-delimited string")
	}
	out := make([]string, 0)
	for _, part := range strings.Split(single, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	*l = out
	return nil
}

// Parse reads JSONC configuration content on top of base and validates the result.
func Parse(content string, base Config) (Config, []Warning, error) {
	cfg := base
	if strings.TrimSpace(content) != "" {
		normalized, err := normalizeJSONC(content)
		if err != nil {
			return Config{}, nil, err
		}

		decoder := json.NewDecoder(strings.NewReader(normalized))
		decoder.DisallowUnknownFields()

		var payload fileConfig
		if err := decoder.Decode(&payload); err != nil {
			return Config{}, nil, wrapJSONDecodeError(normalized, err)
		}
		if err := ensureSingleJSONValue(decoder); err != nil {
			return Config{}, nil, wrapJSONDecodeError(normalized, err)
		}
		if err := payload.applyTo(&cfg); err != nil {
			return Config{}, nil, err
		}
	}

	warnings, err := Validate(cfg)
	if err != nil {
		return Config{}, nil, err
	}
	return cfg, warnings, nil
}

func setString(dst *string, src *string) {
	if src != nil {
		*dst = strings.TrimSpace(*src)
	}
}

func setValue[T any](dst *T, src *T) {
	if src != nil {
		*dst = *src
	}
}

func (payload fileConfig) applyTo(cfg *Config) error {
	if b := payload.Backend; b != nil {
		if b.BaseURL != nil {
			cfg.Backend.BaseURL = strings.TrimRight(strings.TrimSpace(*b.BaseURL), "/")
		}
		setValue(&cfg.Backend.TimeoutMS, b.TimeoutMS)
	}

	if r := payload.Riva; r != nil {
		setString(&cfg.Riva.GRPC, r.GRPC)
		setString(&cfg.Riva.HTTP, r.HTTP)
		setString(&cfg.Riva.HealthPath, r.HealthPath)
	}

	if a := payload.Audio; a != nil {
		setString(&cfg.Audio.Input, a.Input)
		setString(&cfg.Audio.Fallback, a.Fallback)
	}

	if a := payload.ASR; a != nil {
		setValue(&cfg.ASR.AutomaticPunctuation, a.AutomaticPunctuation)
		setString(&cfg.ASR.LanguageCode, a.LanguageCode)
		setString(&cfg.ASR.Model, a.Model)
		setValue(&cfg.ASR.Continuous, a.Continuous)
		setValue(&cfg.ASR.NoSpeechTimeoutMS, a.NoSpeechTimeoutMS)
	}

	if s := payload.Speech; s != nil {
		setValue(&cfg.Speech.Enable, s.Enable)
		setString(&cfg.Speech.LanguageCode, s.LanguageCode)
		setString(&cfg.Speech.Voice, s.Voice)
		setString(&cfg.Speech.FallbackVoice, s.FallbackVoice)
		setValue(&cfg.Speech.SampleRateHz, s.SampleRateHz)
		setValue(&cfg.Speech.MaxSegmentChars, s.MaxSegmentChars)
		setValue(&cfg.Speech.CharsPerSecond, s.CharsPerSecond)
		setValue(&cfg.Speech.WatchdogMarginMS, s.WatchdogMarginMS)
	}

	if s := payload.Session; s != nil {
		setValue(&cfg.Session.SubmitDebounceMS, s.SubmitDebounceMS)
		setValue(&cfg.Session.BusyRetryMS, s.BusyRetryMS)
		setValue(&cfg.Session.ListenOnStart, s.ListenOnStart)
	}

	if h := payload.History; h != nil {
		setString(&cfg.History.Path, h.Path)
		setString(&cfg.History.ExportDir, h.ExportDir)
	}

	if i := payload.Indicator; i != nil {
		setValue(&cfg.Indicator.Enable, i.Enable)
		setString(&cfg.Indicator.Backend, i.Backend)
		setString(&cfg.Indicator.DesktopAppName, i.DesktopAppName)
		setValue(&cfg.Indicator.SoundEnable, i.SoundEnable)
		setString(&cfg.Indicator.TextListening, i.TextListening)
		setString(&cfg.Indicator.TextProcessing, i.TextProcessing)
		setString(&cfg.Indicator.TextError, i.TextError)
		setValue(&cfg.Indicator.ErrorTimeoutMS, i.ErrorTimeoutMS)
	}

	if payload.ClipboardCmd != nil {
		raw := *payload.ClipboardCmd
		argv, err := parseArgv(raw)
		if err != nil {
			return fmt.Errorf("invalid clipboard_cmd: %w", err)
		}
		cfg.Clipboard = CommandConfig{Raw: raw, Argv: argv}
	}

	if v := payload.Vocab; v != nil {
		if v.Global != nil {
			cfg.Vocab.GlobalSets = nil
			for _, name := range *v.Global {
				if name = strings.TrimSpace(name); name != "" {
					cfg.Vocab.GlobalSets = append(cfg.Vocab.GlobalSets, name)
				}
			}
		}
		setValue(&cfg.Vocab.MaxPhrases, v.MaxPhrases)
		if v.Sets != nil {
			sets := make(map[string]VocabSet, len(cfg.Vocab.Sets)+len(v.Sets))
			for name, set := range cfg.Vocab.Sets {
				sets[name] = set
			}
			for name, set := range v.Sets {
				trimmed := strings.TrimSpace(name)
				if trimmed == "" {
					return fmt.Errorf("vocab.sets contains an empty set name")
				}
				entry := VocabSet{Name: trimmed, Phrases: append([]string(nil), set.Phrases...)}
				setValue(&entry.Boost, set.Boost)
				sets[trimmed] = entry
			}
			cfg.Vocab.Sets = sets
		}
	}

	if d := payload.Debug; d != nil {
		setValue(&cfg.Debug.EnableAudioDump, d.AudioDump)
		setValue(&cfg.Debug.EnableGRPCDump, d.GRPCDump)
	}

	return nil
}

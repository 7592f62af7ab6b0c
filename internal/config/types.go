// Package config resolves, parses, validates, and defaults bob configuration.
package config

import "time"

// Config is the fully materialized runtime configuration used by bob.
type Config struct {
	Backend   BackendConfig
	Riva      RivaConfig
	Audio     AudioConfig
	ASR       ASRConfig
	Speech    SpeechConfig
	Session   SessionConfig
	History   HistoryConfig
	Indicator IndicatorConfig
	Clipboard CommandConfig
	Vocab     VocabConfig
	Debug     DebugConfig
}

// BackendConfig locates the chat/task/weather REST API.
type BackendConfig struct {
	BaseURL   string
	TimeoutMS int
}

// Timeout returns the per-request deadline for backend calls.
func (c BackendConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutMS) * time.Millisecond
}

// RivaConfig addresses the speech server used for recognition and synthesis.
type RivaConfig struct {
	GRPC       string
	HTTP       string
	HealthPath string
}

// AudioConfig controls preferred and fallback input-source selection.
type AudioConfig struct {
	Input    string
	Fallback string
}

// ASRConfig controls request-level hints passed to Riva and utterance framing.
type ASRConfig struct {
	AutomaticPunctuation bool
	LanguageCode         string
	Model                string
	Continuous           bool
	NoSpeechTimeoutMS    int
}

// NoSpeechTimeout is how long a session may run without any recognized text.
func (c ASRConfig) NoSpeechTimeout() time.Duration {
	return time.Duration(c.NoSpeechTimeoutMS) * time.Millisecond
}

// SpeechConfig controls synthesis, segmentation and playback pacing.
type SpeechConfig struct {
	Enable           bool
	LanguageCode     string
	Voice            string
	FallbackVoice    string
	SampleRateHz     int
	MaxSegmentChars  int
	CharsPerSecond   float64
	WatchdogMarginMS int
}

// WatchdogMargin is the slack added to every segment's estimated duration.
func (c SpeechConfig) WatchdogMargin() time.Duration {
	return time.Duration(c.WatchdogMarginMS) * time.Millisecond
}

// SessionConfig controls the voice loop timing.
type SessionConfig struct {
	SubmitDebounceMS int
	BusyRetryMS      int
	ListenOnStart    bool
}

// SubmitDebounce is the quiet period after listening ends before submitting.
func (c SessionConfig) SubmitDebounce() time.Duration {
	return time.Duration(c.SubmitDebounceMS) * time.Millisecond
}

// BusyRetry is the delay before restarting a recognizer that was still active.
func (c SessionConfig) BusyRetry() time.Duration {
	return time.Duration(c.BusyRetryMS) * time.Millisecond
}

// HistoryConfig locates the durable conversation log and its exports.
type HistoryConfig struct {
	Path      string
	ExportDir string
}

// IndicatorConfig controls visual indicator and audio cue behavior.
type IndicatorConfig struct {
	Enable         bool
	Backend        string
	DesktopAppName string
	SoundEnable    bool
	TextListening  string
	TextProcessing string
	TextError      string
	ErrorTimeoutMS int
}

// CommandConfig stores a raw command string and its parsed argv form.
type CommandConfig struct {
	Raw  string
	Argv []string
}

// VocabConfig controls enabled speech phrase sets and dedupe limits.
type VocabConfig struct {
	GlobalSets []string
	Sets       map[string]VocabSet
	MaxPhrases int
}

// VocabSet is one named phrase group with a shared boost value.
type VocabSet struct {
	Name    string
	Boost   float64
	Phrases []string
}

// DebugConfig controls optional debug artifact output.
type DebugConfig struct {
	EnableAudioDump bool
	EnableGRPCDump  bool
}

// Warning is a non-fatal parse/validation message.
type Warning struct {
	Line    int
	Message string
}

// SpeechPhrase is the normalized phrase payload sent to ASR adapters.
type SpeechPhrase struct {
	Phrase string
	Boost  float32
}

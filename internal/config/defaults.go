package config

// DefaultBaseURL is the local development address of the chat backend.
const DefaultBaseURL = "http://localhost:8000"

// Default returns the canonical runtime configuration used when no file is present.
func Default() Config {
	clipboard := "wl-copy --trim-newline"

	return Config{
		Backend: BackendConfig{
			BaseURL:   DefaultBaseURL,
			TimeoutMS: 30000,
		},
		Riva: RivaConfig{
			GRPC:       "127.0.0.1:50051",
			HTTP:       "127.0.0.1:9000",
			HealthPath: "/v1/health/ready",
		},
		Audio: AudioConfig{
			Input:    "default",
			Fallback: "default",
		},
		ASR: ASRConfig{
			AutomaticPunctuation: true,
			LanguageCode:         "en-US",
			NoSpeechTimeoutMS:    8000,
		},
		Speech: SpeechConfig{
			Enable:           true,
			SampleRateHz:     22050,
			MaxSegmentChars:  200,
			CharsPerSecond:   15,
			WatchdogMarginMS: 2000,
		},
		Session: SessionConfig{
			SubmitDebounceMS: 800,
			BusyRetryMS:      100,
			ListenOnStart:    true,
		},
		Indicator: IndicatorConfig{
			Enable:         true,
			Backend:        "hypr",
			DesktopAppName: "bob",
			SoundEnable:    true,
			ErrorTimeoutMS: 1600,
		},
		Clipboard: CommandConfig{Raw: clipboard, Argv: mustParseArgv(clipboard)},
		Vocab: VocabConfig{
			Sets:       map[string]VocabSet{},
			MaxPhrases: 1024,
		},
	}
}

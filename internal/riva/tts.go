package riva

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/samber/lo"
	"google.golang.org/grpc"
)

// DefaultSynthesisRateHz is the TTS output rate when none is configured.
const DefaultSynthesisRateHz = 22050

// SynthConfig addresses the synthesis service.
type SynthConfig struct {
	Endpoint     string
	LanguageCode string
	SampleRateHz int
	DialTimeout  time.Duration
}

// Voice is one speaker offered by the synthesis service.
type Voice struct {
	Name         string
	LanguageCode string
}

// Synthesizer issues unary Synthesize calls over one connection.
type Synthesizer struct {
	conn *grpc.ClientConn
	cfg  SynthConfig
}

// DialSynthesizer connects to the synthesis service.
func DialSynthesizer(ctx context.Context, cfg SynthConfig) (*Synthesizer, error) {
	if cfg.SampleRateHz <= 0 {
		cfg.SampleRateHz = DefaultSynthesisRateHz
	}
	if strings.TrimSpace(cfg.LanguageCode) == "" {
		cfg.LanguageCode = "en-US"
	}
	conn, err := dial(ctx, cfg.Endpoint, cfg.DialTimeout)
	if err != nil {
		return nil, err
	}
	return &Synthesizer{conn: conn, cfg: cfg}, nil
}

// SampleRateHz is the rate of audio returned by Synthesize.
func (s *Synthesizer) SampleRateHz() int {
	return s.cfg.SampleRateHz
}

// Synthesize renders text as mono 16-bit PCM. Empty voiceName or
// languageCode fall back to the server default and the configured language.
func (s *Synthesizer) Synthesize(ctx context.Context, text string, voiceName string, languageCode string) ([]int16, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, errors.New("synthesis text is empty")
	}
	if strings.TrimSpace(languageCode) == "" {
		languageCode = s.cfg.LanguageCode
	}

	req := newMessage(msgSynthesizeSpeechRequest)
	setString(req, "text", text)
	setString(req, "language_code", languageCode)
	setInt32(req, "encoding", encodingLinearPCM)
	setInt32(req, "sample_rate_hz", int32(s.cfg.SampleRateHz))
	if voiceName = strings.TrimSpace(voiceName); voiceName != "" {
		setString(req, "voice_name", voiceName)
	}

	resp := newMessage(msgSynthesizeSpeechResponse)
	if err := s.conn.Invoke(ctx, methodSynthesize, req, resp); err != nil {
		return nil, fmt.Errorf("riva synthesize: %w", err)
	}
	return decodePCM16(getBytes(resp, "audio")), nil
}

// Voices lists the speakers of every loaded synthesis model, sorted by name.
func (s *Synthesizer) Voices(ctx context.Context) ([]Voice, error) {
	req := newMessage(msgSynthesisConfigRequest)
	resp := newMessage(msgSynthesisConfigResponse)
	if err := s.conn.Invoke(ctx, methodSynthesisConfig, req, resp); err != nil {
		return nil, fmt.Errorf("riva synthesis config: %w", err)
	}

	var voices []Voice
	for _, model := range getList(resp, "model_config") {
		params := getStringMap(model, "parameters")
		voices = append(voices, modelVoices(params)...)
	}
	voices = lo.UniqBy(voices, func(v Voice) string { return v.Name })
	sort.Slice(voices, func(i, j int) bool { return voices[i].Name < voices[j].Name })
	return voices, nil
}

// Close releases the connection.
func (s *Synthesizer) Close() error {
	return s.conn.Close()
}

// modelVoices expands a model's voice_name and "name:id,..." subvoices into
// full voice names, for example English-US.Female-1.
func modelVoices(params map[string]string) []Voice {
	base := strings.TrimSpace(params["voice_name"])
	if base == "" {
		return nil
	}
	lang := strings.TrimSpace(params["language_code"])

	subvoices := lo.FilterMap(strings.Split(params["subvoices"], ","), func(raw string, _ int) (string, bool) {
		name, _, _ := strings.Cut(strings.TrimSpace(raw), ":")
		name = strings.TrimSpace(name)
		return name, name != ""
	})
	if len(subvoices) == 0 {
		return []Voice{{Name: base, LanguageCode: lang}}
	}
	return lo.Map(subvoices, func(sub string, _ int) Voice {
		return Voice{Name: base + "." + sub, LanguageCode: lang}
	})
}

func decodePCM16(raw []byte) []int16 {
	samples := make([]int16, len(raw)/2)
	for i := range samples {
		samples[i] = int16(binary.LittleEndian.Uint16(raw[i*2:]))
	}
	return samples
}

// Package speech turns reply text into paced, sequential synthesized audio.
package speech

import (
	"strings"
	"time"
	"unicode"
	"unicode/utf8"
)

const (
	// DefaultMaxSegmentChars bounds how much text is synthesized at once.
	DefaultMaxSegmentChars = 200
	// DefaultCharsPerSecond is the speaking rate assumed by the watchdog.
	DefaultCharsPerSecond = 15.0
	// DefaultWatchdogMargin is added to every segment's estimated duration.
	DefaultWatchdogMargin = 2 * time.Second
	// DefaultSynthesisTimeout bounds one segment's synthesis request.
	DefaultSynthesisTimeout = 10 * time.Second
)

// Segment is one unit of synthesis and playback.
type Segment struct {
	Index    int
	Text     string
	Estimate time.Duration
}

// Split breaks text into sentences on '.', '!' and '?' and packs them
// greedily into segments of at most maxChars characters. A sentence longer
// than maxChars becomes a segment of its own; nothing is truncated.
func Split(text string, maxChars int, charsPerSecond float64) []Segment {
	if maxChars <= 0 {
		maxChars = DefaultMaxSegmentChars
	}
	if charsPerSecond <= 0 {
		charsPerSecond = DefaultCharsPerSecond
	}

	var (
		segments []Segment
		current  strings.Builder
		size     int
	)
	flush := func() {
		if size == 0 {
			return
		}
		segments = append(segments, Segment{
			Index:    len(segments),
			Text:     current.String(),
			Estimate: EstimateDuration(size, charsPerSecond),
		})
		current.Reset()
		size = 0
	}

	for _, sentence := range Sentences(text) {
		n := utf8.RuneCountInString(sentence)
		if size > 0 && size+1+n > maxChars {
			flush()
		}
		if size > 0 {
			current.WriteByte(' ')
			size++
		}
		current.WriteString(sentence)
		size += n
	}
	flush()
	return segments
}

// Sentences splits text after runs of terminal punctuation ('.', '!', '?')
// that are followed by whitespace or the end of text. Closing quotes and
// brackets stay with their sentence. Results are trimmed and non-empty.
func Sentences(text string) []string {
	runes := []rune(text)
	var out []string
	start := 0

	for i := 0; i < len(runes); i++ {
		if !isTerminal(runes[i]) {
			continue
		}
		end := i + 1
		for end < len(runes) && isTerminal(runes[end]) {
			end++
		}
		for end < len(runes) && isCloser(runes[end]) {
			end++
		}
		if end < len(runes) && !unicode.IsSpace(runes[end]) {
			i = end - 1
			continue
		}
		if sentence := strings.TrimSpace(string(runes[start:end])); sentence != "" {
			out = append(out, sentence)
		}
		start = end
		i = end - 1
	}

	if tail := strings.TrimSpace(string(runes[start:])); tail != "" {
		out = append(out, tail)
	}
	return out
}

// EstimateDuration is the expected speaking time of chars characters.
func EstimateDuration(chars int, charsPerSecond float64) time.Duration {
	if chars <= 0 || charsPerSecond <= 0 {
		return 0
	}
	return time.Duration(float64(chars) / charsPerSecond * float64(time.Second))
}

func isTerminal(r rune) bool {
	return r == '.' || r == '!' || r == '?'
}

func isCloser(r rune) bool {
	switch r {
	case '"', '\'', ')', ']', '}', '”', '’', '»':
		return true
	default:
		return false
	}
}

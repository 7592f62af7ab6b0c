package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
)

// jsoncScanner tracks lexical context while rewriting JSONC into plain JSON.
type jsoncScanner struct {
	src []byte
	out []byte

	inString bool
	escaped  bool
}

// normalizeJSONC blanks comments and drops trailing commas. Comment bytes are
// replaced with spaces (newlines kept) so decoder offsets still map to the
// original line and column.
func normalizeJSONC(content string) (string, error) {
	s := &jsoncScanner{src: []byte(content), out: make([]byte, 0, len(content))}
	if err := s.stripComments(); err != nil {
		return "", err
	}
	return string(dropTrailingCommas(s.out)), nil
}

func (s *jsoncScanner) stripComments() error {
	for i := 0; i < len(s.src); i++ {
		ch := s.src[i]

		if s.inString {
			s.out = append(s.out, ch)
			switch {
			case s.escaped:
				s.escaped = false
			case ch == '\\':
				s.escaped = true
			case ch == '"':
				s.inString = false
			}
			continue
		}

		if ch == '"' {
			s.inString = true
			s.out = append(s.out, ch)
			continue
		}

		if ch != '/' || i+1 >= len(s.src) {
			s.out = append(s.out, ch)
			continue
		}

		switch s.src[i+1] {
		case '/':
			i = s.blankUntil(i, func(j int) bool { return s.src[j] == '\n' || s.src[j] == '\r' }, 0)
		case '*':
			end := s.blankUntil(i+2, func(j int) bool {
				return s.src[j] == '*' && j+1 < len(s.src) && s.src[j+1] == '/'
			}, 2)
			if end >= len(s.src) {
				return errors.New("unterminated block comment in JSONC")
			}
			i = end
		default:
			s.out = append(s.out, ch)
		}
	}
	return nil
}

// blankUntil writes blanks from start until stop(j) holds, then blanks the
// terminator's trailing width bytes. It returns the index of the last
// consumed byte.
func (s *jsoncScanner) blankUntil(start int, stop func(int) bool, width int) int {
	if width > 0 {
		s.out = append(s.out, ' ', ' ')
	}
	j := start
	for ; j < len(s.src) && !stop(j); j++ {
		switch s.src[j] {
		case '\n', '\r', '\t':
			s.out = append(s.out, s.src[j])
		default:
			s.out = append(s.out, ' ')
		}
	}
	if j >= len(s.src) {
		return len(s.src)
	}
	if width == 0 {
		// keep the newline that ended a line comment
		return j - 1
	}
	for k := 0; k < width; k++ {
		s.out = append(s.out, ' ')
	}
	return j + width - 1
}

func dropTrailingCommas(in []byte) []byte {
	out := make([]byte, 0, len(in))
	inString := false
	escaped := false

	for i := 0; i < len(in); i++ {
		ch := in[i]
		if inString {
			out = append(out, ch)
			switch {
			case escaped:
				escaped = false
			case ch == '\\':
				escaped = true
			case ch == '"':
				inString = false
			}
			continue
		}
		if ch == '"' {
			inString = true
		}
		if ch == ',' {
			j := i + 1
			for j < len(in) && isJSONWhitespace(in[j]) {
				j++
			}
			if j < len(in) && (in[j] == '}' || in[j] == ']') {
				out = append(out, ' ')
				continue
			}
		}
		out = append(out, ch)
	}
	return out
}

func isJSONWhitespace(ch byte) bool {
	return ch == ' ' || ch == '\n' || ch == '\r' || ch == '\t'
}

func ensureSingleJSONValue(decoder *json.Decoder) error {
	var extra struct{}
	err := decoder.Decode(&extra)
	if errors.Is(err, io.EOF) {
		return nil
	}
	if err == nil {
		return fmt.Errorf("multiple JSON values are not allowed")
	}
	return err
}

func wrapJSONDecodeError(content string, err error) error {
	var offset int64
	var syntaxErr *json.SyntaxError
	var typeErr *json.UnmarshalTypeError
	switch {
	case errors.As(err, &syntaxErr):
		offset = syntaxErr.Offset
	case errors.As(err, &typeErr):
		offset = typeErr.Offset
	default:
		return err
	}
	line, col := offsetToLineCol(content, offset)
	return fmt.Errorf("line %d column %d: %w", line, col, err)
}

func offsetToLineCol(content string, offset int64) (int, int) {
	if offset <= 0 {
		return 1, 1
	}

	limit := min(int(offset), len(content))
	line, col := 1, 1
	for i := 0; i < limit-1; i++ {
		if content[i] == '\n' {
			line++
			col = 1
			continue
		}
		col++
	}
	return line, col
}

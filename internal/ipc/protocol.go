// Package ipc carries newline-delimited JSON commands between the bob CLI
// and the process that owns the microphone and speaker. Every connection
// carries exactly one request line and one response line.
package ipc

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
)

// Commands understood by the owner runtime.
const (
	CommandStatus  = "status"
	CommandListen  = "listen"
	CommandStop    = "stop"
	CommandHush    = "hush"
	CommandSay     = "say"
	CommandHistory = "history"
	CommandReset   = "reset"
	CommandQuit    = "quit"
)

// MaxLineBytes bounds one request or response line. History responses are
// the largest payload.
const MaxLineBytes = 4 << 20

// ErrLineTooLong is returned when a peer sends more than MaxLineBytes
// without a newline.
var ErrLineTooLong = errors.New("ipc line exceeds size limit")

type Request struct {
	Command string `json:"command"`
	Text    string `json:"text,omitempty"`
}

type Response struct {
	OK         bool            `json:"ok"`
	State      string          `json:"state,omitempty"`
	Message    string          `json:"message,omitempty"`
	Error      string          `json:"error,omitempty"`
	Transcript string          `json:"transcript,omitempty"`
	Data       json.RawMessage `json:"data,omitempty"`
}

// Failure builds an error response.
func Failure(format string, args ...any) Response {
	return Response{OK: false, Error: fmt.Sprintf(format, args...)}
}

func writeLine(w io.Writer, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	_, err = w.Write(append(data, '\n'))
	return err
}

// readLine returns one newline-terminated line without the newline.
func readLine(r *bufio.Reader) ([]byte, error) {
	var line []byte
	for {
		chunk, err := r.ReadSlice('\n')
		if len(line)+len(chunk) > MaxLineBytes {
			return nil, ErrLineTooLong
		}
		line = append(line, chunk...)
		switch {
		case err == nil:
			return line[:len(line)-1], nil
		case errors.Is(err, bufio.ErrBufferFull):
			continue
		default:
			return nil, err
		}
	}
}

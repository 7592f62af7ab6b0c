package app

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/ItsAbhinavM/Bob/internal/voice"
	"github.com/mattn/go-isatty"
)

// console prints the conversation to stdout as it happens. On a terminal the
// live transcript is redrawn in place; elsewhere only settled lines are written.
type console struct {
	out  io.Writer
	live bool

	mu      sync.Mutex
	prev    voice.Snapshot
	printed string
	open    bool
}

func newConsole(out io.Writer) *console {
	return &console{out: out, live: isTerminal(out)}
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	fd := f.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

// Observe is a voice.Controller subscriber.
func (c *console) Observe(s voice.Snapshot) {
	c.mu.Lock()
	defer c.mu.Unlock()
	prev := c.prev
	c.prev = s

	text := strings.TrimSpace(s.Transcript.Text)
	if text == "" {
		c.printed = ""
	} else if text != strings.TrimSpace(prev.Transcript.Text) && text != c.printed {
		if c.live {
			fmt.Fprintf(c.out, "\r\033[Kyou: %s", text)
			c.open = true
		}
		if s.Transcript.Final {
			c.settle(text)
		}
	}
	if (prev.Listening || prev.Capturing) && !s.Listening && !s.Capturing && text != "" && text != c.printed {
		c.settle(text)
	}

	if s.Caption != "" && s.Caption != prev.Caption {
		c.closeLine()
		fmt.Fprintf(c.out, "bob: %s\n", s.Caption)
	}
	if s.Error != "" && s.Error != prev.Error {
		c.closeLine()
		fmt.Fprintf(c.out, "error: %s\n", s.Error)
	}
}

// settle ends the transcript line for text.
func (c *console) settle(text string) {
	if c.open {
		fmt.Fprintln(c.out)
		c.open = false
	} else {
		fmt.Fprintf(c.out, "you: %s\n", text)
	}
	c.printed = text
}

func (c *console) closeLine() {
	if c.open {
		fmt.Fprintln(c.out)
		c.open = false
	}
}

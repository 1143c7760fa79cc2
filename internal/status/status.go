// Package status publishes the queue's status text: to the terminal, to
// the log, and to websocket subscribers.
package status

import (
	"fmt"
	"io"
	"log/slog"
	"sync"

	"github.com/mattn/go-isatty"

	"github.com/tonimelisma/notesync/internal/queue"
)

// Line renders status text on a single terminal line. On a terminal each
// update overwrites the previous one; otherwise every distinct non-empty
// text is printed on its own line.
type Line struct {
	mu   sync.Mutex
	w    io.Writer
	tty  bool
	last string
}

// NewLine creates a Line writing to w.
func NewLine(w io.Writer) *Line {
	return &Line{w: w, tty: isTerminal(w)}
}

// SetStatus implements queue.StatusSink.
func (l *Line) SetStatus(text string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if text == l.last {
		return
	}

	l.last = text

	if l.tty {
		fmt.Fprint(l.w, "\r\033[K"+text)
		return
	}

	if text != "" {
		fmt.Fprintln(l.w, text)
	}
}

// isTerminal reports whether w is a terminal.
func isTerminal(w io.Writer) bool {
	f, ok := w.(interface{ Fd() uintptr })
	if !ok {
		return false
	}

	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

// Log records status changes at debug level.
type Log struct {
	logger *slog.Logger
}

// NewLog creates a Log.
func NewLog(logger *slog.Logger) *Log {
	return &Log{logger: logger}
}

// SetStatus implements queue.StatusSink.
func (l *Log) SetStatus(text string) {
	if text == "" {
		return
	}

	l.logger.Debug("status", slog.String("text", text))
}

// Multi fans status text out to several sinks. nil sinks are skipped.
func Multi(sinks ...queue.StatusSink) queue.StatusSink {
	var live []queue.StatusSink

	for _, s := range sinks {
		if s != nil {
			live = append(live, s)
		}
	}

	return queue.StatusFunc(func(text string) {
		for _, s := range live {
			s.SetStatus(text)
		}
	})
}

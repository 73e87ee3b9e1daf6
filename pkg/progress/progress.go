// Package progress reports per-entry progress of long-running hashing.
package progress

import (
	"fmt"
	"io"
	"strings"
	"sync"
)

// Callback receives progress updates during long operations.
type Callback func(op string, current, total int, message string)

// Noop is a no-op callback for default behavior.
func Noop(op string, current, total int, message string) {}

// Progress tracks operation progress. It is safe for concurrent use; callbacks
// are delivered one at a time with strictly increasing current values.
type Progress struct {
	Op    string
	Total int

	mu      sync.Mutex
	current int
	cb      Callback
}

// New creates a new Progress tracker.
func New(op string, total int, cb Callback) *Progress {
	if cb == nil {
		cb = Noop
	}
	return &Progress{Op: op, Total: total, cb: cb}
}

// Increment advances the progress and calls the callback.
func (p *Progress) Increment(message string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.current++
	p.cb(p.Op, p.current, p.Total, message)
}

// Done marks the operation as complete.
func (p *Progress) Done(message string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.current = p.Total
	p.cb(p.Op, p.current, p.Total, message)
}

// Current returns the current progress value.
func (p *Progress) Current() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.current
}

// Terminal draws a single-line progress bar.
type Terminal struct {
	mu          sync.Mutex
	writer      io.Writer
	lastLineLen int
	drawn       bool
}

// NewTerminal creates a progress bar writing to w, usually stderr.
func NewTerminal(w io.Writer) *Terminal {
	return &Terminal{writer: w}
}

// Callback returns a Callback that redraws the bar.
func (t *Terminal) Callback() Callback {
	return func(op string, current, total int, message string) {
		t.mu.Lock()
		defer t.mu.Unlock()
		t.render(op, current, total, message)
	}
}

func (t *Terminal) render(op string, current, total int, message string) {
	if total <= 0 {
		total = 1
	}
	percentage := float64(current) / float64(total) * 100

	barWidth := 30
	filled := barWidth * current / total
	if filled > barWidth {
		filled = barWidth
	}
	bar := strings.Repeat("=", filled) + strings.Repeat(" ", barWidth-filled)

	clear := "\r"
	if t.lastLineLen > 0 {
		clear = "\r" + strings.Repeat(" ", t.lastLineLen) + "\r"
	}

	line := fmt.Sprintf("%s [%s] %d/%d (%.0f%%)", op, bar, current, total, percentage)
	if message != "" {
		line += " " + message
	}
	fmt.Fprint(t.writer, clear+line)
	t.lastLineLen = len(line)
	t.drawn = true
}

// Finish ends the bar line. It does nothing if nothing was drawn.
func (t *Terminal) Finish() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.drawn {
		fmt.Fprintln(t.writer)
		t.drawn = false
		t.lastLineLen = 0
	}
}

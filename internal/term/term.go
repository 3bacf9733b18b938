// Package term adapts the local terminal into the renderer the session driver
// draws on: remote output goes to stdout, keystrokes are read from raw-mode
// stdin, and SIGWINCH supplies viewport-change events.
package term

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"go.uber.org/zap"
	"golang.org/x/sys/unix"
	"golang.org/x/term"

	"github.com/L1NNA/jupyter-http-terminal/internal/logger"
)

const (
	fallbackRows = 24
	fallbackCols = 80
)

// Terminal is the local display and input source for one attachment.
type Terminal struct {
	in  *os.File
	out *os.File
	log *logger.Logger

	oldState *term.State
}

// Open puts stdin into raw mode so every keystroke is delivered immediately
// and local echo is off; the remote PTY handles echo and line editing.
func Open(log *logger.Logger) (*Terminal, error) {
	if log == nil {
		log = logger.Nop()
	}
	t := &Terminal{in: os.Stdin, out: os.Stdout, log: log}

	if term.IsTerminal(int(t.in.Fd())) {
		state, err := term.MakeRaw(int(t.in.Fd()))
		if err != nil {
			return nil, fmt.Errorf("failed to enter raw mode: %w", err)
		}
		t.oldState = state
	}
	return t, nil
}

// Write appends remote output to the display.
func (t *Terminal) Write(p []byte) (int, error) {
	return t.out.Write(p)
}

// Size returns the current viewport dimensions, falling back to 24x80 when
// the output is not a terminal.
func (t *Terminal) Size() (rows, cols int) {
	cols, rows, err := term.GetSize(int(t.out.Fd()))
	if err != nil || rows <= 0 || cols <= 0 {
		return fallbackRows, fallbackCols
	}
	return rows, cols
}

// Restore puts the terminal back into its original mode. Safe to call more
// than once.
func (t *Terminal) Restore() error {
	if t.oldState == nil {
		return nil
	}
	state := t.oldState
	t.oldState = nil
	return term.Restore(int(t.in.Fd()), state)
}

// InputLoop reads keystroke data from stdin and hands each chunk to fn,
// preserving production order. It returns when the context is cancelled or
// stdin is closed.
func (t *Terminal) InputLoop(ctx context.Context, fn func(input string)) {
	buf := make([]byte, 1024)
	for {
		n, err := t.in.Read(buf)
		if n > 0 {
			select {
			case <-ctx.Done():
				return
			default:
			}
			fn(string(buf[:n]))
		}
		if err != nil {
			if ctx.Err() == nil {
				t.log.Debug("stdin closed", zap.Error(err))
			}
			return
		}
	}
}

// WatchResize delivers the new viewport dimensions to fn once per SIGWINCH
// until the context is cancelled.
func (t *Terminal) WatchResize(ctx context.Context, fn func(rows, cols int)) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, unix.SIGWINCH)
	defer signal.Stop(sigCh)

	for {
		select {
		case <-ctx.Done():
			return
		case <-sigCh:
			rows, cols := t.Size()
			fn(rows, cols)
		}
	}
}

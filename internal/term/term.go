// Package term implements the line-oriented terminal surface for quill: a
// buffered stdin reader and a role-coloured writer. It is deliberately dumb —
// an output sink accepting {role, text} pairs — so the agent loop stays
// testable without a TTY.
package term

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"sync"
)

// ANSI colour codes per role.
const (
	colorBlue   = "\033[94m"
	colorYellow = "\033[93m"
	colorGreen  = "\033[92m"
	colorRed    = "\033[91m"
	colorReset  = "\033[0m"
)

// readResult is one scanned line or the scanner's terminal error.
type readResult struct {
	line string
	err  error
}

// Terminal reads user lines from an input stream and renders role-tagged
// output. It satisfies the agent loop's UI contract.
type Terminal struct {
	in      *bufio.Scanner
	out     io.Writer
	colored bool

	readOnce sync.Once
	reads    chan readResult
}

// Option is a functional option for Terminal.
type Option func(*Terminal)

// WithColor forces coloured output on or off, overriding auto-detection.
func WithColor(on bool) Option {
	return func(t *Terminal) { t.colored = on }
}

// New constructs a Terminal over in and out. Colour is enabled when out is
// os.Stdout on a character device and NO_COLOR is unset.
func New(in io.Reader, out io.Writer, opts ...Option) *Terminal {
	t := &Terminal{
		in:      bufio.NewScanner(in),
		out:     out,
		colored: detectColor(out),
		reads:   make(chan readResult),
	}
	// Allow long pasted inputs well beyond the scanner default.
	t.in.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for _, o := range opts {
		o(t)
	}
	return t
}

// detectColor reports whether out looks like an interactive colour terminal.
func detectColor(out io.Writer) bool {
	if os.Getenv("NO_COLOR") != "" {
		return false
	}
	f, ok := out.(*os.File)
	if !ok {
		return false
	}
	info, err := f.Stat()
	if err != nil {
		return false
	}
	return info.Mode()&os.ModeCharDevice != 0
}

// startReader scans lines on a dedicated goroutine so ReadLine can select
// against context cancellation. The goroutine ends when the input stream does;
// if ReadLine bails out on cancellation first, the goroutine stays blocked on
// its final read until the process exits.
func (t *Terminal) startReader() {
	go func() {
		defer close(t.reads)
		for t.in.Scan() {
			t.reads <- readResult{line: t.in.Text()}
		}
		if err := t.in.Err(); err != nil {
			t.reads <- readResult{err: err}
		}
	}()
}

// ReadLine prints the user prompt and blocks for the next input line.
// ok is false on end-of-input, on a read error (which is reported to the
// user), or when ctx is cancelled mid-read — so an interrupt at the prompt
// ends the session instead of waiting for one more keystroke.
func (t *Terminal) ReadLine(ctx context.Context) (string, bool) {
	t.readOnce.Do(t.startReader)

	fmt.Fprintf(t.out, "%s: ", t.paint("You", colorBlue))
	select {
	case <-ctx.Done():
		fmt.Fprintln(t.out)
		return "", false
	case r, open := <-t.reads:
		if !open {
			fmt.Fprintln(t.out)
			return "", false
		}
		if r.err != nil {
			fmt.Fprintln(t.out)
			t.Say("error", fmt.Sprintf("read input: %v", r.err))
			return "", false
		}
		return r.line, true
	}
}

// Say renders one role-tagged line. Recognised roles get their own colour;
// anything else is printed with an uncoloured prefix.
func (t *Terminal) Say(role, text string) {
	switch role {
	case "assistant":
		fmt.Fprintf(t.out, "%s: %s\n", t.paint("Assistant", colorYellow), text)
	case "tool":
		fmt.Fprintf(t.out, "%s: %s\n", t.paint("tool", colorGreen), text)
	case "error":
		fmt.Fprintf(t.out, "%s: %s\n", t.paint("error", colorRed), text)
	default:
		fmt.Fprintf(t.out, "%s: %s\n", role, text)
	}
}

// Bannerf writes an uncoloured formatted line outside the role system, for
// greetings and shutdown notices.
func (t *Terminal) Bannerf(format string, args ...any) {
	fmt.Fprintf(t.out, format+"\n", args...)
}

// paint wraps s in the given colour code when colour is enabled.
func (t *Terminal) paint(s, color string) string {
	if !t.colored {
		return s
	}
	return color + s + colorReset
}

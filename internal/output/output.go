// Package output formats human-facing CLI messages. Structured logs go
// through slog; this package is only for what the user reads on stdout.
package output

import (
	"fmt"
	"io"
)

const (
	iconSuccess = "✅"
	iconWarning = "⚠️ "
	iconError   = "❌"
)

// Writer prints formatted status lines to a single destination.
// Write errors are ignored; console output must never fail a command.
type Writer struct {
	out io.Writer
}

// New creates a Writer targeting out.
func New(out io.Writer) *Writer {
	return &Writer{out: out}
}

// Status prints a message prefixed by an icon, or indented when the
// icon is empty.
func (w *Writer) Status(icon, msg string) {
	if icon == "" {
		_, _ = fmt.Fprintf(w.out, "   %s\n", msg)
		return
	}
	_, _ = fmt.Fprintf(w.out, "%s %s\n", icon, msg)
}

// Statusf is Status with formatting.
func (w *Writer) Statusf(icon, format string, args ...any) {
	w.Status(icon, fmt.Sprintf(format, args...))
}

// Success prints a success line.
func (w *Writer) Success(msg string) {
	w.Status(iconSuccess, msg)
}

// Successf is Success with formatting.
func (w *Writer) Successf(format string, args ...any) {
	w.Success(fmt.Sprintf(format, args...))
}

// Warning prints a warning line.
func (w *Writer) Warning(msg string) {
	w.Status(iconWarning, msg)
}

// Warningf is Warning with formatting.
func (w *Writer) Warningf(format string, args ...any) {
	w.Warning(fmt.Sprintf(format, args...))
}

// Error prints an error line.
func (w *Writer) Error(msg string) {
	w.Status(iconError, msg)
}

// Newline prints an empty line.
func (w *Writer) Newline() {
	_, _ = fmt.Fprintln(w.out)
}

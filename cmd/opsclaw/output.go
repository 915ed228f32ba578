package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"golang.org/x/term"
)

const (
	colorReset  = "\033[0m"
	colorRed    = "\033[31m"
	colorGreen  = "\033[32m"
	colorYellow = "\033[33m"
	colorBlue   = "\033[34m"
)

// colorize wraps s in an ANSI color when w is a terminal.
func colorize(w io.Writer, color, s string) string {
	f, ok := w.(*os.File)
	if !ok || !term.IsTerminal(int(f.Fd())) || os.Getenv("NO_COLOR") != "" {
		return s
	}
	return color + s + colorReset
}

func success(w io.Writer, format string, args ...any) {
	fmt.Fprintln(w, colorize(w, colorGreen, "✓ "+fmt.Sprintf(format, args...)))
}

func fail(w io.Writer, format string, args ...any) {
	fmt.Fprintln(w, colorize(w, colorRed, "✗ "+fmt.Sprintf(format, args...)))
}

func warn(w io.Writer, format string, args ...any) {
	fmt.Fprintln(w, colorize(w, colorYellow, "⚠ "+fmt.Sprintf(format, args...)))
}

func info(w io.Writer, format string, args ...any) {
	fmt.Fprintln(w, colorize(w, colorBlue, "→ "+fmt.Sprintf(format, args...)))
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

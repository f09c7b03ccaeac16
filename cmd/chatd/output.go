package main

import (
	"fmt"
	"os"
)

const (
	colorReset  = "\033[0m"
	colorRed    = "\033[31m"
	colorGreen  = "\033[32m"
	colorYellow = "\033[33m"
	colorCyan   = "\033[36m"
	colorBold   = "\033[1m"
)

func colorize(color, text string) string {
	if noColor {
		return text
	}
	return color + text + colorReset
}

// emit prints a glyph-prefixed status line to stderr, keeping stdout clean
// for command output that may be piped.
func emit(color, glyph, format string, args ...any) {
	msg := glyph + " " + fmt.Sprintf(format, args...)
	fmt.Fprintln(os.Stderr, colorize(color, msg))
}

func printSuccess(format string, args ...any) { emit(colorGreen, "✓", format, args...) }

func printError(format string, args ...any) { emit(colorRed, "✗", format, args...) }

func printWarning(format string, args ...any) { emit(colorYellow, "⚠", format, args...) }

func printStatus(label string, format string, args ...any) {
	val := fmt.Sprintf(format, args...)
	fmt.Fprintf(os.Stderr, "  %s %s\n", colorize(colorBold, label+":"), val)
}

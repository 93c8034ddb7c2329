package main

import (
	"fmt"
	"os"
)

const (
	ansiReset  = "\033[0m"
	ansiRed    = "\033[31m"
	ansiGreen  = "\033[32m"
	ansiYellow = "\033[33m"
	ansiCyan   = "\033[36m"
	ansiBold   = "\033[1m"
)

// paint wraps s in an ANSI code unless --no-color is set.
func paint(code, s string) string {
	if noColor {
		return s
	}
	return code + s + ansiReset
}

// Notices go to stderr so they never mix with piped report output.

func successf(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "%s %s\n", paint(ansiGreen, "ok:"), fmt.Sprintf(format, args...))
}

func failf(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "%s %s\n", paint(ansiRed, "error:"), fmt.Sprintf(format, args...))
}

func warnf(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "%s %s\n", paint(ansiYellow, "warning:"), fmt.Sprintf(format, args...))
}

func stepf(format string, args ...any) {
	fmt.Fprintln(os.Stderr, paint(ansiCyan, fmt.Sprintf(format, args...)))
}

// reportLine renders one aligned row of the ingest and store reports.
func reportLine(label string, format string, args ...any) {
	fmt.Fprintf(os.Stderr, "  %s %s\n",
		paint(ansiBold, fmt.Sprintf("%-15s", label+":")),
		fmt.Sprintf(format, args...))
}

package main

import (
	"fmt"
	"io"
	"os"
	"strings"
	"unicode/utf8"

	"github.com/aupadhyay/thoughts/internal/thoughts"
)

const (
	colorReset  = "\033[0m"
	colorRed    = "\033[31m"
	colorGreen  = "\033[32m"
	colorYellow = "\033[33m"
	colorCyan   = "\033[36m"
	colorDim    = "\033[2m"
	colorBold   = "\033[1m"
)

func colorize(color, text string) string {
	if noColor {
		return text
	}
	return color + text + colorReset
}

func printSuccess(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	fmt.Fprintln(os.Stderr, colorize(colorGreen, "✓ "+msg))
}

func printError(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	fmt.Fprintln(os.Stderr, colorize(colorRed, "✗ "+msg))
}

func printWarning(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	fmt.Fprintln(os.Stderr, colorize(colorYellow, "⚠ "+msg))
}

func printStatus(label string, format string, args ...any) {
	val := fmt.Sprintf(format, args...)
	l := colorize(colorBold, label+":")
	fmt.Fprintf(os.Stderr, "  %s %s\n", l, val)
}

func printStep(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	fmt.Fprintln(os.Stderr, colorize(colorCyan, "→ "+msg))
}

const listPreviewRunes = 120

// printThoughts writes one line per thought: id, local time and a
// single-line preview of the content.
func printThoughts(w io.Writer, list []thoughts.Thought) {
	for _, t := range list {
		preview := strings.Join(strings.Fields(t.Content), " ")
		if utf8.RuneCountInString(preview) > listPreviewRunes {
			preview = string([]rune(preview)[:listPreviewRunes]) + "..."
		}
		fmt.Fprintf(w, "%s  %s  %s\n",
			colorize(colorCyan, fmt.Sprintf("%6s", t.ID)),
			colorize(colorDim, t.CreatedAt.Local().Format("2006-01-02 15:04")),
			preview,
		)
	}
}

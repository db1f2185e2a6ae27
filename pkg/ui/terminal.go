// Package ui prints the command line output of docharvest
package ui

import (
	"fmt"
	"io"
	"os"
	"strings"
)

// Banner is printed before a harvest starts
const Banner = `
    ┌──────────────────────────────────────────────┐
    │  docharvest · listing crawler and downloader │
    └──────────────────────────────────────────────┘
`

var (
	out     io.Writer = os.Stdout
	colored           = true
)

// Color functions for terminal output
var (
	Cyan    = colorize("\033[36m%s\033[0m")
	Yellow  = colorize("\033[33m%s\033[0m")
	Red     = colorize("\033[31m%s\033[0m")
	Green   = colorize("\033[32m%s\033[0m")
	Magenta = colorize("\033[35m%s\033[0m")
	Dim     = colorize("\033[2m%s\033[0m")
)

func colorize(format string) func(string) string {
	return func(text string) string {
		if !colored {
			return text
		}
		return fmt.Sprintf(format, text)
	}
}

// SetOutput redirects all printing, returning the previous writer
func SetOutput(w io.Writer) io.Writer {
	prev := out
	out = w
	return prev
}

// SetColor toggles ANSI colors
func SetColor(enabled bool) {
	colored = enabled
}

// PrintBanner prints the banner
func PrintBanner() {
	fmt.Fprint(out, Cyan(Banner))
}

// PrintError prints an error message in red
func PrintError(msg string, args ...interface{}) {
	if len(args) > 0 {
		msg += ": " + fmt.Sprintf("%v", args[0])
	}
	fmt.Fprintln(out, Red(msg))
}

// PrintSuccess prints a success message in green
func PrintSuccess(msg string) {
	fmt.Fprintln(out, Green(msg))
}

// PrintInfo prints a label and value
func PrintInfo(label string, value interface{}) {
	fmt.Fprintf(out, "%s: %s\n", Cyan(label), Yellow(fmt.Sprintf("%v", value)))
}

// PrintWarning prints a warning message in yellow
func PrintWarning(msg string, args ...interface{}) {
	if len(args) > 0 {
		msg += ": " + fmt.Sprintf("%v", args[0])
	}
	fmt.Fprintln(out, Yellow(msg))
}

// PrintHighlight prints a highlighted message in magenta
func PrintHighlight(msg string) {
	fmt.Fprintln(out, Magenta(msg))
}

// PrintList prints one item per line, indented
func PrintList(items []string) {
	for _, item := range items {
		fmt.Fprintln(out, "  - "+item)
	}
}

// PrintLines prints items verbatim, one per line
func PrintLines(items []string) {
	if len(items) == 0 {
		return
	}
	fmt.Fprintln(out, strings.Join(items, "\n"))
}

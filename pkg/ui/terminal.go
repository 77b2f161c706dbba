package ui

import (
	"fmt"
	"io"
	"os"
)

// Output receives everything the print helpers write
var Output io.Writer = os.Stdout

const asciiLogo = `
  ╔════════════════════════════════════════════╗
  ║  ████████╗ ██████╗ ██████╗ ███████╗██╗   ██╗║
  ║  ╚══██╔══╝██╔════╝██╔════╝ ██╔════╝╚██╗ ██╔╝║
  ║     ██║   ██║     ██║  ███╗███████╗ ╚████╔╝ ║
  ║     ██║   ██║     ██║   ██║╚════██║  ╚██╔╝  ║
  ║     ██║   ╚██████╗╚██████╔╝███████║   ██║   ║
  ║     ╚═╝    ╚═════╝ ╚═════╝ ╚══════╝   ╚═╝   ║
  ║        seller order extraction & sync       ║
  ╚════════════════════════════════════════════╝
`

var colorEnabled = true

// SetColor turns ANSI colors on or off for all helpers
func SetColor(enabled bool) {
	colorEnabled = enabled
}

var (
	Cyan    = colorize("\033[36m%s\033[0m")
	Yellow  = colorize("\033[33m%s\033[0m")
	Red     = colorize("\033[31m%s\033[0m")
	Green   = colorize("\033[32m%s\033[0m")
	Magenta = colorize("\033[35m%s\033[0m")
	Dim     = colorize("\033[2m%s\033[0m")
)

func colorize(colorString string) func(string) string {
	return func(text string) string {
		if !colorEnabled {
			return text
		}
		return fmt.Sprintf(colorString, text)
	}
}

func PrintLogo() {
	fmt.Fprint(Output, Cyan(asciiLogo))
}

// PrintError prints msg in red, followed by the first arg if given
func PrintError(msg string, args ...interface{}) {
	if len(args) > 0 {
		fmt.Fprintln(Output, Red(msg+": "+fmt.Sprintf("%v", args[0])))
	} else {
		fmt.Fprintln(Output, Red(msg))
	}
}

func PrintSuccess(msg string) {
	fmt.Fprintln(Output, Green(msg))
}

// PrintInfo prints a "label: value" line
func PrintInfo(label string, value string) {
	fmt.Fprintf(Output, "%s: %s\n", Cyan(label), Yellow(value))
}

func PrintWarning(msg string, args ...interface{}) {
	if len(args) > 0 {
		fmt.Fprintln(Output, Yellow(msg+": "+fmt.Sprintf("%v", args[0])))
	} else {
		fmt.Fprintln(Output, Yellow(msg))
	}
}

func PrintHighlight(msg string) {
	fmt.Fprintln(Output, Magenta(msg))
}

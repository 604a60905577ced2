package ui

import (
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/charmbracelet/lipgloss"
)

// Banner is printed at the top of interactive commands
const Banner = `
  ┌─┐┬┌┬┐┌─┐┌┬┐┌─┐┌─┐┌─┐┌─┐┌┐┌
  └─┐│ │ ├┤ │││├─┤├─┘│ ┬├┤ │││
  └─┘┴ ┴ └─┘┴ ┴┴ ┴┴  └─┘└─┘┘└┘
`

var (
	cyan    = lipgloss.Color("#00FFFF")
	magenta = lipgloss.Color("#FF00FF")
	green   = lipgloss.Color("#39FF14")
	yellow  = lipgloss.Color("#FFFF00")
	red     = lipgloss.Color("#FF3333")
	dim     = lipgloss.Color("#B0B0B0")

	bannerStyle    = lipgloss.NewStyle().Foreground(cyan).Bold(true)
	labelStyle     = lipgloss.NewStyle().Foreground(cyan)
	valueStyle     = lipgloss.NewStyle().Foreground(yellow)
	errorStyle     = lipgloss.NewStyle().Foreground(red).Bold(true)
	successStyle   = lipgloss.NewStyle().Foreground(green).Bold(true)
	warningStyle   = lipgloss.NewStyle().Foreground(yellow)
	highlightStyle = lipgloss.NewStyle().Foreground(magenta).Bold(true)
	dimStyle       = lipgloss.NewStyle().Foreground(dim)
)

var (
	mu     sync.Mutex
	output io.Writer = os.Stdout
	quiet  bool
)

// SetOutput redirects all terminal output to w
func SetOutput(w io.Writer) {
	mu.Lock()
	defer mu.Unlock()
	output = w
}

// SetQuietMode suppresses everything except errors
func SetQuietMode(q bool) {
	mu.Lock()
	defer mu.Unlock()
	quiet = q
}

// IsQuiet reports whether quiet mode is on
func IsQuiet() bool {
	mu.Lock()
	defer mu.Unlock()
	return quiet
}

func write(always bool, format string, args ...interface{}) {
	mu.Lock()
	defer mu.Unlock()
	if quiet && !always {
		return
	}
	fmt.Fprintf(output, format, args...)
}

// PrintBanner prints the banner
func PrintBanner() {
	write(false, "%s\n", bannerStyle.Render(Banner))
}

// PrintError prints an error message, with an optional detail
func PrintError(msg string, args ...interface{}) {
	if len(args) > 0 && fmt.Sprint(args[0]) != "" {
		msg = msg + ": " + fmt.Sprint(args[0])
	}
	write(true, "%s\n", errorStyle.Render(msg))
}

// PrintSuccess prints a success message
func PrintSuccess(msg string) {
	write(false, "%s\n", successStyle.Render(msg))
}

// PrintInfo prints a label and its value
func PrintInfo(label string, value string) {
	write(false, "%s: %s\n", labelStyle.Render(label), valueStyle.Render(value))
}

// PrintWarning prints a warning message, with an optional detail
func PrintWarning(msg string, args ...interface{}) {
	if len(args) > 0 && fmt.Sprint(args[0]) != "" {
		msg = msg + ": " + fmt.Sprint(args[0])
	}
	write(false, "%s\n", warningStyle.Render(msg))
}

// PrintHighlight prints a highlighted heading
func PrintHighlight(msg string) {
	write(false, "%s\n", highlightStyle.Render(msg))
}

// PrintList prints items as an indented bullet list
func PrintList(items []string) {
	for _, item := range items {
		write(false, "  %s %s\n", dimStyle.Render("•"), item)
	}
}

// Println prints a plain line
func Println(args ...interface{}) {
	write(false, "%s\n", fmt.Sprint(args...))
}

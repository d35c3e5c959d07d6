package renders

import (
	"os"

	markdown "github.com/MichaelMure/go-term-markdown"
	"golang.org/x/term"
)

const (
	defaultWidth = 100
	leftPad      = 2
)

// RenderMarkdown renders markdown for a terminal, wrapping at the terminal width.
func RenderMarkdown(content string) string {
	return string(markdown.Render(content, width(), leftPad))
}

// IsTerminal reports whether stdout is a terminal.
func IsTerminal() bool {
	return term.IsTerminal(int(os.Stdout.Fd()))
}

func width() int {
	if !IsTerminal() {
		return defaultWidth
	}
	w, _, err := term.GetSize(int(os.Stdout.Fd()))
	if err != nil || w <= leftPad {
		return defaultWidth
	}
	return w
}

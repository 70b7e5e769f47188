package cli

import (
	"io"
	"os"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-isatty"
)

var (
	colorAccent = lipgloss.Color("69")
	colorMuted  = lipgloss.Color("241")

	titleStyle = lipgloss.NewStyle().Bold(true).Foreground(colorAccent)
	mutedStyle = lipgloss.NewStyle().Foreground(colorMuted)
	boldStyle  = lipgloss.NewStyle().Bold(true)
)

// styler renders through lipgloss only when w is a color-capable terminal.
type styler struct {
	color bool
}

func newStyler(w io.Writer) styler {
	return styler{color: useColor(w)}
}

func (s styler) title(text string) string { return s.render(titleStyle, text) }
func (s styler) muted(text string) string { return s.render(mutedStyle, text) }
func (s styler) bold(text string) string  { return s.render(boldStyle, text) }

func (s styler) render(style lipgloss.Style, text string) string {
	if !s.color {
		return text
	}
	return style.Render(text)
}

func useColor(w io.Writer) bool {
	if os.Getenv("NO_COLOR") != "" {
		return false
	}
	if os.Getenv("TERM") == "dumb" {
		return false
	}
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd())
}

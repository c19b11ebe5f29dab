// Package terminal renders chat lines for a text terminal. It stands in for a
// graphical chat log: broadcast markup is reduced to plain text and, when the
// output is a terminal, colored with the sender's assigned color.
package terminal

import (
	"fmt"
	"html"
	"io"
	"os"
	"regexp"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-colorable"
	"github.com/mattn/go-isatty"
	"github.com/microcosm-cc/bluemonday"
)

var fontColor = regexp.MustCompile(`^<font color=(#[0-9A-Fa-f]{6})>`)

// Sink implements client.Sink.
type Sink struct {
	out    io.Writer
	color  bool
	policy *bluemonday.Policy
}

func New(out io.Writer, color bool) *Sink {
	return &Sink{out: out, color: color, policy: bluemonday.StrictPolicy()}
}

// NewStdout writes to stdout, coloring only when stdout is a terminal.
func NewStdout() *Sink {
	tty := isatty.IsTerminal(os.Stdout.Fd()) || isatty.IsCygwinTerminal(os.Stdout.Fd())
	return New(colorable.NewColorable(os.Stdout), tty)
}

func (s *Sink) OnChatLine(text string) {
	fmt.Fprintln(s.out, s.Render(text))
}

// Render reduces one chat line to display text.
func (s *Sink) Render(text string) string {
	plain := html.UnescapeString(s.policy.Sanitize(text))
	if !s.color {
		return plain
	}
	m := fontColor.FindStringSubmatch(text)
	if m == nil {
		return plain
	}
	return lipgloss.NewStyle().Foreground(lipgloss.Color(m[1])).Render(plain)
}

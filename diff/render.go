package diff

import (
	"io"
	"iter"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
)

const (
	DefaultHead = 3
	DefaultTail = 4
)

// Renderer writes diff chunks to a terminal. Added lines are green and
// removed lines red; when the writer has no color support they are prefixed
// with "+" and "-" instead.
//
// Unchanged chunks longer than Head+Tail-1 lines are elided: the first Head
// lines, a "..." marker indented like the next line, and the last Tail lines.
type Renderer struct {
	Head int
	Tail int

	w       io.Writer
	markers bool
	added   lipgloss.Style
	removed lipgloss.Style
	header  lipgloss.Style
}

// NewRenderer returns a Renderer for w. Color is detected from w unless
// color is false.
func NewRenderer(w io.Writer, color bool) *Renderer {
	lr := lipgloss.NewRenderer(w)
	if !color {
		lr.SetColorProfile(termenv.Ascii)
	}
	return &Renderer{
		Head:    DefaultHead,
		Tail:    DefaultTail,
		w:       w,
		markers: lr.ColorProfile() == termenv.Ascii,
		added:   lr.NewStyle().Foreground(lipgloss.Color("2")).TabWidth(lipgloss.NoTabConversion),
		removed: lr.NewStyle().Foreground(lipgloss.Color("1")).TabWidth(lipgloss.NoTabConversion),
		header:  lr.NewStyle().Bold(true),
	}
}

// Header writes a blank-line separated title, e.g. the path a change came from.
func (r *Renderer) Header(title string) error {
	_, err := io.WriteString(r.w, "\n\n"+r.header.Render(title)+"\n")
	return err
}

// Render writes every chunk of seq.
func (r *Renderer) Render(seq iter.Seq[Chunk]) error {
	for c := range seq {
		if err := r.RenderChunk(c); err != nil {
			return err
		}
	}
	return nil
}

// RenderChunk writes a single chunk.
func (r *Renderer) RenderChunk(c Chunk) error {
	if c.Text == "" {
		return nil
	}
	terminated := strings.HasSuffix(c.Text, "\n")
	lines := strings.Split(strings.TrimSuffix(c.Text, "\n"), "\n")

	switch c.Kind {
	case Added:
		lines = r.paint(lines, r.added, "+")
	case Removed:
		lines = r.paint(lines, r.removed, "-")
	default:
		lines = r.elide(lines)
	}

	out := strings.Join(lines, "\n")
	if terminated {
		out += "\n"
	}
	_, err := io.WriteString(r.w, out)
	return err
}

func (r *Renderer) paint(lines []string, style lipgloss.Style, marker string) []string {
	out := make([]string, len(lines))
	for i, line := range lines {
		if r.markers {
			line = marker + line
		}
		// Styled per line so lipgloss does not pad lines to a common width.
		out[i] = style.Render(line)
	}
	return out
}

func (r *Renderer) elide(lines []string) []string {
	head, tail := r.Head, r.Tail
	if head <= 0 {
		head = DefaultHead
	}
	if tail <= 0 {
		tail = DefaultTail
	}
	if len(lines) <= head+tail-1 {
		return lines
	}

	out := make([]string, 0, head+1+tail)
	out = append(out, lines[:head]...)
	out = append(out, leadingSpace(lines[head])+"...")
	return append(out, lines[len(lines)-tail:]...)
}

func leadingSpace(line string) string {
	return line[:len(line)-len(strings.TrimLeft(line, " \t"))]
}

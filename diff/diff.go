// Package diff computes line-level differences between two file contents and
// renders them for the terminal.
package diff

import (
	"iter"
	"strings"

	"github.com/sergi/go-diff/diffmatchpatch"
)

// Kind classifies a chunk of a line diff.
type Kind int

const (
	Unchanged Kind = iota
	Added
	Removed
)

func (k Kind) String() string {
	switch k {
	case Unchanged:
		return "unchanged"
	case Added:
		return "added"
	case Removed:
		return "removed"
	default:
		return "unknown"
	}
}

// MarshalText encodes the kind by name.
func (k Kind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// Chunk is a run of whole lines sharing the same classification. Text keeps
// the original line terminators.
type Chunk struct {
	Kind Kind   `json:"kind"`
	Text string `json:"text"`
}

// LineCount returns the number of lines in the chunk. A trailing line without
// terminator counts as a line.
func (c Chunk) LineCount() int {
	if c.Text == "" {
		return 0
	}
	n := strings.Count(c.Text, "\n")
	if !strings.HasSuffix(c.Text, "\n") {
		n++
	}
	return n
}

// Lines diffs oldContent against newContent line by line. The diff is
// computed when the sequence is first ranged over.
func Lines(oldContent, newContent string) iter.Seq[Chunk] {
	return func(yield func(Chunk) bool) {
		var enc lineEncoder
		a := enc.encode(oldContent)
		b := enc.encode(newContent)
		diffs := diffmatchpatch.New().DiffMainRunes(a, b, false)

		for _, d := range diffs {
			text := enc.decode(d.Text)
			if text == "" {
				continue
			}
			var kind Kind
			switch d.Type {
			case diffmatchpatch.DiffInsert:
				kind = Added
			case diffmatchpatch.DiffDelete:
				kind = Removed
			default:
				kind = Unchanged
			}
			if !yield(Chunk{Kind: kind, Text: text}) {
				return
			}
		}
	}
}

// lineEncoder maps each distinct line to one rune so the character diff
// works on whole lines. The go-diff line helpers encode indexes as decimal
// strings, which a character diff splits apart once there are more than ten
// distinct lines.
type lineEncoder struct {
	index map[string]rune
	lines []string
}

// surrogates are not valid runes and would not survive a string round trip.
const (
	surrogateMin = 0xD800
	surrogateMax = 0xDFFF
)

func (e *lineEncoder) encode(text string) []rune {
	if e.index == nil {
		e.index = make(map[string]rune)
	}
	var runes []rune
	for len(text) > 0 {
		line := text
		if i := strings.IndexByte(text, '\n'); i >= 0 {
			line = text[:i+1]
		}
		text = text[len(line):]

		r, ok := e.index[line]
		if !ok {
			r = rune(len(e.lines))
			if r >= surrogateMin {
				r += surrogateMax - surrogateMin + 1
			}
			e.index[line] = r
			e.lines = append(e.lines, line)
		}
		runes = append(runes, r)
	}
	return runes
}

func (e *lineEncoder) decode(encoded string) string {
	var b strings.Builder
	for _, r := range encoded {
		i := int(r)
		if r > surrogateMax {
			i -= surrogateMax - surrogateMin + 1
		}
		b.WriteString(e.lines[i])
	}
	return b.String()
}

// Stats summarizes a diff in changed line counts.
type Stats struct {
	Added   int `json:"lines_added"`
	Removed int `json:"lines_removed"`
}

// Identical reports whether the diff had no added or removed lines.
func (s Stats) Identical() bool {
	return s.Added == 0 && s.Removed == 0
}

// Collect drains seq into a slice and tallies the changed lines.
func Collect(seq iter.Seq[Chunk]) ([]Chunk, Stats) {
	var chunks []Chunk
	var stats Stats
	for c := range seq {
		switch c.Kind {
		case Added:
			stats.Added += c.LineCount()
		case Removed:
			stats.Removed += c.LineCount()
		}
		chunks = append(chunks, c)
	}
	return chunks, stats
}

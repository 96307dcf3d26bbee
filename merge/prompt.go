package merge

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strings"
)

// LinePrompter reads one line per question from In and writes questions to Out.
type LinePrompter struct {
	reader *bufio.Reader
	out    io.Writer
}

// NewLinePrompter returns a prompter over in/out, typically os.Stdin and os.Stdout.
func NewLinePrompter(in io.Reader, out io.Writer) *LinePrompter {
	return &LinePrompter{reader: bufio.NewReader(in), out: out}
}

// Prompt writes message and reads a line. Empty input and end of input
// both yield defaultValue.
func (p *LinePrompter) Prompt(message, defaultValue string) (string, error) {
	if _, err := fmt.Fprint(p.out, message); err != nil {
		return "", err
	}
	input, err := p.reader.ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", err
	}
	input = strings.TrimRight(input, "\r\n")
	if input == "" {
		return defaultValue, nil
	}
	return input, nil
}

// Decline answers every question with its default. It is used when no
// operator is attached, e.g. in background mode.
type Decline struct{}

func (Decline) Prompt(_, defaultValue string) (string, error) {
	return defaultValue, nil
}

// normalizeAnswer only folds case; " y" or "yes" are asked again.
func normalizeAnswer(answer string) string {
	return strings.ToLower(answer)
}

package merge

import (
	"bytes"
	"strings"
	"testing"
)

func TestLinePrompter(t *testing.T) {
	var out bytes.Buffer
	p := NewLinePrompter(strings.NewReader("y\r\n\nanswer"), &out)

	tests := []struct {
		want string
	}{
		{"y"},
		{"N"},      // empty line
		{"answer"}, // last line without newline
		{"N"},      // end of input
	}
	for i, tt := range tests {
		got, err := p.Prompt("retry? ", "N")
		if err != nil {
			t.Fatalf("Prompt() #%d failed: %v", i, err)
		}
		if got != tt.want {
			t.Errorf("Prompt() #%d = %q, want %q", i, got, tt.want)
		}
	}
	if strings.Count(out.String(), "retry? ") != len(tests) {
		t.Errorf("question written %d times", strings.Count(out.String(), "retry? "))
	}
}

func TestDecline(t *testing.T) {
	got, err := Decline{}.Prompt("retry?", "N")
	if err != nil || got != "N" {
		t.Errorf("Decline.Prompt() = %q, %v", got, err)
	}
}

func TestNormalizeAnswer(t *testing.T) {
	for in, want := range map[string]string{"Y": "y", "N": "n", " n ": " n ", "yes": "yes"} {
		if got := normalizeAnswer(in); got != want {
			t.Errorf("normalizeAnswer(%q) = %q, want %q", in, got, want)
		}
	}
}

package merge

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
)

// ExecMerger runs an external merge tool as a subprocess.
//
// Args may contain the placeholders {a} and {b}, replaced by the two file
// paths. Without placeholders the paths are appended. PathDirs are appended
// to the child's PATH so tools installed outside of it can find their
// libraries.
type ExecMerger struct {
	Command  string
	Args     []string
	PathDirs []string
	Stdout   io.Writer
	Stderr   io.Writer
}

// Merge starts the tool and waits for it to exit. A non-zero exit status is
// not an error; only failing to run the tool is.
func (m *ExecMerger) Merge(ctx context.Context, a, b string) error {
	if m.Command == "" {
		return errors.New("no merge tool configured")
	}

	cmd := exec.CommandContext(ctx, m.Command, m.args(a, b)...)
	cmd.Stdout = m.Stdout
	cmd.Stderr = m.Stderr
	cmd.Env = m.env()

	if err := cmd.Run(); err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return nil
		}
		return fmt.Errorf("failed to run %s: %w", m.Command, err)
	}
	return nil
}

func (m *ExecMerger) args(a, b string) []string {
	if len(m.Args) == 0 {
		return []string{a, b}
	}
	out := make([]string, 0, len(m.Args))
	placed := false
	for _, arg := range m.Args {
		if strings.Contains(arg, "{a}") || strings.Contains(arg, "{b}") {
			placed = true
		}
		arg = strings.ReplaceAll(arg, "{a}", a)
		arg = strings.ReplaceAll(arg, "{b}", b)
		out = append(out, arg)
	}
	if !placed {
		out = append(out, a, b)
	}
	return out
}

func (m *ExecMerger) env() []string {
	env := os.Environ()
	if len(m.PathDirs) == 0 {
		return env
	}

	current := os.Getenv("PATH")
	existing := make(map[string]bool)
	for _, dir := range filepath.SplitList(current) {
		existing[dir] = true
	}
	path := current
	for _, dir := range m.PathDirs {
		if existing[dir] {
			continue
		}
		if path != "" {
			path += string(os.PathListSeparator)
		}
		path += dir
	}

	out := make([]string, 0, len(env)+1)
	for _, kv := range env {
		if strings.HasPrefix(kv, "PATH=") {
			continue
		}
		out = append(out, kv)
	}
	return append(out, "PATH="+path)
}

package merge

import (
	"context"
	"os/exec"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
)

func TestExecMergerArgs(t *testing.T) {
	tests := []struct {
		name string
		args []string
		want []string
	}{
		{"default", nil, []string{"A", "B"}},
		{"placeholders", []string{"--diff", "{a}", "{b}"}, []string{"--diff", "A", "B"}},
		{"embedded", []string{"--left={a}", "--right={b}"}, []string{"--left=A", "--right=B"}},
		{"no placeholders", []string{"--wait"}, []string{"--wait", "A", "B"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := &ExecMerger{Command: "meld", Args: tt.args}
			if got := m.args("A", "B"); !reflect.DeepEqual(got, tt.want) {
				t.Errorf("args() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestExecMergerEnvAppendsPath(t *testing.T) {
	t.Setenv("PATH", "/usr/bin")
	dir := filepath.Join(t.TempDir(), "meld", "lib")
	m := &ExecMerger{Command: "meld", PathDirs: []string{dir, "/usr/bin"}}

	var path string
	for _, kv := range m.env() {
		if strings.HasPrefix(kv, "PATH=") {
			if path != "" {
				t.Fatal("PATH set twice")
			}
			path = strings.TrimPrefix(kv, "PATH=")
		}
	}
	want := "/usr/bin" + string(filepath.ListSeparator) + dir
	if path != want {
		t.Errorf("PATH = %q, want %q", path, want)
	}
}

func TestExecMergerExitStatusIgnored(t *testing.T) {
	if _, err := exec.LookPath("false"); err != nil {
		t.Skip("false not available")
	}
	m := &ExecMerger{Command: "false"}
	if err := m.Merge(context.Background(), "a", "b"); err != nil {
		t.Errorf("Merge() = %v, want nil for non-zero exit", err)
	}
}

func TestExecMergerMissingTool(t *testing.T) {
	m := &ExecMerger{Command: filepath.Join(t.TempDir(), "no-such-merge-tool")}
	if err := m.Merge(context.Background(), "a", "b"); err == nil {
		t.Error("expected error for missing merge tool")
	}

	if err := (&ExecMerger{}).Merge(context.Background(), "a", "b"); err == nil {
		t.Error("expected error for empty command")
	}
}

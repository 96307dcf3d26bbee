package syncer

import (
	"bytes"
	"iter"
	"os"
	"path/filepath"
	"testing"

	"github.com/cfgsync/cfgsync/diff"
	"github.com/cfgsync/cfgsync/hashing"
)

type recordingReporter struct {
	sources []string
	chunks  []diff.Chunk
}

func (r *recordingReporter) Report(src string, changes iter.Seq[diff.Chunk]) error {
	r.sources = append(r.sources, src)
	for c := range changes {
		r.chunks = append(r.chunks, c)
	}
	return nil
}

func setupFiles(t *testing.T, local, template string) Pair {
	t.Helper()
	dir := t.TempDir()
	p := Pair{
		Local:    filepath.Join(dir, "project", ".eslintrc.json"),
		Template: filepath.Join(dir, "templates", "node.eslintrc.json"),
	}
	for path, content := range map[string]string{p.Local: local, p.Template: template} {
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(path, []byte(content), 0644); err != nil {
			t.Fatal(err)
		}
	}
	return p
}

func readFile(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	return string(data)
}

func TestHandlePropagatesChange(t *testing.T) {
	p := setupFiles(t, "1\n2\n3\n", "1\n2\n")
	current := hashing.SumBytes([]byte("1\n2\n"))
	rep := &recordingReporter{}

	hash, err := Handle(p.Routes()[0], current, rep)
	if err != nil {
		t.Fatalf("Handle() failed: %v", err)
	}

	if got := readFile(t, p.Template); got != "1\n2\n3\n" {
		t.Errorf("template = %q, want %q", got, "1\n2\n3\n")
	}
	if hash != hashing.SumBytes([]byte("1\n2\n3\n")) {
		t.Error("returned hash is not the fingerprint of the new content")
	}
	if len(rep.sources) != 1 || rep.sources[0] != p.Local {
		t.Errorf("reported sources = %v", rep.sources)
	}

	var added []diff.Chunk
	for _, c := range rep.chunks {
		if c.Kind != diff.Unchanged {
			added = append(added, c)
		}
	}
	if len(added) != 1 || added[0].Kind != diff.Added || added[0].Text != "3\n" {
		t.Errorf("changed chunks = %+v, want one added \"3\\n\"", added)
	}
}

func TestHandleSuppressesEcho(t *testing.T) {
	p := setupFiles(t, "1\n2\n3\n", "1\n2\n")
	rep := &recordingReporter{}

	hash, err := Handle(p.Routes()[0], hashing.SumBytes([]byte("1\n2\n")), rep)
	if err != nil {
		t.Fatalf("Handle() failed: %v", err)
	}

	// The copy raises a write event on the template; handling it must not copy back.
	before, _ := os.Stat(p.Local)
	echo, err := Handle(p.Routes()[1], hash, rep)
	if err != nil {
		t.Fatalf("Handle() of echo failed: %v", err)
	}
	if echo != hash {
		t.Error("echo changed the shared fingerprint")
	}
	if len(rep.sources) != 1 {
		t.Errorf("echo produced a report: %v", rep.sources)
	}
	after, _ := os.Stat(p.Local)
	if !after.ModTime().Equal(before.ModTime()) {
		t.Error("echo rewrote the local file")
	}
}

func TestHandleLineEndingOnlyChange(t *testing.T) {
	p := setupFiles(t, "1\r\n2\r\n", "1\n2\n")
	current := hashing.SumBytes([]byte("1\n2\n"))
	rep := &recordingReporter{}

	hash, err := Handle(p.Routes()[0], current, rep)
	if err != nil {
		t.Fatalf("Handle() failed: %v", err)
	}
	if hash != current {
		t.Error("line ending change altered the shared fingerprint")
	}
	if len(rep.sources) != 0 {
		t.Error("line ending change was reported")
	}
	if got := readFile(t, p.Local); got != "1\n2\n" {
		t.Errorf("local file not normalized: %q", got)
	}
}

func TestHandleUnchangedSkipsNormalization(t *testing.T) {
	p := setupFiles(t, "same\n", "same\n")
	current := hashing.SumBytes([]byte("same\n"))
	before, _ := os.Stat(p.Local)

	if _, err := Handle(p.Routes()[0], current, nil); err != nil {
		t.Fatalf("Handle() failed: %v", err)
	}
	after, _ := os.Stat(p.Local)
	if !after.ModTime().Equal(before.ModTime()) {
		t.Error("unchanged source was rewritten")
	}
}

func TestHandleMissingDestination(t *testing.T) {
	p := setupFiles(t, "new\n", "old\n")
	os.Remove(p.Template)

	current := hashing.SumBytes([]byte("old\n"))
	hash, err := Handle(p.Routes()[0], current, nil)
	if err == nil {
		t.Fatal("expected error when the destination is missing")
	}
	if hash != current {
		t.Error("failed handling changed the fingerprint")
	}
}

func TestConsoleReporter(t *testing.T) {
	var buf bytes.Buffer
	rep := ConsoleReporter{Renderer: diff.NewRenderer(&buf, false)}
	if err := rep.Report("/p/a.json", diff.Lines("1\n", "1\n2\n")); err != nil {
		t.Fatalf("Report() failed: %v", err)
	}
	want := "\n\nfrom /p/a.json\n1\n+2\n"
	if buf.String() != want {
		t.Errorf("output = %q, want %q", buf.String(), want)
	}
}

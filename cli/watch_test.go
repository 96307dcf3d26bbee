package cli

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/cfgsync/cfgsync/config"
	"github.com/cfgsync/cfgsync/daemon"
	"github.com/cfgsync/cfgsync/merge"
	"github.com/cfgsync/cfgsync/template"
)

type fixedSelector string

func (s fixedSelector) Select([]string) (string, error) { return string(s), nil }

// setupLibrary creates a config whose template library holds the given templates.
func setupLibrary(t *testing.T, templates map[string]string) *config.Config {
	t.Helper()
	cfg := config.DefaultConfig()
	cfg.Templates.Dir = t.TempDir()
	for name, content := range templates {
		if err := os.WriteFile(cfg.Library().Path(name), []byte(content), 0644); err != nil {
			t.Fatal(err)
		}
	}
	return cfg
}

func TestValidateWatchFlags(t *testing.T) {
	tests := []struct {
		background, status, stop bool
		wantErr                  bool
	}{
		{false, false, false, false},
		{true, false, false, false},
		{false, true, false, false},
		{false, false, true, false},
		{true, true, false, true},
		{true, false, true, true},
		{true, true, true, true},
	}
	for _, tt := range tests {
		err := validateWatchFlags(tt.background, tt.status, tt.stop)
		if (err != nil) != tt.wantErr {
			t.Errorf("validateWatchFlags(%v, %v, %v) error = %v, wantErr %v", tt.background, tt.status, tt.stop, err, tt.wantErr)
		}
	}
}

func TestResolveLocalPath_Explicit(t *testing.T) {
	got, err := resolveLocalPath([]string{"sub/.eslintrc.json"}, config.DefaultConfig())
	if err != nil {
		t.Fatalf("resolveLocalPath failed: %v", err)
	}
	want, _ := filepath.Abs("sub/.eslintrc.json")
	if got != want {
		t.Errorf("resolveLocalPath() = %q, want %q", got, want)
	}
}

func TestResolveLocalPath_DefaultInProjectDir(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)

	cfg := config.DefaultConfig()
	got, err := resolveLocalPath(nil, cfg)
	if err != nil {
		t.Fatalf("resolveLocalPath failed: %v", err)
	}
	if filepath.Base(got) != ".eslintrc.json" {
		t.Errorf("resolveLocalPath() = %q, want the configured local file", got)
	}

	gotInfo, err1 := os.Stat(filepath.Dir(got))
	wantInfo, err2 := os.Stat(dir)
	if err1 != nil || err2 != nil || !os.SameFile(gotInfo, wantInfo) {
		t.Errorf("resolveLocalPath() = %q, want a file in %q", got, dir)
	}
}

func TestResolveLocalPath_AbsoluteConfig(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.LocalFile = filepath.Join(t.TempDir(), "settings.json")

	got, err := resolveLocalPath(nil, cfg)
	if err != nil || got != cfg.LocalFile {
		t.Errorf("resolveLocalPath() = %q, %v; want %q", got, err, cfg.LocalFile)
	}
}

func TestResolveTemplatePath(t *testing.T) {
	cfg := setupLibrary(t, map[string]string{"node": "{}", "react": "{}"})
	local := filepath.Join(t.TempDir(), ".eslintrc.json")
	os.WriteFile(local, []byte(`{"env": {"browser": true}, "plugins": ["react"]}`), 0644)

	t.Run("classified", func(t *testing.T) {
		got, err := resolveTemplatePath(cfg, local, "")
		if err != nil || got != cfg.Library().Path("react") {
			t.Errorf("resolveTemplatePath() = %q, %v", got, err)
		}
	})

	t.Run("by name", func(t *testing.T) {
		got, err := resolveTemplatePath(cfg, local, "node")
		if err != nil || got != cfg.Library().Path("node") {
			t.Errorf("resolveTemplatePath() = %q, %v", got, err)
		}
	})

	t.Run("by path", func(t *testing.T) {
		other := filepath.Join(t.TempDir(), "custom.json")
		os.WriteFile(other, []byte("{}"), 0644)

		got, err := resolveTemplatePath(cfg, local, other)
		if err != nil || got != other {
			t.Errorf("resolveTemplatePath() = %q, %v; want %q", got, err, other)
		}
	})

	t.Run("unknown name", func(t *testing.T) {
		if _, err := resolveTemplatePath(cfg, local, "vue"); err == nil {
			t.Error("expected error for a template missing from the library")
		}
	})
}

func TestPreparePair(t *testing.T) {
	cfg := setupLibrary(t, map[string]string{"node": "{\"env\": {\"node\": true}}\n"})

	t.Run("fail when missing", func(t *testing.T) {
		local := filepath.Join(t.TempDir(), ".eslintrc.json")
		_, err := preparePair(cfg, local, "", "fail", nil)
		if !errors.Is(err, template.ErrLocalFileMissing) {
			t.Fatalf("preparePair() error = %v, want ErrLocalFileMissing", err)
		}
	})

	t.Run("bootstrap then classify", func(t *testing.T) {
		local := filepath.Join(t.TempDir(), ".eslintrc.json")
		pair, err := preparePair(cfg, local, "", "bootstrap", fixedSelector("node"))
		if err != nil {
			t.Fatalf("preparePair() failed: %v", err)
		}
		if pair.Local != local || pair.Template != cfg.Library().Path("node") {
			t.Errorf("preparePair() = %+v", pair)
		}
	})

	t.Run("invalid strategy", func(t *testing.T) {
		if _, err := preparePair(cfg, "x", "", "ignore", nil); err == nil {
			t.Error("expected error for invalid --on-missing")
		}
	})
}

func TestSessionOptions(t *testing.T) {
	cfg := config.DefaultConfig()
	opts := sessionOptions(cfg)
	if opts.RetryDelay != 200*time.Millisecond || opts.MaxRetries != 1 {
		t.Errorf("sessionOptions(defaults) = %+v", opts)
	}

	cfg.Watch.MaxRetries = 0
	if got := sessionOptions(cfg).MaxRetries; got >= 0 {
		t.Errorf("MaxRetries = %d, want negative to disable retries", got)
	}
}

func TestSessionOptionsPartialConfigRetries(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("merge:\n  command: kdiff3\n"), 0644); err != nil {
		t.Fatal(err)
	}
	cfg, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}

	if got := sessionOptions(cfg).MaxRetries; got != 1 {
		t.Errorf("MaxRetries = %d, want 1 when max_retries is absent", got)
	}
}

func TestFinishWatch(t *testing.T) {
	fatal := fmt.Errorf("write failed")

	tests := []struct {
		name       string
		err        error
		wantOutput []string
		wantErr    bool
	}{
		{"clean end", nil, []string{"end of watch"}, false},
		{"event error", &eventError{err: fatal}, []string{"HANDLE EVENT ERROR", "end of watch"}, true},
		{"unmerged", fmt.Errorf("x: %w", merge.ErrUnmerged), nil, true},
		{"startup error", fatal, nil, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			err := finishWatch(&buf, tt.err)
			if (err != nil) != tt.wantErr {
				t.Fatalf("finishWatch() error = %v, wantErr %v", err, tt.wantErr)
			}
			for _, want := range tt.wantOutput {
				if !strings.Contains(buf.String(), want) {
					t.Errorf("output %q lacks %q", buf.String(), want)
				}
			}
			if tt.wantOutput == nil && buf.Len() != 0 {
				t.Errorf("unexpected output %q", buf.String())
			}
		})
	}

	err := finishWatch(&bytes.Buffer{}, fmt.Errorf("x: %w", merge.ErrUnmerged))
	if !errors.Is(err, merge.ErrUnmerged) {
		t.Errorf("finishWatch() = %v, want wrapped ErrUnmerged", err)
	}
}

func TestShowWatchStatus(t *testing.T) {
	logDir := t.TempDir()

	var buf bytes.Buffer
	if err := showWatchStatus(&buf, logDir); err != nil {
		t.Fatalf("showWatchStatus() failed: %v", err)
	}
	if !strings.Contains(buf.String(), "Status: not running") {
		t.Errorf("output = %q", buf.String())
	}

	id := "0123456789ab"
	if err := daemon.WritePIDFile(logDir, id); err != nil {
		t.Fatal(err)
	}
	meta := daemon.Meta{ID: id, PID: os.Getpid(), Local: "/work/.eslintrc.json", Template: "/tpl/node.eslintrc.json", StartedAt: time.Now()}
	if err := daemon.WriteMeta(logDir, meta); err != nil {
		t.Fatal(err)
	}

	buf.Reset()
	if err := showWatchStatus(&buf, logDir); err != nil {
		t.Fatalf("showWatchStatus() failed: %v", err)
	}
	for _, want := range []string{"Status: running", "Local: /work/.eslintrc.json", daemon.LogFile(logDir, id)} {
		if !strings.Contains(buf.String(), want) {
			t.Errorf("output %q lacks %q", buf.String(), want)
		}
	}
}

func TestStopWatchDaemonNotRunning(t *testing.T) {
	stopped, err := stopWatchDaemon(t.TempDir(), "/work/.eslintrc.json")
	if err != nil || stopped {
		t.Errorf("stopWatchDaemon() = %v, %v; want false, nil", stopped, err)
	}
}

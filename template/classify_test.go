package template

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeJSON(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), ".eslintrc.json")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestClassifyDefaultRules(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    string
		wantErr error
	}{
		{"node and browser", `{"env": {"browser": true, "node": true}}`, "node-browser", nil},
		{"react", `{"env": {"browser": true}, "plugins": ["import", "react"]}`, "react", nil},
		{"node", `{"env": {"node": true}}`, "node", nil},
		{"node browser false", `{"env": {"node": true, "browser": false}}`, "node", nil},
		{"browser only", `{"env": {"browser": true}, "plugins": []}`, "", ErrUnsupportedProjectType},
		{"nothing", `{"env": {}}`, "", ErrUnsupportedProjectType},
		{"no env", `{"rules": {}}`, "", ErrUnsupportedProjectType},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Classify(writeJSON(t, tt.content), DefaultRules())
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("Classify() error = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("Classify() failed: %v", err)
			}
			if got != tt.want {
				t.Errorf("Classify() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestClassifyParseErrorPosition(t *testing.T) {
	path := writeJSON(t, "{\n  \"a\": 1,\n}\n")

	_, err := Classify(path, DefaultRules())
	var perr *ParseError
	if !errors.As(err, &perr) {
		t.Fatalf("Classify() error = %v, want *ParseError", err)
	}
	if perr.Line != 3 || perr.Column != 1 {
		t.Errorf("position = %d:%d, want 3:1", perr.Line, perr.Column)
	}
	if !strings.Contains(err.Error(), path+":3:1") {
		t.Errorf("error message %q lacks position", err.Error())
	}
}

func TestClassifyMissingFile(t *testing.T) {
	if _, err := Classify(filepath.Join(t.TempDir(), "nope.json"), DefaultRules()); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestTruthy(t *testing.T) {
	for _, v := range []any{true, 1.0, "x", []any{}, map[string]any{}} {
		if !truthy(v) {
			t.Errorf("truthy(%v) = false", v)
		}
	}
	for _, v := range []any{nil, false, 0.0, ""} {
		if truthy(v) {
			t.Errorf("truthy(%v) = true", v)
		}
	}
}

func TestCustomRules(t *testing.T) {
	rules := []Rule{{Template: "strict", Truthy: []string{"settings.strict"}, Contains: map[string]string{"extends": "airbnb"}}}
	path := writeJSON(t, `{"settings": {"strict": 1}, "extends": "airbnb"}`)

	got, err := Classify(path, rules)
	if err != nil || got != "strict" {
		t.Errorf("Classify() = %q, %v; want strict", got, err)
	}
}

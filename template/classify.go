// Package template finds the shared template a project-local config file is
// synchronized with, and bootstraps missing local files from a template.
package template

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
)

// ErrUnsupportedProjectType is returned when no rule matches the local file.
var ErrUnsupportedProjectType = errors.New("unsupported project type")

// Rule selects Template when every condition holds. Paths are dotted JSON
// keys, e.g. "env.browser". Missing keys are falsy.
type Rule struct {
	Template string            `yaml:"template"`
	Truthy   []string          `yaml:"truthy,omitempty"`
	Falsy    []string          `yaml:"falsy,omitempty"`
	Contains map[string]string `yaml:"contains,omitempty"` // array path -> required element
}

// DefaultRules classify ESLint configurations into the stock templates.
func DefaultRules() []Rule {
	return []Rule{
		{Template: "node-browser", Truthy: []string{"env.browser", "env.node"}},
		{Template: "react", Truthy: []string{"env.browser"}, Contains: map[string]string{"plugins": "react"}},
		{Template: "node", Truthy: []string{"env.node"}, Falsy: []string{"env.browser"}},
	}
}

// ParseError reports a local file that is not valid JSON.
type ParseError struct {
	Path   string
	Line   int
	Column int
	Err    error
}

func (e *ParseError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("unable to parse config file: %v\n    %s:%d:%d", e.Err, e.Path, e.Line, e.Column)
	}
	return fmt.Sprintf("unable to parse config file %s: %v", e.Path, e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// Classify returns the template name of the first rule matching the JSON
// document at path.
func Classify(path string, rules []Rule) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("failed to read %s: %w", path, err)
	}

	var doc any
	if err := json.Unmarshal(data, &doc); err != nil {
		perr := &ParseError{Path: path, Err: err}
		var syntaxErr *json.SyntaxError
		if errors.As(err, &syntaxErr) {
			perr.Line, perr.Column = position(data, syntaxErr.Offset)
		}
		return "", perr
	}

	for _, rule := range rules {
		if rule.matches(doc) {
			return rule.Template, nil
		}
	}
	return "", fmt.Errorf("%s: %w", path, ErrUnsupportedProjectType)
}

func (r Rule) matches(doc any) bool {
	for _, p := range r.Truthy {
		if !truthy(lookup(doc, p)) {
			return false
		}
	}
	for _, p := range r.Falsy {
		if truthy(lookup(doc, p)) {
			return false
		}
	}
	for p, want := range r.Contains {
		if !contains(lookup(doc, p), want) {
			return false
		}
	}
	return true
}

func lookup(doc any, path string) any {
	cur := doc
	for _, key := range strings.Split(path, ".") {
		obj, ok := cur.(map[string]any)
		if !ok {
			return nil
		}
		cur = obj[key]
	}
	return cur
}

func truthy(v any) bool {
	switch t := v.(type) {
	case nil:
		return false
	case bool:
		return t
	case float64:
		return t != 0
	case string:
		return t != ""
	default:
		return true
	}
}

func contains(v any, want string) bool {
	switch t := v.(type) {
	case []any:
		for _, item := range t {
			if s, ok := item.(string); ok && s == want {
				return true
			}
		}
	case string:
		return t == want
	}
	return false
}

// position converts the offset of a json.SyntaxError, which counts the
// offending byte, into a 1-based line and column.
func position(data []byte, offset int64) (int, int) {
	if offset > 0 {
		offset--
	}
	if offset > int64(len(data)) {
		offset = int64(len(data))
	}
	before := string(data[:offset])
	line := strings.Count(before, "\n") + 1
	col := len(before) - strings.LastIndex(before, "\n")
	return line, col
}

package template

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// Library is a directory of templates named <name><Suffix>.
type Library struct {
	Dir    string
	Suffix string
}

// Path returns the file of the named template.
func (l Library) Path(name string) string {
	return filepath.Join(l.Dir, name+l.Suffix)
}

// List returns the template names found in the library, sorted.
func (l Library) List() ([]string, error) {
	entries, err := os.ReadDir(l.Dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read template directory: %w", err)
	}

	var names []string
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), l.Suffix) {
			continue
		}
		name := strings.TrimSuffix(e.Name(), l.Suffix)
		if name == "" {
			continue
		}
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

// Resolve classifies the local file and returns the matching template path.
func (l Library) Resolve(localPath string, rules []Rule) (string, error) {
	name, err := Classify(localPath, rules)
	if err != nil {
		return "", err
	}
	path := l.Path(name)
	if _, err := os.Stat(path); err != nil {
		return "", fmt.Errorf("template %q not found: %w", name, err)
	}
	return path, nil
}

package syncer

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"path/filepath"
)

// Pair is the two files kept identical: the project-local file and the
// shared template copy.
type Pair struct {
	Local    string
	Template string
}

// NewPair resolves both paths to absolute form and validates them.
func NewPair(local, template string) (Pair, error) {
	absLocal, err := filepath.Abs(local)
	if err != nil {
		return Pair{}, fmt.Errorf("failed to resolve %s: %w", local, err)
	}
	absTemplate, err := filepath.Abs(template)
	if err != nil {
		return Pair{}, fmt.Errorf("failed to resolve %s: %w", template, err)
	}
	p := Pair{Local: absLocal, Template: absTemplate}
	if err := p.Validate(); err != nil {
		return Pair{}, err
	}
	return p, nil
}

// Validate rejects pairs that designate the same file twice.
func (p Pair) Validate() error {
	if p.Local == "" || p.Template == "" {
		return fmt.Errorf("both files of the pair are required")
	}
	if filepath.Clean(p.Local) == filepath.Clean(p.Template) {
		return fmt.Errorf("cannot sync %s with itself", p.Local)
	}
	return nil
}

// ID returns a stable identifier for the pair: hex(sha256(local NUL template))[:12].
func (p Pair) ID() string {
	sum := sha256.Sum256([]byte(filepath.Clean(p.Local) + "\x00" + filepath.Clean(p.Template)))
	return hex.EncodeToString(sum[:])[:12]
}

// Route is one direction of propagation: changes of Src are copied to Dest.
type Route struct {
	Src  string
	Dest string
}

// Routes returns the two directions of the pair, local first.
func (p Pair) Routes() [2]Route {
	return [2]Route{
		{Src: p.Local, Dest: p.Template},
		{Src: p.Template, Dest: p.Local},
	}
}

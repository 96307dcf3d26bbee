// Package hashing fingerprints file contents and normalizes line endings
// before contents are compared.
package hashing

import (
	"bytes"
	"fmt"
	"os"

	"github.com/cespare/xxhash/v2"
	"github.com/cfgsync/cfgsync/internal/fileutil"
)

// Fingerprint is a content digest used only for equality checks.
type Fingerprint uint64

// String returns the fingerprint as 16 lowercase hex digits.
func (f Fingerprint) String() string {
	return fmt.Sprintf("%016x", uint64(f))
}

// SumBytes fingerprints an in-memory content.
func SumBytes(content []byte) Fingerprint {
	return Fingerprint(xxhash.Sum64(content))
}

// Sum reads the whole file at path and returns its fingerprint.
func Sum(path string) (Fingerprint, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return 0, fmt.Errorf("failed to read %s: %w", path, err)
	}
	return SumBytes(content), nil
}

// Equal reports whether the files at a and b currently have the same content.
func Equal(a, b string) (bool, error) {
	ha, err := Sum(a)
	if err != nil {
		return false, err
	}
	hb, err := Sum(b)
	if err != nil {
		return false, err
	}
	return ha == hb, nil
}

var (
	crcrlf = []byte("\r\r\n")
	crlf   = []byte("\r\n")
	cr     = []byte("\r")
	lf     = []byte("\n")
)

// Normalize rewrites "\r\r\n", "\r\n" and lone "\r" to "\n", in that order.
func Normalize(content []byte) []byte {
	out := bytes.ReplaceAll(content, crcrlf, lf)
	out = bytes.ReplaceAll(out, crlf, lf)
	return bytes.ReplaceAll(out, cr, lf)
}

// NormalizeLineEndings rewrites the file at path with normalized line
// endings. The write happens even when nothing changed.
func NormalizeLineEndings(path string) error {
	content, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", path, err)
	}
	if err := fileutil.OverwriteFile(path, Normalize(content)); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}

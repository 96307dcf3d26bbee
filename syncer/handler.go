package syncer

import (
	"fmt"
	"iter"
	"os"

	"github.com/cfgsync/cfgsync/diff"
	"github.com/cfgsync/cfgsync/hashing"
	"github.com/cfgsync/cfgsync/internal/fileutil"
)

// Reporter is told about every change that is propagated.
type Reporter interface {
	Report(src string, changes iter.Seq[diff.Chunk]) error
}

// ConsoleReporter prints propagated changes as a truncated, colored diff.
type ConsoleReporter struct {
	Renderer *diff.Renderer
}

func (r ConsoleReporter) Report(src string, changes iter.Seq[diff.Chunk]) error {
	if err := r.Renderer.Header("from " + src); err != nil {
		return err
	}
	return r.Renderer.Render(changes)
}

// Handle processes one change of route.Src given the fingerprint last
// shared by both files and returns the new shared fingerprint.
//
// Line endings of the source are only normalized when its fingerprint moved
// away from current. When the normalized source still differs from current,
// the change is reported as a diff from the destination's content and the
// source content is written over the destination. A write that Handle itself
// caused therefore hashes to current on its echo event and is not copied back.
func Handle(route Route, current hashing.Fingerprint, reporter Reporter) (hashing.Fingerprint, error) {
	hash, err := hashing.Sum(route.Src)
	if err != nil {
		return current, err
	}
	if hash != current {
		if err := hashing.NormalizeLineEndings(route.Src); err != nil {
			return current, err
		}
	}

	hash, err = hashing.Sum(route.Src)
	if err != nil {
		return current, err
	}
	if hash == current {
		return current, nil
	}

	srcContent, err := os.ReadFile(route.Src)
	if err != nil {
		return current, fmt.Errorf("failed to read %s: %w", route.Src, err)
	}
	destContent, err := os.ReadFile(route.Dest)
	if err != nil {
		return current, fmt.Errorf("failed to read %s: %w", route.Dest, err)
	}

	if reporter != nil {
		if err := reporter.Report(route.Src, diff.Lines(string(destContent), string(srcContent))); err != nil {
			return current, fmt.Errorf("failed to report diff: %w", err)
		}
	}

	if err := fileutil.OverwriteFile(route.Dest, srcContent); err != nil {
		return current, fmt.Errorf("failed to copy %s to %s: %w", route.Src, route.Dest, err)
	}

	return hashing.SumBytes(srcContent), nil
}

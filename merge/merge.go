// Package merge drives the reconciliation that brings two files to identical
// content before they are watched.
//
// Reconciliation normalizes line endings of both files, compares their
// fingerprints and, while they differ, hands both paths to an interactive
// merge tool. Whether a merge succeeded is decided by comparing fingerprints
// again, never by the tool's exit status. When the files still differ the
// operator is asked whether to retry; declining fails with ErrUnmerged.
package merge

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/cfgsync/cfgsync/hashing"
	"golang.org/x/sync/errgroup"
)

// ErrUnmerged is returned when the files still differ and the operator
// declined to run the merge tool again.
var ErrUnmerged = errors.New("uncompleted merge")

const retryQuestion = "The files do not match, retry ? y/N "

// Merger runs an interactive merge of two files and blocks until the
// operator is done.
type Merger interface {
	Merge(ctx context.Context, a, b string) error
}

// Prompter asks the operator a question and returns the raw answer.
// An empty answer yields defaultValue.
type Prompter interface {
	Prompt(message, defaultValue string) (string, error)
}

// Reconcile brings a and b to identical content and returns their shared
// fingerprint. It never returns successfully while the files differ.
// A nil merger fails with ErrUnmerged as soon as the files differ.
func Reconcile(ctx context.Context, a, b string, merger Merger, prompter Prompter) (hashing.Fingerprint, error) {
	var g errgroup.Group
	for _, path := range []string{a, b} {
		g.Go(func() error {
			return hashing.NormalizeLineEndings(path)
		})
	}
	if err := g.Wait(); err != nil {
		return 0, fmt.Errorf("failed to normalize line endings: %w", err)
	}

	hash, same, err := compare(a, b)
	if err != nil {
		return 0, err
	}
	if same {
		return hash, nil
	}
	if merger == nil {
		return 0, ErrUnmerged
	}

	for {
		if err := ctx.Err(); err != nil {
			return 0, err
		}

		log.Printf("Files differ, starting merge tool for %s and %s", a, b)
		if err := merger.Merge(ctx, a, b); err != nil {
			return 0, fmt.Errorf("merge tool failed: %w", err)
		}

		hash, same, err = compare(a, b)
		if err != nil {
			return 0, err
		}
		if same {
			return hash, nil
		}

		retry, err := askRetry(prompter)
		if err != nil {
			return 0, err
		}
		if !retry {
			return 0, ErrUnmerged
		}
	}
}

func compare(a, b string) (hashing.Fingerprint, bool, error) {
	ha, err := hashing.Sum(a)
	if err != nil {
		return 0, false, err
	}
	hb, err := hashing.Sum(b)
	if err != nil {
		return 0, false, err
	}
	return ha, ha == hb, nil
}

func askRetry(prompter Prompter) (bool, error) {
	for {
		answer, err := prompter.Prompt(retryQuestion, "N")
		if err != nil {
			return false, fmt.Errorf("failed to read answer: %w", err)
		}
		switch normalizeAnswer(answer) {
		case "y":
			return true, nil
		case "n":
			return false, nil
		}
	}
}

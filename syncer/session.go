// Package syncer keeps a pair of files identical: it reconciles them once,
// then propagates every content change of one file to the other.
package syncer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"time"

	"github.com/cfgsync/cfgsync/hashing"
	"github.com/cfgsync/cfgsync/merge"
	"github.com/cfgsync/cfgsync/watcher"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

// Options configures a watch session.
type Options struct {
	Merger   merge.Merger
	Prompter merge.Prompter
	Reporter Reporter

	// Zero values keep the engine defaults. A negative MaxRetries disables
	// lock-busy retries.
	RetryDelay time.Duration
	MaxRetries int

	// Out receives progress messages. Defaults to os.Stdout.
	Out io.Writer
	// OnReady is called once both watchers are installed.
	OnReady func(s *Session)
}

// Session is a running synchronization of one pair.
type Session struct {
	ID    string
	Pair  Pair
	Start time.Time

	initial hashing.Fingerprint
}

// InitialHash returns the fingerprint both files shared after reconciliation.
func (s *Session) InitialHash() hashing.Fingerprint {
	return s.initial
}

// Watch reconciles the pair, then propagates changes between the two files
// until ctx is cancelled and both watchers have shut down. It returns the
// reconciliation error, or the first fatal error raised while watching.
func Watch(ctx context.Context, pair Pair, opts Options) error {
	if err := pair.Validate(); err != nil {
		return err
	}
	out := opts.Out
	if out == nil {
		out = os.Stdout
	}

	session := &Session{ID: uuid.NewString(), Pair: pair, Start: time.Now()}
	log.Printf("Session %s: %s <-> %s", session.ID, pair.Local, pair.Template)

	fmt.Fprintln(out, "Merging ...")
	hash, err := merge.Reconcile(ctx, pair.Local, pair.Template, opts.Merger, opts.Prompter)
	if err != nil {
		return err
	}
	session.initial = hash

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	watchers := make([]*watcher.Watcher, 0, 2)
	defer func() {
		for _, w := range watchers {
			w.Close()
		}
	}()
	for _, path := range []string{pair.Local, pair.Template} {
		w, err := watcher.NewWatcher(path)
		if err != nil {
			return err
		}
		watchers = append(watchers, w)
		if err := w.Start(runCtx); err != nil {
			return err
		}
	}

	engine := NewEngine(pair, hash, func(route Route, current hashing.Fingerprint) (hashing.Fingerprint, error) {
		return Handle(route, current, opts.Reporter)
	})
	if opts.RetryDelay > 0 {
		engine.RetryDelay = opts.RetryDelay
	}
	if opts.MaxRetries != 0 {
		engine.MaxRetries = max(opts.MaxRetries, 0)
	}

	fmt.Fprintln(out, "Watching started.")
	if opts.OnReady != nil {
		opts.OnReady(session)
	}

	g, gCtx := errgroup.WithContext(runCtx)
	g.Go(func() error {
		defer cancel()
		return engine.Run(watchers[0].Events(), watchers[1].Events())
	})
	g.Go(func() error {
		<-gCtx.Done()
		var errs []error
		for _, w := range watchers {
			errs = append(errs, w.Close())
		}
		return errors.Join(errs...)
	})

	if err := g.Wait(); err != nil {
		return err
	}
	log.Printf("Session %s ended after %s", session.ID, time.Since(session.Start).Round(time.Second))
	return nil
}

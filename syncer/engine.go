package syncer

import (
	"fmt"
	"log"
	"time"

	"github.com/cfgsync/cfgsync/hashing"
	"github.com/cfgsync/cfgsync/internal/fileutil"
	"github.com/cfgsync/cfgsync/watcher"
)

const (
	DefaultRetryDelay = 200 * time.Millisecond
	DefaultMaxRetries = 1
)

// State is the engine's processing state.
type State int

const (
	StateIdle State = iota
	StateProcessing
	StateRetrying
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateProcessing:
		return "processing"
	case StateRetrying:
		return "retrying"
	default:
		return "unknown"
	}
}

// HandleFunc processes one change; Handle is the production implementation.
type HandleFunc func(route Route, current hashing.Fingerprint) (hashing.Fingerprint, error)

// Event is a change to deliver to the engine.
type Event struct {
	Route Route
	// Forced re-deliveries bypass the busy check. Only scheduled retries are forced.
	Forced  bool
	attempt int
}

type result struct {
	event Event
	hash  hashing.Fingerprint
	err   error
}

// Engine serializes change handling for both directions of a pair.
//
// One loop goroutine owns the shared fingerprint and the busy slot. At most
// one handler runs at a time across both watchers; events arriving while it
// runs are dropped, not queued. A handler failing on a locked file keeps the
// slot and is re-delivered after RetryDelay (doubling per attempt) up to
// MaxRetries times. Any other failure stops the engine.
type Engine struct {
	RetryDelay time.Duration
	MaxRetries int

	routes  map[string]Route
	handle  HandleFunc
	current hashing.Fingerprint
	state   State

	results chan result
	retries chan Event
	stop    chan struct{}
}

// NewEngine creates an engine for pair starting from the reconciled fingerprint.
func NewEngine(pair Pair, current hashing.Fingerprint, handle HandleFunc) *Engine {
	routes := make(map[string]Route, 2)
	for _, r := range pair.Routes() {
		routes[r.Src] = r
	}
	return &Engine{
		RetryDelay: DefaultRetryDelay,
		MaxRetries: DefaultMaxRetries,
		routes:     routes,
		handle:     handle,
		current:    current,
		results:    make(chan result, 1),
		retries:    make(chan Event, 1),
		stop:       make(chan struct{}),
	}
}

// Current returns the fingerprint last shared by both files. It must only be
// called from the goroutine running Run, or after Run returned.
func (e *Engine) Current() hashing.Fingerprint {
	return e.current
}

// Run consumes events from both watchers until both channels are closed,
// or returns the first fatal handler error. A handler still running when the
// channels close is waited for; a pending retry is abandoned.
func (e *Engine) Run(a, b <-chan watcher.FileEvent) error {
	defer close(e.stop)

	for a != nil || b != nil || e.state == StateProcessing {
		select {
		case fe, ok := <-a:
			if !ok {
				a = nil
				continue
			}
			e.receive(fe)
		case fe, ok := <-b:
			if !ok {
				b = nil
				continue
			}
			e.receive(fe)
		case ev := <-e.retries:
			e.deliver(ev)
		case res := <-e.results:
			if err := e.complete(res); err != nil {
				return err
			}
		}
	}
	return nil
}

func (e *Engine) receive(fe watcher.FileEvent) {
	route, ok := e.routes[fe.Path]
	if !ok {
		return
	}
	e.deliver(Event{Route: route})
}

// deliver starts handling ev unless another event holds the busy slot.
// It reports whether a handler was started.
func (e *Engine) deliver(ev Event) bool {
	if e.state != StateIdle && !ev.Forced {
		return false
	}
	e.state = StateProcessing

	current := e.current
	go func() {
		hash, err := e.handle(ev.Route, current)
		e.results <- result{event: ev, hash: hash, err: err}
	}()
	return true
}

// complete applies a handler result. It returns an error only when the
// failure is fatal.
func (e *Engine) complete(res result) error {
	if res.err == nil {
		e.current = res.hash
		e.state = StateIdle
		return nil
	}

	if !fileutil.IsLockBusy(res.err) {
		e.state = StateIdle
		return fmt.Errorf("failed to sync %s to %s: %w", res.event.Route.Src, res.event.Route.Dest, res.err)
	}

	if res.event.attempt >= e.MaxRetries {
		log.Printf("Giving up on change of %s, file still locked: %v", res.event.Route.Src, res.err)
		e.state = StateIdle
		return nil
	}

	e.state = StateRetrying
	retry := Event{Route: res.event.Route, Forced: true, attempt: res.event.attempt + 1}
	delay := e.RetryDelay << res.event.attempt
	time.AfterFunc(delay, func() {
		select {
		case e.retries <- retry:
		case <-e.stop:
		}
	})
	return nil
}

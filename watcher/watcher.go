// Package watcher delivers content-change notifications for a single file by
// watching its parent directory.
package watcher

import (
	"context"
	"fmt"
	"log"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"
)

type EventType int

const (
	EventCreate EventType = iota
	EventModify
	EventDelete
	EventRename
)

func (e EventType) String() string {
	switch e {
	case EventCreate:
		return "CREATE"
	case EventModify:
		return "MODIFY"
	case EventDelete:
		return "DELETE"
	case EventRename:
		return "RENAME"
	default:
		return "UNKNOWN"
	}
}

// FileEvent is a change notification for the watched file.
type FileEvent struct {
	Type EventType
	Path string
}

// Watcher watches the directory containing path and reports content
// modifications of path only. Other files in the directory and
// create/delete/rename/chmod events are filtered out.
type Watcher struct {
	path    string
	dir     string
	base    string
	watcher *fsnotify.Watcher
	events  chan FileEvent
	done    chan struct{}

	closeOnce sync.Once
	wg        sync.WaitGroup
}

func NewWatcher(path string) (*Watcher, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve %s: %w", path, err)
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create fsnotify watcher: %w", err)
	}

	return &Watcher{
		path:    abs,
		dir:     filepath.Dir(abs),
		base:    filepath.Base(abs),
		watcher: fsw,
		events:  make(chan FileEvent, 100),
		done:    make(chan struct{}),
	}, nil
}

// Path returns the absolute path of the watched file.
func (w *Watcher) Path() string {
	return w.path
}

// Start subscribes to the parent directory and begins delivering events.
// The watcher stops when ctx is done or Close is called; Events is closed then.
func (w *Watcher) Start(ctx context.Context) error {
	if err := w.watcher.Add(w.dir); err != nil {
		return fmt.Errorf("failed to watch directory %s: %w", w.dir, err)
	}

	w.wg.Add(1)
	go w.processEvents(ctx)

	return nil
}

// Events returns the channel of accepted events. It is closed when the
// watcher terminates.
func (w *Watcher) Events() <-chan FileEvent {
	return w.events
}

// Close stops the watcher and waits for the event loop to exit.
func (w *Watcher) Close() error {
	var err error
	w.closeOnce.Do(func() {
		close(w.done)
		err = w.watcher.Close()
	})
	w.wg.Wait()
	return err
}

func (w *Watcher) processEvents(ctx context.Context) {
	defer w.wg.Done()
	defer close(w.events)

	for {
		select {
		case <-ctx.Done():
			return
		case <-w.done:
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			fe, ok := w.convertEvent(event)
			if !ok {
				continue
			}
			select {
			case w.events <- fe:
			case <-ctx.Done():
				return
			case <-w.done:
				return
			}
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			log.Printf("Watcher error on %s: %v", w.dir, err)
		}
	}
}

// convertEvent keeps only content writes to the watched file.
func (w *Watcher) convertEvent(event fsnotify.Event) (FileEvent, bool) {
	if filepath.Base(event.Name) != w.base {
		return FileEvent{}, false
	}
	if !event.Has(fsnotify.Write) {
		return FileEvent{}, false
	}
	return FileEvent{Type: EventModify, Path: w.path}, true
}

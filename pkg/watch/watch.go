// Package watch re-triggers corpus validation when Markdown files under a
// root directory change.
package watch

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/fsnotify/fsnotify"
	"github.com/pkg/errors"

	"github.com/jingkaihe/corpuscheck/pkg/corpus"
	"github.com/jingkaihe/corpuscheck/pkg/logger"
)

// DefaultDebounce is the quiet period a path needs before it is reported
const DefaultDebounce = 300 * time.Millisecond

// Event is a filesystem change to a path relative to the watched root
type Event struct {
	Path string
	Op   fsnotify.Op
}

// Watcher watches every non-excluded directory under a root
type Watcher struct {
	root     string
	include  []string
	exclude  []string
	debounce time.Duration

	fsw *fsnotify.Watcher
}

// Option is a function that configures a Watcher
type Option func(*Watcher) error

// WithInclude sets the doublestar patterns a changed file must match
func WithInclude(patterns ...string) Option {
	return func(w *Watcher) error {
		w.include = patterns
		return nil
	}
}

// WithExclude sets the doublestar patterns of ignored files. Patterns ending
// in "/**" also keep the matching directories out of the watch.
func WithExclude(patterns ...string) Option {
	return func(w *Watcher) error {
		w.exclude = patterns
		return nil
	}
}

// WithDebounce sets how long a path must stay quiet before it is reported
func WithDebounce(d time.Duration) Option {
	return func(w *Watcher) error {
		if d < 0 {
			return errors.Errorf("debounce cannot be negative: %s", d)
		}
		w.debounce = d
		return nil
	}
}

// New creates a watcher and registers every directory under root. Changes
// made after New returns are seen by Run.
func New(ctx context.Context, root string, opts ...Option) (*Watcher, error) {
	w := &Watcher{
		root:     root,
		include:  corpus.DefaultInclude,
		exclude:  corpus.DefaultExclude,
		debounce: DefaultDebounce,
	}
	for _, opt := range opts {
		if err := opt(w); err != nil {
			return nil, errors.Wrap(err, "failed to apply watch option")
		}
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, errors.Wrap(err, "failed to create file watcher")
	}
	w.fsw = fsw

	if err := w.addTree(ctx, root); err != nil {
		fsw.Close()
		return nil, err
	}

	logger.G(ctx).WithField("root", root).WithField("directories", len(fsw.WatchList())).Info("File watcher initialized")
	return w, nil
}

// Close releases the underlying watcher. Run closes it on return.
func (w *Watcher) Close() error {
	return w.fsw.Close()
}

// Run reports changes until ctx is done. Changes are debounced per path and
// every path that settles together is passed to onChange in one sorted batch.
// onChange runs on the caller's goroutine, so batches never overlap.
func (w *Watcher) Run(ctx context.Context, onChange func(ctx context.Context, changed []string)) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	events := make(chan Event)
	debounced := make(chan Event)

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		w.forward(ctx, events)
	}()
	go func() {
		defer wg.Done()
		debounceFileEvents(ctx, events, debounced, w.debounce)
	}()

	defer func() {
		cancel()
		w.fsw.Close()
		wg.Wait()
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case event := <-debounced:
			changed := map[string]bool{}
			record := func(e Event) {
				logger.G(ctx).WithField("path", e.Path).WithField("op", e.Op.String()).Debug("File changed")
				changed[e.Path] = true
			}

			record(event)
		drain:
			for {
				select {
				case more := <-debounced:
					record(more)
				default:
					break drain
				}
			}

			paths := make([]string, 0, len(changed))
			for p := range changed {
				paths = append(paths, p)
			}
			sort.Strings(paths)

			logger.G(ctx).WithField("paths", paths).Debug("Corpus change detected")
			onChange(ctx, paths)
		}
	}
}

// forward filters raw fsnotify events down to relevant corpus changes
func (w *Watcher) forward(ctx context.Context, out chan<- Event) {
	for {
		select {
		case <-ctx.Done():
			return
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			logger.G(ctx).WithError(err).Warn("Error watching files")
		case ev, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			event, relevant := w.filter(ctx, ev)
			if !relevant {
				continue
			}
			select {
			case out <- event:
			case <-ctx.Done():
				return
			}
		}
	}
}

func (w *Watcher) filter(ctx context.Context, ev fsnotify.Event) (Event, bool) {
	if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) == 0 {
		return Event{}, false
	}

	rel, err := filepath.Rel(w.root, ev.Name)
	if err != nil {
		return Event{}, false
	}
	rel = filepath.ToSlash(rel)

	if ev.Op&fsnotify.Create != 0 {
		if info, err := os.Stat(ev.Name); err == nil && info.IsDir() {
			if w.excludesDir(rel) {
				return Event{}, false
			}
			if err := w.addTree(ctx, ev.Name); err != nil {
				logger.G(ctx).WithError(err).WithField("directory", rel).Warn("Failed to watch new directory")
			}
			return Event{Path: rel, Op: ev.Op}, true
		}
	}

	if !matchAny(w.include, rel) || matchAny(w.exclude, rel) {
		return Event{}, false
	}
	return Event{Path: rel, Op: ev.Op}, true
}

func (w *Watcher) addTree(ctx context.Context, dir string) error {
	err := filepath.WalkDir(dir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(w.root, p)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)
		if rel != "." && w.excludesDir(rel) {
			logger.G(ctx).WithField("directory", rel).Debug("Skipping excluded directory")
			return filepath.SkipDir
		}
		logger.G(ctx).WithField("directory", rel).Debug("Adding directory to watcher")
		return w.fsw.Add(p)
	})
	return errors.Wrapf(err, "failed to watch '%s'", dir)
}

func (w *Watcher) excludesDir(rel string) bool {
	for _, pattern := range w.exclude {
		dirPattern, ok := strings.CutSuffix(pattern, "/**")
		if !ok {
			continue
		}
		if matched, _ := doublestar.Match(dirPattern, rel); matched {
			return true
		}
	}
	return false
}

func matchAny(patterns []string, rel string) bool {
	for _, pattern := range patterns {
		if matched, _ := doublestar.Match(pattern, rel); matched {
			return true
		}
	}
	return false
}

// debouncer holds each path back until no event for it has arrived within
// delay. It is owned by the debounceFileEvents goroutine; timers only hand
// their event back through fired.
type debouncer struct {
	ctx        context.Context
	delay      time.Duration
	fired      chan firedEvent
	pending    map[string]pendingTimer
	generation uint64
}

type pendingTimer struct {
	timer      *time.Timer
	generation uint64
}

type firedEvent struct {
	event      Event
	generation uint64
}

func newDebouncer(ctx context.Context, delay time.Duration) *debouncer {
	return &debouncer{
		ctx:     ctx,
		delay:   delay,
		fired:   make(chan firedEvent),
		pending: make(map[string]pendingTimer),
	}
}

// add (re)starts the timer for the event's path
func (d *debouncer) add(event Event) {
	if p, exists := d.pending[event.Path]; exists {
		p.timer.Stop()
	}

	d.generation++
	f := firedEvent{event: event, generation: d.generation}
	d.pending[event.Path] = pendingTimer{
		generation: f.generation,
		timer: time.AfterFunc(d.delay, func() {
			select {
			case d.fired <- f:
			case <-d.ctx.Done():
			}
		}),
	}
}

// settle reports whether f is the latest event for its path. A timer that
// fired before a newer event restarted its path is stale and ignored.
func (d *debouncer) settle(f firedEvent) bool {
	p, exists := d.pending[f.event.Path]
	if !exists || p.generation != f.generation {
		return false
	}
	delete(d.pending, f.event.Path)
	return true
}

func (d *debouncer) stop() {
	for _, p := range d.pending {
		p.timer.Stop()
	}
}

func debounceFileEvents(ctx context.Context, input <-chan Event, output chan<- Event, delay time.Duration) {
	d := newDebouncer(ctx, delay)
	defer d.stop()

	for {
		select {
		case event, ok := <-input:
			if !ok {
				return
			}
			d.add(event)
		case f := <-d.fired:
			if !d.settle(f) {
				continue
			}
			select {
			case output <- f.event:
			case <-ctx.Done():
				return
			}
		case <-ctx.Done():
			return
		}
	}
}

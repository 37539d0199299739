// Package watcher runs the background loop that ferries terminal responses
// into the correlator. A ticker guarantees progress; directory-change
// notifications, when enabled, only make passes happen sooner. Ordering and
// timeout semantics are identical either way.
package watcher

import (
	"log/slog"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/rustyeddy/mt5bridge/correlator"
	"github.com/rustyeddy/mt5bridge/transport"
)

type Options struct {
	Interval      time.Duration // polling tick, default 100ms
	SweepInterval time.Duration // retention pass cadence, 0 disables
	MaxAge        time.Duration // retention window for the sweep
	Archive       bool          // archive swept files instead of deleting
	Notify        bool          // also react to directory-change events
}

type Watcher struct {
	dir  *transport.Dir
	co   *correlator.Correlator
	log  *slog.Logger
	opts Options

	fs       *fsnotify.Watcher
	stopOnce sync.Once
	stop     chan struct{}
	done     chan struct{}
}

func New(dir *transport.Dir, co *correlator.Correlator, log *slog.Logger, opts Options) *Watcher {
	if log == nil {
		log = slog.Default()
	}
	if opts.Interval <= 0 {
		opts.Interval = 100 * time.Millisecond
	}
	return &Watcher{
		dir:  dir,
		co:   co,
		log:  log,
		opts: opts,
		stop: make(chan struct{}),
		done: make(chan struct{}),
	}
}

// Start sweeps debris left by a previous run, then launches the loop.
func (w *Watcher) Start() error {
	if w.opts.SweepInterval > 0 {
		if res, err := w.dir.Sweep(w.opts.MaxAge, w.opts.Archive); err != nil {
			w.log.Warn("startup sweep failed", "err", err)
		} else if res.Removed+res.Archived > 0 {
			w.log.Info("startup sweep finished", "removed", res.Removed, "archived", res.Archived)
		}
	}

	if w.opts.Notify {
		fs, err := fsnotify.NewWatcher()
		if err != nil {
			w.log.Warn("directory notifications unavailable, polling only", "err", err)
		} else if err := fs.Add(w.dir.Path()); err != nil {
			w.log.Warn("cannot watch bridge directory, polling only", "err", err)
			_ = fs.Close()
		} else {
			w.fs = fs
		}
	}

	go w.loop()
	return nil
}

// Stop halts the loop and waits for the in-progress pass to finish.
func (w *Watcher) Stop() {
	w.stopOnce.Do(func() { close(w.stop) })
	<-w.done
}

func (w *Watcher) loop() {
	defer close(w.done)
	if w.fs != nil {
		defer w.fs.Close()
	}

	tick := time.NewTicker(w.opts.Interval)
	defer tick.Stop()

	var sweepC <-chan time.Time
	if w.opts.SweepInterval > 0 {
		sweep := time.NewTicker(w.opts.SweepInterval)
		defer sweep.Stop()
		sweepC = sweep.C
	}

	var events chan fsnotify.Event
	var errors chan error
	if w.fs != nil {
		events = w.fs.Events
		errors = w.fs.Errors
	}

	for {
		select {
		case <-w.stop:
			return

		case <-tick.C:
			w.pass()

		case ev := <-events:
			// Responses land via rename; Create covers peers that write in
			// place. Anything else in the directory is not ours to chase.
			if ev.Op&(fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			if !strings.HasPrefix(filepath.Base(ev.Name), "response_") {
				continue
			}
			w.pass()

		case err := <-errors:
			if err != nil {
				w.log.Warn("directory notification error", "err", err)
			}

		case <-sweepC:
			if res, err := w.dir.Sweep(w.opts.MaxAge, w.opts.Archive); err != nil {
				w.log.Warn("retention sweep failed", "err", err)
			} else if res.Removed+res.Archived > 0 {
				w.log.Info("retention sweep finished", "removed", res.Removed, "archived", res.Archived)
			}
		}
	}
}

// pass is one unit of watcher work: deliver every response on disk, then
// expire overdue entries. The watcher is the only component that deletes
// response files, so consumption and cleanup cannot race.
func (w *Watcher) pass() {
	msgs, err := w.dir.PollResponses()
	if err != nil {
		w.log.Error("response scan failed", "err", err)
	}
	for _, m := range msgs {
		if w.co.Resolve(m.ID, m.Payload) {
			_ = w.dir.DeleteResponse(m.ID)
			_ = w.dir.DeleteRequest(m.ID)
			continue
		}
		// Orphan: leftover from a crashed run, or a reply that arrived
		// after its caller gave up. Log it, never silently drop it.
		w.log.Warn("discarding orphan response", "id", m.ID)
		_ = w.dir.DeleteResponse(m.ID)
	}

	for _, rid := range w.co.ExpireOverdue(time.Now()) {
		w.log.Warn("request deadline passed", "id", rid)
	}
}

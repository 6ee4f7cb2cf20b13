package watcher

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DefaultPollInterval is the stat cadence when the watcher has to poll.
const DefaultPollInterval = 2 * time.Second

var (
	ErrFileRemoved    = errors.New("watched file was removed")
	ErrPermission     = errors.New("permission denied")
	ErrAlreadyStarted = errors.New("watcher already started")
)

// Watcher reports external writes to one inventory file. It prefers
// fsnotify events on the containing directory, because atomic writers
// replace the file rather than write into it, and falls back to stat
// polling on mounts where inotify is unreliable. Companion journals
// (a WAL database's -wal/-shm pair) fold into the same change stream:
// a commit touches only the journal until the next checkpoint.
type Watcher struct {
	path       string
	companions []string

	debounce     time.Duration
	pollInterval time.Duration
	forcePoll    bool
	onChange     func()
	onError      func(error)

	mu      sync.RWMutex
	started bool
	polling bool
	fsType  FilesystemType
	last    sourceStamp
	sawFile bool

	fsw       *fsnotify.Watcher
	debouncer *Debouncer
	ctx       context.Context
	cancel    context.CancelFunc
	changeCh  chan struct{}
}

// WatcherOption configures a Watcher.
type WatcherOption func(*Watcher)

// WithDebounceDuration sets how long writes must settle before a change
// notification fires.
func WithDebounceDuration(d time.Duration) WatcherOption {
	return func(w *Watcher) { w.debounce = d }
}

// WithPollInterval sets the stat cadence for polling mode.
func WithPollInterval(d time.Duration) WatcherOption {
	return func(w *Watcher) { w.pollInterval = d }
}

// WithCompanions names sibling files whose writes count as changes to
// the watched file. Companions live in the watched file's directory;
// their absence is never an error.
func WithCompanions(paths ...string) WatcherOption {
	return func(w *Watcher) {
		for _, p := range paths {
			if p == "" {
				continue
			}
			if abs, err := filepath.Abs(p); err == nil {
				w.companions = append(w.companions, abs)
			}
		}
	}
}

// WithOnChange sets a callback invoked after each debounced change.
func WithOnChange(fn func()) WatcherOption {
	return func(w *Watcher) { w.onChange = fn }
}

// WithOnError sets a callback for watch errors, including removal of
// the watched file.
func WithOnError(fn func(error)) WatcherOption {
	return func(w *Watcher) { w.onError = fn }
}

// WithForcePoll skips fsnotify entirely, as CANOPY_FORCE_POLL does.
func WithForcePoll(force bool) WatcherOption {
	return func(w *Watcher) { w.forcePoll = force }
}

// NewWatcher prepares a watcher for path. Nothing happens until Start.
func NewWatcher(path string, opts ...WatcherOption) (*Watcher, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}
	w := &Watcher{
		path:         abs,
		debounce:     DefaultDebounceDuration,
		pollInterval: DefaultPollInterval,
		onChange:     func() {},
		onError:      func(error) {},
		changeCh:     make(chan struct{}, 1),
	}
	for _, opt := range opts {
		opt(w)
	}
	w.debouncer = NewDebouncer(w.debounce)
	return w, nil
}

// sourceStamp summarizes the on-disk state of the watched file and its
// companions: newest mtime of the set, sizes summed. Any difference
// between stamps counts as a change; a spurious trigger costs one empty
// reload, a missed one loses an edit.
type sourceStamp struct {
	mtime time.Time
	size  int64
}

// stamp stats the file set. mainErr is the stat error for the main file
// alone; missing companions are skipped.
func (w *Watcher) stamp() (s sourceStamp, mainErr error) {
	info, mainErr := os.Stat(w.path)
	if mainErr == nil {
		s.mtime = info.ModTime()
		s.size = info.Size()
	}
	for _, p := range w.companions {
		ci, err := os.Stat(p)
		if err != nil {
			continue
		}
		if t := ci.ModTime(); t.After(s.mtime) {
			s.mtime = t
		}
		s.size += ci.Size()
	}
	return s, mainErr
}

// Start takes the baseline stamp and launches the watch goroutine.
// A missing file is not an error: the first tick that sees it appear
// reports a change.
func (w *Watcher) Start() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.started {
		return ErrAlreadyStarted
	}

	base, mainErr := w.stamp()
	if mainErr != nil && os.IsPermission(mainErr) {
		return ErrPermission
	}
	w.last = base
	w.sawFile = mainErr == nil

	w.fsType = DetectFilesystemType(w.path)
	w.polling = w.forcePoll || envBool("CANOPY_FORCE_POLL") || isRemoteFilesystem(w.fsType)
	w.ctx, w.cancel = context.WithCancel(context.Background())

	if !w.polling {
		if fsw, err := fsnotify.NewWatcher(); err != nil {
			w.polling = true
		} else if err := fsw.Add(filepath.Dir(w.path)); err != nil {
			fsw.Close()
			w.polling = true
		} else {
			w.fsw = fsw
		}
	}

	w.started = true
	if w.polling {
		go w.pollLoop(w.ctx)
	} else {
		go w.eventLoop(w.ctx, w.fsw.Events, w.fsw.Errors)
	}
	return nil
}

// Stop shuts the watch goroutine down. The change channel stays open:
// closing it would race fire and wake a blocked receiver into a loop of
// zero values. Stop only runs at program exit, so that receiver goes
// down with the process.
func (w *Watcher) Stop() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if !w.started {
		return
	}
	w.cancel()
	if w.fsw != nil {
		w.fsw.Close()
		w.fsw = nil
	}
	w.debouncer.Cancel()
	w.started = false
}

// eventLoop consumes fsnotify events for the watched directory, keeping
// only the file itself and its journals.
func (w *Watcher) eventLoop(ctx context.Context, events chan fsnotify.Event, errs chan error) {
	main := filepath.Clean(w.path)
	journal := make(map[string]bool, len(w.companions))
	for _, p := range w.companions {
		journal[filepath.Clean(p)] = true
	}

	for {
		select {
		case <-ctx.Done():
			return

		case ev, ok := <-events:
			if !ok {
				return
			}
			name := filepath.Clean(ev.Name)
			if name != main && !journal[name] {
				continue
			}
			switch {
			case ev.Op&fsnotify.Remove != 0:
				// Journals come and go with checkpoints; only losing
				// the main file is an error.
				if name == main {
					w.onError(ErrFileRemoved)
				}
			case ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) != 0:
				w.debouncer.Trigger(w.fire)
			}

		case err, ok := <-errs:
			if !ok {
				return
			}
			w.onError(err)
		}
	}
}

// pollLoop compares stamps on a ticker. Removal of the main file is
// reported once; the stamp baseline survives so a recreate registers as
// a change.
func (w *Watcher) pollLoop(ctx context.Context) {
	ticker := time.NewTicker(w.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			cur, mainErr := w.stamp()
			if mainErr != nil {
				w.reportStatFailure(mainErr)
				continue
			}

			w.mu.Lock()
			changed := cur.mtime.After(w.last.mtime) || cur.size != w.last.size
			if changed {
				w.last = cur
			}
			w.sawFile = true
			w.mu.Unlock()

			if changed {
				w.debouncer.Trigger(w.fire)
			}
		}
	}
}

func (w *Watcher) reportStatFailure(err error) {
	switch {
	case os.IsNotExist(err):
		w.mu.Lock()
		had := w.sawFile
		w.sawFile = false
		w.mu.Unlock()
		if had {
			w.onError(ErrFileRemoved)
		}
	case os.IsPermission(err):
		w.onError(ErrPermission)
	default:
		w.onError(err)
	}
}

// fire delivers one change: callback plus a non-blocking send on the
// channel. A debounce can land after Stop; a late callback would reload
// a closed store, so it is dropped.
func (w *Watcher) fire() {
	w.mu.RLock()
	started := w.started
	w.mu.RUnlock()
	if !started {
		return
	}
	w.onChange()
	select {
	case w.changeCh <- struct{}{}:
	default:
	}
}

// Changed returns the channel that receives after each debounced change,
// as an alternative to the OnChange callback.
func (w *Watcher) Changed() <-chan struct{} { return w.changeCh }

// IsPolling reports whether the watcher runs on stat polling rather
// than fsnotify events.
func (w *Watcher) IsPolling() bool {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.polling
}

// IsStarted reports whether Start has run and Stop has not.
func (w *Watcher) IsStarted() bool {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.started
}

// Path returns the watched file path, absolute.
func (w *Watcher) Path() string { return w.path }

// Companions returns the sibling files folded into the change stream.
func (w *Watcher) Companions() []string {
	return append([]string(nil), w.companions...)
}

// FilesystemType returns the mount classification made at Start.
func (w *Watcher) FilesystemType() FilesystemType {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.fsType
}

// PollInterval returns the stat cadence polling mode would use.
func (w *Watcher) PollInterval() time.Duration {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.pollInterval
}

func envBool(name string) bool {
	switch strings.ToLower(strings.TrimSpace(os.Getenv(name))) {
	case "1", "true", "yes", "y", "on":
		return true
	}
	return false
}

package manifest

import (
	"context"
	"log/slog"

	"github.com/fsnotify/fsnotify"
)

// Watcher watches both discovery roots and turns raw filesystem events into
// the same RescanDiff an explicit rescan_plugins call would produce.
//
// Grounded on the teacher's internal/plugin/loader.WatchDir/handleFSEvent:
// one fsnotify.Watcher, both roots added, every event triggers a full
// re-scan-and-diff rather than trying to interpret individual fs events
// (manifests are small and scans are infrequent, so this is simpler and
// matches what the original rescan_plugins already does on demand).
type Watcher struct {
	fs          *fsnotify.Watcher
	builtinRoot string
	userRoot    string
	logger      *slog.Logger
	known       map[string]*Discovered
}

// NewWatcher creates a Watcher over the two discovery roots. known is the
// plugin set already loaded (e.g. from daemon startup) keyed by plugin id.
func NewWatcher(builtinRoot, userRoot string, known map[string]*Discovered, logger *slog.Logger) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	// Errors adding a root that doesn't exist yet are non-fatal: the root
	// may be created later, and ScanRoot already treats a missing root as
	// "no plugins" rather than an error.
	_ = fw.Add(builtinRoot)
	_ = fw.Add(userRoot)

	if known == nil {
		known = make(map[string]*Discovered)
	}
	return &Watcher{fs: fw, builtinRoot: builtinRoot, userRoot: userRoot, known: known, logger: logger}, nil
}

// Close stops watching.
func (w *Watcher) Close() error { return w.fs.Close() }

// Run blocks, invoking onDiff for every non-empty diff produced by a
// filesystem event, until ctx is cancelled or the watcher is closed.
func (w *Watcher) Run(ctx context.Context, onDiff func(RescanDiff)) {
	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-w.fs.Events:
			if !ok {
				return
			}
			w.handleEvent(event, onDiff)
		case err, ok := <-w.fs.Errors:
			if !ok {
				return
			}
			if w.logger != nil {
				w.logger.Warn("plugin discovery watch error", "error", err)
			}
		}
	}
}

func (w *Watcher) handleEvent(event fsnotify.Event, onDiff func(RescanDiff)) {
	current, err := ScanAll(w.builtinRoot, w.userRoot)
	if err != nil {
		if w.logger != nil {
			w.logger.Warn("plugin rescan failed", "error", err, "event", event.String())
		}
		return
	}

	diff := Diff(w.known, current)
	if len(diff.Added) == 0 && len(diff.Removed) == 0 && len(diff.Updated) == 0 {
		return
	}

	for _, d := range diff.Added {
		w.known[d.Manifest.ID] = d
	}
	for _, d := range diff.Updated {
		w.known[d.Manifest.ID] = d
	}
	for _, id := range diff.Removed {
		delete(w.known, id)
	}

	onDiff(diff)
}

// Package watch reports when files below a scan root change, so a scan can
// be repeated once the tree settles.
package watch

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/harrison/dupescan/internal/fileutil"
	"github.com/harrison/dupescan/internal/models"
)

// DefaultQuietPeriod is how long the tree must be idle before a batch of
// changes is delivered.
const DefaultQuietPeriod = 2 * time.Second

// Watcher watches a directory tree, honouring the traversal filters of a
// scan: hidden directories and directories beyond MaxDepth are not watched.
type Watcher struct {
	watcher *fsnotify.Watcher
	matcher *fileutil.Matcher
	quiet   time.Duration
	onError func(error)
	ignore  []string
}

// New starts watching root and every traversable directory below it.
func New(root string, filters models.Filters, quiet time.Duration) (*Watcher, error) {
	matcher, err := fileutil.NewMatcher(root, filters)
	if err != nil {
		return nil, err
	}
	if quiet <= 0 {
		quiet = DefaultQuietPeriod
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	w := &Watcher{
		watcher: fsw,
		matcher: matcher,
		quiet:   quiet,
		onError: func(error) {},
	}
	if err := w.addRecursive(matcher.Root()); err != nil {
		fsw.Close()
		return nil, err
	}
	return w, nil
}

// OnError installs a callback for watch errors. Errors never stop Run.
func (w *Watcher) OnError(fn func(error)) {
	if fn != nil {
		w.onError = fn
	}
}

// Ignore drops events for paths beginning with any of prefixes, such as a
// report file written below the watched root.
func (w *Watcher) Ignore(prefixes ...string) {
	for _, p := range prefixes {
		if p == "" {
			continue
		}
		if abs, err := filepath.Abs(p); err == nil {
			p = abs
		}
		w.ignore = append(w.ignore, p)
	}
}

// WatchList returns the directories currently watched.
func (w *Watcher) WatchList() []string {
	list := w.watcher.WatchList()
	sort.Strings(list)
	return list
}

// addRecursive adds dir and its traversable subdirectories. Unreadable
// directories are skipped.
func (w *Watcher) addRecursive(dir string) error {
	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == dir && !os.IsPermission(err) {
				return err
			}
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		rel, ok := w.matcher.Rel(path)
		if !ok {
			return filepath.SkipDir
		}
		if w.matcher.PruneDir(rel) {
			return filepath.SkipDir
		}
		if err := w.watcher.Add(path); err != nil {
			if os.IsPermission(err) {
				return filepath.SkipDir
			}
			return err
		}
		return nil
	})
}

// Run delivers batches of changed paths to fn until ctx is done. A batch
// is delivered once no event has arrived for the quiet period. Paths are
// sorted and deduplicated. fn runs on the Run goroutine; events arriving
// while it runs form the next batch.
func (w *Watcher) Run(ctx context.Context, fn func(ctx context.Context, changed []string)) error {
	pending := make(map[string]struct{})
	timer := time.NewTimer(w.quiet)
	timer.Stop()
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case event, ok := <-w.watcher.Events:
			if !ok {
				return nil
			}
			if !w.relevant(event) {
				continue
			}
			pending[event.Name] = struct{}{}
			timer.Reset(w.quiet)

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return nil
			}
			w.onError(err)

		case <-timer.C:
			if len(pending) == 0 {
				continue
			}
			changed := make([]string, 0, len(pending))
			for p := range pending {
				changed = append(changed, p)
			}
			sort.Strings(changed)
			clear(pending)
			fn(ctx, changed)
		}
	}
}

// relevant filters chmod-only events and paths the scan would never see,
// and starts watching newly created directories.
func (w *Watcher) relevant(event fsnotify.Event) bool {
	if event.Op == fsnotify.Chmod {
		return false
	}
	for _, p := range w.ignore {
		if strings.HasPrefix(event.Name, p) {
			return false
		}
	}
	rel, ok := w.matcher.Rel(event.Name)
	if !ok {
		return false
	}
	if event.Has(fsnotify.Create) {
		if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
			if w.matcher.PruneDir(rel) {
				return false
			}
			if err := w.addRecursive(event.Name); err != nil {
				w.onError(err)
			}
			return true
		}
	}
	return w.matcher.Traversable(rel)
}

// Close stops watching.
func (w *Watcher) Close() error {
	return w.watcher.Close()
}

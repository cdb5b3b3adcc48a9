// Package conflict watches a patch unit's target files during the
// manual-resolution pause and reports how many still carry conflict
// markers. The feedback is purely advisory: the sequencer's own marker
// scan decides whether the run may proceed.
package conflict

import (
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/tallgren/regraft/internal/patch"
)

// debounceInterval coalesces editor save bursts into a single rescan.
const debounceInterval = 50 * time.Millisecond

// Watcher observes resolution progress via filesystem events.
type Watcher struct{}

// NewWatcher creates a resolution Watcher.
func NewWatcher() *Watcher {
	return &Watcher{}
}

// Watch starts observing the given repository-relative paths under dir.
// onScan receives the number of files still carrying markers: once
// immediately, then after every debounced batch of writes. The returned
// stop function ends observation and releases the underlying watcher.
func (w *Watcher) Watch(dir string, paths []string, onScan func(remaining int)) (func(), error) {
	fsWatcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	absPaths := make([]string, len(paths))
	watched := map[string]bool{}
	for i, p := range paths {
		abs := filepath.Join(dir, filepath.FromSlash(p))
		absPaths[i] = abs

		// fsnotify watches directories; register each target's parent
		// that exists. Missing parents simply yield no events.
		parent := filepath.Dir(abs)
		if !watched[parent] {
			if info, statErr := os.Stat(parent); statErr == nil && info.IsDir() {
				_ = fsWatcher.Add(parent)
			}
			watched[parent] = true
		}
	}

	stopCh := make(chan struct{})
	var stopOnce sync.Once
	stop := func() {
		stopOnce.Do(func() {
			close(stopCh)
			_ = fsWatcher.Close()
		})
	}

	onScan(scanTargets(absPaths))
	go watchLoop(fsWatcher, stopCh, absPaths, onScan)

	return stop, nil
}

// watchLoop rescans the targets after each debounced batch of writes.
func watchLoop(fsWatcher *fsnotify.Watcher, stopCh chan struct{}, absPaths []string, onScan func(int)) {
	debounce := time.NewTimer(0)
	<-debounce.C

	pending := false
	for {
		select {
		case <-stopCh:
			return

		case event, ok := <-fsWatcher.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			pending = true
			debounce.Reset(debounceInterval)

		case <-debounce.C:
			if pending {
				pending = false
				onScan(scanTargets(absPaths))
			}

		case _, ok := <-fsWatcher.Errors:
			if !ok {
				return
			}
		}
	}
}

// scanTargets counts target files that still carry conflict markers.
func scanTargets(absPaths []string) int {
	remaining := 0
	for _, path := range absPaths {
		data, err := os.ReadFile(path)
		if err != nil {
			continue
		}
		if patch.HasConflictMarkers(string(data)) {
			remaining++
		}
	}
	return remaining
}

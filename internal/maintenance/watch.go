package maintenance

import (
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"

	"github.com/adatrace/ada-trace/pkg/log"
)

// FinalizationWatcher watches the sidecar directory for manifest.json
// writes and fires a callback immediately, rather than waiting for the
// next hourly footer-repair sweep. A single callback rather than a
// registered-listener list, since the footer-repair sweep is the only
// subscriber.
type FinalizationWatcher struct {
	w        *fsnotify.Watcher
	onEvent  func()
	closeOne sync.Once
}

// WatchFinalization starts watching root for manifest.json writes,
// invoking onEvent (expected to re-run the footer-repair sweep) whenever
// one is seen. The returned watcher must be closed on shutdown.
func WatchFinalization(root string, onEvent func()) (*FinalizationWatcher, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := w.Add(root); err != nil {
		w.Close()
		return nil, err
	}

	fw := &FinalizationWatcher{w: w, onEvent: onEvent}
	go fw.loop()
	return fw, nil
}

func (fw *FinalizationWatcher) loop() {
	for {
		select {
		case err, ok := <-fw.w.Errors:
			if !ok {
				return
			}
			log.Errorf("maintenance: finalization watch error: %v", err)
		case e, ok := <-fw.w.Events:
			if !ok {
				return
			}
			if matchesManifestWrite(e) {
				fw.onEvent()
			}
		}
	}
}

func matchesManifestWrite(e fsnotify.Event) bool {
	if !e.Has(fsnotify.Create) && !e.Has(fsnotify.Write) {
		return false
	}
	return strings.HasSuffix(e.Name, "manifest.json")
}

// Close stops the underlying watcher. Safe to call more than once.
func (fw *FinalizationWatcher) Close() {
	fw.closeOne.Do(func() {
		fw.w.Close()
	})
}

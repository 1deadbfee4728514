package dataset

import (
	"context"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/rhinos0608/rhythm-chamber-sub002/internal/logger"
)

// watchDebounce coalesces the write bursts editors and exporters produce.
const watchDebounce = 250 * time.Millisecond

// Watcher reloads the play log when the export file changes on disk.
type Watcher struct {
	path     string
	onReload func(*Dataset)
	fsw      *fsnotify.Watcher
}

// NewWatcher watches path and calls onReload with each successfully parsed
// snapshot. The parent directory is watched so replace-by-rename works.
func NewWatcher(path string, onReload func(*Dataset)) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := fsw.Add(filepath.Dir(path)); err != nil {
		fsw.Close()
		return nil, err
	}

	return &Watcher{
		path:     path,
		onReload: onReload,
		fsw:      fsw,
	}, nil
}

// Run processes filesystem events until ctx is done.
func (w *Watcher) Run(ctx context.Context) {
	var timer *time.Timer
	var timerC <-chan time.Time

	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != filepath.Clean(w.path) {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
				continue
			}
			if timer == nil {
				timer = time.NewTimer(watchDebounce)
				timerC = timer.C
			} else {
				if !timer.Stop() {
					select {
					case <-timer.C:
					default:
					}
				}
				timer.Reset(watchDebounce)
			}
		case <-timerC:
			timer = nil
			timerC = nil
			w.reload()
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			logger.Warn("dataset watch error: %v", err)
		}
	}
}

func (w *Watcher) reload() {
	ds, err := LoadFile(w.path)
	if err != nil {
		logger.Warn("dataset reload failed, keeping previous snapshot: %v", err)
		return
	}
	logger.Info("dataset reloaded: %s (fingerprint %s)", ds.Summary(), ds.Fingerprint)
	w.onReload(ds)
}

// Close stops the underlying filesystem watcher.
func (w *Watcher) Close() error {
	return w.fsw.Close()
}

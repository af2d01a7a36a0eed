package config

import (
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/sirupsen/logrus"
)

const reloadDebounce = 100 * time.Millisecond

// Watcher reloads a Store whenever its settings file changes on disk.
type Watcher struct {
	store   *Store
	watcher *fsnotify.Watcher
	file    string
	closeCh chan struct{}
	done    chan struct{}
	once    sync.Once
}

// Watch starts watching the directory holding the store's settings file.
// The directory is watched rather than the file so that editors which replace
// the file by rename keep triggering reloads.
func Watch(store *Store) (*Watcher, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	path := store.Path()
	if err := w.Add(filepath.Dir(path)); err != nil {
		_ = w.Close()
		return nil, err
	}

	watcher := &Watcher{
		store:   store,
		watcher: w,
		file:    filepath.Clean(path),
		closeCh: make(chan struct{}),
		done:    make(chan struct{}),
	}
	go watcher.run()
	return watcher, nil
}

// Close stops the watcher and waits for its goroutine to exit.
func (w *Watcher) Close() error {
	var err error
	w.once.Do(func() {
		close(w.closeCh)
		err = w.watcher.Close()
		<-w.done
	})
	return err
}

// run reloads once a burst of events has been quiet for reloadDebounce, so
// the last write of a burst is always the one that lands in the store.
func (w *Watcher) run() {
	defer close(w.done)

	var (
		timer *time.Timer
		fire  <-chan time.Time
	)
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			if filepath.Clean(event.Name) != w.file {
				continue
			}
			if timer == nil {
				timer = time.NewTimer(reloadDebounce)
			} else {
				if !timer.Stop() {
					select {
					case <-timer.C:
					default:
					}
				}
				timer.Reset(reloadDebounce)
			}
			fire = timer.C
		case <-fire:
			fire = nil
			w.reload()
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			logrus.WithError(err).Warn("settings watcher error")
		case <-w.closeCh:
			return
		}
	}
}

func (w *Watcher) reload() {
	s, err := w.store.Reload()
	if err != nil {
		logrus.WithError(err).WithField("path", w.file).Warn("settings reload failed, keeping previous values")
		return
	}
	logrus.WithFields(logrus.Fields{
		"path":     w.file,
		"tranquil": s.Tranquil.Enabled,
		"khanda":   s.Khanda.Enabled,
	}).Info("settings reloaded")
}

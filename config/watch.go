package config

import (
	"context"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/sirupsen/logrus"
)

// WatchDebounce coalesces the burst of events editors produce on save.
var WatchDebounce = 250 * time.Millisecond

// Watch sends on notify whenever the file at path is written, created or
// renamed over. The parent directory is watched so that editors replacing
// the file are seen. Sends never block: a pending notification absorbs
// later ones. Watch returns when ctx is done.
func Watch(ctx context.Context, path string, notify chan<- struct{}, logger *logrus.Entry) error {
	target, err := filepath.Abs(path)
	if err != nil {
		return err
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()

	if err := w.Add(filepath.Dir(target)); err != nil {
		return err
	}

	logger.Debugf("watching %s", target)

	var pending <-chan time.Time

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != target {
				continue
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) != 0 {
				pending = time.After(WatchDebounce)
			}
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			logger.Warnf("config watcher: %v", err)
		case <-pending:
			pending = nil
			logger.Infof("config changed: %s", target)
			select {
			case notify <- struct{}{}:
			default:
			}
		}
	}
}

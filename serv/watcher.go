package serv

import (
	"fmt"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
)

// initWatcher reloads the saved filters whenever a file in their directory
// changes. Only runs outside production on the OS filesystem.
func (s *Service) initWatcher() error {
	if s.conf.Production || !s.conf.Filters.Watch || s.osPath == "" {
		return nil
	}

	if err := s.fs.MkdirAll(s.filters.Path(), 0o755); err != nil {
		return err
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}

	dir := filepath.Join(s.osPath, s.filters.Path())
	if err := w.Add(dir); err != nil {
		w.Close() //nolint:errcheck
		return fmt.Errorf("watch directory: %w", err)
	}
	s.watcher = w

	go s.watchFilters(w)

	s.log.Infof("watching saved filters in %s", dir)
	return nil
}

func (s *Service) watchFilters(w *fsnotify.Watcher) {
	for {
		select {
		case ev, ok := <-w.Events:
			if !ok {
				return
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) == 0 {
				continue
			}
			s.log.Debugf("saved filter changed: %s (%s)", filepath.Base(ev.Name), ev.Op)
			s.filters.Reload()

		case err, ok := <-w.Errors:
			if !ok {
				return
			}
			s.log.Warnf("filter watcher: %s", err)
		}
	}
}

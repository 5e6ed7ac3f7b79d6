package portalconfig

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"gopkg.in/tomb.v2"

	"github.com/b0bbywan/go-desktop-portal/logger"
)

var reloadDelay = 200 * time.Millisecond

// Watcher reloads the resolver's preferences when a portals.conf changes.
type Watcher struct {
	resolver *Resolver
	watcher  *fsnotify.Watcher
	tomb     tomb.Tomb
	onReload func()
}

// Watch starts watching every existing configuration directory. onReload,
// if set, runs after each reload.
func (r *Resolver) Watch(onReload func()) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	watched := 0
	for _, dir := range configDirs(r.dirs) {
		if _, err := os.Stat(dir); err != nil {
			continue
		}
		if err := fw.Add(dir); err != nil {
			logger.Warn("[portalconfig] cannot watch %s: %v", dir, err)
			continue
		}
		watched++
	}
	logger.Info("[portalconfig] watching %d configuration directories", watched)

	w := &Watcher{resolver: r, watcher: fw, onReload: onReload}
	w.tomb.Go(w.loop)
	return w, nil
}

func isConfigFile(name string) bool {
	return strings.HasSuffix(filepath.Base(name), "portals.conf")
}

func (w *Watcher) loop() error {
	defer func() {
		if err := w.watcher.Close(); err != nil {
			logger.Warn("[portalconfig] Failed to close watcher: %v", err)
		}
	}()

	timer := time.NewTimer(reloadDelay)
	timer.Stop()
	defer timer.Stop()

	for {
		select {
		case <-w.tomb.Dying():
			return nil

		case event, ok := <-w.watcher.Events:
			if !ok {
				return nil
			}
			if !isConfigFile(event.Name) {
				continue
			}
			logger.Debug("[portalconfig] %s changed (%s)", event.Name, event.Op)
			timer.Reset(reloadDelay)

		case <-timer.C:
			w.resolver.Reload()
			if w.onReload != nil {
				w.onReload()
			}

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return nil
			}
			logger.Error("[portalconfig] fsnotify watcher error: %v", err)
		}
	}
}

// Stop ends the watch and waits for the loop to exit.
func (w *Watcher) Stop() error {
	w.tomb.Kill(nil)
	return w.tomb.Wait()
}

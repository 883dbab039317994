// control/hotreload.go
// Author: momentics <momentics@gmail.com>
//
// Watches a config file and pushes every successful reload into a ConfigStore.

package control

import (
	"context"
	"log"
	"os"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
)

// WatchConfig reloads path into store whenever the file is written or
// replaced, until ctx is done. A file that fails to parse is logged and the
// previous snapshot stays in effect. onLoad, if set, receives each new config.
func WatchConfig(ctx context.Context, path string, store *ConfigStore, logger *log.Logger, onLoad func(Config)) error {
	if logger == nil {
		logger = log.Default()
	}
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()

	// Watch the directory: editors replace files by rename.
	if err := w.Add(filepath.Dir(path)); err != nil {
		return err
	}
	target := filepath.Clean(path)

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
			if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			if fi, err := os.Stat(path); err != nil || fi.Size() == 0 {
				// truncated mid-write or removed; wait for the next event
				continue
			}
			cfg, err := LoadConfig(path)
			if err != nil {
				logger.Printf("[control] reload rejected: %v", err)
				continue
			}
			logger.Printf("[control] reloaded %s", path)
			store.SetConfig(cfg.Map())
			if onLoad != nil {
				onLoad(cfg)
			}
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			logger.Printf("[control] watch %s: %v", path, err)
		}
	}
}

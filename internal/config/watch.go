package config

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// reloadDebounce coalesces the burst of events editors produce on save.
const reloadDebounce = 100 * time.Millisecond

// Watch reloads the configuration whenever the file at path changes and
// passes each valid result to onChange. Load and validation failures go to
// onError and the previous configuration stays in effect. Watch blocks until
// ctx is done.
func Watch(ctx context.Context, path string, onChange func(*Config), onError func(error)) error {
	if path == "" {
		path = DefaultConfigFilename
	}

	path = filepath.Clean(path)

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}

	defer watcher.Close()

	// Watch the directory so atomic renames by editors are seen.
	if err = watcher.Add(filepath.Dir(path)); err != nil {
		return fmt.Errorf("watch directory: %w", err)
	}

	reload := func() {
		cfg, loadErr := Load(path)
		if loadErr != nil {
			if onError != nil {
				onError(fmt.Errorf("reload settings: %w", loadErr))
			}

			return
		}

		onChange(cfg)
	}

	var debounce *time.Timer

	defer func() {
		if debounce != nil {
			debounce.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}

			if filepath.Base(event.Name) != filepath.Base(path) {
				continue
			}

			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}

			if debounce != nil {
				debounce.Stop()
			}

			debounce = time.AfterFunc(reloadDebounce, reload)
		case watchErr, ok := <-watcher.Errors:
			if !ok {
				return nil
			}

			if onError != nil {
				onError(watchErr)
			}
		}
	}
}

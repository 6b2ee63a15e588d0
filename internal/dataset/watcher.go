package dataset

import (
	"context"
	"errors"
	"io/fs"
	"log/slog"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Extensions that count as bundle material (lowercase, without '.').
var bundleExts = map[string]struct{}{
	"json": {},
	"csv":  {},
}

// WatchConfig configures the data-directory watcher.
type WatchConfig struct {
	Root     string        // directory to watch (recursive)
	Debounce time.Duration // coalesce rapid write/rename bursts
}

// StartWatcher watches the data directory for bundle file changes and emits
// the changed paths. Consumers typically ignore the path and refresh the
// whole catalog; the debounce keeps a 50-file copy from triggering 50
// refreshes.
func StartWatcher(ctx context.Context, cfg WatchConfig, logger *slog.Logger) (<-chan string, <-chan error, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Root == "" {
		logger.Error("watcher start failed: no root provided")
		return nil, nil, errors.New("no root provided")
	}

	evCh := make(chan string, 256)
	errCh := make(chan error, 1)

	w, err := fsnotify.NewWatcher()
	if err != nil {
		logger.Error("failed to create fsnotify watcher", "error", err)
		return nil, nil, err
	}

	// Add the root and its subdirectories
	addErr := filepath.WalkDir(cfg.Root, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if d.IsDir() {
			return w.Add(path)
		}
		return nil
	})
	if addErr != nil {
		logger.Error("failed to add data directory", "root", cfg.Root, "error", addErr)
		_ = w.Close()
		return nil, nil, addErr
	}

	go func() {
		defer close(evCh)
		defer close(errCh)
		defer func() { _ = w.Close() }()

		var timer *time.Timer
		var mu sync.Mutex // sendPending fires on the timer goroutine
		pending := map[string]struct{}{}

		sendPending := func() {
			mu.Lock()
			defer mu.Unlock()
			for p := range pending {
				select {
				case evCh <- p:
				default:
				}
				delete(pending, p)
			}
		}

		for {
			select {
			case <-ctx.Done():
				return
			case e := <-w.Events:
				// New subdirectories need their own watch.
				if e.Op&fsnotify.Create == fsnotify.Create {
					// Best-effort; fails harmlessly for plain files.
					_ = w.Add(e.Name)
				}

				if isBundleFile(e.Name) && (e.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Rename|fsnotify.Remove)) != 0 {
					mu.Lock()
					pending[e.Name] = struct{}{}
					mu.Unlock()
					if cfg.Debounce > 0 {
						if timer != nil {
							timer.Stop()
						}
						timer = time.AfterFunc(cfg.Debounce, sendPending)
					} else {
						sendPending()
					}
				}
			case err := <-w.Errors:
				logger.Error("watcher error", "error", err)
				select {
				case errCh <- err:
				default:
				}
			}
		}
	}()

	return evCh, errCh, nil
}

func isBundleFile(path string) bool {
	ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(path)), ".")
	_, ok := bundleExts[ext]
	return ok
}

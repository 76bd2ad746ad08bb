package sensorclient

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/lanekit/lanelink/pkg/log"
)

// statFallbackInterval is how often the waiter polls stat() in case the
// create event is missed (e.g. the daemon replaced a stale socket before
// the watch was registered).
const statFallbackInterval = 100 * time.Millisecond

// WaitForSocket blocks until the daemon's socket file exists at path, the
// timeout expires, or ctx is canceled. The daemon is started by an outside
// supervisor; this only waits for its listening endpoint to appear.
func WaitForSocket(ctx context.Context, path string, timeout time.Duration, logger log.Logger) error {
	if logger == nil {
		logger = log.NewNoopLogger()
	}
	if _, err := os.Stat(path); err == nil {
		return nil
	}

	deadline := time.NewTimer(timeout)
	defer deadline.Stop()

	dir := filepath.Dir(path)
	base := filepath.Base(path)

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("socket waiter: %w", err)
	}
	defer watcher.Close()

	if err := watcher.Add(dir); err != nil {
		return fmt.Errorf("socket waiter: watch %s: %w", dir, err)
	}

	// The socket may have appeared between the first stat and the watch
	// registration.
	if _, err := os.Stat(path); err == nil {
		return nil
	}

	logger.Info("waiting for sensor daemon socket", log.String("path", path))

	fallback := time.NewTicker(statFallbackInterval)
	defer fallback.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case <-deadline.C:
			return fmt.Errorf("socket waiter: %s did not appear within %v", path, timeout)

		case event, ok := <-watcher.Events:
			if !ok {
				return fmt.Errorf("socket waiter: watcher closed")
			}
			if filepath.Base(event.Name) != base {
				continue
			}
			if event.Op&fsnotify.Create != 0 {
				return nil
			}

		case err, ok := <-watcher.Errors:
			if !ok {
				return fmt.Errorf("socket waiter: watcher closed")
			}
			logger.Warn("socket waiter error", log.Err(err))

		case <-fallback.C:
			if _, err := os.Stat(path); err == nil {
				return nil
			}
		}
	}
}

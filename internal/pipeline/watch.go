package pipeline

import (
	"context"
	"fmt"
	"meetscribe/pkg/model"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// BatchFunc runs one batch
type BatchFunc func(ctx context.Context) error

// Watch runs batch once, then again whenever new recordings appear in dir
// and no further change was seen for the debounce period. Batches never
// overlap: changes seen during a batch trigger one more run after it.
func Watch(ctx context.Context, dir string, exts []string, debounce time.Duration, log *zap.Logger, batch BatchFunc) error {
	if log == nil {
		log = zap.NewNop()
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer w.Close()

	if err := w.Add(dir); err != nil {
		return model.NewDiscoveryError("watch "+dir, err)
	}

	run := func() {
		if err := batch(ctx); err != nil && ctx.Err() == nil {
			log.Error("Batch failed", zap.Error(err))
		}
	}

	log.Info("Watching for recordings",
		zap.String("dir", dir),
		zap.Strings("extensions", exts),
		zap.Duration("debounce", debounce))

	run()

	timer := time.NewTimer(debounce)
	timer.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Info("Watcher stopped")
			return nil

		case event, ok := <-w.Events:
			if !ok {
				return fmt.Errorf("watcher events channel closed")
			}
			if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) && !event.Has(fsnotify.Rename) {
				continue
			}
			if !hasExt(event.Name, exts) || strings.HasPrefix(filepath.Base(event.Name), ".") {
				continue
			}
			log.Debug("Recording changed", zap.String("file", event.Name), zap.String("op", event.Op.String()))
			timer.Reset(debounce)

		case <-timer.C:
			log.Info("New recordings detected, starting batch")
			run()

		case err, ok := <-w.Errors:
			if !ok {
				return fmt.Errorf("watcher errors channel closed")
			}
			log.Warn("Watcher error", zap.Error(err))
		}
	}
}

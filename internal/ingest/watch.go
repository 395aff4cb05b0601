package ingest

import (
	"context"
	"fmt"
	"path/filepath"
	"sort"
	"time"

	"github.com/fsnotify/fsnotify"
	log "github.com/sirupsen/logrus"

	"github.com/gopherjs/srcmap/build/mapstore"
)

// settleDelay is how long Watch waits after the last change before ingesting
// a batch, so that a file written in several steps is read once complete.
const settleDelay = 100 * time.Millisecond

// WatchOptions controls Watch.
type WatchOptions struct {
	Options
	// Extensions of the compiled files to ingest. Defaults to ".js" and ".ts".
	Extensions []string
	// StripTrailer removes the inline source map comment from ingested files
	// once the store has been saved.
	StripTrailer bool
	// OnBatch, if not nil, is called after each batch has been ingested and
	// the store saved.
	OnBatch func(paths []string, err error)
}

func (o WatchOptions) matches(path string) bool {
	exts := o.Extensions
	if len(exts) == 0 {
		exts = []string{".js", ".ts"}
	}
	ext := filepath.Ext(path)
	for _, e := range exts {
		if ext == e {
			return true
		}
	}
	return false
}

// Watch ingests compiled files in dir as they are created or written, saving
// the store after every batch. It blocks until ctx is done.
//
// The store must not be used by anything else while Watch is running.
func Watch(ctx context.Context, store *mapstore.Store, dir string, opts WatchOptions) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to start file watcher: %w", err)
	}
	defer watcher.Close()
	if err := watcher.Add(dir); err != nil {
		return fmt.Errorf("failed to watch %q: %w", dir, err)
	}
	log.Infof("Watching %q for compiled files...", dir)

	storePath, _ := filepath.Abs(store.Path())
	pending := map[string]bool{}
	timer := time.NewTimer(settleDelay)
	timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create) == 0 || !opts.matches(ev.Name) {
				continue
			}
			if abs, _ := filepath.Abs(ev.Name); abs == storePath {
				continue
			}
			log.Debugf("Change detected: %s", ev)
			pending[ev.Name] = true
			timer.Reset(settleDelay)
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			log.Warningf("Watcher error: %v", err)
		case <-timer.C:
			paths := make([]string, 0, len(pending))
			for p := range pending {
				paths = append(paths, p)
			}
			sort.Strings(paths)
			pending = map[string]bool{}

			err := ingestBatch(ctx, store, paths, opts)
			if opts.OnBatch != nil {
				opts.OnBatch(paths, err)
			}
		}
	}
}

func ingestBatch(ctx context.Context, store *mapstore.Store, paths []string, opts WatchOptions) error {
	files, err := Files(ctx, store, paths, opts.Options)
	if err != nil {
		log.Warningf("Ingestion finished with errors: %v", err)
	}
	if commitErr := Commit(store, files, opts.StripTrailer); commitErr != nil {
		log.Errorf("Failed to commit ingested source maps: %v", commitErr)
		return commitErr
	}
	if len(files) > 0 {
		log.Infof("Ingested %d source maps.", len(files))
	}
	return err
}

// Package ingest collects inline source maps from compiled files into a
// source map store.
package ingest

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/gopherjs/srcmap/build/mapstore"
	"github.com/gopherjs/srcmap/internal/errorList"
	"github.com/gopherjs/srcmap/internal/sourcemapx"
	"github.com/gopherjs/srcmap/sourcemap"
)

// maxErrors is the number of per-file errors reported before the rest is
// collapsed into errorList.ErrTooManyErrors.
const maxErrors = 10

// Options controls ingestion.
type Options struct {
	// Parallelism limits the number of files processed at once. Defaults to
	// runtime.NumCPU().
	Parallelism int
}

func (o Options) parallelism() int64 {
	if o.Parallelism > 0 {
		return int64(o.Parallelism)
	}
	return int64(runtime.NumCPU())
}

// Ingested is a compiled file whose source map was added to the store.
type Ingested struct {
	// Path is the absolute path of the compiled file.
	Path string
	// Code is the file content without the inline source map comment.
	Code string

	mode os.FileMode
}

type extracted struct {
	Ingested
	m   *sourcemap.Map
	err error
}

// Files reads the compiled files concurrently and adds every inline source
// map found to the store, keyed by the file's absolute path. Files without a
// trailer are skipped.
//
// A failure to process one file doesn't prevent other files from being
// ingested. All failures are returned as an errorList.ErrorList. The store is
// not saved, and the files on disk are left untouched. Returns the files
// whose maps were added, in input order.
func Files(ctx context.Context, store *mapstore.Store, paths []string, opts Options) ([]Ingested, error) {
	results := make([]extracted, len(paths))
	sem := semaphore.NewWeighted(opts.parallelism())
	g, gctx := errgroup.WithContext(ctx)
	for i, path := range paths {
		i, path := i, path
		if err := sem.Acquire(gctx, 1); err != nil {
			break
		}
		g.Go(func() error {
			defer sem.Release(1)
			results[i] = extractFile(path)
			return gctx.Err()
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	// Store isn't safe for concurrent use, add maps in input order.
	var (
		errs  errorList.ErrorList
		added []Ingested
	)
	for _, r := range results {
		if r.err != nil {
			errs = errs.Append(r.err)
			continue
		}
		if r.m == nil {
			continue
		}
		store.Add(r.Path, r.m)
		added = append(added, r.Ingested)
	}
	if len(errs) > 0 {
		log.Warningf("Failed to ingest %d of %d files.", len(errs), len(paths))
	}
	return added, errs.Trim(maxErrors).ErrOrNil()
}

func extractFile(path string) extracted {
	abs, err := filepath.Abs(path)
	if err != nil {
		return extracted{Ingested: Ingested{Path: path}, err: fmt.Errorf("%s: %w", path, err)}
	}
	r := extracted{Ingested: Ingested{Path: abs}}

	info, err := os.Stat(abs)
	if err != nil {
		r.err = fmt.Errorf("%w: %s", sourcemap.ErrFileMissing, err)
		return r
	}
	text, err := os.ReadFile(abs)
	if err != nil {
		r.err = fmt.Errorf("%s: %w", abs, err)
		return r
	}
	code, m, err := sourcemapx.Extract(string(text))
	if err != nil {
		r.err = fmt.Errorf("%s: %w", abs, err)
		return r
	}
	if m == nil {
		log.Debugf("No inline source map in %q, skipping.", abs)
		return r
	}
	r.Code, r.mode, r.m = code, info.Mode().Perm(), m
	return r
}

// Strip rewrites ingested files without their inline source map comment.
//
// Once stripped, the store is the only copy of a file's source map, so Strip
// must only be called after the store has been saved successfully.
func Strip(files []Ingested) error {
	var errs errorList.ErrorList
	for _, f := range files {
		mode := f.mode
		if mode == 0 {
			mode = 0o644
		}
		if err := os.WriteFile(f.Path, []byte(f.Code), mode); err != nil {
			errs = errs.Append(fmt.Errorf("failed to strip source map comment from %q: %w", f.Path, err))
		}
	}
	return errs.Trim(maxErrors).ErrOrNil()
}

// Commit saves the store and then, if strip is set, removes the inline
// source map comments from the ingested files. Nothing is stripped if the
// store couldn't be saved.
func Commit(store *mapstore.Store, files []Ingested, strip bool) error {
	if len(files) == 0 {
		return nil
	}
	if err := store.Save(); err != nil {
		return err
	}
	if !strip {
		return nil
	}
	return Strip(files)
}

// Package cache persists decoded mapping tables between runs, so that
// remapping stack traces against large source maps doesn't have to decode the
// same mappings string over and over.
package cache

import (
	"compress/gzip"
	"crypto/sha256"
	"encoding/gob"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/gopherjs/srcmap/sourcemap"
)

// cacheRoot is the base path for the table cache.
var cacheRoot = func() string {
	path, err := os.UserCacheDir()
	if err == nil {
		return filepath.Join(path, "srcmap", "table_cache")
	}
	return filepath.Join(os.TempDir(), "srcmap_table_cache")
}()

// formatVersion must be bumped whenever the encoding of sourcemap.Table
// changes, which invalidates all previously cached tables.
const formatVersion = 1

// Clear the cache. This will remove *all* cached tables from the default
// cache directory.
func Clear() error {
	return os.RemoveAll(cacheRoot)
}

// TableCache stores decoded mapping tables keyed by the mappings string they
// were decoded from.
//
// The cache is non-durable: any store and load errors are logged and simply
// lead to a cache miss. Nil pointer to TableCache is valid and disables
// caching.
//
// Since the key is a hash of the mappings string itself, a cached table can
// never be stale. There is no upper limit on the cache size, it can be
// cleared with Clear().
type TableCache struct {
	// Dir overrides the default cache directory when not empty.
	Dir string
}

func (tc *TableCache) root() string {
	if tc.Dir != "" {
		return tc.Dir
	}
	return cacheRoot
}

// cachedPath returns the location of the cached table for the given mappings.
func (tc *TableCache) cachedPath(mappings string) string {
	sum := fmt.Sprintf("%x", sha256.Sum256([]byte(fmt.Sprintf("v%d:%s", formatVersion, mappings))))
	return filepath.Join(tc.root(), sum[0:2], sum)
}

// Store the decoded table of the given mappings string. Returns true if the
// table was persisted.
func (tc *TableCache) Store(mappings string, table sourcemap.Table) bool {
	if tc == nil {
		return false // Caching is disabled.
	}
	if len(table) == 0 {
		return false // Nothing worth caching.
	}

	start := time.Now()
	path := tc.cachedPath(mappings)
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		log.Warningf("Failed to create table cache directory: %v", err)
		return false
	}
	// Write the table in a temporary file first to avoid concurrency errors.
	f, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path))
	if err != nil {
		log.Warningf("Failed to create temporary table cache file: %v", err)
		return false
	}
	defer f.Close()
	if err := serialize(table, f); err != nil {
		log.Warningf("Failed to write table cache %q: %v", path, err)
		// Make sure we don't leave a half-written table behind.
		os.Remove(f.Name())
		return false
	}
	f.Close()
	// Rename fully written file into its permanent name.
	if err := os.Rename(f.Name(), path); err != nil {
		log.Warningf("Failed to rename table cache %q to %q: %v", f.Name(), path, err)
		return false
	}
	dur := time.Since(start).Round(time.Millisecond)
	log.Infof("Stored mapping table with %d entries as %q (%v).", len(table), path, dur)
	return true
}

// Load a previously stored table for the given mappings string.
func (tc *TableCache) Load(mappings string) (sourcemap.Table, bool) {
	if tc == nil {
		return nil, false // Caching is disabled.
	}

	start := time.Now()
	path := tc.cachedPath(mappings)
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			log.Infof("No cached mapping table at %q.", path)
		} else {
			log.Warningf("Failed to open cached mapping table at %q: %v", path, err)
		}
		return nil, false // Cache miss.
	}
	defer f.Close()
	table, err := deserialize(f)
	if err != nil {
		log.Warningf("Failed to read cached mapping table at %q: %v", path, err)
		return nil, false // Invalid/corrupted table, cache miss.
	}
	dur := time.Since(start).Round(time.Millisecond)
	log.Infof("Found cached mapping table with %d entries (%v).", len(table), dur)
	return table, true
}

func serialize(table sourcemap.Table, w io.Writer) (err error) {
	zw := gzip.NewWriter(w)
	defer func() {
		// This close flushes the gzip but does not close the given writer.
		if closeErr := zw.Close(); err == nil {
			err = closeErr
		}
	}()
	return gob.NewEncoder(zw).Encode(table)
}

func deserialize(r io.Reader) (table sourcemap.Table, err error) {
	zr, err := gzip.NewReader(r)
	if err != nil {
		return nil, err
	}
	defer func() {
		// This close checks the gzip checksum but does not close the given reader.
		if closeErr := zr.Close(); err == nil {
			err = closeErr
		}
	}()
	if err := gob.NewDecoder(zr).Decode(&table); err != nil {
		return nil, err
	}
	return table, nil
}

package cache

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/gopherjs/srcmap/sourcemap"
)

func fakeTable() sourcemap.Table {
	return sourcemap.Table{
		{GeneratedLine: 0, GeneratedColumn: 0, SourceIndex: 0, OriginalLine: 0, OriginalColumn: 0, NameIndex: sourcemap.NoName},
		{GeneratedLine: 0, GeneratedColumn: 5, SourceIndex: 1, OriginalLine: 3, OriginalColumn: 2, NameIndex: 0},
		{GeneratedLine: 2, GeneratedColumn: 1, SourceIndex: 1, OriginalLine: 4, OriginalColumn: 0, NameIndex: sourcemap.NoName},
	}
}

func TestStore(t *testing.T) {
	cacheForTest(t)

	const mappings = "AAAA,KCGEA;;CACH"
	want := fakeTable()
	tc := &TableCache{}
	if got, ok := tc.Load(mappings); ok {
		t.Errorf("Got: table %v was found in the cache. Want: empty cache.", got)
	}

	if !tc.Store(mappings, want) {
		t.Fatalf("Failed to store table for %q.", mappings)
	}

	got, ok := tc.Load(mappings)
	if !ok {
		t.Fatalf("Got: table for %q was not found in the cache. Want: table found.", mappings)
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Loaded table is different from stored (-want,+got):\n%s", diff)
	}

	// Make sure the mappings string is the cache key.
	if got, ok := tc.Load(mappings + ",C"); ok {
		t.Errorf("Got: %v was found in cache. Want: miss for mappings that weren't cached.", got)
	}
}

func TestCustomDir(t *testing.T) {
	cacheForTest(t)

	dir := t.TempDir()
	tc := &TableCache{Dir: dir}
	if !tc.Store("AAAA", fakeTable()) {
		t.Fatalf("Failed to store table in custom directory.")
	}
	if got := filepath.Dir(filepath.Dir(tc.cachedPath("AAAA"))); got != dir {
		t.Errorf("Got: table stored under %q. Want: %q.", got, dir)
	}
	if _, ok := (&TableCache{}).Load("AAAA"); ok {
		t.Errorf("Got: table found in the default cache. Want: it to be stored only in %q.", dir)
	}
}

func TestNilCache(t *testing.T) {
	var tc *TableCache
	if tc.Store("AAAA", fakeTable()) {
		t.Errorf("Got: nil cache stored a table. Want: caching disabled.")
	}
	if _, ok := tc.Load("AAAA"); ok {
		t.Errorf("Got: nil cache loaded a table. Want: caching disabled.")
	}
}

func TestEmptyTable(t *testing.T) {
	cacheForTest(t)

	tc := &TableCache{}
	if tc.Store("", nil) {
		t.Errorf("Got: empty table stored. Want: empty tables are not cached.")
	}
}

func TestCorruptedCache(t *testing.T) {
	cacheForTest(t)

	tc := &TableCache{}
	const mappings = "AAAA"
	if !tc.Store(mappings, fakeTable()) {
		t.Fatalf("Failed to store table for %q.", mappings)
	}
	if err := os.WriteFile(tc.cachedPath(mappings), []byte("garbage"), 0o640); err != nil {
		t.Fatalf("Failed to corrupt cache file: %s", err)
	}
	if got, ok := tc.Load(mappings); ok {
		t.Errorf("Got: table %v loaded from a corrupted file. Want: cache miss.", got)
	}
}

func TestClear(t *testing.T) {
	cacheForTest(t)

	tc := &TableCache{}
	if !tc.Store("AAAA", fakeTable()) {
		t.Fatalf("Failed to store table.")
	}
	if err := Clear(); err != nil {
		t.Fatalf("Got: Clear() returned error: %s. Want: no error.", err)
	}
	if _, ok := tc.Load("AAAA"); ok {
		t.Errorf("Got: table found after Clear(). Want: empty cache.")
	}
}

func cacheForTest(t *testing.T) {
	t.Helper()
	originalRoot := cacheRoot
	t.Cleanup(func() { cacheRoot = originalRoot })
	cacheRoot = t.TempDir()
}

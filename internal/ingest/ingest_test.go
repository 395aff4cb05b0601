package ingest

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/gopherjs/srcmap/build/mapstore"
	"github.com/gopherjs/srcmap/internal/srctesting"
	"github.com/gopherjs/srcmap/internal/testingx"
	"github.com/gopherjs/srcmap/sourcemap"
)

const fixtures = `
-- out/plain.js --
console.log("no source map here");
-- out/broken.js --
run();
//# sourceMappingURL=data:application/json;base64,!!!not-base64!!!
-- out/nested/util.js --
console.log("still no source map");
`

func writeCompiled(t *testing.T, path, code string, mappings ...srctesting.Mapping) {
	t.Helper()
	text := srctesting.Compiled(t, code, filepath.Base(path), mappings...)
	if err := os.WriteFile(path, []byte(text), 0o640); err != nil {
		t.Fatalf("Failed to write compiled file: %s", err)
	}
}

func TestFiles(t *testing.T) {
	dir := t.TempDir()
	files := srctesting.WriteArchive(t, dir, fixtures)
	app := filepath.Join(dir, "out", "app.js")
	writeCompiled(t, app, "main();", srctesting.Mapping{Source: "src/app.ts", OrigLine: 2, OrigCol: 4})
	missing := filepath.Join(dir, "out", "missing.js")

	store := mapstore.New(filepath.Join(dir, mapstore.FileName))
	ingested, err := Files(context.Background(), store, append(files, app, missing), Options{Parallelism: 2})

	if len(ingested) != 1 || ingested[0].Path != app || ingested[0].Code != "main();\n" {
		t.Errorf("Got: ingested files %+v. Want: only %q with its code.", ingested, app)
	}
	if !errors.Is(err, sourcemap.ErrData) {
		t.Errorf("Got: Files() returned error %v. Want: an error wrapping ErrData for the broken file.", err)
	}
	if !errors.Is(err, sourcemap.ErrFileMissing) {
		t.Errorf("Got: Files() returned error %v. Want: an error wrapping ErrFileMissing for the missing file.", err)
	}

	if diff := cmp.Diff([]string{sourcemap.NormalizePath(app)}, store.Paths()); diff != "" {
		t.Errorf("Store paths differ (-want,+got):\n%s", diff)
	}
	pos := testingx.Must[sourcemap.Position](t)(testingx.Must[*sourcemap.Map](t)(store.Get(app)).Lookup(0, 0))
	if want := (sourcemap.Position{Source: "src/app.ts", Line: 2, Col: 4}); pos != want {
		t.Errorf("Got: %s. Want: %s.", pos, want)
	}

	if _, err := os.Stat(store.Path()); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("Got: store file stat error %v. Want: the store not saved by Files().", err)
	}
}

func TestCommit(t *testing.T) {
	setup := func(t *testing.T, storePath string) (string, string, *mapstore.Store, []Ingested) {
		t.Helper()
		dir := t.TempDir()
		app := filepath.Join(dir, "app.js")
		writeCompiled(t, app, "main();", srctesting.Mapping{Source: "src/app.ts"})
		original := string(testingx.Must[[]byte](t)(os.ReadFile(app)))
		store := mapstore.New(storePath)
		files, err := Files(context.Background(), store, []string{app}, Options{})
		if err != nil {
			t.Fatalf("Got: Files() returned error: %s. Want: no error.", err)
		}
		return app, original, store, files
	}

	t.Run("strip after save", func(t *testing.T) {
		app, _, store, files := setup(t, filepath.Join(t.TempDir(), mapstore.FileName))
		if err := Commit(store, files, true); err != nil {
			t.Fatalf("Got: Commit() returned error: %s. Want: no error.", err)
		}
		got := string(testingx.Must[[]byte](t)(os.ReadFile(app)))
		if want := "main();\n"; got != want {
			t.Errorf("Got: stripped file %q. Want: %q.", got, want)
		}
		saved := mapstore.New(store.Path())
		if err := saved.Load(); err != nil || !saved.Have(app) {
			t.Errorf("Got: saved store paths %v (load error %v). Want: %q included.", saved.Paths(), err, app)
		}
	})

	t.Run("no strip", func(t *testing.T) {
		app, original, store, files := setup(t, filepath.Join(t.TempDir(), mapstore.FileName))
		if err := Commit(store, files, false); err != nil {
			t.Fatalf("Got: Commit() returned error: %s. Want: no error.", err)
		}
		if got := string(testingx.Must[[]byte](t)(os.ReadFile(app))); got != original {
			t.Errorf("Got: file rewritten to %q. Want: left untouched.", got)
		}
	})

	t.Run("save failure keeps trailer", func(t *testing.T) {
		// The store directory can't be created below a regular file.
		blocker := filepath.Join(t.TempDir(), "blocker")
		if err := os.WriteFile(blocker, nil, 0o640); err != nil {
			t.Fatalf("Failed to write file: %s", err)
		}
		app, original, store, files := setup(t, filepath.Join(blocker, mapstore.FileName))
		if err := Commit(store, files, true); err == nil {
			t.Fatalf("Got: Commit() returned no error. Want: the save failure.")
		}
		if got := string(testingx.Must[[]byte](t)(os.ReadFile(app))); got != original {
			t.Errorf("Got: file rewritten to %q after a failed save. Want: trailer kept.", got)
		}
	})
}

func TestFilesCanceled(t *testing.T) {
	dir := t.TempDir()
	files := srctesting.WriteArchive(t, dir, fixtures)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	store := mapstore.New(filepath.Join(dir, mapstore.FileName))
	if _, err := Files(ctx, store, files, Options{}); !errors.Is(err, context.Canceled) {
		t.Errorf("Got: Files() returned error %v. Want: context.Canceled.", err)
	}
}

func TestWatch(t *testing.T) {
	dir := t.TempDir()
	out := filepath.Join(dir, "out")
	staging := filepath.Join(dir, "staging")
	for _, d := range []string{out, staging} {
		if err := os.Mkdir(d, 0o750); err != nil {
			t.Fatalf("Failed to create directory: %s", err)
		}
	}
	storePath := filepath.Join(dir, mapstore.FileName)
	store := mapstore.New(storePath)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	batches := make(chan []string, 10)
	done := make(chan error, 1)
	go func() {
		done <- Watch(ctx, store, out, WatchOptions{
			OnBatch: func(paths []string, err error) {
				select {
				case batches <- paths:
				default:
				}
			},
		})
	}()

	// Write the file elsewhere and move it in, so that the watcher never sees
	// it partially written.
	app := filepath.Join(out, "app.js")
	tmp := filepath.Join(staging, "app.js")
	ignored := filepath.Join(out, "notes.txt")
	deadline := time.After(10 * time.Second)
	ingested := false
	for !ingested {
		writeCompiled(t, tmp, "main();", srctesting.Mapping{Source: "src/app.ts", OrigLine: 1})
		if err := os.Rename(tmp, app); err != nil {
			t.Fatalf("Failed to move compiled file: %s", err)
		}
		writeCompiled(t, ignored, "notes", srctesting.Mapping{Source: "notes.md"})

		select {
		case paths := <-batches:
			for _, p := range paths {
				if filepath.Ext(p) != ".js" {
					t.Errorf("Got: %q ingested. Want: only .js files.", p)
				}
				ingested = ingested || p == app
			}
		case <-time.After(time.Second):
			// The watcher may not have been ready yet, try again.
		case <-deadline:
			t.Fatalf("Got: no batch ingested. Want: app.js ingested.")
		}
	}

	cancel()
	if err := <-done; err != nil {
		t.Fatalf("Got: Watch() returned error: %s. Want: no error.", err)
	}

	saved := mapstore.New(storePath)
	if err := saved.Load(); err != nil {
		t.Fatalf("Got: Load() returned error: %s. Want: no error.", err)
	}
	if !saved.Have(app) {
		t.Errorf("Got: saved store paths %v. Want: %q included.", saved.Paths(), app)
	}
}

func TestWatchMissingDir(t *testing.T) {
	store := mapstore.New(filepath.Join(t.TempDir(), mapstore.FileName))
	err := Watch(context.Background(), store, filepath.Join(t.TempDir(), "nope"), WatchOptions{})
	if err == nil {
		t.Errorf("Got: Watch() on a missing directory returned no error. Want: error.")
	}
}

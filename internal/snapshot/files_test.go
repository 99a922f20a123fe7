package snapshot_test

import (
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"

	"snapbak/internal/integrity"
	"snapbak/internal/snapshot"
)

// sourceStorePath maps a canonical POSIX source path to its expected
// location under the store root.
func sourceStorePath(t *testing.T, storeRoot, source string) string {
	t.Helper()
	canonical, err := snapshot.CanonicalPath(source)
	if err != nil {
		t.Fatalf("CanonicalPath(%q) error = %v", source, err)
	}
	rel := strings.TrimPrefix(canonical, string(filepath.Separator))
	return filepath.Join(storeRoot, filepath.FromSlash(rel))
}

func TestFilesCopyEntry(t *testing.T) {
	t.Parallel()

	t.Run("directory is recreated", func(t *testing.T) {
		t.Parallel()
		src := t.TempDir()
		sub := filepath.Join(src, "nested", "dir")
		if err := os.MkdirAll(sub, 0755); err != nil {
			t.Fatal(err)
		}

		store, err := snapshot.NewFiles(filepath.Join(t.TempDir(), "files"))
		if err != nil {
			t.Fatal(err)
		}
		dest, err := store.CopyEntry(sub)
		if err != nil {
			t.Fatalf("CopyEntry() error = %v", err)
		}
		fi, err := os.Stat(dest)
		if err != nil || !fi.IsDir() {
			t.Errorf("destination %q is not a directory", dest)
		}
	})

	t.Run("file is copied byte for byte", func(t *testing.T) {
		t.Parallel()
		src := t.TempDir()
		file := filepath.Join(src, "f.txt")
		if err := os.WriteFile(file, []byte("hello world"), 0644); err != nil {
			t.Fatal(err)
		}

		store, err := snapshot.NewFiles(filepath.Join(t.TempDir(), "files"))
		if err != nil {
			t.Fatal(err)
		}
		dest, err := store.CopyEntry(file)
		if err != nil {
			t.Fatalf("CopyEntry() error = %v", err)
		}
		content, err := os.ReadFile(dest)
		if err != nil {
			t.Fatal(err)
		}
		if string(content) != "hello world" {
			t.Errorf("copied content = %q", content)
		}
	})

	t.Run("symlink keeps its raw target", func(t *testing.T) {
		t.Parallel()
		if runtime.GOOS == "windows" {
			t.Skip("symlinks unsupported on windows")
		}
		src := t.TempDir()
		if err := os.WriteFile(filepath.Join(src, "f.txt"), []byte("x"), 0644); err != nil {
			t.Fatal(err)
		}
		link := filepath.Join(src, "link")
		if err := os.Symlink("f.txt", link); err != nil {
			t.Fatal(err)
		}

		store, err := snapshot.NewFiles(filepath.Join(t.TempDir(), "files"))
		if err != nil {
			t.Fatal(err)
		}
		dest, err := store.CopyEntry(link)
		if err != nil {
			t.Fatalf("CopyEntry() error = %v", err)
		}
		target, err := os.Readlink(dest)
		if err != nil {
			t.Fatalf("destination is not a symlink: %v", err)
		}
		if target != "f.txt" {
			t.Errorf("link target = %q, want f.txt", target)
		}
	})

	t.Run("nonexistent entry fails", func(t *testing.T) {
		t.Parallel()
		store, err := snapshot.NewFiles(filepath.Join(t.TempDir(), "files"))
		if err != nil {
			t.Fatal(err)
		}
		if _, err := store.CopyEntry(filepath.Join(t.TempDir(), "ghost")); err == nil {
			t.Error("CopyEntry() succeeded on nonexistent entry")
		}
	})
}

func TestFilesSize(t *testing.T) {
	t.Parallel()

	src := t.TempDir()
	if err := os.WriteFile(filepath.Join(src, "a.txt"), []byte("12345"), 0644); err != nil {
		t.Fatal(err)
	}

	store, err := snapshot.NewFiles(filepath.Join(t.TempDir(), "files"))
	if err != nil {
		t.Fatal(err)
	}
	if _, err := store.CopyEntry(filepath.Join(src, "a.txt")); err != nil {
		t.Fatal(err)
	}
	if size := store.Size(); size < 5 {
		t.Errorf("Size() = %d, want at least 5", size)
	}
}

func TestCheckFiles(t *testing.T) {
	t.Parallel()

	// setup copies a small tree into a fresh store and returns the store
	// root plus the canonical indexed paths.
	setup := func(t *testing.T) (string, []string) {
		t.Helper()
		src := t.TempDir()
		dir := filepath.Join(src, "docs")
		if err := os.Mkdir(dir, 0755); err != nil {
			t.Fatal(err)
		}
		file := filepath.Join(dir, "f.txt")
		if err := os.WriteFile(file, []byte("hello"), 0644); err != nil {
			t.Fatal(err)
		}

		storeRoot := filepath.Join(t.TempDir(), "files")
		store, err := snapshot.NewFiles(storeRoot)
		if err != nil {
			t.Fatal(err)
		}
		var indexed []string
		for _, p := range []string{dir, file} {
			if _, err := store.CopyEntry(p); err != nil {
				t.Fatal(err)
			}
			canonical, err := snapshot.CanonicalPath(p)
			if err != nil {
				t.Fatal(err)
			}
			indexed = append(indexed, canonical)
		}
		return storeRoot, indexed
	}

	t.Run("consistent store reports no problems", func(t *testing.T) {
		t.Parallel()
		storeRoot, indexed := setup(t)
		if f := snapshot.CheckFiles(storeRoot, indexed); f != nil {
			t.Errorf("CheckFiles() = %s", f.Message())
		}
	})

	t.Run("missing store root", func(t *testing.T) {
		t.Parallel()
		f := snapshot.CheckFiles(filepath.Join(t.TempDir(), "files"), nil)
		if f == nil || f.Kind != integrity.FilesDirMissing {
			t.Errorf("CheckFiles() = %v, want FilesDirMissing", f)
		}
	})

	t.Run("stray entry is present but not indexed", func(t *testing.T) {
		t.Parallel()
		storeRoot, indexed := setup(t)
		stray := filepath.Join(storeRoot, "stray.txt")
		if err := os.WriteFile(stray, []byte("x"), 0644); err != nil {
			t.Fatal(err)
		}
		f := snapshot.CheckFiles(storeRoot, indexed)
		if f == nil || f.Kind != integrity.PresentButNotIndexed {
			t.Fatalf("CheckFiles() = %v, want PresentButNotIndexed", f)
		}
		if f.Path != stray {
			t.Errorf("finding path = %q, want %q", f.Path, stray)
		}
	})

	t.Run("removed entry is indexed but not present", func(t *testing.T) {
		t.Parallel()
		storeRoot, indexed := setup(t)
		// Remove the stored copy of the deepest indexed entry.
		stored := sourceStorePath(t, storeRoot, indexed[1])
		if err := os.Remove(stored); err != nil {
			t.Fatal(err)
		}
		f := snapshot.CheckFiles(storeRoot, indexed)
		if f == nil || f.Kind != integrity.IndexedButMissing {
			t.Fatalf("CheckFiles() = %v, want IndexedButMissing", f)
		}
		if f.Path != indexed[1] {
			t.Errorf("finding path = %q, want %q", f.Path, indexed[1])
		}
	})

	t.Run("ancestor directories of indexed entries are tolerated", func(t *testing.T) {
		t.Parallel()
		storeRoot, indexed := setup(t)
		// Only the file is indexed; its parent chain in the store is not,
		// but must not be reported.
		if f := snapshot.CheckFiles(storeRoot, indexed[1:]); f != nil {
			t.Errorf("CheckFiles() = %s, want no problems", f.Message())
		}
	})
}

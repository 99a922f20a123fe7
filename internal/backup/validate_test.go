package backup

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"snapbak/internal/snapshot"
)

func testBackup(t *testing.T) *Backup {
	t.Helper()
	b, err := Open(t.TempDir(), snapshot.NewNopLogger(), snapshot.RealClock{})
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	return b
}

func TestRemoveNonexistentPaths(t *testing.T) {
	t.Parallel()
	b := testBackup(t)

	existent := t.TempDir()
	nonexistent := filepath.Join(existent, "foobar")

	got := b.removeNonexistentPaths([]string{existent, nonexistent})
	if !reflect.DeepEqual(got, []string{existent}) {
		t.Errorf("removeNonexistentPaths() = %v", got)
	}
}

func TestRemoveDuplicatedPaths(t *testing.T) {
	t.Parallel()

	t.Run("first occurrence wins", func(t *testing.T) {
		t.Parallel()
		b := testBackup(t)
		path1 := t.TempDir()
		path2 := t.TempDir()
		path3 := path1
		path4 := t.TempDir()

		got := b.removeDuplicatedPaths([]string{path1, path2, path3, path4})
		if !reflect.DeepEqual(got, []string{path1, path2, path4}) {
			t.Errorf("removeDuplicatedPaths() = %v", got)
		}
	})

	t.Run("order is preserved", func(t *testing.T) {
		t.Parallel()
		b := testBackup(t)
		paths := []string{t.TempDir(), t.TempDir(), t.TempDir()}

		got := b.removeDuplicatedPaths(paths)
		if !reflect.DeepEqual(got, paths) {
			t.Errorf("removeDuplicatedPaths() = %v, want %v", got, paths)
		}
	})

	t.Run("distinct spellings of one path are duplicates", func(t *testing.T) {
		t.Parallel()
		b := testBackup(t)
		dir := t.TempDir()
		spelled := filepath.Join(dir, ".")

		got := b.removeDuplicatedPaths([]string{dir, spelled})
		if !reflect.DeepEqual(got, []string{dir}) {
			t.Errorf("removeDuplicatedPaths() = %v", got)
		}
	})
}

func TestRemoveOverlappingPaths(t *testing.T) {
	t.Parallel()

	t.Run("descendants are dropped", func(t *testing.T) {
		t.Parallel()
		b := testBackup(t)
		tmp := t.TempDir()
		path1 := filepath.Join(tmp, "aaa")
		path2 := filepath.Join(tmp, "aaa", "bbb")
		path3 := filepath.Join(tmp, "aaa", "bbb", "ccc")
		path4 := filepath.Join(tmp, "xxx")
		if err := os.MkdirAll(path3, 0755); err != nil {
			t.Fatal(err)
		}
		if err := os.MkdirAll(path4, 0755); err != nil {
			t.Fatal(err)
		}

		got := b.removeOverlappingPaths([]string{path1, path3, path4, path2})
		if !reflect.DeepEqual(got, []string{path1, path4}) {
			t.Errorf("removeOverlappingPaths() = %v", got)
		}
	})

	t.Run("two equal paths both survive", func(t *testing.T) {
		t.Parallel()
		b := testBackup(t)
		tmp := t.TempDir()
		path := filepath.Join(tmp, "aaa", "bbb")
		if err := os.MkdirAll(path, 0755); err != nil {
			t.Fatal(err)
		}

		got := b.removeOverlappingPaths([]string{path, path})
		if !reflect.DeepEqual(got, []string{path, path}) {
			t.Errorf("removeOverlappingPaths() = %v", got)
		}
	})
}

func TestValidateInputPathsIdempotent(t *testing.T) {
	t.Parallel()
	b := testBackup(t)

	tmp := t.TempDir()
	parent := filepath.Join(tmp, "aaa")
	child := filepath.Join(parent, "bbb")
	other := filepath.Join(tmp, "xxx")
	if err := os.MkdirAll(child, 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.MkdirAll(other, 0755); err != nil {
		t.Fatal(err)
	}

	once := b.validateInputPaths([]string{parent, child, other, other,
		filepath.Join(tmp, "missing")})
	twice := b.validateInputPaths(once)
	if !reflect.DeepEqual(once, twice) {
		t.Errorf("validation not idempotent: %v then %v", once, twice)
	}
	if !reflect.DeepEqual(once, []string{parent, other}) {
		t.Errorf("validateInputPaths() = %v", once)
	}
}

package snapshot

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"snapbak/internal/integrity"
)

// ErrSymlinksUnsupported is returned by CopyEntry on platforms that lack
// the symlink primitive. The entry is never silently copied as content.
var ErrSymlinksUnsupported = errors.New("copying symlinks is not supported on windows")

// Files is the per-snapshot copy area rooted at <snapshot>/files. Every
// stored node's location is a deterministic, reversible function of the
// node's original absolute path.
type Files struct {
	root string
}

// NewFiles creates the store root if needed.
func NewFiles(root string) (*Files, error) {
	if err := os.MkdirAll(root, 0755); err != nil {
		return nil, fmt.Errorf("creating files directory: %w", err)
	}
	return &Files{root: root}, nil
}

// OpenFiles opens an existing store read-only.
func OpenFiles(root string) (*Files, error) {
	fi, err := os.Stat(root)
	if err != nil || !fi.IsDir() {
		return nil, errors.New("folder with files doesn't exist or isn't accessible")
	}
	return &Files{root: root}, nil
}

func (f *Files) Root() string { return f.root }

// Size returns the total byte size of everything under the store root.
// Unreadable entries are skipped.
func (f *Files) Size() int64 {
	var size int64
	filepath.WalkDir(f.root, func(path string, d fs.DirEntry, err error) error {
		if err != nil || path == f.root {
			return nil
		}
		if info, err := d.Info(); err == nil {
			size += info.Size()
		}
		return nil
	})
	return size
}

// CopyEntry copies one filesystem node into the store, dispatching on the
// node's own type without following symlinks. It returns the node's
// location inside the store.
func (f *Files) CopyEntry(path string) (string, error) {
	fi, err := os.Lstat(path)
	if err != nil {
		return "", err
	}
	switch mode := fi.Mode(); {
	case mode.IsDir():
		return f.copyDirEntry(path)
	case mode.IsRegular():
		return f.copyFileEntry(path)
	case mode&fs.ModeSymlink != 0:
		return f.copyLinkEntry(path)
	default:
		return "", fmt.Errorf("unknown entry type: %s", path)
	}
}

func (f *Files) copyDirEntry(path string) (string, error) {
	dest, err := f.storePath(path)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(dest, 0755); err != nil {
		return "", err
	}
	return dest, nil
}

func (f *Files) copyFileEntry(path string) (string, error) {
	dest, err := f.storePath(path)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(filepath.Dir(dest), 0755); err != nil {
		return "", err
	}
	src, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer src.Close()
	out, err := os.Create(dest)
	if err != nil {
		return "", err
	}
	if _, err := io.Copy(out, src); err != nil {
		out.Close()
		return "", err
	}
	return dest, out.Close()
}

// copyLinkEntry recreates the link itself, pointing at the same raw
// target string. The link is never resolved: its parent directory is
// canonicalized instead so the link's own name survives.
func (f *Files) copyLinkEntry(path string) (string, error) {
	if runtime.GOOS == "windows" {
		return "", ErrSymlinksUnsupported
	}
	destParent, err := f.storePath(filepath.Dir(path))
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(destParent, 0755); err != nil {
		return "", err
	}
	target, err := os.Readlink(path)
	if err != nil {
		return "", err
	}
	dest := filepath.Join(destParent, filepath.Base(path))
	if err := os.Symlink(target, dest); err != nil {
		return "", err
	}
	return dest, nil
}

// storePath maps an existing source path to its location in the store.
func (f *Files) storePath(path string) (string, error) {
	abs, err := CanonicalPath(path)
	if err != nil {
		return "", err
	}
	return joinStorePath(f.root, storeSegments(abs)), nil
}

// CheckFiles reconciles the physical store under root against the set of
// indexed source paths. It reports the first entry found on disk that no
// index line explains, or the first indexed path with no physical copy.
// Ancestor directories that exist only to hold deeper indexed entries are
// tolerated. The check stops at the first violation.
func CheckFiles(root string, indexed []string) *integrity.Finding {
	fi, err := os.Stat(root)
	if err != nil || !fi.IsDir() {
		return &integrity.Finding{Kind: integrity.FilesDirMissing}
	}

	// Map each indexed path to the store location it should occupy.
	expected := make(map[string]string, len(indexed))
	for _, path := range indexed {
		expected[joinStorePath(root, storeSegments(path))] = path
	}

	var finding *integrity.Finding
	walkErr := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			finding = &integrity.Finding{Kind: integrity.Unexpected, Err: err}
			return fs.SkipAll
		}
		if path == root {
			return nil
		}
		if _, ok := expected[path]; ok {
			delete(expected, path)
			return nil
		}
		// A directory like <store>/C is not indexed itself but must exist
		// to hold deeper indexed entries.
		prefix := path + string(filepath.Separator)
		for storePath := range expected {
			if strings.HasPrefix(storePath, prefix) {
				return nil
			}
		}
		finding = &integrity.Finding{Kind: integrity.PresentButNotIndexed, Path: path}
		return fs.SkipAll
	})
	if walkErr != nil && finding == nil {
		finding = &integrity.Finding{Kind: integrity.Unexpected, Err: walkErr}
	}
	if finding != nil {
		return finding
	}

	for _, path := range expected {
		return &integrity.Finding{Kind: integrity.IndexedButMissing, Path: path}
	}
	return nil
}

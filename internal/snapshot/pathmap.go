package snapshot

import (
	"path/filepath"
	"strings"
)

// CanonicalPath resolves path to its absolute canonical form: symlinks
// followed, "." and ".." removed. The path must exist.
func CanonicalPath(path string) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", err
	}
	return filepath.EvalSymlinks(abs)
}

// storeSegments maps an absolute source path to the ordered path segments
// the entry occupies under a files store root. The volume designator - a
// drive letter, UNC share or POSIX root - collapses into at most a single
// leading segment ("C:\a" becomes C/a, "/a" becomes a).
//
// The mapping works on the string alone, so Windows-style and POSIX-style
// inputs behave identically on every build platform.
func storeSegments(path string) []string {
	rest := path
	var segs []string

	switch {
	case strings.HasPrefix(rest, `\\?\UNC\`):
		rest = rest[len(`\\?\UNC\`):]
	case strings.HasPrefix(rest, `\\?\`):
		rest = rest[len(`\\?\`):]
		if drive, ok := splitDrive(rest); ok {
			segs = append(segs, drive)
			rest = rest[2:]
		}
	case strings.HasPrefix(rest, `\\.\`):
		rest = rest[len(`\\.\`):]
	case strings.HasPrefix(rest, `\\`):
		// UNC: server and share become the leading segments.
		rest = rest[2:]
	default:
		if drive, ok := splitDrive(rest); ok {
			segs = append(segs, drive)
			rest = rest[2:]
		}
	}

	for _, seg := range strings.FieldsFunc(rest, isPathSeparator) {
		if seg == "." || seg == ".." {
			continue
		}
		segs = append(segs, seg)
	}
	return segs
}

// joinStorePath joins store segments beneath root using host conventions.
func joinStorePath(root string, segs []string) string {
	return filepath.Join(append([]string{root}, segs...)...)
}

func splitDrive(path string) (string, bool) {
	if len(path) >= 2 && path[1] == ':' && isDriveLetter(path[0]) {
		return string(path[0]), true
	}
	return "", false
}

func isDriveLetter(c byte) bool {
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isPathSeparator(r rune) bool { return r == '/' || r == '\\' }

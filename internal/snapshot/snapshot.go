package snapshot

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/djherbis/times"

	"snapbak/internal/integrity"
)

const (
	indexFileName = "index.txt"
	filesDirName  = "files"

	// changeMargin absorbs filesystem timestamp resolution and clock
	// jitter when deciding whether an entry changed since the base
	// snapshot.
	changeMargin = time.Minute
)

var (
	// ErrBackupRootMissing aborts snapshot creation before side effects.
	ErrBackupRootMissing = errors.New("folder with backup does not exist or is not accessible")
	// ErrCannotCreateSnapshot means the snapshot directory could not be made.
	ErrCannotCreateSnapshot = errors.New("cannot create directory for a snapshot")
)

// Snapshot is one append-then-seal backup pass: its own timestamp, index
// and files store, plus an optional base index used for the incremental
// copy-or-reuse decision.
type Snapshot struct {
	location string
	stamp    Timestamp
	index    *Index
	files    *Files
	base     *IndexPreview
	logger   Logger
}

// Create makes an empty snapshot directory under root. The candidate
// timestamp starts at the clock's current minute; if latest is at or
// ahead of it (clock regression, rapid re-invocation) the candidate is
// advanced past latest, and it keeps advancing by one minute while the
// directory name is taken. Snapshot order is strictly monotonic
// regardless of system clock behavior.
func Create(root string, latest *Timestamp, clock Clock, logger Logger) (*Snapshot, error) {
	fi, err := os.Stat(root)
	if err != nil || !fi.IsDir() {
		return nil, ErrBackupRootMissing
	}

	stamp := Now(clock)
	if latest != nil && !latest.Before(stamp) {
		stamp = latest.Next()
	}

	var location string
	for {
		location = filepath.Join(root, stamp.String())
		if _, err := os.Lstat(location); err == nil {
			stamp = stamp.Next()
			continue
		}
		if err := os.Mkdir(location, 0755); err != nil {
			return nil, ErrCannotCreateSnapshot
		}
		break
	}

	files, err := NewFiles(filepath.Join(location, filesDirName))
	if err != nil {
		return nil, ErrCannotCreateSnapshot
	}

	logger.Info("created empty snapshot", "snapshot", stamp.String())

	return &Snapshot{
		location: location,
		stamp:    stamp,
		index:    NewIndex(filepath.Join(location, indexFileName)),
		files:    files,
		logger:   logger,
	}, nil
}

// Open reopens a sealed snapshot read-only.
func Open(location string, logger Logger) (*Snapshot, error) {
	stamp, err := ParseTimestamp(filepath.Base(location))
	if err != nil {
		return nil, fmt.Errorf("invalid snapshot name: %w", err)
	}
	index, err := OpenIndex(filepath.Join(location, indexFileName))
	if err != nil {
		return nil, err
	}
	files, err := OpenFiles(filepath.Join(location, filesDirName))
	if err != nil {
		return nil, err
	}
	return &Snapshot{
		location: location,
		stamp:    stamp,
		index:    index,
		files:    files,
		logger:   logger,
	}, nil
}

// SetBaseSnapshot wires the incremental baseline. A nil base forces full
// snapshot semantics: every visited entry is copied.
func (s *Snapshot) SetBaseSnapshot(base *IndexPreview) {
	s.base = base
}

// Name returns the snapshot's identity, its timestamp string.
func (s *Snapshot) Name() string { return s.stamp.String() }

func (s *Snapshot) Stamp() Timestamp { return s.stamp }

func (s *Snapshot) Index() *Index { return s.index }

func (s *Snapshot) Files() *Files { return s.files }

// AddFiles walks root recursively and runs the copy-or-reuse decision on
// every visited node. Symlinks are visited as leaves, never expanded.
// Per-node failures are logged and isolated: a node that cannot be
// traversed, copied or canonicalized is left out of the snapshot without
// aborting the walk.
func (s *Snapshot) AddFiles(root string) {
	filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			s.logger.Error("cannot traverse entry", "path", path, "error", err)
			return nil
		}
		if prev, ok := s.alreadyBackedUp(path); ok {
			s.indexEntry(prev, path)
		} else {
			s.copyAndIndexEntry(path)
		}
		return nil
	})
}

// alreadyBackedUp reports whether the base snapshot already owns an
// unchanged copy of the entry, and under which timestamp. An entry whose
// modification or creation time is strictly newer than the recorded
// timestamp minus the margin counts as changed.
func (s *Snapshot) alreadyBackedUp(path string) (Timestamp, bool) {
	if s.base == nil {
		return Timestamp{}, false
	}
	prev, ok := s.base.Find(path)
	if !ok {
		return Timestamp{}, false
	}

	fi, err := os.Lstat(path)
	if err != nil {
		return Timestamp{}, false
	}
	cutoff := prev.t.Add(-changeMargin)
	changed := FromTime(fi.ModTime()).t.After(cutoff)
	if ts := times.Get(fi); !changed && ts.HasBirthTime() {
		changed = FromTime(ts.BirthTime()).t.After(cutoff)
	}

	s.logger.Debug("entry found in base snapshot",
		"path", path, "modified", FromTime(fi.ModTime()).String(),
		"snapshot", prev.String(), "changed", changed)

	if changed {
		return Timestamp{}, false
	}
	return prev, true
}

func (s *Snapshot) copyAndIndexEntry(path string) {
	dest, err := s.files.CopyEntry(path)
	if err != nil {
		s.logger.Error("failed to copy entry", "path", path, "error", err)
		return
	}
	s.logger.Debug("copied entry", "from", path, "to", dest)
	s.indexEntry(s.stamp, path)
}

func (s *Snapshot) indexEntry(stamp Timestamp, path string) {
	abs, err := CanonicalPath(path)
	if err != nil {
		s.logger.Error("failed to index entry", "path", path, "error", err)
		return
	}
	s.logger.Debug("indexed entry", "snapshot", stamp.String(), "path", abs)
	s.index.Push(stamp, abs)
}

// SaveIndex seals the snapshot by persisting the accumulated index. Call
// it exactly once, after every input root has been walked.
func (s *Snapshot) SaveIndex() error {
	return s.index.Save()
}

// Preview returns the lightweight handle used for listing and ordering.
func (s *Snapshot) Preview() *Preview {
	return &Preview{
		Location:  s.location,
		Stamp:     s.stamp,
		IndexPath: filepath.Join(s.location, indexFileName),
		FilesPath: filepath.Join(s.location, filesDirName),
	}
}

// Preview is a lightweight snapshot handle: enough to order snapshots and
// to reach their on-disk parts without loading any content.
type Preview struct {
	Location  string
	Stamp     Timestamp
	IndexPath string
	FilesPath string
}

// OpenPreview accepts location as a snapshot only if its name is a valid
// timestamp and it contains both an index file and a files directory.
func OpenPreview(location string) (*Preview, bool) {
	stamp, err := ParseTimestamp(filepath.Base(location))
	if err != nil {
		return nil, false
	}
	indexPath := filepath.Join(location, indexFileName)
	filesPath := filepath.Join(location, filesDirName)
	if _, err := os.Stat(indexPath); err != nil {
		return nil, false
	}
	if _, err := os.Stat(filesPath); err != nil {
		return nil, false
	}
	return &Preview{
		Location:  location,
		Stamp:     stamp,
		IndexPath: indexPath,
		FilesPath: filesPath,
	}, true
}

// Check verifies the internal consistency of the snapshot at location:
// its name, the index file, and the agreement between index lines and the
// physical files store. Only entries the snapshot owns itself (those
// stamped with its own timestamp) are checked against the store; entries
// inherited from earlier snapshots are not re-verified here.
func Check(location string) *integrity.Finding {
	if _, err := os.Stat(location); err != nil {
		return &integrity.Finding{Kind: integrity.SnapshotMissing}
	}
	name := filepath.Base(location)
	stamp, err := ParseTimestamp(name)
	if err != nil {
		return &integrity.Finding{Kind: integrity.InvalidSnapshotName, Name: name}
	}

	indexPath := filepath.Join(location, indexFileName)
	if f := CheckIndex(indexPath); f != nil {
		return f
	}

	index, err := OpenIndex(indexPath)
	if err != nil {
		return &integrity.Finding{Kind: integrity.Unexpected, Err: err}
	}
	var owned []string
	for _, entry := range index.Entries() {
		if entry.Stamp.Equal(stamp) {
			owned = append(owned, entry.Path)
		}
	}

	return CheckFiles(filepath.Join(location, filesDirName), owned)
}

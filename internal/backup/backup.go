// Package backup manages a repository of snapshots under one root
// directory: discovery and ordering of existing snapshots, validation of
// caller-supplied input paths, and creation of new full or incremental
// snapshots.
package backup

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"snapbak/internal/integrity"
	"snapbak/internal/snapshot"
)

// ErrRootMissing means the backup root directory is absent or unreadable.
var ErrRootMissing = errors.New("folder with backup doesn't exist or isn't accessible")

// Backup is an ordered collection of snapshot previews rooted at one
// backup directory. The design assumes a single active operation per
// root; concurrent writers are out of scope.
type Backup struct {
	location  string
	snapshots []*snapshot.Preview
	logger    snapshot.Logger
	clock     snapshot.Clock
}

// Open scans the immediate subdirectories of root. Each one is accepted
// as a snapshot only if its name is a valid timestamp and it contains
// both an index file and a files directory; anything else is skipped with
// a warning. Accepted snapshots are kept in timestamp-ascending order.
func Open(root string, logger snapshot.Logger, clock snapshot.Clock) (*Backup, error) {
	fi, err := os.Stat(root)
	if err != nil || !fi.IsDir() {
		return nil, ErrRootMissing
	}
	return &Backup{
		location:  root,
		snapshots: loadPreviews(root, logger),
		logger:    logger,
		clock:     clock,
	}, nil
}

func loadPreviews(root string, logger snapshot.Logger) []*snapshot.Preview {
	entries, err := os.ReadDir(root)
	if err != nil {
		return nil
	}

	var previews []*snapshot.Preview
	for _, entry := range entries {
		preview, ok := snapshot.OpenPreview(filepath.Join(root, entry.Name()))
		if !ok {
			logger.Warn("found unrecognized entry in backup folder", "entry", entry.Name())
			continue
		}
		previews = append(previews, preview)
	}
	sort.Slice(previews, func(i, j int) bool {
		return previews[i].Stamp.Before(previews[j].Stamp)
	})
	return previews
}

func (b *Backup) Location() string { return b.location }

// Previews returns all known snapshots, oldest first.
func (b *Backup) Previews() []*snapshot.Preview { return b.snapshots }

// Latest returns the most recent snapshot, or nil for an empty root.
func (b *Backup) Latest() *snapshot.Preview {
	if len(b.snapshots) == 0 {
		return nil
	}
	return b.snapshots[len(b.snapshots)-1]
}

// AddSnapshot runs one backup pass: validates the input paths, creates a
// new snapshot, wires the latest snapshot as incremental baseline when
// requested, walks each surviving path and seals the index. It returns
// the new snapshot's name.
func (b *Backup) AddSnapshot(paths []string, incremental bool) (string, error) {
	b.logger.Info("started backup process")

	inputs := b.validateInputPaths(paths)

	var latest *snapshot.Timestamp
	if p := b.Latest(); p != nil {
		latest = &p.Stamp
	}
	snap, err := snapshot.Create(b.location, latest, b.clock, b.logger)
	if err != nil {
		return "", err
	}

	b.setBaseSnapshot(snap, incremental)

	for _, path := range inputs {
		snap.AddFiles(path)
	}
	if err := snap.SaveIndex(); err != nil {
		return "", fmt.Errorf("error while saving index: %w", err)
	}

	b.logger.Info("finished backup process")
	b.snapshots = append(b.snapshots, snap.Preview())

	return snap.Name(), nil
}

func (b *Backup) setBaseSnapshot(snap *snapshot.Snapshot, incremental bool) {
	latest := b.Latest()
	if !incremental || latest == nil {
		b.logger.Info("full snapshot will be performed")
		return
	}

	base, err := snapshot.OpenIndexPreview(latest.IndexPath)
	if err != nil {
		b.logger.Warn("cannot use latest snapshot as base, performing full snapshot",
			"snapshot", latest.Stamp.String(), "error", err)
		return
	}
	b.logger.Info("incremental snapshot will be performed", "base", latest.Stamp.String())
	snap.SetBaseSnapshot(base)
}

// CheckIntegrity verifies the named snapshot under the root. The check is
// shallow: entries inherited from earlier snapshots via the incremental
// chain are not re-verified.
func (b *Backup) CheckIntegrity(name string) *integrity.Finding {
	b.logger.Info("integrity check start", "snapshot", name)
	return snapshot.Check(filepath.Join(b.location, name))
}

// validateInputPaths filters the raw path list, in order: nonexistent
// paths are dropped, then duplicates by canonical equality (first
// occurrence wins), then descendants of other listed paths. The step
// order is load-bearing: it decides which path of a duplicate/overlap
// pair survives.
func (b *Backup) validateInputPaths(paths []string) []string {
	existing := b.removeNonexistentPaths(paths)
	unique := b.removeDuplicatedPaths(existing)
	return b.removeOverlappingPaths(unique)
}

func (b *Backup) removeNonexistentPaths(paths []string) []string {
	var filtered []string
	for _, path := range paths {
		if _, err := os.Lstat(path); err != nil {
			b.logger.Warn("provided path doesn't exist", "path", path)
			continue
		}
		filtered = append(filtered, path)
	}
	return filtered
}

func (b *Backup) removeDuplicatedPaths(paths []string) []string {
	var filtered, canonical []string
	for _, path := range paths {
		abs, err := snapshot.CanonicalPath(path)
		if err != nil {
			b.logger.Warn("cannot resolve provided path", "path", path, "error", err)
			continue
		}
		duplicate := ""
		for i, seen := range canonical {
			if seen == abs {
				duplicate = filtered[i]
				break
			}
		}
		if duplicate != "" {
			b.logger.Warn("provided path is a duplicate", "path", path, "same_as", duplicate)
			continue
		}
		filtered = append(filtered, path)
		canonical = append(canonical, abs)
	}
	return filtered
}

func (b *Backup) removeOverlappingPaths(paths []string) []string {
	canonical := make([]string, len(paths))
	for i, path := range paths {
		abs, err := snapshot.CanonicalPath(path)
		if err != nil {
			b.logger.Warn("cannot resolve provided path", "path", path, "error", err)
			canonical[i] = path
			continue
		}
		canonical[i] = abs
	}

	var filtered []string
	for i, path := range paths {
		ancestor := ""
		for j := range paths {
			if canonical[j] != canonical[i] && isProperAncestor(canonical[j], canonical[i]) {
				ancestor = paths[j]
				break
			}
		}
		if ancestor != "" {
			b.logger.Warn("provided path is included in another one, child path will be ignored",
				"parent", ancestor, "child", path)
			continue
		}
		filtered = append(filtered, path)
	}
	return filtered
}

func isProperAncestor(ancestor, child string) bool {
	if ancestor == child {
		return false
	}
	prefix := ancestor
	if !strings.HasSuffix(prefix, string(filepath.Separator)) {
		prefix += string(filepath.Separator)
	}
	return strings.HasPrefix(child, prefix)
}

// Package integrity defines the findings an after-the-fact snapshot
// verification can report. Findings are outcomes, not errors: a check
// returns the first violation it encounters, or nil when the snapshot's
// index and files store agree.
package integrity

import "fmt"

// Kind identifies one class of integrity violation.
type Kind int

const (
	// SnapshotMissing means the named snapshot directory does not exist.
	SnapshotMissing Kind = iota
	// InvalidSnapshotName means the directory name is not a timestamp.
	InvalidSnapshotName
	// IndexFileMissing means the snapshot has no index.txt.
	IndexFileMissing
	// FilesDirMissing means the snapshot has no files directory.
	FilesDirMissing
	// BadTimestampLine means an index line has a malformed timestamp token.
	BadTimestampLine
	// BadPathLine means an index line carries a non-absolute path.
	BadPathLine
	// IndexedButMissing means an indexed entry has no physical copy.
	IndexedButMissing
	// PresentButNotIndexed means a stored entry appears in no index line.
	PresentButNotIndexed
	// Unexpected covers I/O failures during the check itself.
	Unexpected
)

// Finding is a single integrity violation. A nil *Finding means the check
// passed. Line and Path are populated depending on the Kind.
type Finding struct {
	Kind Kind
	Name string // offending snapshot name, for InvalidSnapshotName
	Line int    // 1-based index.txt line, for Bad*Line kinds
	Path string // offending entry path, for Indexed*/Present* kinds
	Err  error  // underlying cause, for Unexpected
}

// Message renders the finding as a single human-readable line. A nil
// receiver renders the success message.
func (f *Finding) Message() string {
	if f == nil {
		return "No problems found."
	}
	switch f.Kind {
	case SnapshotMissing:
		return "Snapshot doesn't exist."
	case InvalidSnapshotName:
		return fmt.Sprintf("Snapshot's name '%s' is not a correct timestamp.", f.Name)
	case IndexFileMissing:
		return "File index.txt is missing."
	case FilesDirMissing:
		return "Folder files is missing."
	case BadTimestampLine:
		return fmt.Sprintf("Invalid timestamp in line %d of index.txt.", f.Line)
	case BadPathLine:
		return fmt.Sprintf("Invalid path in line %d of index.txt.", f.Line)
	case IndexedButMissing:
		return fmt.Sprintf("Entry '%s' is indexed, but is missing in snapshot.", f.Path)
	case PresentButNotIndexed:
		return fmt.Sprintf("Entry '%s' is present in snapshot, but is not indexed.", f.Path)
	case Unexpected:
		return fmt.Sprintf("Unexpected error occurred: %v.", f.Err)
	default:
		return fmt.Sprintf("Unknown finding kind %d.", f.Kind)
	}
}

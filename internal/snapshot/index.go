package snapshot

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"snapbak/internal/integrity"
)

// IndexEntry records that the content of Path is physically owned by the
// snapshot named Stamp. Stamp is not necessarily the snapshot whose index
// contains the entry: incremental snapshots reuse ancestor timestamps.
type IndexEntry struct {
	Stamp Timestamp
	Path  string // absolute, canonical
}

func (e IndexEntry) String() string {
	return e.Stamp.String() + " " + e.Path
}

var (
	errLineSyntax    = errors.New("line does not split into timestamp and path")
	errLineTimestamp = errors.New("invalid timestamp token")
	errLinePath      = errors.New("path is not absolute")
)

// parseIndexLine splits an index line on the first space only, so paths
// may contain spaces but the timestamp token must not.
func parseIndexLine(line string) (IndexEntry, error) {
	stampToken, pathToken, ok := strings.Cut(line, " ")
	if !ok {
		return IndexEntry{}, errLineSyntax
	}
	stamp, err := ParseTimestamp(stampToken)
	if err != nil {
		return IndexEntry{}, errLineTimestamp
	}
	path := strings.TrimSpace(pathToken)
	if !filepath.IsAbs(path) {
		return IndexEntry{}, errLinePath
	}
	return IndexEntry{Stamp: stamp, Path: path}, nil
}

// Index is the append-only log backing one snapshot: ordered entries held
// in memory while the snapshot is built, serialized once by Save.
type Index struct {
	location string
	entries  []IndexEntry
}

// NewIndex creates an empty index backed by the file at location. Nothing
// is written until Save.
func NewIndex(location string) *Index {
	return &Index{location: location}
}

// OpenIndex reads a saved index file in full. A single malformed line
// invalidates the whole open; there is no partial index.
func OpenIndex(location string) (*Index, error) {
	f, err := os.Open(location)
	if err != nil {
		return nil, fmt.Errorf("cannot open index: %w", err)
	}
	defer f.Close()

	x := NewIndex(location)
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		entry, err := parseIndexLine(scanner.Text())
		if err != nil {
			return nil, fmt.Errorf("index %s is broken: %w", location, err)
		}
		x.entries = append(x.entries, entry)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading index %s: %w", location, err)
	}
	return x, nil
}

// Push appends an entry to the in-memory buffer. No I/O happens here.
func (x *Index) Push(stamp Timestamp, path string) {
	x.entries = append(x.entries, IndexEntry{Stamp: stamp, Path: path})
}

func (x *Index) Entries() []IndexEntry { return x.entries }

func (x *Index) Len() int { return len(x.entries) }

// Save serializes the full buffer to the backing file, one entry per
// line, overwriting any previous content. The file reflects every push
// made so far once Save returns.
func (x *Index) Save() error {
	f, err := os.Create(x.location)
	if err != nil {
		return fmt.Errorf("cannot create index file: %w", err)
	}
	w := bufio.NewWriter(f)
	for _, entry := range x.entries {
		if _, err := w.WriteString(entry.String() + "\n"); err != nil {
			f.Close()
			return fmt.Errorf("writing index: %w", err)
		}
	}
	if err := w.Flush(); err != nil {
		f.Close()
		return fmt.Errorf("flushing index: %w", err)
	}
	return f.Close()
}

// IndexPreview is the read-oriented counterpart of Index: a path to
// timestamp lookup built once from a completed snapshot's index file and
// never written back.
type IndexPreview struct {
	byPath map[string]Timestamp
}

// OpenIndexPreview builds the lookup from a saved index file.
func OpenIndexPreview(location string) (*IndexPreview, error) {
	f, err := os.Open(location)
	if err != nil {
		return nil, fmt.Errorf("cannot open index: %w", err)
	}
	defer f.Close()

	byPath := make(map[string]Timestamp)
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		entry, err := parseIndexLine(scanner.Text())
		if err != nil {
			return nil, fmt.Errorf("index %s is broken: %w", location, err)
		}
		byPath[entry.Path] = entry.Stamp
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading index %s: %w", location, err)
	}
	return &IndexPreview{byPath: byPath}, nil
}

// Find canonicalizes the query path and returns the recorded timestamp
// for it, if any.
func (p *IndexPreview) Find(path string) (Timestamp, bool) {
	abs, err := CanonicalPath(path)
	if err != nil {
		return Timestamp{}, false
	}
	stamp, ok := p.byPath[abs]
	return stamp, ok
}

func (p *IndexPreview) Len() int { return len(p.byPath) }

// CheckIndex validates a saved index file line by line, returning the
// first violation with its 1-based line number, or nil for a file that
// parses cleanly end to end.
func CheckIndex(location string) *integrity.Finding {
	f, err := os.Open(location)
	if err != nil {
		if os.IsNotExist(err) {
			return &integrity.Finding{Kind: integrity.IndexFileMissing}
		}
		return &integrity.Finding{Kind: integrity.Unexpected, Err: err}
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	line := 0
	for scanner.Scan() {
		line++
		switch _, err := parseIndexLine(scanner.Text()); {
		case err == nil:
		case errors.Is(err, errLinePath):
			return &integrity.Finding{Kind: integrity.BadPathLine, Line: line}
		default:
			// A line that does not split at all is indistinguishable from
			// one with a broken timestamp token.
			return &integrity.Finding{Kind: integrity.BadTimestampLine, Line: line}
		}
	}
	if err := scanner.Err(); err != nil {
		return &integrity.Finding{Kind: integrity.Unexpected, Err: err}
	}
	return nil
}

// Package app is the application layer between the CLI and the backup
// engine: it builds the logger for the run, opens repositories and
// renders the single user-facing result line of each command.
package app

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/google/uuid"

	"snapbak/internal/backup"
	"snapbak/internal/integrity"
	"snapbak/internal/snapshot"
)

// App carries the per-invocation dependencies of every command.
type App struct {
	logger snapshot.Logger
	clock  snapshot.Clock
}

// New creates an App for one CLI run. Each run gets its own ID so log
// lines of overlapping invocations can be told apart.
func New(verbosity int, noColor bool) *App {
	runID := uuid.New().String()[:8]
	return &App{
		logger: &slogAdapter{l: newLogger(verbosity, noColor, runID)},
		clock:  snapshot.RealClock{},
	}
}

// RunBackup creates one snapshot of inputs under root and returns its
// name. Snapshots are incremental against the latest existing snapshot
// unless full is set.
func (a *App) RunBackup(root string, inputs []string, full bool) (string, error) {
	b, err := backup.Open(root, a.logger, a.clock)
	if err != nil {
		return "", err
	}
	return b.AddSnapshot(inputs, !full)
}

// ListSnapshots writes the snapshots under root to w, newest first. The
// long format additionally loads each snapshot to show its entry count
// and files store size.
func (a *App) ListSnapshots(w io.Writer, root string, short bool) error {
	b, err := backup.Open(root, a.logger, a.clock)
	if err != nil {
		return err
	}

	fmt.Fprintln(w, "Available snapshots:")
	previews := b.Previews()
	n := 0
	for i := len(previews) - 1; i >= 0; i-- {
		preview := previews[i]
		n++
		if short {
			fmt.Fprintf(w, "%d. %s\n", n, preview.Stamp.String())
			continue
		}
		snap, err := snapshot.Open(preview.Location, a.logger)
		if err != nil {
			a.logger.Warn("failed to load snapshot",
				"snapshot", preview.Stamp.String(), "error", err)
			continue
		}
		fmt.Fprintf(w, "%d. %s (%d entries, %d bytes)\n",
			n, snap.Name(), snap.Index().Len(), snap.Files().Size())
	}
	return nil
}

// CheckSnapshot verifies the snapshot at snapshotPath and writes the
// single result line to w. An integrity finding is a reported outcome,
// not an error.
func (a *App) CheckSnapshot(w io.Writer, snapshotPath string) error {
	finding := a.performIntegrityCheck(snapshotPath)
	if finding == nil {
		fmt.Fprintln(w, "Snapshot integrity check completed. No problems found.")
	} else {
		fmt.Fprintf(w, "Snapshot integrity check failed. %s\n", finding.Message())
	}
	return nil
}

func (a *App) performIntegrityCheck(snapshotPath string) *integrity.Finding {
	abs, err := filepath.Abs(snapshotPath)
	if err != nil {
		return &integrity.Finding{Kind: integrity.Unexpected, Err: err}
	}
	if _, err := os.Stat(abs); err != nil {
		return &integrity.Finding{Kind: integrity.SnapshotMissing}
	}

	b, err := backup.Open(filepath.Dir(abs), a.logger, a.clock)
	if err != nil {
		return &integrity.Finding{Kind: integrity.Unexpected, Err: err}
	}
	return b.CheckIntegrity(filepath.Base(abs))
}

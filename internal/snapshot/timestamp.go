package snapshot

import (
	"fmt"
	"regexp"
	"time"
)

// timestampLayout is the canonical snapshot name form: minute resolution,
// zero-padded fields, 24-hour clock. Lexical order of formatted timestamps
// equals chronological order, so the string doubles as a sort key.
const timestampLayout = "2006-01-02_15.04"

// Go's time parser accepts unpadded numeric fields, so the exact shape is
// enforced up front.
var timestampPattern = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}_\d{2}\.\d{2}$`)

// Timestamp is a minute-resolution local point in time. It is the sole
// identity of a snapshot: its string form names the snapshot directory.
type Timestamp struct {
	t time.Time
}

// Now returns the current time of clock truncated to minute resolution.
func Now(clock Clock) Timestamp {
	return FromTime(clock.Now())
}

// FromTime converts an arbitrary time (typically file metadata) to a
// Timestamp, discarding sub-minute precision.
func FromTime(t time.Time) Timestamp {
	lt := t.Local()
	return Timestamp{time.Date(lt.Year(), lt.Month(), lt.Day(), lt.Hour(), lt.Minute(), 0, 0, lt.Location())}
}

// ParseTimestamp accepts only strings exactly matching the canonical
// pattern. Extra whitespace, wrong separators or out-of-range calendar
// fields all fail.
func ParseTimestamp(s string) (Timestamp, error) {
	if !timestampPattern.MatchString(s) {
		return Timestamp{}, fmt.Errorf("not a valid timestamp: %q", s)
	}
	t, err := time.ParseInLocation(timestampLayout, s, time.Local)
	if err != nil {
		return Timestamp{}, fmt.Errorf("not a valid timestamp: %q: %w", s, err)
	}
	return Timestamp{t}, nil
}

// IsValidTimestamp reports whether s parses as a canonical timestamp.
// Used to filter directory entries when scanning a backup root.
func IsValidTimestamp(s string) bool {
	_, err := ParseTimestamp(s)
	return err == nil
}

// Next returns the timestamp advanced by exactly one minute. Used for
// directory name collision avoidance and for correcting clocks that run
// behind the latest existing snapshot.
func (ts Timestamp) Next() Timestamp {
	return Timestamp{ts.t.Add(time.Minute)}
}

func (ts Timestamp) String() string { return ts.t.Format(timestampLayout) }

func (ts Timestamp) Before(other Timestamp) bool { return ts.t.Before(other.t) }

func (ts Timestamp) Equal(other Timestamp) bool { return ts.t.Equal(other.t) }

// Compare returns -1, 0 or 1 as ts is before, equal to or after other.
func (ts Timestamp) Compare(other Timestamp) int { return ts.t.Compare(other.t) }

func (ts Timestamp) IsZero() bool { return ts.t.IsZero() }

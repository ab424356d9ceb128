package room

import (
	"time"

	"syncthat/model"
)

const (
	// maxLogLength caps the room log; the oldest entries are dropped first.
	maxLogLength = 1000
	// logWipeAfter is the retention window of the decay sweep.
	logWipeAfter = 12 * time.Hour
)

// eventLog is the bounded, time-decayed chat/notification log of one room.
// Entries are ordered oldest first. Not safe for concurrent use; the
// session loop owns it.
type eventLog struct {
	entries []model.LogEntry
}

// append adds an entry, dropping the oldest when the cap is exceeded.
func (l *eventLog) append(entry model.LogEntry) {
	l.entries = append(l.entries, entry)
	if len(l.entries) > maxLogLength {
		l.entries = l.entries[len(l.entries)-maxLogLength:]
	}
}

// decay drops entries older than the retention window and reports whether
// anything was removed.
func (l *eventLog) decay(now time.Time) bool {
	cutoff := now.Add(-logWipeAfter).UnixMilli()

	kept := l.entries[:0]
	for _, entry := range l.entries {
		if entry.Timestamp >= cutoff {
			kept = append(kept, entry)
		}
	}

	changed := len(kept) != len(l.entries)
	l.entries = kept
	return changed
}

// snapshot returns a copy safe to hand to the transport.
func (l *eventLog) snapshot() []model.LogEntry {
	out := make([]model.LogEntry, len(l.entries))
	copy(out, l.entries)
	return out
}

func (l *eventLog) len() int {
	return len(l.entries)
}

package realtime

// logBuffer holds the retained entries for one log channel, newest at index 0.
// Callers synchronize access; the buffer itself is not goroutine safe.
type logBuffer struct {
	limit   int
	entries []LogEntry
}

func newLogBuffer(limit int) *logBuffer {
	return &logBuffer{limit: limit}
}

func (b *logBuffer) prepend(entry LogEntry) {
	if b.limit <= 0 {
		return
	}
	if len(b.entries) < b.limit {
		b.entries = append(b.entries, LogEntry{})
	}
	copy(b.entries[1:], b.entries)
	b.entries[0] = entry
}

func (b *logBuffer) snapshot() []LogEntry {
	if len(b.entries) == 0 {
		return nil
	}
	return append([]LogEntry(nil), b.entries...)
}

func (b *logBuffer) clear() {
	b.entries = nil
}

func (b *logBuffer) size() int {
	return len(b.entries)
}

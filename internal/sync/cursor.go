package sync

// Cursor marks the newest update applied to subscribers, regardless of
// whether it arrived live or via polling. Snapshot entries at or below the
// cursor are discarded before dispatch; that is the sole de-duplication
// mechanism between the two sources.
type Cursor struct {
	LastAppliedSequence  int64
	LastAppliedTimestamp int64 // µs since epoch
}

// Behind reports whether an update with the given sequence is already
// covered by the cursor.
func (c Cursor) Behind(seq int64) bool {
	return seq <= c.LastAppliedSequence
}

package types

import "time"

// DirectoryRecord is the latest known state of one directory.
type DirectoryRecord struct {
	Status ProcessingStatus `json:"status"`
	Stats  DirectoryStats   `json:"stats"`

	// Mime is nil when no breakdown has been supplied.
	Mime MimeAccumulator `json:"mime,omitempty"`
}

// Clone returns a deep copy. When withMime is false the copy has no breakdown.
func (r DirectoryRecord) Clone(withMime bool) DirectoryRecord {
	out := DirectoryRecord{
		Status: r.Status,
		Stats:  r.Stats.Clone(),
	}
	if withMime {
		out.Mime = r.Mime.Clone()
	}
	return out
}

// SnapshotHeader identifies one saved snapshot.
type SnapshotHeader struct {
	ID        string    `json:"id"`
	Timestamp time.Time `json:"timestamp"`
	Rows      int       `json:"rows"`
}

// SnapshotRow is the saved state of one directory inside a snapshot.
type SnapshotRow struct {
	Path  string         `json:"path"`
	Stats DirectoryStats `json:"stats"`
}

// Snapshot is a point-in-time copy of every completed directory.
type Snapshot struct {
	SnapshotHeader
	Entries []SnapshotRow `json:"entries"`
}

// HistoryPoint is the stats of one directory as of one snapshot.
type HistoryPoint struct {
	Timestamp time.Time      `json:"timestamp"`
	Stats     DirectoryStats `json:"stats"`
}

// SizePoint is a (time, total size) pair used for trend charts.
type SizePoint struct {
	Timestamp time.Time `json:"timestamp"`
	TotalSize uint64    `json:"total_size"`
}

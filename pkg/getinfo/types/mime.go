package types

import (
	"path/filepath"
	"sort"
	"strings"
)

// AllExtensions is the accumulator key that sums every file regardless of extension.
const AllExtensions = "*"

// MimeEntry is the file count and total size for one extension.
type MimeEntry struct {
	FileCount uint64 `json:"file_count"`
	TotalSize uint64 `json:"total_size"`
}

// MimeAccumulator maps a lowercase extension (without the leading dot) to its
// totals. Files without an extension are keyed by the empty string. A valid
// accumulator always has an AllExtensions entry.
type MimeAccumulator map[string]MimeEntry

// MimeSize is one row of the mime breakdown delivered to event sinks.
type MimeSize struct {
	Extension string  `json:"extension"`
	FileCount uint64  `json:"file_count"`
	TotalSize uint64  `json:"total_size"`
	AvgSize   float64 `json:"avg_size"`
}

// NewMimeAccumulator returns an accumulator seeded with a zero AllExtensions entry.
func NewMimeAccumulator() MimeAccumulator {
	return MimeAccumulator{AllExtensions: {}}
}

// ExtensionOf returns the accumulator key for a file name.
func ExtensionOf(name string) string {
	ext := filepath.Ext(name)
	if ext == name {
		// dotfiles such as ".bashrc" have no extension
		return ""
	}
	return strings.ToLower(strings.TrimPrefix(ext, "."))
}

// Add merges totals into the entry for ext, creating it if needed.
func (m MimeAccumulator) Add(ext string, fileCount, totalSize uint64) {
	e := m[ext]
	e.FileCount += fileCount
	e.TotalSize += totalSize
	m[ext] = e
}

// AddFile accounts one regular file in both its extension and AllExtensions.
func (m MimeAccumulator) AddFile(name string, size uint64) {
	m.Add(AllExtensions, 1, size)
	m.Add(ExtensionOf(name), 1, size)
}

// Merge adds every entry of o into m.
func (m MimeAccumulator) Merge(o MimeAccumulator) {
	for ext, e := range o {
		m.Add(ext, e.FileCount, e.TotalSize)
	}
}

// All returns the AllExtensions totals.
func (m MimeAccumulator) All() MimeEntry {
	return m[AllExtensions]
}

// Clone returns an independent copy. A nil accumulator clones to nil.
func (m MimeAccumulator) Clone() MimeAccumulator {
	if m == nil {
		return nil
	}
	out := make(MimeAccumulator, len(m))
	for ext, e := range m {
		out[ext] = e
	}
	if _, ok := out[AllExtensions]; !ok {
		out[AllExtensions] = MimeEntry{}
	}
	return out
}

// Sizes returns the breakdown rows: AllExtensions first, then by total size
// descending and extension ascending.
func (m MimeAccumulator) Sizes() []MimeSize {
	rows := make([]MimeSize, 0, len(m))
	for ext, e := range m {
		if ext == AllExtensions {
			continue
		}
		rows = append(rows, newMimeSize(ext, e))
	}
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].TotalSize != rows[j].TotalSize {
			return rows[i].TotalSize > rows[j].TotalSize
		}
		return rows[i].Extension < rows[j].Extension
	})
	return append([]MimeSize{newMimeSize(AllExtensions, m.All())}, rows...)
}

func newMimeSize(ext string, e MimeEntry) MimeSize {
	var avg float64
	if e.FileCount > 0 {
		avg = float64(e.TotalSize) / float64(e.FileCount)
	}
	return MimeSize{
		Extension: ext,
		FileCount: e.FileCount,
		TotalSize: e.TotalSize,
		AvgSize:   avg,
	}
}

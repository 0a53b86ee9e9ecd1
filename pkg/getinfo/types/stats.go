package types

// DirectoryStats holds recursive aggregates for one directory.
// A nil field means "not known yet", which is different from zero.
type DirectoryStats struct {
	// SubdirCount is the number of immediate subdirectories.
	SubdirCount *uint64 `json:"subdir_count,omitempty"`

	// FileCount is the number of regular files, recursively.
	FileCount *uint64 `json:"file_count,omitempty"`

	// TotalSize is the sum of regular file sizes in bytes, recursively.
	TotalSize *uint64 `json:"total_size,omitempty"`
}

// Known returns a pointer to a copy of v, for building DirectoryStats literals.
func Known(v uint64) *uint64 {
	return &v
}

// NewStats returns stats with all three fields known.
func NewStats(subdirs, files, size uint64) DirectoryStats {
	return DirectoryStats{
		SubdirCount: Known(subdirs),
		FileCount:   Known(files),
		TotalSize:   Known(size),
	}
}

// Value returns the value behind an optional field, or zero when unknown.
func Value(p *uint64) uint64 {
	if p == nil {
		return 0
	}
	return *p
}

// Complete reports whether every field is known.
func (s DirectoryStats) Complete() bool {
	return s.SubdirCount != nil && s.FileCount != nil && s.TotalSize != nil
}

// IsZero reports whether no field is known.
func (s DirectoryStats) IsZero() bool {
	return s.SubdirCount == nil && s.FileCount == nil && s.TotalSize == nil
}

// Clone returns a deep copy that shares no pointers with s.
func (s DirectoryStats) Clone() DirectoryStats {
	return DirectoryStats{
		SubdirCount: cloneOpt(s.SubdirCount),
		FileCount:   cloneOpt(s.FileCount),
		TotalSize:   cloneOpt(s.TotalSize),
	}
}

// Add sums the fields present in o into s. Fields absent in o are untouched;
// a field unknown in s but present in o takes o's value.
func (s *DirectoryStats) Add(o DirectoryStats) {
	s.SubdirCount = addOpt(s.SubdirCount, o.SubdirCount)
	s.FileCount = addOpt(s.FileCount, o.FileCount)
	s.TotalSize = addOpt(s.TotalSize, o.TotalSize)
}

// Assign replaces s wholesale with a copy of o, including unknown fields.
func (s *DirectoryStats) Assign(o DirectoryStats) {
	*s = o.Clone()
}

// Overwrite replaces only the fields present in o.
func (s *DirectoryStats) Overwrite(o DirectoryStats) {
	if o.SubdirCount != nil {
		s.SubdirCount = cloneOpt(o.SubdirCount)
	}
	if o.FileCount != nil {
		s.FileCount = cloneOpt(o.FileCount)
	}
	if o.TotalSize != nil {
		s.TotalSize = cloneOpt(o.TotalSize)
	}
}

func cloneOpt(p *uint64) *uint64 {
	if p == nil {
		return nil
	}
	return Known(*p)
}

func addOpt(lhs, rhs *uint64) *uint64 {
	if rhs == nil {
		return lhs
	}
	if lhs == nil {
		return Known(*rhs)
	}
	return Known(*lhs + *rhs)
}

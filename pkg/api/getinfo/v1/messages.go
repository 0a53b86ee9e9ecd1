package getinfov1

import (
	"github.com/zenonby/directory-getinfo/pkg/getinfo/overlay"
	"github.com/zenonby/directory-getinfo/pkg/getinfo/scanner"
	"github.com/zenonby/directory-getinfo/pkg/getinfo/types"
)

// Empty is the request or response of calls without parameters.
type Empty struct{}

type FocusRequest struct {
	Path string `json:"path"`
	// Wait blocks the call until the directory settles.
	Wait bool `json:"wait,omitempty"`
}

type FocusResponse struct {
	Path   string                 `json:"path"`
	Status types.ProcessingStatus `json:"status"`
}

type ScanSequenceRequest struct {
	Paths []string `json:"paths,omitempty"`
	// All scans every filesystem root, or the configured root path.
	All bool `json:"all,omitempty"`
}

type ScanSequenceResponse struct {
	Started bool     `json:"started"`
	Targets []string `json:"targets,omitempty"`
}

type GetDirectoryRequest struct {
	Path     string `json:"path"`
	Children bool   `json:"children,omitempty"`
}

// DirectoryEntry is the status and stats of one directory.
type DirectoryEntry struct {
	Path   string                 `json:"path"`
	Status types.ProcessingStatus `json:"status"`
	Stats  types.DirectoryStats   `json:"stats"`
}

type GetDirectoryResponse struct {
	DirectoryEntry
	Mime     []types.MimeSize `json:"mime,omitempty"`
	Children []DirectoryEntry `json:"children,omitempty"`
}

type SetEnabledRequest struct {
	Path    string `json:"path"`
	Enabled bool   `json:"enabled"`
}

type IsEnabledRequest struct {
	Path string `json:"path"`
}

type IsEnabledResponse struct {
	Path    string `json:"path"`
	Enabled bool   `json:"enabled"`
}

type OverridesResponse struct {
	Entries []overlay.Entry `json:"entries"`
}

type SaveSnapshotResponse struct {
	Snapshot types.SnapshotHeader `json:"snapshot"`
}

type ListSnapshotsResponse struct {
	Snapshots []types.SnapshotHeader `json:"snapshots"`
}

type DeleteSnapshotRequest struct {
	ID string `json:"id"`
}

type HistoryRequest struct {
	Path string `json:"path"`
}

type HistoryResponse struct {
	Path   string            `json:"path"`
	Points []types.SizePoint `json:"points"`
}

type WatchRequest struct {
	// Root limits events to this directory and below. Empty means all.
	Root string `json:"root,omitempty"`
}

// WatchEvent carries one scanner event. Type is "directory", "mime" or
// "failure"; the matching payload field is set.
type WatchEvent struct {
	Type      string                 `json:"type"`
	Directory *scanner.DirectoryInfo `json:"directory,omitempty"`
	Mime      *scanner.MimeSizesInfo `json:"mime,omitempty"`
	Error     string                 `json:"error,omitempty"`
}

type StatusResponse struct {
	PID             int            `json:"pid"`
	UptimeSeconds   int64          `json:"uptime_seconds"`
	MemoryBytes     uint64         `json:"memory_bytes"`
	RootPath        string         `json:"root_path,omitempty"`
	Frames          []string       `json:"frames,omitempty"`
	FocusedParent   string         `json:"focused_parent,omitempty"`
	Scanning        bool           `json:"scanning"`
	Stopped         bool           `json:"stopped"`
	SequenceRunning bool           `json:"sequence_running"`
	Directories     map[string]int `json:"directories,omitempty"`
	Overrides       int            `json:"overrides"`
	Watchers        int            `json:"watchers"`
}

type ShutdownResponse struct {
	Success bool `json:"success"`
}

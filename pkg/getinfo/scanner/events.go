package scanner

import (
	"sort"

	"github.com/zenonby/directory-getinfo/pkg/getinfo/types"
)

// DirectoryInfo reports the status and stats of one directory.
type DirectoryInfo struct {
	Path   string                 `json:"path"`
	Status types.ProcessingStatus `json:"status"`
	Stats  types.DirectoryStats   `json:"stats"`
}

// MimeSizesInfo reports the extension breakdown of one finished directory.
// Sizes[0] is always the AllExtensions row.
type MimeSizesInfo struct {
	Path  string           `json:"path"`
	Sizes []types.MimeSize `json:"sizes"`
}

// EventSink receives scanner events. Calls come from the notifier goroutine
// and must not block for long.
type EventSink interface {
	OnDirectoryInfo(info DirectoryInfo)
	OnMimeSizes(info MimeSizesInfo)
	OnWorkerFailure(err error)
}

// Subscribe registers sink and returns a func that removes it. Once the
// returned func has returned, sink receives no further calls.
func (s *Scanner) Subscribe(sink EventSink) (unsubscribe func()) {
	s.sinksMu.Lock()
	id := s.nextSink
	s.nextSink++
	s.sinks[id] = sink
	s.sinksMu.Unlock()

	return func() {
		s.sinksMu.Lock()
		delete(s.sinks, id)
		s.sinksMu.Unlock()
	}
}

// postLocked buffers the current store view of path. Must hold s.mu.
func (s *Scanner) postLocked(path string) {
	rec, ok := s.store.TryGet(path, true)
	if !ok {
		return
	}
	s.dirInfos[path] = DirectoryInfo{Path: path, Status: rec.Status, Stats: rec.Stats}
	if rec.Mime != nil {
		s.mimeInfos[path] = MimeSizesInfo{Path: path, Sizes: rec.Mime.Sizes()}
	}
}

// flush delivers buffered events in path order, directory infos first.
func (s *Scanner) flush() {
	s.mu.Lock()
	dirs, mimes := s.dirInfos, s.mimeInfos
	s.dirInfos = make(map[string]DirectoryInfo)
	s.mimeInfos = make(map[string]MimeSizesInfo)
	s.mu.Unlock()

	if len(dirs) == 0 && len(mimes) == 0 {
		return
	}

	s.sinksMu.Lock()
	defer s.sinksMu.Unlock()

	for _, p := range sortedKeys(dirs) {
		for _, sink := range s.sinks {
			sink.OnDirectoryInfo(dirs[p])
		}
	}
	for _, p := range sortedKeys(mimes) {
		for _, sink := range s.sinks {
			sink.OnMimeSizes(mimes[p])
		}
	}
}

func (s *Scanner) broadcastFailure(err error) {
	s.sinksMu.Lock()
	defer s.sinksMu.Unlock()
	for _, sink := range s.sinks {
		sink.OnWorkerFailure(err)
	}
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

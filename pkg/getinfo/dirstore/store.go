// Package dirstore holds the latest known record of every directory the
// engine has touched. It is the single source of truth once a frame's
// results leave the work stack. Snapshots and history are delegated to a
// Persister.
package dirstore

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/zenonby/directory-getinfo/pkg/getinfo/logging"
	"github.com/zenonby/directory-getinfo/pkg/getinfo/types"
)

// ErrNoPersister is returned by snapshot and history calls on a memory-only store.
var ErrNoPersister = errors.New("directory store has no persister")

// Persister is the durable backing service for snapshots and history.
type Persister interface {
	// SaveSnapshot writes every row of snap atomically. On error nothing
	// of the snapshot may remain visible.
	SaveSnapshot(ctx context.Context, snap *types.Snapshot) error

	// StatsHistory returns the saved stats of path ordered by snapshot time.
	StatsHistory(ctx context.Context, path string) ([]types.HistoryPoint, error)
}

// Store is a path-keyed map of directory records guarded by one mutex.
type Store struct {
	mu      sync.Mutex
	dirs    map[string]*types.DirectoryRecord
	persist Persister
	now     func() time.Time
}

// New creates a store. persist may be nil for a memory-only store.
func New(persist Persister) *Store {
	return &Store{
		dirs:    make(map[string]*types.DirectoryRecord),
		persist: persist,
		now:     time.Now,
	}
}

// Upsert inserts path as Pending if absent, then overwrites its status.
// Stats fields present in rec are added when mergeStats is true and
// overwritten otherwise; absent fields are left alone. The breakdown is
// replaced only when rec carries one.
func (s *Store) Upsert(path string, rec types.DirectoryRecord, mergeStats bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing := s.getOrCreate(path)
	existing.Status = rec.Status
	if mergeStats {
		existing.Stats.Add(rec.Stats)
	} else {
		existing.Stats.Overwrite(rec.Stats)
	}
	if rec.Mime != nil {
		existing.Mime = rec.Mime.Clone()
	}
}

// Update applies fn to the record of path under the store lock, creating a
// Pending record first if needed.
func (s *Store) Update(path string, fn func(rec *types.DirectoryRecord)) {
	s.mu.Lock()
	defer s.mu.Unlock()

	fn(s.getOrCreate(path))
}

// TryGet returns a copy of the record of path. With onlyFillMimeIfReady the
// breakdown is dropped unless the directory is Ready.
func (s *Store) TryGet(path string, onlyFillMimeIfReady bool) (types.DirectoryRecord, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.dirs[path]
	if !ok {
		return types.DirectoryRecord{}, false
	}
	ready := rec.Status == types.StatusReady
	return rec.Clone(ready || !onlyFillMimeIfReady), true
}

// HasData reports whether any record exists.
func (s *Store) HasData() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.dirs) > 0
}

// Len returns the number of records.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.dirs)
}

// Paths returns every known path in lexical order.
func (s *Store) Paths() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]string, 0, len(s.dirs))
	for p := range s.dirs {
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}

// Counts returns the number of records per status.
func (s *Store) Counts() map[types.ProcessingStatus]int {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make(map[types.ProcessingStatus]int)
	for _, rec := range s.dirs {
		out[rec.Status]++
	}
	return out
}

// SaveSnapshot copies every Ready directory that has a breakdown into a new
// timestamped snapshot and hands it to the persister as one transaction.
func (s *Store) SaveSnapshot(ctx context.Context) (types.SnapshotHeader, error) {
	if s.persist == nil {
		return types.SnapshotHeader{}, ErrNoPersister
	}

	snap := &types.Snapshot{
		SnapshotHeader: types.SnapshotHeader{
			ID:        uuid.New().String(),
			Timestamp: s.now().UTC(),
		},
	}

	s.mu.Lock()
	for path, rec := range s.dirs {
		if rec.Status != types.StatusReady || rec.Mime == nil {
			continue
		}
		snap.Entries = append(snap.Entries, types.SnapshotRow{Path: path, Stats: rec.Stats.Clone()})
	}
	s.mu.Unlock()

	sort.Slice(snap.Entries, func(i, j int) bool { return snap.Entries[i].Path < snap.Entries[j].Path })
	snap.Rows = len(snap.Entries)

	if err := s.persist.SaveSnapshot(ctx, snap); err != nil {
		return types.SnapshotHeader{}, fmt.Errorf("saving snapshot: %w", err)
	}

	logging.Get("dirstore").Info("snapshot saved", "id", snap.ID, "rows", snap.Rows)
	return snap.SnapshotHeader, nil
}

// StatsHistory returns the saved stats of path, oldest first.
func (s *Store) StatsHistory(ctx context.Context, path string) ([]types.HistoryPoint, error) {
	if s.persist == nil {
		return nil, ErrNoPersister
	}
	return s.persist.StatsHistory(ctx, path)
}

// getOrCreate must be called with s.mu held.
func (s *Store) getOrCreate(path string) *types.DirectoryRecord {
	rec, ok := s.dirs[path]
	if !ok {
		rec = &types.DirectoryRecord{Status: types.StatusPending}
		s.dirs[path] = rec
	}
	return rec
}

// Package store provides Badger DB-backed persistence for snapshots, size
// history and scan overrides.
//
// Key layout:
//
//	s:<unix-nano>                 snapshot header (JSON)
//	r:<path>\x00<unix-nano>       directory stats of path in that snapshot (JSON)
//	o:<path>                      scan override, "1" enabled or "0" disabled
//	m:__schema__                  schema version
//
// Timestamps are zero padded to 20 digits so keys sort chronologically.
// Rows are written before their header and readers ignore rows without a
// header, so a snapshot becomes visible atomically.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/dgraph-io/badger/v4"

	"github.com/zenonby/directory-getinfo/pkg/getinfo/logging"
	"github.com/zenonby/directory-getinfo/pkg/getinfo/types"
)

// Key prefixes for different data types
const (
	prefixSnapshot = "s:"
	prefixRow      = "r:"
	prefixOverride = "o:"
	prefixMeta     = "m:"
)

const rowSep = "\x00"

// ctxCheckEvery is the number of rows written between context checks.
const ctxCheckEvery = 1024

var (
	// ErrSnapshotNotFound is returned when no snapshot has the given ID.
	ErrSnapshotNotFound = errors.New("snapshot not found")

	// ErrSnapshotExists is returned when a snapshot with the same timestamp exists.
	ErrSnapshotExists = errors.New("snapshot with this timestamp already exists")
)

// Store is the snapshot database backed by Badger DB.
type Store struct {
	db  *badger.DB
	log *logging.Logger
}

// Open opens or creates a store in dir and brings its schema up to date.
func Open(dir string) (*Store, error) {
	opts := badger.DefaultOptions(dir)
	opts.Logger = nil

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("opening badger at %s: %w", dir, err)
	}

	s := &Store{db: db, log: logging.Get("store")}
	if err := s.ensureSchema(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

// Close closes the store.
func (s *Store) Close() error {
	return s.db.Close()
}

// SaveSnapshot writes snap as one logical transaction. If writing fails or
// ctx is cancelled, every row already written is removed again.
func (s *Store) SaveSnapshot(ctx context.Context, snap *types.Snapshot) error {
	ts := snap.Timestamp.UnixNano()
	hkey := headerKey(ts)

	err := s.db.View(func(txn *badger.Txn) error {
		_, err := txn.Get(hkey)
		return err
	})
	if err == nil {
		return fmt.Errorf("%w: %s", ErrSnapshotExists, snap.Timestamp.Format(time.RFC3339Nano))
	}
	if !errors.Is(err, badger.ErrKeyNotFound) {
		return fmt.Errorf("checking snapshot header: %w", err)
	}

	written, err := s.writeRows(ctx, ts, snap.Entries)
	if err == nil {
		err = ctx.Err()
	}
	if err == nil {
		err = s.writeHeader(hkey, snap.SnapshotHeader)
	}
	if err != nil {
		if rbErr := s.deleteRows(ts, snap.Entries[:written]); rbErr != nil {
			s.log.Error("snapshot rollback failed", "id", snap.ID, "err", rbErr)
		}
		return fmt.Errorf("saving snapshot %s: %w", snap.ID, err)
	}

	s.log.Info("snapshot committed", "id", snap.ID, "rows", len(snap.Entries))
	return nil
}

func (s *Store) writeRows(ctx context.Context, ts int64, rows []types.SnapshotRow) (int, error) {
	wb := s.db.NewWriteBatch()
	defer wb.Cancel()

	for i, row := range rows {
		if i%ctxCheckEvery == 0 {
			if err := ctx.Err(); err != nil {
				return i, err
			}
		}
		data, err := json.Marshal(row.Stats)
		if err != nil {
			return i, err
		}
		if err := wb.Set(rowKey(row.Path, ts), data); err != nil {
			return i + 1, err
		}
	}
	return len(rows), wb.Flush()
}

func (s *Store) writeHeader(key []byte, h types.SnapshotHeader) error {
	data, err := json.Marshal(h)
	if err != nil {
		return err
	}
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(key, data)
	})
}

func (s *Store) deleteRows(ts int64, rows []types.SnapshotRow) error {
	wb := s.db.NewWriteBatch()
	defer wb.Cancel()

	for _, row := range rows {
		if err := wb.Delete(rowKey(row.Path, ts)); err != nil {
			return err
		}
	}
	return wb.Flush()
}

// StatsHistory returns the saved stats of path in every committed snapshot,
// oldest first.
func (s *Store) StatsHistory(ctx context.Context, path string) ([]types.HistoryPoint, error) {
	var out []types.HistoryPoint

	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = true
		it := txn.NewIterator(opts)
		defer it.Close()

		prefix := []byte(prefixRow + path + rowSep)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}

			item := it.Item()
			ts, err := strconv.ParseInt(string(item.Key()[len(prefix):]), 10, 64)
			if err != nil {
				continue
			}
			if _, err := txn.Get(headerKey(ts)); errors.Is(err, badger.ErrKeyNotFound) {
				continue
			} else if err != nil {
				return err
			}

			var stats types.DirectoryStats
			if err := item.Value(func(val []byte) error {
				return json.Unmarshal(val, &stats)
			}); err != nil {
				return err
			}
			out = append(out, types.HistoryPoint{Timestamp: time.Unix(0, ts).UTC(), Stats: stats})
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("reading history of %s: %w", path, err)
	}
	return out, nil
}

// Snapshots lists committed snapshot headers, oldest first.
func (s *Store) Snapshots(ctx context.Context) ([]types.SnapshotHeader, error) {
	var out []types.SnapshotHeader

	err := s.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		prefix := []byte(prefixSnapshot)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			var h types.SnapshotHeader
			if err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &h)
			}); err != nil {
				return err
			}
			out = append(out, h)
		}
		return nil
	})
	return out, err
}

// DeleteSnapshot removes the snapshot with id. The header goes first so the
// rows stop being visible before they are removed.
func (s *Store) DeleteSnapshot(ctx context.Context, id string) error {
	headers, err := s.Snapshots(ctx)
	if err != nil {
		return err
	}
	var ts int64
	found := false
	for _, h := range headers {
		if h.ID == id {
			ts, found = h.Timestamp.UnixNano(), true
			break
		}
	}
	if !found {
		return fmt.Errorf("%w: %s", ErrSnapshotNotFound, id)
	}

	if err := s.db.Update(func(txn *badger.Txn) error {
		return txn.Delete(headerKey(ts))
	}); err != nil {
		return fmt.Errorf("deleting snapshot header: %w", err)
	}

	suffix := rowSep + formatTS(ts)
	var keys [][]byte
	err = s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()

		prefix := []byte(prefixRow)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			if strings.HasSuffix(string(it.Item().Key()), suffix) {
				keys = append(keys, it.Item().KeyCopy(nil))
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	wb := s.db.NewWriteBatch()
	defer wb.Cancel()
	for _, k := range keys {
		if err := wb.Delete(k); err != nil {
			return err
		}
	}
	return wb.Flush()
}

// SaveOverrides replaces the stored scan overrides with overrides.
func (s *Store) SaveOverrides(overrides map[string]bool) error {
	return s.db.Update(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)

		var stale [][]byte
		prefix := []byte(prefixOverride)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			stale = append(stale, it.Item().KeyCopy(nil))
		}
		it.Close()

		for _, k := range stale {
			if err := txn.Delete(k); err != nil {
				return err
			}
		}
		for path, enabled := range overrides {
			val := []byte("0")
			if enabled {
				val = []byte("1")
			}
			if err := txn.Set([]byte(prefixOverride+path), val); err != nil {
				return err
			}
		}
		return nil
	})
}

// LoadOverrides returns the stored scan overrides.
func (s *Store) LoadOverrides() (map[string]bool, error) {
	out := make(map[string]bool)
	err := s.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		prefix := []byte(prefixOverride)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			path := string(it.Item().Key()[len(prefix):])
			if err := it.Item().Value(func(val []byte) error {
				out[path] = string(val) == "1"
				return nil
			}); err != nil {
				return err
			}
		}
		return nil
	})
	return out, err
}

func formatTS(ts int64) string {
	return fmt.Sprintf("%020d", ts)
}

func headerKey(ts int64) []byte {
	return []byte(prefixSnapshot + formatTS(ts))
}

func rowKey(path string, ts int64) []byte {
	return []byte(prefixRow + path + rowSep + formatTS(ts))
}

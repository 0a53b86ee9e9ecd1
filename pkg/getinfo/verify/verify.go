// Package verify re-walks a directory tree in parallel and compares the
// totals with what the scanner stored. It is the slow, independent
// reference used by `getinfo verify`.
package verify

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"sync"
	"sync/atomic"

	"github.com/charlievieth/fastwalk"

	"github.com/zenonby/directory-getinfo/pkg/getinfo/logging"
	"github.com/zenonby/directory-getinfo/pkg/getinfo/tuner"
	"github.com/zenonby/directory-getinfo/pkg/getinfo/types"
)

// SkipFunc reports whether the subtree at path is excluded, mirroring a
// disabled scan override.
type SkipFunc func(path string) bool

// Totals is the result of a full walk.
type Totals struct {
	Root      string `json:"root"`
	Subdirs   uint64 `json:"subdirs"`
	FileCount uint64 `json:"file_count"`
	TotalSize uint64 `json:"total_size"`
	Dirs      uint64 `json:"dirs"`

	// Errors lists directories that could not be read.
	Errors []string `json:"errors,omitempty"`
}

// Stats returns the totals in the scanner's stats shape.
func (t Totals) Stats() types.DirectoryStats {
	return types.NewStats(t.Subdirs, t.FileCount, t.TotalSize)
}

// Mismatch is one field where stored and walked values differ.
type Mismatch struct {
	Field  string `json:"field"`
	Stored string `json:"stored"`
	Walked uint64 `json:"walked"`
}

// Report compares a stored record with a fresh walk.
type Report struct {
	Totals     Totals                 `json:"totals"`
	Status     types.ProcessingStatus `json:"status"`
	Mismatches []Mismatch             `json:"mismatches,omitempty"`
}

// OK reports whether every stored field matches the walk.
func (r Report) OK() bool {
	return len(r.Mismatches) == 0
}

// Walk computes the totals of root the way the scanner counts them: regular
// files only, symlinks not followed, skipped subtrees still counted as
// direct subdirectories of their parent.
func Walk(ctx context.Context, root string, skip SkipFunc) (Totals, error) {
	var (
		files, size, dirs, subdirs atomic.Uint64
		errMu                      sync.Mutex
		walkErrs                   []string
	)
	log := logging.Get("verify")

	conf := fastwalk.Config{Follow: false, NumWorkers: tuner.Auto().WalkWorkers}
	err := fastwalk.Walk(&conf, root, func(path string, d fs.DirEntry, walkErr error) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		if walkErr != nil {
			errMu.Lock()
			walkErrs = append(walkErrs, path)
			errMu.Unlock()
			log.Warn("walk error", "path", path, "err", walkErr)
			if d != nil && d.IsDir() {
				return fastwalk.SkipDir
			}
			return nil
		}

		switch {
		case d.Type()&fs.ModeSymlink != 0:
			return nil
		case d.IsDir():
			if path == root {
				return nil
			}
			if filepath.Dir(path) == root {
				subdirs.Add(1)
			}
			if skip != nil && skip(path) {
				return fastwalk.SkipDir
			}
			dirs.Add(1)
			return nil
		case d.Type().IsRegular():
			info, err := d.Info()
			if err != nil {
				return nil //nolint:nilerr // vanished between listing and stat
			}
			files.Add(1)
			size.Add(uint64(info.Size()))
		}
		return nil
	})
	if err != nil && !errors.Is(err, fastwalk.ErrSkipFiles) {
		return Totals{}, fmt.Errorf("walking %s: %w", root, err)
	}

	return Totals{
		Root:      root,
		Subdirs:   subdirs.Load(),
		FileCount: files.Load(),
		TotalSize: size.Load(),
		Dirs:      dirs.Load(),
		Errors:    walkErrs,
	}, nil
}

// Compare checks rec against a fresh walk of root.
func Compare(ctx context.Context, root string, rec types.DirectoryRecord, skip SkipFunc) (Report, error) {
	totals, err := Walk(ctx, root, skip)
	if err != nil {
		return Report{}, err
	}

	rep := Report{Totals: totals, Status: rec.Status}
	check := func(field string, stored *uint64, walked uint64) {
		if stored == nil || *stored != walked {
			rep.Mismatches = append(rep.Mismatches, Mismatch{
				Field:  field,
				Stored: types.FormatCount(stored),
				Walked: walked,
			})
		}
	}
	check("subdirs", rec.Stats.SubdirCount, totals.Subdirs)
	check("files", rec.Stats.FileCount, totals.FileCount)
	check("size", rec.Stats.TotalSize, totals.TotalSize)
	return rep, nil
}

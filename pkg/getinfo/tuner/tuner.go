// Package tuner sizes the engine's worker pools from the detected machine:
// the parallel verification walk and the history load pool.
package tuner

import (
	"sync"

	"github.com/zenonby/directory-getinfo/pkg/getinfo/logging"
)

// SystemResources contains detected system resources.
type SystemResources struct {
	// CPUCores is the number of logical CPU cores available.
	CPUCores int

	// TotalRAM is the total physical RAM in bytes.
	TotalRAM int64

	// AvailableRAM is free RAM in bytes. It is an estimate on some
	// platforms.
	AvailableRAM int64
}

// Tuning is the calculated pool sizing.
type Tuning struct {
	// WalkWorkers is the number of goroutines of a verification walk.
	WalkWorkers int

	// HistoryWorkers bounds concurrent snapshot history loads.
	HistoryWorkers int
}

const (
	maxWalkWorkers = 64
	minWalkWorkers = 8

	// lowMemWalkWorkers caps the walk on machines below lowMemThreshold;
	// every walker holds an open directory and its read buffer.
	lowMemWalkWorkers = 8
	lowMemThreshold   = 2 << 30

	minHistoryWorkers = 2
	maxHistoryWorkers = 8

	// defaultTotalRAM is assumed when memory cannot be detected.
	defaultTotalRAM = 8 << 30
)

// Calculate returns the pool sizes for resources.
//
// Directory walking is metadata-bound and gains from parallelism beyond the
// core count, so WalkWorkers is max(cores, 8) capped at 64. History loads
// are short key-range reads and use half the cores, between 2 and 8.
func Calculate(res SystemResources) Tuning {
	walk := max(res.CPUCores, minWalkWorkers)
	walk = min(walk, maxWalkWorkers)
	if res.TotalRAM > 0 && res.TotalRAM < lowMemThreshold {
		walk = min(walk, lowMemWalkWorkers)
	}

	hist := max(res.CPUCores/2, minHistoryWorkers)
	hist = min(hist, maxHistoryWorkers)

	return Tuning{WalkWorkers: walk, HistoryWorkers: hist}
}

var (
	autoOnce   sync.Once
	autoTuning Tuning
)

// Auto detects the machine once per process and returns its tuning.
// Detection failures fall back to Calculate over the partial result.
func Auto() Tuning {
	autoOnce.Do(func() {
		res, err := Detect()
		if err != nil {
			logging.Get("tuner").Debug("resource detection incomplete", "err", err)
		}
		autoTuning = Calculate(res)
		logging.Get("tuner").Debug("tuned",
			"cpus", res.CPUCores,
			"total_ram", res.TotalRAM,
			"walk_workers", autoTuning.WalkWorkers,
			"history_workers", autoTuning.HistoryWorkers)
	})
	return autoTuning
}

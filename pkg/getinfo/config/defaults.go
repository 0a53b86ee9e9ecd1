// Package config provides configuration management for getinfo.
package config

import "time"

// Default configuration values.
const (
	// DefaultCancelCheckInterval is the number of directory entries between
	// cancellation checks.
	DefaultCancelCheckInterval = 100

	// DefaultIdlePoll is the worker's sleep when it has nothing to scan.
	DefaultIdlePoll = 100 * time.Millisecond

	// DefaultNotifyInterval is the period of event flushes and focus pickup.
	DefaultNotifyInterval = 500 * time.Millisecond

	// DefaultReadBatch is the number of directory entries read at once.
	DefaultReadBatch = 64

	// DefaultHistoryWorkers bounds concurrent history loads.
	DefaultHistoryWorkers = 4

	// DefaultOutputFormat is the report format.
	DefaultOutputFormat = "pretty"

	// DaemonBinary is the executable name of the daemon.
	DaemonBinary = "getinfod"
)

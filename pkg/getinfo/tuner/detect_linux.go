//go:build linux

package tuner

import (
	"fmt"
	"runtime"

	"golang.org/x/sys/unix"
)

// Detect reads the core count from the runtime and memory from sysinfo(2).
func Detect() (SystemResources, error) {
	res := SystemResources{CPUCores: runtime.NumCPU()}

	var info unix.Sysinfo_t
	if err := unix.Sysinfo(&info); err != nil {
		res.TotalRAM = defaultTotalRAM
		res.AvailableRAM = defaultTotalRAM / 2
		return res, fmt.Errorf("sysinfo: %w", err)
	}
	unit := int64(info.Unit)
	if unit == 0 {
		unit = 1
	}
	res.TotalRAM = int64(info.Totalram) * unit
	// buffers are reclaimable
	res.AvailableRAM = (int64(info.Freeram) + int64(info.Bufferram)) * unit
	return res, nil
}

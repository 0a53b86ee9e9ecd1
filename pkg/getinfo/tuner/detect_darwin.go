//go:build darwin

package tuner

import (
	"fmt"
	"runtime"

	"golang.org/x/sys/unix"
)

// Detect reads the core count from the runtime and total memory from
// sysctl. Available memory is estimated as half the total; the precise
// figure needs host_statistics.
func Detect() (SystemResources, error) {
	res := SystemResources{CPUCores: runtime.NumCPU()}

	memsize, err := unix.SysctlUint64("hw.memsize")
	if err != nil {
		res.TotalRAM = defaultTotalRAM
		res.AvailableRAM = defaultTotalRAM / 2
		return res, fmt.Errorf("sysctl hw.memsize: %w", err)
	}
	res.TotalRAM = int64(memsize)
	res.AvailableRAM = res.TotalRAM / 2
	return res, nil
}

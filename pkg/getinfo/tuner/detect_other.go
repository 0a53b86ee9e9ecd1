//go:build !linux && !darwin

package tuner

import "runtime"

// Detect reads the core count from the runtime and assumes default memory.
func Detect() (SystemResources, error) {
	return SystemResources{
		CPUCores:     runtime.NumCPU(),
		TotalRAM:     defaultTotalRAM,
		AvailableRAM: defaultTotalRAM / 2,
	}, nil
}

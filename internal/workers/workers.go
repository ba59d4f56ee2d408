// Package workers sizes worker pools from the CPUs the process may actually
// use.
//
// runtime.NumCPU reports the host's CPUs even inside a container with a CPU
// quota, so counts are derived from runtime.GOMAXPROCS(0) instead. Combined
// with automaxprocs at startup this respects cgroup limits.
//
// The RESIZER_WORKERS environment variable overrides the computed count:
//
//	RESIZER_WORKERS=4 resizer run ~/Pictures
package workers

import (
	"os"
	"runtime"
	"strconv"
)

// EnvOverride names the environment variable that pins the worker count.
const EnvOverride = "RESIZER_WORKERS"

// Count returns multiplier workers per available CPU, at least one and at
// most limit. A limit of 0 means no maximum.
func Count(multiplier float64, limit int) int {
	if override := os.Getenv(EnvOverride); override != "" {
		if count, err := strconv.Atoi(override); err == nil && count > 0 {
			if limit > 0 && count > limit {
				return limit
			}
			return count
		}
	}

	available := runtime.GOMAXPROCS(0)
	workers := int(float64(available) * multiplier)
	if workers < 1 {
		workers = 1
	}
	if limit > 0 && workers > limit {
		workers = limit
	}
	return workers
}

// ForIO returns two workers per available CPU. Image decode/encode mixes
// disk reads and writes with CPU work, so the batch pool uses this.
func ForIO(limit int) int {
	return Count(2.0, limit)
}

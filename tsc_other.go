//go:build !amd64

package vmx

import "time"

var cycleEpoch = time.Now()

// hostCycles falls back to monotonic nanoseconds where no TSC is readable.
func hostCycles() uint64 { return uint64(time.Since(cycleEpoch)) }

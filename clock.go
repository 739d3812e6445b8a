package vmx

import (
	"time"
)

// ClockKind selects which time source a Clock read refers to.
type ClockKind uint

const (
	// ClockHostCycles is the host time-stamp counter.
	ClockHostCycles ClockKind = iota
	// ClockRealtime is wall-clock time in nanoseconds.
	ClockRealtime
	// ClockVirtual is guest virtual time in nanoseconds.
	ClockVirtual
)

// Clock reads time by kind. Deterministic record/replay layers implement it
// to log or substitute the values returned to the vCPU.
type Clock interface {
	ReadClock(kind ClockKind) int64
}

// HostClock reads the host's clocks directly.
type HostClock struct {
	start time.Time
}

// NewHostClock returns a HostClock whose virtual time starts now.
func NewHostClock() *HostClock {
	return &HostClock{start: time.Now()}
}

func (c *HostClock) ReadClock(kind ClockKind) int64 {
	switch kind {
	case ClockHostCycles:
		return int64(hostCycles())
	case ClockRealtime:
		return time.Now().UnixNano()
	default:
		return int64(time.Since(c.start))
	}
}

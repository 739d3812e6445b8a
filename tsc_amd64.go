//go:build amd64

package vmx

// rdtscp returns the host time-stamp counter.
func rdtscp() uint64

func hostCycles() uint64 { return rdtscp() }

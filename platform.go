//go:build darwin && amd64

package vmx

import (
	"golang.org/x/sys/unix"
)

// Supported reports whether Hypervisor.framework can run VT-x guests on
// this host.
func Supported() (bool, error) {
	supported, err := unix.SysctlUint32("kern.hv_support")
	if err != nil {
		return false, err
	}
	return supported != 0, nil
}

// TSCFrequency returns the host time-stamp counter rate in Hz.
func TSCFrequency() (uint64, error) {
	return unix.SysctlUint64("machdep.tsc.frequency")
}

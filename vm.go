package vmx

import "sync"

// MemPerm represents guest memory permissions.
type MemPerm uint

const (
	MemRead  MemPerm = 1 << 0
	MemWrite MemPerm = 1 << 1
	MemExec  MemPerm = 1 << 2
)

// VM represents the process's single hypervisor VM instance.
type VM struct {
	closed  bool
	closeMu sync.Mutex // Protect against concurrent Close() and finalizer
}

// VCPU is a hardware vCPU. It must only be used from the thread that
// created it; see Thread.
type VCPU struct {
	id      uint64
	closed  bool
	closeMu sync.Mutex // Protect against concurrent Close() and finalizer
}

var (
	_ Backend = (*VCPU)(nil)
	_ Runner  = (*VCPU)(nil)
	_ Backend = (*MemVCPU)(nil)
	_ Runner  = (*MemVCPU)(nil)
)

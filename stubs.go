//go:build !darwin || !amd64

package vmx

import (
	"github.com/blacktop/go-vmx/vmcs"
)

// Supported returns false on hosts without Hypervisor.framework VT-x support.
func Supported() (bool, error) {
	return false, ErrUnsupported
}

// TSCFrequency returns ErrUnsupported on this platform.
func TSCFrequency() (uint64, error) {
	return 0, ErrUnsupported
}

// NewVM returns ErrUnsupported on this platform.
func NewVM() (*VM, error) {
	return nil, ErrUnsupported
}

// Stub implementations for VM methods
func (vm *VM) Close() error                                           { return ErrUnsupported }
func (vm *VM) Map(host []byte, guestPhys uint64, perms MemPerm) error { return ErrUnsupported }
func (vm *VM) Protect(guestPhys, size uint64, perms MemPerm) error    { return ErrUnsupported }
func (vm *VM) Unmap(guestPhys, size uint64) error                     { return ErrUnsupported }
func (vm *VM) NewVCPU() (*VCPU, error)                                { return nil, ErrUnsupported }

// Stub implementations for VCPU methods
func (c *VCPU) Close() error                           { return ErrUnsupported }
func (c *VCPU) InitVMCS() error                        { return ErrUnsupported }
func (c *VCPU) InvalidateTLB() error                   { return ErrUnsupported }
func (c *VCPU) ReadRegister(r Reg) (uint64, error)     { return 0, ErrUnsupported }
func (c *VCPU) WriteRegister(r Reg, v uint64) error    { return ErrUnsupported }
func (c *VCPU) ReadVMCS(f vmcs.Field) (uint64, error)  { return 0, ErrUnsupported }
func (c *VCPU) WriteVMCS(f vmcs.Field, v uint64) error { return ErrUnsupported }
func (c *VCPU) ReadMSR(msr uint32) (uint64, error)     { return 0, ErrUnsupported }
func (c *VCPU) WriteMSR(msr uint32, v uint64) error    { return ErrUnsupported }
func (c *VCPU) ReadFPState(buf []byte) error           { return ErrUnsupported }
func (c *VCPU) WriteFPState(buf []byte) error          { return ErrUnsupported }
func (c *VCPU) SetCR0(v uint64) error                  { return ErrUnsupported }
func (c *VCPU) SetCR4(v uint64) error                  { return ErrUnsupported }
func (c *VCPU) SyncTSC(tsc uint64) error               { return ErrUnsupported }
func (c *VCPU) Flush() error                           { return ErrUnsupported }
func (c *VCPU) Run() (ExitInfo, error)                 { return ExitInfo{}, ErrUnsupported }

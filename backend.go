package vmx

import (
	"github.com/blacktop/go-vmx/vmcs"
)

// Backend is the per-vCPU hardware surface the state synchronization and
// injection code drives. *VCPU implements it on darwin/amd64 and *MemVCPU
// implements it in memory everywhere.
//
// All methods are called from the vCPU's owning thread only.
type Backend interface {
	ReadRegister(r Reg) (uint64, error)
	WriteRegister(r Reg, v uint64) error

	ReadVMCS(f vmcs.Field) (uint64, error)
	WriteVMCS(f vmcs.Field, v uint64) error

	ReadMSR(msr uint32) (uint64, error)
	WriteMSR(msr uint32, v uint64) error

	// ReadFPState and WriteFPState exchange an XSaveSize-byte save area.
	ReadFPState(buf []byte) error
	WriteFPState(buf []byte) error

	// SetCR0 and SetCR4 update the guest control register together with the
	// read shadows and any mode-dependent controls.
	SetCR0(v uint64) error
	SetCR4(v uint64) error

	// SyncTSC sets the guest time-stamp counter.
	SyncTSC(tsc uint64) error

	// Flush commits cached VMCS state to the hardware.
	Flush() error
}

// Runner enters the guest and returns on the next VM exit.
type Runner interface {
	Run() (ExitInfo, error)
}

// ExitInfo captures information about a recent VM exit.
type ExitInfo struct {
	Reason            vmcs.ExitReason `json:"reason"`
	Qualification     uint64          `json:"qualification"`
	InstructionLength uint64          `json:"instruction_length"`
	GuestPhysical     uint64          `json:"guest_physical,omitempty"`
}

//go:build darwin && amd64

package vmx

/*
#cgo darwin LDFLAGS: -framework Hypervisor
#include <Hypervisor/hv.h>
#include <Hypervisor/hv_vmx.h>
*/
import "C"

import (
	"fmt"
	"unsafe"

	"github.com/blacktop/go-vmx/vmcs"
)

func (c *VCPU) ReadRegister(r Reg) (uint64, error) {
	if !r.valid() {
		return 0, fmt.Errorf("%w %d (must be %d-%d)", ErrInvalidRegister, r, RegRIP, RegXCR0)
	}
	var val C.uint64_t
	err := c.call("read register "+r.String(), func(id C.hv_vcpuid_t) C.hv_return_t {
		return C.hv_vcpu_read_register(id, regToHV(r), &val)
	})
	return uint64(val), err
}

func (c *VCPU) WriteRegister(r Reg, v uint64) error {
	if !r.valid() {
		return fmt.Errorf("%w %d (must be %d-%d)", ErrInvalidRegister, r, RegRIP, RegXCR0)
	}
	return c.call("write register "+r.String(), func(id C.hv_vcpuid_t) C.hv_return_t {
		return C.hv_vcpu_write_register(id, regToHV(r), C.uint64_t(v))
	})
}

func (c *VCPU) ReadVMCS(f vmcs.Field) (uint64, error) {
	var val C.uint64_t
	err := c.call(fmt.Sprintf("read vmcs 0x%04x", uint32(f)), func(id C.hv_vcpuid_t) C.hv_return_t {
		return C.hv_vmx_vcpu_read_vmcs(id, C.uint32_t(f), &val)
	})
	return uint64(val), err
}

func (c *VCPU) WriteVMCS(f vmcs.Field, v uint64) error {
	return c.call(fmt.Sprintf("write vmcs 0x%04x", uint32(f)), func(id C.hv_vcpuid_t) C.hv_return_t {
		return C.hv_vmx_vcpu_write_vmcs(id, C.uint32_t(f), C.uint64_t(v))
	})
}

func (c *VCPU) ReadMSR(msr uint32) (uint64, error) {
	var val C.uint64_t
	err := c.call(fmt.Sprintf("read msr 0x%x", msr), func(id C.hv_vcpuid_t) C.hv_return_t {
		return C.hv_vcpu_read_msr(id, C.uint32_t(msr), &val)
	})
	return uint64(val), err
}

func (c *VCPU) WriteMSR(msr uint32, v uint64) error {
	return c.call(fmt.Sprintf("write msr 0x%x", msr), func(id C.hv_vcpuid_t) C.hv_return_t {
		return C.hv_vcpu_write_msr(id, C.uint32_t(msr), C.uint64_t(v))
	})
}

// ReadFPState copies the XSAVE area into buf, which must be XSaveSize bytes.
func (c *VCPU) ReadFPState(buf []byte) error {
	if len(buf) != XSaveSize {
		return ErrInvalidBuffer
	}
	return c.call("read fpstate", func(id C.hv_vcpuid_t) C.hv_return_t {
		return C.hv_vcpu_read_fpstate(id, unsafe.Pointer(&buf[0]), C.size_t(len(buf)))
	})
}

// WriteFPState loads the XSAVE area from buf, which must be XSaveSize bytes.
func (c *VCPU) WriteFPState(buf []byte) error {
	if len(buf) != XSaveSize {
		return ErrInvalidBuffer
	}
	return c.call("write fpstate", func(id C.hv_vcpuid_t) C.hv_return_t {
		return C.hv_vcpu_write_fpstate(id, unsafe.Pointer(&buf[0]), C.size_t(len(buf)))
	})
}

func (c *VCPU) Flush() error {
	return c.call("flush", func(id C.hv_vcpuid_t) C.hv_return_t {
		return C.hv_vcpu_flush(id)
	})
}

// InvalidateTLB drops the vCPU's cached translations.
func (c *VCPU) InvalidateTLB() error {
	return c.call("invalidate tlb", func(id C.hv_vcpuid_t) C.hv_return_t {
		return C.hv_vcpu_invalidate_tlb(id)
	})
}

// regToHV maps Reg to the framework's hv_x86_reg_t constants.
func regToHV(r Reg) C.hv_x86_reg_t {
	switch r {
	case RegRIP:
		return C.HV_X86_RIP
	case RegRFLAGS:
		return C.HV_X86_RFLAGS
	case RegRAX:
		return C.HV_X86_RAX
	case RegRCX:
		return C.HV_X86_RCX
	case RegRDX:
		return C.HV_X86_RDX
	case RegRBX:
		return C.HV_X86_RBX
	case RegRSI:
		return C.HV_X86_RSI
	case RegRDI:
		return C.HV_X86_RDI
	case RegRSP:
		return C.HV_X86_RSP
	case RegRBP:
		return C.HV_X86_RBP
	case RegR8:
		return C.HV_X86_R8
	case RegR9:
		return C.HV_X86_R9
	case RegR10:
		return C.HV_X86_R10
	case RegR11:
		return C.HV_X86_R11
	case RegR12:
		return C.HV_X86_R12
	case RegR13:
		return C.HV_X86_R13
	case RegR14:
		return C.HV_X86_R14
	case RegR15:
		return C.HV_X86_R15
	case RegDR0:
		return C.HV_X86_DR0
	case RegDR1:
		return C.HV_X86_DR1
	case RegDR2:
		return C.HV_X86_DR2
	case RegDR3:
		return C.HV_X86_DR3
	case RegDR4:
		return C.HV_X86_DR4
	case RegDR5:
		return C.HV_X86_DR5
	case RegDR6:
		return C.HV_X86_DR6
	case RegDR7:
		return C.HV_X86_DR7
	case RegTPR:
		return C.HV_X86_TPR
	case RegXCR0:
		return C.HV_X86_XCR0
	default:
		// Unreachable: callers validate r first
		return C.HV_X86_RIP
	}
}

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

	"github.com/blacktop/go-vmx/vmcs"
)

// Bits the host owns in CR0 and CR4; the guest reads them from the shadows.
const (
	cr0HostMask = CR0PG | CR0CD | CR0NW | CR0NE | CR0ET
	cr4HostMask = CR4VMXE
)

// MSRs the guest accesses without exiting.
var nativeMSRs = []uint32{
	MSRStar, MSRLStar, MSRCStar, MSRFMask,
	MSRFSBase, MSRGSBase, MSRKernelGSBase,
	MSRSysenterCS, MSRSysenterEIP, MSRSysenterESP,
	0x10,       // IA32_TSC
	0xc0000103, // IA32_TSC_AUX
}

// cap2ctrl adjusts a desired control value to what the CPU supports: the low
// half of a capability holds the must-be-one bits and the high half the
// may-be-one bits.
func cap2ctrl(capability, ctrl uint64) uint64 {
	return (ctrl | (capability & 0xffffffff)) & (capability >> 32)
}

func readCapability(field C.hv_vmx_capability_t) (uint64, error) {
	var v C.uint64_t
	if err := hvErr(C.hv_vmx_read_capability(field, &v)); err != nil {
		return 0, fmt.Errorf("failed to read vmx capability %d: %w", field, err)
	}
	return uint64(v), nil
}

// InitVMCS programs the execution controls the event injection and state
// synchronization rely on: exits for external interrupts, NMIs, HLT and
// MWAIT, virtual NMIs, TSC offsetting and the TPR shadow.
func (c *VCPU) InitVMCS() error {
	pin, err := readCapability(C.HV_VMX_CAP_PINBASED)
	if err != nil {
		return err
	}
	proc, err := readCapability(C.HV_VMX_CAP_PROCBASED)
	if err != nil {
		return err
	}
	proc2, err := readCapability(C.HV_VMX_CAP_PROCBASED2)
	if err != nil {
		return err
	}
	entry, err := readCapability(C.HV_VMX_CAP_ENTRY)
	if err != nil {
		return err
	}

	for _, w := range []struct {
		f vmcs.Field
		v uint64
	}{
		{vmcs.PinBasedCtls, cap2ctrl(pin, vmcs.PinBasedExtIntExiting|vmcs.PinBasedNMIExiting|vmcs.PinBasedVirtualNMI)},
		{vmcs.PriProcBasedCtls, cap2ctrl(proc, vmcs.ProcHLTExiting|vmcs.ProcMWAITExiting|vmcs.ProcTSCOffset|vmcs.ProcTPRShadow|vmcs.ProcSecondaryCtls)},
		{vmcs.SecProcBasedCtls, cap2ctrl(proc2, vmcs.Proc2APICAccesses|vmcs.Proc2UnrestrictedGuest)},
		{vmcs.EntryCtls, cap2ctrl(entry, 0)},
		{vmcs.ExceptionBitmap, 0},
		{vmcs.CR0Mask, cr0HostMask},
		{vmcs.CR4Mask, cr4HostMask},
		{vmcs.TPRThreshold, 0},
	} {
		if err := c.WriteVMCS(w.f, w.v); err != nil {
			return err
		}
	}

	for _, msr := range nativeMSRs {
		err := c.call(fmt.Sprintf("enable native msr 0x%x", msr), func(id C.hv_vcpuid_t) C.hv_return_t {
			return C.hv_vcpu_enable_native_msr(id, C.uint32_t(msr), true)
		})
		if err != nil {
			return err
		}
	}
	return nil
}

// SetCR0 installs a guest CR0. The guest value always carries NE and ET;
// the shadow keeps what the guest wrote. Toggling paging with EFER.LME set
// switches IA-32e mode.
func (c *VCPU) SetCR0(cr0 uint64) error {
	efer, err := c.ReadVMCS(vmcs.GuestIA32EFER)
	if err != nil {
		return err
	}
	old, err := c.ReadVMCS(vmcs.GuestCR0)
	if err != nil {
		return err
	}
	if err := c.WriteVMCS(vmcs.CR0Mask, cr0HostMask); err != nil {
		return err
	}
	if err := c.WriteVMCS(vmcs.CR0Shadow, cr0); err != nil {
		return err
	}

	entry, err := c.ReadVMCS(vmcs.EntryCtls)
	if err != nil {
		return err
	}
	switch {
	case efer&EFERLME == 0:
		entry &^= vmcs.EntryGuestIA32e
	case (old^cr0)&CR0PG != 0 && cr0&CR0PG != 0:
		efer |= EFERLMA
		entry |= vmcs.EntryGuestIA32e
	case (old^cr0)&CR0PG != 0:
		efer &^= EFERLMA
		entry &^= vmcs.EntryGuestIA32e
	}
	if err := c.WriteVMCS(vmcs.GuestIA32EFER, efer); err != nil {
		return err
	}
	if err := c.WriteVMCS(vmcs.EntryCtls, entry); err != nil {
		return err
	}

	guest := cr0&^(cr0HostMask&^CR0PG) | CR0NE | CR0ET
	if err := c.WriteVMCS(vmcs.GuestCR0, guest); err != nil {
		return err
	}
	return c.InvalidateTLB()
}

// SetCR4 installs a guest CR4 with VMXE forced on and hidden by the shadow.
func (c *VCPU) SetCR4(cr4 uint64) error {
	if err := c.WriteVMCS(vmcs.GuestCR4, cr4|CR4VMXE); err != nil {
		return err
	}
	if err := c.WriteVMCS(vmcs.CR4Shadow, cr4); err != nil {
		return err
	}
	if err := c.WriteVMCS(vmcs.CR4Mask, cr4HostMask); err != nil {
		return err
	}
	return c.InvalidateTLB()
}

// SyncTSC sets the time-stamp counter of every vCPU in the VM.
func (c *VCPU) SyncTSC(tsc uint64) error {
	if err := hvErr(C.hv_vm_sync_tsc(C.uint64_t(tsc))); err != nil {
		recordResourceError()
		return fmt.Errorf("failed to sync tsc: %w", err)
	}
	return nil
}

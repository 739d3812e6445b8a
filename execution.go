//go:build darwin && amd64

package vmx

/*
#cgo darwin LDFLAGS: -framework Hypervisor
#include <Hypervisor/hv.h>
*/
import "C"

import (
	"github.com/blacktop/go-vmx/vmcs"
)

// Run enters the guest until the next VM exit and decodes the exit.
func (c *VCPU) Run() (ExitInfo, error) {
	var info ExitInfo

	err := c.call("run vCPU", func(id C.hv_vcpuid_t) C.hv_return_t {
		return C.hv_vcpu_run(id)
	})
	if err != nil {
		return info, err
	}

	reason, err := c.ReadVMCS(vmcs.ExitReasonField)
	if err != nil {
		return info, err
	}
	info.Reason = vmcs.BasicExitReason(reason)

	if info.Qualification, err = c.ReadVMCS(vmcs.ExitQualification); err != nil {
		return info, err
	}
	if info.InstructionLength, err = c.ReadVMCS(vmcs.ExitInstructionLength); err != nil {
		return info, err
	}
	if info.Reason == vmcs.ExitEPTViolation {
		if info.GuestPhysical, err = c.ReadVMCS(vmcs.GuestPhysicalAddress); err != nil {
			return info, err
		}
	}
	return info, nil
}

//go:build darwin && amd64

package vmx

/*
#cgo darwin LDFLAGS: -framework Hypervisor
#include <Hypervisor/hv.h>
*/
import "C"

import (
	"fmt"
	"runtime"
	"unsafe"
)

func (p MemPerm) hvFlags() C.hv_memory_flags_t {
	var flags C.hv_memory_flags_t
	if p&MemRead != 0 {
		flags |= C.HV_MEMORY_READ
	}
	if p&MemWrite != 0 {
		flags |= C.HV_MEMORY_WRITE
	}
	if p&MemExec != 0 {
		flags |= C.HV_MEMORY_EXEC
	}
	return flags
}

func (vm *VM) open() error {
	if vm == nil {
		return fmt.Errorf("hv: VM is nil")
	}
	if vm.closed {
		return ErrVMClosed
	}
	return nil
}

// Map maps a host memory slice into the guest physical address space.
// The host slice base address, length, and guestPhys must be page-aligned.
func (vm *VM) Map(host []byte, guestPhys uint64, perms MemPerm) error {
	if err := vm.open(); err != nil {
		return err
	}
	if len(host) == 0 {
		return fmt.Errorf("hv: map requires non-empty host buffer")
	}
	if err := checkRegion(guestPhys, uint64(len(host))); err != nil {
		return err
	}
	if err := perms.validate(); err != nil {
		return err
	}

	ptr := unsafe.Pointer(&host[0])
	if !isPageAligned(uint64(uintptr(ptr))) {
		return fmt.Errorf("%w: host base %p (page size: %d)", ErrInvalidAlignment, ptr, PageSize())
	}
	defer runtime.KeepAlive(host)

	ret := C.hv_vm_map(ptr, C.hv_gpaddr_t(guestPhys), C.size_t(len(host)), perms.hvFlags())
	if err := hvErr(ret); err != nil {
		recordResourceError()
		return fmt.Errorf("failed to map %d bytes at 0x%x with perms 0x%x: %w", len(host), guestPhys, perms, err)
	}

	recordMapOperation()
	return nil
}

// Protect changes the permissions of a mapped region.
func (vm *VM) Protect(guestPhys, size uint64, perms MemPerm) error {
	if err := vm.open(); err != nil {
		return err
	}
	if err := checkRegion(guestPhys, size); err != nil {
		return err
	}
	if err := perms.validate(); err != nil {
		return err
	}

	ret := C.hv_vm_protect(C.hv_gpaddr_t(guestPhys), C.size_t(size), perms.hvFlags())
	if err := hvErr(ret); err != nil {
		recordResourceError()
		return fmt.Errorf("failed to protect region 0x%x+%d: %w", guestPhys, size, err)
	}
	return nil
}

// Unmap removes a region from the guest physical address space.
func (vm *VM) Unmap(guestPhys, size uint64) error {
	if err := vm.open(); err != nil {
		return err
	}
	if err := checkRegion(guestPhys, size); err != nil {
		return err
	}

	ret := C.hv_vm_unmap(C.hv_gpaddr_t(guestPhys), C.size_t(size))
	if err := hvErr(ret); err != nil {
		recordResourceError()
		return fmt.Errorf("failed to unmap region 0x%x+%d: %w", guestPhys, size, err)
	}

	recordUnmapOperation()
	return nil
}

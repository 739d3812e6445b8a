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
	"runtime"
	"sync"
	"sync/atomic"
	"time"
)

var (
	vmMu     sync.RWMutex
	vmActive bool
	vmCount  int32 // Atomic counter for debugging
)

// NewVM creates the Hypervisor VM for this process.
func NewVM() (*VM, error) {
	start := time.Now()
	defer func() {
		recordVMCreate(time.Since(start))
	}()

	vmMu.Lock()
	defer vmMu.Unlock()

	if vmActive {
		recordResourceError()
		return nil, ErrVMAlreadyActive
	}

	ret := C.hv_vm_create(C.HV_VM_DEFAULT)
	if err := hvErr(ret); err != nil {
		recordResourceError()
		return nil, err
	}

	vmActive = true
	atomic.AddInt32(&vmCount, 1)
	vm := &VM{closed: false}

	// Set finalizer as safety net in case Close() is not called
	runtime.SetFinalizer(vm, (*VM).finalize)

	return vm, nil
}

// Close destroys the Hypervisor VM. Idempotent.
func (vm *VM) Close() error {
	if vm == nil {
		return nil
	}

	vm.closeMu.Lock()
	defer vm.closeMu.Unlock()

	if vm.closed {
		return nil
	}

	vmMu.Lock()
	defer vmMu.Unlock()

	if !vmActive {
		return nil
	}

	ret := C.hv_vm_destroy()
	if err := hvErr(ret); err != nil {
		return fmt.Errorf("failed to destroy VM: %w", err)
	}

	vm.closed = true
	vmActive = false
	atomic.AddInt32(&vmCount, -1)

	runtime.SetFinalizer(vm, nil)

	recordVMDestroy()
	return nil
}

// finalize is called by the garbage collector as a safety net
func (vm *VM) finalize() {
	if vm == nil {
		return
	}
	// Non-blocking lock: finalizers must not deadlock
	if vm.closeMu.TryLock() {
		defer vm.closeMu.Unlock()
		if !vm.closed {
			vm.closed = true
			if vmActive {
				C.hv_vm_destroy()
				vmActive = false
				atomic.AddInt32(&vmCount, -1)
			}
		}
	}
}

// NewVCPU creates a vCPU bound to the calling OS thread. Call it from a
// Thread and keep every later use of the vCPU on that Thread.
func (vm *VM) NewVCPU() (*VCPU, error) {
	if vm == nil {
		return nil, fmt.Errorf("hv: VM is nil")
	}
	var vcpu C.hv_vcpuid_t
	ret := C.hv_vcpu_create(&vcpu, C.HV_VCPU_DEFAULT)
	if err := hvErr(ret); err != nil {
		return nil, err
	}

	c := &VCPU{id: uint64(vcpu), closed: false}

	runtime.SetFinalizer(c, (*VCPU).finalize)

	recordVCPUCreate()
	return c, nil
}

// Close destroys this vCPU. It must run on the vCPU's thread.
func (c *VCPU) Close() error {
	if c == nil {
		return nil
	}

	c.closeMu.Lock()
	defer c.closeMu.Unlock()

	if c.closed {
		return nil
	}

	ret := C.hv_vcpu_destroy(c.hvID())
	if err := hvErr(ret); err != nil {
		return fmt.Errorf("failed to destroy vCPU: %w", err)
	}

	c.closed = true

	runtime.SetFinalizer(c, nil)

	recordVCPUDestroy()
	return nil
}

// finalize is called by the garbage collector as a safety net
func (c *VCPU) finalize() {
	if c == nil {
		return
	}
	if c.closeMu.TryLock() {
		defer c.closeMu.Unlock()
		if !c.closed {
			// The finalizer runs on an arbitrary thread, so destroy may be
			// refused; only the bookkeeping is reliable here.
			C.hv_vcpu_destroy(c.hvID())
			c.closed = true
		}
	}
}

func (c *VCPU) hvID() C.hv_vcpuid_t { return C.hv_vcpuid_t(c.id) }

// call runs fn with the vCPU locked open.
func (c *VCPU) call(op string, fn func(id C.hv_vcpuid_t) C.hv_return_t) error {
	if c == nil {
		return fmt.Errorf("hv: VCPU is nil")
	}

	c.closeMu.Lock()
	defer c.closeMu.Unlock()

	if c.closed {
		return ErrVCPUClosed
	}

	if err := hvErr(fn(c.hvID())); err != nil {
		recordResourceError()
		return fmt.Errorf("failed to %s: %w", op, err)
	}
	return nil
}

// hvErr converts a framework status to an error.
func hvErr(ret C.hv_return_t) error {
	return hvReturn(uint32(ret))
}

//go:build darwin && amd64 && hypervisor

package vmx

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// hwVCPU is a live vCPU on its own thread.
type hwVCPU struct {
	vm     *VM
	thread *Thread
	vcpu   *VCPU
}

func newHardwareVM(t *testing.T) *VM {
	t.Helper()

	// Skip hypervisor tests in CI environments (no nested virtualization support)
	if isCI() {
		t.Skip("Skipping hypervisor tests in CI environment")
	}
	supported, err := Supported()
	require.NoError(t, err)
	if !supported {
		t.Skip("VT-x hypervisor not supported on this system")
	}

	vm, err := NewVM()
	if err != nil {
		t.Skipf("Cannot create VM (likely missing entitlements): %v", err)
	}
	t.Cleanup(func() { assert.NoError(t, vm.Close()) })
	return vm
}

func newHardwareVCPU(t *testing.T) *hwVCPU {
	t.Helper()

	h := &hwVCPU{vm: newHardwareVM(t)}
	thread, err := StartThread(func() error {
		var err error
		if h.vcpu, err = h.vm.NewVCPU(); err != nil {
			return err
		}
		return h.vcpu.InitVMCS()
	})
	require.NoError(t, err)
	h.thread = thread
	t.Cleanup(func() { assert.NoError(t, thread.Close(h.vcpu.Close)) })
	return h
}

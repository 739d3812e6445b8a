//go:build darwin && amd64 && hypervisor

package vmx

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"
)

func TestMemoryMapValidation(t *testing.T) {
	vm := newHardwareVM(t)
	ps := int(PageSize())

	t.Run("nil VM", func(t *testing.T) {
		var nilVM *VM
		assert.Error(t, nilVM.Map(make([]byte, ps), 0x4000, MemRead))
	})

	t.Run("empty host buffer", func(t *testing.T) {
		err := vm.Map([]byte{}, 0x4000, MemRead)
		assert.EqualError(t, err, "hv: map requires non-empty host buffer")
	})

	t.Run("unaligned guest address", func(t *testing.T) {
		assert.ErrorIs(t, vm.Map(make([]byte, ps), 0x4001, MemRead), ErrInvalidAlignment)
	})

	t.Run("unaligned host buffer size", func(t *testing.T) {
		assert.ErrorIs(t, vm.Map(make([]byte, ps+1), 0x4000, MemRead), ErrInvalidAlignment)
	})

	t.Run("unaligned host buffer address", func(t *testing.T) {
		buf, err := unix.Mmap(-1, 0, 2*ps, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_ANON|unix.MAP_PRIVATE)
		require.NoError(t, err)
		defer unix.Munmap(buf)

		assert.ErrorIs(t, vm.Map(buf[1:ps+1], 0x4000, MemRead), ErrInvalidAlignment)
	})

	t.Run("no permissions", func(t *testing.T) {
		assert.Error(t, vm.Map(make([]byte, ps), 0x4000, 0))
	})

	t.Run("valid aligned mapping", func(t *testing.T) {
		buf, err := unix.Mmap(-1, 0, ps, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_ANON|unix.MAP_PRIVATE)
		require.NoError(t, err)
		defer unix.Munmap(buf)

		require.NoError(t, vm.Map(buf, 0x4000, MemRead|MemWrite|MemExec))
		assert.NoError(t, vm.Protect(0x4000, uint64(ps), MemRead|MemExec))
		assert.NoError(t, vm.Unmap(0x4000, uint64(ps)))
	})
}

func TestMemoryUnmapValidation(t *testing.T) {
	vm := newHardwareVM(t)
	ps := PageSize()

	t.Run("nil VM", func(t *testing.T) {
		var nilVM *VM
		assert.Error(t, nilVM.Unmap(0x4000, ps))
	})

	t.Run("unaligned guest address", func(t *testing.T) {
		assert.ErrorIs(t, vm.Unmap(0x4001, ps), ErrInvalidAlignment)
	})

	t.Run("unaligned size", func(t *testing.T) {
		assert.ErrorIs(t, vm.Unmap(0x4000, ps+1), ErrInvalidAlignment)
	})

	t.Run("closed VM", func(t *testing.T) {
		require.NoError(t, vm.Close())
		assert.ErrorIs(t, vm.Unmap(0x4000, ps), ErrVMClosed)
	})
}

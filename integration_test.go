//go:build darwin && amd64 && hypervisor

package vmx

import (
	"io"
	"log/slog"
	"testing"

	"github.com/blacktop/go-vmx/vmcs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"
)

func mapGuestCode(t *testing.T, vm *VM, guestPhys uint64, code []byte) {
	t.Helper()

	buf, err := unix.Mmap(-1, 0, int(PageSize()), unix.PROT_READ|unix.PROT_WRITE, unix.MAP_ANON|unix.MAP_PRIVATE)
	require.NoError(t, err)
	t.Cleanup(func() { assert.NoError(t, unix.Munmap(buf)) })

	copy(buf, code)
	require.NoError(t, vm.Map(buf, guestPhys, MemRead|MemWrite|MemExec))
	t.Cleanup(func() { assert.NoError(t, vm.Unmap(guestPhys, uint64(len(buf)))) })
}

func realModeState(rip uint64) *ArchState {
	s := new(ArchState)
	ResetState(s)
	s.Segs[SegCS].Selector = 0
	s.Segs[SegCS].Base = 0
	s.RIP = rip
	return s
}

func TestRealModeExecution(t *testing.T) {
	h := newHardwareVCPU(t)

	const guestPhys = 0x4000
	mapGuestCode(t, h.vm, guestPhys, []byte{
		0xb8, 0x42, 0x00, // mov ax, 0x42
		0xf4, // hlt
	})

	state := realModeState(guestPhys)
	proc := NewProcessor(h.vcpu, state, new(IRQMask), ProcessorConfig{
		Logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	})

	var info ExitInfo
	err := h.thread.Do(func() error {
		var err error
		if info, err = proc.Exec(h.vcpu); err != nil {
			return err
		}
		proc.Synchronize()
		return nil
	})
	require.NoError(t, err)

	assert.Equal(t, vmcs.ExitHLT, info.Reason)
	assert.True(t, state.Halted)
	assert.Equal(t, uint64(0x42), state.Regs[RegIndexEAX]&0xffff)
	assert.Equal(t, uint64(guestPhys+4), state.RIP)
	assert.Equal(t, -1, state.InterruptInjected)
}

func TestExternalInterruptWakesHalt(t *testing.T) {
	h := newHardwareVCPU(t)

	// Real-mode IVT entry 0x20 points at the handler at 0x4100.
	const guestPhys = 0x0
	code := make([]byte, 0x4200)
	code[0x20*4+0] = 0x00
	code[0x20*4+1] = 0x41
	copy(code[0x4000:], []byte{
		0xfb, // sti
		0xf4, // hlt
		0xf4, // hlt
	})
	copy(code[0x4100:], []byte{
		0xb8, 0x99, 0x00, // mov ax, 0x99
		0xf4, // hlt
	})

	buf, err := unix.Mmap(-1, 0, 0x5000, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_ANON|unix.MAP_PRIVATE)
	require.NoError(t, err)
	defer unix.Munmap(buf)
	copy(buf, code)
	require.NoError(t, h.vm.Map(buf, guestPhys, MemRead|MemWrite|MemExec))
	defer h.vm.Unmap(guestPhys, uint64(len(buf)))

	state := realModeState(0x4000)
	state.Regs[RegIndexESP] = 0x3000
	irq := new(IRQMask)
	ctrl := &fakeController{pending: []uint8{0x20}, irr: -1}
	proc := NewProcessor(h.vcpu, state, irq, ProcessorConfig{
		Controller: ctrl,
		Logger:     slog.New(slog.NewTextHandler(io.Discard, nil)),
	})

	err = h.thread.Do(func() error {
		if _, err := proc.Exec(h.vcpu); err != nil {
			return err
		}
		if !state.Halted {
			t.Error("guest did not halt")
		}

		irq.Raise(IRQHard)
		if _, err := proc.Exec(h.vcpu); err != nil {
			return err
		}
		proc.Synchronize()
		return nil
	})
	require.NoError(t, err)

	assert.Equal(t, 1, ctrl.acks)
	assert.Equal(t, uint64(0x99), state.Regs[RegIndexEAX]&0xffff)
}

func TestVMLifecycle(t *testing.T) {
	vm := newHardwareVM(t)

	_, err := NewVM()
	assert.ErrorIs(t, err, ErrVMAlreadyActive)

	require.NoError(t, vm.Close())
	require.NoError(t, vm.Close(), "close is idempotent")

	vm2, err := NewVM()
	require.NoError(t, err, "a VM can be created after the previous one is closed")
	require.NoError(t, vm2.Close())
}

func TestVCPULifecycle(t *testing.T) {
	vm := newHardwareVM(t)

	for i := 0; i < 3; i++ {
		var vcpu *VCPU
		thread, err := StartThread(func() error {
			var err error
			vcpu, err = vm.NewVCPU()
			return err
		})
		require.NoError(t, err, "vCPU %d", i)
		t.Logf("Created vCPU %d with ID %d", i, vcpu.id)
		require.NoError(t, thread.Close(vcpu.Close))
	}
}

func TestHardwareMetrics(t *testing.T) {
	ResetMetrics()
	h := newHardwareVCPU(t)

	m := GetMetrics()
	assert.Equal(t, uint64(1), m.VMCreated)
	assert.NotZero(t, m.AvgVMCreateTimeNs)
	assert.Equal(t, uint64(1), m.VCPUCreated)

	state := realModeState(0)
	proc := NewProcessor(h.vcpu, state, new(IRQMask), ProcessorConfig{
		Logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
	require.NoError(t, h.thread.Do(func() error {
		proc.Commit()
		return nil
	}))

	m = GetMetrics()
	assert.NotZero(t, m.RegisterOps)
	assert.NotZero(t, m.VMCSOps)
	assert.Equal(t, uint64(1), m.FPStateOps)
}

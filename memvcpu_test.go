package vmx

import (
	"testing"

	"github.com/blacktop/go-vmx/vmcs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemVCPURegisters(t *testing.T) {
	m := NewMemVCPU(fixedClock(0))

	require.NoError(t, m.WriteRegister(RegRAX, 0x1234))
	v, err := m.ReadRegister(RegRAX)
	require.NoError(t, err)
	assert.Equal(t, uint64(0x1234), v)

	_, err = m.ReadRegister(Reg(-1))
	assert.ErrorIs(t, err, ErrInvalidRegister)
	assert.ErrorIs(t, m.WriteRegister(RegXCR0+1, 0), ErrInvalidRegister)
}

func TestMemVCPUFPStateSize(t *testing.T) {
	m := NewMemVCPU(fixedClock(0))

	assert.ErrorIs(t, m.ReadFPState(make([]byte, 512)), ErrInvalidBuffer)
	assert.ErrorIs(t, m.WriteFPState(make([]byte, XSaveSize+1)), ErrInvalidBuffer)

	in := make([]byte, XSaveSize)
	in[XSaveMXCSROffset] = 0x80
	require.NoError(t, m.WriteFPState(in))

	out := make([]byte, XSaveSize)
	require.NoError(t, m.ReadFPState(out))
	assert.Equal(t, in, out)
}

func TestMemVCPUSyncTSC(t *testing.T) {
	m := NewMemVCPU(fixedClock(1000))

	require.NoError(t, m.SyncTSC(1500))
	assert.Equal(t, uint64(500), m.Field(vmcs.TSCOffset))

	var tsc uint64 = 400
	require.NoError(t, m.SyncTSC(tsc))
	assert.Equal(t, tsc-1000, m.Field(vmcs.TSCOffset), "offset wraps for a TSC behind the host")
}

func TestMemVCPURun(t *testing.T) {
	m := NewMemVCPU(fixedClock(0))
	m.SetField(vmcs.EntryIntrInfo, vmcs.MakeIntrInfo(0x20, vmcs.IntrTypeHWIntr).Uint64())
	m.SetField(vmcs.IDTVectoringInfo, vmcs.MakeIntrInfo(14, vmcs.IntrTypeHWException).Uint64())

	m.QueueExit(ExitInfo{Reason: vmcs.ExitIO, Qualification: 0x60, InstructionLength: 2})

	info, err := m.Run()
	require.NoError(t, err)
	assert.Equal(t, vmcs.ExitIO, info.Reason)
	assert.Zero(t, m.Field(vmcs.EntryIntrInfo))
	assert.Zero(t, m.Field(vmcs.IDTVectoringInfo))
	assert.Equal(t, uint64(vmcs.ExitIO), m.Field(vmcs.ExitReasonField))
	assert.Equal(t, uint64(0x60), m.Field(vmcs.ExitQualification))
	assert.Equal(t, uint64(2), m.Field(vmcs.ExitInstructionLength))

	_, err = m.Run()
	assert.ErrorIs(t, err, ErrNoExitQueued)
}

func TestMemVCPUControlRegisters(t *testing.T) {
	m := NewMemVCPU(fixedClock(0))

	require.NoError(t, m.SetCR0(CR0PE|CR0PG))
	require.NoError(t, m.SetCR4(CR4PAE))
	require.NoError(t, m.Flush())

	assert.Equal(t, CR0PE|CR0PG, m.Field(vmcs.GuestCR0))
	assert.Equal(t, CR0PE|CR0PG, m.Field(vmcs.CR0Shadow))
	assert.Equal(t, CR4PAE, m.Field(vmcs.CR4Shadow))
	assert.Equal(t, 1, m.Flushes())
}

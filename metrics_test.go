package vmx

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/blacktop/go-vmx/vmcs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetrics(t *testing.T) {
	ResetMetrics()

	// Verify initial state
	m := GetMetrics()
	assert.Zero(t, m.RegisterOps)
	assert.Zero(t, m.RunOperations)

	h := newHarness(t, true)
	ResetState(h.state)
	h.proc.Put()

	m = GetMetrics()
	assert.Equal(t, uint64(1), m.FPStateOps)
	// 16 GPRs, RFLAGS, RIP, XCR0, TPR and 8 debug registers.
	assert.Equal(t, uint64(28), m.RegisterOps)
	// SYSENTER x3, STAR, the four long-mode MSRs, GS and FS base.
	assert.Equal(t, uint64(10), m.MSROps)
	assert.NotZero(t, m.VMCSOps)

	h.mem.QueueExit(ExitInfo{Reason: vmcs.ExitCPUID})
	_, err := h.proc.Exec(h.mem)
	require.NoError(t, err)

	m = GetMetrics()
	assert.Equal(t, uint64(1), m.RunOperations)
}

func TestMetricsAverages(t *testing.T) {
	ResetMetrics()

	recordVMCreate(4 * time.Millisecond)
	recordVMCreate(2 * time.Millisecond)
	recordRun(10 * time.Microsecond)

	m := GetMetrics()
	assert.Equal(t, uint64(2), m.VMCreated)
	assert.Equal(t, uint64(3*time.Millisecond), m.AvgVMCreateTimeNs)
	assert.Equal(t, uint64(10*time.Microsecond), m.AvgRunTimeNs)

	data, err := json.Marshal(m)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"avg_vm_create_time_ns":3000000`)

	ResetMetrics()
	assert.Equal(t, Metrics{}, GetMetrics())
}

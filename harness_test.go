package vmx

import (
	"io"
	"log/slog"
	"testing"

	"github.com/blacktop/go-vmx/vmcs"
)

// fixedClock reports constant readings.
type fixedClock int64

func (c fixedClock) ReadClock(ClockKind) int64 { return int64(c) }

// fakeController records the calls made by the Processor.
type fakeController struct {
	pending []uint8
	tpr     uint8
	irr     int // -1 for none

	polls      int
	acks       int
	tprReports []TPRAccess
	tprRIPs    []uint64
}

func (c *fakeController) PendingInterrupt() (uint8, bool) {
	c.acks++
	if len(c.pending) == 0 {
		return 0, false
	}
	v := c.pending[0]
	c.pending = c.pending[1:]
	return v, true
}

func (c *fakeController) Poll() { c.polls++ }

func (c *fakeController) ReportTPRAccess(rip uint64, access TPRAccess) {
	c.tprRIPs = append(c.tprRIPs, rip)
	c.tprReports = append(c.tprReports, access)
}

func (c *fakeController) TPR() uint8 { return c.tpr }

func (c *fakeController) HighestIRR() (uint8, bool) {
	if c.irr < 0 {
		return 0, false
	}
	return uint8(c.irr), true
}

// fakeResetter counts INIT and SIPI deliveries.
type fakeResetter struct {
	inits, sipis int
}

func (r *fakeResetter) Init(s *ArchState) {
	r.inits++
	s.RIP = 0xfff0
}

func (r *fakeResetter) SIPI(s *ArchState) {
	r.sipis++
	s.Halted = false
}

type harness struct {
	mem   *MemVCPU
	state *ArchState
	irq   *IRQMask
	ctrl  *fakeController
	reset *fakeResetter
	proc  *Processor
}

const testCycles = 1_000_000

func newHarness(t *testing.T, longMode bool) *harness {
	t.Helper()

	h := &harness{
		mem:   NewMemVCPU(fixedClock(testCycles)),
		state: new(ArchState),
		irq:   new(IRQMask),
		ctrl:  &fakeController{irr: -1},
		reset: new(fakeResetter),
	}
	h.proc = NewProcessor(h.mem, h.state, h.irq, ProcessorConfig{
		LongMode:   longMode,
		Controller: h.ctrl,
		Resetter:   h.reset,
		Clock:      fixedClock(testCycles),
		Logger:     slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
	return h
}

// exitContext sets the fields the hardware leaves behind after an exit and
// marks the hardware as authoritative.
func (h *harness) exitContext(rflags, interruptibility uint64, idt vmcs.IntrInfo, reason vmcs.ExitReason) {
	h.proc.dirty = false
	h.mem.SetRegister(RegRFLAGS, rflags)
	h.state.RFLAGS = rflags
	h.mem.SetField(vmcs.GuestInterruptibility, interruptibility)
	h.mem.SetField(vmcs.IDTVectoringInfo, idt.Uint64())
	h.mem.SetField(vmcs.ExitReasonField, uint64(reason))
	h.proc.RefreshInterruptibility()
}

func (h *harness) entryInfo() vmcs.IntrInfo {
	return vmcs.IntrInfo(h.mem.Field(vmcs.EntryIntrInfo))
}

func (h *harness) procCtls() uint64 {
	return h.mem.Field(vmcs.PriProcBasedCtls)
}

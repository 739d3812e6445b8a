package vmx

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/blacktop/go-vmx/vmcs"
)

// InterruptController is the local APIC/PIC model that feeds a vCPU.
type InterruptController interface {
	// PendingInterrupt acknowledges and returns the next deliverable vector.
	PendingInterrupt() (vector uint8, ok bool)
	// Poll re-evaluates the controller's input lines.
	Poll()
	// ReportTPRAccess records a trapped task-priority access at rip.
	ReportTPRAccess(rip uint64, access TPRAccess)
	// TPR returns the task priority as seen through CR8 (0-15).
	TPR() uint8
	// HighestIRR returns the highest-priority requested vector.
	HighestIRR() (vector uint8, ok bool)
}

// Resetter applies INIT and startup-IPI semantics to a vCPU.
type Resetter interface {
	Init(s *ArchState)
	SIPI(s *ArchState)
}

// ProcessorConfig configures a Processor. The zero value is usable.
type ProcessorConfig struct {
	// LongMode selects a 64-bit capable CPU model: all sixteen general
	// registers and the SYSCALL MSRs are synchronized.
	LongMode bool

	Controller InterruptController
	Resetter   Resetter
	Clock      Clock
	Logger     *slog.Logger
}

// Processor keeps one vCPU's ArchState consistent with its hardware
// counterpart and arbitrates event injection on every entry.
//
// A Processor is owned by the vCPU's thread; only its IRQMask may be touched
// from other goroutines.
type Processor struct {
	hw    Backend
	state *ArchState
	irq   *IRQMask
	cfg   ProcessorConfig
	log   *slog.Logger

	// dirty means state holds changes not yet written to hw.
	dirty         bool
	interruptable bool
}

// NewProcessor binds state and irq to the hardware vCPU hw. The initial
// state is written on the first entry.
func NewProcessor(hw Backend, state *ArchState, irq *IRQMask, cfg ProcessorConfig) *Processor {
	if cfg.Controller == nil {
		cfg.Controller = nopController{}
	}
	if cfg.Resetter == nil {
		cfg.Resetter = DefaultResetter{}
	}
	if cfg.Clock == nil {
		cfg.Clock = NewHostClock()
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Processor{
		hw:    hw,
		state: state,
		irq:   irq,
		cfg:   cfg,
		log:   cfg.Logger,
		dirty: true,
	}
}

func (p *Processor) State() *ArchState { return p.state }
func (p *Processor) IRQ() *IRQMask     { return p.irq }

// Interruptable reports whether the guest accepted external interrupts at
// the last RefreshInterruptibility.
func (p *Processor) Interruptable() bool { return p.interruptable }

// Dirty reports whether the emulator copy of the state is authoritative.
func (p *Processor) Dirty() bool { return p.dirty }

// Synchronize pulls the hardware state into the emulator copy unless the
// copy is already authoritative.
func (p *Processor) Synchronize() {
	if !p.dirty {
		p.Get()
		p.dirty = true
	}
}

// Commit pushes a modified emulator copy back to the hardware.
func (p *Processor) Commit() {
	if p.dirty {
		p.Put()
		p.dirty = false
	}
}

// MarkDirty flags the emulator copy as modified outside the Processor.
func (p *Processor) MarkDirty() { p.dirty = true }

// RefreshInterruptibility samples whether the guest is in an STI or MOV SS
// shadow.
func (p *Processor) RefreshInterruptibility() {
	v := p.rvmcs(vmcs.GuestInterruptibility)
	p.interruptable = v&(vmcs.InterruptibilitySTIBlocking|vmcs.InterruptibilityMovSSBlocking) == 0
}

// PrepareEntry runs the pre-entry sequence and reports whether the vCPU is
// halted and must not be entered.
func (p *Processor) PrepareEntry() bool {
	if p.ProcessEvents() {
		return true
	}
	p.Commit()
	p.RefreshInterruptibility()
	p.InjectInterrupts()
	p.updateTPR()
	return false
}

// ExitAction tells the run loop how to proceed after an exit.
type ExitAction int

const (
	// ExitContinue re-enters the guest.
	ExitContinue ExitAction = iota
	// ExitHalt stops until an event wakes the vCPU.
	ExitHalt
	// ExitUnhandled returns the exit to the caller.
	ExitUnhandled
)

// HandleExit processes the exits owned by the injection machinery.
func (p *Processor) HandleExit(info ExitInfo) ExitAction {
	switch info.Reason {
	case vmcs.ExitIntrWindow:
		p.clearIntWindowExiting()
		return ExitContinue
	case vmcs.ExitNMIWindow:
		p.clearNMIWindowExiting()
		return ExitContinue
	case vmcs.ExitExtIntr:
		return ExitContinue
	case vmcs.ExitHLT:
		p.advanceRIP(info.InstructionLength)
		rflags := p.rreg(RegRFLAGS)
		idt := vmcs.IntrInfo(p.rvmcs(vmcs.IDTVectoringInfo))
		wake := (p.irq.Pending(IRQHard) && rflags&FlagIF != 0) || p.irq.Pending(IRQNMI)
		if !wake && !idt.Valid() {
			p.state.Halted = true
			return ExitHalt
		}
		return ExitContinue
	default:
		return ExitUnhandled
	}
}

// Exec enters the guest through r until the vCPU halts or an exit the
// Processor does not own occurs. A halted vCPU yields Reason ExitHLT.
func (p *Processor) Exec(r Runner) (ExitInfo, error) {
	for {
		if p.PrepareEntry() {
			return ExitInfo{Reason: vmcs.ExitHLT}, nil
		}
		start := time.Now()
		info, err := r.Run()
		recordRun(time.Since(start))
		if err != nil {
			return info, err
		}
		switch p.HandleExit(info) {
		case ExitHalt:
			return info, nil
		case ExitUnhandled:
			return info, nil
		}
	}
}

func (p *Processor) advanceRIP(n uint64) {
	p.wreg(RegRIP, p.rreg(RegRIP)+n)
	v := p.rvmcs(vmcs.GuestInterruptibility)
	p.wvmcs(vmcs.GuestInterruptibility, v&^(vmcs.InterruptibilitySTIBlocking|vmcs.InterruptibilityMovSSBlocking))
}

func (p *Processor) numGPRs() int {
	if p.cfg.LongMode {
		return 16
	}
	return 8
}

func (p *Processor) fatal(op string, err error) {
	recordResourceError()
	p.log.Error("vmx: backend failure", "op", op, "err", err)
	panic(&FatalError{Op: op, Err: err})
}

func (p *Processor) rreg(r Reg) uint64 {
	recordRegisterOp()
	v, err := p.hw.ReadRegister(r)
	if err != nil {
		p.fatal("read register "+r.String(), err)
	}
	return v
}

func (p *Processor) wreg(r Reg, v uint64) {
	recordRegisterOp()
	if err := p.hw.WriteRegister(r, v); err != nil {
		p.fatal("write register "+r.String(), err)
	}
}

func (p *Processor) rvmcs(f vmcs.Field) uint64 {
	recordVMCSOp()
	v, err := p.hw.ReadVMCS(f)
	if err != nil {
		p.fatal(fieldOp("read vmcs", f), err)
	}
	return v
}

func (p *Processor) wvmcs(f vmcs.Field, v uint64) {
	recordVMCSOp()
	if err := p.hw.WriteVMCS(f, v); err != nil {
		p.fatal(fieldOp("write vmcs", f), err)
	}
}

func (p *Processor) rmsr(msr uint32) uint64 {
	recordMSROp()
	v, err := p.hw.ReadMSR(msr)
	if err != nil {
		p.fatal(msrOp("read msr", msr), err)
	}
	return v
}

func (p *Processor) wmsr(msr uint32, v uint64) {
	recordMSROp()
	if err := p.hw.WriteMSR(msr, v); err != nil {
		p.fatal(msrOp("write msr", msr), err)
	}
}

func fieldOp(verb string, f vmcs.Field) string {
	return fmt.Sprintf("%s 0x%04x", verb, uint32(f))
}

func msrOp(verb string, msr uint32) string {
	return fmt.Sprintf("%s 0x%x", verb, msr)
}

// nopController models a vCPU with no interrupt controller attached.
type nopController struct{}

func (nopController) PendingInterrupt() (uint8, bool)   { return 0, false }
func (nopController) Poll()                             {}
func (nopController) ReportTPRAccess(uint64, TPRAccess) {}
func (nopController) TPR() uint8                        { return 0 }
func (nopController) HighestIRR() (uint8, bool)         { return 0, false }

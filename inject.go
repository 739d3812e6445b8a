package vmx

import (
	"github.com/blacktop/go-vmx/vmcs"
)

// InjectInterrupts selects the event, if any, to deliver on the next VM entry.
//
// An event whose delivery was cut short by the last exit is re-injected
// first. A pending NMI is injected when nothing else occupies the entry and
// NMIs are not blocked; otherwise NMI-window exiting is armed. An external
// interrupt is taken from the controller only when the guest is
// interruptable with RFLAGS.IF set and the entry is free. A hardware
// interrupt request still pending afterwards arms interrupt-window exiting.
func (p *Processor) InjectInterrupts() {
	allowNMI := p.rvmcs(vmcs.GuestInterruptibility)&vmcs.InterruptibilityNMIBlocking == 0

	idt := vmcs.IntrInfo(p.rvmcs(vmcs.IDTVectoringInfo))
	staged := idt.Valid()
	if staged {
		reason := vmcs.BasicExitReason(p.rvmcs(vmcs.ExitReasonField))
		if idt.Type() == vmcs.IntrTypeNMI && reason != vmcs.ExitTaskSwitch {
			allowNMI = true
			p.clearNMIBlocking()
		}
		if allowNMI || idt.Type() != vmcs.IntrTypeNMI {
			p.reinject(idt)
		} else {
			p.log.Debug("vmx: nmi re-injection suppressed", "info", idt)
		}
	}

	if p.irq.Pending(IRQNMI) {
		if allowNMI && !staged {
			if p.irq.TestAndClear(IRQNMI) {
				p.stage(vmcs.MakeIntrInfo(vmcs.VectorNMI, vmcs.IntrTypeNMI))
				staged = true
				recordNMIInjection()
			}
		} else {
			p.setNMIWindowExiting()
		}
	}

	if !staged && p.interruptable && p.state.InterruptsEnabled() && p.irq.TestAndClear(IRQHard) {
		if vector, ok := p.cfg.Controller.PendingInterrupt(); ok {
			p.stage(vmcs.MakeIntrInfo(vector, vmcs.IntrTypeHWIntr))
			recordIntrInjection()
		}
	}
	if p.irq.Pending(IRQHard) {
		p.setIntWindowExiting()
	}
}

// reinject replays an event whose delivery was interrupted by the last exit.
func (p *Processor) reinject(idt vmcs.IntrInfo) {
	info := idt.ForEntry()

	if info.Type().IsSoftware() {
		p.wvmcs(vmcs.EntryInstLength, p.rvmcs(vmcs.ExitInstructionLength))
	}
	if v := info.Vector(); v == vmcs.VectorBP || v == vmcs.VectorOF {
		// INT3 and INTO are re-raised by the instruction on entry.
		info = info.WithType(vmcs.IntrTypeSWException)
		p.wvmcs(vmcs.EntryInstLength, p.rvmcs(vmcs.ExitInstructionLength))
	}
	if info.HasErrorCode() {
		p.wvmcs(vmcs.EntryExceptionError, p.rvmcs(vmcs.IDTVectoringError))
	}

	p.stage(info)
	recordReinjection()
}

func (p *Processor) stage(info vmcs.IntrInfo) {
	p.log.Debug("vmx: inject", "vector", info.Vector(), "type", info.Type())
	p.wvmcs(vmcs.EntryIntrInfo, info.Uint64())
}

func (p *Processor) clearNMIBlocking() {
	v := p.rvmcs(vmcs.GuestInterruptibility)
	p.wvmcs(vmcs.GuestInterruptibility, v&^vmcs.InterruptibilityNMIBlocking)
}

func (p *Processor) setIntWindowExiting() {
	v := p.rvmcs(vmcs.PriProcBasedCtls)
	p.wvmcs(vmcs.PriProcBasedCtls, v|vmcs.ProcIntWindowExiting)
	recordIntrWindowRequest()
}

func (p *Processor) clearIntWindowExiting() {
	v := p.rvmcs(vmcs.PriProcBasedCtls)
	p.wvmcs(vmcs.PriProcBasedCtls, v&^vmcs.ProcIntWindowExiting)
}

func (p *Processor) setNMIWindowExiting() {
	v := p.rvmcs(vmcs.PriProcBasedCtls)
	p.wvmcs(vmcs.PriProcBasedCtls, v|vmcs.ProcNMIWindowExiting)
	recordNMIWindowRequest()
}

func (p *Processor) clearNMIWindowExiting() {
	v := p.rvmcs(vmcs.PriProcBasedCtls)
	p.wvmcs(vmcs.PriProcBasedCtls, v&^vmcs.ProcNMIWindowExiting)
}

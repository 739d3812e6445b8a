package vmx

import (
	"github.com/blacktop/go-vmx/vmcs"
)

// Put writes the emulator state to the hardware vCPU. Any backend failure
// panics with a *FatalError.
func (p *Processor) Put() {
	s := p.state

	for i := 0; i < p.numGPRs(); i++ {
		p.wreg(gprRegs[i], s.Regs[i])
	}
	p.wreg(RegRFLAGS, s.RFLAGS)
	p.wreg(RegRIP, s.RIP)

	p.wreg(RegXCR0, s.XCR0)
	p.putXSave()
	p.putSegments()
	p.putMSRs()

	for i, r := range debugRegs {
		p.wreg(r, s.DR[i])
	}
}

// Get reads the hardware vCPU into the emulator state. Any backend failure
// panics with a *FatalError.
func (p *Processor) Get() {
	s := p.state

	for i := 0; i < p.numGPRs(); i++ {
		s.Regs[i] = p.rreg(gprRegs[i])
	}
	s.RFLAGS = p.rreg(RegRFLAGS)
	s.RIP = p.rreg(RegRIP)

	p.getXSave()
	s.XCR0 = p.rreg(RegXCR0)
	p.getSegments()
	p.getMSRs()

	for i, r := range debugRegs {
		s.DR[i] = p.rreg(r)
	}
}

func (p *Processor) putSegments() {
	s := p.state

	p.wvmcs(vmcs.GuestIDTRLimit, uint64(s.IDT.Limit))
	p.wvmcs(vmcs.GuestIDTRBase, s.IDT.Base)
	p.wvmcs(vmcs.GuestGDTRLimit, uint64(s.GDT.Limit))
	p.wvmcs(vmcs.GuestGDTRBase, s.GDT.Base)

	p.wvmcs(vmcs.GuestCR3, s.CR[3])
	p.updateTPR()
	p.wvmcs(vmcs.GuestIA32EFER, s.EFER)

	if err := p.hw.SetCR4(s.CR[4]); err != nil {
		p.fatal("set cr4", err)
	}
	if err := p.hw.SetCR0(s.CR[0]); err != nil {
		p.fatal("set cr0", err)
	}

	realMode := s.IsReal()
	for _, i := range []int{SegCS, SegDS, SegES, SegSS, SegFS, SegGS} {
		p.writeSegment(vmcs.Segment(i), SegmentToHardware(s.Segs[i], realMode, false))
	}
	p.writeSegment(vmcs.SegTR, SegmentToHardware(s.TR, realMode, true))
	p.writeSegment(vmcs.SegLDTR, SegmentToHardware(s.LDT, realMode, false))

	if err := p.hw.Flush(); err != nil {
		p.fatal("flush", err)
	}
}

func (p *Processor) getSegments() {
	s := p.state

	s.InterruptInjected = -1

	for _, i := range []int{SegCS, SegDS, SegES, SegFS, SegGS, SegSS} {
		s.Segs[i] = SegmentFromHardware(p.readSegment(vmcs.Segment(i)))
	}
	s.TR = SegmentFromHardware(p.readSegment(vmcs.SegTR))
	s.LDT = SegmentFromHardware(p.readSegment(vmcs.SegLDTR))

	s.IDT.Limit = uint32(p.rvmcs(vmcs.GuestIDTRLimit))
	s.IDT.Base = p.rvmcs(vmcs.GuestIDTRBase)
	s.GDT.Limit = uint32(p.rvmcs(vmcs.GuestGDTRLimit))
	s.GDT.Base = p.rvmcs(vmcs.GuestGDTRBase)

	s.CR[0] = p.guestCR(vmcs.GuestCR0, vmcs.CR0Mask, vmcs.CR0Shadow)
	s.CR[2] = 0
	s.CR[3] = p.rvmcs(vmcs.GuestCR3)
	s.CR[4] = p.guestCR(vmcs.GuestCR4, vmcs.CR4Mask, vmcs.CR4Shadow)

	s.EFER = p.rvmcs(vmcs.GuestIA32EFER)
}

// guestCR returns a control register as the guest sees it: host-owned bits
// come from the read shadow.
func (p *Processor) guestCR(reg, mask, shadow vmcs.Field) uint64 {
	m := p.rvmcs(mask)
	return p.rvmcs(reg)&^m | p.rvmcs(shadow)&m
}

// updateTPR mirrors the controller's task priority into the hardware and
// arms the TPR threshold so the guest exits once it lowers the priority
// below the highest requested vector.
func (p *Processor) updateTPR() {
	tpr := uint64(p.cfg.Controller.TPR()) << 4
	p.wreg(RegTPR, tpr)

	irr, ok := p.cfg.Controller.HighestIRR()
	var threshold uint64
	switch {
	case !ok:
		threshold = 0
	case uint64(irr) > tpr:
		threshold = tpr >> 4
	default:
		threshold = uint64(irr) >> 4
	}
	p.wvmcs(vmcs.TPRThreshold, threshold)
}

package vmx

// Architectural values loaded by RESET and INIT.
const (
	resetRFLAGS = 0x2
	resetRIP    = 0xfff0
	resetCR0    = 0x60000010
	resetEDX    = 0x600
	resetDR6    = 0xffff0ff0
	resetDR7    = 0x400
	resetFCW    = 0x37f
	resetMXCSR  = 0x1f80
)

// ResetState loads the power-on register state into s.
func ResetState(s *ArchState) {
	*s = ArchState{}

	s.RIP = resetRIP
	s.RFLAGS = resetRFLAGS
	s.Regs[RegIndexEDX] = resetEDX
	s.CR[0] = resetCR0
	s.DR[6] = resetDR6
	s.DR[7] = resetDR7
	s.XCR0 = 1

	data := DescPMask | DescSMask | 0x3<<DescTypeShift
	for i := range s.Segs {
		s.Segs[i] = SegmentCache{Limit: 0xffff, Flags: data}
	}
	s.Segs[SegCS] = SegmentCache{
		Selector: 0xf000,
		Base:     0xffff0000,
		Limit:    0xffff,
		Flags:    DescPMask | DescSMask | 0xb<<DescTypeShift,
	}
	s.TR = SegmentCache{Limit: 0xffff, Flags: DescPMask | 0xb<<DescTypeShift}
	s.LDT = SegmentCache{Limit: 0xffff, Flags: DescPMask | 0x2<<DescTypeShift}
	s.GDT = DescriptorTable{Limit: 0xffff}
	s.IDT = DescriptorTable{Limit: 0xffff}

	s.FPUC = resetFCW
	s.MXCSR = resetMXCSR
	for i := range s.FPTagEmpty {
		s.FPTagEmpty[i] = true
	}
	s.XStateBV = 0x3

	s.InterruptInjected = -1
}

// DefaultResetter applies architectural INIT and startup-IPI semantics.
// Application processors wait for a SIPI after INIT; the bootstrap
// processor resumes immediately. The SIPI vector is fixed by StartupVector;
// an APIC model that tracks the delivered vector supplies its own Resetter.
type DefaultResetter struct {
	AP            bool
	StartupVector uint8
}

func (r DefaultResetter) Init(s *ArchState) {
	ResetState(s)
	s.Halted = r.AP
}

// SIPI starts a processor waiting after INIT in real mode at
// StartupVector<<12.
func (r DefaultResetter) SIPI(s *ArchState) {
	if !r.AP || !s.Halted {
		return
	}
	s.Segs[SegCS].Selector = uint16(r.StartupVector) << 8
	s.Segs[SegCS].Base = uint64(r.StartupVector) << 12
	s.RIP = 0
	s.Halted = false
}

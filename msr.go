package vmx

import (
	"github.com/blacktop/go-vmx/vmcs"
)

// Model-specific registers synchronized with the hypervisor.
const (
	MSRAPICBase     uint32 = 0x0000001b
	MSRSysenterCS   uint32 = 0x00000174
	MSRSysenterESP  uint32 = 0x00000175
	MSRSysenterEIP  uint32 = 0x00000176
	MSRStar         uint32 = 0xc0000081
	MSRLStar        uint32 = 0xc0000082
	MSRCStar        uint32 = 0xc0000083
	MSRFMask        uint32 = 0xc0000084
	MSRFSBase       uint32 = 0xc0000100
	MSRGSBase       uint32 = 0xc0000101
	MSRKernelGSBase uint32 = 0xc0000102
)

func (p *Processor) putMSRs() {
	s := p.state

	p.wmsr(MSRSysenterCS, s.SysenterCS)
	p.wmsr(MSRSysenterESP, s.SysenterESP)
	p.wmsr(MSRSysenterEIP, s.SysenterEIP)
	p.wmsr(MSRStar, s.Star)

	if p.cfg.LongMode {
		p.wmsr(MSRCStar, s.CStar)
		p.wmsr(MSRKernelGSBase, s.KernelGSBase)
		p.wmsr(MSRFMask, s.FMask)
		p.wmsr(MSRLStar, s.LStar)
	}

	p.wmsr(MSRGSBase, s.Segs[SegGS].Base)
	p.wmsr(MSRFSBase, s.Segs[SegFS].Base)

	if err := p.hw.SyncTSC(s.TSC); err != nil {
		p.fatal("sync tsc", err)
	}
}

func (p *Processor) getMSRs() {
	s := p.state

	s.SysenterCS = p.rmsr(MSRSysenterCS)
	s.SysenterESP = p.rmsr(MSRSysenterESP)
	s.SysenterEIP = p.rmsr(MSRSysenterEIP)
	s.Star = p.rmsr(MSRStar)

	if p.cfg.LongMode {
		s.CStar = p.rmsr(MSRCStar)
		s.KernelGSBase = p.rmsr(MSRKernelGSBase)
		s.FMask = p.rmsr(MSRFMask)
		s.LStar = p.rmsr(MSRLStar)
	}

	// The APIC base belongs to the interrupt controller model.
	_ = p.rmsr(MSRAPICBase)

	cycles := uint64(p.cfg.Clock.ReadClock(ClockHostCycles))
	s.TSC = cycles + p.rvmcs(vmcs.TSCOffset)
}

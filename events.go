package vmx

// ProcessEvents services the asynchronous requests posted to the vCPU and
// reports whether it should stay halted.
func (p *Processor) ProcessEvents() bool {
	s := p.state

	// A dirty copy holds flags not yet committed; reading back would lose them.
	if !p.dirty {
		s.RFLAGS = p.rreg(RegRFLAGS)
	}

	if p.irq.TestAndClear(IRQInit) {
		p.Synchronize()
		p.log.Debug("vmx: init")
		p.cfg.Resetter.Init(s)
	}
	if p.irq.TestAndClear(IRQPoll) {
		p.cfg.Controller.Poll()
	}
	if (p.irq.Pending(IRQHard) && s.InterruptsEnabled()) || p.irq.Pending(IRQNMI) {
		s.Halted = false
	}
	if p.irq.TestAndClear(IRQSIPI) {
		p.Synchronize()
		p.log.Debug("vmx: sipi")
		p.cfg.Resetter.SIPI(s)
	}
	if p.irq.TestAndClear(IRQTPR) {
		p.Synchronize()
		p.cfg.Controller.ReportTPRAccess(s.RIP, s.TPRAccessType)
	}

	return s.Halted
}

package vmx

// Reg identifies an x86 vCPU register exposed by the hypervisor.
type Reg int

const (
	RegRIP Reg = iota
	RegRFLAGS
	RegRAX
	RegRCX
	RegRDX
	RegRBX
	RegRSI
	RegRDI
	RegRSP
	RegRBP
	RegR8
	RegR9
	RegR10
	RegR11
	RegR12
	RegR13
	RegR14
	RegR15
	RegDR0
	RegDR1
	RegDR2
	RegDR3
	RegDR4
	RegDR5
	RegDR6
	RegDR7
	RegTPR
	RegXCR0
)

// gprRegs maps ArchState.Regs indices (EAX, ECX, EDX, EBX, ESP, EBP, ESI,
// EDI, R8-R15) to hypervisor registers.
var gprRegs = [16]Reg{
	RegRAX, RegRCX, RegRDX, RegRBX, RegRSP, RegRBP, RegRSI, RegRDI,
	RegR8, RegR9, RegR10, RegR11, RegR12, RegR13, RegR14, RegR15,
}

var debugRegs = [8]Reg{
	RegDR0, RegDR1, RegDR2, RegDR3, RegDR4, RegDR5, RegDR6, RegDR7,
}

var regNames = [...]string{
	RegRIP:    "RIP",
	RegRFLAGS: "RFLAGS",
	RegRAX:    "RAX",
	RegRCX:    "RCX",
	RegRDX:    "RDX",
	RegRBX:    "RBX",
	RegRSI:    "RSI",
	RegRDI:    "RDI",
	RegRSP:    "RSP",
	RegRBP:    "RBP",
	RegR8:     "R8",
	RegR9:     "R9",
	RegR10:    "R10",
	RegR11:    "R11",
	RegR12:    "R12",
	RegR13:    "R13",
	RegR14:    "R14",
	RegR15:    "R15",
	RegDR0:    "DR0",
	RegDR1:    "DR1",
	RegDR2:    "DR2",
	RegDR3:    "DR3",
	RegDR4:    "DR4",
	RegDR5:    "DR5",
	RegDR6:    "DR6",
	RegDR7:    "DR7",
	RegTPR:    "TPR",
	RegXCR0:   "XCR0",
}

func (r Reg) String() string {
	if r < 0 || int(r) >= len(regNames) {
		return "Unknown"
	}
	return regNames[r]
}

func (r Reg) valid() bool {
	return r >= RegRIP && r <= RegXCR0
}

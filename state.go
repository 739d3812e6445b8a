package vmx

// Indices into ArchState.Regs.
const (
	RegIndexEAX = iota
	RegIndexECX
	RegIndexEDX
	RegIndexEBX
	RegIndexESP
	RegIndexEBP
	RegIndexESI
	RegIndexEDI
)

// Indices into ArchState.Segs.
const (
	SegES = iota
	SegCS
	SegSS
	SegDS
	SegFS
	SegGS
	numSegs
)

// Control-register bits consulted while synchronizing state.
const (
	CR0PE   uint64 = 1 << 0
	CR0ET   uint64 = 1 << 4
	CR0NE   uint64 = 1 << 5
	CR0NW   uint64 = 1 << 29
	CR0CD   uint64 = 1 << 30
	CR0PG   uint64 = 1 << 31
	CR4PAE  uint64 = 1 << 5
	CR4VMXE uint64 = 1 << 13

	EFERLME uint64 = 1 << 8
	EFERLMA uint64 = 1 << 10

	FlagIF uint64 = 1 << 9
)

// Segment cache flag layout. Flags holds the high dword of the
// architectural descriptor: type at 8, S at 12, DPL at 13, P at 15,
// AVL at 20, L at 21, D/B at 22, G at 23.
const (
	DescTypeShift = 8
	DescSShift    = 12
	DescDPLShift  = 13
	DescPShift    = 15
	DescAVLShift  = 20
	DescLShift    = 21
	DescBShift    = 22
	DescGShift    = 23

	DescTypeMask uint32 = 0xf << DescTypeShift
	DescSMask    uint32 = 1 << DescSShift
	DescDPLMask  uint32 = 3 << DescDPLShift
	DescPMask    uint32 = 1 << DescPShift
	DescAVLMask  uint32 = 1 << DescAVLShift
	DescLMask    uint32 = 1 << DescLShift
	DescBMask    uint32 = 1 << DescBShift
	DescGMask    uint32 = 1 << DescGShift
)

// SegmentCache is the emulator's cached view of a segment register.
type SegmentCache struct {
	Selector uint16 `json:"selector"`
	Base     uint64 `json:"base"`
	Limit    uint32 `json:"limit"`
	Flags    uint32 `json:"flags"`
}

// DescriptorTable is a GDTR or IDTR value.
type DescriptorTable struct {
	Base  uint64 `json:"base"`
	Limit uint32 `json:"limit"`
}

// X87Reg is one 80-bit x87/MMX register.
type X87Reg struct {
	Mantissa uint64 `json:"mantissa"`
	Exponent uint16 `json:"exponent"`
}

// BoundReg is an MPX bound register.
type BoundReg struct {
	Lower uint64 `json:"lower"`
	Upper uint64 `json:"upper"`
}

// BoundConfig holds BNDCFGU and BNDSTATUS.
type BoundConfig struct {
	CfgU   uint64 `json:"cfgu"`
	Status uint64 `json:"status"`
}

// TPRAccess classifies a trapped task-priority access.
type TPRAccess int

const (
	TPRAccessRead TPRAccess = iota
	TPRAccessWrite
)

// ArchState is the emulator-owned register file of one x86 vCPU.
type ArchState struct {
	Regs   [16]uint64 `json:"regs"`
	RIP    uint64     `json:"rip"`
	RFLAGS uint64     `json:"rflags"`

	// DR holds DR0-DR7.
	DR [8]uint64 `json:"dr"`
	// CR holds CR0-CR4; CR1 is unused.
	CR   [5]uint64 `json:"cr"`
	EFER uint64    `json:"efer"`
	XCR0 uint64    `json:"xcr0"`

	Segs [numSegs]SegmentCache `json:"segs"`
	TR   SegmentCache          `json:"tr"`
	LDT  SegmentCache          `json:"ldt"`
	GDT  DescriptorTable       `json:"gdt"`
	IDT  DescriptorTable       `json:"idt"`

	SysenterCS   uint64 `json:"sysenter_cs"`
	SysenterESP  uint64 `json:"sysenter_esp"`
	SysenterEIP  uint64 `json:"sysenter_eip"`
	Star         uint64 `json:"star"`
	CStar        uint64 `json:"cstar"`
	LStar        uint64 `json:"lstar"`
	FMask        uint64 `json:"fmask"`
	KernelGSBase uint64 `json:"kernel_gs_base"`
	TSC          uint64 `json:"tsc"`

	FPUC uint16 `json:"fpuc"`
	// FPUS is the x87 status word without TOP, which is kept in FPSTT.
	FPUS       uint16       `json:"fpus"`
	FPSTT      uint8        `json:"fpstt"`
	FPTagEmpty [8]bool      `json:"fp_tag_empty"`
	FPOp       uint16       `json:"fpop"`
	FPIP       uint64       `json:"fpip"`
	FPDP       uint64       `json:"fpdp"`
	FPRegs     [8]X87Reg    `json:"fpregs"`
	MXCSR      uint32       `json:"mxcsr"`
	XMM        [16][16]byte `json:"xmm"`
	YMMH       [16][16]byte `json:"ymmh"`
	ZMMH       [16][32]byte `json:"zmmh"`
	Hi16ZMM    [16][64]byte `json:"hi16_zmm"`
	Opmask     [8]uint64    `json:"opmask"`
	BndRegs    [4]BoundReg  `json:"bnd_regs"`
	BndCSR     BoundConfig  `json:"bndcsr"`
	XStateBV   uint64       `json:"xstate_bv"`

	// XSave is the scratch save area exchanged with the hypervisor.
	XSave XSaveBuffer `json:"-"`

	// InterruptInjected is the vector the emulator is delivering, or -1.
	InterruptInjected int       `json:"interrupt_injected"`
	TPRAccessType     TPRAccess `json:"tpr_access_type"`
	Halted            bool      `json:"halted"`
}

// IsReal reports whether the CPU executes in real or unreal mode.
func (s *ArchState) IsReal() bool {
	return s.CR[0]&CR0PE == 0
}

// InterruptsEnabled reports RFLAGS.IF.
func (s *ArchState) InterruptsEnabled() bool {
	return s.RFLAGS&FlagIF != 0
}

// Package vmcs names the VMX virtual-machine control structure fields and
// bit ranges used when synchronizing a guest vCPU with Hypervisor.framework.
//
// Encodings follow the Intel SDM, Vol. 3, Appendix B.
package vmcs

// Field is a VMCS field encoding.
type Field uint32

// Guest-state selectors.
const (
	GuestESSelector   Field = 0x00000800
	GuestCSSelector   Field = 0x00000802
	GuestSSSelector   Field = 0x00000804
	GuestDSSelector   Field = 0x00000806
	GuestFSSelector   Field = 0x00000808
	GuestGSSelector   Field = 0x0000080a
	GuestLDTRSelector Field = 0x0000080c
	GuestTRSelector   Field = 0x0000080e
)

// 64-bit control and guest fields.
const (
	TSCOffset            Field = 0x00002010
	GuestPhysicalAddress Field = 0x00002400
	GuestIA32EFER        Field = 0x00002806
	GuestPDPTE0          Field = 0x0000280a
	GuestPDPTE1          Field = 0x0000280c
	GuestPDPTE2          Field = 0x0000280e
	GuestPDPTE3          Field = 0x00002810
)

// 32-bit control fields.
const (
	PinBasedCtls        Field = 0x00004000
	PriProcBasedCtls    Field = 0x00004002
	ExceptionBitmap     Field = 0x00004004
	ExitCtls            Field = 0x0000400c
	EntryCtls           Field = 0x00004012
	EntryIntrInfo       Field = 0x00004016
	EntryExceptionError Field = 0x00004018
	EntryInstLength     Field = 0x0000401a
	TPRThreshold        Field = 0x0000401c
	SecProcBasedCtls    Field = 0x0000401e
)

// 32-bit read-only exit information.
const (
	InstructionError      Field = 0x00004400
	ExitReasonField       Field = 0x00004402
	ExitIntrInfo          Field = 0x00004404
	ExitIntrErrorCode     Field = 0x00004406
	IDTVectoringInfo      Field = 0x00004408
	IDTVectoringError     Field = 0x0000440a
	ExitInstructionLength Field = 0x0000440c
	ExitInstructionInfo   Field = 0x0000440e
)

// 32-bit guest-state fields.
const (
	GuestESLimit          Field = 0x00004800
	GuestCSLimit          Field = 0x00004802
	GuestSSLimit          Field = 0x00004804
	GuestDSLimit          Field = 0x00004806
	GuestFSLimit          Field = 0x00004808
	GuestGSLimit          Field = 0x0000480a
	GuestLDTRLimit        Field = 0x0000480c
	GuestTRLimit          Field = 0x0000480e
	GuestGDTRLimit        Field = 0x00004810
	GuestIDTRLimit        Field = 0x00004812
	GuestESAccessRights   Field = 0x00004814
	GuestCSAccessRights   Field = 0x00004816
	GuestSSAccessRights   Field = 0x00004818
	GuestDSAccessRights   Field = 0x0000481a
	GuestFSAccessRights   Field = 0x0000481c
	GuestGSAccessRights   Field = 0x0000481e
	GuestLDTRAccessRights Field = 0x00004820
	GuestTRAccessRights   Field = 0x00004822
	GuestInterruptibility Field = 0x00004824
	GuestActivityState    Field = 0x00004826
)

// Natural-width control, exit and guest fields.
const (
	CR0Mask            Field = 0x00006000
	CR4Mask            Field = 0x00006002
	CR0Shadow          Field = 0x00006004
	CR4Shadow          Field = 0x00006006
	ExitQualification  Field = 0x00006400
	GuestLinearAddress Field = 0x0000640a
	GuestCR0           Field = 0x00006800
	GuestCR3           Field = 0x00006802
	GuestCR4           Field = 0x00006804
	GuestESBase        Field = 0x00006806
	GuestCSBase        Field = 0x00006808
	GuestSSBase        Field = 0x0000680a
	GuestDSBase        Field = 0x0000680c
	GuestFSBase        Field = 0x0000680e
	GuestGSBase        Field = 0x00006810
	GuestLDTRBase      Field = 0x00006812
	GuestTRBase        Field = 0x00006814
	GuestGDTRBase      Field = 0x00006816
	GuestIDTRBase      Field = 0x00006818
	GuestRFLAGS        Field = 0x00006820
)

// Pin-based VM-execution controls.
const (
	PinBasedExtIntExiting uint64 = 1 << 0
	PinBasedNMIExiting    uint64 = 1 << 3
	PinBasedVirtualNMI    uint64 = 1 << 5
)

// Primary processor-based VM-execution controls.
const (
	ProcIntWindowExiting uint64 = 1 << 2
	ProcTSCOffset        uint64 = 1 << 3
	ProcHLTExiting       uint64 = 1 << 7
	ProcMWAITExiting     uint64 = 1 << 10
	ProcTPRShadow        uint64 = 1 << 21
	ProcNMIWindowExiting uint64 = 1 << 22
	ProcSecondaryCtls    uint64 = 1 << 31
)

// Secondary processor-based VM-execution controls.
const (
	Proc2APICAccesses      uint64 = 1 << 0
	Proc2UnrestrictedGuest uint64 = 1 << 7
)

// VM-entry controls.
const (
	EntryGuestIA32e uint64 = 1 << 9
)

// Guest interruptibility-state bits.
const (
	InterruptibilitySTIBlocking   uint64 = 1 << 0
	InterruptibilityMovSSBlocking uint64 = 1 << 1
	InterruptibilitySMIBlocking   uint64 = 1 << 2
	InterruptibilityNMIBlocking   uint64 = 1 << 3
)

// Segment names one of the eight guest segment registers in VMCS order.
type Segment int

const (
	SegES Segment = iota
	SegCS
	SegSS
	SegDS
	SegFS
	SegGS
	SegLDTR
	SegTR
)

// SegmentFields groups the four VMCS fields describing a guest segment.
type SegmentFields struct {
	Selector     Field
	Base         Field
	Limit        Field
	AccessRights Field
}

var segmentFields = [...]SegmentFields{
	SegES:   {GuestESSelector, GuestESBase, GuestESLimit, GuestESAccessRights},
	SegCS:   {GuestCSSelector, GuestCSBase, GuestCSLimit, GuestCSAccessRights},
	SegSS:   {GuestSSSelector, GuestSSBase, GuestSSLimit, GuestSSAccessRights},
	SegDS:   {GuestDSSelector, GuestDSBase, GuestDSLimit, GuestDSAccessRights},
	SegFS:   {GuestFSSelector, GuestFSBase, GuestFSLimit, GuestFSAccessRights},
	SegGS:   {GuestGSSelector, GuestGSBase, GuestGSLimit, GuestGSAccessRights},
	SegLDTR: {GuestLDTRSelector, GuestLDTRBase, GuestLDTRLimit, GuestLDTRAccessRights},
	SegTR:   {GuestTRSelector, GuestTRBase, GuestTRLimit, GuestTRAccessRights},
}

// Fields returns the VMCS fields backing segment s.
func (s Segment) Fields() SegmentFields { return segmentFields[s] }

func (s Segment) String() string {
	switch s {
	case SegES:
		return "ES"
	case SegCS:
		return "CS"
	case SegSS:
		return "SS"
	case SegDS:
		return "DS"
	case SegFS:
		return "FS"
	case SegGS:
		return "GS"
	case SegLDTR:
		return "LDTR"
	case SegTR:
		return "TR"
	default:
		return "Unknown"
	}
}

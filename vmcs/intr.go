package vmcs

import "fmt"

// IntrType is the interruption type carried in bits 8-10 of the
// IDT-vectoring and VM-entry interruption-information fields.
type IntrType uint64

const (
	IntrTypeHWIntr          IntrType = 0 << 8
	IntrTypeNMI             IntrType = 2 << 8
	IntrTypeHWException     IntrType = 3 << 8
	IntrTypeSWIntr          IntrType = 4 << 8
	IntrTypePrivSWException IntrType = 5 << 8
	IntrTypeSWException     IntrType = 6 << 8
)

// Interruption-information bit ranges.
const (
	IntrVectorMask uint64 = 0xff
	IntrTypeMask   uint64 = 7 << 8
	IntrDelErrCode uint64 = 1 << 11
	// IntrUndefined is cleared on every entry write; the CPU reports NMI
	// unblocking due to IRET here on exit.
	IntrUndefined uint64 = 1 << 12
	IntrValid     uint64 = 1 << 31
)

// IntrInfo is a decoded interruption-information word.
type IntrInfo uint64

// MakeIntrInfo builds a valid interruption-information word.
func MakeIntrInfo(vector uint8, typ IntrType) IntrInfo {
	return IntrInfo(uint64(vector) | uint64(typ) | IntrValid)
}

func (i IntrInfo) Vector() uint8      { return uint8(uint64(i) & IntrVectorMask) }
func (i IntrInfo) Type() IntrType     { return IntrType(uint64(i) & IntrTypeMask) }
func (i IntrInfo) Valid() bool        { return uint64(i)&IntrValid != 0 }
func (i IntrInfo) HasErrorCode() bool { return uint64(i)&IntrDelErrCode != 0 }
func (i IntrInfo) Uint64() uint64     { return uint64(i) }

func (i IntrInfo) String() string {
	if !i.Valid() {
		return "none"
	}
	if i.HasErrorCode() {
		return fmt.Sprintf("%s %d (error code)", i.Type(), i.Vector())
	}
	return fmt.Sprintf("%s %d", i.Type(), i.Vector())
}

// WithType replaces the interruption type.
func (i IntrInfo) WithType(typ IntrType) IntrInfo {
	return IntrInfo(uint64(i)&^IntrTypeMask | uint64(typ))
}

// ForEntry clears the bits that must not be set in the VM-entry field.
func (i IntrInfo) ForEntry() IntrInfo {
	return IntrInfo(uint64(i) &^ IntrUndefined)
}

// IsSoftware reports whether the event was raised by an instruction
// (INTn, INT1, INT3, INTO) and so needs the instruction length on entry.
func (t IntrType) IsSoftware() bool {
	switch t {
	case IntrTypeSWIntr, IntrTypePrivSWException, IntrTypeSWException:
		return true
	}
	return false
}

func (t IntrType) String() string {
	switch t {
	case IntrTypeHWIntr:
		return "external"
	case IntrTypeNMI:
		return "nmi"
	case IntrTypeHWException:
		return "hw-exception"
	case IntrTypeSWIntr:
		return "sw-interrupt"
	case IntrTypePrivSWException:
		return "priv-sw-exception"
	case IntrTypeSWException:
		return "sw-exception"
	default:
		return "reserved"
	}
}

// Exception vectors referenced by the injection rules.
const (
	VectorDE  = 0
	VectorDB  = 1
	VectorNMI = 2
	VectorBP  = 3
	VectorOF  = 4
)

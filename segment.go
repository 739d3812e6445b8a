package vmx

import (
	"github.com/blacktop/go-vmx/vmcs"
)

// VMCS access-rights layout.
const (
	ARTypeMask uint32 = 0xf
	ARSShift          = 4
	ARDPLShift        = 5
	ARPShift          = 7
	ARAVLShift        = 12
	ARLShift          = 13
	ARBShift          = 14
	ARGShift          = 15
	// ARUnusable marks a segment register as unusable.
	ARUnusable uint32 = 1 << 16
)

// SegmentDescriptor is a guest segment in the hardware's VMCS encoding.
type SegmentDescriptor struct {
	Selector     uint16 `json:"selector"`
	Base         uint64 `json:"base"`
	Limit        uint32 `json:"limit"`
	AccessRights uint32 `json:"ar"`
}

// SegmentToHardware encodes a segment cache entry for the VMCS. A null
// selector in protected mode yields an unusable segment, except for TR which
// stays usable after reset with a null selector.
func SegmentToHardware(seg SegmentCache, realMode, isTR bool) SegmentDescriptor {
	desc := SegmentDescriptor{
		Selector: seg.Selector,
		Base:     seg.Base,
		Limit:    seg.Limit,
	}
	if seg.Selector == 0 && !realMode && !isTR {
		desc.AccessRights = ARUnusable
		return desc
	}
	desc.AccessRights = flagsToAR(seg.Flags)
	return desc
}

// SegmentFromHardware decodes a VMCS segment into a segment cache entry.
func SegmentFromHardware(desc SegmentDescriptor) SegmentCache {
	return SegmentCache{
		Selector: desc.Selector,
		Base:     desc.Base,
		Limit:    desc.Limit,
		Flags:    arToFlags(desc.AccessRights),
	}
}

func flagsToAR(flags uint32) uint32 {
	ar := (flags >> DescTypeShift) & ARTypeMask
	ar |= ((flags >> DescSShift) & 1) << ARSShift
	ar |= ((flags >> DescDPLShift) & 3) << ARDPLShift
	ar |= ((flags >> DescPShift) & 1) << ARPShift
	ar |= ((flags >> DescAVLShift) & 1) << ARAVLShift
	ar |= ((flags >> DescLShift) & 1) << ARLShift
	ar |= ((flags >> DescBShift) & 1) << ARBShift
	ar |= ((flags >> DescGShift) & 1) << ARGShift
	return ar
}

func arToFlags(ar uint32) uint32 {
	return (ar&ARTypeMask)<<DescTypeShift |
		((ar>>ARSShift)&1)<<DescSShift |
		((ar>>ARDPLShift)&3)<<DescDPLShift |
		((ar>>ARPShift)&1)<<DescPShift |
		((ar>>ARAVLShift)&1)<<DescAVLShift |
		((ar>>ARLShift)&1)<<DescLShift |
		((ar>>ARBShift)&1)<<DescBShift |
		((ar>>ARGShift)&1)<<DescGShift
}

func (p *Processor) writeSegment(seg vmcs.Segment, desc SegmentDescriptor) {
	f := seg.Fields()
	p.wvmcs(f.Selector, uint64(desc.Selector))
	p.wvmcs(f.Base, desc.Base)
	p.wvmcs(f.Limit, uint64(desc.Limit))
	p.wvmcs(f.AccessRights, uint64(desc.AccessRights))
}

func (p *Processor) readSegment(seg vmcs.Segment) SegmentDescriptor {
	f := seg.Fields()
	return SegmentDescriptor{
		Selector:     uint16(p.rvmcs(f.Selector)),
		Base:         p.rvmcs(f.Base),
		Limit:        uint32(p.rvmcs(f.Limit)),
		AccessRights: uint32(p.rvmcs(f.AccessRights)),
	}
}

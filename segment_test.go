package vmx

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSegmentToHardware(t *testing.T) {
	code64 := DescPMask | DescSMask | DescLMask | DescGMask | 0xb<<DescTypeShift
	data32 := DescPMask | DescSMask | DescBMask | DescGMask | 3<<DescDPLShift | 0x3<<DescTypeShift

	tests := []struct {
		name     string
		seg      SegmentCache
		realMode bool
		isTR     bool
		want     SegmentDescriptor
	}{
		{
			name: "64-bit code",
			seg:  SegmentCache{Selector: 0x10, Limit: 0xffffffff, Flags: code64},
			want: SegmentDescriptor{Selector: 0x10, Limit: 0xffffffff, AccessRights: 0xa09b},
		},
		{
			name: "ring 3 data",
			seg:  SegmentCache{Selector: 0x2b, Base: 0x1000, Limit: 0xffffffff, Flags: data32},
			want: SegmentDescriptor{Selector: 0x2b, Base: 0x1000, Limit: 0xffffffff, AccessRights: 0xc0f3},
		},
		{
			name: "null selector in protected mode is unusable",
			seg:  SegmentCache{Base: 0x1234, Limit: 0xffff, Flags: data32},
			want: SegmentDescriptor{Base: 0x1234, Limit: 0xffff, AccessRights: ARUnusable},
		},
		{
			name:     "null selector in real mode stays usable",
			seg:      SegmentCache{Limit: 0xffff, Flags: DescPMask | DescSMask | 0x3<<DescTypeShift},
			realMode: true,
			want:     SegmentDescriptor{Limit: 0xffff, AccessRights: 0x93},
		},
		{
			name: "null TR stays usable",
			seg:  SegmentCache{Limit: 0xffff, Flags: DescPMask | 0xb<<DescTypeShift},
			isTR: true,
			want: SegmentDescriptor{Limit: 0xffff, AccessRights: 0x8b},
		},
		{
			name: "available bit",
			seg:  SegmentCache{Selector: 8, Flags: DescPMask | DescSMask | DescAVLMask | 0x3<<DescTypeShift},
			want: SegmentDescriptor{Selector: 8, AccessRights: 0x1093},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, SegmentToHardware(tt.seg, tt.realMode, tt.isTR))
		})
	}
}

func TestSegmentRoundTrip(t *testing.T) {
	segs := []SegmentCache{
		{Selector: 0x08, Limit: 0xfffff, Flags: DescPMask | DescSMask | DescLMask | DescGMask | 0xb<<DescTypeShift},
		{Selector: 0x33, Base: 0x7fff0000, Limit: 0xffff, Flags: DescPMask | DescSMask | DescBMask | 3<<DescDPLShift | 0x3<<DescTypeShift},
		{Selector: 0x40, Base: 0xfffff000, Limit: 0x67, Flags: DescPMask | 0xb<<DescTypeShift},
	}
	for _, seg := range segs {
		assert.Equal(t, seg, SegmentFromHardware(SegmentToHardware(seg, false, false)))
	}
}

func TestSegmentFromHardwareDropsUnusable(t *testing.T) {
	seg := SegmentFromHardware(SegmentDescriptor{Base: 0x10, AccessRights: ARUnusable})
	assert.Equal(t, SegmentCache{Base: 0x10}, seg)
}

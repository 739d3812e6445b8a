package vmx

import (
	"encoding/binary"
)

// XSaveSize is the size of the extended-state area exchanged with the
// hypervisor.
const XSaveSize = 4096

// XSaveBuffer is the XSAVE-format extended-state area.
type XSaveBuffer [XSaveSize]byte

// Byte offsets into the XSAVE area. The hypervisor addresses the area as
// 32-bit words; the word index is the offset divided by four.
const (
	XSaveFCWOffset      = 0    // word 0, low half
	XSaveFSWOffset      = 2    // word 0, high half
	XSaveFTWOffset      = 4    // word 1, low half: abridged tag byte
	XSaveFOPOffset      = 6    // word 1, high half
	XSaveFIPOffset      = 8    // words 2-3
	XSaveFDPOffset      = 16   // words 4-5
	XSaveMXCSROffset    = 24   // word 6
	XSaveSTOffset       = 32   // words 8-39, eight 16-byte slots
	XSaveXMMOffset      = 160  // words 40-103
	XSaveXStateBVOffset = 512  // words 128-129
	XSaveYMMHOffset     = 576  // words 144-207
	XSaveBndRegsOffset  = 960  // words 240-255
	XSaveBndCSROffset   = 1024 // words 256-259
	XSaveOpmaskOffset   = 1088 // words 272-287
	XSaveZMMHOffset     = 1152 // words 288-415
	XSaveHi16ZMMOffset  = 1664 // words 416-671

	xsaveSTStride = 16
	fswTopShift   = 11
	fswTopMask    = 7 << fswTopShift
)

// PackXSave zeroes buf and fills it from the FPU and vector state in s.
func PackXSave(s *ArchState, buf *XSaveBuffer) {
	*buf = XSaveBuffer{}
	le := binary.LittleEndian

	fsw := s.FPUS&^fswTopMask | uint16(s.FPSTT&7)<<fswTopShift
	le.PutUint16(buf[XSaveFCWOffset:], s.FPUC)
	le.PutUint16(buf[XSaveFSWOffset:], fsw)

	var ftw uint8
	for i, empty := range s.FPTagEmpty {
		if !empty {
			ftw |= 1 << i
		}
	}
	buf[XSaveFTWOffset] = ftw
	le.PutUint16(buf[XSaveFOPOffset:], s.FPOp)
	le.PutUint64(buf[XSaveFIPOffset:], s.FPIP)
	le.PutUint64(buf[XSaveFDPOffset:], s.FPDP)
	le.PutUint32(buf[XSaveMXCSROffset:], s.MXCSR)

	for i, st := range s.FPRegs {
		off := XSaveSTOffset + i*xsaveSTStride
		le.PutUint64(buf[off:], st.Mantissa)
		le.PutUint16(buf[off+8:], st.Exponent)
	}
	for i := range s.XMM {
		copy(buf[XSaveXMMOffset+i*16:], s.XMM[i][:])
		copy(buf[XSaveYMMHOffset+i*16:], s.YMMH[i][:])
		copy(buf[XSaveZMMHOffset+i*32:], s.ZMMH[i][:])
		copy(buf[XSaveHi16ZMMOffset+i*64:], s.Hi16ZMM[i][:])
	}
	le.PutUint64(buf[XSaveXStateBVOffset:], s.XStateBV)

	for i, b := range s.BndRegs {
		le.PutUint64(buf[XSaveBndRegsOffset+i*16:], b.Lower)
		le.PutUint64(buf[XSaveBndRegsOffset+i*16+8:], b.Upper)
	}
	le.PutUint64(buf[XSaveBndCSROffset:], s.BndCSR.CfgU)
	le.PutUint64(buf[XSaveBndCSROffset+8:], s.BndCSR.Status)
	for i, k := range s.Opmask {
		le.PutUint64(buf[XSaveOpmaskOffset+i*8:], k)
	}
}

// UnpackXSave copies the FPU and vector state out of buf into s.
func UnpackXSave(buf *XSaveBuffer, s *ArchState) {
	le := binary.LittleEndian

	s.FPUC = le.Uint16(buf[XSaveFCWOffset:])
	fsw := le.Uint16(buf[XSaveFSWOffset:])
	s.FPUS = fsw &^ fswTopMask
	s.FPSTT = uint8((fsw & fswTopMask) >> fswTopShift)
	s.FPOp = le.Uint16(buf[XSaveFOPOffset:])

	ftw := buf[XSaveFTWOffset]
	for i := range s.FPTagEmpty {
		s.FPTagEmpty[i] = (ftw>>i)&1 == 0
	}
	s.FPIP = le.Uint64(buf[XSaveFIPOffset:])
	s.FPDP = le.Uint64(buf[XSaveFDPOffset:])
	s.MXCSR = le.Uint32(buf[XSaveMXCSROffset:])

	for i := range s.FPRegs {
		off := XSaveSTOffset + i*xsaveSTStride
		s.FPRegs[i] = X87Reg{
			Mantissa: le.Uint64(buf[off:]),
			Exponent: le.Uint16(buf[off+8:]),
		}
	}
	for i := range s.XMM {
		copy(s.XMM[i][:], buf[XSaveXMMOffset+i*16:])
		copy(s.YMMH[i][:], buf[XSaveYMMHOffset+i*16:])
		copy(s.ZMMH[i][:], buf[XSaveZMMHOffset+i*32:])
		copy(s.Hi16ZMM[i][:], buf[XSaveHi16ZMMOffset+i*64:])
	}
	s.XStateBV = le.Uint64(buf[XSaveXStateBVOffset:])

	for i := range s.BndRegs {
		s.BndRegs[i] = BoundReg{
			Lower: le.Uint64(buf[XSaveBndRegsOffset+i*16:]),
			Upper: le.Uint64(buf[XSaveBndRegsOffset+i*16+8:]),
		}
	}
	s.BndCSR = BoundConfig{
		CfgU:   le.Uint64(buf[XSaveBndCSROffset:]),
		Status: le.Uint64(buf[XSaveBndCSROffset+8:]),
	}
	for i := range s.Opmask {
		s.Opmask[i] = le.Uint64(buf[XSaveOpmaskOffset+i*8:])
	}
}

func (p *Processor) putXSave() {
	PackXSave(p.state, &p.state.XSave)
	if err := p.hw.WriteFPState(p.state.XSave[:]); err != nil {
		p.fatal("write extended state", err)
	}
	recordFPStateOp()
}

func (p *Processor) getXSave() {
	if err := p.hw.ReadFPState(p.state.XSave[:]); err != nil {
		p.fatal("read extended state", err)
	}
	recordFPStateOp()
	UnpackXSave(&p.state.XSave, p.state)
}

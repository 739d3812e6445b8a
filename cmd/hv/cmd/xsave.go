/*
Copyright © 2025 blacktop

Permission is hereby granted, free of charge, to any person obtaining a copy
of this software and associated documentation files (the "Software"), to deal
in the Software without restriction, including without limitation the rights
to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
copies of the Software, and to permit persons to whom the Software is
furnished to do so, subject to the following conditions:

The above copyright notice and this permission notice shall be included in
all copies or substantial portions of the Software.

THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN
THE SOFTWARE.
*/
package cmd

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/blacktop/go-vmx"
	"github.com/blacktop/go-vmx/cmd/hv/cmd/utils"
	"github.com/spf13/cobra"
)

// FPUState is the extended state carried in an XSAVE area.
type FPUState struct {
	FPUC       uint16          `json:"fpuc"`
	FPUS       uint16          `json:"fpus"`
	FPSTT      uint8           `json:"fpstt"`
	FPTagEmpty [8]bool         `json:"fp_tag_empty"`
	FPOp       uint16          `json:"fpop"`
	FPIP       uint64          `json:"fpip"`
	FPDP       uint64          `json:"fpdp"`
	FPRegs     [8]vmx.X87Reg   `json:"fpregs"`
	MXCSR      uint32          `json:"mxcsr"`
	XMM        [16][16]byte    `json:"xmm"`
	YMMH       [16][16]byte    `json:"ymmh"`
	ZMMH       [16][32]byte    `json:"zmmh"`
	Hi16ZMM    [16][64]byte    `json:"hi16_zmm"`
	Opmask     [8]uint64       `json:"opmask"`
	BndRegs    [4]vmx.BoundReg `json:"bnd_regs"`
	BndCSR     vmx.BoundConfig `json:"bndcsr"`
	XStateBV   uint64          `json:"xstate_bv"`
}

func fromArch(s *vmx.ArchState) FPUState {
	return FPUState{
		FPUC: s.FPUC, FPUS: s.FPUS, FPSTT: s.FPSTT, FPTagEmpty: s.FPTagEmpty,
		FPOp: s.FPOp, FPIP: s.FPIP, FPDP: s.FPDP, FPRegs: s.FPRegs, MXCSR: s.MXCSR,
		XMM: s.XMM, YMMH: s.YMMH, ZMMH: s.ZMMH, Hi16ZMM: s.Hi16ZMM,
		Opmask: s.Opmask, BndRegs: s.BndRegs, BndCSR: s.BndCSR, XStateBV: s.XStateBV,
	}
}

func (f *FPUState) toArch(s *vmx.ArchState) {
	s.FPUC, s.FPUS, s.FPSTT, s.FPTagEmpty = f.FPUC, f.FPUS, f.FPSTT, f.FPTagEmpty
	s.FPOp, s.FPIP, s.FPDP, s.FPRegs, s.MXCSR = f.FPOp, f.FPIP, f.FPDP, f.FPRegs, f.MXCSR
	s.XMM, s.YMMH, s.ZMMH, s.Hi16ZMM = f.XMM, f.YMMH, f.ZMMH, f.Hi16ZMM
	s.Opmask, s.BndRegs, s.BndCSR, s.XStateBV = f.Opmask, f.BndRegs, f.BndCSR, f.XStateBV
}

var dumpXSave bool

func init() {
	rootCmd.AddCommand(xsaveCmd)
	xsaveCmd.AddCommand(xsaveDecodeCmd)
	xsaveCmd.AddCommand(xsaveEncodeCmd)
	xsaveDecodeCmd.Flags().BoolVarP(&dumpXSave, "dump", "d", false, "Hexdump the legacy region before decoding")
}

var xsaveCmd = &cobra.Command{
	Use:   "xsave",
	Short: "Convert between XSAVE areas and JSON",
}

var xsaveDecodeCmd = &cobra.Command{
	Use:   "decode XSAVE-FILE",
	Short: "Decode a 4096-byte XSAVE area to JSON",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		data, err := os.ReadFile(args[0])
		if err != nil {
			return fmt.Errorf("failed to read xsave area: %w", err)
		}
		if len(data) != vmx.XSaveSize {
			return fmt.Errorf("xsave area must be %d bytes, got %d", vmx.XSaveSize, len(data))
		}
		var buf vmx.XSaveBuffer
		copy(buf[:], data)

		if dumpXSave {
			fmt.Fprint(os.Stderr, utils.HexDump(buf[:vmx.XSaveXStateBVOffset+64], 0))
		}

		var s vmx.ArchState
		vmx.UnpackXSave(&buf, &s)

		out, err := json.MarshalIndent(fromArch(&s), "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal state: %w", err)
		}
		fmt.Println(string(out))
		return nil
	},
}

var xsaveEncodeCmd = &cobra.Command{
	Use:   "encode JSON-FILE OUT-FILE",
	Short: "Encode JSON extended state into a 4096-byte XSAVE area",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		data, err := os.ReadFile(args[0])
		if err != nil {
			return fmt.Errorf("failed to read state: %w", err)
		}
		var f FPUState
		if err := json.Unmarshal(data, &f); err != nil {
			return fmt.Errorf("failed to parse state JSON: %w", err)
		}

		var s vmx.ArchState
		f.toArch(&s)
		var buf vmx.XSaveBuffer
		vmx.PackXSave(&s, &buf)

		if err := os.WriteFile(args[1], buf[:], 0o644); err != nil {
			return fmt.Errorf("failed to write xsave area: %w", err)
		}
		logger.Info("wrote xsave area", "path", args[1], "xstate_bv", fmt.Sprintf("%#x", s.XStateBV))
		return nil
	},
}

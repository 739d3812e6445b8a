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
	"github.com/blacktop/go-vmx/vmcs"
	"github.com/spf13/cobra"
)

// Scenario describes the vCPU and controller state before a VM entry.
type Scenario struct {
	LongMode bool           `json:"long_mode"`
	State    *vmx.ArchState `json:"state,omitempty"`
	// IRQ lists pending requests, e.g. "hard|nmi".
	IRQ              string `json:"irq"`
	RFLAGS           uint64 `json:"rflags"`
	Interruptibility uint64 `json:"interruptibility"`
	IDTVectoringInfo uint64 `json:"idt_vectoring_info"`
	IDTVectoringErr  uint64 `json:"idt_vectoring_error"`
	ExitReason       uint16 `json:"exit_reason"`
	ExitInstrLength  uint64 `json:"exit_instruction_length"`

	Controller struct {
		Pending []uint8 `json:"pending"`
		TPR     uint8   `json:"tpr"`
	} `json:"controller"`
}

// EntryResult is what the injection engine programmed for the entry.
type EntryResult struct {
	Halted           bool   `json:"halted"`
	EntryIntrInfo    string `json:"entry_intr_info"`
	EntryIntrRaw     uint64 `json:"entry_intr_info_raw"`
	EntryErrorCode   uint64 `json:"entry_error_code"`
	EntryInstrLength uint64 `json:"entry_instruction_length"`
	IntWindow        bool   `json:"interrupt_window_exiting"`
	NMIWindow        bool   `json:"nmi_window_exiting"`
	TPRThreshold     uint64 `json:"tpr_threshold"`
	Interruptibility uint64 `json:"interruptibility"`
	IRQ              string `json:"irq"`
}

func init() {
	rootCmd.AddCommand(injectCmd)
}

var injectCmd = &cobra.Command{
	Use:   "inject SCENARIO",
	Short: "Replay the pre-entry event injection for a JSON scenario",
	Long: `Replay event processing and injection for one VM entry against an
in-memory vCPU and print the VM-entry fields that would be programmed.

Runs on any host; no hypervisor access is needed.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		data, err := os.ReadFile(args[0])
		if err != nil {
			return fmt.Errorf("failed to read scenario: %w", err)
		}
		var sc Scenario
		if err := json.Unmarshal(data, &sc); err != nil {
			return fmt.Errorf("failed to parse scenario JSON: %w", err)
		}

		res, err := replay(&sc)
		if err != nil {
			return err
		}

		out, err := json.MarshalIndent(res, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal result: %w", err)
		}
		fmt.Println(string(out))
		return nil
	},
}

func replay(sc *Scenario) (*EntryResult, error) {
	flags, err := vmx.ParseIRQ(sc.IRQ)
	if err != nil {
		return nil, err
	}

	state := sc.State
	if state == nil {
		state = new(vmx.ArchState)
		vmx.ResetState(state)
	}
	ctrl := &scriptedController{pending: sc.Controller.Pending, tpr: sc.Controller.TPR}

	var irq vmx.IRQMask
	irq.Raise(flags)

	mem := vmx.NewMemVCPU(nil)
	proc := vmx.NewProcessor(mem, state, &irq, vmx.ProcessorConfig{
		LongMode:   sc.LongMode,
		Controller: ctrl,
		Logger:     logger,
	})

	// Land the initial state in the in-memory vCPU, then apply the exit
	// context as the hardware would have left it.
	proc.Commit()
	mem.SetRegister(vmx.RegRFLAGS, sc.RFLAGS)
	mem.SetField(vmcs.GuestInterruptibility, sc.Interruptibility)
	mem.SetField(vmcs.IDTVectoringInfo, sc.IDTVectoringInfo)
	mem.SetField(vmcs.IDTVectoringError, sc.IDTVectoringErr)
	mem.SetField(vmcs.ExitReasonField, uint64(sc.ExitReason))
	mem.SetField(vmcs.ExitInstructionLength, sc.ExitInstrLength)

	halted := proc.PrepareEntry()

	ctls := mem.Field(vmcs.PriProcBasedCtls)
	info := vmcs.IntrInfo(mem.Field(vmcs.EntryIntrInfo))
	return &EntryResult{
		Halted:           halted,
		EntryIntrInfo:    info.String(),
		EntryIntrRaw:     info.Uint64(),
		EntryErrorCode:   mem.Field(vmcs.EntryExceptionError),
		EntryInstrLength: mem.Field(vmcs.EntryInstLength),
		IntWindow:        ctls&vmcs.ProcIntWindowExiting != 0,
		NMIWindow:        ctls&vmcs.ProcNMIWindowExiting != 0,
		TPRThreshold:     mem.Field(vmcs.TPRThreshold),
		Interruptibility: mem.Field(vmcs.GuestInterruptibility),
		IRQ:              irq.Load().String(),
	}, nil
}

// scriptedController hands out a fixed list of vectors.
type scriptedController struct {
	pending []uint8
	tpr     uint8
}

func (c *scriptedController) PendingInterrupt() (uint8, bool) {
	if len(c.pending) == 0 {
		return 0, false
	}
	v := c.pending[0]
	c.pending = c.pending[1:]
	return v, true
}

func (c *scriptedController) Poll() {}

func (c *scriptedController) ReportTPRAccess(rip uint64, access vmx.TPRAccess) {
	logger.Info("tpr access", "rip", fmt.Sprintf("%#x", rip), "write", access == vmx.TPRAccessWrite)
}

func (c *scriptedController) TPR() uint8 { return c.tpr }

func (c *scriptedController) HighestIRR() (uint8, bool) {
	var best uint8
	for _, v := range c.pending {
		best = max(best, v)
	}
	return best, len(c.pending) > 0
}

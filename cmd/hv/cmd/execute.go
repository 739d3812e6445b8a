//go:build unix

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
	"io"
	"os"

	"github.com/blacktop/go-vmx"
	"github.com/spf13/cobra"
	"golang.org/x/sys/unix"
)

// ExecuteResult represents the execution result
type ExecuteResult struct {
	State    *vmx.ArchState    `json:"state,omitempty"`
	ExitInfo vmx.ExitInfo      `json:"exit_info"`
	Memory   map[string][]byte `json:"memory,omitempty"` // hex address -> data
	Error    string            `json:"error,omitempty"`
}

var (
	stateFile string
	memSize   int
	baseAddr  uint64
	longMode  bool
)

func init() {
	rootCmd.AddCommand(executeCmd)
	executeCmd.Flags().StringVarP(&stateFile, "state", "s", "", "JSON file with initial CPU state")
	executeCmd.Flags().IntVar(&memSize, "mem-size", 16384, "Memory size to allocate (bytes)")
	executeCmd.Flags().Uint64VarP(&baseAddr, "base-addr", "a", 0x4000, "Guest physical address of the code")
	executeCmd.Flags().BoolVar(&longMode, "long-mode", false, "Synchronize the 64-bit register set")
}

var executeCmd = &cobra.Command{
	Use:   "execute [code-file]",
	Short: "Execute x86 code until HLT and return CPU state as JSON",
	Long: `Execute x86 machine code on a VT-x vCPU and return the resulting CPU
state as JSON.

Code can be provided as:
  - A binary file argument
  - Stdin (if no file argument provided)

Without --state the vCPU starts from the architectural reset state in real
mode with CS:IP pointing at --base-addr. A trailing HLT is appended to the
code. Results are output as JSON to stdout.`,
	RunE: runExecute,
}

func runExecute(cmd *cobra.Command, args []string) error {
	ok, err := vmx.Supported()
	if err != nil || !ok {
		return fmt.Errorf("hypervisor not supported: %v", err)
	}

	state := new(vmx.ArchState)
	if stateFile != "" {
		stateData, err := os.ReadFile(stateFile)
		if err != nil {
			return fmt.Errorf("failed to read state file: %w", err)
		}
		if err := json.Unmarshal(stateData, state); err != nil {
			return fmt.Errorf("failed to parse state JSON: %w", err)
		}
	} else {
		vmx.ResetState(state)
		state.Segs[vmx.SegCS].Selector = 0
		state.Segs[vmx.SegCS].Base = 0
		state.RIP = baseAddr
	}

	var codeData []byte
	if len(args) > 0 {
		codeData, err = os.ReadFile(args[0])
		if err != nil {
			return fmt.Errorf("failed to read code file: %w", err)
		}
	} else {
		codeData, err = io.ReadAll(os.Stdin)
		if err != nil {
			return fmt.Errorf("failed to read from stdin: %w", err)
		}
	}
	if len(codeData) == 0 {
		return fmt.Errorf("no code provided")
	}
	codeData = append(codeData, 0xf4) // hlt

	result, err := executeCode(codeData, state)
	if err != nil {
		result = &ExecuteResult{Error: err.Error()}
	}

	output, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("failed to marshal result: %w", err)
	}

	fmt.Println(string(output))
	return nil
}

func executeCode(code []byte, state *vmx.ArchState) (result *ExecuteResult, err error) {
	vm, err := vmx.NewVM()
	if err != nil {
		return nil, fmt.Errorf("failed to create VM: %w", err)
	}
	defer vm.Close()

	if uint64(memSize)%vmx.PageSize() != 0 {
		return nil, fmt.Errorf("mem-size must be a multiple of page size (%d bytes)", vmx.PageSize())
	}
	hostMem, err := unix.Mmap(-1, 0, memSize, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_ANON|unix.MAP_PRIVATE)
	if err != nil {
		return nil, fmt.Errorf("failed to allocate memory: %w", err)
	}
	defer unix.Munmap(hostMem)

	if len(code) > len(hostMem) {
		return nil, fmt.Errorf("code size (%d) exceeds memory size (%d)", len(code), len(hostMem))
	}
	copy(hostMem, code)

	perms := vmx.MemRead | vmx.MemWrite | vmx.MemExec
	if err := vm.Map(hostMem, baseAddr, perms); err != nil {
		return nil, fmt.Errorf("failed to map memory: %w", err)
	}
	defer vm.Unmap(baseAddr, uint64(len(hostMem)))

	var vcpu *vmx.VCPU
	thread, err := vmx.StartThread(func() error {
		var err error
		if vcpu, err = vm.NewVCPU(); err != nil {
			return fmt.Errorf("failed to create vCPU: %w", err)
		}
		return vcpu.InitVMCS()
	})
	if err != nil {
		return nil, err
	}
	defer thread.Close(func() error { return vcpu.Close() })

	// State transfer failures surface as *vmx.FatalError panics.
	defer func() {
		if r := recover(); r != nil {
			fatal, ok := r.(*vmx.FatalError)
			if !ok {
				panic(r)
			}
			result, err = nil, fatal
		}
	}()

	var irq vmx.IRQMask
	proc := vmx.NewProcessor(vcpu, state, &irq, vmx.ProcessorConfig{
		LongMode: longMode,
		Logger:   logger,
	})

	var info vmx.ExitInfo
	err = thread.Do(func() error {
		var err error
		if info, err = proc.Exec(vcpu); err != nil {
			return err
		}
		proc.Synchronize()
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to execute: %w", err)
	}
	logger.Debug("guest exited", "reason", info.Reason, "rip", fmt.Sprintf("%#x", state.RIP))

	memCopy := make([]byte, len(code))
	copy(memCopy, hostMem[:len(code)])

	return &ExecuteResult{
		State:    proc.State(),
		ExitInfo: info,
		Memory:   map[string][]byte{fmt.Sprintf("0x%x", baseAddr): memCopy},
	}, nil
}

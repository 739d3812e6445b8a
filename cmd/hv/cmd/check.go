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
	"fmt"
	"os"
	"os/exec"
	"strings"

	"github.com/blacktop/go-vmx"
	"github.com/spf13/cobra"
)

var probeVMCS bool

func init() {
	rootCmd.AddCommand(checkCmd)
	checkCmd.Flags().BoolVar(&probeVMCS, "probe", false, "Create a vCPU and program its execution controls")
}

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Check VT-x support and entitlement status",
	RunE: func(cmd *cobra.Command, args []string) error {
		ok, err := vmx.Supported()
		if err != nil {
			fmt.Printf("hv support: error: %v\n", err)
		} else {
			fmt.Printf("hv support: %v\n", ok)
		}
		if hz, err := vmx.TSCFrequency(); err == nil {
			fmt.Printf("tsc frequency: %d Hz\n", hz)
		}
		if ok && probeVMCS {
			if err := probeControls(); err != nil {
				fmt.Printf("vmcs controls: error: %v\n", err)
			} else {
				fmt.Println("vmcs controls: ok")
			}
		}

		exe, _ := os.Executable()
		if exe != "" {
			out, _ := exec.Command("codesign", "-dv", "--entitlements", "-", exe).CombinedOutput()
			entStr := string(out)
			entOK := strings.Contains(entStr, "com.apple.security.hypervisor")
			fmt.Printf("entitlements: hypervisor=%v\n", entOK)
		} else {
			fmt.Println("entitlements: unknown (executable path not found)")
		}

		return nil
	},
}

// probeControls creates a throwaway VM and vCPU and programs the execution
// controls the injection engine requires.
func probeControls() error {
	vm, err := vmx.NewVM()
	if err != nil {
		return err
	}
	defer vm.Close()

	var vcpu *vmx.VCPU
	thread, err := vmx.StartThread(func() error {
		var err error
		vcpu, err = vm.NewVCPU()
		return err
	})
	if err != nil {
		return err
	}
	defer thread.Close(func() error { return vcpu.Close() })

	return thread.Do(vcpu.InitVMCS)
}

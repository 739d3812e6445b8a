// Package vmx keeps an x86 emulator's vCPU state consistent with an Intel
// VT-x vCPU driven through Apple's Hypervisor.framework, and decides which
// interrupt or exception is delivered on each VM entry.
//
// The package has three layers:
//
//   - Backend: the raw per-vCPU surface (registers, VMCS fields, MSRs, the
//     XSAVE area). *VCPU implements it with Hypervisor.framework on
//     darwin/amd64; *MemVCPU implements it in memory on every platform.
//   - Processor: state transfer (Put, Get, Synchronize, Commit), event
//     injection (InjectInterrupts), event processing (ProcessEvents) and the
//     run loop (Exec).
//   - IRQMask: the atomic interrupt-request mask other goroutines use to post
//     hard interrupts, NMIs, INIT, SIPI, poll and TPR requests.
//
// # Requirements
//
//   - macOS on an Intel Mac with VT-x
//   - Hypervisor entitlement: com.apple.security.hypervisor
//   - Code signing with entitlements
//
// # Basic Usage
//
// Hypervisor.framework binds a vCPU to the OS thread that created it, so all
// vCPU work goes through a Thread:
//
//	vm, err := vmx.NewVM()
//	if err != nil {
//		log.Fatal("Failed to create VM:", err)
//	}
//	defer vm.Close()
//
//	var vcpu *vmx.VCPU
//	thread, err := vmx.StartThread(func() error {
//		var err error
//		if vcpu, err = vm.NewVCPU(); err != nil {
//			return err
//		}
//		return vcpu.InitVMCS()
//	})
//	if err != nil {
//		log.Fatal("Failed to create vCPU:", err)
//	}
//	defer thread.Close(func() error { return vcpu.Close() })
//
// Attach the emulator state and run until the guest halts:
//
//	var state vmx.ArchState
//	vmx.ResetState(&state)
//
//	var irq vmx.IRQMask
//	proc := vmx.NewProcessor(vcpu, &state, &irq, vmx.ProcessorConfig{
//		LongMode:   true,
//		Controller: apic,
//	})
//
//	err = thread.Do(func() error {
//		info, err := proc.Exec(vcpu)
//		if err != nil {
//			return err
//		}
//		fmt.Printf("exit: %s halted=%v\n", info.Reason, state.Halted)
//		return nil
//	})
//
// Device models post events from any goroutine:
//
//	irq.Raise(vmx.IRQHard)
//
// # Error Handling
//
// Backend methods return errors; framework failures are HVError values with
// the hv_return_t code. A backend failure in the middle of state transfer or
// injection leaves the guest indeterminate and panics with *FatalError.
//
// # Platform Support
//
// The hardware backend is darwin/amd64 only; elsewhere the VM and VCPU
// methods return ErrUnsupported. Processor and MemVCPU work everywhere.
//
// # Code Signing and Entitlements
//
// Applications must be code signed with hypervisor entitlement:
//
//	<?xml version="1.0" encoding="UTF-8"?>
//	<!DOCTYPE plist PUBLIC "-//Apple//DTD PLIST 1.0//EN"
//	    "http://www.apple.com/DTDs/PropertyList-1.0.dtd">
//	<plist version="1.0">
//	<dict>
//	    <key>com.apple.security.hypervisor</key>
//	    <true/>
//	</dict>
//	</plist>
//
// Then sign your binary:
//
//	codesign --sign - --force --entitlements=hypervisor.entitlements ./your-app
package vmx

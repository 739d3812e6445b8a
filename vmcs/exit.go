package vmcs

// ExitReason is the basic exit reason (bits 0-15 of the exit-reason field).
type ExitReason uint16

const (
	ExitExceptionNMI ExitReason = 0
	ExitExtIntr      ExitReason = 1
	ExitTripleFault  ExitReason = 2
	ExitInit         ExitReason = 3
	ExitSIPI         ExitReason = 4
	ExitIntrWindow   ExitReason = 7
	ExitNMIWindow    ExitReason = 8
	ExitTaskSwitch   ExitReason = 9
	ExitCPUID        ExitReason = 10
	ExitHLT          ExitReason = 12
	ExitRDTSC        ExitReason = 16
	ExitVMCall       ExitReason = 18
	ExitCRAccess     ExitReason = 28
	ExitDRAccess     ExitReason = 29
	ExitIO           ExitReason = 30
	ExitRDMSR        ExitReason = 31
	ExitWRMSR        ExitReason = 32
	ExitEntryGuest   ExitReason = 33
	ExitMWAIT        ExitReason = 36
	ExitMonitor      ExitReason = 39
	ExitPause        ExitReason = 40
	ExitTPRThreshold ExitReason = 43
	ExitAPICAccess   ExitReason = 44
	ExitEPTViolation ExitReason = 48
	ExitEPTMisconfig ExitReason = 49
	ExitXSETBV       ExitReason = 55
)

// ExitReasonMask extracts the basic exit reason from the raw field.
const ExitReasonMask uint64 = 0xffff

// BasicExitReason decodes the raw exit-reason field.
func BasicExitReason(raw uint64) ExitReason {
	return ExitReason(raw & ExitReasonMask)
}

var exitNames = map[ExitReason]string{
	ExitExceptionNMI: "exception-nmi",
	ExitExtIntr:      "external-interrupt",
	ExitTripleFault:  "triple-fault",
	ExitInit:         "init",
	ExitSIPI:         "sipi",
	ExitIntrWindow:   "interrupt-window",
	ExitNMIWindow:    "nmi-window",
	ExitTaskSwitch:   "task-switch",
	ExitCPUID:        "cpuid",
	ExitHLT:          "hlt",
	ExitRDTSC:        "rdtsc",
	ExitVMCall:       "vmcall",
	ExitCRAccess:     "cr-access",
	ExitDRAccess:     "dr-access",
	ExitIO:           "io",
	ExitRDMSR:        "rdmsr",
	ExitWRMSR:        "wrmsr",
	ExitEntryGuest:   "invalid-guest-state",
	ExitMWAIT:        "mwait",
	ExitMonitor:      "monitor",
	ExitPause:        "pause",
	ExitTPRThreshold: "tpr-below-threshold",
	ExitAPICAccess:   "apic-access",
	ExitEPTViolation: "ept-violation",
	ExitEPTMisconfig: "ept-misconfig",
	ExitXSETBV:       "xsetbv",
}

func (r ExitReason) String() string {
	if name, ok := exitNames[r]; ok {
		return name
	}
	return "unknown"
}

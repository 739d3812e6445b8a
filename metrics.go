package vmx

import (
	"sync/atomic"
	"time"
)

// Performance metrics for monitoring hypervisor operations
var (
	// Operation counters
	vmCreateCount    uint64
	vmDestroyCount   uint64
	vcpuCreateCount  uint64
	vcpuDestroyCount uint64
	mapOperations    uint64
	unmapOperations  uint64
	registerOps      uint64
	vmcsOps          uint64
	msrOps           uint64
	fpStateOps       uint64
	runOperations    uint64

	// Event injection counters
	reinjectedEvents uint64
	injectedNMIs     uint64
	injectedIntrs    uint64
	intrWindowReqs   uint64
	nmiWindowReqs    uint64

	// Timing metrics (nanoseconds)
	totalVMCreateTime uint64
	totalRunTime      uint64

	// Error counters
	resourceErrors uint64
)

// Metrics provides access to performance metrics
type Metrics struct {
	VMCreated          uint64 `json:"vm_created"`
	VMDestroyed        uint64 `json:"vm_destroyed"`
	VCPUCreated        uint64 `json:"vcpu_created"`
	VCPUDestroyed      uint64 `json:"vcpu_destroyed"`
	MapOperations      uint64 `json:"map_operations"`
	UnmapOperations    uint64 `json:"unmap_operations"`
	RegisterOps        uint64 `json:"register_operations"`
	VMCSOps            uint64 `json:"vmcs_operations"`
	MSROps             uint64 `json:"msr_operations"`
	FPStateOps         uint64 `json:"fpstate_operations"`
	RunOperations      uint64 `json:"run_operations"`
	ReinjectedEvents   uint64 `json:"reinjected_events"`
	InjectedNMIs       uint64 `json:"injected_nmis"`
	InjectedInterrupts uint64 `json:"injected_interrupts"`
	IntrWindowRequests uint64 `json:"interrupt_window_requests"`
	NMIWindowRequests  uint64 `json:"nmi_window_requests"`
	AvgVMCreateTimeNs  uint64 `json:"avg_vm_create_time_ns"`
	AvgRunTimeNs       uint64 `json:"avg_run_time_ns"`
	ResourceErrors     uint64 `json:"resource_errors"`
}

// GetMetrics returns current performance metrics
func GetMetrics() Metrics {
	vmCreated := atomic.LoadUint64(&vmCreateCount)
	runOps := atomic.LoadUint64(&runOperations)

	var avgVMCreate, avgRun uint64
	if vmCreated > 0 {
		avgVMCreate = atomic.LoadUint64(&totalVMCreateTime) / vmCreated
	}
	if runOps > 0 {
		avgRun = atomic.LoadUint64(&totalRunTime) / runOps
	}

	return Metrics{
		VMCreated:          vmCreated,
		VMDestroyed:        atomic.LoadUint64(&vmDestroyCount),
		VCPUCreated:        atomic.LoadUint64(&vcpuCreateCount),
		VCPUDestroyed:      atomic.LoadUint64(&vcpuDestroyCount),
		MapOperations:      atomic.LoadUint64(&mapOperations),
		UnmapOperations:    atomic.LoadUint64(&unmapOperations),
		RegisterOps:        atomic.LoadUint64(&registerOps),
		VMCSOps:            atomic.LoadUint64(&vmcsOps),
		MSROps:             atomic.LoadUint64(&msrOps),
		FPStateOps:         atomic.LoadUint64(&fpStateOps),
		RunOperations:      runOps,
		ReinjectedEvents:   atomic.LoadUint64(&reinjectedEvents),
		InjectedNMIs:       atomic.LoadUint64(&injectedNMIs),
		InjectedInterrupts: atomic.LoadUint64(&injectedIntrs),
		IntrWindowRequests: atomic.LoadUint64(&intrWindowReqs),
		NMIWindowRequests:  atomic.LoadUint64(&nmiWindowReqs),
		AvgVMCreateTimeNs:  avgVMCreate,
		AvgRunTimeNs:       avgRun,
		ResourceErrors:     atomic.LoadUint64(&resourceErrors),
	}
}

// ResetMetrics clears all performance metrics
func ResetMetrics() {
	for _, c := range []*uint64{
		&vmCreateCount, &vmDestroyCount, &vcpuCreateCount, &vcpuDestroyCount,
		&mapOperations, &unmapOperations, &registerOps, &vmcsOps, &msrOps,
		&fpStateOps, &runOperations, &reinjectedEvents, &injectedNMIs,
		&injectedIntrs, &intrWindowReqs, &nmiWindowReqs, &totalVMCreateTime,
		&totalRunTime, &resourceErrors,
	} {
		atomic.StoreUint64(c, 0)
	}
}

// Internal metric recording functions
func recordVMCreate(duration time.Duration) {
	atomic.AddUint64(&vmCreateCount, 1)
	atomic.AddUint64(&totalVMCreateTime, uint64(duration.Nanoseconds()))
}

func recordVMDestroy()         { atomic.AddUint64(&vmDestroyCount, 1) }
func recordVCPUCreate()        { atomic.AddUint64(&vcpuCreateCount, 1) }
func recordVCPUDestroy()       { atomic.AddUint64(&vcpuDestroyCount, 1) }
func recordMapOperation()      { atomic.AddUint64(&mapOperations, 1) }
func recordUnmapOperation()    { atomic.AddUint64(&unmapOperations, 1) }
func recordRegisterOp()        { atomic.AddUint64(&registerOps, 1) }
func recordVMCSOp()            { atomic.AddUint64(&vmcsOps, 1) }
func recordMSROp()             { atomic.AddUint64(&msrOps, 1) }
func recordFPStateOp()         { atomic.AddUint64(&fpStateOps, 1) }
func recordReinjection()       { atomic.AddUint64(&reinjectedEvents, 1) }
func recordNMIInjection()      { atomic.AddUint64(&injectedNMIs, 1) }
func recordIntrInjection()     { atomic.AddUint64(&injectedIntrs, 1) }
func recordIntrWindowRequest() { atomic.AddUint64(&intrWindowReqs, 1) }
func recordNMIWindowRequest()  { atomic.AddUint64(&nmiWindowReqs, 1) }
func recordResourceError()     { atomic.AddUint64(&resourceErrors, 1) }

func recordRun(duration time.Duration) {
	atomic.AddUint64(&runOperations, 1)
	atomic.AddUint64(&totalRunTime, uint64(duration.Nanoseconds()))
}

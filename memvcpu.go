package vmx

import (
	"errors"
	"sync"

	"github.com/blacktop/go-vmx/vmcs"
)

// ErrNoExitQueued is returned by MemVCPU.Run once the scripted exits are
// exhausted.
var ErrNoExitQueued = errors.New("vmx: mem vcpu: no exit queued")

// MemVCPU is an in-memory Backend and Runner. It records register, VMCS
// and MSR writes and replays scripted exits, which makes the state transfer
// and injection logic usable on hosts without VT-x.
type MemVCPU struct {
	mu sync.Mutex

	regs    map[Reg]uint64
	fields  map[vmcs.Field]uint64
	msrs    map[uint32]uint64
	fpstate XSaveBuffer

	clock   Clock
	exits   []ExitInfo
	flushes int
	fault   func(op string) error

	// Trace, when set, receives every VMCS write in order.
	Trace func(f vmcs.Field, v uint64)
}

// NewMemVCPU returns an empty in-memory vCPU. A nil clock selects the host
// clock.
func NewMemVCPU(clock Clock) *MemVCPU {
	if clock == nil {
		clock = NewHostClock()
	}
	return &MemVCPU{
		regs:   make(map[Reg]uint64),
		fields: make(map[vmcs.Field]uint64),
		msrs:   make(map[uint32]uint64),
		clock:  clock,
	}
}

// FailWith makes every operation for which fn returns an error fail with
// that error. Operation names match the Backend method names.
func (m *MemVCPU) FailWith(fn func(op string) error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fault = fn
}

func (m *MemVCPU) check(op string) error {
	if m.fault == nil {
		return nil
	}
	return m.fault(op)
}

func (m *MemVCPU) ReadRegister(r Reg) (uint64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !r.valid() {
		return 0, ErrInvalidRegister
	}
	if err := m.check("ReadRegister"); err != nil {
		return 0, err
	}
	return m.regs[r], nil
}

func (m *MemVCPU) WriteRegister(r Reg, v uint64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !r.valid() {
		return ErrInvalidRegister
	}
	if err := m.check("WriteRegister"); err != nil {
		return err
	}
	m.regs[r] = v
	return nil
}

func (m *MemVCPU) ReadVMCS(f vmcs.Field) (uint64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.check("ReadVMCS"); err != nil {
		return 0, err
	}
	return m.fields[f], nil
}

func (m *MemVCPU) WriteVMCS(f vmcs.Field, v uint64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.check("WriteVMCS"); err != nil {
		return err
	}
	m.fields[f] = v
	if m.Trace != nil {
		m.Trace(f, v)
	}
	return nil
}

func (m *MemVCPU) ReadMSR(msr uint32) (uint64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.check("ReadMSR"); err != nil {
		return 0, err
	}
	return m.msrs[msr], nil
}

func (m *MemVCPU) WriteMSR(msr uint32, v uint64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.check("WriteMSR"); err != nil {
		return err
	}
	m.msrs[msr] = v
	return nil
}

func (m *MemVCPU) ReadFPState(buf []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(buf) != XSaveSize {
		return ErrInvalidBuffer
	}
	if err := m.check("ReadFPState"); err != nil {
		return err
	}
	copy(buf, m.fpstate[:])
	return nil
}

func (m *MemVCPU) WriteFPState(buf []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(buf) != XSaveSize {
		return ErrInvalidBuffer
	}
	if err := m.check("WriteFPState"); err != nil {
		return err
	}
	copy(m.fpstate[:], buf)
	return nil
}

// SetCR0 stores v as both the guest value and its read shadow.
func (m *MemVCPU) SetCR0(v uint64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.check("SetCR0"); err != nil {
		return err
	}
	m.fields[vmcs.GuestCR0] = v
	m.fields[vmcs.CR0Shadow] = v
	return nil
}

// SetCR4 stores v as both the guest value and its read shadow.
func (m *MemVCPU) SetCR4(v uint64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.check("SetCR4"); err != nil {
		return err
	}
	m.fields[vmcs.GuestCR4] = v
	m.fields[vmcs.CR4Shadow] = v
	return nil
}

// SyncTSC programs the TSC offset so that the guest reads tsc now.
func (m *MemVCPU) SyncTSC(tsc uint64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.check("SyncTSC"); err != nil {
		return err
	}
	m.fields[vmcs.TSCOffset] = tsc - uint64(m.clock.ReadClock(ClockHostCycles))
	return nil
}

func (m *MemVCPU) Flush() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.check("Flush"); err != nil {
		return err
	}
	m.flushes++
	return nil
}

// Flushes returns the number of successful Flush calls.
func (m *MemVCPU) Flushes() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.flushes
}

// QueueExit appends exits returned by subsequent Run calls.
func (m *MemVCPU) QueueExit(exits ...ExitInfo) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.exits = append(m.exits, exits...)
}

// Run consumes the next queued exit and publishes it through the
// exit-information fields. A staged entry event is consumed.
func (m *MemVCPU) Run() (ExitInfo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.check("Run"); err != nil {
		return ExitInfo{}, err
	}
	if len(m.exits) == 0 {
		return ExitInfo{}, ErrNoExitQueued
	}
	info := m.exits[0]
	m.exits = m.exits[1:]

	m.fields[vmcs.EntryIntrInfo] = 0
	m.fields[vmcs.IDTVectoringInfo] = 0
	m.fields[vmcs.ExitReasonField] = uint64(info.Reason)
	m.fields[vmcs.ExitQualification] = info.Qualification
	m.fields[vmcs.ExitInstructionLength] = info.InstructionLength
	return info, nil
}

// Register returns the raw value of r without fault injection.
func (m *MemVCPU) Register(r Reg) uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.regs[r]
}

// SetRegister stores v in r without fault injection.
func (m *MemVCPU) SetRegister(r Reg, v uint64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.regs[r] = v
}

// Field returns the raw value of f without fault injection.
func (m *MemVCPU) Field(f vmcs.Field) uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.fields[f]
}

// SetField stores v in f without fault injection or tracing.
func (m *MemVCPU) SetField(f vmcs.Field, v uint64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fields[f] = v
}

// MSR returns the raw value of msr without fault injection.
func (m *MemVCPU) MSR(msr uint32) uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.msrs[msr]
}

// FPState returns a copy of the stored save area.
func (m *MemVCPU) FPState() XSaveBuffer {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.fpstate
}

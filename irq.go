package vmx

import (
	"fmt"
	"strings"
	"sync/atomic"
)

// IRQ is a set of pending interrupt-request flags.
type IRQ uint32

const (
	IRQHard IRQ = 1 << iota
	IRQNMI
	IRQInit
	IRQSIPI
	IRQPoll
	IRQTPR
)

var irqNames = []struct {
	bit  IRQ
	name string
}{
	{IRQHard, "hard"},
	{IRQNMI, "nmi"},
	{IRQInit, "init"},
	{IRQSIPI, "sipi"},
	{IRQPoll, "poll"},
	{IRQTPR, "tpr"},
}

func (f IRQ) String() string {
	if f == 0 {
		return "none"
	}
	var parts []string
	for _, n := range irqNames {
		if f&n.bit != 0 {
			parts = append(parts, n.name)
		}
	}
	return strings.Join(parts, "|")
}

// ParseIRQ parses a "|"-separated list of request names as printed by
// IRQ.String.
func ParseIRQ(s string) (IRQ, error) {
	var f IRQ
	if s == "" || s == "none" {
		return 0, nil
	}
next:
	for _, part := range strings.Split(s, "|") {
		part = strings.TrimSpace(part)
		for _, n := range irqNames {
			if strings.EqualFold(part, n.name) {
				f |= n.bit
				continue next
			}
		}
		return 0, fmt.Errorf("vmx: unknown interrupt request %q", part)
	}
	return f, nil
}

// IRQMask is the interrupt-request mask shared between a vCPU thread and the
// contexts that post events to it. All operations are atomic.
type IRQMask struct {
	bits atomic.Uint32
}

// Raise sets flags and returns the mask as it was before.
func (m *IRQMask) Raise(flags IRQ) IRQ {
	return IRQ(m.bits.Or(uint32(flags)))
}

// Clear clears flags and returns the mask as it was before.
func (m *IRQMask) Clear(flags IRQ) IRQ {
	return IRQ(m.bits.And(^uint32(flags)))
}

// TestAndClear clears flag and reports whether any of it was set.
func (m *IRQMask) TestAndClear(flag IRQ) bool {
	return m.Clear(flag)&flag != 0
}

// Pending reports whether any of flags is set.
func (m *IRQMask) Pending(flags IRQ) bool {
	return IRQ(m.bits.Load())&flags != 0
}

// Load returns the current mask.
func (m *IRQMask) Load() IRQ {
	return IRQ(m.bits.Load())
}

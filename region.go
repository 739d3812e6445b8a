//go:build unix

package vmx

import (
	"fmt"
	"math"
	"sync"

	"golang.org/x/sys/unix"
)

var (
	pageSizeOnce sync.Once
	pageSize     uint64
	pageMask     uint64 // addr&pageMask == 0 for aligned addresses
)

// PageSize returns the host page size, which is also the guest mapping
// granule.
func PageSize() uint64 {
	pageSizeOnce.Do(func() {
		pageSize = uint64(unix.Getpagesize())
		pageMask = pageSize - 1
	})
	return pageSize
}

func isPageAligned(addr uint64) bool {
	PageSize()
	return addr&pageMask == 0
}

// checkRegion validates a guest-physical range for map, protect and unmap.
func checkRegion(guestPhys, size uint64) error {
	if size == 0 {
		return fmt.Errorf("hv: region size must be non-zero")
	}
	if size > math.MaxInt32 {
		return fmt.Errorf("hv: region too large (max %d bytes)", math.MaxInt32)
	}
	if guestPhys > math.MaxUint64-size {
		return fmt.Errorf("hv: guest address range would overflow")
	}
	if !isPageAligned(guestPhys) {
		return fmt.Errorf("%w: guestPhys 0x%x (page size: %d)", ErrInvalidAlignment, guestPhys, PageSize())
	}
	if !isPageAligned(size) {
		return fmt.Errorf("%w: size %d (page size: %d)", ErrInvalidAlignment, size, PageSize())
	}
	return nil
}

// validate rejects empty and unknown permission sets.
func (p MemPerm) validate() error {
	if p == 0 {
		return fmt.Errorf("hv: at least one permission (read, write, or exec) is required")
	}
	valid := MemRead | MemWrite | MemExec
	if p&^valid != 0 {
		return fmt.Errorf("hv: invalid permission bits 0x%x (valid: 0x%x)", p, valid)
	}
	return nil
}

//go:build unix

package vmx

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"golang.org/x/sys/unix"
)

func TestPageSize(t *testing.T) {
	ps := PageSize()
	assert.Equal(t, uint64(unix.Getpagesize()), ps)
	assert.Zero(t, ps&(ps-1), "page size is a power of two")
}

func TestCheckRegion(t *testing.T) {
	ps := PageSize()

	tests := []struct {
		name      string
		guestPhys uint64
		size      uint64
		wantErr   error
		anyErr    bool
	}{
		{name: "one page", guestPhys: 0, size: ps},
		{name: "high range", guestPhys: 0xfee00000, size: 4 * ps},
		{name: "zero size", guestPhys: 0, size: 0, anyErr: true},
		{name: "too large", guestPhys: 0, size: math.MaxInt32 + ps, anyErr: true},
		{name: "overflow", guestPhys: math.MaxUint64 - ps + 1, size: 2 * ps, anyErr: true},
		{name: "unaligned address", guestPhys: ps + 1, size: ps, wantErr: ErrInvalidAlignment},
		{name: "unaligned size", guestPhys: 0, size: ps + 1, wantErr: ErrInvalidAlignment},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := checkRegion(tt.guestPhys, tt.size)
			switch {
			case tt.wantErr != nil:
				assert.ErrorIs(t, err, tt.wantErr)
			case tt.anyErr:
				assert.Error(t, err)
			default:
				assert.NoError(t, err)
			}
		})
	}
}

func TestMemPermValidate(t *testing.T) {
	assert.NoError(t, MemRead.validate())
	assert.NoError(t, (MemRead | MemWrite | MemExec).validate())
	assert.NoError(t, MemExec.validate())
	assert.Error(t, MemPerm(0).validate())
	assert.Error(t, MemPerm(1<<3).validate())
}

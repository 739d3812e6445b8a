package vmx

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHVError(t *testing.T) {
	t.Setenv("HV_ENV", "")
	t.Setenv("HV_DEBUG", "")

	tests := []struct {
		name     string
		code     uint32
		expected string
	}{
		{
			name:     "HV_SUCCESS",
			code:     HV_SUCCESS,
			expected: "hv: success",
		},
		{
			name:     "HV_ERROR",
			code:     HV_ERROR,
			expected: "hv: general error (HV_ERROR) - check VT-x availability and API usage",
		},
		{
			name:     "HV_BAD_ARGUMENT",
			code:     HV_BAD_ARGUMENT,
			expected: "hv: invalid argument (HV_BAD_ARGUMENT) - check field encoding, register or buffer size",
		},
		{
			name:     "HV_ILLEGAL_GUEST_STATE",
			code:     HV_ILLEGAL_GUEST_STATE,
			expected: "hv: illegal guest state (HV_ILLEGAL_GUEST_STATE) - VMCS guest-state checks failed on entry",
		},
		{
			name:     "HV_DENIED",
			code:     HV_DENIED,
			expected: "hv: access denied (HV_DENIED) - missing entitlement 'com.apple.security.hypervisor' or insufficient privileges",
		},
		{
			name:     "Unknown error code",
			code:     0x12345678,
			expected: "hv: unknown error code 0x12345678 - consult Apple Hypervisor.framework documentation",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := HVError{Code: tt.code}
			if got := err.Error(); got != tt.expected {
				t.Errorf("HVError{Code: 0x%08x}.Error() = %q, want %q", tt.code, got, tt.expected)
			}
		})
	}
}

func TestHVErrorSanitized(t *testing.T) {
	t.Run("HV_ENV=production", func(t *testing.T) {
		t.Setenv("HV_ENV", "production")
		assert.Equal(t, "hv: access denied", HVError{Code: HV_DENIED}.Error())
	})
	t.Run("HV_DEBUG=false", func(t *testing.T) {
		t.Setenv("HV_ENV", "")
		t.Setenv("HV_DEBUG", "false")
		assert.Equal(t, "hv: illegal guest state", HVError{Code: HV_ILLEGAL_GUEST_STATE}.Error())
	})
	t.Run("fixed messages are never sanitized", func(t *testing.T) {
		t.Setenv("HV_ENV", "prod")
		assert.Equal(t, "hv: VCPU is closed", ErrVCPUClosed.Error())
	})
}

func TestHvReturn(t *testing.T) {
	assert.NoError(t, hvReturn(HV_SUCCESS))

	err := hvReturn(HV_BUSY)
	require.Error(t, err)

	var hv HVError
	require.True(t, errors.As(err, &hv))
	assert.Equal(t, HV_BUSY, hv.Code)
}

func TestFatalError(t *testing.T) {
	cause := hvReturn(HV_ILLEGAL_GUEST_STATE)
	err := &FatalError{Op: "write vmcs 0x4016", Err: cause}

	assert.True(t, strings.HasPrefix(err.Error(), "vmx: fatal: write vmcs 0x4016: "))
	assert.ErrorIs(t, err, cause)

	var hv HVError
	require.ErrorAs(t, err, &hv)
	assert.Equal(t, HV_ILLEGAL_GUEST_STATE, hv.Code)
}

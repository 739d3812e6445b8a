//go:build darwin && amd64

package vmx

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSupported(t *testing.T) {
	if isCI() {
		t.Skip("Skipping hypervisor tests in CI environment")
	}

	supported, err := Supported()
	require.NoError(t, err)
	t.Logf("VT-x hypervisor support: %v", supported)
}

func TestSupportedConsistency(t *testing.T) {
	if isCI() {
		t.Skip("Skipping hypervisor tests in CI environment")
	}

	first, err := Supported()
	require.NoError(t, err)
	for i := 1; i < 5; i++ {
		got, err := Supported()
		require.NoError(t, err, "call %d", i)
		require.Equal(t, first, got, "call %d", i)
	}
}

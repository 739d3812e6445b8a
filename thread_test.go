package vmx

import (
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestThreadRunsInOrder(t *testing.T) {
	var trace []string
	th, err := StartThread(func() error {
		trace = append(trace, "init")
		return nil
	})
	require.NoError(t, err)

	for _, s := range []string{"a", "b"} {
		require.NoError(t, th.Do(func() error {
			trace = append(trace, s)
			return nil
		}))
	}
	require.NoError(t, th.Close(func() error {
		trace = append(trace, "fin")
		return nil
	}))

	assert.Equal(t, []string{"init", "a", "b", "fin"}, trace)
}

func TestThreadInitError(t *testing.T) {
	errInit := errors.New("no vcpu")
	th, err := StartThread(func() error { return errInit })
	assert.Nil(t, th)
	assert.ErrorIs(t, err, errInit)
}

func TestThreadDoError(t *testing.T) {
	th, err := StartThread(nil)
	require.NoError(t, err)
	defer th.Close(nil)

	errRun := errors.New("run failed")
	assert.ErrorIs(t, th.Do(func() error { return errRun }), errRun)
}

func TestThreadPropagatesPanic(t *testing.T) {
	th, err := StartThread(nil)
	require.NoError(t, err)
	defer th.Close(nil)

	fatal := &FatalError{Op: "write vmcs 0x4016", Err: errors.New("boom")}
	assert.PanicsWithValue(t, fatal, func() {
		_ = th.Do(func() error { panic(fatal) })
	})

	assert.NoError(t, th.Do(func() error { return nil }), "thread survives a panic")
}

func TestThreadClose(t *testing.T) {
	th, err := StartThread(nil)
	require.NoError(t, err)

	errFin := errors.New("close vcpu")
	assert.ErrorIs(t, th.Close(func() error { return errFin }), errFin)
	assert.NoError(t, th.Close(nil), "close is idempotent")
	assert.ErrorIs(t, th.Do(func() error { return nil }), ErrThreadClosed)
}

func TestThreadConcurrentCallers(t *testing.T) {
	th, err := StartThread(nil)
	require.NoError(t, err)
	defer th.Close(nil)

	// Work runs on one goroutine, so the counter needs no lock.
	var count int
	var wg sync.WaitGroup
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range 100 {
				_ = th.Do(func() error {
					count++
					return nil
				})
			}
		}()
	}
	wg.Wait()

	require.NoError(t, th.Do(func() error {
		assert.Equal(t, 800, count)
		return nil
	}))
}

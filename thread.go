package vmx

import (
	"errors"
	"runtime"
	"sync"
)

// ErrThreadClosed is returned by Thread.Do after Close.
var ErrThreadClosed = errors.New("vmx: vcpu thread closed")

// Thread serializes work onto one locked OS thread. Hypervisor.framework
// binds a vCPU to the thread that created it, so creation, state transfer
// and Run for a vCPU must all go through the same Thread.
type Thread struct {
	mu     sync.Mutex
	closed bool
	queue  chan func()
}

// StartThread starts a thread and runs init on it before returning. If init
// fails the thread exits and the error is returned.
func StartThread(init func() error) (*Thread, error) {
	t := &Thread{queue: make(chan func())}
	initErr := make(chan error, 1)

	go func() {
		runtime.LockOSThread()
		defer runtime.UnlockOSThread()

		if init != nil {
			if err := init(); err != nil {
				initErr <- err
				return
			}
		}
		initErr <- nil

		for fn := range t.queue {
			fn()
		}
	}()

	if err := <-initErr; err != nil {
		t.closed = true
		return nil, err
	}
	return t, nil
}

// Do runs fn on the thread and waits for it. A panic in fn, such as a
// *FatalError from state synchronization, is re-raised in the caller.
func (t *Thread) Do(fn func() error) error {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return ErrThreadClosed
	}
	type result struct {
		err   error
		panic any
	}
	done := make(chan result, 1)
	t.queue <- func() {
		defer func() {
			if r := recover(); r != nil {
				done <- result{panic: r}
			}
		}()
		done <- result{err: fn()}
	}
	t.mu.Unlock()

	r := <-done
	if r.panic != nil {
		panic(r.panic)
	}
	return r.err
}

// Close runs fin, if not nil, as the last function on the thread and stops
// it. Close is idempotent.
func (t *Thread) Close(fin func() error) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return nil
	}
	t.closed = true

	done := make(chan error, 1)
	t.queue <- func() {
		if fin == nil {
			done <- nil
			return
		}
		done <- fin()
	}
	close(t.queue)
	return <-done
}

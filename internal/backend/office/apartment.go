// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package office

import (
	"context"
	"errors"
	"runtime"
	"sync"
	"time"
)

// stopGrace bounds how long stop waits for a call still running on the
// apartment thread.
const stopGrace = 5 * time.Second

var (
	errApartmentStopped = errors.New("COM apartment stopped")
	errApartmentStalled = errors.New("COM apartment blocked by an abandoned call")
)

// apartment runs every call on one locked OS thread. COM objects created in
// a single-threaded apartment may only be used from the thread that
// initialized it.
type apartment struct {
	calls chan func()
	done  chan struct{}

	mu     sync.Mutex
	closed bool
	// stalled is set while an abandoned call still holds the thread.
	stalled bool
}

// startApartment locks a new goroutine to its thread and runs setup there.
// teardown runs on the same thread after stop.
func startApartment(setup func() error, teardown func()) (*apartment, error) {
	a := &apartment{
		calls: make(chan func()),
		done:  make(chan struct{}),
	}
	ready := make(chan error, 1)
	go a.loop(setup, teardown, ready)
	if err := <-ready; err != nil {
		return nil, err
	}
	return a, nil
}

func (a *apartment) loop(setup func() error, teardown func(), ready chan<- error) {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()
	defer close(a.done)

	if err := setup(); err != nil {
		ready <- err
		return
	}
	ready <- nil
	for fn := range a.calls {
		fn()
	}
	teardown()
}

// do runs fn on the apartment thread and waits for it or for ctx. A call
// abandoned on ctx keeps the thread until it returns; until then every
// other call fails at once with errApartmentStalled.
func (a *apartment) do(ctx context.Context, fn func() error) error {
	res := make(chan error, 1)
	call := func() { res <- fn() }

	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		return errApartmentStopped
	}
	if a.stalled {
		a.mu.Unlock()
		return errApartmentStalled
	}
	// Hold the lock across the send so stop cannot close calls under us.
	select {
	case a.calls <- call:
		a.mu.Unlock()
	case <-ctx.Done():
		a.mu.Unlock()
		return ctx.Err()
	}

	select {
	case err := <-res:
		return err
	case <-ctx.Done():
		a.abandon(res)
		return ctx.Err()
	}
}

// abandon marks the apartment stalled until the call behind res returns.
func (a *apartment) abandon(res <-chan error) {
	a.mu.Lock()
	a.stalled = true
	a.mu.Unlock()
	go func() {
		<-res
		a.mu.Lock()
		a.stalled = false
		a.mu.Unlock()
	}()
}

// stop ends the apartment. It waits up to stopGrace for the thread to run
// teardown and reports whether it did.
func (a *apartment) stop() bool {
	a.mu.Lock()
	if !a.closed {
		a.closed = true
		close(a.calls)
	}
	a.mu.Unlock()

	select {
	case <-a.done:
		return true
	case <-time.After(stopGrace):
		return false
	}
}

package canlink

import (
	"context"
	"sync"
	"time"
)

// StateWaiter lets a goroutine block until a driver reaches a link status.
//
// The waiter does not own the driver; the driver must outlive it. Close
// releases the state listener.
//
// The listener is installed before the initial snapshot is taken, and the
// snapshot is only used if no notification arrived in between. A transition
// that happens while the waiter is being built is therefore never missed.
type StateWaiter struct {
	mu       sync.Mutex
	state    State
	seen     bool
	changed  chan struct{}
	listener *Listener
}

// NewStateWaiter subscribes to src's state notifications.
func NewStateWaiter(src StateSource) *StateWaiter {
	w := &StateWaiter{changed: make(chan struct{})}
	w.listener = src.CreateStateListener(w.update)

	initial := src.State()
	w.mu.Lock()
	if !w.seen {
		w.state = initial
	}
	w.mu.Unlock()
	return w
}

func (w *StateWaiter) update(s State) {
	w.mu.Lock()
	w.state = s
	w.seen = true
	close(w.changed)
	w.changed = make(chan struct{})
	w.mu.Unlock()
}

// State returns the last state the waiter observed.
func (w *StateWaiter) State() State {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.state
}

// Wait blocks until the observed status equals status or timeout elapses.
// It reports whether the status was reached.
func (w *StateWaiter) Wait(status LinkStatus, timeout time.Duration) bool {
	ctx, cancel := context.WithDeadline(context.Background(), time.Now().Add(timeout))
	defer cancel()
	return w.WaitContext(ctx, status)
}

// WaitContext is Wait bounded by ctx instead of a timeout.
func (w *StateWaiter) WaitContext(ctx context.Context, status LinkStatus) bool {
	for {
		w.mu.Lock()
		if w.state.Status == status {
			w.mu.Unlock()
			return true
		}
		changed := w.changed
		w.mu.Unlock()

		select {
		case <-changed:
		case <-ctx.Done():
			return w.State().Status == status
		}
	}
}

// Close unregisters the waiter from the driver.
func (w *StateWaiter) Close() error {
	return w.listener.Close()
}

// WaitFor builds a temporary waiter on src and waits once.
func WaitFor(src StateSource, status LinkStatus, timeout time.Duration) bool {
	w := NewStateWaiter(src)
	defer w.Close()
	return w.Wait(status, timeout)
}

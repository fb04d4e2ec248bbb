package canlink

import (
	"sync"
)

// LoopbackBus is an in-memory CAN bus for tests and simulations.
// Transports attached to the same bus exchange frames.
type LoopbackBus struct {
	mu        sync.RWMutex
	closed    bool
	endpoints map[*LoopbackTransport]struct{}
}

// NewLoopbackBus creates a new loopback bus.
func NewLoopbackBus() *LoopbackBus {
	return &LoopbackBus{endpoints: make(map[*LoopbackTransport]struct{})}
}

// Transport returns a new, not yet opened, transport on the bus.
func (b *LoopbackBus) Transport() *LoopbackTransport {
	return &LoopbackTransport{bus: b}
}

// Close closes the bus and every transport attached to it.
func (b *LoopbackBus) Close() error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil
	}
	b.closed = true
	eps := b.endpoints
	b.endpoints = nil
	b.mu.Unlock()

	for ep := range eps {
		ep.detach()
	}
	return nil
}

// loopbackQueue is the receive buffer of each transport. Frames arriving at
// a full queue are dropped, like a controller overrun.
const loopbackQueue = 64

// LoopbackTransport implements Transport on a LoopbackBus.
type LoopbackTransport struct {
	bus *LoopbackBus

	mu       sync.Mutex
	open     bool
	device   string
	loopback bool
	ch       chan Frame
	closed   chan struct{}
	cancel   chan struct{}
	canceled bool
}

// Open attaches the transport to its bus. The device name is informational.
func (t *LoopbackTransport) Open(device string, loopback bool) error {
	t.bus.mu.Lock()
	defer t.bus.mu.Unlock()
	if t.bus.closed {
		return ErrClosed
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if t.open {
		return nil
	}
	t.open = true
	t.device = device
	t.loopback = loopback
	t.ch = make(chan Frame, loopbackQueue)
	t.closed = make(chan struct{})
	t.cancel = make(chan struct{})
	t.canceled = false
	t.bus.endpoints[t] = struct{}{}
	return nil
}

// IsOpen reports whether the transport is attached to its bus.
func (t *LoopbackTransport) IsOpen() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.open
}

// Device returns the name passed to Open.
func (t *LoopbackTransport) Device() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.device
}

// Read waits for the next frame.
func (t *LoopbackTransport) Read() (Frame, error) {
	t.mu.Lock()
	if !t.open {
		t.mu.Unlock()
		return Frame{}, ErrClosed
	}
	if t.canceled {
		t.rearm()
		t.mu.Unlock()
		return Frame{}, ErrCanceled
	}
	ch, closed, cancel := t.ch, t.closed, t.cancel
	t.mu.Unlock()

	select {
	case f := <-ch:
		return f, nil
	case <-closed:
		return Frame{}, ErrClosed
	case <-cancel:
		t.mu.Lock()
		if t.cancel == cancel {
			t.rearm()
		}
		t.mu.Unlock()
		return Frame{}, ErrCanceled
	}
}

// rearm consumes a pending Cancel. Callers hold t.mu.
func (t *LoopbackTransport) rearm() {
	t.canceled = false
	t.cancel = make(chan struct{})
}

// Write broadcasts the frame to the other transports on the bus, and to
// this one when it was opened with loopback.
func (t *LoopbackTransport) Write(frame Frame) error {
	if err := frame.Validate(); err != nil {
		return err
	}
	t.mu.Lock()
	open, loopback := t.open, t.loopback
	t.mu.Unlock()
	if !open {
		return ErrClosed
	}

	// Snapshot endpoints under bus lock to avoid holding while sending.
	t.bus.mu.RLock()
	if t.bus.closed {
		t.bus.mu.RUnlock()
		return ErrClosed
	}
	targets := make([]*LoopbackTransport, 0, len(t.bus.endpoints))
	for ep := range t.bus.endpoints {
		if ep != t || loopback {
			targets = append(targets, ep)
		}
	}
	t.bus.mu.RUnlock()

	for _, ep := range targets {
		ep.deliver(frame)
	}
	return nil
}

func (t *LoopbackTransport) deliver(frame Frame) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.open {
		return
	}
	select {
	case t.ch <- frame:
	default:
	}
}

// Cancel fails the pending Read, or the next one, with ErrCanceled.
func (t *LoopbackTransport) Cancel() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.open && !t.canceled {
		t.canceled = true
		close(t.cancel)
	}
	return nil
}

// Close detaches the transport from the bus. It may be opened again.
func (t *LoopbackTransport) Close() error {
	t.bus.mu.Lock()
	if t.bus.endpoints != nil {
		delete(t.bus.endpoints, t)
	}
	t.bus.mu.Unlock()
	t.detach()
	return nil
}

func (t *LoopbackTransport) detach() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.open {
		return
	}
	t.open = false
	close(t.closed)
}

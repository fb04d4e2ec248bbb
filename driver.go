package canlink

import (
	"context"
	"errors"
)

var (
	// ErrClosed indicates the transport or endpoint has been closed.
	ErrClosed = errors.New("canlink: closed")
	// ErrCanceled is returned by a Read aborted through Cancel.
	ErrCanceled = errors.New("canlink: operation canceled")
	// ErrNotReady is returned when a driver did not become ready in time.
	ErrNotReady = errors.New("canlink: driver not ready")
)

// Transport is the device side of a driver. Read and Write may be called
// concurrently with each other; everything else is serialized by the driver.
type Transport interface {
	// Open attaches to the named device. With loopback set, frames written
	// by this transport are also received by it.
	Open(device string, loopback bool) error

	// IsOpen reports the live open status of the handle.
	IsOpen() bool

	// Read blocks until a frame arrives, Cancel is called or the handle is
	// closed.
	Read() (Frame, error)

	// Write hands one frame to the device.
	Write(Frame) error

	// Cancel aborts a pending Read without closing the handle. With no Read
	// pending, the next Read returns ErrCanceled instead.
	Cancel() error

	// Close releases the handle. Pending operations fail.
	Close() error
}

// StateSource is anything that exposes a state snapshot and state
// notifications.
type StateSource interface {
	State() State
	CreateStateListener(StateFunc) *Listener
}

// Driver is the capability set shared by Core and its decorators.
type Driver interface {
	StateSource

	Init(device string, loopback bool) error
	Run(ctx context.Context)
	Send(Frame) bool
	Shutdown()
	Recover() bool

	CreateMsgListener(FrameFunc) *Listener
	CreateHeaderListener(Header, FrameFunc) *Listener
	CreateFilterListener(FrameFilter, FrameFunc) *Listener
}

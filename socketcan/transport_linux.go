//go:build linux

package socketcan

import (
	"errors"
	"fmt"
	"net"
	"os"
	"sync"
	"time"

	"golang.org/x/sys/unix"

	"github.com/notnil/canlink"
)

// Transport is a raw CAN socket bound to one interface.
type Transport struct {
	errMask uint32

	mu       sync.Mutex
	file     *os.File
	device   string
	canceled bool
}

// New returns a closed transport. Open binds it to an interface.
func New(opts ...Option) *Transport {
	t := &Transport{errMask: DefaultErrorMask}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Open creates the socket and binds it to device (e.g. "can0"). With
// loopback set the socket also receives the frames it sends.
func (t *Transport) Open(device string, loopback bool) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.file != nil {
		return nil
	}

	iface, err := net.InterfaceByName(device)
	if err != nil {
		return err
	}
	fd, err := unix.Socket(unix.AF_CAN, unix.SOCK_RAW|unix.SOCK_NONBLOCK|unix.SOCK_CLOEXEC, unix.CAN_RAW)
	if err != nil {
		return fmt.Errorf("socketcan: socket: %w", err)
	}
	if loopback {
		if err := unix.SetsockoptInt(fd, unix.SOL_CAN_RAW, unix.CAN_RAW_RECV_OWN_MSGS, 1); err != nil {
			unix.Close(fd)
			return fmt.Errorf("socketcan: recv own msgs: %w", err)
		}
	}
	if t.errMask != 0 {
		if err := unix.SetsockoptInt(fd, unix.SOL_CAN_RAW, unix.CAN_RAW_ERR_FILTER, int(t.errMask)); err != nil {
			unix.Close(fd)
			return fmt.Errorf("socketcan: error filter: %w", err)
		}
	}
	if err := unix.Bind(fd, &unix.SockaddrCAN{Ifindex: iface.Index}); err != nil {
		unix.Close(fd)
		return fmt.Errorf("socketcan: bind %s: %w", device, err)
	}

	// A non-blocking descriptor makes the file pollable, which gives Read
	// deadlines for Cancel.
	t.file = os.NewFile(uintptr(fd), "socketcan:"+device)
	t.device = device
	t.canceled = false
	return nil
}

// IsOpen reports whether the socket is bound.
func (t *Transport) IsOpen() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.file != nil
}

// Device returns the interface name the socket is bound to.
func (t *Transport) Device() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.device
}

func (t *Transport) handle() *os.File {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.file
}

// Read reads one frame using the Linux can_frame binary layout.
func (t *Transport) Read() (canlink.Frame, error) {
	t.mu.Lock()
	f := t.file
	if f == nil {
		t.mu.Unlock()
		return canlink.Frame{}, canlink.ErrClosed
	}
	if t.canceled {
		t.rearm()
		t.mu.Unlock()
		return canlink.Frame{}, canlink.ErrCanceled
	}
	t.mu.Unlock()

	buf := make([]byte, canlink.FrameSize)
	n, err := f.Read(buf)
	if err != nil {
		err = mapErr(err)
		if errors.Is(err, canlink.ErrCanceled) {
			t.mu.Lock()
			if t.canceled && t.file == f {
				t.rearm()
			}
			t.mu.Unlock()
		}
		return canlink.Frame{}, err
	}
	if n != len(buf) {
		return canlink.Frame{}, errors.New("socketcan: short read")
	}
	var frame canlink.Frame
	if err := frame.UnmarshalBinary(buf); err != nil {
		return canlink.Frame{}, err
	}
	return frame, nil
}

// Write sends one frame.
func (t *Transport) Write(frame canlink.Frame) error {
	buf, err := frame.MarshalBinary()
	if err != nil {
		return err
	}
	f := t.handle()
	if f == nil {
		return canlink.ErrClosed
	}
	n, err := f.Write(buf)
	if err != nil {
		return mapErr(err)
	}
	if n != len(buf) {
		return errors.New("socketcan: short write")
	}
	return nil
}

// Cancel makes the pending Read, or the next one, return
// canlink.ErrCanceled. The read deadline stays in the past until a Read
// consumes the cancellation.
func (t *Transport) Cancel() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.file == nil || t.canceled {
		return nil
	}
	t.canceled = true
	return t.file.SetReadDeadline(time.Now())
}

// rearm consumes a pending Cancel. Callers hold t.mu.
func (t *Transport) rearm() {
	t.canceled = false
	_ = t.file.SetReadDeadline(time.Time{})
}

// Close closes the socket; a pending Read fails with canlink.ErrClosed.
func (t *Transport) Close() error {
	t.mu.Lock()
	f := t.file
	t.file = nil
	t.canceled = false
	t.mu.Unlock()
	if f == nil {
		return nil
	}
	return f.Close()
}

func mapErr(err error) error {
	switch {
	case errors.Is(err, os.ErrDeadlineExceeded):
		return canlink.ErrCanceled
	case errors.Is(err, os.ErrClosed):
		return canlink.ErrClosed
	}
	return err
}

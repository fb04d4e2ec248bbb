//go:build !linux

package socketcan

import "github.com/notnil/canlink"

// Transport is unavailable outside Linux; Open always fails.
type Transport struct {
	errMask uint32
}

// New returns a transport whose Open fails with ErrUnsupported.
func New(opts ...Option) *Transport {
	t := &Transport{errMask: DefaultErrorMask}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

func (t *Transport) Open(string, bool) error          { return ErrUnsupported }
func (t *Transport) IsOpen() bool                     { return false }
func (t *Transport) Device() string                   { return "" }
func (t *Transport) Read() (canlink.Frame, error)     { return canlink.Frame{}, canlink.ErrClosed }
func (t *Transport) Write(canlink.Frame) error        { return canlink.ErrClosed }
func (t *Transport) Cancel() error                    { return nil }
func (t *Transport) Close() error                     { return nil }
func IsInterfaceUp(string) (bool, error)              { return false, ErrUnsupported }
func SetInterfaceUp(string) error                     { return ErrUnsupported }
func SetInterfaceDown(string) error                   { return ErrUnsupported }
func ConfigureInterface(string, InterfaceOptions) error { return ErrUnsupported }

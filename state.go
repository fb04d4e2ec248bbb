package canlink

import "errors"

// LinkStatus is the coarse status of a driver's link.
type LinkStatus uint8

const (
	Closed LinkStatus = iota
	Open
	Ready
)

func (s LinkStatus) String() string {
	switch s {
	case Closed:
		return "closed"
	case Open:
		return "open"
	case Ready:
		return "ready"
	}
	return "unknown"
}

// State is the observable status of a driver: its link status plus the last
// transport error and the last internal (controller) error code.
type State struct {
	Status       LinkStatus
	TransportErr error
	InternalErr  uint32
}

// IsReady reports whether frames can be sent.
func (s State) IsReady() bool { return s.Status == Ready }

// Equal compares states field by field. Transport errors match when they
// wrap each other in both directions.
func (s State) Equal(o State) bool {
	return s.Status == o.Status && s.InternalErr == o.InternalErr && sameError(s.TransportErr, o.TransportErr)
}

func sameError(a, b error) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return errors.Is(a, b) && errors.Is(b, a)
}

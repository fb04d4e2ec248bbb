package canlink

import (
	"encoding/binary"
	"errors"
	"fmt"
	"strings"
)

// Header carries the addressing part of a frame. Listeners registered with
// a Header only receive frames whose Key matches.
type Header struct {
	ID       uint32 // 11-bit (std) or 29-bit (ext)
	Extended bool   // true for 29-bit identifier
	RTR      bool   // remote transmission request
	Error    bool   // error frame reported by the controller
}

// Frame represents a classical CAN (2.0A/2.0B) frame.
//
// Supported features:
//   - Standard (11-bit) and Extended (29-bit) identifiers
//   - Data frames, Remote Transmission Request (RTR) and error frames
//   - Data length 0-8 bytes (classical CAN)
//
// Frame is a value type; handing it to listeners copies it.
type Frame struct {
	Header
	Len  uint8 // 0..8
	Data [8]byte
}

// Validation limits and can_id flag bits of the SocketCAN layout.
const (
	maxStdID = 0x7FF
	maxExtID = 0x1FFFFFFF

	canEffFlag = 0x80000000
	canRtrFlag = 0x40000000
	canErrFlag = 0x20000000
	canEffMask = 0x1FFFFFFF
	canStdMask = 0x7FF

	// FrameSize is the size of an encoded frame (struct can_frame).
	FrameSize = 16
)

var (
	ErrInvalidID  = errors.New("canlink: invalid identifier")
	ErrInvalidLen = errors.New("canlink: invalid data length")
)

// Key folds the identifier and flags into the can_id word.
func (h Header) Key() uint32 {
	k := h.ID
	if h.Extended {
		k |= canEffFlag
	}
	if h.RTR {
		k |= canRtrFlag
	}
	if h.Error {
		k |= canErrFlag
	}
	return k
}

// HeaderFromKey is the inverse of Header.Key.
func HeaderFromKey(k uint32) Header {
	h := Header{
		Extended: k&canEffFlag != 0,
		RTR:      k&canRtrFlag != 0,
		Error:    k&canErrFlag != 0,
	}
	if h.Extended || h.Error {
		h.ID = k & canEffMask
	} else {
		h.ID = k & canStdMask
	}
	return h
}

// Validate returns an error if the frame is not valid.
func (f Frame) Validate() error {
	if f.Len > 8 {
		return ErrInvalidLen
	}
	limit := uint32(maxStdID)
	if f.Extended || f.Error {
		limit = maxExtID
	}
	if f.ID > limit {
		return ErrInvalidID
	}
	return nil
}

// Payload returns the used part of Data.
func (f Frame) Payload() []byte {
	n := f.Len
	if n > 8 {
		n = 8
	}
	return f.Data[:n]
}

// MustFrame constructs a Frame and panics if invalid. Convenience for examples.
func MustFrame(id uint32, data []byte) Frame {
	var f Frame
	f.ID = id
	if id > maxStdID {
		f.Extended = true
	}
	if len(data) > 8 {
		panic(ErrInvalidLen)
	}
	f.Len = uint8(len(data))
	copy(f.Data[:], data)
	if err := f.Validate(); err != nil {
		panic(err)
	}
	return f
}

// MarshalBinary encodes the frame to the Linux SocketCAN "struct can_frame"
// layout (16 bytes):
//
//	0..3  can_id (with flags: EFF/RTR/ERR), little-endian
//	4     can_dlc
//	5..7  padding
//	8..15 data bytes
func (f Frame) MarshalBinary() ([]byte, error) {
	if err := f.Validate(); err != nil {
		return nil, err
	}
	buf := make([]byte, FrameSize)
	binary.LittleEndian.PutUint32(buf[0:4], f.Key())
	buf[4] = f.Len
	copy(buf[8:16], f.Data[:])
	return buf, nil
}

// UnmarshalBinary decodes a frame from the Linux SocketCAN can_frame layout.
func (f *Frame) UnmarshalBinary(data []byte) error {
	if len(data) < FrameSize {
		return fmt.Errorf("canlink: need %d bytes, got %d", FrameSize, len(data))
	}
	f.Header = HeaderFromKey(binary.LittleEndian.Uint32(data[0:4]))
	f.Len = data[4]
	copy(f.Data[:], data[8:16])
	return f.Validate()
}

// String renders the frame candump style, e.g. "123 [2] DE AD".
func (f Frame) String() string {
	var b strings.Builder
	if f.Extended || f.Error {
		fmt.Fprintf(&b, "%08X", f.ID)
	} else {
		fmt.Fprintf(&b, "%03X", f.ID)
	}
	fmt.Fprintf(&b, " [%d]", f.Len)
	switch {
	case f.Error:
		b.WriteString(" ERR")
	case f.RTR:
		b.WriteString(" RTR")
	}
	if !f.RTR {
		for _, c := range f.Payload() {
			fmt.Fprintf(&b, " %02X", c)
		}
	}
	return b.String()
}

package socketcan

import (
	"errors"
	"strconv"
)

// ErrUnsupported is returned on platforms without SocketCAN.
var ErrUnsupported = errors.New("socketcan: not supported on this platform")

// Error classes of the can_id of an error frame (linux/can/error.h).
const (
	ErrTxTimeout  = 0x00000001
	ErrLostArb    = 0x00000002
	ErrCtrl       = 0x00000004
	ErrProt       = 0x00000008
	ErrTrx        = 0x00000010
	ErrAck        = 0x00000020
	ErrBusOff     = 0x00000040
	ErrBusError   = 0x00000080
	ErrRestarted  = 0x00000100
	ErrAllClasses = 0x1FFFFFFF
)

// DefaultErrorMask requests the error frames that mean the link is down or
// degraded.
const DefaultErrorMask = ErrTxTimeout | ErrCtrl | ErrBusOff | ErrRestarted

// Option configures a Transport.
type Option func(*Transport)

// WithErrorMask selects the error classes delivered as error frames. Zero
// disables error frames.
func WithErrorMask(mask uint32) Option {
	return func(t *Transport) { t.errMask = mask }
}

// InterfaceOptions controls common CAN interface parameters through the
// system `ip` tool.
//
// Changing bitrate/restart-ms typically requires the interface to be DOWN.
// These operations require CAP_NET_ADMIN.
type InterfaceOptions struct {
	// Bitrate sets the arbitration bit-rate in bits per second (e.g., 125000, 500000, 1000000).
	// If nil, bitrate is left unchanged.
	Bitrate *uint32

	// RestartMs sets automatic bus-off recovery delay in milliseconds.
	// If nil, restart-ms is left unchanged. Set to 0 to disable auto-restart.
	RestartMs *uint32

	// TxQueueLen sets the transmit queue length (number of packets).
	// If nil, txqueuelen is left unchanged.
	TxQueueLen *int
}

// args builds the `ip` invocations for the non-nil fields.
func (o InterfaceOptions) args(name string) [][]string {
	var cmds [][]string
	if o.TxQueueLen != nil {
		cmds = append(cmds, []string{"link", "set", "dev", name, "txqueuelen", strconv.FormatInt(int64(*o.TxQueueLen), 10)})
	}
	if o.Bitrate != nil || o.RestartMs != nil {
		args := []string{"link", "set", "dev", name, "type", "can"}
		if o.Bitrate != nil {
			args = append(args, "bitrate", strconv.FormatInt(int64(*o.Bitrate), 10))
		}
		if o.RestartMs != nil {
			args = append(args, "restart-ms", strconv.FormatInt(int64(*o.RestartMs), 10))
		}
		cmds = append(cmds, args)
	}
	return cmds
}

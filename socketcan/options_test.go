package socketcan

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestInterfaceOptionsArgs(t *testing.T) {
	require.Empty(t, InterfaceOptions{}.args("can0"))

	bitrate, restart, qlen := uint32(500000), uint32(100), 1024
	got := InterfaceOptions{Bitrate: &bitrate, RestartMs: &restart, TxQueueLen: &qlen}.args("can0")
	require.Equal(t, [][]string{
		{"link", "set", "dev", "can0", "txqueuelen", "1024"},
		{"link", "set", "dev", "can0", "type", "can", "bitrate", "500000", "restart-ms", "100"},
	}, got)

	got = InterfaceOptions{RestartMs: &restart}.args("vcan1")
	require.Equal(t, [][]string{{"link", "set", "dev", "vcan1", "type", "can", "restart-ms", "100"}}, got)
}

func TestErrorMaskOption(t *testing.T) {
	require.Equal(t, uint32(DefaultErrorMask), New().errMask)
	require.Equal(t, uint32(ErrBusOff), New(WithErrorMask(ErrBusOff)).errMask)
	require.Zero(t, New(WithErrorMask(0)).errMask)
}

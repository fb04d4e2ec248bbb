//go:build linux

package socketcan

import (
	"errors"
	"fmt"
	"os"
	"testing"

	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"

	"github.com/notnil/canlink"
)

func TestMapErr(t *testing.T) {
	require.ErrorIs(t, mapErr(fmt.Errorf("read: %w", os.ErrDeadlineExceeded)), canlink.ErrCanceled)
	require.ErrorIs(t, mapErr(os.ErrClosed), canlink.ErrClosed)
	other := errors.New("boom")
	require.Equal(t, other, mapErr(other))
}

func TestClosedTransport(t *testing.T) {
	tr := New()
	require.False(t, tr.IsOpen())
	_, err := tr.Read()
	require.ErrorIs(t, err, canlink.ErrClosed)
	require.ErrorIs(t, tr.Write(canlink.MustFrame(0x1, nil)), canlink.ErrClosed)
	require.NoError(t, tr.Cancel())
	require.NoError(t, tr.Close())
}

func TestOpenUnknownInterface(t *testing.T) {
	tr := New()
	require.Error(t, tr.Open("nosuchcan9", false))
	require.False(t, tr.IsOpen())
}

func TestInterfaceNameValidation(t *testing.T) {
	_, err := IsInterfaceUp("")
	require.Error(t, err)
	require.Error(t, ConfigureInterface("a-very-long-interface-name", InterfaceOptions{}))
}

func TestRequireCapNetAdmin(t *testing.T) {
	require.NoError(t, RequireCapNetAdmin(nil))
	err := RequireCapNetAdmin(fmt.Errorf("ioctl: %w", unix.EPERM))
	require.ErrorIs(t, err, unix.EPERM)
	require.ErrorContains(t, err, "CAP_NET_ADMIN")
}

// TestVCAN exchanges a frame over a real vcan interface when one is present.
func TestVCAN(t *testing.T) {
	up, err := IsInterfaceUp("vcan0")
	if err != nil || !up {
		t.Skip("vcan0 not available")
	}
	a, b := New(), New()
	require.NoError(t, a.Open("vcan0", false))
	defer a.Close()
	require.NoError(t, b.Open("vcan0", false))
	defer b.Close()

	// A Cancel before the Read is not lost.
	require.NoError(t, b.Cancel())
	_, err = b.Read()
	require.ErrorIs(t, err, canlink.ErrCanceled)

	want := canlink.MustFrame(0x321, []byte{1, 2, 3})
	require.NoError(t, a.Write(want))
	got, err := b.Read()
	require.NoError(t, err)
	require.Equal(t, want, got)
}

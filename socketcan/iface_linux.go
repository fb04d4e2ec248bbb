//go:build linux

package socketcan

import (
	"errors"
	"fmt"
	"os/exec"
	"strings"

	"golang.org/x/sys/unix"
)

// Bringing interfaces up/down and changing their parameters requires
// CAP_NET_ADMIN. Without it these functions return EPERM, wrapped with
// RequireCapNetAdmin.

const ifNameSize = unix.IFNAMSIZ

func validName(name string) error {
	if len(name) == 0 || len(name) >= ifNameSize {
		return fmt.Errorf("socketcan: invalid interface name %q", name)
	}
	return nil
}

func interfaceFlags(name string) (uint16, error) {
	if err := validName(name); err != nil {
		return 0, err
	}
	fd, err := unix.Socket(unix.AF_INET, unix.SOCK_DGRAM|unix.SOCK_CLOEXEC, 0)
	if err != nil {
		return 0, err
	}
	defer unix.Close(fd)
	ifr, err := unix.NewIfreq(name)
	if err != nil {
		return 0, err
	}
	if err := unix.IoctlIfreq(fd, unix.SIOCGIFFLAGS, ifr); err != nil {
		return 0, err
	}
	return ifr.Uint16(), nil
}

func setInterfaceFlags(name string, flags uint16) error {
	fd, err := unix.Socket(unix.AF_INET, unix.SOCK_DGRAM|unix.SOCK_CLOEXEC, 0)
	if err != nil {
		return err
	}
	defer unix.Close(fd)
	ifr, err := unix.NewIfreq(name)
	if err != nil {
		return err
	}
	ifr.SetUint16(flags)
	return RequireCapNetAdmin(unix.IoctlIfreq(fd, unix.SIOCSIFFLAGS, ifr))
}

// IsInterfaceUp reports whether the interface has IFF_UP set.
func IsInterfaceUp(name string) (bool, error) {
	flags, err := interfaceFlags(name)
	if err != nil {
		return false, err
	}
	return flags&unix.IFF_UP != 0, nil
}

// SetInterfaceUp sets IFF_UP on the given interface.
func SetInterfaceUp(name string) error {
	flags, err := interfaceFlags(name)
	if err != nil {
		return err
	}
	if flags&unix.IFF_UP != 0 {
		return nil
	}
	return setInterfaceFlags(name, flags|unix.IFF_UP)
}

// SetInterfaceDown clears IFF_UP on the given interface.
func SetInterfaceDown(name string) error {
	flags, err := interfaceFlags(name)
	if err != nil {
		return err
	}
	if flags&unix.IFF_UP == 0 {
		return nil
	}
	return setInterfaceFlags(name, flags&^unix.IFF_UP)
}

// RequireCapNetAdmin maps EPERM to an error advising CAP_NET_ADMIN.
func RequireCapNetAdmin(err error) error {
	if errors.Is(err, unix.EPERM) {
		return fmt.Errorf("operation requires CAP_NET_ADMIN (or root): %w", err)
	}
	return err
}

// ConfigureInterface applies opts to a CAN interface by invoking `ip`
// (iproute2). Only the non-nil fields are applied.
func ConfigureInterface(name string, opts InterfaceOptions) error {
	if err := validName(name); err != nil {
		return err
	}
	for _, args := range opts.args(name) {
		out, err := exec.Command("ip", args...).CombinedOutput()
		if err != nil {
			return RequireCapNetAdmin(fmt.Errorf("ip %s: %w; output: %s", strings.Join(args, " "), err, out))
		}
	}
	return nil
}

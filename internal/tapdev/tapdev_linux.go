//go:build linux

// Package tapdev opens and drives a Linux TAP network device backed by
// /dev/net/tun. The device exchanges raw Ethernet frames with the host.
package tapdev

import (
	"errors"
	"fmt"

	"golang.org/x/sys/unix"
)

const tunPath = "/dev/net/tun"

// TAP is an open TAP device file descriptor.
type TAP struct {
	fd   int
	name string
}

// Open creates or attaches to the TAP interface with the given name in
// IFF_TAP|IFF_NO_PI mode. Frames read from it start at the Ethernet
// destination address.
func Open(name string) (*TAP, error) {
	if len(name) >= unix.IFNAMSIZ {
		return nil, errors.New("tapdev: interface name too long")
	}
	fd, err := unix.Open(tunPath, unix.O_RDWR, 0)
	if err != nil {
		return nil, fmt.Errorf("tapdev: open %s: %w", tunPath, err)
	}
	ifr, err := unix.NewIfreq(name)
	if err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("tapdev: ifreq: %w", err)
	}
	ifr.SetUint16(unix.IFF_TAP | unix.IFF_NO_PI)
	if err := unix.IoctlIfreq(fd, unix.TUNSETIFF, ifr); err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("tapdev: TUNSETIFF %s: %w", name, err)
	}
	return &TAP{fd: fd, name: name}, nil
}

// Name returns the interface name of the TAP device.
func (t *TAP) Name() string { return t.name }

// Read reads a single Ethernet frame into b. It blocks until a frame arrives
// or the descriptor is closed.
func (t *TAP) Read(b []byte) (int, error) {
	return unix.Read(t.fd, b)
}

// Write writes a single Ethernet frame from b.
func (t *TAP) Write(b []byte) (int, error) {
	return unix.Write(t.fd, b)
}

// Close closes the TAP descriptor, unblocking pending reads.
func (t *TAP) Close() error {
	return unix.Close(t.fd)
}

package stack

import (
	"net/netip"
	"testing"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/require"
	"github.com/ustack-dev/ustack/ethernet"
)

// captureDriver records transmitted frames instead of touching hardware.
type captureDriver struct {
	frames []capturedFrame
}

type capturedFrame struct {
	etherType ethernet.Type
	data      []byte
	dst       [6]byte
}

func (d *captureDriver) Open(dev *Device) error  { return nil }
func (d *captureDriver) Close(dev *Device) error { return nil }

func (d *captureDriver) Transmit(dev *Device, etherType ethernet.Type, data []byte, dst [6]byte) error {
	d.frames = append(d.frames, capturedFrame{
		etherType: etherType,
		data:      append([]byte(nil), data...),
		dst:       dst,
	})
	return nil
}

var testMAC = [6]byte{0x00, 0x00, 0x5e, 0x00, 0x53, 0x01}

func newTestStack(t *testing.T) (*Stack, *clockwork.FakeClock) {
	t.Helper()
	clock := clockwork.NewFakeClock()
	s, err := New(Config{Clock: clock})
	require.NoError(t, err)
	return s, clock
}

// newEtherDevice registers a capture-backed Ethernet device with an interface
// addressed unicast/netmask and marks it up without running the stack.
func newEtherDevice(t *testing.T, s *Stack, unicast, netmask string) (*Device, *Interface, *captureDriver) {
	t.Helper()
	drv := &captureDriver{}
	dev, err := s.RegisterDevice(DeviceConfig{
		Type:          DeviceEthernet,
		MTU:           1500,
		HeaderLen:     ethernet.SizeHeader,
		AddrLen:       ethernet.SizeAddr,
		HardwareAddr:  testMAC,
		BroadcastAddr: ethernet.BroadcastAddr(),
		Flags:         FlagBroadcast | FlagNeedARP,
	}, drv)
	require.NoError(t, err)
	iface, err := NewInterface(unicast, netmask)
	require.NoError(t, err)
	require.NoError(t, s.RegisterInterface(dev, iface))
	require.NoError(t, dev.open())
	return dev, iface, drv
}

func mustAddr(t *testing.T, s string) netip.Addr {
	t.Helper()
	a, err := ParseAddr(s)
	require.NoError(t, err)
	return a
}

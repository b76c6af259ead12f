package stack

import "github.com/ustack-dev/ustack/ethernet"

// loopbackMTU is the maximum size of an IP datagram.
const loopbackMTU = 0xffff

// loopbackDriver hands transmitted bytes straight back to the ingress
// handler: no link header, no copy through a kernel interface.
type loopbackDriver struct{}

func (loopbackDriver) Open(dev *Device) error  { return nil }
func (loopbackDriver) Close(dev *Device) error { return nil }

func (loopbackDriver) Transmit(dev *Device, etherType ethernet.Type, data []byte, dst [6]byte) error {
	dev.stack.inputHandler(etherType, data, dev)
	return nil
}

// AttachLoopback registers a software loopback device. Must be called before
// Run.
func (s *Stack) AttachLoopback() (*Device, error) {
	return s.RegisterDevice(DeviceConfig{
		Type:  DeviceLoopback,
		MTU:   loopbackMTU,
		Flags: FlagLoopback,
	}, loopbackDriver{})
}

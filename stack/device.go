package stack

import (
	"fmt"
	"log/slog"
	"net"

	"github.com/ustack-dev/ustack/ethernet"
)

// DeviceType tags the kind of network device.
type DeviceType uint8

const (
	DeviceLoopback DeviceType = iota + 1
	DeviceEthernet
)

func (t DeviceType) String() string {
	switch t {
	case DeviceLoopback:
		return "loopback"
	case DeviceEthernet:
		return "ethernet"
	}
	return "unknown"
}

// DeviceFlags describe device capabilities and state.
type DeviceFlags uint16

const (
	// FlagUp is set while the device is open. Managed by the stack.
	FlagUp DeviceFlags = 1 << iota
	// FlagLoopback marks a software loopback device.
	FlagLoopback
	// FlagBroadcast marks a device with a link-level broadcast address.
	FlagBroadcast
	// FlagNeedARP marks a device whose egress requires link-layer address
	// resolution.
	FlagNeedARP
)

// Driver is the operation set a device backend provides. Open and Close may be
// no-ops. Transmit hands a fully formed payload plus the resolved destination
// link address to the hardware; drivers prepend their own link header.
type Driver interface {
	Open(dev *Device) error
	Close(dev *Device) error
	Transmit(dev *Device, etherType ethernet.Type, data []byte, dst [6]byte) error
}

// Poller is implemented by drivers that deliver received frames from the
// dispatcher. Poll runs on the dispatcher goroutine in response to the
// device's IRQ and must not block.
type Poller interface {
	Poll(dev *Device) error
}

// DeviceConfig describes a device at registration time.
type DeviceConfig struct {
	Type          DeviceType
	MTU           int
	HeaderLen     int
	AddrLen       int
	HardwareAddr  [6]byte
	BroadcastAddr [6]byte
	Flags         DeviceFlags
}

// Device is a registered network device. Devices are created by driver attach
// functions, registered exactly once before the stack is started, opened on
// Run and closed on Shutdown.
type Device struct {
	stack  *Stack
	drv    Driver
	index  int
	name   string
	typ    DeviceType
	mtu    int
	hdrLen int
	adrLen int
	hwaddr [6]byte
	bcast  [6]byte
	flags  DeviceFlags
	ifaces []*Interface
}

func (d *Device) Name() string          { return d.name }
func (d *Device) Index() int            { return d.index }
func (d *Device) Type() DeviceType      { return d.typ }
func (d *Device) MTU() int              { return d.mtu }
func (d *Device) Flags() DeviceFlags    { return d.flags }
func (d *Device) HardwareAddr() [6]byte { return d.hwaddr }
func (d *Device) IsUp() bool            { return d.flags&FlagUp != 0 }

// InterfaceIP returns the IP interface bound to the device, or nil.
func (d *Device) InterfaceIP() *Interface {
	if len(d.ifaces) == 0 {
		return nil
	}
	return d.ifaces[0]
}

// RegisterDevice creates and registers a device backed by drv. Must be called
// before Run.
func (s *Stack) RegisterDevice(cfg DeviceConfig, drv Driver) (*Device, error) {
	if s.running {
		return nil, ErrStackRunning
	}
	if cfg.MTU <= 0 {
		return nil, fmt.Errorf("stack: invalid MTU %d", cfg.MTU)
	}
	dev := &Device{
		stack:  s,
		drv:    drv,
		index:  len(s.devices),
		typ:    cfg.Type,
		mtu:    cfg.MTU,
		hdrLen: cfg.HeaderLen,
		adrLen: cfg.AddrLen,
		hwaddr: cfg.HardwareAddr,
		bcast:  cfg.BroadcastAddr,
		flags:  cfg.Flags &^ FlagUp,
	}
	dev.name = fmt.Sprintf("net%d", dev.index)
	s.devices = append(s.devices, dev)
	s.info("device registered", slog.String("dev", dev.name), slog.String("type", dev.typ.String()),
		slog.String("hwaddr", net.HardwareAddr(dev.hwaddr[:]).String()))
	return dev, nil
}

func (d *Device) open() error {
	if d.IsUp() {
		return fmt.Errorf("stack: device %s already opened", d.name)
	}
	if err := d.drv.Open(d); err != nil {
		return fmt.Errorf("stack: opening %s: %w", d.name, err)
	}
	d.flags |= FlagUp
	d.stack.info("device up", slog.String("dev", d.name))
	return nil
}

func (d *Device) close() error {
	if !d.IsUp() {
		return fmt.Errorf("stack: device %s not opened", d.name)
	}
	if err := d.drv.Close(d); err != nil {
		return fmt.Errorf("stack: closing %s: %w", d.name, err)
	}
	d.flags &^= FlagUp
	d.stack.info("device down", slog.String("dev", d.name))
	return nil
}

// Output hands data to the device transmit function after checking device
// state and the MTU gate.
func (d *Device) Output(etherType ethernet.Type, data []byte, dst [6]byte) error {
	if !d.IsUp() {
		return ErrDeviceDown
	}
	if len(data) > d.mtu {
		return ErrPacketTooLarge
	}
	d.stack.debugDump("device output", data, slog.String("dev", d.name),
		slog.String("type", etherType.String()), slog.Int("len", len(data)))
	metricSent.WithLabelValues(etherType.String()).Inc()
	return d.drv.Transmit(d, etherType, data, dst)
}

package stack

import (
	"fmt"
	"log/slog"
	"net"
	"sync"

	"github.com/ustack-dev/ustack"
	"github.com/ustack-dev/ustack/ethernet"
	"github.com/ustack-dev/ustack/internal/tapdev"
)

// TAPConfig describes an Ethernet-over-TAP device.
type TAPConfig struct {
	// Name of the TAP interface, e.g. "tap0".
	Name string
	// HardwareAddr is the MAC address the stack answers to, e.g.
	// "00:00:5e:00:53:01".
	HardwareAddr string
	// IRQ selects the interrupt line; zero picks one automatically.
	IRQ int
}

// tapDriver bridges a TAP file descriptor into the stack. A reader goroutine
// blocks on the descriptor and signals the device IRQ; Poll then runs on the
// dispatcher and feeds frames to the ingress handler.
type tapDriver struct {
	name   string
	irq    int
	tap    *tapdev.TAP
	frames chan []byte
	wg     sync.WaitGroup
}

// AttachTAP registers an Ethernet device backed by the named TAP interface.
// The TAP descriptor is opened when the stack runs. Must be called before
// Run.
func (s *Stack) AttachTAP(cfg TAPConfig) (*Device, error) {
	mac, err := net.ParseMAC(cfg.HardwareAddr)
	if err != nil {
		return nil, fmt.Errorf("stack: tap hardware address %q: %w", cfg.HardwareAddr, err)
	}
	if len(mac) != ethernet.SizeAddr {
		return nil, fmt.Errorf("stack: tap hardware address %q: not 48-bit", cfg.HardwareAddr)
	}
	drv := &tapDriver{
		name:   cfg.Name,
		irq:    cfg.IRQ,
		frames: make(chan []byte, 64),
	}
	if drv.irq == 0 {
		drv.irq = irqBase + len(s.devices)
	}
	var hwaddr [6]byte
	copy(hwaddr[:], mac)
	dev, err := s.RegisterDevice(DeviceConfig{
		Type:          DeviceEthernet,
		MTU:           1500,
		HeaderLen:     ethernet.SizeHeader,
		AddrLen:       ethernet.SizeAddr,
		HardwareAddr:  hwaddr,
		BroadcastAddr: ethernet.BroadcastAddr(),
		Flags:         FlagBroadcast | FlagNeedARP,
	}, drv)
	if err != nil {
		return nil, err
	}
	err = s.RequestIRQ(drv.irq, func(irq int, dev *Device) error {
		return drv.Poll(dev)
	}, 0, dev.Name(), dev)
	if err != nil {
		return nil, err
	}
	return dev, nil
}

func (d *tapDriver) Open(dev *Device) error {
	tap, err := tapdev.Open(d.name)
	if err != nil {
		return err
	}
	d.tap = tap
	d.wg.Add(1)
	go d.reader(dev)
	return nil
}

func (d *tapDriver) Close(dev *Device) error {
	// Closing the descriptor unblocks the pending read.
	err := d.tap.Close()
	d.wg.Wait()
	return err
}

// reader blocks on the TAP descriptor and signals the IRQ for each frame.
func (d *tapDriver) reader(dev *Device) {
	defer d.wg.Done()
	for {
		buf := make([]byte, ethernet.MaxFrameSize)
		n, err := d.tap.Read(buf)
		if err != nil {
			return
		}
		if n <= 0 {
			continue
		}
		select {
		case d.frames <- buf[:n]:
			dev.stack.RaiseIRQ(d.irq)
		default:
			countDrop("link", "rx-ring-overflow")
		}
	}
}

// Poll drains frames buffered by the reader. Runs on the dispatcher via the
// device IRQ. Returns ErrPacketDrop when any drained frame failed validation;
// the remaining frames are still delivered.
func (d *tapDriver) Poll(dev *Device) error {
	var err error
	for {
		select {
		case frame := <-d.frames:
			if e := d.input(dev, frame); e != nil {
				err = e
			}
		default:
			return err
		}
	}
}

// input strips the Ethernet header and dispatches the payload by EtherType.
func (d *tapDriver) input(dev *Device, frame []byte) error {
	if len(frame) < ethernet.SizeHeader {
		countDrop("link", "short-frame")
		return ustack.ErrPacketDrop
	}
	efrm, _ := ethernet.NewFrame(frame)
	etype := efrm.EtherTypeOrSize()
	if etype.IsSize() {
		countDrop("link", "unknown-ethertype")
		return ustack.ErrPacketDrop
	}
	dev.stack.debug("tap frame", slog.String("dev", dev.name), slog.String("type", etype.String()),
		slog.Int("len", len(frame)))
	dev.stack.inputHandler(etype, efrm.Payload(), dev)
	return nil
}

// Transmit prepends the Ethernet header, pads the frame to the 60-byte
// minimum and writes it to the TAP descriptor.
func (d *tapDriver) Transmit(dev *Device, etherType ethernet.Type, data []byte, dst [6]byte) error {
	flen := ethernet.SizeHeader + len(data)
	if flen < ethernet.MinFrameSize {
		flen = ethernet.MinFrameSize
	}
	buf := make([]byte, flen)
	efrm, _ := ethernet.NewFrame(buf)
	*efrm.DestinationHardwareAddr() = dst
	*efrm.SourceHardwareAddr() = dev.hwaddr
	efrm.SetEtherType(etherType)
	copy(efrm.Payload(), data)
	if _, err := d.tap.Write(buf); err != nil {
		return fmt.Errorf("stack: tap write: %w", err)
	}
	return nil
}

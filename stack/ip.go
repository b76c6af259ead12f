package stack

import (
	"log/slog"
	"net/netip"

	"github.com/ustack-dev/ustack"
	"github.com/ustack-dev/ustack/ethernet"
	"github.com/ustack-dev/ustack/ipv4"
)

// ipIDFirst seeds the per-packet identification counter.
const ipIDFirst = 128

// IPProtocolHandler consumes the payload of a validated IPv4 datagram on the
// dispatcher goroutine. hdr is the datagram's header, kept so handlers can
// quote it back in ICMP errors.
type IPProtocolHandler func(hdr, payload []byte, src, dst netip.Addr, iface *Interface)

type ipProtocol struct {
	name    string
	typ     ustack.IPProto
	handler IPProtocolHandler
}

// RegisterIPProtocol registers an upper-layer protocol keyed by the IPv4
// protocol byte. Types are unique. Must be called before Run.
func (s *Stack) RegisterIPProtocol(name string, typ ustack.IPProto, handler IPProtocolHandler) error {
	if s.running {
		return ErrStackRunning
	}
	for _, p := range s.ipProtos {
		if p.typ == typ {
			return errDuplicate("ip protocol", p.name)
		}
	}
	s.ipProtos = append(s.ipProtos, &ipProtocol{name: name, typ: typ, handler: handler})
	s.info("ip protocol registered", slog.String("name", name), slog.String("type", typ.String()))
	return nil
}

// generateID returns the next 16-bit datagram identification value. The
// counter starts at 128 and wraps naturally.
func (s *Stack) generateID() uint16 {
	s.idMu.Lock()
	id := s.ipID
	s.ipID++
	s.idMu.Unlock()
	return id
}

// ipInput validates a received IPv4 datagram and demultiplexes it to the
// registered upper-layer handler. Every violation drops the packet silently;
// the drop counters are the only trace.
func (s *Stack) ipInput(data []byte, dev *Device) {
	if len(data) < ipv4.SizeHeader {
		countDrop("ip", "short")
		return
	}
	iface := dev.InterfaceIP()
	if iface == nil {
		countDrop("ip", "no-interface")
		return
	}
	ifrm, _ := ipv4.NewFrame(data)
	version, _ := ifrm.VersionAndIHL()
	if version != 4 {
		countDrop("ip", "bad-version")
		return
	}
	hlen := ifrm.HeaderLength()
	if hlen < ipv4.SizeHeader || hlen > len(data) {
		countDrop("ip", "bad-ihl")
		return
	}
	total := int(ifrm.TotalLength())
	if total < hlen || total > len(data) {
		countDrop("ip", "bad-total-length")
		return
	}
	if ustack.Checksum(data[:hlen]) != 0 {
		countDrop("ip", "bad-checksum")
		s.debug("ip drop", slog.Any("err", ustack.ErrBadCRC))
		return
	}
	flags := ifrm.Flags()
	if flags.MoreFragments() || flags.FragmentOffset() != 0 {
		// Reassembly is not supported; fragments are rejected outright.
		countDrop("ip", "fragment")
		return
	}
	dst := netip.AddrFrom4(*ifrm.DestinationAddr())
	if dst != iface.unicast && dst != iface.broadcast && dst != AddrBroadcast {
		countDrop("ip", "not-for-us")
		return
	}
	src := netip.AddrFrom4(*ifrm.SourceAddr())
	s.debug("ip input", slog.String("dev", dev.name), slog.String("proto", ifrm.Protocol().String()),
		slog.String("src", src.String()), slog.String("dst", dst.String()), slog.Int("len", total))
	for _, p := range s.ipProtos {
		if p.typ == ifrm.Protocol() {
			p.handler(data[:hlen], data[hlen:total], src, dst, iface)
			return
		}
	}
	countDrop("ip", "unknown-protocol")
}

// SendIP routes, builds and transmits an IPv4 datagram carrying payload.
// src may be AddrAny to let the route's interface supply the source. Returns
// the payload length consumed on success.
func (s *Stack) SendIP(proto ustack.IPProto, payload []byte, src, dst netip.Addr) (int, error) {
	if !dst.IsValid() || dst == AddrAny {
		return 0, ustack.ErrZeroDestination
	}
	var iface *Interface
	nexthop := dst
	if dst == AddrBroadcast {
		// Limited broadcast never crosses a router: the source names the
		// outgoing interface and the next hop stays the broadcast address.
		if src == AddrAny {
			return 0, ErrSourceRequired
		}
		iface = s.interfaceByAddr(src)
		if iface == nil {
			return 0, ErrSourceMismatch
		}
	} else {
		r := s.lookupRoute(addr32(dst))
		if r == nil {
			return 0, ErrNoRoute
		}
		iface = r.iface
		if src != AddrAny && src != iface.unicast {
			return 0, ErrSourceMismatch
		}
		if r.nexthop != 0 {
			nexthop = addrFrom32(r.nexthop)
		}
	}
	if ipv4.SizeHeader+len(payload) > iface.dev.mtu {
		return 0, ErrPacketTooLarge
	}
	total := ipv4.SizeHeader + len(payload)
	buf := make([]byte, total)
	ifrm, _ := ipv4.NewFrame(buf)
	ifrm.SetVersionAndIHL(4, ipv4.SizeHeader/4)
	ifrm.SetToS(0)
	ifrm.SetTotalLength(uint16(total))
	ifrm.SetID(s.generateID())
	ifrm.SetFlags(0)
	ifrm.SetTTL(ipv4.TTLDefault)
	ifrm.SetProtocol(proto)
	*ifrm.SourceAddr() = iface.unicast.As4()
	*ifrm.DestinationAddr() = dst.As4()
	ifrm.SetCRC(ifrm.CalculateHeaderCRC())
	copy(buf[ipv4.SizeHeader:], payload)
	s.debug("ip output", slog.String("dev", iface.dev.name), slog.String("proto", proto.String()),
		slog.String("dst", dst.String()), slog.Int("len", total))
	if err := s.ipOutputDevice(iface, buf, nexthop); err != nil {
		return 0, err
	}
	return len(payload), nil
}

// ipOutputDevice resolves the link-layer destination and hands the packet to
// the device. When resolution is in progress the packet is dropped, not
// queued: the resolver has already emitted a request and the error tells the
// caller to retry.
func (s *Stack) ipOutputDevice(iface *Interface, packet []byte, dst netip.Addr) error {
	var hw [6]byte
	dev := iface.dev
	if dev.flags&FlagNeedARP != 0 {
		if dst == iface.broadcast || dst == AddrBroadcast {
			hw = dev.bcast
		} else {
			var status ARPStatus
			hw, status = s.arpResolve(iface, dst)
			switch status {
			case ARPIncomplete:
				countDrop("ip", "arp-incomplete")
				return ErrARPIncomplete
			case ARPError:
				return ErrARPFailed
			}
		}
	}
	return dev.Output(ethernet.TypeIPv4, packet, hw)
}

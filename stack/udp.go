package stack

import (
	"log/slog"
	"net/netip"
	"sync"

	"github.com/ustack-dev/ustack"
	"github.com/ustack-dev/ustack/icmpv4"
	"github.com/ustack-dev/ustack/udp"
)

const (
	udpPCBCount = 16

	// Local ports assigned when sendto runs on an unbound endpoint.
	ephemeralPortMin = 49152
	ephemeralPortMax = 65535

	// Per-endpoint receive queue bound; the newest datagram is dropped on
	// overflow.
	maxRecvQueueLen = 64
)

type udpDatagram struct {
	remote  Endpoint
	payload []byte
}

// udpPCB is the per-socket control block at the UDP layer. All PCB state is
// guarded by the pool mutex; the condition variable releases readers blocked
// in recvfrom.
type udpPCB struct {
	used        bool
	local       Endpoint
	queue       []udpDatagram
	cond        *sync.Cond
	interrupted bool
}

func (s *Stack) udpPCBGet(idx int) *udpPCB {
	if idx < 0 || idx >= udpPCBCount || !s.udpPCBs[idx].used {
		return nil
	}
	return &s.udpPCBs[idx]
}

// udpChecksum computes the datagram checksum over the IPv4 pseudo-header
// (src, dst, zero, protocol, UDP length) followed by the datagram with a zero
// checksum field.
func udpChecksum(src, dst netip.Addr, ufrm udp.Frame) uint16 {
	var crc ustack.CRC791
	srcb, dstb := src.As4(), dst.As4()
	crc.Write(srcb[:])
	crc.Write(dstb[:])
	crc.AddUint16(uint16(ustack.IPProtoUDP))
	ufrm.CRCWriteIPv4(&crc)
	return crc.Sum16()
}

// udpInput delivers a validated datagram to the endpoint bound to the
// destination. When no endpoint is listening on a unicast destination, a port
// unreachable message is returned to the sender. Runs on the dispatcher.
func (s *Stack) udpInput(hdr, payload []byte, src, dst netip.Addr, iface *Interface) {
	ufrm, err := udp.NewFrame(payload)
	if err != nil {
		countDrop("udp", "short")
		return
	}
	var vld ustack.Validator
	ufrm.ValidateSize(&vld)
	if vld.HasError() {
		countDrop("udp", "bad-length")
		s.debug("udp drop", slog.Any("err", vld.Err()))
		return
	}
	// A received checksum of zero means the sender did not compute one.
	if ufrm.CRC() != 0 {
		want := ustack.NeverZeroChecksum(udpChecksum(src, dst, ufrm))
		if want != ufrm.CRC() {
			countDrop("udp", "bad-checksum")
			s.debug("udp drop", slog.Any("err", ustack.ErrBadCRC))
			return
		}
	}
	remote := Endpoint{Addr: src, Port: ufrm.SourcePort()}
	dstPort := ufrm.DestinationPort()
	s.debug("udp input", slog.String("src", remote.String()),
		slog.String("dst", Endpoint{Addr: dst, Port: dstPort}.String()),
		slog.Int("len", len(ufrm.Payload())))

	// The pool lock is released before any transmit below.
	s.udpMu.Lock()
	for i := range s.udpPCBs {
		pcb := &s.udpPCBs[i]
		if !pcb.used || pcb.local.Port != dstPort {
			continue
		}
		if pcb.local.Addr != AddrAny && pcb.local.Addr != dst {
			continue
		}
		if len(pcb.queue) >= maxRecvQueueLen {
			s.udpMu.Unlock()
			countDrop("udp", "recv-queue-full")
			return
		}
		pcb.queue = append(pcb.queue, udpDatagram{
			remote:  remote,
			payload: append([]byte(nil), ufrm.Payload()...),
		})
		pcb.cond.Signal()
		s.udpMu.Unlock()
		return
	}
	s.udpMu.Unlock()
	countDrop("udp", "no-endpoint")
	// Unreachable messages are never sent in response to broadcasts.
	if dst == iface.unicast {
		s.icmpDestUnreachable(icmpv4.CodePortUnreachable, hdr, payload, src, iface)
	}
}

// UDPOpen allocates a free endpoint and returns its index.
func (s *Stack) UDPOpen() (int, error) {
	s.udpMu.Lock()
	defer s.udpMu.Unlock()
	for i := range s.udpPCBs {
		if !s.udpPCBs[i].used {
			s.udpPCBs[i].used = true
			s.udpPCBs[i].local = Endpoint{Addr: AddrAny}
			s.udpPCBs[i].interrupted = false
			return i, nil
		}
	}
	return -1, ErrExhausted
}

// udpEndpointTaken reports whether local overlaps an existing binding. Must
// be called with udpMu held. self is skipped.
func (s *Stack) udpEndpointTaken(local Endpoint, self int) bool {
	for i := range s.udpPCBs {
		pcb := &s.udpPCBs[i]
		if i == self || !pcb.used || pcb.local.Port != local.Port {
			continue
		}
		if pcb.local.Addr == AddrAny || local.Addr == AddrAny || pcb.local.Addr == local.Addr {
			return true
		}
	}
	return false
}

// UDPBind sets the endpoint's local address and port. Binding an endpoint
// that overlaps an existing one fails.
func (s *Stack) UDPBind(idx int, local Endpoint) error {
	if !local.Addr.IsValid() {
		local.Addr = AddrAny
	}
	s.udpMu.Lock()
	defer s.udpMu.Unlock()
	pcb := s.udpPCBGet(idx)
	if pcb == nil {
		return ErrBadDescriptor
	}
	if s.udpEndpointTaken(local, idx) {
		return ErrAddrInUse
	}
	pcb.local = local
	s.debug("udp bind", slog.Int("pcb", idx), slog.String("local", local.String()))
	return nil
}

// udpSelectLocal fixes the source endpoint for an outgoing datagram,
// selecting a source interface via route lookup and an ephemeral port as
// needed. Must be called with udpMu held.
func (s *Stack) udpSelectLocal(pcb *udpPCB, idx int, remote Endpoint) (Endpoint, error) {
	local := pcb.local
	if local.Addr == AddrAny {
		r := s.lookupRoute(addr32(remote.Addr))
		if r == nil {
			return Endpoint{}, ErrNoRoute
		}
		local.Addr = r.iface.unicast
	}
	if local.Port == 0 {
		for port := ephemeralPortMin; port <= ephemeralPortMax; port++ {
			candidate := Endpoint{Addr: local.Addr, Port: uint16(port)}
			if !s.udpEndpointTaken(candidate, idx) {
				local.Port = uint16(port)
				break
			}
		}
		if local.Port == 0 {
			return Endpoint{}, ErrExhausted
		}
	}
	pcb.local = local
	return local, nil
}

// UDPSendTo transmits payload to the remote endpoint. An unbound endpoint is
// assigned a source address by route lookup and an ephemeral port.
func (s *Stack) UDPSendTo(idx int, payload []byte, remote Endpoint) (int, error) {
	s.udpMu.Lock()
	pcb := s.udpPCBGet(idx)
	if pcb == nil {
		s.udpMu.Unlock()
		return 0, ErrBadDescriptor
	}
	local, err := s.udpSelectLocal(pcb, idx, remote)
	s.udpMu.Unlock()
	if err != nil {
		return 0, err
	}
	return s.udpOutput(local, remote, payload)
}

// udpOutput builds a datagram with a pseudo-header checksum and hands it to
// the IP layer.
func (s *Stack) udpOutput(local, remote Endpoint, payload []byte) (int, error) {
	buf := make([]byte, udp.SizeHeader+len(payload))
	ufrm, _ := udp.NewFrame(buf)
	ufrm.SetSourcePort(local.Port)
	ufrm.SetDestinationPort(remote.Port)
	ufrm.SetLength(uint16(len(buf)))
	copy(buf[udp.SizeHeader:], payload)
	ufrm.SetCRC(ustack.NeverZeroChecksum(udpChecksum(local.Addr, remote.Addr, ufrm)))
	s.debug("udp output", slog.String("src", local.String()), slog.String("dst", remote.String()),
		slog.Int("len", len(payload)))
	if _, err := s.SendIP(ustack.IPProtoUDP, buf, local.Addr, remote.Addr); err != nil {
		return 0, err
	}
	return len(payload), nil
}

// UDPRecvFrom pops the next datagram from the endpoint's receive queue into
// buf, blocking while the queue is empty. A datagram longer than buf is
// truncated and the remainder discarded, following BSD recvfrom semantics.
func (s *Stack) UDPRecvFrom(idx int, buf []byte) (int, Endpoint, error) {
	s.udpMu.Lock()
	defer s.udpMu.Unlock()
	pcb := s.udpPCBGet(idx)
	if pcb == nil {
		return 0, Endpoint{}, ErrBadDescriptor
	}
	for len(pcb.queue) == 0 {
		if pcb.interrupted {
			pcb.interrupted = false
			return 0, Endpoint{}, ErrInterrupted
		}
		pcb.cond.Wait()
		if !pcb.used {
			return 0, Endpoint{}, ErrClosed
		}
	}
	dgram := pcb.queue[0]
	pcb.queue = pcb.queue[1:]
	n := copy(buf, dgram.payload)
	return n, dgram.remote, nil
}

// UDPClose releases the endpoint, draining its receive queue. Blocked readers
// are woken and observe the closed endpoint.
func (s *Stack) UDPClose(idx int) error {
	s.udpMu.Lock()
	defer s.udpMu.Unlock()
	pcb := s.udpPCBGet(idx)
	if pcb == nil {
		return ErrBadDescriptor
	}
	pcb.used = false
	pcb.local = Endpoint{}
	pcb.queue = nil
	pcb.cond.Broadcast()
	return nil
}

// udpInterruptAll releases every blocked reader with an interrupted status.
// Subscribed as the terminate event handler.
func (s *Stack) udpInterruptAll() {
	s.udpMu.Lock()
	defer s.udpMu.Unlock()
	for i := range s.udpPCBs {
		pcb := &s.udpPCBs[i]
		if pcb.used {
			pcb.interrupted = true
			pcb.cond.Broadcast()
		}
	}
}

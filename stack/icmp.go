package stack

import (
	"log/slog"
	"net/netip"

	"github.com/ustack-dev/ustack"
	"github.com/ustack-dev/ustack/icmpv4"
)

// icmpInput validates a received ICMP message and answers echo requests.
// Other message types are accepted and ignored.
func (s *Stack) icmpInput(hdr, payload []byte, src, dst netip.Addr, iface *Interface) {
	frm, err := icmpv4.NewFrame(payload)
	if err != nil {
		countDrop("icmp", "short")
		return
	}
	if frm.CalculateCRC() != frm.CRC() {
		countDrop("icmp", "bad-checksum")
		s.debug("icmp drop", slog.Any("err", ustack.ErrBadCRC))
		return
	}
	s.debug("icmp input", slog.Int("type", int(frm.Type())), slog.String("src", src.String()))
	switch frm.Type() {
	case icmpv4.TypeEcho:
		// Mirror the message back, swapping only the type. Identifier,
		// sequence number and payload are preserved.
		reply := append([]byte(nil), payload...)
		rfrm, _ := icmpv4.NewFrame(reply)
		rfrm.SetType(icmpv4.TypeEchoReply)
		rfrm.SetCRC(0)
		rfrm.SetCRC(rfrm.CalculateCRC())
		// Replies to a broadcast ping leave from the interface unicast.
		if _, err := s.SendIP(ustack.IPProtoICMP, reply, iface.unicast, src); err != nil {
			s.error("icmp echo reply", slog.String("err", err.Error()))
		}
	default:
	}
}

// icmpDestUnreachable sends a destination unreachable message for the
// datagram (hdr, payload) back to its source, quoting the IP header and the
// first eight payload bytes as RFC 792 requires.
func (s *Stack) icmpDestUnreachable(code icmpv4.CodeDestinationUnreachable, hdr, payload []byte, src netip.Addr, iface *Interface) {
	quote := len(payload)
	if quote > 8 {
		quote = 8
	}
	buf := make([]byte, icmpv4.SizeHeader+len(hdr)+quote)
	frm, err := icmpv4.NewFrame(buf)
	if err != nil {
		return
	}
	frm.SetType(icmpv4.TypeDestinationUnreachable)
	du := icmpv4.FrameDestinationUnreachable{Frame: frm}
	du.SetCode(code)
	copy(frm.Payload(), hdr)
	copy(frm.Payload()[len(hdr):], payload[:quote])
	frm.SetCRC(frm.CalculateCRC())
	s.debug("icmp dest unreachable", slog.Int("code", int(code)), slog.String("dst", src.String()))
	if _, err := s.SendIP(ustack.IPProtoICMP, buf, iface.unicast, src); err != nil {
		s.debug("icmp dest unreachable dropped", slog.String("err", err.Error()))
	}
}

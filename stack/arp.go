package stack

import (
	"log/slog"
	"net"
	"net/netip"
	"time"

	"github.com/ustack-dev/ustack"
	"github.com/ustack-dev/ustack/arp"
	"github.com/ustack-dev/ustack/ethernet"
)

const (
	arpCacheSize = 32
	arpTimeout   = 30 * time.Second
)

// ARPStatus is the outcome of a resolve call.
type ARPStatus uint8

const (
	// ARPError: the interface cannot resolve link addresses.
	ARPError ARPStatus = iota
	// ARPIncomplete: no mapping yet; a request has been broadcast and the
	// caller should drop the triggering packet and retry later.
	ARPIncomplete
	// ARPFound: the hardware address was returned.
	ARPFound
)

type arpState uint8

const (
	arpFree arpState = iota
	arpIncomplete
	arpResolved
	arpStatic
)

type arpEntry struct {
	state arpState
	pa    netip.Addr
	ha    [6]byte
	at    time.Time
}

// Cache helpers must be called with arpMu held.

func (s *Stack) arpCacheSelect(pa netip.Addr) *arpEntry {
	for i := range s.arpCache {
		e := &s.arpCache[i]
		if e.state != arpFree && e.pa == pa {
			return e
		}
	}
	return nil
}

// arpCacheAlloc returns the first free slot, or the oldest entry by timestamp
// when the cache is full.
func (s *Stack) arpCacheAlloc() *arpEntry {
	var oldest *arpEntry
	for i := range s.arpCache {
		e := &s.arpCache[i]
		if e.state == arpFree {
			return e
		}
		if oldest == nil || e.at.Before(oldest.at) {
			oldest = e
		}
	}
	return oldest
}

// arpCacheUpdate refreshes an existing mapping. Returns false when pa is not
// cached.
func (s *Stack) arpCacheUpdate(pa netip.Addr, ha [6]byte) bool {
	e := s.arpCacheSelect(pa)
	if e == nil {
		return false
	}
	e.state = arpResolved
	e.ha = ha
	e.at = s.clock.Now()
	s.debug("arp cache update", slog.String("pa", pa.String()),
		slog.String("ha", net.HardwareAddr(ha[:]).String()))
	return true
}

func (s *Stack) arpCacheInsert(pa netip.Addr, ha [6]byte, state arpState) {
	e := s.arpCacheAlloc()
	e.state = state
	e.pa = pa
	e.ha = ha
	e.at = s.clock.Now()
	s.debug("arp cache insert", slog.String("pa", pa.String()),
		slog.String("ha", net.HardwareAddr(ha[:]).String()))
}

func (s *Stack) arpCacheDelete(e *arpEntry) {
	s.debug("arp cache delete", slog.String("pa", e.pa.String()),
		slog.String("ha", net.HardwareAddr(e.ha[:]).String()))
	*e = arpEntry{}
}

// AddStaticARP installs a permanent mapping that the aging timer never
// reclaims.
func (s *Stack) AddStaticARP(pa netip.Addr, ha [6]byte) {
	s.arpMu.Lock()
	defer s.arpMu.Unlock()
	if !s.arpCacheUpdate(pa, ha) {
		s.arpCacheInsert(pa, ha, arpStatic)
		return
	}
	s.arpCacheSelect(pa).state = arpStatic
}

// arpResolve maps target onto a hardware address using the cache. On a cold
// miss it claims a slot in INCOMPLETE state and broadcasts a request; while a
// request is in flight it re-broadcasts (loss recovery) and reports
// INCOMPLETE. The cache mutex is released before any transmit.
func (s *Stack) arpResolve(iface *Interface, target netip.Addr) (ha [6]byte, status ARPStatus) {
	if iface.dev == nil || iface.dev.typ != DeviceEthernet {
		return ha, ARPError
	}
	s.arpMu.Lock()
	e := s.arpCacheSelect(target)
	if e == nil {
		slot := s.arpCacheAlloc()
		*slot = arpEntry{state: arpIncomplete, pa: target, at: s.clock.Now()}
		s.arpMu.Unlock()
		s.debug("arp cache miss", slog.String("pa", target.String()))
		s.arpRequest(iface, target)
		return ha, ARPIncomplete
	}
	if e.state == arpIncomplete {
		s.arpMu.Unlock()
		// Re-broadcast in case the earlier request was lost.
		s.arpRequest(iface, target)
		return ha, ARPIncomplete
	}
	ha = e.ha
	s.arpMu.Unlock()
	return ha, ARPFound
}

func (s *Stack) arpFill(afrm arp.Frame, op arp.Operation, iface *Interface) {
	afrm.SetHardware(arp.HardwareEthernet, ethernet.SizeAddr)
	afrm.SetProtocol(ethernet.TypeIPv4, 4)
	afrm.SetOperation(op)
	sha, spa := afrm.Sender4()
	*sha = iface.dev.hwaddr
	*spa = iface.unicast.As4()
}

// arpRequest broadcasts a who-has for target on iface's device.
func (s *Stack) arpRequest(iface *Interface, target netip.Addr) error {
	var buf [arp.SizeFrame4]byte
	afrm, _ := arp.NewFrame(buf[:])
	s.arpFill(afrm, arp.OpRequest, iface)
	tha, tpa := afrm.Target4()
	*tha = [6]byte{}
	*tpa = target.As4()
	s.debug("arp request", slog.String("dev", iface.dev.name), slog.String("tpa", target.String()))
	metricARPRequests.Inc()
	return iface.dev.Output(ethernet.TypeARP, buf[:], iface.dev.bcast)
}

// arpReply answers a request. The reply is unicast to the requester's
// hardware address rather than broadcast.
func (s *Stack) arpReply(iface *Interface, tha [6]byte, tpa netip.Addr, dst [6]byte) error {
	var buf [arp.SizeFrame4]byte
	afrm, _ := arp.NewFrame(buf[:])
	s.arpFill(afrm, arp.OpReply, iface)
	hw, pa := afrm.Target4()
	*hw = tha
	*pa = tpa.As4()
	s.debug("arp reply", slog.String("dev", iface.dev.name), slog.String("tpa", tpa.String()))
	metricARPReplies.Inc()
	return iface.dev.Output(ethernet.TypeARP, buf[:], dst)
}

// arpInput handles a received ARP packet: merge the sender mapping if already
// cached, and if we are the target, learn the mapping and answer requests.
func (s *Stack) arpInput(data []byte, dev *Device) {
	afrm, err := arp.NewFrame(data)
	if err != nil {
		countDrop("arp", "short")
		return
	}
	var vld ustack.Validator
	afrm.ValidateSize(&vld)
	if vld.HasError() {
		countDrop("arp", "short")
		return
	}
	hrd, hln := afrm.Hardware()
	if hrd != arp.HardwareEthernet || hln != ethernet.SizeAddr {
		countDrop("arp", "bad-hardware")
		return
	}
	pro, pln := afrm.Protocol()
	if pro != ethernet.TypeIPv4 || pln != 4 {
		countDrop("arp", "bad-protocol")
		return
	}
	sha, spaRaw := afrm.Sender4()
	_, tpaRaw := afrm.Target4()
	spa := netip.AddrFrom4(*spaRaw)
	tpa := netip.AddrFrom4(*tpaRaw)
	s.debug("arp input", slog.String("dev", dev.name), slog.String("op", afrm.Operation().String()),
		slog.String("spa", spa.String()), slog.String("tpa", tpa.String()))

	s.arpMu.Lock()
	merged := s.arpCacheUpdate(spa, *sha)
	s.arpMu.Unlock()

	iface := dev.InterfaceIP()
	if iface == nil || iface.unicast != tpa {
		return
	}
	if !merged {
		s.arpMu.Lock()
		s.arpCacheInsert(spa, *sha, arpResolved)
		s.arpMu.Unlock()
	}
	if afrm.Operation() == arp.OpRequest {
		if err := s.arpReply(iface, *sha, spa, *sha); err != nil {
			s.error("arp reply", slog.String("err", err.Error()))
		}
	}
}

// arpTimer reclaims non-static entries older than the cache timeout. Runs on
// the dispatcher every second.
func (s *Stack) arpTimer() {
	s.arpMu.Lock()
	defer s.arpMu.Unlock()
	now := s.clock.Now()
	for i := range s.arpCache {
		e := &s.arpCache[i]
		if e.state == arpFree || e.state == arpStatic {
			continue
		}
		if now.Sub(e.at) > arpTimeout {
			s.arpCacheDelete(e)
			metricARPEvictions.Inc()
		}
	}
}

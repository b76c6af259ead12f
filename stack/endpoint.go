package stack

import (
	"encoding/binary"
	"fmt"
	"net/netip"
	"strconv"
)

// AddrAny is the IPv4 wildcard address 0.0.0.0.
var AddrAny = netip.AddrFrom4([4]byte{})

// AddrBroadcast is the IPv4 limited broadcast address 255.255.255.255.
var AddrBroadcast = netip.AddrFrom4([4]byte{255, 255, 255, 255})

// Endpoint is an IPv4 address and port pair identifying one side of a UDP
// flow. The port is kept in host byte order.
type Endpoint struct {
	Addr netip.Addr
	Port uint16
}

// ParseAddr parses a dotted-quad IPv4 address A.B.C.D.
func ParseAddr(s string) (netip.Addr, error) {
	addr, err := netip.ParseAddr(s)
	if err != nil {
		return netip.Addr{}, err
	}
	if !addr.Is4() {
		return netip.Addr{}, fmt.Errorf("not an IPv4 address: %q", s)
	}
	return addr, nil
}

// ParseEndpoint parses an endpoint of the form A.B.C.D:port with port in
// decimal between 1 and 65535.
func ParseEndpoint(s string) (Endpoint, error) {
	ap, err := netip.ParseAddrPort(s)
	if err != nil {
		return Endpoint{}, err
	}
	if !ap.Addr().Is4() {
		return Endpoint{}, fmt.Errorf("not an IPv4 endpoint: %q", s)
	}
	if ap.Port() == 0 {
		return Endpoint{}, fmt.Errorf("invalid port in %q", s)
	}
	return Endpoint{Addr: ap.Addr(), Port: ap.Port()}, nil
}

func (e Endpoint) String() string {
	return e.Addr.String() + ":" + strconv.Itoa(int(e.Port))
}

// addr32 returns the address as a host-order uint32 for mask arithmetic.
func addr32(a netip.Addr) uint32 {
	b := a.As4()
	return binary.BigEndian.Uint32(b[:])
}

func addrFrom32(u uint32) netip.Addr {
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], u)
	return netip.AddrFrom4(b)
}

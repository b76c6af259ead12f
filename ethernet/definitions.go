package ethernet

import "strconv"

// Type is the EtherType field of an Ethernet II frame, naming the protocol
// carried in the payload.
type Type uint16

// EtherTypes the stack recognizes. Values at or below 1500 are 802.3 payload
// sizes rather than EtherTypes.
const (
	TypeIPv4 Type = 0x0800 // IPv4
	TypeARP  Type = 0x0806 // ARP
	TypeIPv6 Type = 0x86DD // IPv6
	TypeVLAN Type = 0x8100 // VLAN
)

// IsSize returns true if the value is actually the size of the payload and
// should NOT be interpreted as an EtherType.
func (t Type) IsSize() bool { return t <= 1500 }

func (t Type) String() string {
	switch t {
	case TypeIPv4:
		return "IPv4"
	case TypeARP:
		return "ARP"
	case TypeIPv6:
		return "IPv6"
	case TypeVLAN:
		return "VLAN"
	}
	if t.IsSize() {
		return "size=" + strconv.Itoa(int(t))
	}
	return "0x" + strconv.FormatUint(uint64(t), 16)
}

// Frame geometry for Ethernet II.
const (
	SizeHeader   = 14   // destination + source + EtherType
	SizeAddr     = 6    // hardware (MAC) address length
	MinFrameSize = 60   // transmit frames are zero-padded up to this size
	MaxFrameSize = 1514 // header plus the standard 1500-byte MTU
)

// BroadcastAddr returns the Ethernet broadcast hardware address
// ff:ff:ff:ff:ff:ff.
func BroadcastAddr() [6]byte {
	return [6]byte{0xff, 0xff, 0xff, 0xff, 0xff, 0xff}
}

package ipv4

// Flags holds the flag bits and fragment offset field of an IPv4 header.
type Flags uint16

// DontFragment specifies that the datagram must not be fragmented. If set and
// fragmentation is required to route the packet, the packet is dropped.
func (f Flags) DontFragment() bool { return f&0x4000 != 0 }

// MoreFragments is cleared for unfragmented packets. For fragmented packets
// all fragments except the last have the MF flag set.
func (f Flags) MoreFragments() bool { return f&0x2000 != 0 }

// FragmentOffset specifies the offset of a fragment relative to the beginning
// of the original unfragmented datagram, in units of 8 bytes.
func (f Flags) FragmentOffset() uint16 { return uint16(f) & 0x1fff }

// SizeHeader is the size of an IPv4 header without options.
const SizeHeader = 20

// TTLDefault is the time-to-live the stack writes into outgoing datagrams.
const TTLDefault = 255

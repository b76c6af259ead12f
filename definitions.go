// Package ustack holds wire-format utilities shared by the protocol packages
// of the stack: the RFC 791 checksum accumulator, frame validation helpers and
// IP protocol numbers.
package ustack

import "strconv"

// IPProto represents the IP protocol number carried in the IPv4 header's
// protocol field.
type IPProto uint8

// IP protocol numbers handled or recognized by the stack.
const (
	IPProtoICMP IPProto = 1  // Internet Control Message [RFC792]
	IPProtoIGMP IPProto = 2  // Internet Group Management [RFC1112]
	IPProtoTCP  IPProto = 6  // Transmission Control [RFC793]
	IPProtoUDP  IPProto = 17 // User Datagram [RFC768]
)

func (p IPProto) String() string {
	switch p {
	case IPProtoICMP:
		return "ICMP"
	case IPProtoIGMP:
		return "IGMP"
	case IPProtoTCP:
		return "TCP"
	case IPProtoUDP:
		return "UDP"
	}
	return "0x" + strconv.FormatUint(uint64(p), 16)
}

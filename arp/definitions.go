package arp

import "strconv"

// Operation is the ARP header op field.
type Operation uint16

const (
	OpRequest Operation = 1 // request
	OpReply   Operation = 2 // reply
)

func (op Operation) String() string {
	switch op {
	case OpRequest:
		return "request"
	case OpReply:
		return "reply"
	}
	return "op=" + strconv.Itoa(int(op))
}

// HardwareEthernet is the ARP hardware type for Ethernet.
// See the [IANA ARP parameters].
//
// [IANA ARP parameters]: https://www.iana.org/assignments/arp-parameters/arp-parameters.txt
const HardwareEthernet uint16 = 1

const (
	sizeHeader = 8 // hrd, pro, hln, pln, op

	// SizeFrame4 is the size of an Ethernet/IPv4 ARP packet: the fixed header
	// followed by two 6-byte hardware and two 4-byte protocol addresses.
	SizeFrame4 = sizeHeader + 2*6 + 2*4
)

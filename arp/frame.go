package arp

import (
	"encoding/binary"
	"errors"
	"fmt"
	"net"
	"net/netip"

	"github.com/ustack-dev/ustack"
	"github.com/ustack-dev/ustack/ethernet"
)

var errShortARP = errors.New("arp: packet too short")

// NewFrame returns a Frame with data set to buf.
// An error is returned if the buffer is smaller than 28 (Ethernet/IPv4 form).
func NewFrame(buf []byte) (Frame, error) {
	if len(buf) < SizeFrame4 {
		return Frame{buf: nil}, errShortARP
	}
	return Frame{buf: buf}, nil
}

// Frame encapsulates the raw data of an Ethernet/IPv4 ARP packet and provides
// methods for manipulating, validating and retrieving fields. See [RFC826].
//
// [RFC826]: https://tools.ietf.org/html/rfc826
type Frame struct {
	buf []byte
}

// RawData returns the underlying slice with which the frame was created.
func (afrm Frame) RawData() []byte { return afrm.buf }

// Hardware returns the network link protocol type and address length.
// Ethernet is type 1, length 6.
func (afrm Frame) Hardware() (Type uint16, length uint8) {
	return binary.BigEndian.Uint16(afrm.buf[0:2]), afrm.buf[4]
}

// SetHardware sets the network link protocol type and address length.
func (afrm Frame) SetHardware(Type uint16, length uint8) {
	binary.BigEndian.PutUint16(afrm.buf[0:2], Type)
	afrm.buf[4] = length
}

// Protocol returns the internet protocol type and address length.
// IPv4 uses the EtherType 0x0800, length 4.
func (afrm Frame) Protocol() (Type ethernet.Type, length uint8) {
	return ethernet.Type(binary.BigEndian.Uint16(afrm.buf[2:4])), afrm.buf[5]
}

// SetProtocol sets the protocol type and address length fields. See [Frame.Protocol].
func (afrm Frame) SetProtocol(Type ethernet.Type, length uint8) {
	binary.BigEndian.PutUint16(afrm.buf[2:4], uint16(Type))
	afrm.buf[5] = length
}

// Operation returns the ARP header operation field. See [Operation].
func (afrm Frame) Operation() Operation {
	return Operation(binary.BigEndian.Uint16(afrm.buf[6:8]))
}

// SetOperation sets the ARP header operation field. See [Operation].
func (afrm Frame) SetOperation(op Operation) {
	binary.BigEndian.PutUint16(afrm.buf[6:8], uint16(op))
}

// Sender4 returns the sender hardware and IPv4 protocol addresses. In a
// request the hardware address is that of the host asking; in a reply it is
// the address the request was looking for.
func (afrm Frame) Sender4() (hardwareAddr *[6]byte, proto *[4]byte) {
	return (*[6]byte)(afrm.buf[8:14]), (*[4]byte)(afrm.buf[14:18])
}

// Target4 returns the target hardware and IPv4 protocol addresses. In a
// request the hardware address is ignored; in a reply it addresses the host
// that originated the request.
func (afrm Frame) Target4() (hardwareAddr *[6]byte, proto *[4]byte) {
	return (*[6]byte)(afrm.buf[18:24]), (*[4]byte)(afrm.buf[24:28])
}

// ClearHeader zeros out the fixed header contents.
func (afrm Frame) ClearHeader() {
	for i := range afrm.buf[:sizeHeader] {
		afrm.buf[i] = 0
	}
}

// ValidateSize checks the frame's address length fields against the actual
// buffer and adds an error to v on finding an inconsistency.
func (afrm Frame) ValidateSize(v *ustack.Validator) {
	_, hlen := afrm.Hardware()
	_, plen := afrm.Protocol()
	minLen := sizeHeader + 2*(int(hlen)+int(plen))
	if len(afrm.buf) < minLen {
		v.AddError(errShortARP)
	}
}

func (afrm Frame) String() string {
	sndhw, sndpt := afrm.Sender4()
	tgthw, tgtpt := afrm.Target4()
	return fmt.Sprintf("ARP %s SENDER=(%s,%s) TARGET=(%s,%s)",
		afrm.Operation().String(),
		net.HardwareAddr(sndhw[:]).String(), netip.AddrFrom4(*sndpt).String(),
		net.HardwareAddr(tgthw[:]).String(), netip.AddrFrom4(*tgtpt).String())
}

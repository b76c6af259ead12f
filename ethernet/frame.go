package ethernet

import (
	"encoding/binary"
	"errors"
	"fmt"
	"net"

	"github.com/ustack-dev/ustack"
)

var errShort = errors.New("ethernet: too short")

// NewFrame returns a Frame with data set to buf.
// An error is returned if the buffer size is smaller than 14.
func NewFrame(buf []byte) (Frame, error) {
	if len(buf) < SizeHeader {
		return Frame{buf: nil}, errShort
	}
	return Frame{buf: buf}, nil
}

// Frame encapsulates the raw data of an Ethernet II frame without preamble
// (first byte is start of destination address) and provides methods for
// manipulating, validating and retrieving fields and payload data.
// See [IEEE 802.3].
//
// [IEEE 802.3]: https://standards.ieee.org/ieee/802.3/7071/
type Frame struct {
	buf []byte
}

// RawData returns the underlying slice with which the frame was created.
func (efrm Frame) RawData() []byte { return efrm.buf }

// DestinationHardwareAddr returns the target's MAC/hardware address of the frame.
func (efrm Frame) DestinationHardwareAddr() (dst *[6]byte) {
	return (*[6]byte)(efrm.buf[0:6])
}

// SourceHardwareAddr returns the sender's MAC/hardware address of the frame.
func (efrm Frame) SourceHardwareAddr() (src *[6]byte) {
	return (*[6]byte)(efrm.buf[6:12])
}

// IsBroadcast returns true if the destination is the broadcast address
// ff:ff:ff:ff:ff:ff.
func (efrm Frame) IsBroadcast() bool {
	return *efrm.DestinationHardwareAddr() == BroadcastAddr()
}

// EtherTypeOrSize returns the EtherType/Size field of the frame. Caller should
// check whether the field is a valid EtherType or an 802.3 payload size with
// [Type.IsSize].
func (efrm Frame) EtherTypeOrSize() Type {
	return Type(binary.BigEndian.Uint16(efrm.buf[12:14]))
}

// SetEtherType sets the EtherType field of the frame. See [Type].
func (efrm Frame) SetEtherType(v Type) {
	binary.BigEndian.PutUint16(efrm.buf[12:14], uint16(v))
}

// Payload returns the data portion of the frame after the 14-byte header.
func (efrm Frame) Payload() []byte {
	return efrm.buf[SizeHeader:]
}

// ClearHeader zeros out the header contents.
func (efrm Frame) ClearHeader() {
	for i := range efrm.buf[:SizeHeader] {
		efrm.buf[i] = 0
	}
}

// ValidateSize checks the frame's size fields against the actual buffer and
// adds an error to v on finding an inconsistency.
func (efrm Frame) ValidateSize(v *ustack.Validator) {
	sz := efrm.EtherTypeOrSize()
	if sz.IsSize() && len(efrm.buf) < SizeHeader+int(sz) {
		v.AddError(errShort)
	}
}

func (efrm Frame) String() string {
	return fmt.Sprintf("ETH %s SRC=%s DST=%s",
		efrm.EtherTypeOrSize().String(),
		net.HardwareAddr(efrm.SourceHardwareAddr()[:]).String(),
		net.HardwareAddr(efrm.DestinationHardwareAddr()[:]).String())
}

package udp

import (
	"encoding/binary"
	"errors"

	"github.com/ustack-dev/ustack"
)

// SizeHeader is the size of the UDP datagram header.
const SizeHeader = 8

// NewFrame returns a Frame with data set to buf.
// An error is returned if the buffer size is smaller than 8.
// Users should still call [Frame.ValidateSize] before working
// with the payload of frames to avoid panics.
func NewFrame(buf []byte) (Frame, error) {
	if len(buf) < SizeHeader {
		return Frame{buf: buf}, errShort
	}
	return Frame{buf: buf}, nil
}

// Frame encapsulates the raw data of a UDP datagram and provides methods for
// manipulating, validating and retrieving fields and payload data. See [RFC768].
//
// [RFC768]: https://tools.ietf.org/html/rfc768
type Frame struct {
	buf []byte
}

// RawData returns the underlying slice with which the frame was created.
func (ufrm Frame) RawData() []byte { return ufrm.buf }

// SourcePort identifies the sending port of the datagram.
func (ufrm Frame) SourcePort() uint16 {
	return binary.BigEndian.Uint16(ufrm.buf[0:2])
}

// SetSourcePort sets the source port. See [Frame.SourcePort].
func (ufrm Frame) SetSourcePort(src uint16) {
	binary.BigEndian.PutUint16(ufrm.buf[0:2], src)
}

// DestinationPort identifies the receiving port of the datagram.
func (ufrm Frame) DestinationPort() uint16 {
	return binary.BigEndian.Uint16(ufrm.buf[2:4])
}

// SetDestinationPort sets the destination port. See [Frame.DestinationPort].
func (ufrm Frame) SetDestinationPort(dst uint16) {
	binary.BigEndian.PutUint16(ufrm.buf[2:4], dst)
}

// Length specifies the length in bytes of the UDP header plus payload. The
// minimum is 8. This field should match the IP header's total length minus
// the IP header size.
func (ufrm Frame) Length() uint16 {
	return binary.BigEndian.Uint16(ufrm.buf[4:6])
}

// SetLength sets the length field. See [Frame.Length].
func (ufrm Frame) SetLength(length uint16) {
	binary.BigEndian.PutUint16(ufrm.buf[4:6], length)
}

// CRC returns the checksum field of the datagram. A received zero means the
// sender did not compute a checksum.
func (ufrm Frame) CRC() uint16 {
	return binary.BigEndian.Uint16(ufrm.buf[6:8])
}

// SetCRC sets the checksum field. See [Frame.CRC].
func (ufrm Frame) SetCRC(checksum uint16) {
	binary.BigEndian.PutUint16(ufrm.buf[6:8], checksum)
}

// CRCWriteIPv4 writes the datagram to the running pseudo-header checksum,
// treating the checksum field as zero. The caller is expected to have written
// the IPv4 pseudo-header fields already; this adds the UDP length (the
// pseudo-header copy), ports, length and payload.
func (ufrm Frame) CRCWriteIPv4(crc *ustack.CRC791) {
	crc.AddUint16(ufrm.Length())
	crc.AddUint16(ufrm.SourcePort())
	crc.AddUint16(ufrm.DestinationPort())
	crc.AddUint16(ufrm.Length())
	crc.Write(ufrm.Payload())
}

// Payload returns the payload content section of the datagram.
// Be sure to call [Frame.ValidateSize] beforehand to avoid panics.
func (ufrm Frame) Payload() []byte {
	return ufrm.buf[SizeHeader:ufrm.Length()]
}

// ClearHeader zeros out the header contents.
func (ufrm Frame) ClearHeader() {
	for i := range ufrm.buf[:SizeHeader] {
		ufrm.buf[i] = 0
	}
}

//
// Validation API.
//

var (
	errBadLen = errors.New("udp: bad UDP length")
	errShort  = errors.New("udp: short buffer")
)

// ValidateSize checks the frame's size fields against the actual buffer and
// adds errors to v on finding inconsistencies. A zero destination port is
// invalid; a zero source port merely means no reply is expected.
func (ufrm Frame) ValidateSize(v *ustack.Validator) {
	ul := ufrm.Length()
	if ul < SizeHeader {
		v.AddError(errBadLen)
	}
	if int(ul) > len(ufrm.RawData()) {
		v.AddError(errShort)
	}
	if ufrm.DestinationPort() == 0 {
		v.AddError(ustack.ErrZeroDestination)
	}
}

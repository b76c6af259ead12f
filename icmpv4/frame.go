// Package icmpv4 implements the ICMP wire format subset used by the stack:
// echo/echo reply and destination unreachable. See [RFC792].
//
// [RFC792]: https://tools.ietf.org/html/rfc792
package icmpv4

import (
	"encoding/binary"
	"errors"

	"github.com/ustack-dev/ustack"
)

// Type is the ICMP message type field.
type Type uint8

const (
	TypeEchoReply              Type = 0 // echo reply
	TypeDestinationUnreachable Type = 3 // destination unreachable
	TypeEcho                   Type = 8 // echo
	TypeTimeExceeded           Type = 11
)

// CodeDestinationUnreachable is the code field of a destination unreachable
// message.
type CodeDestinationUnreachable uint8

const (
	CodeNetUnreachable   CodeDestinationUnreachable = iota // net unreachable
	CodeHostUnreachable                                    // host unreachable
	CodeProtoUnreachable                                   // protocol unreachable
	CodePortUnreachable                                    // port unreachable
)

// SizeHeader is the size of the fixed ICMP header: type, code, checksum and
// the 4-byte rest-of-header union.
const SizeHeader = 8

var errShortFrame = errors.New("icmpv4: short frame")

// NewFrame returns a Frame with data set to buf.
// An error is returned if the buffer size is smaller than 8.
func NewFrame(buf []byte) (Frame, error) {
	if len(buf) < SizeHeader {
		return Frame{}, errShortFrame
	}
	return Frame{buf: buf}, nil
}

// Frame encapsulates the raw data of an ICMP message.
type Frame struct {
	buf []byte
}

// RawData returns the underlying slice with which the frame was created.
func (frm Frame) RawData() []byte { return frm.buf }

func (frm Frame) Type() Type { return Type(frm.buf[0]) }

func (frm Frame) SetType(t Type) { frm.buf[0] = uint8(t) }

func (frm Frame) Code() uint8 { return frm.buf[1] }

func (frm Frame) SetCode(code uint8) { frm.buf[1] = code }

// CRC returns the checksum field of the frame.
func (frm Frame) CRC() uint16 {
	return binary.BigEndian.Uint16(frm.buf[2:4])
}

// SetCRC sets the checksum field of the frame.
func (frm Frame) SetCRC(crc uint16) {
	binary.BigEndian.PutUint16(frm.buf[2:4], crc)
}

// CRCWrite writes the message to the running checksum, treating the checksum
// field as zero as per RFC 792. The checksum covers the entire message.
func (frm Frame) CRCWrite(crc *ustack.CRC791) {
	crc.AddUint16(binary.BigEndian.Uint16(frm.buf[0:2]))
	crc.Write(frm.buf[4:])
}

// CalculateCRC computes the checksum of the whole message in one call.
func (frm Frame) CalculateCRC() uint16 {
	var crc ustack.CRC791
	frm.CRCWrite(&crc)
	return crc.Sum16()
}

// Payload returns the message contents past the 8-byte header.
func (frm Frame) Payload() []byte { return frm.buf[SizeHeader:] }

// FrameEcho is a Frame holding an echo or echo reply message.
type FrameEcho struct {
	Frame
}

// Identifier aids matching echo replies to echo requests. May be zero.
func (frm FrameEcho) Identifier() uint16 {
	return binary.BigEndian.Uint16(frm.buf[4:6])
}

// SetIdentifier sets the echo identifier. See [FrameEcho.Identifier].
func (frm FrameEcho) SetIdentifier(id uint16) {
	binary.BigEndian.PutUint16(frm.buf[4:6], id)
}

// SequenceNumber aids matching echo replies to echo requests. May be zero.
func (frm FrameEcho) SequenceNumber() uint16 {
	return binary.BigEndian.Uint16(frm.buf[6:8])
}

// SetSequenceNumber sets the echo sequence number. See [FrameEcho.SequenceNumber].
func (frm FrameEcho) SetSequenceNumber(seq uint16) {
	binary.BigEndian.PutUint16(frm.buf[6:8], seq)
}

// FrameDestinationUnreachable is a Frame holding a destination unreachable
// message. Its payload carries the offending IP header plus the first 8 bytes
// of the original datagram.
type FrameDestinationUnreachable struct {
	Frame
}

func (frm FrameDestinationUnreachable) Code() CodeDestinationUnreachable {
	return CodeDestinationUnreachable(frm.Frame.Code())
}

func (frm FrameDestinationUnreachable) SetCode(code CodeDestinationUnreachable) {
	frm.Frame.SetCode(uint8(code))
}

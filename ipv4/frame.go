package ipv4

import (
	"encoding/binary"
	"errors"
	"fmt"
	"net/netip"

	"github.com/ustack-dev/ustack"
)

// NewFrame returns a Frame with data set to buf.
// An error is returned if the buffer size is smaller than 20.
// Users should still call [Frame.ValidateSize] before working
// with payload/options of frames to avoid panics.
func NewFrame(buf []byte) (Frame, error) {
	if len(buf) < SizeHeader {
		return Frame{buf: nil}, errShort
	}
	return Frame{buf: buf}, nil
}

// Frame encapsulates the raw data of an IPv4 packet and provides methods for
// manipulating, validating and retrieving fields and payload data. See [RFC791].
//
// [RFC791]: https://tools.ietf.org/html/rfc791
type Frame struct {
	buf []byte
}

// RawData returns the underlying slice with which the frame was created.
func (ifrm Frame) RawData() []byte { return ifrm.buf }

func (ifrm Frame) ihl() uint8     { return ifrm.buf[0] & 0xf }
func (ifrm Frame) version() uint8 { return ifrm.buf[0] >> 4 }

// VersionAndIHL returns the version and IHL fields. Version should always be 4.
func (ifrm Frame) VersionAndIHL() (version, IHL uint8) {
	return ifrm.version(), ifrm.ihl()
}

// SetVersionAndIHL sets the version and IHL fields. Version should always be 4.
func (ifrm Frame) SetVersionAndIHL(version, IHL uint8) { ifrm.buf[0] = version<<4 | IHL&0xf }

// HeaderLength returns the length of the header in bytes as calculated from
// IHL. It includes IP options.
func (ifrm Frame) HeaderLength() int { return int(ifrm.ihl()) * 4 }

// ToS returns the type-of-service field (DSCP+ECN).
func (ifrm Frame) ToS() uint8 { return ifrm.buf[1] }

// SetToS sets the type-of-service field. See [Frame.ToS].
func (ifrm Frame) SetToS(tos uint8) { ifrm.buf[1] = tos }

// TotalLength is the entire packet size in bytes, including header and data.
func (ifrm Frame) TotalLength() uint16 {
	return binary.BigEndian.Uint16(ifrm.buf[2:4])
}

// SetTotalLength sets the total length field. See [Frame.TotalLength].
func (ifrm Frame) SetTotalLength(tl uint16) { binary.BigEndian.PutUint16(ifrm.buf[2:4], tl) }

// ID identifies the group of fragments of a single IP datagram.
func (ifrm Frame) ID() uint16 { return binary.BigEndian.Uint16(ifrm.buf[4:6]) }

// SetID sets the identification field. See [Frame.ID].
func (ifrm Frame) SetID(id uint16) { binary.BigEndian.PutUint16(ifrm.buf[4:6], id) }

// Flags returns the flag bits and fragment offset. See [Flags].
func (ifrm Frame) Flags() Flags {
	return Flags(binary.BigEndian.Uint16(ifrm.buf[6:8]))
}

// SetFlags sets the flags and fragment offset field. See [Flags].
func (ifrm Frame) SetFlags(flags Flags) {
	binary.BigEndian.PutUint16(ifrm.buf[6:8], uint16(flags))
}

// TTL limits a datagram's lifetime to prevent looping packets from living
// forever. Decremented on each hop; the packet is discarded at zero.
func (ifrm Frame) TTL() uint8 { return ifrm.buf[8] }

// SetTTL sets the time-to-live field. See [Frame.TTL].
func (ifrm Frame) SetTTL(ttl uint8) { ifrm.buf[8] = ttl }

// Protocol defines the protocol carried in the data portion of the datagram.
func (ifrm Frame) Protocol() ustack.IPProto { return ustack.IPProto(ifrm.buf[9]) }

// SetProtocol sets the protocol field. See [Frame.Protocol].
func (ifrm Frame) SetProtocol(proto ustack.IPProto) { ifrm.buf[9] = uint8(proto) }

// CRC returns the header checksum field.
func (ifrm Frame) CRC() uint16 {
	return binary.BigEndian.Uint16(ifrm.buf[10:12])
}

// SetCRC sets the header checksum field. See [Frame.CRC].
func (ifrm Frame) SetCRC(cs uint16) {
	binary.BigEndian.PutUint16(ifrm.buf[10:12], cs)
}

// CalculateHeaderCRC calculates the RFC 791 checksum over the header,
// treating the checksum field as zero.
func (ifrm Frame) CalculateHeaderCRC() uint16 {
	hl := ifrm.HeaderLength()
	if hl < SizeHeader || hl > len(ifrm.buf) {
		hl = SizeHeader
	}
	var crc ustack.CRC791
	crc.Write(ifrm.buf[0:10])
	crc.Write(ifrm.buf[12:hl])
	return crc.Sum16()
}

// CRCWriteUDPPseudo writes the IPv4 pseudo-header fields shared with UDP
// (source, destination, protocol) to the running checksum. The caller adds the
// UDP length.
func (ifrm Frame) CRCWriteUDPPseudo(crc *ustack.CRC791) {
	crc.Write(ifrm.SourceAddr()[:])
	crc.Write(ifrm.DestinationAddr()[:])
	crc.AddUint16(uint16(ifrm.Protocol()))
}

// SourceAddr returns a pointer to the source IPv4 address in the header.
func (ifrm Frame) SourceAddr() *[4]byte {
	return (*[4]byte)(ifrm.buf[12:16])
}

// DestinationAddr returns a pointer to the destination IPv4 address in the header.
func (ifrm Frame) DestinationAddr() *[4]byte {
	return (*[4]byte)(ifrm.buf[16:20])
}

// Payload returns the contents of the packet after the header, which may be
// zero sized. Be sure to call [Frame.ValidateSize] beforehand to avoid panics.
func (ifrm Frame) Payload() []byte {
	return ifrm.buf[ifrm.HeaderLength():ifrm.TotalLength()]
}

// Options returns the options portion of the header. May be zero lengthed.
func (ifrm Frame) Options() []byte {
	return ifrm.buf[SizeHeader:ifrm.HeaderLength()]
}

// ClearHeader zeros out the fixed (non-variable) header contents.
func (ifrm Frame) ClearHeader() {
	for i := range ifrm.buf[:SizeHeader] {
		ifrm.buf[i] = 0
	}
}

//
// Validation API.
//

var (
	errBadTL      = errors.New("ipv4: bad total length")
	errShort      = errors.New("ipv4: short data")
	errBadIHL     = errors.New("ipv4: bad IHL")
	errBadVersion = errors.New("ipv4: bad version")
)

// ValidateSize checks the frame's size fields against the actual buffer and
// adds errors to v on finding inconsistencies.
func (ifrm Frame) ValidateSize(v *ustack.Validator) {
	ihl := ifrm.ihl()
	tl := ifrm.TotalLength()
	if tl < SizeHeader || int(tl) < ifrm.HeaderLength() {
		v.AddError(errBadTL)
	}
	if int(tl) > len(ifrm.RawData()) {
		v.AddError(errShort)
	}
	if ihl < 5 || ifrm.HeaderLength() > len(ifrm.RawData()) {
		v.AddError(errBadIHL)
	}
}

// ValidateExceptCRC checks for invalid frame values but does not check the
// header checksum.
func (ifrm Frame) ValidateExceptCRC(v *ustack.Validator) {
	ifrm.ValidateSize(v)
	if ifrm.version() != 4 {
		v.AddError(errBadVersion)
	}
}

func (ifrm Frame) String() string {
	return fmt.Sprintf("IP %s SRC=%s DST=%s LEN=%d TTL=%d ID=%d",
		ifrm.Protocol().String(),
		netip.AddrFrom4(*ifrm.SourceAddr()).String(),
		netip.AddrFrom4(*ifrm.DestinationAddr()).String(),
		ifrm.TotalLength(), ifrm.TTL(), ifrm.ID())
}

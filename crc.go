package ustack

import "encoding/binary"

// CRC791 implements the checksum defined by RFC 791 and reused by RFC 768 and
// RFC 792: the 16-bit ones' complement of the ones' complement sum of all
// 16-bit words covered. An odd trailing octet is padded with a zero LSB.
//
// The zero value of CRC791 is ready to use.
type CRC791 struct {
	sum     uint32
	carry   byte
	needPad bool
}

// Write adds the bytes in p to the running checksum.
func (c *CRC791) Write(p []byte) (int, error) {
	n := len(p)
	if c.needPad && len(p) > 0 {
		c.sum += uint32(c.carry)<<8 | uint32(p[0])
		c.needPad = false
		p = p[1:]
	}
	for len(p) >= 2 {
		c.sum += uint32(binary.BigEndian.Uint16(p))
		p = p[2:]
	}
	if len(p) == 1 {
		c.carry = p[0]
		c.needPad = true
	}
	return n, nil
}

// AddUint16 adds a 16-bit value to the running checksum interpreted as
// big endian (network order).
func (c *CRC791) AddUint16(value uint16) {
	if c.needPad {
		c.sum += uint32(c.carry)<<8 | uint32(value>>8)
		c.carry = byte(value)
		return
	}
	c.sum += uint32(value)
}

// AddUint32 adds a 32-bit value to the running checksum interpreted as
// big endian (network order).
func (c *CRC791) AddUint32(value uint32) {
	c.AddUint16(uint16(value >> 16))
	c.AddUint16(uint16(value))
}

// Sum16 returns the checksum of the data written to c thus far.
func (c *CRC791) Sum16() uint16 {
	sum := c.sum
	if c.needPad {
		sum += uint32(c.carry) << 8
	}
	sum = (sum & 0xffff) + sum>>16
	// the max value of sum at this point is 0x1fffe, one more fold suffices.
	return ^uint16(sum + sum>>16)
}

// Reset returns the CRC791 to its initial state.
func (c *CRC791) Reset() { *c = CRC791{} }

// NeverZeroChecksum maps a zero checksum to 0xffff. Used by UDP where a
// transmitted zero means "no checksum"; 0x0000 and 0xffff are the same number
// in ones' complement arithmetic.
func NeverZeroChecksum(sum16 uint16) uint16 {
	if sum16 == 0 {
		return 0xffff
	}
	return sum16
}

// Checksum computes the RFC 791 checksum of b in a single call.
func Checksum(b []byte) uint16 {
	var c CRC791
	c.Write(b)
	return c.Sum16()
}

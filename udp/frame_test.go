package udp

import (
	"net"
	"testing"

	"github.com/gopacket/gopacket"
	"github.com/gopacket/gopacket/layers"
	"github.com/ustack-dev/ustack"
	"github.com/ustack-dev/ustack/ipv4"
)

func TestFrameRoundTrip(t *testing.T) {
	payload := []byte("ping")
	buf := make([]byte, SizeHeader+len(payload))
	ufrm, err := NewFrame(buf)
	if err != nil {
		t.Fatal(err)
	}
	ufrm.SetSourcePort(49152)
	ufrm.SetDestinationPort(7)
	ufrm.SetLength(uint16(len(buf)))
	copy(buf[SizeHeader:], payload)

	if ufrm.SourcePort() != 49152 || ufrm.DestinationPort() != 7 {
		t.Error("port mismatch")
	}
	if int(ufrm.Length()) != len(buf) {
		t.Errorf("length=%d", ufrm.Length())
	}
	if string(ufrm.Payload()) != "ping" {
		t.Errorf("payload=%q", ufrm.Payload())
	}
	var vld ustack.Validator
	ufrm.ValidateSize(&vld)
	if vld.HasError() {
		t.Fatal(vld.Err())
	}
}

func TestValidateSize(t *testing.T) {
	buf := make([]byte, SizeHeader)
	ufrm, _ := NewFrame(buf)
	var vld ustack.Validator
	ufrm.SetLength(SizeHeader - 1)
	ufrm.ValidateSize(&vld)
	if !vld.HasError() {
		t.Error("undersized length accepted")
	}
	vld.ResetErr()
	ufrm.SetLength(SizeHeader + 1) // exceeds buffer
	ufrm.ValidateSize(&vld)
	if !vld.HasError() {
		t.Error("oversized length accepted")
	}
	vld.ResetErr()
	ufrm.SetLength(SizeHeader)
	ufrm.ValidateSize(&vld)
	if vld.Err() != ustack.ErrZeroDestination {
		t.Errorf("zero destination port: err=%v", vld.Err())
	}
	vld.ResetErr()
	ufrm.SetDestinationPort(7)
	ufrm.ValidateSize(&vld)
	if vld.HasError() {
		t.Fatal(vld.Err())
	}
}

// TestChecksumAgainstGopacket computes the pseudo-header checksum for a
// datagram serialized by gopacket and expects to reproduce its value.
func TestChecksumAgainstGopacket(t *testing.T) {
	ip := &layers.IPv4{
		Version:  4,
		IHL:      5,
		TTL:      64,
		Protocol: layers.IPProtocolUDP,
		SrcIP:    net.IPv4(192, 0, 2, 2).To4(),
		DstIP:    net.IPv4(192, 0, 2, 1).To4(),
	}
	u := &layers.UDP{SrcPort: 49152, DstPort: 7}
	u.SetNetworkLayerForChecksum(ip)
	sb := gopacket.NewSerializeBuffer()
	opts := gopacket.SerializeOptions{ComputeChecksums: true, FixLengths: true}
	err := gopacket.SerializeLayers(sb, opts, ip, u, gopacket.Payload([]byte("hello world")))
	if err != nil {
		t.Fatal(err)
	}
	raw := sb.Bytes()
	ifrm, err := ipv4.NewFrame(raw)
	if err != nil {
		t.Fatal(err)
	}
	ufrm, err := NewFrame(ifrm.Payload())
	if err != nil {
		t.Fatal(err)
	}
	wire := ufrm.CRC()

	var crc ustack.CRC791
	ifrm.CRCWriteUDPPseudo(&crc)
	ufrm.CRCWriteIPv4(&crc)
	if got := ustack.NeverZeroChecksum(crc.Sum16()); got != wire {
		t.Errorf("our checksum %#04x, gopacket wrote %#04x", got, wire)
	}
}

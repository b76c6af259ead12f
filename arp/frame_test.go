package arp

import (
	"bytes"
	"net"
	"testing"

	"github.com/gopacket/gopacket"
	"github.com/gopacket/gopacket/layers"
	"github.com/ustack-dev/ustack"
	"github.com/ustack-dev/ustack/ethernet"
)

func TestFrameRoundTrip(t *testing.T) {
	var buf [SizeFrame4]byte
	afrm, err := NewFrame(buf[:])
	if err != nil {
		t.Fatal(err)
	}
	afrm.SetHardware(HardwareEthernet, 6)
	afrm.SetProtocol(ethernet.TypeIPv4, 4)
	afrm.SetOperation(OpRequest)
	sha, spa := afrm.Sender4()
	*sha = [6]byte{0x00, 0x00, 0x5e, 0x00, 0x53, 0x01}
	*spa = [4]byte{192, 0, 2, 2}
	tha, tpa := afrm.Target4()
	*tha = [6]byte{}
	*tpa = [4]byte{192, 0, 2, 1}

	hrd, hln := afrm.Hardware()
	if hrd != HardwareEthernet || hln != 6 {
		t.Errorf("hardware=(%d,%d)", hrd, hln)
	}
	pro, pln := afrm.Protocol()
	if pro != ethernet.TypeIPv4 || pln != 4 {
		t.Errorf("protocol=(%v,%d)", pro, pln)
	}
	if afrm.Operation() != OpRequest {
		t.Errorf("operation=%v", afrm.Operation())
	}
	var vld ustack.Validator
	afrm.ValidateSize(&vld)
	if vld.HasError() {
		t.Fatal(vld.Err())
	}
}

// TestFrameAgainstGopacket checks our encoding against an independent decoder.
func TestFrameAgainstGopacket(t *testing.T) {
	var buf [SizeFrame4]byte
	afrm, _ := NewFrame(buf[:])
	afrm.SetHardware(HardwareEthernet, 6)
	afrm.SetProtocol(ethernet.TypeIPv4, 4)
	afrm.SetOperation(OpReply)
	sha, spa := afrm.Sender4()
	*sha = [6]byte{0xde, 0xad, 0xbe, 0xef, 0x00, 0x01}
	*spa = [4]byte{192, 0, 2, 1}
	tha, tpa := afrm.Target4()
	*tha = [6]byte{0x00, 0x00, 0x5e, 0x00, 0x53, 0x01}
	*tpa = [4]byte{192, 0, 2, 2}

	pkt := gopacket.NewPacket(buf[:], layers.LayerTypeARP, gopacket.Default)
	layer := pkt.Layer(layers.LayerTypeARP)
	if layer == nil {
		t.Fatalf("gopacket did not decode ARP: %v", pkt.ErrorLayer())
	}
	got := layer.(*layers.ARP)
	if got.Operation != uint16(OpReply) {
		t.Errorf("operation=%d", got.Operation)
	}
	if got.AddrType != layers.LinkTypeEthernet {
		t.Errorf("addr type=%v", got.AddrType)
	}
	if !bytes.Equal(got.SourceHwAddress, sha[:]) {
		t.Errorf("sender hw=%s", net.HardwareAddr(got.SourceHwAddress))
	}
	if !bytes.Equal(got.SourceProtAddress, spa[:]) {
		t.Errorf("sender proto=%v", got.SourceProtAddress)
	}
	if !bytes.Equal(got.DstHwAddress, tha[:]) {
		t.Errorf("target hw=%s", net.HardwareAddr(got.DstHwAddress))
	}
	if !bytes.Equal(got.DstProtAddress, tpa[:]) {
		t.Errorf("target proto=%v", got.DstProtAddress)
	}
}

func TestNewFrameShort(t *testing.T) {
	if _, err := NewFrame(make([]byte, SizeFrame4-1)); err == nil {
		t.Error("expected error for short buffer")
	}
}

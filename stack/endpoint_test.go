package stack

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseEndpointRoundTrip(t *testing.T) {
	for _, s := range []string{
		"127.0.0.1:7",
		"192.0.2.2:49152",
		"255.255.255.255:65535",
		"0.0.0.0:1",
	} {
		ep, err := ParseEndpoint(s)
		require.NoError(t, err, s)
		require.Equal(t, s, ep.String())
	}
}

func TestParseEndpointRejects(t *testing.T) {
	for _, s := range []string{
		"127.0.0.1",        // missing port
		"127.0.0.1:0",      // port 0
		"127.0.0.1:65536",  // port too large
		"256.0.0.1:7",      // bad octet
		"::1:7",            // not IPv4
		"[2001:db8::1]:53", // not IPv4
		"127.0.0.1:x",
		"",
	} {
		_, err := ParseEndpoint(s)
		require.Error(t, err, s)
	}
}

func TestParseAddrRoundTrip(t *testing.T) {
	for _, s := range []string{"0.0.0.0", "127.0.0.1", "192.0.2.2", "255.255.255.255"} {
		a, err := ParseAddr(s)
		require.NoError(t, err)
		require.Equal(t, s, a.String())
	}
	for _, s := range []string{"1.2.3", "1.2.3.256", "::1", "host"} {
		_, err := ParseAddr(s)
		require.Error(t, err, s)
	}
}

func TestAddr32RoundTrip(t *testing.T) {
	a := mustAddr(t, "192.0.2.255")
	require.Equal(t, a, addrFrom32(addr32(a)))
	require.Equal(t, uint32(0xc00002ff), addr32(a))
}

package stack

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSocketRejectsUnsupported(t *testing.T) {
	s, _ := newTestStack(t)
	_, err := s.Socket(3, SockDgram, 0)
	require.ErrorIs(t, err, ErrNotSupported)
	_, err = s.Socket(AFInet, 1, 0) // SOCK_STREAM
	require.ErrorIs(t, err, ErrNotSupported)
	_, err = s.Socket(AFInet, SockDgram, 6)
	require.ErrorIs(t, err, ErrNotSupported)
}

func TestSocketDescriptorLifecycle(t *testing.T) {
	s, _ := newTestStack(t)
	sd, err := s.Socket(AFInet, SockDgram, 0)
	require.NoError(t, err)
	require.GreaterOrEqual(t, sd, 0)

	ep, _ := ParseEndpoint("127.0.0.1:7")
	require.NoError(t, s.Bind(sd, ep))
	require.NoError(t, s.Close(sd))

	// Operations on a closed descriptor fail.
	require.ErrorIs(t, s.Bind(sd, ep), ErrBadDescriptor)
	_, err = s.SendTo(sd, []byte("x"), ep)
	require.ErrorIs(t, err, ErrBadDescriptor)
	_, _, err = s.RecvFrom(sd, make([]byte, 8))
	require.ErrorIs(t, err, ErrBadDescriptor)
	require.ErrorIs(t, s.Close(sd), ErrBadDescriptor)
	require.ErrorIs(t, s.Close(-1), ErrBadDescriptor)
	require.ErrorIs(t, s.Close(maxSockets), ErrBadDescriptor)
}

func TestSocketBackedByFinitePCBPool(t *testing.T) {
	s, _ := newTestStack(t)
	var sds []int
	for i := 0; i < udpPCBCount; i++ {
		sd, err := s.Socket(AFInet, SockDgram, 0)
		require.NoError(t, err)
		sds = append(sds, sd)
	}
	// The socket table has room, the endpoint pool does not.
	_, err := s.Socket(AFInet, SockDgram, 0)
	require.ErrorIs(t, err, ErrExhausted)

	require.NoError(t, s.Close(sds[0]))
	_, err = s.Socket(AFInet, SockDgram, 0)
	require.NoError(t, err)
}

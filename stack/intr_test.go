package stack

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/ustack-dev/ustack/ethernet"
)

func TestRequestIRQConflicts(t *testing.T) {
	s, _ := newTestStack(t)
	h := func(irq int, dev *Device) error { return nil }

	require.NoError(t, s.RequestIRQ(40, h, 0, "a", nil))
	require.Error(t, s.RequestIRQ(40, h, 0, "b", nil), "exclusive line taken twice")
	require.Error(t, s.RequestIRQ(40, h, IRQShared, "c", nil), "shared joins exclusive")

	require.NoError(t, s.RequestIRQ(41, h, IRQShared, "d", nil))
	require.NoError(t, s.RequestIRQ(41, h, IRQShared, "e", nil), "shared lines coexist")
	require.Error(t, s.RequestIRQ(41, h, 0, "f", nil), "exclusive joins shared")

	// The failed registrations left the earlier ones intact.
	require.Len(t, s.irqs, 3)
}

func TestDispatchIRQRunsMatchingHandlers(t *testing.T) {
	s, _ := newTestStack(t)
	var fired []string
	handler := func(name string) func(int, *Device) error {
		return func(irq int, dev *Device) error {
			fired = append(fired, name)
			return nil
		}
	}
	require.NoError(t, s.RequestIRQ(41, handler("d"), IRQShared, "d", nil))
	require.NoError(t, s.RequestIRQ(41, handler("e"), IRQShared, "e", nil))
	require.NoError(t, s.RequestIRQ(42, handler("x"), 0, "x", nil))

	s.dispatchIRQ(41)
	require.Equal(t, []string{"d", "e"}, fired, "all sharers of the line run")
}

func TestTimerFiresAfterInterval(t *testing.T) {
	s, clock := newTestStack(t)
	fired := 0
	require.NoError(t, s.RegisterTimer("test", time.Second, func() { fired++ }))

	s.runTimers()
	require.Zero(t, fired, "interval not yet elapsed")

	clock.Advance(500 * time.Millisecond)
	s.runTimers()
	require.Zero(t, fired)

	clock.Advance(501 * time.Millisecond)
	s.runTimers()
	require.Equal(t, 1, fired)

	// The last mark was reset; it does not refire immediately.
	s.runTimers()
	require.Equal(t, 1, fired)
	clock.Advance(1001 * time.Millisecond)
	s.runTimers()
	require.Equal(t, 2, fired)
}

func TestRegistrationRejectedAfterRun(t *testing.T) {
	s, _ := newTestStack(t)
	require.NoError(t, s.Run())
	t.Cleanup(s.Shutdown)

	require.ErrorIs(t, s.RegisterProtocol("X", ethernet.Type(0x88b5), func([]byte, *Device) {}), ErrStackRunning)
	require.ErrorIs(t, s.RegisterTimer("x", time.Second, func() {}), ErrStackRunning)
	require.ErrorIs(t, s.SubscribeEvent(func() {}), ErrStackRunning)
	require.ErrorIs(t, s.RequestIRQ(50, func(int, *Device) error { return nil }, 0, "x", nil), ErrStackRunning)
	_, err := s.AttachLoopback()
	require.ErrorIs(t, err, ErrStackRunning)
}

func TestProtocolTypeUnique(t *testing.T) {
	s, _ := newTestStack(t)
	// ARP and IP are pre-registered by New.
	err := s.RegisterProtocol("arp2", ethernet.TypeARP, func([]byte, *Device) {})
	require.Error(t, err)
}

func TestQueueDrainFIFOInRegistrationOrder(t *testing.T) {
	s, _ := newTestStack(t)
	var order []string
	require.NoError(t, s.RegisterProtocol("B", ethernet.Type(0x88b5), func(data []byte, dev *Device) {
		order = append(order, "B:"+string(data))
	}))
	require.NoError(t, s.RegisterProtocol("A", ethernet.Type(0x88b6), func(data []byte, dev *Device) {
		order = append(order, "A:"+string(data))
	}))
	dev, err := s.AttachLoopback()
	require.NoError(t, err)

	// Interleave pushes; drain visits protocols in registration order and
	// each queue in FIFO order.
	s.inputHandler(ethernet.Type(0x88b6), []byte("1"), dev)
	s.inputHandler(ethernet.Type(0x88b5), []byte("1"), dev)
	s.inputHandler(ethernet.Type(0x88b6), []byte("2"), dev)
	s.inputHandler(ethernet.Type(0x88b5), []byte("2"), dev)
	s.runProtocolQueues()
	require.Equal(t, []string{"B:1", "B:2", "A:1", "A:2"}, order)
}

func TestUnknownEtherTypeDroppedSilently(t *testing.T) {
	s, _ := newTestStack(t)
	dev, err := s.AttachLoopback()
	require.NoError(t, err)
	// Nothing registered for this type; the push is a silent no-op.
	s.inputHandler(ethernet.Type(0x9999), []byte("x"), dev)
	for _, p := range s.protocols {
		require.Empty(t, p.queue)
	}
}

package stack

import "errors"

var (
	// ErrStackRunning is returned by registration calls made after Run.
	ErrStackRunning = errors.New("stack: registration after run")

	// ErrDeviceDown is returned when transmitting on a device that is not up.
	ErrDeviceDown = errors.New("stack: device not opened")

	// ErrPacketTooLarge is returned when a datagram exceeds the outgoing
	// device MTU. The stack does not fragment.
	ErrPacketTooLarge = errors.New("stack: packet too large")

	// ErrNoRoute is returned when no routing table entry matches the
	// destination.
	ErrNoRoute = errors.New("stack: no route to host")

	// ErrSourceRequired is returned when sending to the limited broadcast
	// address without an explicit source.
	ErrSourceRequired = errors.New("stack: source address required for broadcast")

	// ErrSourceMismatch is returned when the requested source address does not
	// belong to the selected outgoing interface.
	ErrSourceMismatch = errors.New("stack: source address not on selected interface")

	// ErrARPIncomplete reports that link resolution is in progress. The
	// triggering packet was dropped; a request has been emitted and the caller
	// may retry.
	ErrARPIncomplete = errors.New("stack: address resolution incomplete")

	// ErrARPFailed reports that link resolution is not possible on the
	// interface.
	ErrARPFailed = errors.New("stack: address resolution failed")

	// ErrExhausted is returned when a fixed pool (PCBs, sockets, ephemeral
	// ports) has no free slot.
	ErrExhausted = errors.New("stack: resource exhausted")

	// ErrAddrInUse is returned by bind when the local endpoint overlaps an
	// existing binding.
	ErrAddrInUse = errors.New("stack: address already in use")

	// ErrBadDescriptor is returned for operations on unknown or closed
	// descriptors.
	ErrBadDescriptor = errors.New("stack: bad descriptor")

	// ErrClosed is returned by blocked calls whose endpoint was closed.
	ErrClosed = errors.New("stack: endpoint closed")

	// ErrInterrupted is returned by blocked calls released by a terminate
	// event.
	ErrInterrupted = errors.New("stack: interrupted")

	// ErrNotSupported is returned for unsupported families, socket types and
	// protocol combinations.
	ErrNotSupported = errors.New("stack: not supported")
)

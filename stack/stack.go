// Package stack implements a user-space TCP/IP protocol stack: network
// devices feed Ethernet frames into per-EtherType input queues drained by a
// single dispatcher goroutine which runs the ARP, IPv4, ICMP and UDP handlers.
// Applications talk to the stack through a sockets-style API layered above the
// UDP endpoint pool.
package stack

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/ustack-dev/ustack"
	"github.com/ustack-dev/ustack/ethernet"
)

// maxQueueLen bounds each protocol input queue. The newest entry is dropped
// on overflow.
const maxQueueLen = 1024

// ProtocolHandler consumes a frame payload on the dispatcher goroutine.
type ProtocolHandler func(data []byte, dev *Device)

type queueEntry struct {
	dev  *Device
	data []byte
}

type protocol struct {
	name    string
	typ     ethernet.Type
	handler ProtocolHandler

	mu    sync.Mutex
	queue []queueEntry
}

// Config parameterizes a Stack.
type Config struct {
	// Clock drives the dispatcher tick, timer list and ARP cache timestamps.
	// Defaults to the real clock.
	Clock clockwork.Clock
	// Logger receives stack events. A nil logger disables logging.
	Logger *slog.Logger
}

// Stack owns the device, protocol, route, timer and event registries plus the
// mutable ARP cache and UDP endpoint pool. Registries are populated before Run
// and are immutable afterwards, so the dispatcher traverses them without
// locking.
type Stack struct {
	clock clockwork.Clock
	log   *slog.Logger

	devices   []*Device
	protocols []*protocol
	ipProtos  []*ipProtocol
	timers    []*timer
	events    []func()
	irqs      []*irqEntry
	running   bool

	softirq chan struct{}
	hwirq   chan int
	wake    chan struct{}
	done    chan struct{}
	wg      sync.WaitGroup

	ifaces []*Interface
	routes []*route

	idMu sync.Mutex
	ipID uint16

	arpMu    sync.Mutex
	arpCache [arpCacheSize]arpEntry

	udpMu   sync.Mutex
	udpPCBs [udpPCBCount]udpPCB

	sockMu sync.Mutex
	socks  [maxSockets]socketEntry
}

// New returns a stack with the built-in protocols registered: ARP and IPv4 at
// the link layer, ICMP and UDP as IPv4 sub-protocols, and the ARP aging timer.
func New(cfg Config) (*Stack, error) {
	s := &Stack{
		clock:   cfg.Clock,
		log:     cfg.Logger,
		softirq: make(chan struct{}, 1),
		hwirq:   make(chan int, 64),
		wake:    make(chan struct{}, 1),
		done:    make(chan struct{}),
		ipID:    ipIDFirst,
	}
	if s.clock == nil {
		s.clock = clockwork.NewRealClock()
	}
	for i := range s.udpPCBs {
		s.udpPCBs[i].cond = sync.NewCond(&s.udpMu)
	}
	if err := s.RegisterProtocol("ARP", ethernet.TypeARP, s.arpInput); err != nil {
		return nil, err
	}
	if err := s.RegisterProtocol("IP", ethernet.TypeIPv4, s.ipInput); err != nil {
		return nil, err
	}
	if err := s.RegisterTimer("arp-age", time.Second, s.arpTimer); err != nil {
		return nil, err
	}
	if err := s.RegisterIPProtocol("ICMP", ustack.IPProtoICMP, s.icmpInput); err != nil {
		return nil, err
	}
	if err := s.RegisterIPProtocol("UDP", ustack.IPProtoUDP, s.udpInput); err != nil {
		return nil, err
	}
	if err := s.SubscribeEvent(s.udpInterruptAll); err != nil {
		return nil, err
	}
	return s, nil
}

// RegisterProtocol registers a link-layer protocol input handler keyed by
// EtherType. Types are unique. Must be called before Run.
func (s *Stack) RegisterProtocol(name string, typ ethernet.Type, handler ProtocolHandler) error {
	if s.running {
		return ErrStackRunning
	}
	for _, p := range s.protocols {
		if p.typ == typ {
			return errDuplicate("protocol", p.name)
		}
	}
	s.protocols = append(s.protocols, &protocol{name: name, typ: typ, handler: handler})
	s.info("protocol registered", slog.String("name", name), slog.String("type", typ.String()))
	return nil
}

func (s *Stack) protocolName(typ ethernet.Type) string {
	for _, p := range s.protocols {
		if p.typ == typ {
			return p.name
		}
	}
	return "UNKNOWN"
}

// inputHandler is the device ingress entry point: it copies the received
// bytes onto the queue of the protocol registered for typ and raises a soft
// IRQ. Unknown EtherTypes are dropped silently.
func (s *Stack) inputHandler(typ ethernet.Type, data []byte, dev *Device) {
	for _, p := range s.protocols {
		if p.typ != typ {
			continue
		}
		p.mu.Lock()
		if len(p.queue) >= maxQueueLen {
			p.mu.Unlock()
			countDrop("link", "queue-overflow")
			return
		}
		p.queue = append(p.queue, queueEntry{dev: dev, data: append([]byte(nil), data...)})
		depth := len(p.queue)
		p.mu.Unlock()
		s.debugDump("queue pushed", data, slog.String("dev", dev.name), slog.String("proto", p.name),
			slog.Int("len", len(data)), slog.Int("depth", depth))
		s.raiseSoftIRQ()
		return
	}
	countDrop("link", "unknown-ethertype")
}

// runProtocolQueues drains every protocol queue in registration order,
// invoking handlers synchronously on the dispatcher.
func (s *Stack) runProtocolQueues() {
	for _, p := range s.protocols {
		for {
			p.mu.Lock()
			if len(p.queue) == 0 {
				p.mu.Unlock()
				break
			}
			entry := p.queue[0]
			p.queue = p.queue[1:]
			p.mu.Unlock()
			metricReceived.WithLabelValues(p.name).Inc()
			p.handler(entry.data, entry.dev)
		}
	}
}

// Run opens all registered devices and starts the dispatcher. Failure to open
// any device aborts startup.
func (s *Stack) Run() error {
	if s.running {
		return ErrStackRunning
	}
	s.running = true
	for _, dev := range s.devices {
		if err := dev.open(); err != nil {
			return err
		}
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.dispatch()
	}()
	s.info("running")
	return nil
}

// Shutdown stops the dispatcher, releases blocked readers and closes all
// devices.
func (s *Stack) Shutdown() {
	close(s.done)
	s.wg.Wait()
	s.udpInterruptAll()
	for _, dev := range s.devices {
		if dev.IsUp() {
			if err := dev.close(); err != nil {
				s.error("device close", slog.String("err", err.Error()))
			}
		}
	}
	s.info("shutdown")
}

// Logging helpers. A nil logger discards everything.

func (s *Stack) error(msg string, attrs ...slog.Attr) { s.logAttrs(slog.LevelError, msg, attrs) }
func (s *Stack) info(msg string, attrs ...slog.Attr)  { s.logAttrs(slog.LevelInfo, msg, attrs) }
func (s *Stack) debug(msg string, attrs ...slog.Attr) { s.logAttrs(slog.LevelDebug, msg, attrs) }

func (s *Stack) logAttrs(level slog.Level, msg string, attrs []slog.Attr) {
	if s.log == nil {
		return
	}
	s.log.LogAttrs(context.Background(), level, msg, attrs...)
}

// debugDump renders b as a hex dump attr when debug logging is enabled; the
// rendering is skipped entirely otherwise.
func (s *Stack) debugDump(msg string, b []byte, attrs ...slog.Attr) {
	if s.log == nil || !s.log.Enabled(context.Background(), slog.LevelDebug) {
		return
	}
	attrs = append(attrs, slog.String("dump", "\n"+ustack.HexDump(b)))
	s.logAttrs(slog.LevelDebug, msg, attrs)
}

type registrationError struct {
	kind, name string
}

func (e registrationError) Error() string {
	return "stack: " + e.kind + " already registered: " + e.name
}

func errDuplicate(kind, name string) error {
	return registrationError{kind: kind, name: name}
}

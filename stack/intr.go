package stack

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/ustack-dev/ustack"
)

// IRQFlags qualify an IRQ registration.
type IRQFlags uint8

// IRQShared allows several devices to register the same IRQ line. All
// registrations on a shared line must carry the flag.
const IRQShared IRQFlags = 1 << 0

// irqBase is the first line handed out to device drivers.
const irqBase = 32

type irqEntry struct {
	irq     int
	name    string
	flags   IRQFlags
	dev     *Device
	handler func(irq int, dev *Device) error
}

// RequestIRQ registers a handler for an IRQ line. Registering a line that is
// already taken is an error unless every registration on it carries
// IRQShared. Must be called before Run.
func (s *Stack) RequestIRQ(irq int, handler func(irq int, dev *Device) error, flags IRQFlags, name string, dev *Device) error {
	if s.running {
		return ErrStackRunning
	}
	for _, e := range s.irqs {
		if e.irq == irq && (e.flags&IRQShared == 0 || flags&IRQShared == 0) {
			return fmt.Errorf("stack: irq %d conflicts with %s", irq, e.name)
		}
	}
	s.irqs = append(s.irqs, &irqEntry{irq: irq, name: name, flags: flags, dev: dev, handler: handler})
	s.debug("irq registered", slog.Int("irq", irq), slog.String("name", name))
	return nil
}

// RaiseIRQ queues a hardware IRQ for the dispatcher. Safe from any goroutine.
func (s *Stack) RaiseIRQ(irq int) {
	select {
	case s.hwirq <- irq:
	default:
		// The dispatcher is behind; the driver retains its frames and the
		// next successful raise will drain them.
	}
}

func (s *Stack) raiseSoftIRQ() {
	select {
	case s.softirq <- struct{}{}:
	default:
	}
}

// Interrupt raises the software wake event, running all event subscribers on
// the dispatcher. Used by signal handlers to release blocked readers.
func (s *Stack) Interrupt() {
	select {
	case s.wake <- struct{}{}:
	default:
	}
}

// SubscribeEvent registers a handler run on every wake event. Must be called
// before Run.
func (s *Stack) SubscribeEvent(handler func()) error {
	if s.running {
		return ErrStackRunning
	}
	s.events = append(s.events, handler)
	return nil
}

func (s *Stack) runEvents() {
	for _, h := range s.events {
		h()
	}
}

type timer struct {
	name     string
	interval time.Duration
	last     time.Time
	handler  func()
}

// RegisterTimer registers a periodic timer serviced by the dispatcher tick.
// Must be called before Run.
func (s *Stack) RegisterTimer(name string, interval time.Duration, handler func()) error {
	if s.running {
		return ErrStackRunning
	}
	s.timers = append(s.timers, &timer{name: name, interval: interval, last: s.clock.Now(), handler: handler})
	s.info("timer registered", slog.String("name", name), slog.Duration("interval", interval))
	return nil
}

func (s *Stack) runTimers() {
	for _, t := range s.timers {
		now := s.clock.Now()
		if now.Sub(t.last) > t.interval {
			t.handler()
			t.last = now
		}
	}
}

func (s *Stack) dispatchIRQ(irq int) {
	for _, e := range s.irqs {
		if e.irq != irq {
			continue
		}
		s.debug("irq", slog.Int("irq", irq), slog.String("name", e.name))
		if err := e.handler(e.irq, e.dev); err != nil {
			// Validation drops are routine; only real handler failures are
			// worth an error line.
			if errors.Is(err, ustack.ErrPacketDrop) {
				s.debug("irq handler drop", slog.String("name", e.name))
			} else {
				s.error("irq handler", slog.String("name", e.name), slog.String("err", err.Error()))
			}
		}
	}
}

// dispatch is the soft-IRQ core: a single goroutine servicing hardware IRQs,
// the periodic tick, queued protocol input and wake events. All protocol
// handlers, timers and event subscribers run here sequentially.
func (s *Stack) dispatch() {
	ticker := s.clock.NewTicker(time.Millisecond)
	defer ticker.Stop()
	for {
		select {
		case <-s.done:
			return
		case <-ticker.Chan():
			s.runTimers()
		case <-s.softirq:
			s.runProtocolQueues()
		case <-s.wake:
			s.runEvents()
		case irq := <-s.hwirq:
			s.dispatchIRQ(irq)
		}
	}
}

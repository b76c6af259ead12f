package stack

import (
	"fmt"
	"log/slog"
	"net/netip"
)

// Interface binds an IPv4 unicast address and netmask to a device. The device
// reference is non-owning; the device owns its interface list.
type Interface struct {
	dev       *Device
	unicast   netip.Addr
	netmask   netip.Addr
	broadcast netip.Addr
}

// NewInterface builds an interface from dotted-quad unicast and netmask
// strings. The broadcast address is derived as (unicast & netmask) | ^netmask.
func NewInterface(unicast, netmask string) (*Interface, error) {
	u, err := ParseAddr(unicast)
	if err != nil {
		return nil, fmt.Errorf("stack: interface unicast: %w", err)
	}
	m, err := ParseAddr(netmask)
	if err != nil {
		return nil, fmt.Errorf("stack: interface netmask: %w", err)
	}
	u32, m32 := addr32(u), addr32(m)
	return &Interface{
		unicast:   u,
		netmask:   m,
		broadcast: addrFrom32(u32&m32 | ^m32),
	}, nil
}

// Device returns the owning device, nil before registration.
func (i *Interface) Device() *Device { return i.dev }

// Unicast returns the interface's unicast address.
func (i *Interface) Unicast() netip.Addr { return i.unicast }

// Netmask returns the interface's netmask.
func (i *Interface) Netmask() netip.Addr { return i.netmask }

// Broadcast returns the interface's directed broadcast address.
func (i *Interface) Broadcast() netip.Addr { return i.broadcast }

// RegisterInterface binds iface to dev, adds it to the global interface list
// and inserts the directly-attached route for its network. A device holds at
// most one IP interface. Must be called before Run.
func (s *Stack) RegisterInterface(dev *Device, iface *Interface) error {
	if s.running {
		return ErrStackRunning
	}
	if dev.InterfaceIP() != nil {
		return fmt.Errorf("stack: device %s already has an IP interface", dev.name)
	}
	iface.dev = dev
	dev.ifaces = append(dev.ifaces, iface)
	s.ifaces = append(s.ifaces, iface)
	network := addrFrom32(addr32(iface.unicast) & addr32(iface.netmask))
	if err := s.AddRoute(network, iface.netmask, AddrAny, iface); err != nil {
		return err
	}
	s.info("interface registered", slog.String("dev", dev.name),
		slog.String("unicast", iface.unicast.String()),
		slog.String("netmask", iface.netmask.String()),
		slog.String("broadcast", iface.broadcast.String()))
	return nil
}

// interfaceByAddr returns the registered interface holding the given unicast
// address, or nil.
func (s *Stack) interfaceByAddr(addr netip.Addr) *Interface {
	for _, iface := range s.ifaces {
		if iface.unicast == addr {
			return iface
		}
	}
	return nil
}

// route is a routing table entry. A zero nexthop means directly attached.
type route struct {
	network uint32
	netmask uint32
	nexthop uint32
	iface   *Interface
}

// AddRoute inserts a route. The network must equal network & netmask. Must be
// called before Run.
func (s *Stack) AddRoute(network, netmask, nexthop netip.Addr, iface *Interface) error {
	if s.running {
		return ErrStackRunning
	}
	n32, m32 := addr32(network), addr32(netmask)
	if n32&m32 != n32 {
		return fmt.Errorf("stack: route network %s not aligned to mask %s", network, netmask)
	}
	s.routes = append(s.routes, &route{network: n32, netmask: m32, nexthop: addr32(nexthop), iface: iface})
	s.info("route added", slog.String("network", network.String()),
		slog.String("netmask", netmask.String()), slog.String("nexthop", nexthop.String()))
	return nil
}

// SetDefaultGateway installs a default route (0.0.0.0/0) through the gateway
// reached on iface. Must be called before Run.
func (s *Stack) SetDefaultGateway(iface *Interface, gateway string) error {
	gw, err := ParseAddr(gateway)
	if err != nil {
		return fmt.Errorf("stack: default gateway: %w", err)
	}
	return s.AddRoute(AddrAny, AddrAny, gw, iface)
}

// lookupRoute performs longest-prefix match over all routes. Ties are broken
// by insertion order, first-seen winning.
func (s *Stack) lookupRoute(dst uint32) *route {
	var candidate *route
	for _, r := range s.routes {
		if dst&r.netmask == r.network {
			if candidate == nil || candidate.netmask < r.netmask {
				candidate = r
			}
		}
	}
	return candidate
}

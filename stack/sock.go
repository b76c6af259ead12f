package stack

import "log/slog"

// Address family and socket type values accepted by Socket.
const (
	AFInet    = 2
	SockDgram = 2
)

const maxSockets = 128

// socketEntry maps an integer descriptor onto a UDP endpoint.
type socketEntry struct {
	used   bool
	family int
	typ    int
	pcb    int
}

func (s *Stack) sockGet(sd int) *socketEntry {
	if sd < 0 || sd >= maxSockets || !s.socks[sd].used {
		return nil
	}
	return &s.socks[sd]
}

// Socket allocates a descriptor. Only AFInet datagram sockets with protocol 0
// are supported.
func (s *Stack) Socket(domain, typ, proto int) (int, error) {
	if domain != AFInet || typ != SockDgram || proto != 0 {
		return -1, ErrNotSupported
	}
	s.sockMu.Lock()
	defer s.sockMu.Unlock()
	for sd := range s.socks {
		if s.socks[sd].used {
			continue
		}
		pcb, err := s.UDPOpen()
		if err != nil {
			return -1, err
		}
		s.socks[sd] = socketEntry{used: true, family: domain, typ: typ, pcb: pcb}
		s.debug("socket open", slog.Int("sd", sd), slog.Int("pcb", pcb))
		return sd, nil
	}
	return -1, ErrExhausted
}

// Bind sets the socket's local endpoint.
func (s *Stack) Bind(sd int, local Endpoint) error {
	s.sockMu.Lock()
	sock := s.sockGet(sd)
	s.sockMu.Unlock()
	if sock == nil {
		return ErrBadDescriptor
	}
	return s.UDPBind(sock.pcb, local)
}

// SendTo transmits payload to the remote endpoint through the socket.
func (s *Stack) SendTo(sd int, payload []byte, remote Endpoint) (int, error) {
	s.sockMu.Lock()
	sock := s.sockGet(sd)
	s.sockMu.Unlock()
	if sock == nil {
		return 0, ErrBadDescriptor
	}
	return s.UDPSendTo(sock.pcb, payload, remote)
}

// RecvFrom receives the next datagram on the socket, blocking while none is
// queued. Returns the byte count and the source endpoint.
func (s *Stack) RecvFrom(sd int, buf []byte) (int, Endpoint, error) {
	s.sockMu.Lock()
	sock := s.sockGet(sd)
	s.sockMu.Unlock()
	if sock == nil {
		return 0, Endpoint{}, ErrBadDescriptor
	}
	return s.UDPRecvFrom(sock.pcb, buf)
}

// Close releases the socket and its underlying endpoint.
func (s *Stack) Close(sd int) error {
	s.sockMu.Lock()
	sock := s.sockGet(sd)
	if sock == nil {
		s.sockMu.Unlock()
		return ErrBadDescriptor
	}
	pcb := sock.pcb
	*sock = socketEntry{}
	s.sockMu.Unlock()
	return s.UDPClose(pcb)
}

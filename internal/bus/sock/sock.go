// Package sock is the non-blocking TCP transport the bus runs on: a
// listener that accepts without blocking, a set of connections polled in
// round-robin order for fairness, and length-prefixed frame read/write.
package sock

import (
	"encoding/binary"
	"fmt"
	"io"
	"net"
	"time"
)

// ReadTimeout and WriteTimeout bound a single frame I/O call so a stalled
// peer never wedges the socket main loop.
const (
	ReadTimeout  = 2 * time.Second
	WriteTimeout = 2 * time.Second
)

const maxFrame = 20024

// Server wraps a listening socket opened with address reuse so a restarted
// process can rebind immediately after a crash.
type Server struct {
	ln net.Listener
}

// Listen opens a TCP listener on the given port, retrying a handful of
// times if the address is still in TIME_WAIT from a prior instance.
func Listen(port int) (*Server, error) {
	addr := fmt.Sprintf("127.0.0.1:%d", port)
	var lc net.ListenConfig
	lc.Control = setReuseAddr

	var lastErr error
	for attempt := 0; attempt < 5; attempt++ {
		ln, err := lc.Listen(nil, "tcp", addr)
		if err == nil {
			return &Server{ln: ln}, nil
		}
		lastErr = err
		time.Sleep(200 * time.Millisecond)
	}
	return nil, fmt.Errorf("sock: listen on %s: %w", addr, lastErr)
}

// Accept returns the next pending connection without blocking indefinitely;
// callers poll this from the socket main loop. ok is false when nothing is
// ready yet (not an error).
func (s *Server) Accept(pollTimeout time.Duration) (conn *Conn, ok bool, err error) {
	type acceptResult struct {
		c   net.Conn
		err error
	}
	tcpLn, isTCP := s.ln.(*net.TCPListener)
	if !isTCP {
		return nil, false, fmt.Errorf("sock: listener is not TCP")
	}
	tcpLn.SetDeadline(time.Now().Add(pollTimeout))
	c, err := tcpLn.Accept()
	if err != nil {
		if ne, isNet := err.(net.Error); isNet && ne.Timeout() {
			return nil, false, nil
		}
		return nil, false, err
	}
	return newConn(c), true, nil
}

// Close shuts the listener down.
func (s *Server) Close() error {
	return s.ln.Close()
}

// Port returns the listener's bound port, useful when Listen was called
// with port 0 to let the OS pick a free one (as tests do to avoid
// colliding with a fixed route port).
func (s *Server) Port() int {
	return s.ln.Addr().(*net.TCPAddr).Port
}

// Conn is one established bus connection, either side of a pair.
type Conn struct {
	nc net.Conn
}

func newConn(nc net.Conn) *Conn {
	return &Conn{nc: nc}
}

// Dial connects to a peer route's listening port. It does not block beyond
// the given timeout; a timed-out dial is a normal "not up yet" outcome for
// the connection manager's retry loop, not a fatal error.
func Dial(port int, timeout time.Duration) (*Conn, error) {
	addr := fmt.Sprintf("127.0.0.1:%d", port)
	nc, err := net.DialTimeout("tcp", addr, timeout)
	if err != nil {
		return nil, err
	}
	return newConn(nc), nil
}

// WriteFrame writes b verbatim. b must already carry its u32 length prefix
// (as msg.Frame builds it); WriteFrame adds no prefix of its own, so a raw
// payload passed here is not a valid frame on the wire.
func (c *Conn) WriteFrame(b []byte) error {
	c.nc.SetWriteDeadline(time.Now().Add(WriteTimeout))
	_, err := c.nc.Write(b)
	return err
}

// ReadFrame reads one u32-length-prefixed frame and returns its payload
// (header+args, without the length prefix), using the default ReadTimeout.
// A timeout with no data ready returns ok=false and a nil error — the poll
// loop treats this as "nothing to read yet", not a disconnect.
func (c *Conn) ReadFrame() (payload []byte, ok bool, err error) {
	return c.ReadFrameTimeout(ReadTimeout)
}

// ReadFrameTimeout is ReadFrame with an explicit poll timeout, for callers
// that need a short, non-blocking-ish poll (the connection manager checking
// for a handshake reply on every main-loop pass) rather than the full
// ReadTimeout.
func (c *Conn) ReadFrameTimeout(timeout time.Duration) (payload []byte, ok bool, err error) {
	c.nc.SetReadDeadline(time.Now().Add(timeout))

	var lenBuf [4]byte
	if _, err := io.ReadFull(c.nc, lenBuf[:]); err != nil {
		if ne, isNet := err.(net.Error); isNet && ne.Timeout() {
			return nil, false, nil
		}
		return nil, false, err
	}

	n := binary.BigEndian.Uint32(lenBuf[:])
	if n == 0 || n > maxFrame {
		return nil, false, fmt.Errorf("sock: invalid frame length %d", n)
	}

	payload = make([]byte, n)
	c.nc.SetReadDeadline(time.Now().Add(timeout))
	if _, err := io.ReadFull(c.nc, payload); err != nil {
		return nil, false, err
	}
	return payload, true, nil
}

// Close closes the underlying socket.
func (c *Conn) Close() error {
	return c.nc.Close()
}

// RemoteAddr exposes the peer address for logging.
func (c *Conn) RemoteAddr() net.Addr {
	return c.nc.RemoteAddr()
}

// Set is a round-robin-fair collection of connections. Polling always
// resumes after the last-serviced index so no single busy connection can
// starve the others, matching the fairness requirement of the socket main
// loop.
type Set struct {
	conns []*Conn
	next  int
}

// Add registers c with the set.
func (s *Set) Add(c *Conn) {
	s.conns = append(s.conns, c)
}

// Remove drops c from the set, if present.
func (s *Set) Remove(c *Conn) {
	for i, e := range s.conns {
		if e == c {
			s.conns = append(s.conns[:i], s.conns[i+1:]...)
			if s.next > i {
				s.next--
			}
			return
		}
	}
}

// Len reports how many connections are registered.
func (s *Set) Len() int { return len(s.conns) }

// PollNext reads one frame from the next connection in round-robin order
// that has data ready, advancing the cursor past it regardless of outcome
// so every connection gets an equal turn over time. It returns ok=false
// when no connection in the set had a frame ready this pass.
func (s *Set) PollNext(pollTimeout time.Duration) (c *Conn, payload []byte, ok bool, err error) {
	n := len(s.conns)
	if n == 0 {
		return nil, nil, false, nil
	}
	perConn := pollTimeout / time.Duration(n)
	if perConn <= 0 {
		perConn = time.Millisecond
	}
	for i := 0; i < n; i++ {
		idx := (s.next + i) % n
		cand := s.conns[idx]
		payload, ok, err := cand.ReadFrameTimeout(perConn)
		if err != nil {
			s.next = (idx + 1) % n
			return cand, nil, false, err
		}
		if ok {
			s.next = (idx + 1) % n
			return cand, payload, true, nil
		}
	}
	s.next = (s.next + 1) % n
	return nil, nil, false, nil
}

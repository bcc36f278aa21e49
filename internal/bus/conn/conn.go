// Package conn manages one process's outbound connections to its peers on
// the bus: dialing, handshaking, and a bounded retry schedule so a peer
// that never comes up doesn't retry forever.
package conn

import (
	"fmt"
	"time"

	"github.com/bdj4go/bdj4/internal/bus/msg"
	"github.com/bdj4go/bdj4/internal/bus/route"
	"github.com/bdj4go/bdj4/internal/bus/sock"
)

// maxRetries bounds how many failed attempts Manager.Process makes on a
// peer before giving up and reporting a permanent disconnect. This is the
// retry-budget behavior recovered from the original handshake logic: the
// original gives up and logs rather than retrying forever.
const maxRetries = 10

const retryInterval = 500 * time.Millisecond

// handshakePoll bounds how long Process spends per target waiting for a
// handshake reply on one pass, so a slow-to-reply peer can't stall the
// whole socket main loop this pass is driven from.
const handshakePoll = 5 * time.Millisecond

// target tracks one peer connection attempt's state.
type target struct {
	route     route.Route
	profile   int
	conn      *sock.Conn
	sent      bool
	handshook bool
	retries   int
	lastTry   time.Time
}

// Manager owns the set of connections one process maintains to its peers,
// plus this process's own identity for handshake purposes.
type Manager struct {
	self     route.Route
	profile  int
	targets  map[route.Route]*target
	onGiveUp func(route.Route)
}

// New creates a Manager for a process identified by self/profile.
// onGiveUp, if non-nil, is called once a target exhausts its retry budget
// — the process's idle callback is the usual place to surface this to the
// state machine.
func New(self route.Route, profile int, onGiveUp func(route.Route)) *Manager {
	return &Manager{
		self:    self,
		profile: profile,
		targets: make(map[route.Route]*target),
		onGiveUp: func(r route.Route) {
			if onGiveUp != nil {
				onGiveUp(r)
			}
		},
	}
}

// Want registers a peer route this process should maintain a connection
// to. Calling Want again on an already-registered route is a no-op.
func (m *Manager) Want(r route.Route) {
	if _, ok := m.targets[r]; ok {
		return
	}
	m.targets[r] = &target{route: r, profile: m.profile}
}

// Process attempts to advance every not-yet-handshaken target one step:
// dial if it's time to retry, send our own HANDSHAKE once connected, and
// wait for the peer's HANDSHAKE reply before considering the target
// handshaken — per the bus handshake contract, application traffic must
// not flow until both sides have observed each other's HANDSHAKE. It is
// meant to be called from the socket main loop's idle tick, not in a busy
// loop.
func (m *Manager) Process() {
	now := time.Now()
	for r, t := range m.targets {
		if t.handshook || t.retries >= maxRetries {
			continue
		}
		if t.conn == nil {
			if now.Sub(t.lastTry) < retryInterval {
				continue
			}
			t.lastTry = now
			c, err := sock.Dial(r.Port(m.profile), 300*time.Millisecond)
			if err != nil {
				t.retries++
				if t.retries >= maxRetries {
					m.onGiveUp(r)
				}
				continue
			}
			t.conn = c
			t.sent = false
		}
		if !t.sent {
			if err := m.sendHandshake(t); err != nil {
				m.resetTarget(t, r)
				continue
			}
			t.sent = true
		}
		confirmed, err := m.awaitHandshakeReply(t)
		if err != nil {
			m.resetTarget(t, r)
			continue
		}
		if !confirmed {
			continue
		}
		t.handshook = true
		t.retries = 0
	}
}

// resetTarget tears down a target's connection after a failed send or a
// dropped peer, and counts it against the retry budget so Process redials
// from scratch on a later pass.
func (m *Manager) resetTarget(t *target, r route.Route) {
	t.conn.Close()
	t.conn = nil
	t.sent = false
	t.retries++
	if t.retries >= maxRetries {
		m.onGiveUp(r)
	}
}

func (m *Manager) sendHandshake(t *target) error {
	frame := msg.EncodeFrame(m.self, t.route, msg.Handshake, nil)
	return t.conn.WriteFrame(frame)
}

// awaitHandshakeReply polls t.conn for the peer's HANDSHAKE reply without
// blocking the caller's main loop for more than handshakePoll. confirmed is
// false (with a nil error) when nothing has arrived yet; callers should
// just try again on a later pass.
func (m *Manager) awaitHandshakeReply(t *target) (confirmed bool, err error) {
	payload, ok, err := t.conn.ReadFrameTimeout(handshakePoll)
	if err != nil {
		return false, err
	}
	if !ok {
		return false, nil
	}
	reply, err := msg.Decode(payload)
	if err != nil {
		return false, err
	}
	if reply.Code != msg.Handshake || reply.From != t.route {
		return false, nil
	}
	return true, nil
}

// HaveHandshake reports whether r has completed its handshake.
func (m *Manager) HaveHandshake(r route.Route) bool {
	t, ok := m.targets[r]
	return ok && t.handshook
}

// Connected reports whether every wanted target has completed its
// handshake.
func (m *Manager) Connected() bool {
	for _, t := range m.targets {
		if !t.handshook {
			return false
		}
	}
	return true
}

// Send writes a message to an already-handshaken peer.
func (m *Manager) Send(to route.Route, code msg.Code, args []byte) error {
	t, ok := m.targets[to]
	if !ok || !t.handshook {
		return fmt.Errorf("conn: no handshaken connection to %s", to)
	}
	return t.conn.WriteFrame(msg.EncodeFrame(m.self, to, code, args))
}

// Disconnect closes and forgets the connection to r, if any, so a future
// Want/Process cycle will redial from scratch.
func (m *Manager) Disconnect(r route.Route) {
	t, ok := m.targets[r]
	if !ok {
		return
	}
	if t.conn != nil {
		t.conn.Close()
	}
	delete(m.targets, r)
}

// DisconnectAll closes every managed connection, used during the state
// machine's STOPPING transition.
func (m *Manager) DisconnectAll() {
	for r := range m.targets {
		m.Disconnect(r)
	}
}

// Conn exposes the live socket for a dialed peer's outbound sends (it does
// not check that the handshake has completed; see HaveHandshake), for callers that need the raw connection directly (e.g. the socket main
// loop folding this peer into its poll set).
func (m *Manager) Conn(r route.Route) (*sock.Conn, bool) {
	t, ok := m.targets[r]
	if !ok || t.conn == nil {
		return nil, false
	}
	return t.conn, true
}

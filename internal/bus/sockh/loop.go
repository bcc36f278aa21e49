// Package sockh drives one process's cooperative socket main loop: accept
// new peers, poll established connections round-robin, hand off decoded
// messages to a handler, and run an idle callback on every pass, whether
// or not anything was ready. Every bdj4go process runs exactly one of
// these as its event loop.
package sockh

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/bdj4go/bdj4/internal/bus/conn"
	"github.com/bdj4go/bdj4/internal/bus/msg"
	"github.com/bdj4go/bdj4/internal/bus/sock"
)

// idleSleep is how long the loop sleeps after a pass that read nothing,
// so an idle process doesn't spin the CPU.
const idleSleep = 5 * time.Millisecond

// pollBudget bounds how long a single pass spends polling the connection
// set for a ready frame before falling through to the idle callback.
const pollBudget = 10 * time.Millisecond

// Handler processes one decoded message from peer c.
type Handler func(c *sock.Conn, m msg.Message)

// Idle is called once per loop pass, whether or not that pass did any
// socket I/O — this is what drives a process's progstate.Machine forward
// (LOAD_INI through RUNNING and back down), not just what happens when the
// loop has nothing else to do. It returns true when the process should
// stop, at which point Run returns without sleeping.
type Idle func() (stop bool)

// Loop is one process's socket main loop state.
type Loop struct {
	server  *sock.Server
	set     sock.Set
	manager *conn.Manager
	handle  Handler
	idle    Idle
}

// New builds a Loop around an already-listening server and connection
// manager. handle is invoked for every frame read from any peer; idle runs
// once per pass, regardless of whether that pass did any I/O.
func New(server *sock.Server, manager *conn.Manager, handle Handler, idle Idle) *Loop {
	return &Loop{server: server, manager: manager, handle: handle, idle: idle}
}

// Run executes the loop until idle requests a stop or the process receives
// SIGINT/SIGTERM, matching the kill-flag behavior every bdj4go process
// honors on the socket main loop.
func (l *Loop) Run() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		didWork := l.pass()

		if l.manager != nil {
			l.manager.Process()
		}

		if l.idle != nil && l.idle() {
			return
		}

		if !didWork {
			time.Sleep(idleSleep)
		}
	}
}

// pass runs one iteration: accept any pending connection, then poll the
// set once for a ready frame. It returns true if any I/O occurred.
func (l *Loop) pass() bool {
	didWork := false

	if l.server != nil {
		c, ok, err := l.server.Accept(time.Millisecond)
		if err == nil && ok {
			l.set.Add(c)
			didWork = true
		}
	}

	if l.set.Len() > 0 {
		c, payload, ok, err := l.set.PollNext(pollBudget)
		if err != nil && c != nil {
			l.set.Remove(c)
			c.Close()
			return true
		}
		if ok {
			didWork = true
			m, decErr := msg.Decode(payload)
			if decErr == nil && l.handle != nil {
				l.handle(c, m)
			}
		}
	}

	return didWork
}

// AddConn folds an externally-established connection (e.g. one the
// connection manager just finished handshaking) into this loop's poll set.
func (l *Loop) AddConn(c *sock.Conn) {
	l.set.Add(c)
}

package conn

import (
	"testing"
	"time"

	"github.com/bdj4go/bdj4/internal/bus/msg"
	"github.com/bdj4go/bdj4/internal/bus/route"
	"github.com/bdj4go/bdj4/internal/bus/sock"
)

// testProfile is an otherwise unused profile number, so the fixed ports the
// static route table derives for it don't collide with a real deployment.
// Manager dials route.Route.Port, not an arbitrary listener, so the tests
// bind route.TestSuite's port under this profile. route.TestSuite is
// reserved for exactly this: a route id the static table defines but no
// real process claims, so conn tests can repurpose its port slot.
const testProfile = 97

func TestManagerHandshakeSucceedsAgainstLivePeer(t *testing.T) {
	peerPort := route.TestSuite.Port(testProfile)
	server, err := sock.Listen(peerPort)
	if err != nil {
		t.Skipf("could not bind fixed test port %d: %v", peerPort, err)
	}
	defer server.Close()

	go func() {
		c, ok, err := server.Accept(2 * time.Second)
		if err != nil || !ok {
			return
		}
		defer c.Close()
		payload, ok, err := c.ReadFrame()
		if err != nil || !ok {
			return
		}
		m, err := msg.Decode(payload)
		if err != nil {
			return
		}
		reply := msg.EncodeFrame(m.To, m.From, msg.Handshake, nil)
		c.WriteFrame(reply)
	}()

	manager := New(route.Main, testProfile, nil)
	manager.Want(route.TestSuite)

	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) && !manager.Connected() {
		manager.Process()
		time.Sleep(10 * time.Millisecond)
	}

	if !manager.Connected() {
		t.Fatal("expected manager to complete handshake against the live peer")
	}
	if !manager.HaveHandshake(route.TestSuite) {
		t.Fatal("expected HaveHandshake true for the connected peer")
	}
}

func TestManagerGivesUpAfterRetryBudget(t *testing.T) {
	gaveUp := make(chan route.Route, 1)
	manager := New(route.Main, testProfile+1, func(r route.Route) {
		select {
		case gaveUp <- r:
		default:
		}
	})
	manager.Want(route.TestSuite)

	// No peer is listening on this port, so every dial attempt fails. The
	// manager rate-limits redials to one per retryInterval, so exhausting
	// the 10-attempt retry budget genuinely takes several seconds of wall
	// clock; this test budgets generously above that floor.
	deadline := time.Now().Add(10 * time.Second)
	for time.Now().Before(deadline) {
		manager.Process()
		select {
		case r := <-gaveUp:
			if r != route.TestSuite {
				t.Fatalf("unexpected give-up route: %s", r)
			}
			return
		default:
			time.Sleep(20 * time.Millisecond)
		}
	}
	t.Fatal("expected onGiveUp to fire after exhausting the retry budget")
}

func TestManagerDisconnectAllClearsTargets(t *testing.T) {
	manager := New(route.Main, testProfile+2, nil)
	manager.Want(route.TestSuite)
	manager.DisconnectAll()
	if manager.Connected() {
		t.Fatal("an empty target set should report Connected true only vacuously")
	}
	if manager.HaveHandshake(route.TestSuite) {
		t.Fatal("expected no handshake after disconnect")
	}
}

package starter

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/bdj4go/bdj4/internal/bus/msg"
	"github.com/bdj4go/bdj4/internal/bus/route"
	"github.com/bdj4go/bdj4/internal/lock"
)

func writeFakeBinary(t *testing.T, binDir string, r route.Route) {
	t.Helper()
	path := filepath.Join(binDir, r.Name())
	script := "#!/bin/sh\nsleep 5\n"
	if err := os.WriteFile(path, []byte(script), 0o755); err != nil {
		t.Fatalf("write fake binary: %v", err)
	}
}

func TestNewRebuildsBookkeepingFromLockDirectory(t *testing.T) {
	lockDir := t.TempDir()
	l, err := lock.Acquire(lockDir, route.Main, 0)
	if err != nil {
		t.Fatalf("acquire: %v", err)
	}
	defer l.Release()

	s := New(lockDir, t.TempDir(), 0)
	if _, ok := s.procs[route.Main]; !ok {
		t.Fatal("expected starter to adopt the already-held main lock")
	}
	if s.mainCount != 1 {
		t.Fatalf("expected mainCount 1 after adopting main, got %d", s.mainCount)
	}
}

func TestStartRouteMainIsReferenceCounted(t *testing.T) {
	binDir := t.TempDir()
	writeFakeBinary(t, binDir, route.Main)

	s := New(t.TempDir(), binDir, 0)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := s.StartRoute(ctx, route.Main); err != nil {
		t.Fatalf("first start: %v", err)
	}
	firstPid := s.Pid(route.Main)
	if firstPid == 0 {
		t.Fatal("expected a live pid after starting main")
	}

	if err := s.StartRoute(ctx, route.Main); err != nil {
		t.Fatalf("second start: %v", err)
	}
	if s.mainCount != 2 {
		t.Fatalf("expected mainCount 2 after second request, got %d", s.mainCount)
	}
	if s.Pid(route.Main) != firstPid {
		t.Fatal("expected the second StartRoute(Main) call not to spawn a new process")
	}

	if stop := s.ReleaseMain(); stop {
		t.Fatal("expected ReleaseMain to report false with one reference still held")
	}
	if stop := s.ReleaseMain(); !stop {
		t.Fatal("expected ReleaseMain to report true once the count reaches zero")
	}
}

func TestPidReturnsZeroForUntrackedRoute(t *testing.T) {
	s := New(t.TempDir(), t.TempDir(), 0)
	if s.Pid(route.Player) != 0 {
		t.Fatal("expected Pid to return 0 for a route never started")
	}
}

func TestShutdownClearsEmptyFleetWithoutSending(t *testing.T) {
	s := New(t.TempDir(), t.TempDir(), 0)

	var sent []route.Route
	done := make(chan struct{})
	go func() {
		s.Shutdown(func(to route.Route, code msg.Code, args []byte) error {
			sent = append(sent, to)
			return nil
		})
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(10 * time.Second):
		t.Fatal("expected Shutdown to return for an empty fleet")
	}
	if len(sent) != 0 {
		t.Fatal("expected no exit requests for an empty fleet")
	}
}

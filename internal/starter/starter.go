// Package starter implements the fleet supervisor: it launches every other
// bdj4go process, watches the player UI for signs of life, and drives the
// five-step shutdown sequence that brings the whole fleet down in order.
package starter

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/bdj4go/bdj4/internal/bus/msg"
	"github.com/bdj4go/bdj4/internal/bus/route"
	"github.com/bdj4go/bdj4/internal/lock"
	"github.com/bdj4go/bdj4/internal/procutil"
)

// probeInterval is how often the starter checks whether the player UI is
// still alive.
const probeInterval = 500 * time.Millisecond

// restartGrace is how long a process must have been up before a one-shot
// restart-if-down policy applies to it; a process that dies within this
// window of starting is treated as failing to start at all, not as a
// crash worth restarting.
const restartGrace = 60 * time.Second

// killWait is how long the starter waits after a polite SIGTERM before
// escalating to SIGKILL during fleet shutdown.
const killWait = 3 * time.Second

// procInfo tracks one supervised child process.
type procInfo struct {
	route     route.Route
	child     *procutil.Child
	startedAt time.Time
	restarted bool
}

// Starter owns the fleet: which routes are supposed to be running, their
// process handles, and the lock directory used both to claim slots and to
// rebuild bookkeeping across a starter crash.
type Starter struct {
	lockDir   string
	profile   int
	binDir    string
	procs     map[route.Route]*procInfo
	mainCount int
}

// New creates a Starter. binDir is where per-route binaries live (one
// binary per cmd/<route> entry point); lockDir is the shared lock
// directory every route's internal/lock.Acquire call writes into.
func New(lockDir, binDir string, profile int) *Starter {
	s := &Starter{
		lockDir: lockDir,
		binDir:  binDir,
		profile: profile,
		procs:   make(map[route.Route]*procInfo),
	}
	s.rebuildFromLocks()
	return s
}

// rebuildFromLocks reconstructs which routes the starter believes are
// running by scanning the lock directory, so a starter that crashed and
// restarted doesn't orphan an already-running fleet (SUPPLEMENTED
// FEATURES: lock directory as source of truth).
func (s *Starter) rebuildFromLocks() {
	for _, r := range lock.Scan(s.lockDir, s.profile) {
		l, err := lock.Read(s.lockDir, r, s.profile)
		if err != nil || !l.Alive() {
			continue
		}
		s.procs[r] = &procInfo{route: r, startedAt: time.Now()}
		if r == route.Main {
			s.mainCount++
		}
		slog.Info("starter: adopted running process from lock", "route", r, "pid", l.Pid())
	}
}

// StartRoute launches a process for r if one isn't already tracked. main's
// lifetime is reference counted: multiple callers can request it and it
// only actually starts once.
func (s *Starter) StartRoute(ctx context.Context, r route.Route, args ...string) error {
	if r == route.Main {
		s.mainCount++
		if s.mainCount > 1 {
			return nil
		}
	}

	if _, ok := s.procs[r]; ok {
		return nil
	}

	binPath := fmt.Sprintf("%s/%s", s.binDir, r.Name())
	child, err := procutil.Start(ctx, binPath, args...)
	if err != nil {
		return fmt.Errorf("starter: start %s: %w", r, err)
	}

	s.procs[r] = &procInfo{route: r, child: child, startedAt: time.Now()}
	slog.Info("starter: started process", "route", r, "pid", child.Pid())
	return nil
}

// ReleaseMain decrements main's reference count; main is only actually
// stopped once the count reaches zero.
func (s *Starter) ReleaseMain() bool {
	if s.mainCount == 0 {
		return true
	}
	s.mainCount--
	return s.mainCount == 0
}

// WatchPlayerUI runs the 500ms liveness probe against the player-UI
// process until ctx is canceled. A process that has been up for at least
// restartGrace and then disappears is restarted exactly once; a process
// that never survives restartGrace is considered failed-to-start and is
// not retried, matching the one-shot restart-if-up-long-enough policy.
func (s *Starter) WatchPlayerUI(ctx context.Context, restartArgs ...string) {
	ticker := time.NewTicker(probeInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p, ok := s.procs[route.Player]
			if !ok || p.child == nil {
				continue
			}
			if p.child.IsAlive() {
				continue
			}

			upLongEnough := time.Since(p.startedAt) >= restartGrace
			if upLongEnough && !p.restarted {
				slog.Warn("starter: player UI died, restarting once", "route", route.Player)
				delete(s.procs, route.Player)
				if err := s.StartRoute(ctx, route.Player, restartArgs...); err != nil {
					slog.Error("starter: player UI restart failed", "error", err)
					continue
				}
				s.procs[route.Player].restarted = true
			} else {
				slog.Error("starter: player UI exited before reaching steady state, not restarting")
				delete(s.procs, route.Player)
			}
		}
	}
}

// Shutdown runs the fleet down in the five ordered steps: ask UI
// processes to exit over the bus, then main, then any remaining routes by
// their lock files, then a polite OS terminate, then a forced kill with
// lock cleanup. send is how the starter speaks EXIT_REQUEST over the bus;
// it is injected so this package doesn't import the socket layer
// directly.
func (s *Starter) Shutdown(send func(to route.Route, code msg.Code, args []byte) error) {
	uiRoutes := []route.Route{
		route.ConfigUI, route.ManageUI, route.Marquee,
		route.MobileMarquee, route.RemoteControl, route.HelperUI,
	}

	// Step 1: ask UI processes to exit.
	for _, r := range uiRoutes {
		if _, ok := s.procs[r]; !ok {
			continue
		}
		if err := send(r, msg.ExitRequest, nil); err != nil {
			slog.Warn("starter: exit request failed", "route", r, "error", err)
		}
	}
	s.waitRoutesGone(uiRoutes, killWait)

	// Step 2: ask main to exit.
	if _, ok := s.procs[route.Main]; ok {
		if err := send(route.Main, msg.ExitRequest, nil); err != nil {
			slog.Warn("starter: exit request failed", "route", route.Main, "error", err)
		}
		s.waitRoutesGone([]route.Route{route.Main}, killWait)
	}

	// Step 3: ask any remaining routes found via lock files to exit.
	remaining := lock.Scan(s.lockDir, s.profile)
	for _, r := range remaining {
		if r == route.Starter {
			continue
		}
		if err := send(r, msg.ExitRequest, nil); err != nil {
			slog.Warn("starter: exit request failed", "route", r, "error", err)
		}
	}
	s.waitRoutesGone(remaining, killWait)

	// Step 4: OS-level polite terminate for anything still tracked.
	for r, p := range s.procs {
		if p.child == nil {
			continue
		}
		if err := p.child.Terminate(); err != nil {
			slog.Warn("starter: terminate failed", "route", r, "error", err)
		}
	}
	time.Sleep(killWait)

	// Step 5: force-terminate and clean up lock files for anything left.
	for r, p := range s.procs {
		if p.child != nil && p.child.IsAlive() {
			slog.Warn("starter: force-killing process", "route", r)
			p.child.ForceKill()
		}
		os.Remove(filepath.Join(s.lockDir, r.LockFileName(s.profile)))
	}

	s.procs = make(map[route.Route]*procInfo)
}

// waitRoutesGone polls lock files for routes until each has released its
// lock or timeout elapses.
func (s *Starter) waitRoutesGone(routes []route.Route, timeout time.Duration) {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		allGone := true
		for _, r := range routes {
			if l, err := lock.Read(s.lockDir, r, s.profile); err == nil && l.Alive() {
				allGone = false
				break
			}
		}
		if allGone {
			return
		}
		time.Sleep(50 * time.Millisecond)
	}
}

// Pid returns the supervised pid for r, or 0 if r isn't tracked.
func (s *Starter) Pid(r route.Route) int {
	p, ok := s.procs[r]
	if !ok || p.child == nil {
		return 0
	}
	return p.child.Pid()
}

// Hostname is used to label starter log lines when multiple hosts share a
// profile directory over the inter-host file server.
func Hostname() string {
	h, err := os.Hostname()
	if err != nil {
		return "unknown"
	}
	return h
}

// Package lock manages the per-route, per-profile pid lock files every
// bdj4go process uses to claim its slot and that the starter reads back to
// rebuild its view of a running fleet.
package lock

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/bdj4go/bdj4/internal/bus/route"
	"github.com/bdj4go/bdj4/internal/procutil"
)

// Lock represents one held or inspected lock file.
type Lock struct {
	dir      string
	route    route.Route
	profile  int
	pid      int
	instance string
	file     *os.File
}

func path(dir string, r route.Route, profile int) string {
	return filepath.Join(dir, r.LockFileName(profile))
}

// Acquire claims the lock file for r/profile under dir. It fails if an
// existing lock file names a still-alive pid; a lock file naming a dead
// pid is treated as stale and is silently reclaimed. Liveness is probed
// with procutil.IsAlive (signal 0 to the pid), not mere file existence.
//
// Each acquisition writes a fresh random instance token on the line after
// the pid, readable back through Instance. The starter's lock scan checks
// only whether the pid is alive; it does not compare tokens.
func Acquire(dir string, r route.Route, profile int) (*Lock, error) {
	p := path(dir, r, profile)

	if existing, err := Read(dir, r, profile); err == nil {
		if procutil.IsAlive(existing.pid) {
			return nil, fmt.Errorf("lock: %s already held by live pid %d", r, existing.pid)
		}
	}

	f, err := os.OpenFile(p, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("lock: create %s: %w", p, err)
	}

	l := &Lock{
		dir:      dir,
		route:    r,
		profile:  profile,
		pid:      os.Getpid(),
		instance: uuid.NewString(),
		file:     f,
	}

	if _, err := fmt.Fprintf(f, "%d\n%s\n", l.pid, l.instance); err != nil {
		f.Close()
		os.Remove(p)
		return nil, fmt.Errorf("lock: write %s: %w", p, err)
	}

	return l, nil
}

// Read inspects the lock file for r/profile under dir without acquiring
// it, returning the pid and instance token it names.
func Read(dir string, r route.Route, profile int) (*Lock, error) {
	p := path(dir, r, profile)
	f, err := os.Open(p)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	sc := bufio.NewScanner(f)
	var pid int
	var instance string
	if sc.Scan() {
		pid, _ = strconv.Atoi(strings.TrimSpace(sc.Text()))
	}
	if sc.Scan() {
		instance = strings.TrimSpace(sc.Text())
	}

	return &Lock{dir: dir, route: r, profile: profile, pid: pid, instance: instance}, nil
}

// Pid returns the pid recorded in this lock.
func (l *Lock) Pid() int { return l.pid }

// Instance returns the per-acquisition token recorded in this lock.
func (l *Lock) Instance() string { return l.instance }

// Alive reports whether the pid this lock names is still running.
func (l *Lock) Alive() bool { return procutil.IsAlive(l.pid) }

// Release removes the lock file. It is a no-op on a Lock obtained via Read
// rather than Acquire.
func (l *Lock) Release() error {
	if l.file == nil {
		return nil
	}
	l.file.Close()
	return os.Remove(path(l.dir, l.route, l.profile))
}

// Scan lists which routes have a lock file present under dir for the given
// profile, letting the starter rebuild its fleet bookkeeping from disk
// after a crash rather than only from in-memory counters.
func Scan(dir string, profile int) []route.Route {
	var found []route.Route
	for r := route.Route(0); r.Valid(); r++ {
		if _, err := os.Stat(path(dir, r, profile)); err == nil {
			found = append(found, r)
		}
	}
	return found
}

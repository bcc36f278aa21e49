package route

import "testing"

func TestPortDerivationPerProfile(t *testing.T) {
	p0 := Main.Port(0)
	p1 := Main.Port(1)
	if p1-p0 != routeSpan {
		t.Fatalf("expected profile span of %d ports, got %d", routeSpan, p1-p0)
	}
}

func TestPortsDistinctWithinProfile(t *testing.T) {
	seen := make(map[int]Route)
	for r := Route(0); r < count; r++ {
		port := r.Port(0)
		if other, ok := seen[port]; ok {
			t.Fatalf("route %s and %s collide on port %d", r, other, port)
		}
		seen[port] = r
	}
}

func TestNameAndLockNameKnownForEveryRoute(t *testing.T) {
	for r := Route(0); r < count; r++ {
		if r.Name() == "unknown" {
			t.Fatalf("route %d has no name in the static table", r)
		}
		if r.LockName() == "unknown" {
			t.Fatalf("route %d has no lock name in the static table", r)
		}
	}
}

func TestUnknownRouteOutOfRange(t *testing.T) {
	if Route(-1).Name() != "unknown" {
		t.Fatal("expected negative route to report unknown")
	}
	if count.Name() != "unknown" {
		t.Fatal("expected sentinel count route to report unknown")
	}
}

func TestLockFileNameIncludesProfile(t *testing.T) {
	got := Main.LockFileName(2)
	want := "main2.lck"
	if got != want {
		t.Fatalf("got %q want %q", got, want)
	}
}

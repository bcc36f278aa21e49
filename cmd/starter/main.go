// Command starter is the fleet supervisor: it launches every other bdj4go
// process for a profile, watches the player UI for signs of life, and
// drives the five-step shutdown sequence on SIGINT/SIGTERM.
package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/bdj4go/bdj4/internal/bdjlog"
	"github.com/bdj4go/bdj4/internal/bus/conn"
	"github.com/bdj4go/bdj4/internal/bus/msg"
	"github.com/bdj4go/bdj4/internal/bus/route"
	"github.com/bdj4go/bdj4/internal/config"
	"github.com/bdj4go/bdj4/internal/lock"
	"github.com/bdj4go/bdj4/internal/starter"
)

// fleetRoutes lists every route the starter launches a process for. The
// GUI-only routes (configui/manageui/helperui) carry no cmd/ entry point in
// this implementation's scope, so they are left out here rather than
// pointed at a binary that won't exist, and the starter never launches them.
var fleetRoutes = []route.Route{
	route.Player,
	route.Main,
	route.Marquee,
	route.DBUpdate,
	route.MobileMarquee,
	route.RemoteControl,
	route.Server,
}

func main() {
	profile := flag.Int("profile", 0, "profile number")
	debugMask := flag.Int("debug", 0, "debug bitmask")
	dataTopDir := flag.String("datatopdir", "", "data top directory (overrides "+config.DataTopDirEnv+")")
	binDir := flag.String("bindir", ".", "directory containing the per-route binaries")
	flag.Parse()

	bdjlog.Setup(route.Starter, *profile, *debugMask)

	cfg, err := config.Load(*dataTopDir, *profile)
	if err != nil {
		slog.Error("starter: config load failed", "error", err)
		os.Exit(1)
	}

	l, err := lock.Acquire(cfg.LockDir, route.Starter, *profile)
	if err != nil {
		slog.Error("starter: lock acquire failed", "error", err)
		os.Exit(1)
	}
	defer l.Release()

	s := starter.New(cfg.LockDir, *binDir, *profile)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	for _, r := range fleetRoutes {
		if err := s.StartRoute(ctx, r, "--profile", flag.Lookup("profile").Value.String(), "--datatopdir", *dataTopDir); err != nil {
			slog.Error("starter: failed to start route", "route", r, "error", err)
		}
	}

	manager := conn.New(route.Starter, *profile, func(r route.Route) {
		slog.Warn("starter: gave up connecting to peer", "route", r)
	})
	for _, r := range fleetRoutes {
		manager.Want(r)
	}

	go s.WatchPlayerUI(ctx, "--profile", flag.Lookup("profile").Value.String(), "--datatopdir", *dataTopDir)

	slog.Info("starter: fleet up", "routes", len(fleetRoutes), "host", starter.Hostname())

	for {
		select {
		case <-ctx.Done():
			slog.Info("starter: shutting down fleet")
			s.Shutdown(func(to route.Route, code msg.Code, args []byte) error {
				return manager.Send(to, code, args)
			})
			slog.Info("starter: fleet down")
			return
		default:
			manager.Process()
			time.Sleep(5 * time.Millisecond)
		}
	}
}

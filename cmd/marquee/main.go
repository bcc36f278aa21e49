// Command marquee is the on-premises marquee display route: it connects
// to main, receives MUSICQ_DATA_UPDATE/PLAYER_STATUS_DATA broadcasts, and
// keeps the last-known now-playing state for its own UI to read. The
// actual on-screen rendering is a GUI concern and out of scope here.
package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/bdj4go/bdj4/internal/bdjlog"
	"github.com/bdj4go/bdj4/internal/bus/conn"
	"github.com/bdj4go/bdj4/internal/bus/msg"
	"github.com/bdj4go/bdj4/internal/bus/route"
	"github.com/bdj4go/bdj4/internal/bus/sock"
	"github.com/bdj4go/bdj4/internal/bus/sockh"
	"github.com/bdj4go/bdj4/internal/config"
	"github.com/bdj4go/bdj4/internal/lock"
	"github.com/bdj4go/bdj4/internal/msgparse"
	"github.com/bdj4go/bdj4/internal/progstate"
)

func main() {
	profile := flag.Int("profile", 0, "profile number")
	debugMask := flag.Int("debug", 0, "debug bitmask")
	dataTopDir := flag.String("datatopdir", "", "data top directory (overrides "+config.DataTopDirEnv+")")
	flag.Parse()

	bdjlog.Setup(route.Marquee, *profile, *debugMask)

	cfg, err := config.Load(*dataTopDir, *profile)
	if err != nil {
		slog.Error("marquee: config load failed", "error", err)
		os.Exit(1)
	}

	l, err := lock.Acquire(cfg.LockDir, route.Marquee, *profile)
	if err != nil {
		slog.Error("marquee: lock acquire failed", "error", err)
		os.Exit(1)
	}
	defer l.Release()

	m := progstate.New()

	server, err := sock.Listen(route.Marquee.Port(*profile))
	if err != nil {
		slog.Error("marquee: listen failed", "error", err)
		os.Exit(1)
	}
	defer server.Close()

	manager := conn.New(route.Marquee, *profile, func(r route.Route) {
		slog.Warn("marquee: gave up connecting to peer", "route", r)
	})
	manager.Want(route.Main)

	var lastStatus msgparse.PlayerStatus

	handle := func(c *sock.Conn, message msg.Message) {
		switch message.Code {
		case msg.Handshake:
			reply := msg.EncodeFrame(route.Marquee, message.From, msg.Handshake, nil)
			_ = c.WriteFrame(reply)
		case msg.ExitRequest:
			m.ShutdownProcess()
		case msg.PlayerStatusData:
			if st, err := msgparse.ParsePlayerStatus(message.Args); err == nil {
				lastStatus = st
			}
		}
	}

	loop := sockh.New(server, manager, handle, func() bool {
		m.Process()
		return m.Current() == progstate.Closed
	})

	m.SetCallback(progstate.LoadIni, func() progstate.Result { return progstate.Finished })
	m.SetCallback(progstate.Connecting, func() progstate.Result {
		manager.Process()
		return progstate.Finished
	})
	m.SetCallback(progstate.WaitHandshake, func() progstate.Result {
		if manager.Connected() {
			return progstate.Finished
		}
		return progstate.NotFinished
	})
	m.SetCallback(progstate.InitializeData, func() progstate.Result { return progstate.Finished })
	m.SetCallback(progstate.Running, func() progstate.Result {
		_ = lastStatus
		return progstate.NotFinished
	})
	m.SetCallback(progstate.Stopping, func() progstate.Result {
		manager.DisconnectAll()
		return progstate.Finished
	})
	m.SetCallback(progstate.StopWait, func() progstate.Result { return progstate.Finished })
	m.SetCallback(progstate.Closing, func() progstate.Result { return progstate.Finished })

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	go func() {
		<-ctx.Done()
		m.ShutdownProcess()
	}()

	slog.Info("marquee: route up", "port", route.Marquee.Port(*profile))
	loop.Run()
	slog.Info("marquee: route stopped")
}

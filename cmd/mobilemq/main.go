// Command mobilemq serves the mobile marquee's no-auth web surface
// (polling + websocket push) over websrv, fed by PLAYER_STATUS_DATA
// broadcasts it receives from main over the bus.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

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
	"github.com/bdj4go/bdj4/internal/webapi/mobmq"
	"github.com/bdj4go/bdj4/internal/websrv"
)

func main() {
	profile := flag.Int("profile", 0, "profile number")
	debugMask := flag.Int("debug", 0, "debug bitmask")
	dataTopDir := flag.String("datatopdir", "", "data top directory (overrides "+config.DataTopDirEnv+")")
	port := flag.Int("port", 0, "HTTP port override (0 derives from the route table)")
	flag.Parse()

	bdjlog.Setup(route.MobileMarquee, *profile, *debugMask)

	cfg, err := config.Load(*dataTopDir, *profile)
	if err != nil {
		slog.Error("mobilemq: config load failed", "error", err)
		os.Exit(1)
	}

	l, err := lock.Acquire(cfg.LockDir, route.MobileMarquee, *profile)
	if err != nil {
		slog.Error("mobilemq: lock acquire failed", "error", err)
		os.Exit(1)
	}
	defer l.Release()

	m := progstate.New()

	server, err := sock.Listen(route.MobileMarquee.Port(*profile))
	if err != nil {
		slog.Error("mobilemq: bus listen failed", "error", err)
		os.Exit(1)
	}
	defer server.Close()

	manager := conn.New(route.MobileMarquee, *profile, func(r route.Route) {
		slog.Warn("mobilemq: gave up connecting to peer", "route", r)
	})
	manager.Want(route.Main)

	hub := mobmq.NewHub()

	handle := func(c *sock.Conn, message msg.Message) {
		switch message.Code {
		case msg.Handshake:
			reply := msg.EncodeFrame(route.MobileMarquee, message.From, msg.Handshake, nil)
			_ = c.WriteFrame(reply)
		case msg.ExitRequest:
			m.ShutdownProcess()
		case msg.PlayerStatusData:
			if st, err := msgparse.ParsePlayerStatus(message.Args); err == nil {
				hub.Publish(st)
			}
		}
	}

	loop := sockh.New(server, manager, handle, func() bool {
		m.Process()
		return m.Current() == progstate.Closed
	})

	engine := websrv.New()
	mobmq.Register(engine, hub, cfg.WebDir)

	httpPort := *port
	if httpPort == 0 {
		httpPort = route.MobileMarquee.Port(*profile) + 10000
	}
	web := engine.Listen(fmt.Sprintf(":%d", httpPort))

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
	m.SetCallback(progstate.Running, func() progstate.Result { return progstate.NotFinished })
	m.SetCallback(progstate.Stopping, func() progstate.Result {
		manager.DisconnectAll()
		return progstate.Finished
	})
	m.SetCallback(progstate.StopWait, func() progstate.Result { return progstate.Finished })
	m.SetCallback(progstate.Closing, func() progstate.Result {
		_ = web.Shutdown(3 * time.Second)
		return progstate.Finished
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	go func() {
		<-ctx.Done()
		m.ShutdownProcess()
	}()

	slog.Info("mobilemq: route up", "busport", route.MobileMarquee.Port(*profile), "httpport", httpPort)
	loop.Run()
	slog.Info("mobilemq: route stopped")
}

// Command remctrl serves the remote control web surface over websrv,
// translating HTTP requests into bus messages toward main and reflecting
// PLAYER_STATUS_DATA broadcasts back out through GetStatus.
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
	"github.com/bdj4go/bdj4/internal/webapi/rc"
	"github.com/bdj4go/bdj4/internal/websrv"
)

// managerSender adapts conn.Manager to rc.Sender, always addressing main —
// the only peer remote control ever has commands for.
type managerSender struct {
	manager *conn.Manager
}

func (s managerSender) Send(code msg.Code, args []byte) error {
	return s.manager.Send(route.Main, code, args)
}

func main() {
	profile := flag.Int("profile", 0, "profile number")
	debugMask := flag.Int("debug", 0, "debug bitmask")
	dataTopDir := flag.String("datatopdir", "", "data top directory (overrides "+config.DataTopDirEnv+")")
	port := flag.Int("port", 0, "HTTP port override (0 derives from the route table)")
	flag.Parse()

	bdjlog.Setup(route.RemoteControl, *profile, *debugMask)

	cfg, err := config.Load(*dataTopDir, *profile)
	if err != nil {
		slog.Error("remctrl: config load failed", "error", err)
		os.Exit(1)
	}

	l, err := lock.Acquire(cfg.LockDir, route.RemoteControl, *profile)
	if err != nil {
		slog.Error("remctrl: lock acquire failed", "error", err)
		os.Exit(1)
	}
	defer l.Release()

	passwordHash, err := websrv.HashPassword(cfg.RemotePass)
	if err != nil {
		slog.Error("remctrl: password hash failed", "error", err)
		os.Exit(1)
	}

	m := progstate.New()

	server, err := sock.Listen(route.RemoteControl.Port(*profile))
	if err != nil {
		slog.Error("remctrl: bus listen failed", "error", err)
		os.Exit(1)
	}
	defer server.Close()

	manager := conn.New(route.RemoteControl, *profile, func(r route.Route) {
		slog.Warn("remctrl: gave up connecting to peer", "route", r)
	})
	manager.Want(route.Main)

	svc := rc.NewService(managerSender{manager: manager})
	handlers := rc.NewHandlers(svc)

	handle := func(c *sock.Conn, message msg.Message) {
		switch message.Code {
		case msg.Handshake:
			reply := msg.EncodeFrame(route.RemoteControl, message.From, msg.Handshake, nil)
			_ = c.WriteFrame(reply)
		case msg.ExitRequest:
			m.ShutdownProcess()
		case msg.PlayerStatusData:
			if st, err := msgparse.ParsePlayerStatus(message.Args); err == nil {
				svc.UpdateStatus(st)
			}
		case msg.DanceListData:
			svc.UpdateDanceList(msg.DecodeArgs(message.Args))
		case msg.PlaylistNamesData:
			svc.UpdatePlaylistNames(msg.DecodeArgs(message.Args))
		}
	}

	loop := sockh.New(server, manager, handle, func() bool {
		m.Process()
		return m.Current() == progstate.Closed
	})

	engine := websrv.New()
	rc.Register(engine, handlers, cfg.RemoteUser, passwordHash)

	httpPort := *port
	if httpPort == 0 {
		httpPort = route.RemoteControl.Port(*profile) + 10000
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

	slog.Info("remctrl: route up", "busport", route.RemoteControl.Port(*profile), "httpport", httpPort)
	loop.Run()
	slog.Info("remctrl: route stopped")
}

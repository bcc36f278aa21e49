// Command server serves the inter-host BDJ4 file/playlist server: an
// HTTPS, Basic-auth-gated surface other bdj4go hosts use to browse and
// fetch this host's music library, backed by the same musicdb dbupdate
// maintains.
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
	"github.com/bdj4go/bdj4/internal/musicdb"
	"github.com/bdj4go/bdj4/internal/progstate"
	"github.com/bdj4go/bdj4/internal/webapi/srv"
	"github.com/bdj4go/bdj4/internal/websrv"
)

func main() {
	profile := flag.Int("profile", 0, "profile number")
	debugMask := flag.Int("debug", 0, "debug bitmask")
	dataTopDir := flag.String("datatopdir", "", "data top directory (overrides "+config.DataTopDirEnv+")")
	port := flag.Int("port", 0, "HTTPS port override (0 derives from the route table)")
	certFile := flag.String("cert", "", "TLS certificate file (required)")
	keyFile := flag.String("key", "", "TLS private key file (required)")
	flag.Parse()

	bdjlog.Setup(route.Server, *profile, *debugMask)

	cfg, err := config.Load(*dataTopDir, *profile)
	if err != nil {
		slog.Error("server: config load failed", "error", err)
		os.Exit(1)
	}

	l, err := lock.Acquire(cfg.LockDir, route.Server, *profile)
	if err != nil {
		slog.Error("server: lock acquire failed", "error", err)
		os.Exit(1)
	}
	defer l.Release()

	passwordHash, err := websrv.HashPassword(cfg.ServerPass)
	if err != nil {
		slog.Error("server: password hash failed", "error", err)
		os.Exit(1)
	}

	db, err := musicdb.Open(cfg.DBPath)
	if err != nil {
		slog.Error("server: musicdb open failed", "error", err)
		os.Exit(1)
	}

	m := progstate.New()

	listener, err := sock.Listen(route.Server.Port(*profile))
	if err != nil {
		slog.Error("server: bus listen failed", "error", err)
		os.Exit(1)
	}
	defer listener.Close()

	manager := conn.New(route.Server, *profile, func(r route.Route) {
		slog.Warn("server: gave up connecting to peer", "route", r)
	})
	manager.Want(route.Main)

	handle := func(c *sock.Conn, message msg.Message) {
		switch message.Code {
		case msg.Handshake:
			reply := msg.EncodeFrame(route.Server, message.From, msg.Handshake, nil)
			_ = c.WriteFrame(reply)
		case msg.ExitRequest:
			m.ShutdownProcess()
		case msg.DBFinish:
			if err := db.Reload(); err != nil {
				slog.Warn("server: musicdb reload failed", "error", err)
			}
		}
	}

	loop := sockh.New(listener, manager, handle, func() bool {
		m.Process()
		return m.Current() == progstate.Closed
	})

	engine := websrv.New()
	handlers := srv.NewHandlers(db, cfg.MusicDir)
	srv.Register(engine, handlers, cfg.ServerUser, passwordHash)

	httpsPort := *port
	if httpsPort == 0 {
		httpsPort = route.Server.Port(*profile) + 10000
	}

	var web *websrv.Server
	if *certFile == "" || *keyFile == "" {
		slog.Warn("server: no --cert/--key given, serving plain HTTP (not for cross-host use)")
		web = engine.Listen(fmt.Sprintf(":%d", httpsPort))
	} else {
		web = engine.ListenTLS(fmt.Sprintf(":%d", httpsPort), *certFile, *keyFile)
	}

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

	slog.Info("server: route up", "busport", route.Server.Port(*profile), "httpsport", httpsPort, "entries", db.Count())
	loop.Run()
	slog.Info("server: route stopped")
}

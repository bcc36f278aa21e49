// Command main is the "main" route: the queue/playback-command hub that
// every UI process and the player itself connect through. It owns no UI
// of its own — it is pure bus-message routing and queue state, matching
// the teacher's pattern of a thin main() wiring together a long-lived
// service (here, the queue) and handing it a socket loop instead of an
// HTTP server.
package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
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

	bdjlog.Setup(route.Main, *profile, *debugMask)

	cfg, err := config.Load(*dataTopDir, *profile)
	if err != nil {
		slog.Error("main: config load failed", "error", err)
		os.Exit(1)
	}

	l, err := lock.Acquire(cfg.LockDir, route.Main, *profile)
	if err != nil {
		slog.Error("main: lock acquire failed", "error", err)
		os.Exit(1)
	}
	defer l.Release()

	m := progstate.New()

	server, err := sock.Listen(route.Main.Port(*profile))
	if err != nil {
		slog.Error("main: listen failed", "error", err)
		os.Exit(1)
	}
	defer server.Close()

	manager := conn.New(route.Main, *profile, func(r route.Route) {
		slog.Warn("main: gave up connecting to peer", "route", r)
	})
	manager.Want(route.Player)

	queue := newQueue()

	handle := func(c *sock.Conn, message msg.Message) {
		switch message.Code {
		case msg.Handshake:
			reply := msg.EncodeFrame(route.Main, message.From, msg.Handshake, nil)
			_ = c.WriteFrame(reply)
		case msg.ExitRequest:
			m.ShutdownProcess()
		case msg.ReqQueueClear:
			queue.Clear()
		case msg.ReqSongSelect:
			if sel, err := msgparse.ParseSongSelect(message.Args); err == nil {
				queue.Select(sel.MusicqIdx, sel.SongIdx)
			}
		case msg.ReqPlaylistQueue:
			fields := msg.DecodeArgs(message.Args)
			if len(fields) == 1 {
				queue.QueuePlaylist(fields[0])
			}
		case msg.ReqQueueDance:
			fields := msg.DecodeArgs(message.Args)
			if len(fields) == 2 {
				if count, err := strconv.Atoi(fields[1]); err == nil {
					queue.QueueDance(fields[0], count)
				}
			}
		case msg.ReqPlay, msg.ReqNextSong, msg.ReqPlayerFade, msg.ReqPlayerPause,
			msg.ReqPlayerVolume, msg.ReqPlayerVolmute, msg.ReqPlayerSpeed, msg.ReqRepeat,
			msg.ReqPauseatend:
			if err := manager.Send(route.Player, message.Code, message.Args); err != nil {
				slog.Warn("main: forward to player failed", "code", message.Code, "error", err)
			}
		case msg.PlayerStatusData:
			if st, err := msgparse.ParsePlayerStatus(message.Args); err == nil {
				queue.SetStatus(st)
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
	m.SetCallback(progstate.Running, func() progstate.Result { return progstate.NotFinished })
	m.SetCallback(progstate.Stopping, func() progstate.Result {
		manager.DisconnectAll()
		return progstate.Finished
	})
	m.SetCallback(progstate.StopWait, func() progstate.Result { return progstate.Finished })
	m.SetCallback(progstate.Closing, func() progstate.Result {
		return progstate.Finished
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		<-ctx.Done()
		m.ShutdownProcess()
	}()

	slog.Info("main: route up", "port", route.Main.Port(*profile))
	loop.Run()
	slog.Info("main: route stopped")
}

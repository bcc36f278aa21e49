// Command player is the player route. It owns playback state and answers
// player control messages (play/pause/stop/volume/mute/repeat/next song;
// fade, seek and speed requests are not handled); the audio
// backend itself is out of scope and is represented here by a timer that
// advances playedTime the way a real decoder's position callback would.
package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"sync"
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
)

// playerState is the minimal playback state this stub tracks.
type playerState struct {
	mu         sync.Mutex
	playing    bool
	paused     bool
	repeat     bool
	volume     int
	playedTime int
	duration   int
	songIdx    int
}

func (p *playerState) snapshot() msgparse.PlayerStatus {
	p.mu.Lock()
	defer p.mu.Unlock()
	return msgparse.PlayerStatus{
		Playing: p.playing, Paused: p.paused, Repeat: p.repeat,
		Volume: p.volume, PlayedTime: p.playedTime, Duration: p.duration,
		SongIdx: p.songIdx,
	}
}

func main() {
	profile := flag.Int("profile", 0, "profile number")
	debugMask := flag.Int("debug", 0, "debug bitmask")
	dataTopDir := flag.String("datatopdir", "", "data top directory (overrides "+config.DataTopDirEnv+")")
	flag.Parse()

	bdjlog.Setup(route.Player, *profile, *debugMask)

	cfg, err := config.Load(*dataTopDir, *profile)
	if err != nil {
		slog.Error("player: config load failed", "error", err)
		os.Exit(1)
	}

	l, err := lock.Acquire(cfg.LockDir, route.Player, *profile)
	if err != nil {
		slog.Error("player: lock acquire failed", "error", err)
		os.Exit(1)
	}
	defer l.Release()

	m := progstate.New()

	server, err := sock.Listen(route.Player.Port(*profile))
	if err != nil {
		slog.Error("player: listen failed", "error", err)
		os.Exit(1)
	}
	defer server.Close()

	manager := conn.New(route.Player, *profile, func(r route.Route) {
		slog.Warn("player: gave up connecting to peer", "route", r)
	})
	manager.Want(route.Main)

	state := &playerState{volume: 80, duration: 180}

	handle := func(c *sock.Conn, message msg.Message) {
		switch message.Code {
		case msg.Handshake:
			reply := msg.EncodeFrame(route.Player, message.From, msg.Handshake, nil)
			_ = c.WriteFrame(reply)
		case msg.ExitRequest:
			m.ShutdownProcess()
		case msg.ReqPlay:
			state.mu.Lock()
			state.playing, state.paused = true, false
			state.mu.Unlock()
		case msg.ReqPlayerPause:
			state.mu.Lock()
			state.paused = !state.paused
			state.mu.Unlock()
		case msg.ReqPlayerStop:
			state.mu.Lock()
			state.playing, state.paused, state.playedTime = false, false, 0
			state.mu.Unlock()
		case msg.ReqPlayerVolume:
			fields := msg.DecodeArgs(message.Args)
			if len(fields) == 1 {
				state.mu.Lock()
				if v, err := parseVolume(fields[0]); err == nil {
					state.volume = v
				}
				state.mu.Unlock()
			}
		case msg.ReqPlayerVolmute:
			state.mu.Lock()
			if state.volume > 0 {
				state.volume = 0
			} else {
				state.volume = 80
			}
			state.mu.Unlock()
		case msg.ReqRepeat:
			state.mu.Lock()
			state.repeat = !state.repeat
			state.mu.Unlock()
		case msg.ReqNextSong:
			state.mu.Lock()
			state.songIdx++
			state.playedTime = 0
			state.mu.Unlock()
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

	lastTick := time.Now()
	lastBroadcast := time.Now()
	m.SetCallback(progstate.Running, func() progstate.Result {
		now := time.Now()
		state.mu.Lock()
		if state.playing && !state.paused {
			state.playedTime += int(now.Sub(lastTick).Seconds())
			if state.playedTime >= state.duration {
				state.playedTime = 0
				state.songIdx++
			}
		}
		state.mu.Unlock()
		lastTick = now

		if now.Sub(lastBroadcast) >= time.Second {
			lastBroadcast = now
			if manager.HaveHandshake(route.Main) {
				args := msgparse.EncodePlayerStatus(state.snapshot())
				if err := manager.Send(route.Main, msg.PlayerStatusData, args); err != nil {
					slog.Debug("player: status send failed", "error", err)
				}
			}
		}
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

	slog.Info("player: route up", "port", route.Player.Port(*profile))
	loop.Run()
	slog.Info("player: route stopped")
}

func parseVolume(s string) (int, error) {
	return strconv.Atoi(s)
}

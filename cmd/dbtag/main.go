// Command dbtag is the standalone tag-reading worker: it answers
// DB_FILE_CHK requests from dbupdate over the bus, off-loading the actual
// tag-library calls into their own process so a bad audio file can't take
// the updater down with it.
package main

import (
	"flag"
	"log/slog"
	"os"

	"github.com/bdj4go/bdj4/internal/bdjlog"
	"github.com/bdj4go/bdj4/internal/bus/msg"
	"github.com/bdj4go/bdj4/internal/bus/route"
	"github.com/bdj4go/bdj4/internal/bus/sock"
	"github.com/bdj4go/bdj4/internal/bus/sockh"
	"github.com/bdj4go/bdj4/internal/config"
	"github.com/bdj4go/bdj4/internal/dbtag"
	"github.com/bdj4go/bdj4/internal/lock"
	"github.com/bdj4go/bdj4/internal/msgparse"
)

func main() {
	profile := flag.Int("profile", 0, "profile number")
	debugMask := flag.Int("debug", 0, "debug bitmask")
	dataTopDir := flag.String("datatopdir", "", "data top directory (overrides "+config.DataTopDirEnv+")")
	flag.Parse()

	bdjlog.Setup(route.DBTag, *profile, *debugMask)

	cfg, err := config.Load(*dataTopDir, *profile)
	if err != nil {
		slog.Error("dbtag: config load failed", "error", err)
		os.Exit(1)
	}

	l, err := lock.Acquire(cfg.LockDir, route.DBTag, *profile)
	if err != nil {
		slog.Error("dbtag: lock acquire failed", "error", err)
		os.Exit(1)
	}
	defer l.Release()

	server, err := sock.Listen(route.DBTag.Port(*profile))
	if err != nil {
		slog.Error("dbtag: listen failed", "error", err)
		os.Exit(1)
	}
	defer server.Close()

	handle := func(c *sock.Conn, m msg.Message) {
		switch m.Code {
		case msg.Handshake:
			reply := msg.EncodeFrame(route.DBTag, m.From, msg.Handshake, nil)
			_ = c.WriteFrame(reply)
		case msg.DBFileChk:
			fields := msg.DecodeArgs(m.Args)
			if len(fields) != 1 {
				return
			}
			result := dbtag.Check(fields[0])
			if result.Err != nil {
				slog.Debug("dbtag: check failed", "path", fields[0], "error", result.Err)
				args := msgparse.EncodeDBFileTags(msgparse.DBFileTags{Path: fields[0]})
				reply := msg.EncodeFrame(route.DBTag, m.From, msg.DBFileTags, args)
				_ = c.WriteFrame(reply)
				return
			}
			args := msgparse.EncodeDBFileTags(msgparse.DBFileTags{
				Path:     result.Path,
				Checksum: result.Checksum,
				Title:    result.Entry.Title,
				Artist:   result.Entry.Artist,
				Album:    result.Entry.Album,
				Genre:    result.Entry.Genre,
				TagsRead: result.TagsRead,
				HasTags:  result.HasTags,
			})
			reply := msg.EncodeFrame(route.DBTag, m.From, msg.DBFileTags, args)
			_ = c.WriteFrame(reply)
		}
	}

	loop := sockh.New(server, nil, handle, nil)

	slog.Info("dbtag: route up", "port", route.DBTag.Port(*profile))
	loop.Run()
	slog.Info("dbtag: route stopped")
}

// Command dbupdate drives one database-update pass (or, with --watch, an
// ongoing fsnotify watch) against a profile's music directory. Like every
// other bdj4go process it listens on its own bus port — so main can reach
// it with DB_STOP_REQ mid-run — and it reports progress three ways at
// once: bus DB_PROGRESS/DB_FINISH messages to main, slog, and a stdout
// PROG/END protocol for a launcher that isn't on the bus at all.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"regexp"
	"syscall"
	"time"

	"github.com/bdj4go/bdj4/internal/bdjlog"
	"github.com/bdj4go/bdj4/internal/bus/conn"
	"github.com/bdj4go/bdj4/internal/bus/msg"
	"github.com/bdj4go/bdj4/internal/bus/route"
	"github.com/bdj4go/bdj4/internal/bus/sock"
	"github.com/bdj4go/bdj4/internal/bus/sockh"
	"github.com/bdj4go/bdj4/internal/config"
	"github.com/bdj4go/bdj4/internal/dbtag"
	"github.com/bdj4go/bdj4/internal/dbupdate"
	"github.com/bdj4go/bdj4/internal/lock"
	"github.com/bdj4go/bdj4/internal/msgparse"
	"github.com/bdj4go/bdj4/internal/musicdb"
)

// checkTimeout bounds how long the updater waits for one DB_FILE_TAGS
// reply from dbtag before giving up on the file (the pipeline then counts
// it under null-tags), so a wedged dbtag process can't hang the whole
// update.
const checkTimeout = 5 * time.Second

func main() {
	profile := flag.Int("profile", 0, "profile number")
	debugMask := flag.Int("debug", 0, "debug bitmask")
	dataTopDir := flag.String("datatopdir", "", "data top directory (overrides "+config.DataTopDirEnv+")")
	rebuild := flag.Bool("rebuild", false, "discard the existing database instead of merging into it")
	watch := flag.Bool("watch", false, "keep watching the music directory for changes after the initial pass")
	checkNew := flag.Bool("checknew", false, "skip any file whose relative path is already in the database")
	blacklist := flag.String("blacklist", "", "regex of paths to exclude from the update")
	flag.Parse()

	bdjlog.Setup(route.DBUpdate, *profile, *debugMask)

	cfg, err := config.Load(*dataTopDir, *profile)
	if err != nil {
		slog.Error("dbupdate: config load failed", "error", err)
		os.Exit(1)
	}

	l, err := lock.Acquire(cfg.LockDir, route.DBUpdate, *profile)
	if err != nil {
		slog.Error("dbupdate: lock acquire failed", "error", err)
		os.Exit(1)
	}
	defer l.Release()

	var bl *regexp.Regexp
	if *blacklist != "" {
		bl, err = regexp.Compile(*blacklist)
		if err != nil {
			slog.Error("dbupdate: invalid blacklist regex", "error", err)
			os.Exit(1)
		}
	}

	server, err := sock.Listen(route.DBUpdate.Port(*profile))
	if err != nil {
		slog.Error("dbupdate: listen failed", "error", err)
		os.Exit(1)
	}
	defer server.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	runCtx, cancelRun := context.WithCancel(ctx)
	defer cancelRun()

	manager := conn.New(route.DBUpdate, *profile, func(r route.Route) {
		slog.Warn("dbupdate: gave up connecting to peer", "route", r)
	})
	manager.Want(route.Main)
	manager.Want(route.DBTag)

	handle := func(c *sock.Conn, m msg.Message) {
		switch m.Code {
		case msg.Handshake:
			reply := msg.EncodeFrame(route.DBUpdate, m.From, msg.Handshake, nil)
			_ = c.WriteFrame(reply)
		case msg.DBStopReq:
			slog.Info("dbupdate: received stop request")
			cancelRun()
		}
	}

	loop := sockh.New(server, manager, handle, func() bool { return false })
	go loop.Run()

	for i := 0; i < 20 && !manager.Connected(); i++ {
		time.Sleep(100 * time.Millisecond)
	}
	if !manager.HaveHandshake(route.DBTag) {
		slog.Error("dbupdate: could not reach dbtag route")
		os.Exit(1)
	}

	checker := &busChecker{manager: manager}

	stdoutProgress := func(p dbupdate.Progress) {
		fmt.Printf("PROG %.4f\n", p.Fraction())
	}

	report := func(p dbupdate.Progress) {
		slog.Info("dbupdate: progress", "found", p.Found, "skipped", p.Skipped, "processed", p.Processed)
		if manager.HaveHandshake(route.Main) {
			args := msgparse.EncodeDBProgress(msgparse.DBProgress(p))
			_ = manager.Send(route.Main, msg.DBProgress, args)
		}
		stdoutProgress(p)
	}

	pipeline := dbupdate.New(dbupdate.Options{
		MusicDir:   cfg.MusicDir,
		DBPath:     cfg.DBPath,
		Rebuild:    *rebuild,
		CheckNew:   *checkNew,
		Blacklist:  bl,
		Watch:      *watch,
		Checker:    checker,
		OnProgress: report,
		OnState: func(s dbupdate.State) {
			slog.Info("dbupdate: state", "state", s.String())
		},
	})

	slog.Info("dbupdate: starting", "musicdir", cfg.MusicDir, "dbpath", cfg.DBPath,
		"rebuild", *rebuild, "watch", *watch, "checknew", *checkNew)
	runErr := pipeline.Run(runCtx)
	if runErr != nil && ctx.Err() == nil && runCtx.Err() == nil {
		slog.Error("dbupdate: pipeline error", "error", runErr)
		fmt.Println("PROG 1.0")
		fmt.Println("END")
		os.Exit(1)
	}

	final := pipeline.Counters()
	if manager.HaveHandshake(route.Main) {
		_ = manager.Send(route.Main, msg.DBFinish, msgparse.EncodeDBProgress(msgparse.DBProgress(final)))
	}
	slog.Info("dbupdate: finished", "found", final.Found, "skipped", final.Skipped, "processed", final.Processed)

	fmt.Println("PROG 1.0")
	fmt.Println("END")
}

// busChecker implements dbupdate.Checker over the bus: it sends DB_FILE_CHK
// to the dbtag route on the connection manager's already-handshaken
// connection and blocks for the matching DB_FILE_TAGS reply, the real
// producer/consumer round trip the in-process Checker stands in for during
// tests.
type busChecker struct {
	manager *conn.Manager
}

func (b *busChecker) Check(path string) (dbtag.CheckResult, error) {
	c, ok := b.manager.Conn(route.DBTag)
	if !ok {
		return dbtag.CheckResult{}, fmt.Errorf("dbupdate: no connection to dbtag")
	}
	if err := b.manager.Send(route.DBTag, msg.DBFileChk, msg.EncodeArgs(path)); err != nil {
		return dbtag.CheckResult{}, fmt.Errorf("dbupdate: send DB_FILE_CHK: %w", err)
	}

	deadline := time.Now().Add(checkTimeout)
	for time.Now().Before(deadline) {
		payload, ok, err := c.ReadFrameTimeout(100 * time.Millisecond)
		if err != nil {
			return dbtag.CheckResult{}, fmt.Errorf("dbupdate: read DB_FILE_TAGS: %w", err)
		}
		if !ok {
			continue
		}
		reply, err := msg.Decode(payload)
		if err != nil {
			return dbtag.CheckResult{}, fmt.Errorf("dbupdate: decode DB_FILE_TAGS: %w", err)
		}
		if reply.Code != msg.DBFileTags {
			continue
		}
		tags, err := msgparse.ParseDBFileTags(reply.Args)
		if err != nil {
			return dbtag.CheckResult{}, fmt.Errorf("dbupdate: parse DB_FILE_TAGS: %w", err)
		}
		return dbtag.CheckResult{
			Path:     tags.Path,
			Checksum: tags.Checksum,
			Entry: musicdb.Entry{
				Checksum: tags.Checksum,
				Path:     tags.Path,
				Title:    tags.Title,
				Artist:   tags.Artist,
				Album:    tags.Album,
				Genre:    tags.Genre,
			},
			TagsRead: tags.TagsRead,
			HasTags:  tags.HasTags,
		}, nil
	}
	return dbtag.CheckResult{}, fmt.Errorf("dbupdate: timed out waiting for dbtag reply for %q", path)
}
